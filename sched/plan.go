// Match Planning
//
// Copyright (c) 2024  Philip Kaludercic
//
// This file is part of go-trb.
//
// go-trb is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-trb is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-trb. If not, see
// <http://www.gnu.org/licenses/>

package sched

import (
	"go-trb"
	"go-trb/game"
	"go-trb/roster"

	"github.com/pkg/errors"
)

var (
	ErrNoSeeds     = errors.New("no seeds configured")
	ErrNoBaselines = errors.New("no baselines in the roster")
)

// Plan lists all matches of a candidate
type Plan struct {
	Candidate trb.Entrant
	// Number of bots in a melee
	Participants int
	Matches      []*game.Match
}

// MakePlan schedules a duel against every baseline that supports it
// for every seed, and a melee for every seed with opponents drawn
// cyclically from the roster.
func MakePlan(candidate trb.Entrant, m *roster.Manifest, bc *trb.BattleConfig, seeds []int64) (*Plan, error) {
	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}
	if len(m.Bots) == 0 {
		return nil, ErrNoBaselines
	}

	opponents := make([]trb.Entrant, len(m.Bots))
	for i := range m.Bots {
		opponents[i] = m.Bots[i].Entrant()
	}

	plan := &Plan{
		Candidate:    candidate,
		Participants: m.MeleeParticipants,
	}
	if plan.Participants < 2 {
		plan.Participants = 2
	}

	duel := bc.Setup(trb.Duel, 2, 0)
	for i, b := range m.Bots {
		if !b.Plays(trb.Duel) {
			continue
		}
		for _, seed := range seeds {
			plan.Matches = append(plan.Matches, game.NewMatch(duel.WithSeed(seed), b.Id,
				[]trb.Entrant{candidate, opponents[i]}))
		}
	}

	melee := bc.Setup(trb.Melee, plan.Participants, 0)
	next := 0
	for _, seed := range seeds {
		entrants := []trb.Entrant{candidate}
		for len(entrants) < plan.Participants {
			entrants = append(entrants, opponents[next%len(opponents)])
			next++
		}
		plan.Matches = append(plan.Matches, game.NewMatch(melee.WithSeed(seed), "", entrants))
	}

	trb.Debug.Printf("Planned %d matches for %s", len(plan.Matches), candidate)
	return plan, nil
}
