// Result Collection
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
	"go-trb/proto"
	"go-trb/score"

	"github.com/pkg/errors"
)

// Outcome holds the rounds of the candidate in all played matches
type Outcome struct {
	PerBaseline  map[string]*score.MatchMetrics
	FFA          []score.RoundScore
	Played       int
	Inconclusive int
}

// The candidate NAME never registered for M
func absent(m *game.Match, name string) bool {
	var merr *proto.MissingParticipantsError
	if !errors.As(m.Err, &merr) {
		return false
	}
	for _, missing := range merr.Missing {
		if missing == name {
			return true
		}
	}
	return false
}

// Collect reduces the results of all matches in PLAN.  Matches
// without results are skipped, unless the candidate failed to
// register.  If the candidate is missing from the results of a match
// or never registered, it is recorded as having crashed.
func Collect(plan *Plan) (*Outcome, error) {
	var (
		o      = &Outcome{PerBaseline: make(map[string]*score.MatchMetrics)}
		rounds = make(map[string][]score.RoundScore)
	)

	for _, m := range plan.Matches {
		o.Played++
		var rs []score.RoundScore
		switch {
		case !m.Inconclusive():
			rs = score.Reduce(m.Results, m.Setup.Rounds)[plan.Candidate.Name]
		case absent(m, plan.Candidate.Name):
			trb.Debug.Printf("%s did not register for %s", plan.Candidate, m)
		default:
			o.Inconclusive++
			continue
		}

		if len(rs) == 0 {
			trb.Debug.Printf("%s is missing from the results of %s", plan.Candidate, m)
			rs = []score.RoundScore{score.Crashed(len(m.Entrants))}
		}
		// A baseline with the same name shares the entry
		rs = rs[:1]

		switch m.GameType {
		case trb.Duel:
			rounds[m.Opponent] = append(rounds[m.Opponent], rs...)
		default:
			o.FFA = append(o.FFA, rs...)
		}
	}

	for id, rs := range rounds {
		mm, err := score.NewMatchMetrics(rs)
		if err != nil {
			return nil, err
		}
		o.PerBaseline[id] = mm
	}
	return o, nil
}
