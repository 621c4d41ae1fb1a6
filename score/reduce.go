// Result Reduction
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

package score

import (
	"sort"

	"go-trb"
)

// RoundScore is the result of one participant in one round.  Since
// the simulator only reports an aggregate per battle, every battle
// yields a single pseudo-round holding the aggregate divided by the
// number of rounds.
type RoundScore struct {
	Round             int
	TotalScore        float64
	BulletDamage      float64
	BulletDamageBonus float64
	RamDamage         float64
	RamDamageBonus    float64
	Survival          float64
	LastSurvivorBonus float64
	// 1 is the best rank
	Rank    int
	Crashed bool
}

// Reduce converts the results of a battle with ROUNDS rounds into
// round scores, keyed by participant name.  Participants are ranked
// by descending total score, where ties retain the order of RESULTS.
func Reduce(results []trb.RawMatchResult, rounds int) map[string][]RoundScore {
	scores := make(map[string][]RoundScore)
	if len(results) == 0 {
		return scores
	}

	sorted := append([]trb.RawMatchResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalScore > sorted[j].TotalScore
	})

	div := float64(rounds)
	if rounds < 1 {
		div = 1
	}
	for i, res := range sorted {
		scores[res.Name] = append(scores[res.Name], RoundScore{
			Round:             1,
			TotalScore:        res.TotalScore / div,
			BulletDamage:      res.BulletDamage / div,
			BulletDamageBonus: res.BulletDamageBonus / div,
			RamDamage:         res.RamDamage / div,
			RamDamageBonus:    res.RamDamageBonus / div,
			Survival:          res.Survival / div,
			LastSurvivorBonus: res.LastSurvivorBonus / div,
			Rank:              i + 1,
		})
	}
	return scores
}

// Crashed is the round score of a participant missing from the
// results of a battle between PARTICIPANTS bots.
func Crashed(participants int) RoundScore {
	return RoundScore{
		Round:   1,
		Rank:    participants,
		Crashed: true,
	}
}
