// Match Metrics
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

	"github.com/pkg/errors"
)

// Key of the multi-participant bracket in an Aggregate
const FFA = "ffa"

// ErrNoRounds is returned when metrics are requested for no rounds
var ErrNoRounds = errors.New("match metrics require at least one round")

// MatchMetrics summarise the rounds against one opponent or in one
// bracket.
type MatchMetrics struct {
	Rounds          []RoundScore
	AvgTotalScore   float64
	AvgRank         float64
	WinrateRound    float64
	AvgSurvival     float64
	AvgBulletDamage float64
	AvgRamDamage    float64
}

// NewMatchMetrics computes the metrics of ROUNDS, which may not be
// empty.
func NewMatchMetrics(rounds []RoundScore) (*MatchMetrics, error) {
	if len(rounds) == 0 {
		return nil, ErrNoRounds
	}

	m := &MatchMetrics{Rounds: append([]RoundScore(nil), rounds...)}
	for _, r := range rounds {
		m.AvgTotalScore += r.TotalScore
		m.AvgRank += float64(r.Rank)
		if r.Rank == 1 {
			m.WinrateRound++
		}
		m.AvgSurvival += r.Survival
		m.AvgBulletDamage += r.BulletDamage
		m.AvgRamDamage += r.RamDamage
	}

	n := float64(len(rounds))
	m.AvgTotalScore /= n
	m.AvgRank /= n
	m.WinrateRound /= n
	m.AvgSurvival /= n
	m.AvgBulletDamage /= n
	m.AvgRamDamage /= n
	return m, nil
}

// Aggregate holds all metrics of a candidate, keyed by baseline and
// by FFA for the multi-participant bracket.
type Aggregate struct {
	Metrics map[string]*MatchMetrics
}

// Keys returns the keys of all metrics in a stable order
func (a *Aggregate) Keys() []string {
	keys := make([]string, 0, len(a.Metrics))
	for k := range a.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a *Aggregate) rounds() (rounds []RoundScore) {
	for _, k := range a.Keys() {
		rounds = append(rounds, a.Metrics[k].Rounds...)
	}
	return
}

// CrashRate is the fraction of all rounds the candidate crashed or
// was disqualified in.
func (a *Aggregate) CrashRate() float64 {
	rounds := a.rounds()
	if len(rounds) == 0 {
		return 0
	}

	var crashed int
	for _, r := range rounds {
		if r.Crashed {
			crashed++
		}
	}
	return float64(crashed) / float64(len(rounds))
}

// Total selects the total score of a round
func Total(r RoundScore) float64 { return r.TotalScore }

// Variance returns the population variance of ATTR over all rounds,
// or 0 if there are less than two rounds.
func (a *Aggregate) Variance(attr func(RoundScore) float64) float64 {
	rounds := a.rounds()
	if len(rounds) <= 1 {
		return 0
	}

	var mean float64
	for _, r := range rounds {
		mean += attr(r)
	}
	mean /= float64(len(rounds))

	var sum float64
	for _, r := range rounds {
		d := attr(r) - mean
		sum += d * d
	}
	return sum / float64(len(rounds))
}
