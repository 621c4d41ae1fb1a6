// Scoring
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
	"math"
)

// Weights of the sub-scores in the final score
type Weights struct {
	HeadToHead float64 `toml:"head_to_head"`
	Bracket    float64 `toml:"bracket"`
	Stability  float64 `toml:"stability"`
	// Blend between the round win-rate and the normalised total
	// score in the head-to-head sub-score
	Alpha float64 `toml:"alpha"`
}

var DefaultWeights = Weights{
	HeadToHead: 0.5,
	Bracket:    0.3,
	Stability:  0.2,
	Alpha:      0.7,
}

// Final holds the sub-scores and the weighted final score
type Final struct {
	BPS   float64
	FPS   float64
	SRS   float64
	Score float64
}

func isclose(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

// Normalize maps VALUES onto [0, 1] using min-max normalisation.  If
// all values are equal, every value is mapped to 0.
func Normalize(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	low, high := values[0], values[0]
	for _, v := range values[1:] {
		low = math.Min(low, v)
		high = math.Max(high, v)
	}

	norm := make([]float64, len(values))
	if isclose(low, high) {
		return norm
	}
	for i, v := range values {
		norm[i] = math.Min(math.Max((v-low)/(high-low), 0), 1)
	}
	return norm
}

// RankScore maps RANK among PARTICIPANTS onto [0, 1], where the first
// rank scores 1 and the last rank scores 0.
func RankScore(rank, participants int) float64 {
	if participants <= 1 {
		return 1
	}
	return float64(participants-rank) / float64(participants-1)
}

// Duel scores the metrics against a single baseline
func Duel(m *MatchMetrics, normalized, alpha float64) float64 {
	return alpha*m.WinrateRound + (1-alpha)*normalized
}

// HeadToHead is the mean duel score over all baselines, with the
// average total scores normalised across baselines.
func HeadToHead(perBaseline map[string]*MatchMetrics, alpha float64) float64 {
	if len(perBaseline) == 0 {
		return 0
	}

	agg := Aggregate{Metrics: perBaseline}
	keys := agg.Keys()
	totals := make([]float64, len(keys))
	for i, k := range keys {
		totals[i] = perBaseline[k].AvgTotalScore
	}

	var sum float64
	for i, norm := range Normalize(totals) {
		sum += Duel(perBaseline[keys[i]], norm, alpha)
	}
	return sum / float64(len(keys))
}

// Bracket is the mean rank score over all multi-participant rounds
func Bracket(rounds []RoundScore, participants int) float64 {
	if len(rounds) == 0 {
		return 0
	}

	var sum float64
	for _, r := range rounds {
		sum += RankScore(r.Rank, participants)
	}
	return sum / float64(len(rounds))
}

// Stability rewards not crashing and a consistent total score.  The
// variance is divided by NORMALIZER and capped at 1.  Without any
// rounds there is nothing to reward.
func Stability(a *Aggregate, normalizer float64) float64 {
	if len(a.rounds()) == 0 {
		return 0
	}

	var variance float64
	if normalizer > 0 {
		variance = math.Min(a.Variance(Total)/normalizer, 1)
	}
	return 0.5*(1-a.CrashRate()) + 0.5*(1-variance)
}

// Combine weighs the sub-scores into a final score
func Combine(bps, fps, srs float64, w Weights) Final {
	return Final{
		BPS:   bps,
		FPS:   fps,
		SRS:   srs,
		Score: w.HeadToHead*bps + w.Bracket*fps + w.Stability*srs,
	}
}

// Evaluate computes all sub-scores of a candidate and the final
// score.  The aggregate is returned for reporting.
func Evaluate(perBaseline map[string]*MatchMetrics, ffa []RoundScore, participants int,
	w Weights, normalizer float64) (Final, *Aggregate, error) {
	agg := &Aggregate{Metrics: make(map[string]*MatchMetrics)}
	for k, m := range perBaseline {
		agg.Metrics[k] = m
	}
	if len(ffa) > 0 {
		m, err := NewMatchMetrics(ffa)
		if err != nil {
			return Final{}, nil, err
		}
		agg.Metrics[FFA] = m
	}

	bps := HeadToHead(perBaseline, w.Alpha)
	fps := Bracket(ffa, participants)
	srs := Stability(agg, normalizer)
	return Combine(bps, fps, srs, w), agg, nil
}
