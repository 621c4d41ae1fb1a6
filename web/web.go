// Benchmark metrics
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

package web

import (
	"go-trb/game"
	"go-trb/score"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	reg *prometheus.Registry

	matches  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	attempts prometheus.Counter
	runs     *prometheus.CounterVec
	score    *prometheus.GaugeVec
}

func newMetrics() *metrics {
	m := &metrics{
		reg: prometheus.NewRegistry(),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trb_matches_total",
			Help: "Total count of matches played by game type and outcome.",
		}, []string{"game_type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trb_match_duration_seconds",
			Help:    "Histogram of match durations by game type.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"game_type"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trb_match_attempts_total",
			Help: "Total count of attempts to start a simulator.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trb_runs_total",
			Help: "Total count of benchmark runs by status.",
		}, []string{"status"}),
		score: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trb_run_score",
			Help: "Scores of the last completed run by component.",
		}, []string{"component"}),
	}

	m.reg.MustRegister(
		m.matches,
		m.duration,
		m.attempts,
		m.runs,
		m.score,
	)
	return m
}

func (m *metrics) ObserveMatch(g *game.Match) {
	m.matches.WithLabelValues(g.GameType, g.Outcome()).Inc()
	m.attempts.Add(float64(g.Attempts))
	if !g.Started.IsZero() && g.Finished.After(g.Started) {
		m.duration.WithLabelValues(g.GameType).Observe(g.Finished.Sub(g.Started).Seconds())
	}
}

func (m *metrics) ObserveRun(r *score.Report) {
	m.runs.WithLabelValues(r.Status).Inc()
	if r.Status != score.StatusCompleted {
		return
	}
	m.score.WithLabelValues("bps").Set(r.BPS)
	m.score.WithLabelValues("fps").Set(r.FPS)
	m.score.WithLabelValues("srs").Set(r.SRS)
	m.score.WithLabelValues("bot_score").Set(r.BotScore)
	m.score.WithLabelValues("crash_rate").Set(r.CrashRate)
}
