// Result Document
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
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Note attached to every report about the fidelity of the rounds
const PseudoRoundNote = "Scores are per-match aggregates treated as pseudo-rounds; " +
	"hook up recorder parsing for per-round fidelity."

const StatusCompleted = "completed"

// Baseline summarises the metrics against one baseline
type Baseline struct {
	AvgTotalScore float64 `json:"avg_total_score"`
	AvgRank       float64 `json:"avg_rank"`
	WinrateRound  float64 `json:"winrate_round"`
}

// Report is the result document of a benchmark run
type Report struct {
	BenchmarkId             string              `json:"benchmark_id"`
	RunId                   string              `json:"run_id,omitempty"`
	Candidate               string              `json:"candidate,omitempty"`
	Status                  string              `json:"status"`
	BPS                     float64             `json:"bps"`
	FPS                     float64             `json:"fps"`
	SRS                     float64             `json:"srs"`
	BotScore                float64             `json:"bot_score"`
	PerBaseline             map[string]Baseline `json:"per_baseline"`
	FFARounds               int                 `json:"ffa_rounds"`
	CrashRate               float64             `json:"crash_rate"`
	MatchesPlayed           int                 `json:"matches_played"`
	MatchesInconclusive     int                 `json:"matches_inconclusive"`
	BaselineManifestVersion int                 `json:"baseline_manifest_version"`
	Notes                   string              `json:"notes"`
}

// NewReport fills in the scores of a report
func NewReport(f Final, agg *Aggregate) *Report {
	r := &Report{
		Status:      StatusCompleted,
		BPS:         f.BPS,
		FPS:         f.FPS,
		SRS:         f.SRS,
		BotScore:    f.Score,
		PerBaseline: make(map[string]Baseline),
		CrashRate:   agg.CrashRate(),
		Notes:       PseudoRoundNote,
	}
	for k, m := range agg.Metrics {
		if k == FFA {
			r.FFARounds = len(m.Rounds)
			continue
		}
		r.PerBaseline[k] = Baseline{
			AvgTotalScore: m.AvgTotalScore,
			AvgRank:       m.AvgRank,
			WinrateRound:  m.WinrateRound,
		}
	}
	return r
}

// Write the report as indented JSON
func (r *Report) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteFile writes the report to NAME, creating parent directories
func (r *Report) WriteFile(name string) error {
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return err
	}
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := r.Write(file); err != nil {
		file.Close()
		return errors.Wrapf(err, "cannot write %s", name)
	}
	return file.Close()
}
