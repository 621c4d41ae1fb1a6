// Database tests
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

package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go-trb"
	"go-trb/game"
	"go-trb/score"

	"github.com/pkg/errors"
)

func testdb(t *testing.T) *db {
	db, err := open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Shutdown)
	return db
}

func TestRuns(t *testing.T) {
	var (
		db  = testdb(t)
		ctx = context.Background()
	)

	first := &score.Report{
		BenchmarkId:             "bench",
		RunId:                   "run-1",
		Candidate:               "Candidate",
		Status:                  "running",
		BaselineManifestVersion: 3,
	}
	db.StartRun(ctx, first)
	first.Status = "aborted"
	db.FinishRun(ctx, first)

	second := &score.Report{
		BenchmarkId: "bench",
		RunId:       "run-2",
		Candidate:   "Candidate",
		Status:      "running",
	}
	db.StartRun(ctx, second)
	done := &score.Report{
		BenchmarkId: "bench",
		RunId:       "run-2",
		Candidate:   "Candidate",
		Status:      score.StatusCompleted,
		BPS:         0.7,
		FPS:         1,
		SRS:         0.5,
		BotScore:    0.75,
		PerBaseline: map[string]score.Baseline{
			"alpha": {AvgTotalScore: 20, AvgRank: 1, WinrateRound: 1},
		},
		FFARounds:     2,
		MatchesPlayed: 4,
		Notes:         score.PseudoRoundNote,
	}
	db.FinishRun(ctx, done)

	c := make(chan *score.Report)
	go db.QueryRuns(ctx, c, 0)
	var runs []*score.Report
	for r := range c {
		runs = append(runs, r)
	}

	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	for i, test := range []struct {
		id, status string
		score      float64
		baselines  int
		manifest   int
	}{
		{"run-2", score.StatusCompleted, 0.75, 1, 0},
		{"run-1", "aborted", 0, 0, 3},
	} {
		r := runs[i]
		if r.RunId != test.id || r.Status != test.status {
			t.Errorf("(%d) Expected %s/%s, got %s/%s", i,
				test.id, test.status, r.RunId, r.Status)
		}
		if r.BotScore != test.score || len(r.PerBaseline) != test.baselines {
			t.Errorf("(%d) Unexpected report %+v", i, r)
		}
		if r.BaselineManifestVersion != test.manifest || r.BenchmarkId != "bench" {
			t.Errorf("(%d) Unexpected report %+v", i, r)
		}
	}
}

func TestMatches(t *testing.T) {
	var (
		db  = testdb(t)
		ctx = context.Background()
		bc  = trb.DefaultBattleConfig()
	)
	db.StartRun(ctx, &score.Report{RunId: "run", Candidate: "Candidate", Status: "running"})

	entrants := []trb.Entrant{{Name: "Candidate"}, {Id: "a", Name: "A"}}
	played := game.NewMatch(bc.Setup(trb.Duel, 2, 7), "a", entrants)
	played.Started = time.Now().Add(-time.Minute)
	played.Finished = time.Now()
	played.Attempts = 1
	played.Results = []trb.RawMatchResult{
		{Name: "Candidate", TotalScore: 200, Survival: 100},
		{Name: "A", TotalScore: 100, Survival: 50},
	}
	failed := game.NewMatch(bc.Setup(trb.Duel, 2, 8), "a", entrants)
	failed.Started = time.Now()
	failed.Attempts = 3
	failed.Err = errors.New("simulator not ready")

	db.SaveMatch(ctx, "run", played)
	db.SaveMatch(ctx, "run", failed)

	c := make(chan *game.Match)
	go db.QueryMatches(ctx, "run", c)
	var matches []*game.Match
	for m := range c {
		matches = append(matches, m)
	}

	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}
	if m := matches[0]; m.Id != played.Id || m.Name != played.Name || m.Seed != 7 ||
		m.Setup.Rounds != bc.Rounds || m.Opponent != "a" || m.Err != nil {
		t.Errorf("Unexpected match %+v", m)
	}
	if m := matches[0]; len(m.Results) != 2 || m.Results[0].Name != "Candidate" ||
		m.Results[1].Survival != 50 {
		t.Errorf("Unexpected results %+v", m.Results)
	}
	if m := matches[1]; m.Id != failed.Id || m.Err == nil ||
		m.Err.Error() != "simulator not ready" || m.Attempts != 3 || len(m.Results) != 0 {
		t.Errorf("Unexpected match %+v", m)
	}
}

func TestMatchWithoutRun(t *testing.T) {
	db := testdb(t)
	bc := trb.DefaultBattleConfig()
	m := game.NewMatch(bc.Setup(trb.Melee, 2, 1), "", []trb.Entrant{{Name: "Candidate"}})

	// Rejected by the foreign key constraint
	db.SaveMatch(context.Background(), "missing", m)

	c := make(chan *game.Match)
	go db.QueryMatches(context.Background(), "missing", c)
	for m := range c {
		t.Errorf("Unexpected match %s", m)
	}
}
