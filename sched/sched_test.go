// Scheduler tests
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
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go-trb"
	"go-trb/cmd"
	"go-trb/game"
	"go-trb/proto"
	"go-trb/roster"
	"go-trb/sched/isol"
	"go-trb/score"
	"go-trb/simtest"

	"github.com/pkg/errors"
)

var candidate = trb.Entrant{Name: "Candidate", Dir: "bot"}

func manifest(participants int, bots ...roster.Baseline) *roster.Manifest {
	return &roster.Manifest{Version: 1, MeleeParticipants: participants, Bots: bots}
}

func TestMakePlan(t *testing.T) {
	bc := trb.DefaultBattleConfig()
	m := manifest(3,
		roster.Baseline{Id: "a", Path: "/baselines/a", GameTypes: []string{trb.Duel, trb.Melee}},
		roster.Baseline{Id: "b", Path: "/baselines/b", GameTypes: []string{trb.Melee}},
		roster.Baseline{Id: "c", Path: "/baselines/c", GameTypes: []string{trb.Duel}})

	plan, err := MakePlan(candidate, m, &bc, []int64{1, 2})
	if err != nil {
		t.Fatal(err)
	}

	for i, test := range []struct {
		gameType string
		opponent string
		seed     int64
		names    []string
	}{
		{trb.Duel, "a", 1, []string{"Candidate", "a"}},
		{trb.Duel, "a", 2, []string{"Candidate", "a"}},
		{trb.Duel, "c", 1, []string{"Candidate", "c"}},
		{trb.Duel, "c", 2, []string{"Candidate", "c"}},
		{trb.Melee, "", 1, []string{"Candidate", "a", "b"}},
		{trb.Melee, "", 2, []string{"Candidate", "c", "a"}},
	} {
		if i >= len(plan.Matches) {
			t.Fatalf("Expected %d matches, got %d", i+1, len(plan.Matches))
		}
		m := plan.Matches[i]
		if m.GameType != test.gameType || m.Opponent != test.opponent ||
			m.Seed != test.seed || m.Setup.Seed != test.seed {
			t.Errorf("(%d) Unexpected match %s", i, m)
		}
		names := m.Expected()
		if len(names) != len(test.names) {
			t.Errorf("(%d) Expected %v, got %v", i, test.names, names)
			continue
		}
		for j := range names {
			if names[j] != test.names[j] {
				t.Errorf("(%d) Expected %v, got %v", i, test.names, names)
				break
			}
		}
		if m.Setup.MaxParticipants != len(test.names) {
			t.Errorf("(%d) Expected %d participants, got %d", i,
				len(test.names), m.Setup.MaxParticipants)
		}
	}
	if len(plan.Matches) != 6 {
		t.Errorf("Expected 6 matches, got %d", len(plan.Matches))
	}
}

func TestMakePlanWrap(t *testing.T) {
	bc := trb.DefaultBattleConfig()
	plan, err := MakePlan(candidate, manifest(4, roster.Baseline{Id: "a", Path: "a"}), &bc, []int64{5})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Matches) != 1 {
		t.Fatalf("Expected a single melee, got %d matches", len(plan.Matches))
	}
	if names := plan.Matches[0].Expected(); len(names) != 4 || names[3] != "a" {
		t.Errorf("Unexpected entrants %v", names)
	}
}

func TestMakePlanInvalid(t *testing.T) {
	bc := trb.DefaultBattleConfig()
	if _, err := MakePlan(candidate, manifest(2, roster.Baseline{Id: "a"}), &bc, nil); !errors.Is(err, ErrNoSeeds) {
		t.Errorf("Expected %v, got %v", ErrNoSeeds, err)
	}
	if _, err := MakePlan(candidate, manifest(2), &bc, []int64{1}); !errors.Is(err, ErrNoBaselines) {
		t.Errorf("Expected %v, got %v", ErrNoBaselines, err)
	}
}

func TestCollect(t *testing.T) {
	bc := trb.DefaultBattleConfig()
	duel := bc.Setup(trb.Duel, 2, 0)
	melee := bc.Setup(trb.Melee, 3, 0)
	a := trb.Entrant{Id: "a", Name: "A"}
	b := trb.Entrant{Id: "b", Name: "B"}

	match := func(setup trb.BattleSetup, opponent string, results []trb.RawMatchResult, es ...trb.Entrant) *game.Match {
		m := game.NewMatch(setup, opponent, append([]trb.Entrant{candidate}, es...))
		m.Results = results
		return m
	}
	plan := &Plan{
		Candidate:    candidate,
		Participants: 3,
		Matches: []*game.Match{
			match(duel.WithSeed(1), "a", []trb.RawMatchResult{
				{Name: "A", TotalScore: 100},
				{Name: "Candidate", TotalScore: 300},
			}, a),
			match(duel.WithSeed(2), "a", nil, a),
			match(duel.WithSeed(1), "b", []trb.RawMatchResult{
				{Name: "B", TotalScore: 100},
			}, b),
			match(melee.WithSeed(1), "", []trb.RawMatchResult{
				{Name: "A", TotalScore: 500},
				{Name: "Candidate", TotalScore: 300},
				{Name: "B", TotalScore: 100},
			}, a, b),
		},
	}

	o, err := Collect(plan)
	if err != nil {
		t.Fatal(err)
	}
	if o.Played != 4 || o.Inconclusive != 1 {
		t.Errorf("Unexpected counts %d/%d", o.Played, o.Inconclusive)
	}
	if m := o.PerBaseline["a"]; m == nil || len(m.Rounds) != 1 || m.WinrateRound != 1 || m.AvgTotalScore != 30 {
		t.Errorf("Unexpected metrics against a: %+v", m)
	}
	if m := o.PerBaseline["b"]; m == nil || !m.Rounds[0].Crashed || m.Rounds[0].Rank != 2 {
		t.Errorf("Expected a crash against b: %+v", m)
	}
	if len(o.FFA) != 1 || o.FFA[0].Rank != 2 {
		t.Errorf("Unexpected bracket rounds %+v", o.FFA)
	}
}

func TestCollectAbsent(t *testing.T) {
	bc := trb.DefaultBattleConfig()
	a := trb.Entrant{Id: "a", Name: "A"}
	b := trb.Entrant{Id: "b", Name: "B"}

	match := func(setup trb.BattleSetup, opponent string, missing []string, es ...trb.Entrant) *game.Match {
		m := game.NewMatch(setup, opponent, append([]trb.Entrant{candidate}, es...))
		m.Err = &proto.MissingParticipantsError{Missing: missing, Err: proto.ErrRosterTimeout}
		return m
	}
	plan := &Plan{
		Candidate:    candidate,
		Participants: 3,
		Matches: []*game.Match{
			match(bc.Setup(trb.Duel, 2, 1), "a", []string{"Candidate"}, a),
			match(bc.Setup(trb.Duel, 2, 2), "a", []string{"A"}, a),
			match(bc.Setup(trb.Melee, 3, 1), "", []string{"B", "Candidate"}, a, b),
		},
	}

	o, err := Collect(plan)
	if err != nil {
		t.Fatal(err)
	}
	if o.Played != 3 || o.Inconclusive != 1 {
		t.Errorf("Unexpected counts %d/%d", o.Played, o.Inconclusive)
	}
	m := o.PerBaseline["a"]
	if m == nil || len(m.Rounds) != 1 || !m.Rounds[0].Crashed || m.Rounds[0].Rank != 2 {
		t.Errorf("Expected a crash against a: %+v", m)
	}
	if len(o.FFA) != 1 || !o.FFA[0].Crashed || o.FFA[0].Rank != 3 {
		t.Errorf("Expected a crash in the melee: %+v", o.FFA)
	}
}

func runner(t *testing.T, sim *simtest.Simulator, bots *simtest.Bots) *game.Runner {
	return &game.Runner{
		Simulator:    sim,
		Bots:         bots,
		Controller:   &proto.Controller{Name: "test", Version: "0", Author: "test"},
		LogDir:       t.TempDir(),
		Timeout:      5 * time.Second,
		ReadyTimeout: time.Second,
	}
}

func TestScheduler(t *testing.T) {
	bc := trb.DefaultBattleConfig()
	m := manifest(3,
		roster.Baseline{Id: "a", Path: "a", GameTypes: []string{trb.Duel, trb.Melee}},
		roster.Baseline{Id: "b", Path: "b", GameTypes: []string{trb.Duel, trb.Melee}})
	plan, err := MakePlan(candidate, m, &bc, []int64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}

	sim := &simtest.Simulator{}
	s := &Scheduler{Runner: runner(t, sim, &simtest.Bots{}), Concurrency: 3}
	if err := s.Run(context.Background(), plan.Matches); err != nil {
		t.Fatal(err)
	}
	for _, m := range plan.Matches {
		if m.Outcome() != "completed" {
			t.Errorf("Match %s: %s (%v)", m, m.Outcome(), m.Err)
		}
	}
	if n := len(sim.Servers()); n != len(plan.Matches) {
		t.Errorf("Expected %d simulators, got %d", len(plan.Matches), n)
	}

	// Every server saw exactly one battle with the planned seed
	seeds := make(map[int64]int)
	for _, srv := range sim.Servers() {
		starts := srv.Starts()
		if len(starts) != 1 {
			t.Errorf("Expected one battle on %s, got %d", srv, len(starts))
			continue
		}
		seeds[starts[0].Seed]++
	}
	for _, seed := range []int64{1, 2, 3} {
		if seeds[seed] != 3 {
			t.Errorf("Expected three battles with seed %d, got %d", seed, seeds[seed])
		}
	}
}

func TestSchedulerAbort(t *testing.T) {
	bc := trb.DefaultBattleConfig()
	m := manifest(2, roster.Baseline{Id: "a", Path: "a"})
	plan, err := MakePlan(candidate, m, &bc, []int64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}

	sim := &simtest.Simulator{}
	bots := &simtest.Bots{Broken: map[string]bool{"Candidate": true}}
	s := &Scheduler{Runner: runner(t, sim, bots), Concurrency: 1}
	err = s.Run(context.Background(), plan.Matches)

	var lerr *isol.LaunchError
	if !errors.As(err, &lerr) {
		t.Fatalf("Expected a launch error, got %v", err)
	}
	if n := len(sim.Servers()); n != 1 {
		t.Errorf("Expected the run to stop after the first match, got %d", n)
	}
	for _, m := range plan.Matches[1:] {
		if !errors.Is(m.Err, context.Canceled) {
			t.Errorf("Expected %s to be skipped, got %v", m, m.Err)
		}
	}
}

func write(t *testing.T, name, data string) {
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
}

func workspace(t *testing.T) (string, *cmd.Conf) {
	ws := t.TempDir()
	write(t, filepath.Join(ws, "bot", "bot-config.json"), `{"name": "Candidate"}`)
	write(t, filepath.Join(ws, "baselines", "alpha", "bot-config.json"), `{"name": "Alpha"}`)
	write(t, filepath.Join(ws, "baselines", "beta", "bot-config.json"), `{"name": "Beta"}`)
	write(t, filepath.Join(ws, "server", "battle-config.json"), `{"numberOfRounds": 10}`)
	write(t, filepath.Join(ws, "baselines", "manifest.yaml"), `
version: 2
melee_participants: 3
bots:
  - id: alpha
    path: baselines/alpha
  - id: beta
    path: baselines/beta
`)

	conf := cmd.Default()
	conf.Seeds = []int64{1, 2}
	conf.Baselines.Manifest = filepath.Join(ws, "baselines", "manifest.yaml")
	conf.Baselines.Root = ws
	conf.Match.Concurrency = 2
	return ws, conf
}

func TestEvaluate(t *testing.T) {
	ws, conf := workspace(t)
	b := &Benchmark{
		Conf:      conf,
		Workspace: ws,
		Runner:    runner(t, &simtest.Simulator{}, &simtest.Bots{}),
	}
	st := cmd.MakeState()
	report, err := b.Evaluate(st)
	if err != nil {
		t.Fatal(err)
	}

	// The candidate always wins, with equal scores against both
	// baselines and a higher score in a melee.
	for i, test := range []struct {
		name          string
		got, expected float64
	}{
		{"bps", report.BPS, 0.7},
		{"fps", report.FPS, 1},
		{"srs", report.SRS, 0.5},
		{"bot_score", report.BotScore, 0.5*0.7 + 0.3*1 + 0.2*0.5},
		{"crash_rate", report.CrashRate, 0},
	} {
		if d := test.got - test.expected; d > 1e-9 || d < -1e-9 {
			t.Errorf("(%d) Expected %s to be %v, got %v", i, test.name, test.expected, test.got)
		}
	}
	if report.MatchesPlayed != 6 || report.MatchesInconclusive != 0 ||
		report.FFARounds != 2 || len(report.PerBaseline) != 2 {
		t.Errorf("Unexpected report %+v", report)
	}
	if report.BaselineManifestVersion != 2 || report.Candidate != "Candidate" || report.RunId == "" {
		t.Errorf("Unexpected report %+v", report)
	}
}


// Records the status of every run it is told about
type ledger struct {
	sync.Mutex
	status []string
}

func (*ledger) String() string { return "ledger" }
func (*ledger) Start(*cmd.State, *cmd.Conf) {}
func (*ledger) Shutdown() {}
func (*ledger) SaveMatch(context.Context, string, *game.Match) {}
func (*ledger) QueryRuns(context.Context, chan<- *score.Report, int) {}
func (*ledger) QueryMatches(context.Context, string, chan<- *game.Match) {}

func (l *ledger) StartRun(_ context.Context, r *score.Report) {
	l.Lock()
	defer l.Unlock()
	l.status = append(l.status, r.Status)
}

func (l *ledger) FinishRun(_ context.Context, r *score.Report) {
	l.Lock()
	defer l.Unlock()
	l.status = append(l.status, r.Status)
}

func TestEvaluateAborted(t *testing.T) {
	for i, test := range []struct {
		broken map[string]bool
		status []string
	}{
		{nil, []string{"running", "completed"}},
		{map[string]bool{"Candidate": true}, []string{"running", "aborted"}},
	} {
		ws, conf := workspace(t)
		b := &Benchmark{
			Conf:      conf,
			Workspace: ws,
			Runner:    runner(t, &simtest.Simulator{}, &simtest.Bots{Broken: test.broken}),
		}
		l := &ledger{}
		st := cmd.MakeState()
		st.Register(l)

		_, err := b.Evaluate(st)
		if aborted := test.status[1] == "aborted"; aborted != (err != nil) {
			t.Errorf("(%d) Unexpected error %v", i, err)
		}
		if len(l.status) != len(test.status) {
			t.Errorf("(%d) Expected %v, got %v", i, test.status, l.status)
			continue
		}
		for j := range test.status {
			if l.status[j] != test.status[j] {
				t.Errorf("(%d) Expected %v, got %v", i, test.status, l.status)
				break
			}
		}
	}
}
