// Benchmark Runs
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
	"os/exec"
	"path/filepath"
	"time"

	"go-trb"
	"go-trb/cmd"
	"go-trb/game"
	"go-trb/proto"
	"go-trb/roster"
	"go-trb/sched/isol"
	"go-trb/score"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Resolve NAME relative to DIR, unless it is absolute
func resolve(dir, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// MakeRunner prepares a match runner as configured.  Missing
// executables are reported before anything is started.
func MakeRunner(conf *cmd.Conf, workspace string) (*game.Runner, error) {
	java := isol.Java{Bin: conf.Simulator.Java, Grace: conf.Simulator.Grace}
	if java.Bin == "" {
		java.Bin = "java"
	}
	if _, err := exec.LookPath(java.Bin); err != nil {
		return nil, &isol.LaunchError{What: "java", Path: java.Bin, Err: err}
	}

	srv := &isol.JavaServer{
		Java:             java,
		Jar:              conf.Simulator.ServerJar,
		InitialPositions: conf.Simulator.InitialPositions,
	}
	if _, err := os.Stat(srv.Jar); err != nil {
		return nil, &isol.LaunchError{What: "server", Path: srv.Jar, Err: err}
	}

	r := &game.Runner{
		Simulator: srv,
		Controller: &proto.Controller{
			Name:          conf.Controller.Name,
			Version:       conf.Controller.Version,
			Author:        conf.Controller.Author,
			Secret:        conf.Simulator.RecorderSecret,
			RosterTimeout: conf.Match.RosterTimeout,
		},
		Port:         int(conf.Simulator.Port),
		Attempts:     int(conf.Match.Attempts),
		LogDir:       resolve(workspace, conf.Match.Logs),
		RecordDir:    resolve(workspace, conf.Match.Records),
		Timeout:      conf.Match.Timeout,
		ReadyTimeout: conf.Simulator.ReadyTimeout,
	}

	if conf.Simulator.RecorderJar != "" {
		rec := &isol.JavaRecorder{
			Java:   java,
			Jar:    conf.Simulator.RecorderJar,
			Secret: conf.Simulator.RecorderSecret,
		}
		if _, err := os.Stat(rec.Jar); err != nil {
			return nil, &isol.LaunchError{What: "recorder", Path: rec.Jar, Err: err}
		}
		r.Recorder = rec
	}

	switch conf.Bots.Isolation {
	case "", "process":
		py := &isol.Python{
			Interpreter: conf.Bots.Python,
			Path:        conf.Bots.PythonPath,
			Grace:       conf.Bots.Grace,
		}
		if py.Interpreter == "" {
			py.Interpreter = "python3"
		}
		if _, err := exec.LookPath(py.Interpreter); err != nil {
			return nil, &isol.LaunchError{What: "python", Path: py.Interpreter, Err: err}
		}
		r.Bots = py
	case "docker":
		r.Bots = &isol.Docker{
			Image:    conf.Bots.Image,
			CPUs:     conf.Bots.CPUs,
			MemoryMB: int(conf.Bots.MemoryMB),
			Network:  conf.Bots.Network,
			Path:     conf.Bots.PythonPath,
			Grace:    conf.Bots.Grace,
		}
	default:
		return nil, errors.Errorf("unknown isolation %q", conf.Bots.Isolation)
	}

	return r, nil
}

// Check that every entrant of PLAN can be started
func preflight(plan *Plan) error {
	seen := make(map[string]struct{})
	for _, m := range plan.Matches {
		for _, e := range m.Entrants {
			if _, ok := seen[e.Dir]; ok {
				continue
			}
			seen[e.Dir] = struct{}{}
			if _, err := isol.EntryPoint(e.Dir); err != nil {
				return err
			}
		}
	}
	return nil
}

// Benchmark is a complete evaluation of one candidate
type Benchmark struct {
	Conf      *cmd.Conf
	Workspace string
	// Overrides the runner built from the configuration
	Runner *game.Runner
}

// Evaluate plays all matches of the candidate in the workspace and
// scores the results.
func (b *Benchmark) Evaluate(st *cmd.State) (*score.Report, error) {
	conf := b.Conf
	candidate := roster.Candidate(filepath.Join(b.Workspace, "bot"))

	bc, err := trb.LoadBattleConfig(resolve(b.Workspace, conf.Battle.Config))
	if err != nil {
		return nil, err
	}
	manifest, err := roster.LoadManifest(conf.Baselines.Manifest,
		conf.Baselines.Root, conf.Baselines.Validate)
	if err != nil {
		return nil, err
	}
	plan, err := MakePlan(candidate, manifest, bc, conf.Seeds)
	if err != nil {
		return nil, err
	}

	runner := b.Runner
	if runner == nil {
		runner, err = MakeRunner(conf, b.Workspace)
		if err != nil {
			return nil, err
		}
		if err = preflight(plan); err != nil {
			return nil, err
		}
	}

	report := &score.Report{
		BenchmarkId:             conf.BenchmarkId,
		RunId:                   uuid.NewString(),
		Candidate:               candidate.Name,
		Status:                  "running",
		BaselineManifestVersion: manifest.Version,
	}
	if st.Ledger != nil {
		st.Ledger.StartRun(st.Context, report)
	}

	start := time.Now()
	s := &Scheduler{
		Runner:      runner,
		Concurrency: int(conf.Match.Concurrency),
		RunId:       report.RunId,
		Ledger:      st.Ledger,
		Monitor:     st.Monitor,
	}
	err = s.Run(st.Context, plan.Matches)
	var done *score.Report
	if err == nil {
		done, err = b.conclude(plan, report)
	}
	if err != nil {
		report.Status = "aborted"
		if st.Ledger != nil {
			st.Ledger.FinishRun(context.Background(), report)
		}
		return nil, err
	}
	trb.Debug.Printf("Evaluated %s in %s", candidate, time.Since(start))

	if st.Ledger != nil {
		st.Ledger.FinishRun(st.Context, done)
	}
	if st.Monitor != nil {
		st.Monitor.ObserveRun(done)
	}
	return done, nil
}

// Score the results of a completed PLAN for the run in REPORT.
func (b *Benchmark) conclude(plan *Plan, report *score.Report) (*score.Report, error) {
	o, err := Collect(plan)
	if err != nil {
		return nil, err
	}
	final, agg, err := score.Evaluate(o.PerBaseline, o.FFA, plan.Participants,
		b.Conf.Score.Weights, b.Conf.Score.VarianceNormalizer)
	if err != nil {
		return nil, err
	}

	done := score.NewReport(final, agg)
	done.BenchmarkId = report.BenchmarkId
	done.RunId = report.RunId
	done.Candidate = report.Candidate
	done.BaselineManifestVersion = report.BaselineManifestVersion
	done.MatchesPlayed = o.Played
	done.MatchesInconclusive = o.Inconclusive
	return done, nil
}
