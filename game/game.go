// Match Execution
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

package game

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"go-trb"
	"go-trb/proto"
	"go-trb/sched/isol"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Characters replaced in log file names
var unsafe = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Match is a single battle between the candidate and its opponents
type Match struct {
	Id       uuid.UUID
	Name     string
	GameType string
	// Baseline identifier of the opponent, empty in a melee
	Opponent string
	Seed     int64
	Setup    trb.BattleSetup
	// The candidate is always the first entrant
	Entrants []trb.Entrant

	Port     int
	Attempts int
	Results  []trb.RawMatchResult
	Err      error
	Started  time.Time
	Finished time.Time
}

// NewMatch prepares a match between ENTRANTS
func NewMatch(setup trb.BattleSetup, opponent string, entrants []trb.Entrant) *Match {
	name := fmt.Sprintf("%s-%s-seed%d", setup.GameType, opponent, setup.Seed)
	if opponent == "" {
		name = fmt.Sprintf("%s-seed%d", setup.GameType, setup.Seed)
	}
	return &Match{
		Id:       uuid.New(),
		Name:     unsafe.ReplaceAllString(name, "_"),
		GameType: setup.GameType,
		Opponent: opponent,
		Seed:     setup.Seed,
		Setup:    setup,
		Entrants: entrants,
	}
}

func (m *Match) String() string { return m.Name }

// Expected returns the names of all entrants, in order
func (m *Match) Expected() []string {
	names := make([]string, len(m.Entrants))
	for i, e := range m.Entrants {
		names[i] = e.Name
	}
	return names
}

// Inconclusive is true if the match produced no results
func (m *Match) Inconclusive() bool { return len(m.Results) == 0 }

// Outcome summarises how a match ended
func (m *Match) Outcome() string {
	switch {
	case m.Err != nil && errors.Is(m.Err, proto.ErrMatchTimeout):
		return "timeout"
	case m.Err != nil:
		return "failed"
	case m.Inconclusive():
		return "inconclusive"
	default:
		return "completed"
	}
}

// Runner plays matches by starting a simulator, the bots and
// controlling the battle.  Every match gets its own port, and all
// processes are stopped when the match is over.
type Runner struct {
	Simulator isol.Simulator
	// Optional
	Recorder   isol.Recorder
	Bots       isol.Launcher
	Controller *proto.Controller
	Dial       func(context.Context, string) (proto.Conn, error)

	Host string
	// Preferred port
	Port int
	// Number of attempts if the simulator does not become ready
	Attempts     int
	LogDir       string
	RecordDir    string
	Timeout      time.Duration
	ReadyTimeout time.Duration
}

func (r *Runner) log(m *Match, what string) string {
	if r.LogDir == "" {
		return ""
	}
	name := fmt.Sprintf("%s-%s.log", m.stem(), unsafe.ReplaceAllString(what, "_"))
	return filepath.Join(r.LogDir, name)
}

// Unique prefix of the files written by the current attempt of M
func (m *Match) stem() string {
	return fmt.Sprintf("%s-%s-a%d", m.Name, m.Id.String()[:8], m.Attempts)
}

// Play the match M.  Failures of the match itself are stored in M and
// leave it without results, only errors that should abort the whole
// run are returned.
func (r *Runner) Play(ctx context.Context, m *Match) error {
	if r.LogDir != "" {
		if err := os.MkdirAll(r.LogDir, 0755); err != nil {
			return err
		}
	}

	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	m.Started = time.Now()
	defer func() { m.Finished = time.Now() }()
	for m.Attempts = 1; ; m.Attempts++ {
		m.Results, m.Err = nil, nil
		err := r.attempt(ctx, m)

		var lerr *isol.LaunchError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &lerr):
			m.Err = err
			return err
		case ctx.Err() != nil:
			m.Err = err
			return ctx.Err()
		}

		m.Err = err
		if !errors.Is(err, isol.ErrNotReady) || m.Attempts >= attempts {
			trb.Debug.Printf("Match %s failed: %s", m, err)
			return nil
		}
		trb.Debug.Printf("Retrying match %s: %s", m, err)
	}
}

func (r *Runner) attempt(ctx context.Context, m *Match) error {
	port, release, err := isol.Reserve(r.Port)
	if err != nil {
		return err
	}
	defer release()
	m.Port = port

	host := r.Host
	if host == "" {
		host = "localhost"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	url := "ws://" + addr

	var g isol.Group
	defer func() {
		if err := g.Shutdown(); err != nil {
			trb.Debug.Printf("Cleanup of %s: %s", m, err)
		}
	}()

	srv, err := r.Simulator.Start(isol.ServerOptions{
		Port:      port,
		GameTypes: []string{m.GameType},
		TPS:       m.Setup.TurnsPerSecond,
		Log:       r.log(m, "server"),
	})
	if err != nil {
		return err
	}
	g.Add(srv)

	// Stop waiting if the simulator exits, e.g. because the port
	// was taken in the meantime.
	var exited <-chan struct{}
	if p, ok := srv.(interface{ Done() <-chan struct{} }); ok {
		exited = p.Done()
	}
	rctx := ctx
	if r.ReadyTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, r.ReadyTimeout)
		defer cancel()
	}
	if err := isol.WaitForPort(rctx, addr, exited); err != nil {
		return err
	}
	select {
	case <-exited:
		return errors.Wrapf(isol.ErrNotReady, "%s: server exited", addr)
	default:
	}

	if r.Recorder != nil {
		var dir string
		if r.RecordDir != "" {
			dir = filepath.Join(r.RecordDir, m.stem())
		}
		rec, err := r.Recorder.Start(isol.RecorderOptions{
			URL: url,
			Dir: dir,
			Log: r.log(m, "recorder"),
		})
		if err != nil {
			return err
		}
		g.Add(rec)
	}

	mctx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	for i, e := range m.Entrants {
		bot, err := r.Bots.Launch(e, isol.LaunchOptions{
			Port: port,
			URL:  url,
			Log:  r.log(m, fmt.Sprintf("bot%d-%s", i, e.Name)),
		})
		if err != nil {
			return err
		}
		g.Add(bot)
	}

	dial := r.Dial
	if dial == nil {
		dial = proto.Dial
	}
	conn, err := dial(mctx, url)
	if err != nil {
		return err
	}
	defer conn.Close()

	m.Results, err = r.Controller.Run(mctx, conn, m.Expected(), m.Setup)
	return err
}
