// Battle Controller
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

package proto

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go-trb"

	"github.com/pkg/errors"
)

var (
	// ErrRosterTimeout is wrapped by a MissingParticipantsError
	// when the roster was still incomplete at the deadline.
	ErrRosterTimeout = errors.New("roster timeout")

	// ErrMatchTimeout is returned when the overall deadline of a
	// match elapsed.
	ErrMatchTimeout = errors.New("match timeout")
)

// ProtocolError is returned if the simulator sent an unexpected
// message.
type ProtocolError struct {
	State State
	Got   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error in state %s: unexpected %q", e.State, e.Got)
}

// MissingParticipantsError names every expected bot that did not
// register with the simulator.
type MissingParticipantsError struct {
	Missing []string
	Err     error
}

func (e *MissingParticipantsError) Error() string {
	return fmt.Sprintf("missing participants %s: %s",
		strings.Join(e.Missing, ", "), e.Err)
}

func (e *MissingParticipantsError) Unwrap() error { return e.Err }

// State of a session
type State int

const (
	AwaitHandshake State = iota
	AwaitRoster
	Running
	Drained
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitHandshake:
		return "await-handshake"
	case AwaitRoster:
		return "await-roster"
	case Running:
		return "running"
	case Drained:
		return "drained"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Controller identifies this program to the simulator
type Controller struct {
	Name    string
	Version string
	Author  string
	Secret  string
	// Limit for the registration of all bots, in addition to the
	// deadline of the context passed to Run.  Zero means no limit.
	RosterTimeout time.Duration
}

// Session drives a single battle over one connection.  A session is
// not safe for concurrent use and can only be run once.
type Session struct {
	ctrl     *Controller
	conn     Conn
	expected []string
	setup    trb.BattleSetup

	state   State
	session string
	roster  map[string][]trb.ParticipantAddress
	results []trb.RawMatchResult
}

// NewSession prepares a battle between the bots EXPECTED
func (c *Controller) NewSession(conn Conn, expected []string, setup trb.BattleSetup) *Session {
	return &Session{
		ctrl:     c,
		conn:     conn,
		expected: expected,
		setup:    setup,
		roster:   make(map[string][]trb.ParticipantAddress),
	}
}

// Run a battle and return the results of all participants.  An empty
// result without an error means that the battle was inconclusive.
func (c *Controller) Run(ctx context.Context, conn Conn, expected []string, setup trb.BattleSetup) ([]trb.RawMatchResult, error) {
	return c.NewSession(conn, expected, setup).Run(ctx)
}

// State returns the current state of the session
func (s *Session) State() State { return s.state }

// Run steps through the session until it has drained or failed
func (s *Session) Run(ctx context.Context) ([]trb.RawMatchResult, error) {
	for {
		var err error
		switch s.state {
		case AwaitHandshake:
			err = s.handshake(ctx)
		case AwaitRoster:
			err = s.await(ctx)
		case Running:
			err = s.drain(ctx)
		case Drained:
			return s.results, nil
		case Failed:
			return nil, errors.New("session already failed")
		}
		if err != nil {
			trb.Debug.Printf("Session %s failed in %s: %s", s.session, s.state, err)
			s.state = Failed
			return nil, err
		}
	}
}

// Translate a context error into a match timeout
func timeout(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(ErrMatchTimeout, err.Error())
	}
	return err
}

func (s *Session) handshake(ctx context.Context) error {
	msg, err := s.conn.Recv(ctx)
	if err != nil {
		return timeout(ctx, errors.Wrap(err, "awaiting handshake"))
	}
	if msg.Type != TypeServerHandshake {
		return &ProtocolError{State: s.state, Got: msg.Type}
	}

	var hs serverHandshake
	if err := msg.Decode(&hs); err != nil {
		return errors.Wrap(err, "malformed handshake")
	}
	s.session = hs.SessionId
	trb.Debug.Printf("Connected to %s %s (session %s)", hs.Name, hs.Version, hs.SessionId)

	err = s.conn.Send(ctx, controllerHandshake{
		Type:      TypeControllerHandshake,
		SessionId: s.session,
		Name:      s.ctrl.Name,
		Version:   s.ctrl.Version,
		Author:    s.ctrl.Author,
		Secret:    s.ctrl.Secret,
	})
	if err != nil {
		return timeout(ctx, errors.Wrap(err, "sending handshake"))
	}

	s.state = AwaitRoster
	return nil
}

// Record the addresses of BOTS, ignoring those already known
func (s *Session) update(bots []botInfo) {
	for _, bot := range bots {
		addr := trb.ParticipantAddress{Host: bot.Host, Port: bot.Port}
		known := false
		for _, a := range s.roster[bot.Name] {
			if a == addr {
				known = true
				break
			}
		}
		if !known {
			s.roster[bot.Name] = append(s.roster[bot.Name], addr)
		}
	}
}

// Assign each expected name an address of its own.  The addresses
// are returned in the order of the expected names, together with all
// names that could not be assigned an address.
func (s *Session) assign() (addrs []trb.ParticipantAddress, missing []string) {
	used := make(map[string]int)
	for _, name := range s.expected {
		i := used[name]
		if i < len(s.roster[name]) {
			addrs = append(addrs, s.roster[name][i])
		} else {
			missing = append(missing, name)
		}
		used[name]++
	}
	return
}

func (s *Session) missing() []string {
	_, missing := s.assign()

	// report each name once
	seen := make(map[string]struct{})
	var names []string
	for _, name := range missing {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Session) await(ctx context.Context) error {
	rctx := ctx
	if s.ctrl.RosterTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, s.ctrl.RosterTimeout)
		defer cancel()
	}

	addrs, missing := s.assign()
	for len(missing) > 0 {
		msg, err := s.conn.Recv(rctx)
		if err != nil {
			if rctx.Err() != nil {
				return &MissingParticipantsError{
					Missing: s.missing(),
					Err:     ErrRosterTimeout,
				}
			}
			if errors.Is(err, ErrClosed) {
				return &MissingParticipantsError{
					Missing: s.missing(),
					Err:     ErrClosed,
				}
			}
			return errors.Wrap(err, "awaiting roster")
		}

		switch msg.Type {
		case TypeBotListUpdate:
			var upd botListUpdate
			if err := msg.Decode(&upd); err != nil {
				return errors.Wrap(err, "malformed bot list")
			}
			s.update(upd.Bots)
			addrs, missing = s.assign()
		default:
			trb.Debug.Printf("Ignoring %s while awaiting roster", msg.Type)
		}
	}

	err := s.conn.Send(ctx, startGame{
		Type:         TypeStartGame,
		BotAddresses: addrs,
		GameSetup:    makeGameSetup(s.setup),
	})
	if err != nil {
		return timeout(ctx, errors.Wrap(err, "starting game"))
	}

	s.state = Running
	return nil
}

func (s *Session) drain(ctx context.Context) error {
	for {
		msg, err := s.conn.Recv(ctx)
		if errors.Is(err, ErrClosed) {
			trb.Debug.Printf("Session %s closed before the battle ended", s.session)
			s.results = nil
			s.state = Drained
			return nil
		} else if err != nil {
			return timeout(ctx, errors.Wrap(err, "awaiting results"))
		}

		switch msg.Type {
		case TypeGameEnded:
			var end gameEnded
			if err := msg.Decode(&end); err != nil {
				return errors.Wrap(err, "malformed results")
			}
			s.results = end.Results
			s.state = Drained
			return nil
		case TypeGameAborted:
			trb.Debug.Printf("Session %s was aborted", s.session)
			s.results = nil
			s.state = Drained
			return nil
		}
	}
}
