// Battle controller tests
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
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"go-trb"

	"github.com/pkg/errors"
)

// script is a connection replaying prepared messages.  If EOF is
// set, the connection is closed after the last message, otherwise it
// blocks.
type script struct {
	in   chan string
	lock sync.Mutex
	out  []string
}

func play(eof bool, msgs ...string) *script {
	s := &script{in: make(chan string, len(msgs))}
	for _, m := range msgs {
		s.in <- m
	}
	if eof {
		close(s.in)
	}
	return s
}

func (s *script) Recv(ctx context.Context) (*Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-s.in:
		if !ok {
			return nil, ErrClosed
		}
		var msg Message
		return &msg, json.Unmarshal([]byte(data), &msg)
	}
}

func (s *script) Send(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.lock.Lock()
	s.out = append(s.out, string(data))
	s.lock.Unlock()
	return nil
}

func (s *script) Close() error { return nil }

const (
	handshake = `{"type":"ServerHandshake","sessionId":"s1","name":"server","version":"0.30"}`
	ended     = `{"type":"GameEndedEventForObserver","numberOfRounds":10,"results":[
		{"name":"A","totalScore":120.5,"survival":50},
		{"name":"B","totalScore":80}]}`
)

var ctrl = &Controller{Name: "bench-controller", Version: "0.1", Author: "bench"}

var setup = trb.BattleSetup{
	GameType:           trb.Duel,
	ArenaWidth:         800,
	ArenaHeight:        600,
	MinParticipants:    2,
	MaxParticipants:    2,
	Rounds:             10,
	GunCoolingRate:     0.1,
	MaxInactivityTurns: 450,
	TurnTimeout:        40,
	ReadyTimeout:       10000,
	TurnsPerSecond:     60,
	Seed:               42,
}

func TestRun(t *testing.T) {
	conn := play(false,
		handshake,
		`{"type":"BotListUpdate","bots":[{"name":"B","host":"127.0.0.1","port":5002}]}`,
		`{"type":"TickEventForObserver","turnNumber":1}`,
		`{"type":"BotListUpdate","bots":[{"name":"B","host":"127.0.0.1","port":5002},{"name":"A","host":"127.0.0.1","port":5001}]}`,
		`{"type":"GameStartedEventForObserver"}`,
		ended)

	sess := ctrl.NewSession(conn, []string{"A", "B"}, setup)
	results, err := sess.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sess.State() != Drained {
		t.Errorf("Expected state %s, got %s", Drained, sess.State())
	}
	if len(results) != 2 || results[0].Name != "A" || results[0].TotalScore != 120.5 {
		t.Errorf("Unexpected results %+v", results)
	}

	if len(conn.out) != 2 {
		t.Fatalf("Expected two messages, got %q", conn.out)
	}
	var hs map[string]interface{}
	if err := json.Unmarshal([]byte(conn.out[0]), &hs); err != nil {
		t.Fatal(err)
	}
	if hs["type"] != "ControllerHandshake" || hs["sessionId"] != "s1" || hs["name"] != "bench-controller" {
		t.Errorf("Unexpected handshake %s", conn.out[0])
	}

	var start struct {
		Type         string                   `json:"type"`
		BotAddresses []trb.ParticipantAddress `json:"botAddresses"`
		GameSetup    map[string]interface{}   `json:"gameSetup"`
	}
	if err := json.Unmarshal([]byte(conn.out[1]), &start); err != nil {
		t.Fatal(err)
	}
	if start.Type != "StartGame" {
		t.Errorf("Expected StartGame, got %q", start.Type)
	}
	if len(start.BotAddresses) != 2 ||
		start.BotAddresses[0].Port != 5001 ||
		start.BotAddresses[1].Port != 5002 {
		t.Errorf("Addresses not in expected order: %+v", start.BotAddresses)
	}
	for key, val := range map[string]interface{}{
		"gameType":                        "1v1",
		"arenaWidth":                      800.0,
		"isArenaWidthLocked":              true,
		"minNumberOfParticipants":         2.0,
		"isMaxNumberOfParticipantsLocked": false,
		"numberOfRounds":                  10.0,
		"gunCoolingRate":                  0.1,
		"readyTimeout":                    10000.0,
		"defaultTurnsPerSecond":           60.0,
		"seed":                            42.0,
	} {
		if start.GameSetup[key] != val {
			t.Errorf("Expected %s to be %v, got %v", key, val, start.GameSetup[key])
		}
	}
	if !strings.HasPrefix(conn.out[1], `{"type":"StartGame","botAddresses":[{"host":"127.0.0.1","port":5001}`) {
		t.Errorf("Unexpected encoding %s", conn.out[1])
	}
}

func TestUnexpectedFirstMessage(t *testing.T) {
	conn := play(false, `{"type":"BotListUpdate","bots":[]}`)
	sess := ctrl.NewSession(conn, []string{"A"}, setup)
	_, err := sess.Run(context.Background())

	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected a protocol error, got %v", err)
	}
	if perr.Got != "BotListUpdate" {
		t.Errorf("Expected %q, got %q", "BotListUpdate", perr.Got)
	}
	if sess.State() != Failed {
		t.Errorf("Expected state %s, got %s", Failed, sess.State())
	}
}

func TestMissingParticipants(t *testing.T) {
	for i, test := range []struct {
		close bool
		cause error
	}{
		{close: false, cause: ErrRosterTimeout},
		{close: true, cause: ErrClosed},
	} {
		conn := play(test.close,
			handshake,
			`{"type":"BotListUpdate","bots":[{"name":"A","host":"localhost","port":5001}]}`,
			`{"type":"BotListUpdate","bots":[{"name":"A","host":"localhost","port":5001}]}`)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		_, err := ctrl.Run(ctx, conn, []string{"A", "B"}, setup)
		cancel()

		var merr *MissingParticipantsError
		if !errors.As(err, &merr) {
			t.Errorf("(%d) Expected missing participants, got %v", i, err)
			continue
		}
		if len(merr.Missing) != 1 || merr.Missing[0] != "B" {
			t.Errorf("(%d) Expected B to be missing, got %v", i, merr.Missing)
		}
		if !errors.Is(err, test.cause) {
			t.Errorf("(%d) Expected %v, got %v", i, test.cause, err)
		}
	}
}

func TestRosterTimeout(t *testing.T) {
	conn := play(false, handshake)
	c := *ctrl
	c.RosterTimeout = 50 * time.Millisecond

	_, err := c.Run(context.Background(), conn, []string{"A"}, setup)
	if !errors.Is(err, ErrRosterTimeout) {
		t.Errorf("Expected a roster timeout, got %v", err)
	}
}

func TestDuplicateNames(t *testing.T) {
	conn := play(false,
		handshake,
		`{"type":"BotListUpdate","bots":[{"name":"A","host":"h","port":1},{"name":"S","host":"h","port":2}]}`,
		`{"type":"BotListUpdate","bots":[{"name":"A","host":"h","port":1},{"name":"S","host":"h","port":2},{"name":"S","host":"h","port":3}]}`,
		ended)

	melee := setup
	melee.GameType = trb.Melee
	melee.MaxParticipants = 3
	if _, err := ctrl.Run(context.Background(), conn, []string{"A", "S", "S"}, melee); err != nil {
		t.Fatal(err)
	}

	var start startGame
	if err := json.Unmarshal([]byte(conn.out[1]), &start); err != nil {
		t.Fatal(err)
	}
	ports := []int{1, 2, 3}
	if len(start.BotAddresses) != len(ports) {
		t.Fatalf("Expected %d addresses, got %+v", len(ports), start.BotAddresses)
	}
	for i, port := range ports {
		if start.BotAddresses[i].Port != port {
			t.Errorf("(%d) Expected port %d, got %d", i, port, start.BotAddresses[i].Port)
		}
	}
}

func TestInconclusive(t *testing.T) {
	roster := `{"type":"BotListUpdate","bots":[{"name":"A","host":"h","port":1}]}`
	for i, test := range []struct {
		msgs []string
	}{
		{msgs: []string{handshake, roster}},
		{msgs: []string{handshake, roster, `{"type":"GameAbortedEvent"}`}},
		{msgs: []string{handshake, roster, `{"type":"RoundEndedEventForObserver"}`}},
	} {
		sess := ctrl.NewSession(play(true, test.msgs...), []string{"A"}, setup)
		results, err := sess.Run(context.Background())
		if err != nil {
			t.Errorf("(%d) Unexpected error: %s", i, err)
		}
		if len(results) != 0 {
			t.Errorf("(%d) Expected no results, got %+v", i, results)
		}
		if sess.State() != Drained {
			t.Errorf("(%d) Expected state %s, got %s", i, Drained, sess.State())
		}
	}
}

func TestMatchTimeout(t *testing.T) {
	conn := play(false,
		handshake,
		`{"type":"BotListUpdate","bots":[{"name":"A","host":"h","port":1}]}`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := ctrl.Run(ctx, conn, []string{"A"}, setup)
	if !errors.Is(err, ErrMatchTimeout) {
		t.Errorf("Expected a match timeout, got %v", err)
	}
}
