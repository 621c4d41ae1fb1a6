// In-Process Battle Simulator
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

// Package simtest provides a simulator speaking the control protocol
// over real websockets, without simulating any battles.  Bots are
// represented by connections that only perform the handshake.
package simtest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go-trb"
	"go-trb/sched/isol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Start is a battle that a controller requested
type Start struct {
	Names []string
	Seed  int64
	Setup map[string]interface{}
}

// Server is a fake simulator listening on a single port
type Server struct {
	// Score of a participant, defaults to ranking the participants
	// in the order they were passed to StartGame.
	Score func(name string, seed int64) float64
	// Participants left out of the results
	Absent map[string]bool
	// Close the connection instead of reporting results
	Drop bool
	// Never report results
	Hang bool

	port    int
	session string
	srv     *http.Server
	lock    sync.Mutex
	peers   map[*peer]struct{}
	bots    []bot
	ctrls   []*peer
	starts  []Start
}

type bot struct {
	name string
	addr trb.ParticipantAddress
}

// peer serialises writes to a connection
type peer struct {
	c    *websocket.Conn
	lock sync.Mutex
}

func (p *peer) send(v interface{}) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.c.WriteJSON(v)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Listen starts a server on PORT, or on a random port if PORT is 0
func Listen(port int) (*Server, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, errors.Wrap(err, "cannot listen")
	}

	s := &Server{
		port:    ln.Addr().(*net.TCPAddr).Port,
		session: uuid.NewString(),
		peers:   make(map[*peer]struct{}),
	}
	s.srv = &http.Server{Handler: http.HandlerFunc(s.serve)}
	go func() {
		err := s.srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			trb.Debug.Print(err)
		}
	}()
	return s, nil
}

// Port returns the port the server listens on
func (s *Server) Port() int { return s.port }

// URL returns the address bots and controllers connect to
func (s *Server) URL() string { return fmt.Sprintf("ws://localhost:%d", s.port) }

func (s *Server) String() string { return fmt.Sprintf("simtest[%d]", s.port) }

// Starts returns all battles that were requested so far
func (s *Server) Starts() []Start {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]Start(nil), s.starts...)
}

// Stop closes the server and all connections
func (s *Server) Stop() error {
	err := s.srv.Close()

	s.lock.Lock()
	for p := range s.peers {
		p.c.Close()
	}
	s.lock.Unlock()
	return err
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		trb.Debug.Printf("Unable to upgrade connection: %s", err)
		return
	}
	p := &peer{c: c}
	s.lock.Lock()
	s.peers[p] = struct{}{}
	s.lock.Unlock()
	defer func() {
		s.lock.Lock()
		delete(s.peers, p)
		s.lock.Unlock()
		c.Close()
	}()

	err = p.send(map[string]interface{}{
		"type":      "ServerHandshake",
		"sessionId": s.session,
		"name":      "simtest",
		"version":   "0.0.0",
		"gameTypes": []string{trb.Melee, trb.Duel},
	})
	if err != nil {
		return
	}

	var hello struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := c.ReadJSON(&hello); err != nil {
		return
	}
	switch hello.Type {
	case "BotHandshake":
		s.join(p, hello.Name)
		// Wait for the bot to disconnect
		for {
			if _, _, err := c.NextReader(); err != nil {
				return
			}
		}
	case "ControllerHandshake":
		s.control(p)
	default:
		trb.Debug.Printf("Unexpected handshake %q", hello.Type)
	}
}

func (s *Server) update() map[string]interface{} {
	var bots []map[string]interface{}
	for _, b := range s.bots {
		bots = append(bots, map[string]interface{}{
			"name":    b.name,
			"version": "1.0",
			"host":    b.addr.Host,
			"port":    b.addr.Port,
		})
	}
	return map[string]interface{}{"type": "BotListUpdate", "bots": bots}
}

func (s *Server) join(p *peer, name string) {
	addr := p.c.RemoteAddr().(*net.TCPAddr)

	s.lock.Lock()
	s.bots = append(s.bots, bot{
		name: name,
		addr: trb.ParticipantAddress{Host: "127.0.0.1", Port: addr.Port},
	})
	upd := s.update()
	ctrls := append([]*peer(nil), s.ctrls...)
	s.lock.Unlock()

	for _, c := range ctrls {
		c.send(upd)
	}
}

func (s *Server) control(p *peer) {
	s.lock.Lock()
	s.ctrls = append(s.ctrls, p)
	upd := s.update()
	s.lock.Unlock()
	if err := p.send(upd); err != nil {
		return
	}

	for {
		var msg struct {
			Type         string                   `json:"type"`
			BotAddresses []trb.ParticipantAddress `json:"botAddresses"`
			GameSetup    map[string]interface{}   `json:"gameSetup"`
		}
		if err := p.c.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != "StartGame" {
			continue
		}
		if !s.start(p, msg.BotAddresses, msg.GameSetup) {
			return
		}
	}
}

// Run a battle, and return false if the connection should be closed
func (s *Server) start(p *peer, addrs []trb.ParticipantAddress, setup map[string]interface{}) bool {
	seed, _ := setup["seed"].(float64)
	rounds, _ := setup["numberOfRounds"].(float64)

	s.lock.Lock()
	var names []string
	for _, addr := range addrs {
		for _, b := range s.bots {
			if b.addr == addr {
				names = append(names, b.name)
				break
			}
		}
	}
	s.starts = append(s.starts, Start{Names: names, Seed: int64(seed), Setup: setup})
	s.lock.Unlock()

	switch {
	case s.Hang:
		return true
	case s.Drop:
		p.lock.Lock()
		p.c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "dropped"),
			time.Now().Add(time.Second))
		p.lock.Unlock()
		return false
	}

	if err := p.send(map[string]interface{}{"type": "GameStartedEventForObserver"}); err != nil {
		return false
	}

	var results []trb.RawMatchResult
	for i, name := range names {
		if s.Absent[name] {
			continue
		}
		score := float64(100 * (len(names) - i))
		if s.Score != nil {
			score = s.Score(name, int64(seed))
		}
		results = append(results, trb.RawMatchResult{
			Name:         name,
			TotalScore:   score,
			Survival:     score / 2,
			BulletDamage: score / 4,
			RamDamage:    score / 8,
		})
	}
	err := p.send(map[string]interface{}{
		"type":           "GameEndedEventForObserver",
		"numberOfRounds": int(rounds),
		"results":        results,
	})
	return err == nil
}

// Simulator starts a fresh Server for every match
type Simulator struct {
	// Applied to every server before it accepts connections
	Configure func(*Server)

	lock    sync.Mutex
	servers []*Server
}

func (sim *Simulator) Start(opt isol.ServerOptions) (isol.Stopper, error) {
	s, err := Listen(opt.Port)
	if err != nil {
		return nil, err
	}
	if sim.Configure != nil {
		sim.Configure(s)
	}
	sim.lock.Lock()
	sim.servers = append(sim.servers, s)
	sim.lock.Unlock()
	return s, nil
}

// Servers returns every server that was started
func (sim *Simulator) Servers() []*Server {
	sim.lock.Lock()
	defer sim.lock.Unlock()
	return append([]*Server(nil), sim.servers...)
}

// Bots launches bots that connect to the simulator and announce
// their name, but do nothing else.
type Bots struct {
	// Bots that are launched but never connect
	Silent map[string]bool
	// Bots that fail to launch
	Broken map[string]bool
}

type client struct {
	name string
	c    *websocket.Conn
}

func (c *client) String() string { return c.name }

func (c *client) Stop() error {
	if c.c == nil {
		return nil
	}
	return c.c.Close()
}

func (b *Bots) Launch(e trb.Entrant, opt isol.LaunchOptions) (isol.Stopper, error) {
	if b.Broken[e.Name] {
		return nil, &isol.LaunchError{What: "bot", Path: e.Dir, Err: errors.New("broken")}
	}
	if b.Silent[e.Name] {
		return &client{name: e.Name}, nil
	}

	c, _, err := websocket.DefaultDialer.DialContext(context.Background(), opt.URL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "bot %s cannot connect", e.Name)
	}
	var hs struct {
		SessionId string `json:"sessionId"`
	}
	if err := c.ReadJSON(&hs); err != nil {
		c.Close()
		return nil, err
	}
	err = c.WriteJSON(map[string]interface{}{
		"type":      "BotHandshake",
		"sessionId": hs.SessionId,
		"name":      e.Name,
		"version":   "1.0",
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	return &client{name: e.Name, c: c}, nil
}

var (
	_ isol.Simulator = &Simulator{}
	_ isol.Launcher  = &Bots{}
	_ isol.Stopper   = &Server{}
)
