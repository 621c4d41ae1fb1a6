// Shared State
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

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"

	"go-trb"
	"go-trb/game"
	"go-trb/score"
)

// A Manager is a service running alongside a benchmark run
type Manager interface {
	fmt.Stringer
	Start(*State, *Conf)
	Shutdown()
}

// Ledger records runs and their matches
type Ledger interface {
	Manager

	// Store interface
	StartRun(context.Context, *score.Report)
	FinishRun(context.Context, *score.Report)
	SaveMatch(context.Context, string, *game.Match)

	// Access interface
	QueryRuns(context.Context, chan<- *score.Report, int)
	QueryMatches(context.Context, string, chan<- *game.Match)
}

// Monitor observes completed matches and runs
type Monitor interface {
	Manager

	ObserveMatch(*game.Match)
	ObserveRun(*score.Report)
}

type State struct {
	Context context.Context
	Kill    context.CancelFunc
	Running bool

	Ledger   Ledger
	Monitor  Monitor
	Managers []Manager

	stop context.CancelFunc
	once sync.Once
}

func MakeState() *State {
	ctx, kill := context.WithCancel(context.Background())
	return &State{
		Context: ctx,
		Kill:    kill,
	}
}

func (st *State) Register(m Manager) {
	if st.Running {
		panic(fmt.Sprintf("Late register: %#v", m))
	}

	switch s := m.(type) {
	case Ledger:
		st.Ledger = s
	case Monitor:
		st.Monitor = s
	}

	st.Managers = append(st.Managers, m)
}

// Start all managers and cancel the context of the state on an
// interrupt.
func (st *State) Start(c *Conf) {
	for _, m := range st.Managers {
		trb.Debug.Printf("Starting %s", m)
		go m.Start(st, c)
	}
	st.Running = true

	var ctx context.Context
	ctx, st.stop = signal.NotifyContext(st.Context, os.Interrupt)
	go func() {
		<-ctx.Done()
		if st.Context.Err() == nil {
			log.Println("Caught interrupt")
			st.Kill()
		}
	}()
}

// Shutdown all managers in reverse order of registration
func (st *State) Shutdown() {
	st.once.Do(func() {
		trb.Debug.Println("Waiting for managers to shutdown...")
		for i := len(st.Managers) - 1; i >= 0; i-- {
			m := st.Managers[i]
			trb.Debug.Printf("Shutting %s down", m)
			m.Shutdown()
		}
		st.Kill()
		if st.stop != nil {
			st.stop()
		}
	})
}
