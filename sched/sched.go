// Match Scheduler
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
	"log"
	"sync"

	"go-trb"
	"go-trb/cmd"
	"go-trb/game"
)

// Scheduler plays matches on a fixed number of workers
type Scheduler struct {
	Runner      *game.Runner
	Concurrency int
	RunId       string

	// Optional
	Ledger  cmd.Ledger
	Monitor cmd.Monitor
}

// Run plays all MATCHES.  If a match fails in a way that makes
// continuing pointless, all remaining matches are skipped and the
// error is returned.
func (s *Scheduler) Run(ctx context.Context, matches []*game.Match) error {
	queue := make(chan *game.Match, len(matches))
	for _, m := range matches {
		queue <- m
	}
	close(queue)

	n := s.Concurrency
	if n < 1 {
		n = 1
	}
	if n > len(matches) {
		n = len(matches)
	}
	trb.Debug.Println("Starting scheduler with", n, "workers for", len(matches), "matches")

	pctx, abort := context.WithCancel(ctx)
	defer abort()

	var (
		wait  sync.WaitGroup
		lock  sync.Mutex
		done  uint
		fatal error
	)
	wait.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wait.Done()
			for m := range queue {
				if err := pctx.Err(); err != nil {
					m.Err = err
					continue
				}

				err := s.Runner.Play(pctx, m)
				if err != nil {
					log.Printf("Aborting after %s: %s", m, err)
					lock.Lock()
					if fatal == nil {
						fatal = err
					}
					lock.Unlock()
					abort()
				}

				if s.Ledger != nil {
					s.Ledger.SaveMatch(ctx, s.RunId, m)
				}
				if s.Monitor != nil {
					s.Monitor.ObserveMatch(m)
				}

				lock.Lock()
				done++
				log.Printf("%d/%d (%s) -> %s", done, len(matches), m, m.Outcome())
				lock.Unlock()
			}
		}()
	}
	wait.Wait()

	return fatal
}
