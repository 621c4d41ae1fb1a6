// General Isolation
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

package isol

import (
	"fmt"
	"sync"

	"go-trb"
)

// A Stopper is anything that was started for a match and has to be
// torn down again, be it a process or a container.
type Stopper interface {
	fmt.Stringer
	Stop() error
}

// LaunchOptions tell a bot how to reach the simulator
type LaunchOptions struct {
	Port int
	URL  string
	Log  string
}

// A Launcher starts a combat program for a match
type Launcher interface {
	Launch(trb.Entrant, LaunchOptions) (Stopper, error)
}

// ServerOptions configure a simulator instance
type ServerOptions struct {
	Port      int
	GameTypes []string
	TPS       int
	Log       string
}

// A Simulator starts the battle server
type Simulator interface {
	Start(ServerOptions) (Stopper, error)
}

// RecorderOptions configure a telemetry recorder
type RecorderOptions struct {
	URL string
	Dir string
	Log string
}

// A Recorder starts an observer recording a battle
type Recorder interface {
	Start(RecorderOptions) (Stopper, error)
}

// LaunchError is returned when an executable, a jar or a bot entry
// point is missing.  It is not worth retrying.
type LaunchError struct {
	What string
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("cannot launch %s (%s): %s", e.What, e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Group collects everything started for one match, so that it can be
// shut down with a single deferred call.
type Group struct {
	lock    sync.Mutex
	members []Stopper
}

// Add registers S with the group and returns it
func (g *Group) Add(s Stopper) Stopper {
	g.lock.Lock()
	g.members = append(g.members, s)
	g.lock.Unlock()
	return s
}

// Shutdown stops all members in the reverse order of registration.
// Each member is stopped once, even if Shutdown is called repeatedly.
func (g *Group) Shutdown() (err error) {
	g.lock.Lock()
	members := g.members
	g.members = nil
	g.lock.Unlock()

	for i := len(members) - 1; i >= 0; i-- {
		trb.Debug.Println("Shutting down", members[i])
		if serr := members[i].Stop(); serr != nil {
			if err == nil {
				err = serr
			}
		}
	}
	return
}
