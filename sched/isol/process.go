// Process Supervision
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
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"go-trb"
)

// Grace period used if a Spec doesn't specify one
const DefaultGrace = 5 * time.Second

// Spec describes a process to start
type Spec struct {
	Name  string
	Path  string
	Args  []string
	Dir   string
	Env   []string // in addition to the current environment
	Log   string   // receives stdout and stderr
	Grace time.Duration
}

// Process is a running child process.  All output of the process is
// written to its log file.
type Process struct {
	name  string
	cmd   *exec.Cmd
	log   *os.File
	grace time.Duration

	done chan struct{}
	err  error // exit status, valid after done was closed

	once sync.Once
	serr error
}

// Start launches the process described by SPEC
func Start(spec Spec) (*Process, error) {
	path, err := exec.LookPath(spec.Path)
	if err != nil {
		return nil, &LaunchError{What: spec.Name, Path: spec.Path, Err: err}
	}

	logf := spec.Log
	if logf == "" {
		logf = os.DevNull
	} else if err := os.MkdirAll(filepath.Dir(logf), 0755); err != nil {
		return nil, &LaunchError{What: spec.Name, Path: logf, Err: err}
	}
	file, err := os.Create(logf)
	if err != nil {
		return nil, &LaunchError{What: spec.Name, Path: logf, Err: err}
	}

	cmd := exec.Command(path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdout = file
	cmd.Stderr = file
	setGroup(cmd)

	trb.Debug.Printf("Starting %s: %s %q", spec.Name, path, spec.Args)
	if err := cmd.Start(); err != nil {
		file.Close()
		return nil, &LaunchError{What: spec.Name, Path: path, Err: err}
	}

	p := &Process{
		name:  spec.Name,
		cmd:   cmd,
		log:   file,
		grace: spec.Grace,
		done:  make(chan struct{}),
	}
	if p.grace <= 0 {
		p.grace = DefaultGrace
	}
	go func() {
		p.err = cmd.Wait()
		p.log.Close()
		trb.Debug.Printf("%s exited (%v)", p, p.err)
		close(p.done)
	}()

	return p, nil
}

func (p *Process) String() string {
	return fmt.Sprintf("%s[%d]", p.name, p.cmd.Process.Pid)
}

// Done is closed as soon as the process has exited
func (p *Process) Done() <-chan struct{} { return p.done }

// Err returns the exit status of a process that has exited
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Stop requests the process to terminate, and kills it if it hasn't
// exited after the grace period.  Stopping a process that has already
// exited or was already stopped does nothing.
func (p *Process) Stop() error {
	p.once.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}

		trb.Debug.Println("Terminating", p)
		if err := terminate(p.cmd); err != nil {
			trb.Debug.Print(err)
		}

		timer := time.NewTimer(p.grace)
		defer timer.Stop()
		select {
		case <-p.done:
			return
		case <-timer.C:
		}

		trb.Debug.Println(p, "did not terminate in time, killing")
		p.serr = kill(p.cmd)
		<-p.done
	})
	return p.serr
}

var _ Stopper = &Process{}
