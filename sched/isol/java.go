// Simulator and recorder processes
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
	"strings"
	"time"
)

// Java describes the runtime used for the simulator jars
type Java struct {
	Bin   string
	Grace time.Duration
}

func (j Java) bin() string {
	if j.Bin == "" {
		return "java"
	}
	return j.Bin
}

// JavaServer runs the Tank Royale server jar
type JavaServer struct {
	Java
	Jar              string
	InitialPositions bool
}

// Start a server according to OPT
func (s *JavaServer) Start(opt ServerOptions) (Stopper, error) {
	if _, err := os.Stat(s.Jar); err != nil {
		return nil, &LaunchError{What: "server", Path: s.Jar, Err: err}
	}

	args := []string{
		"-jar", s.Jar,
		fmt.Sprintf("--games=%s", strings.Join(opt.GameTypes, ",")),
		fmt.Sprintf("--port=%d", opt.Port),
		fmt.Sprintf("--tps=%d", opt.TPS),
	}
	if s.InitialPositions {
		args = append(args, "--enable-initial-position")
	}
	return Start(Spec{
		Name:  "server",
		Path:  s.bin(),
		Args:  args,
		Log:   opt.Log,
		Grace: s.Grace,
	})
}

// JavaRecorder runs the Tank Royale recorder jar
type JavaRecorder struct {
	Java
	Jar    string
	Secret string
}

// Start a recorder according to OPT
func (r *JavaRecorder) Start(opt RecorderOptions) (Stopper, error) {
	if _, err := os.Stat(r.Jar); err != nil {
		return nil, &LaunchError{What: "recorder", Path: r.Jar, Err: err}
	}

	args := []string{"-jar", r.Jar, fmt.Sprintf("--url=%s", opt.URL)}
	if r.Secret != "" {
		args = append(args, fmt.Sprintf("--secret=%s", r.Secret))
	}
	if opt.Dir != "" {
		if err := os.MkdirAll(opt.Dir, 0755); err != nil {
			return nil, &LaunchError{What: "recorder", Path: opt.Dir, Err: err}
		}
		args = append(args, fmt.Sprintf("--dir=%s", opt.Dir))
	}
	return Start(Spec{
		Name:  "recorder",
		Path:  r.bin(),
		Args:  args,
		Log:   opt.Log,
		Grace: r.Grace,
	})
}

var (
	_ Simulator = &JavaServer{}
	_ Recorder  = &JavaRecorder{}
)
