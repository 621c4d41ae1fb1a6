// Python bot processes
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
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-trb"
)

// EntryPoint locates the main module of the bot in DIR, relative to
// DIR.
func EntryPoint(dir string) (string, error) {
	for _, entry := range []string{
		"main.py",
		filepath.Join("src", "main.py"),
	} {
		if _, err := os.Stat(filepath.Join(dir, entry)); err == nil {
			return entry, nil
		}
	}
	return "", &LaunchError{
		What: "bot",
		Path: dir,
		Err:  os.ErrNotExist,
	}
}

// Python launches bots as local Python processes
type Python struct {
	Interpreter string
	// Additional entries for PYTHONPATH, e.g. the bot API
	Path  []string
	Grace time.Duration
}

func (py *Python) pythonPath() string {
	var path []string
	for _, p := range append([]string{os.Getenv("PYTHONPATH")}, py.Path...) {
		if p != "" {
			path = append(path, p)
		}
	}
	return strings.Join(path, string(os.PathListSeparator))
}

// Launch starts the bot E and points it to the simulator
func (py *Python) Launch(e trb.Entrant, opt LaunchOptions) (Stopper, error) {
	entry, err := EntryPoint(e.Dir)
	if err != nil {
		return nil, err
	}

	interp := py.Interpreter
	if interp == "" {
		interp = "python3"
	}
	return Start(Spec{
		Name: e.Name,
		Path: interp,
		Args: []string{entry},
		Dir:  e.Dir,
		Env: []string{
			"SERVER_URL=" + opt.URL,
			"PYTHONPATH=" + py.pythonPath(),
		},
		Log:   opt.Log,
		Grace: py.Grace,
	})
}

var _ Launcher = &Python{}
