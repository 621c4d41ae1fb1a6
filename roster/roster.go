// Baseline Roster
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

package roster

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go-trb"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Identifier reserved for the multi-participant bracket
const reserved = "ffa"

// Baseline is an opponent the candidate is measured against
type Baseline struct {
	Id        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Path      string   `yaml:"path"`
	GameTypes []string `yaml:"game_types"`
	Role      string   `yaml:"role"`
}

// Plays reports whether the baseline supports GAMETYPE
func (b *Baseline) Plays(gameType string) bool {
	for _, t := range b.GameTypes {
		if t == gameType {
			return true
		}
	}
	return false
}

// Entrant returns the baseline as a launchable program.  The name is
// the one the bot announces itself, read from its configuration.
func (b *Baseline) Entrant() trb.Entrant {
	return trb.Entrant{Id: b.Id, Name: BotName(b.Path), Dir: b.Path}
}

// Manifest lists all baselines of a benchmark
type Manifest struct {
	Version           int        `yaml:"version"`
	MeleeParticipants int        `yaml:"melee_participants"`
	Bots              []Baseline `yaml:"bots"`
}

// LoadManifest reads the manifest NAME.  Relative bot paths are
// resolved against ROOT, or the parent of the manifest directory if
// ROOT is empty.  If VALIDATE is set, every bot directory must exist.
func LoadManifest(name, root string, validate bool) (*Manifest, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "invalid manifest %s", name)
	}

	if root == "" {
		abs, err := filepath.Abs(name)
		if err != nil {
			return nil, err
		}
		root = filepath.Dir(filepath.Dir(abs))
	}
	if m.Version == 0 {
		m.Version = 1
	}

	seen := make(map[string]struct{})
	for i := range m.Bots {
		b := &m.Bots[i]
		switch {
		case b.Id == "":
			return nil, errors.Errorf("bot %d in %s has no id", i+1, name)
		case b.Id == reserved:
			return nil, errors.Errorf("bot id %q is reserved", b.Id)
		case b.Path == "":
			return nil, errors.Errorf("bot %s has no path", b.Id)
		}
		if _, ok := seen[b.Id]; ok {
			return nil, errors.Errorf("duplicate bot id %q", b.Id)
		}
		seen[b.Id] = struct{}{}

		if b.Name == "" {
			b.Name = b.Id
		}
		if b.GameTypes == nil {
			b.GameTypes = []string{trb.Melee, trb.Duel}
		}
		if !filepath.IsAbs(b.Path) {
			b.Path = filepath.Join(root, b.Path)
		}
		if validate {
			if _, err := os.Stat(b.Path); err != nil {
				return nil, errors.Wrapf(err, "baseline %s", b.Id)
			}
		}
	}

	if m.MeleeParticipants == 0 {
		m.MeleeParticipants = len(m.Bots)
		if m.MeleeParticipants < 2 {
			m.MeleeParticipants = 2
		}
	}

	trb.Debug.Printf("Loaded %d baselines from %s", len(m.Bots), name)
	return &m, nil
}

// BotName returns the name a bot announces itself with, as configured
// in bot-config.json.  If there is no such name, the base name of the
// directory is used.
func BotName(dir string) string {
	fallback := filepath.Base(filepath.Clean(dir))

	data, err := os.ReadFile(filepath.Join(dir, "bot-config.json"))
	if err != nil {
		return fallback
	}
	var conf struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &conf); err != nil || conf.Name == "" {
		trb.Debug.Printf("No name in configuration of %s", dir)
		return fallback
	}
	return conf.Name
}

// Candidate returns the program under evaluation in DIR
func Candidate(dir string) trb.Entrant {
	return trb.Entrant{Name: BotName(dir), Dir: dir}
}
