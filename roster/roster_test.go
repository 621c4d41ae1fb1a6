// Baseline roster tests
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
	"os"
	"path/filepath"
	"testing"

	"go-trb"
)

func write(t *testing.T, name, data string) {
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "bots", "rammer", "main.py"), "")
	write(t, filepath.Join(root, "bots", "spinner", "main.py"), "")
	manifest := filepath.Join(root, "baselines", "manifest.yaml")
	write(t, manifest, `
version: 3
bots:
  - id: rammer
    path: bots/rammer
    game_types: [1v1]
  - id: spinner
    name: Spinner
    path: bots/spinner
    role: melee
`)

	m, err := LoadManifest(manifest, "", true)
	if err != nil {
		t.Fatal(err)
	}
	if m.Version != 3 || m.MeleeParticipants != 2 || len(m.Bots) != 2 {
		t.Fatalf("Unexpected manifest %+v", m)
	}

	for i, test := range []struct {
		bot   Baseline
		name  string
		path  string
		duel  bool
		melee bool
	}{
		{m.Bots[0], "rammer", filepath.Join(root, "bots", "rammer"), true, false},
		{m.Bots[1], "Spinner", filepath.Join(root, "bots", "spinner"), true, true},
	} {
		if test.bot.Name != test.name {
			t.Errorf("(%d) Expected name %q, got %q", i, test.name, test.bot.Name)
		}
		if test.bot.Path != test.path {
			t.Errorf("(%d) Expected path %q, got %q", i, test.path, test.bot.Path)
		}
		if test.bot.Plays(trb.Duel) != test.duel || test.bot.Plays(trb.Melee) != test.melee {
			t.Errorf("(%d) Unexpected game types %v", i, test.bot.GameTypes)
		}
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	root := t.TempDir()
	for i, data := range []string{
		"bots:\n  - id: ghost\n    path: bots/ghost\n",
		"bots:\n  - path: bots/anon\n",
		"bots:\n  - id: ffa\n    path: bots/ffa\n",
		"bots:\n  - id: a\n    path: a\n  - id: a\n    path: b\n",
		"bots: [",
	} {
		manifest := filepath.Join(root, "manifest.yaml")
		write(t, manifest, data)
		if _, err := LoadManifest(manifest, root, true); err == nil {
			t.Errorf("(%d) Expected an error", i)
		}
	}
}

func TestMeleeParticipants(t *testing.T) {
	root := t.TempDir()
	manifest := filepath.Join(root, "manifest.yaml")
	for i, test := range []struct {
		data     string
		expected int
	}{
		{"bots:\n  - id: a\n    path: a\n", 2},
		{"bots:\n  - {id: a, path: a}\n  - {id: b, path: b}\n  - {id: c, path: c}\n", 3},
		{"melee_participants: 6\nbots:\n  - {id: a, path: a}\n", 6},
	} {
		write(t, manifest, test.data)
		m, err := LoadManifest(manifest, root, false)
		if err != nil {
			t.Errorf("(%d) Unexpected error: %s", i, err)
			continue
		}
		if m.MeleeParticipants != test.expected {
			t.Errorf("(%d) Expected %d, got %d", i, test.expected, m.MeleeParticipants)
		}
	}
}

func TestBotName(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "named", "bot-config.json"), `{"name": "Serious", "version": "1.0"}`)
	write(t, filepath.Join(root, "broken", "bot-config.json"), `{"name": `)
	write(t, filepath.Join(root, "bare", "main.py"), "")

	for i, test := range []struct {
		dir      string
		expected string
	}{
		{"named", "Serious"},
		{"broken", "broken"},
		{"bare", "bare"},
		{"missing", "missing"},
	} {
		if name := BotName(filepath.Join(root, test.dir)); name != test.expected {
			t.Errorf("(%d) Expected %q, got %q", i, test.expected, name)
		}
	}
}
