// Battle configuration
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

package trb

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

// BattleConfig is the pinned battle configuration shared by all
// matches of a benchmark run.  The file format is the one used by the
// Tank Royale GUI, which is why it is JSON and not TOML.
type BattleConfig struct {
	Battlefield struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"battlefield"`
	MinParticipants    *int    `json:"minNumberOfParticipants,omitempty"`
	Rounds             int     `json:"numberOfRounds"`
	GunCoolingRate     float64 `json:"gunCoolingRate"`
	MaxInactivityTurns int     `json:"maxInactivityTurns"`
	TurnTimeout        int     `json:"turnTimeout"`
	ReadyTimeout       int     `json:"readyTimeout"`
	TurnsPerSecond     int     `json:"turnsPerSecond"`
}

// DefaultBattleConfig returns the configuration used for all keys
// missing from a battle configuration file.
func DefaultBattleConfig() BattleConfig {
	var bc BattleConfig
	bc.Battlefield.Width = 800
	bc.Battlefield.Height = 600
	bc.Rounds = 10
	bc.GunCoolingRate = 0.1
	bc.MaxInactivityTurns = 450
	bc.TurnTimeout = 40
	bc.ReadyTimeout = 10000
	bc.TurnsPerSecond = 60
	return bc
}

// ParseBattleConfig decodes a battle configuration from R
func ParseBattleConfig(r io.Reader) (*BattleConfig, error) {
	bc := DefaultBattleConfig()
	if err := json.NewDecoder(r).Decode(&bc); err != nil {
		return nil, errors.Wrap(err, "invalid battle configuration")
	}
	return &bc, nil
}

// LoadBattleConfig opens and parses the battle configuration NAME
func LoadBattleConfig(name string) (*BattleConfig, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseBattleConfig(file)
}

// Setup derives the setup of a single battle for GAMETYPE with
// PARTICIPANTS bots, seeded with SEED.
func (bc *BattleConfig) Setup(gameType string, participants int, seed int64) BattleSetup {
	min := participants
	if min < 2 {
		min = 2
	}
	if bc.MinParticipants != nil {
		min = *bc.MinParticipants
	}

	return BattleSetup{
		GameType:           gameType,
		ArenaWidth:         bc.Battlefield.Width,
		ArenaHeight:        bc.Battlefield.Height,
		MinParticipants:    min,
		MaxParticipants:    participants,
		Rounds:             bc.Rounds,
		GunCoolingRate:     bc.GunCoolingRate,
		MaxInactivityTurns: bc.MaxInactivityTurns,
		TurnTimeout:        bc.TurnTimeout,
		ReadyTimeout:       bc.ReadyTimeout,
		TurnsPerSecond:     bc.TurnsPerSecond,
		Seed:               seed,
	}
}
