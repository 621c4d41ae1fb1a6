// Common types and constants
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
	"fmt"
	"net"
	"strconv"
)

const (
	// Game type tags understood by the simulator
	Duel  = "1v1"
	Melee = "classic"

	// Port the simulator listens on unless told otherwise
	DefaultPort = 7654
)

// An Entrant is a combat program that can be launched for a match.
type Entrant struct {
	// Baseline identifier, empty for the candidate
	Id string
	// Name the program announces to the simulator
	Name string
	// Directory containing the program
	Dir string
}

func (e Entrant) String() string {
	if e.Id != "" && e.Id != e.Name {
		return fmt.Sprintf("%s (%s)", e.Name, e.Id)
	}
	return e.Name
}

// ParticipantAddress identifies a bot that has connected to the
// simulator.
type ParticipantAddress struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (a ParticipantAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// RawMatchResult is the aggregate result of one participant, as
// reported by the simulator when a battle has ended.
type RawMatchResult struct {
	Name              string  `json:"name"`
	TotalScore        float64 `json:"totalScore"`
	BulletDamage      float64 `json:"bulletDamage"`
	BulletDamageBonus float64 `json:"bulletDamageBonus"`
	RamDamage         float64 `json:"ramDamage"`
	RamDamageBonus    float64 `json:"ramDamageBonus"`
	Survival          float64 `json:"survival"`
	LastSurvivorBonus float64 `json:"lastSurvivorBonus"`
}

// BattleSetup describes a single battle.  It is passed by value and
// not modified after it has been built.
type BattleSetup struct {
	GameType           string
	ArenaWidth         int
	ArenaHeight        int
	MinParticipants    int
	MaxParticipants    int
	Rounds             int
	GunCoolingRate     float64
	MaxInactivityTurns int
	TurnTimeout        int
	ReadyTimeout       int
	TurnsPerSecond     int
	Seed               int64
}

// WithSeed returns a copy of the setup using SEED
func (s BattleSetup) WithSeed(seed int64) BattleSetup {
	s.Seed = seed
	return s
}
