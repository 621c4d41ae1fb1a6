// Control Protocol Messages
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

package proto

import (
	"encoding/json"

	"go-trb"
)

// Message types exchanged with the simulator
const (
	TypeServerHandshake     = "ServerHandshake"
	TypeControllerHandshake = "ControllerHandshake"
	TypeBotListUpdate       = "BotListUpdate"
	TypeStartGame           = "StartGame"
	TypeGameStarted         = "GameStartedEventForObserver"
	TypeGameEnded           = "GameEndedEventForObserver"
	TypeGameAborted         = "GameAbortedEvent"
)

// Message is a received message, of which only the type has been
// decoded.
type Message struct {
	Type    string
	Payload json.RawMessage
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	m.Type = head.Type
	m.Payload = append(m.Payload[:0], data...)
	return nil
}

// Decode the complete message into V
func (m *Message) Decode(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

type serverHandshake struct {
	SessionId string   `json:"sessionId"`
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	GameTypes []string `json:"gameTypes"`
}

type controllerHandshake struct {
	Type      string `json:"type"`
	SessionId string `json:"sessionId"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	Author    string `json:"author"`
	Secret    string `json:"secret,omitempty"`
}

type botInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type botListUpdate struct {
	Bots []botInfo `json:"bots"`
}

// gameSetup is the battle setup as the simulator expects it.  The
// field order and the lock flags are part of the format.
type gameSetup struct {
	GameType                        string  `json:"gameType"`
	ArenaWidth                      int     `json:"arenaWidth"`
	IsArenaWidthLocked              bool    `json:"isArenaWidthLocked"`
	ArenaHeight                     int     `json:"arenaHeight"`
	IsArenaHeightLocked             bool    `json:"isArenaHeightLocked"`
	MinNumberOfParticipants         int     `json:"minNumberOfParticipants"`
	IsMinNumberOfParticipantsLocked bool    `json:"isMinNumberOfParticipantsLocked"`
	MaxNumberOfParticipants         int     `json:"maxNumberOfParticipants"`
	IsMaxNumberOfParticipantsLocked bool    `json:"isMaxNumberOfParticipantsLocked"`
	NumberOfRounds                  int     `json:"numberOfRounds"`
	IsNumberOfRoundsLocked          bool    `json:"isNumberOfRoundsLocked"`
	GunCoolingRate                  float64 `json:"gunCoolingRate"`
	IsGunCoolingRateLocked          bool    `json:"isGunCoolingRateLocked"`
	MaxInactivityTurns              int     `json:"maxInactivityTurns"`
	IsMaxInactivityTurnsLocked      bool    `json:"isMaxInactivityTurnsLocked"`
	TurnTimeout                     int     `json:"turnTimeout"`
	IsTurnTimeoutLocked             bool    `json:"isTurnTimeoutLocked"`
	ReadyTimeout                    int     `json:"readyTimeout"`
	IsReadyTimeoutLocked            bool    `json:"isReadyTimeoutLocked"`
	DefaultTurnsPerSecond           int     `json:"defaultTurnsPerSecond"`
	Seed                            int64   `json:"seed"`
}

func makeGameSetup(s trb.BattleSetup) gameSetup {
	return gameSetup{
		GameType:                        s.GameType,
		ArenaWidth:                      s.ArenaWidth,
		IsArenaWidthLocked:              true,
		ArenaHeight:                     s.ArenaHeight,
		IsArenaHeightLocked:             true,
		MinNumberOfParticipants:         s.MinParticipants,
		IsMinNumberOfParticipantsLocked: true,
		MaxNumberOfParticipants:         s.MaxParticipants,
		IsMaxNumberOfParticipantsLocked: false,
		NumberOfRounds:                  s.Rounds,
		IsNumberOfRoundsLocked:          true,
		GunCoolingRate:                  s.GunCoolingRate,
		IsGunCoolingRateLocked:          true,
		MaxInactivityTurns:              s.MaxInactivityTurns,
		IsMaxInactivityTurnsLocked:      true,
		TurnTimeout:                     s.TurnTimeout,
		IsTurnTimeoutLocked:             true,
		ReadyTimeout:                    s.ReadyTimeout,
		IsReadyTimeoutLocked:            true,
		DefaultTurnsPerSecond:           s.TurnsPerSecond,
		Seed:                            s.Seed,
	}
}

type startGame struct {
	Type         string                   `json:"type"`
	BotAddresses []trb.ParticipantAddress `json:"botAddresses"`
	GameSetup    gameSetup                `json:"gameSetup"`
}

type gameEnded struct {
	NumberOfRounds int                  `json:"numberOfRounds"`
	Results        []trb.RawMatchResult `json:"results"`
}
