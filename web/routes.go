// Monitoring routes
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

package web

import (
	"encoding/json"
	"net/http"
	"path"
	"strconv"
	"time"

	"go-trb"
	"go-trb/game"
	"go-trb/score"
)

const PER_PAGE = 50

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		trb.Debug.Print(err)
	}
}

func (s *web) showRuns(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		http.Error(w, "No database configured", http.StatusNotFound)
		return
	}

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	c := make(chan *score.Report, PER_PAGE)
	go s.ledger.QueryRuns(r.Context(), c, page-1)

	runs := []*score.Report{}
	for run := range c {
		runs = append(runs, run)
	}
	writeJSON(w, runs)
}

type match struct {
	Id       string               `json:"id"`
	Name     string               `json:"name"`
	GameType string               `json:"game_type"`
	Opponent string               `json:"opponent,omitempty"`
	Seed     int64                `json:"seed"`
	Attempts int                  `json:"attempts"`
	Outcome  string               `json:"outcome"`
	Error    string               `json:"error,omitempty"`
	Duration float64              `json:"duration,omitempty"`
	Results  []trb.RawMatchResult `json:"results"`
}

func (s *web) showRun(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		http.Error(w, "No database configured", http.StatusNotFound)
		return
	}

	c := make(chan *game.Match)
	go s.ledger.QueryMatches(r.Context(), path.Base(r.URL.Path), c)

	matches := []match{}
	for m := range c {
		v := match{
			Id:       m.Id.String(),
			Name:     m.Name,
			GameType: m.GameType,
			Opponent: m.Opponent,
			Seed:     m.Seed,
			Attempts: m.Attempts,
			Outcome:  m.Outcome(),
			Results:  m.Results,
		}
		if m.Err != nil {
			v.Error = m.Err.Error()
		}
		if !m.Started.IsZero() && m.Finished.After(m.Started) {
			v.Duration = m.Finished.Sub(m.Started).Round(time.Millisecond).Seconds()
		}
		if v.Results == nil {
			v.Results = []trb.RawMatchResult{}
		}
		matches = append(matches, v)
	}
	if len(matches) == 0 {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, matches)
}
