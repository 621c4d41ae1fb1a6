// Terminal output
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

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"go-trb/game"
	"go-trb/score"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(22)
	scoreStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// Print the scores of a report
func summary(w io.Writer, r *score.Report) {
	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s (%s)", r.Candidate, r.BenchmarkId)),
		row("Bot score", scoreStyle.Render(fmt.Sprintf("%.4f", r.BotScore))),
		row("Head-to-head (BPS)", fmt.Sprintf("%.4f", r.BPS)),
		row("Bracket (FPS)", fmt.Sprintf("%.4f", r.FPS)),
		row("Stability (SRS)", fmt.Sprintf("%.4f", r.SRS)),
		row("Crash rate", fmt.Sprintf("%.2f%%", 100*r.CrashRate)),
		row("Matches", fmt.Sprintf("%d played, %d inconclusive",
			r.MatchesPlayed, r.MatchesInconclusive)),
		"",
	}

	ids := make([]string, 0, len(r.PerBaseline))
	for id := range r.PerBaseline {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		b := r.PerBaseline[id]
		lines = append(lines, row(id, fmt.Sprintf("win %.2f  rank %.2f  score %.2f",
			b.WinrateRound, b.AvgRank, b.AvgTotalScore)))
	}
	lines = append(lines, row("Melee rounds", fmt.Sprint(r.FFARounds)))

	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}

// Print the raw results of a match
func results(w io.Writer, m *game.Match) {
	lines := []string{titleStyle.Render(fmt.Sprintf("%s: %s", m, m.Outcome()))}
	if m.Err != nil {
		lines = append(lines, errStyle.Render(m.Err.Error()))
	}
	for i, res := range m.Results {
		lines = append(lines, row(fmt.Sprintf("%d. %s", i+1, res.Name),
			fmt.Sprintf("%.1f (survival %.1f, bullets %.1f, ram %.1f)",
				res.TotalScore, res.Survival, res.BulletDamage, res.RamDamage)))
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}

// Print a list of runs
func history(w io.Writer, runs []*score.Report) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}

	lines := []string{titleStyle.Render("Runs")}
	for _, r := range runs {
		status := errStyle.Render(r.Status)
		if r.Status == score.StatusCompleted {
			status = scoreStyle.Render(fmt.Sprintf("%.4f", r.BotScore))
		}
		lines = append(lines, row(r.RunId[:min(8, len(r.RunId))],
			fmt.Sprintf("%s %s", r.Candidate, status)))
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}
