// Single match command
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
	"context"
	"os"
	"path/filepath"

	"go-trb"
	"go-trb/game"
	"go-trb/roster"
	"go-trb/sched"
	"go-trb/sched/isol"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	matchType string
	matchSeed int64
)

var matchCmd = &cobra.Command{
	Use:   "match BOT-DIR...",
	Short: "Play a single match",
	Long: "match plays one battle between the bots in the given directories " +
		"and prints the raw results.  The first bot is treated as the candidate.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if matchType != trb.Duel && matchType != trb.Melee {
			return errors.Errorf("unknown game type %q", matchType)
		}
		if matchType == trb.Duel && len(args) != 2 {
			return errors.Errorf("a %s match needs two bots", trb.Duel)
		}

		entrants := make([]trb.Entrant, len(args))
		for i, dir := range args {
			if _, err := isol.EntryPoint(dir); err != nil {
				return err
			}
			entrants[i] = roster.Candidate(dir)
			if i > 0 {
				entrants[i].Id = filepath.Base(dir)
			}
		}

		bc, err := trb.LoadBattleConfig(conf.Battle.Config)
		if err != nil {
			return err
		}
		var opponent string
		if matchType == trb.Duel {
			opponent = entrants[1].Id
		}
		m := game.NewMatch(bc.Setup(matchType, len(entrants), matchSeed), opponent, entrants)

		runner, err := sched.MakeRunner(conf, ".")
		if err != nil {
			return err
		}
		if err = runner.Play(context.Background(), m); err != nil {
			return err
		}

		results(os.Stdout, m)
		if m.Err != nil {
			return m.Err
		}
		return nil
	},
}

func init() {
	matchCmd.Flags().StringVarP(&matchType, "game-type", "g", trb.Duel,
		"Game type (1v1 or classic)")
	matchCmd.Flags().Int64VarP(&matchSeed, "seed", "s", 1,
		"Seed of the battle")
}
