// History command
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

	"go-trb/cmd"
	"go-trb/db"
	"go-trb/game"
	"go-trb/score"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var page int

var historyCmd = &cobra.Command{
	Use:   "history [RUN-ID]",
	Short: "List recorded runs, or the matches of a run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if conf.Database.File == "" {
			return errors.New("no database configured")
		}

		st := cmd.MakeState()
		db.Register(st, conf)
		defer st.Shutdown()
		ctx := context.Background()

		if len(args) == 1 {
			mc := make(chan *game.Match)
			go st.Ledger.QueryMatches(ctx, args[0], mc)
			var matches []*game.Match
			for m := range mc {
				matches = append(matches, m)
			}
			if len(matches) == 0 {
				return errors.Errorf("no matches recorded for %s", args[0])
			}
			for _, m := range matches {
				results(os.Stdout, m)
			}
			return nil
		}

		rc := make(chan *score.Report)
		go st.Ledger.QueryRuns(ctx, rc, page)
		var runs []*score.Report
		for r := range rc {
			runs = append(runs, r)
		}
		history(os.Stdout, runs)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&page, "page", 0, "Page of runs to list")
}
