// Evaluation command
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
	"log"
	"os"
	"path/filepath"

	"go-trb/cmd"
	"go-trb/db"
	"go-trb/sched"
	"go-trb/web"

	"github.com/spf13/cobra"
)

var output string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate WORKSPACE",
	Short: "Benchmark the candidate in a workspace",
	Long: "evaluate plays all duels and melees of the candidate bot in WORKSPACE/bot " +
		"and writes the scores to WORKSPACE/results/metrics.json.",
	Args: cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		workspace := args[0]
		if stat, err := os.Stat(workspace); err != nil {
			return err
		} else if !stat.IsDir() {
			return &os.PathError{Op: "evaluate", Path: workspace, Err: os.ErrInvalid}
		}

		st := cmd.MakeState()
		db.Register(st, conf)
		web.Register(st, conf)
		st.Start(conf)
		defer st.Shutdown()

		b := &sched.Benchmark{Conf: conf, Workspace: workspace}
		report, err := b.Evaluate(st)
		if err != nil {
			return err
		}

		name := output
		if name == "" {
			name = filepath.Join(workspace, "results", "metrics.json")
		}
		if err = report.WriteFile(name); err != nil {
			return err
		}
		log.Printf("Wrote %s", name)

		summary(os.Stdout, report)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVarP(&output, "output", "o", "",
		"Result document (default WORKSPACE/results/metrics.json)")
}
