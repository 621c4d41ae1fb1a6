// Benchmark command line interface
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
	"os"

	"go-trb"
	"go-trb/cmd"

	"github.com/spf13/cobra"
)

var (
	confFile string
	debug    bool

	// Loaded before any subcommand runs
	conf *cmd.Conf
)

var rootCmd = &cobra.Command{
	Use:           "bench",
	Short:         "Tank Royale bot benchmark",
	Long:          "bench plays a candidate bot against a roster of baselines and scores the results.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) (err error) {
		if debug {
			trb.Debug.SetOutput(os.Stderr)
			trb.Debug.Println("Debug logging has been enabled")
		}
		conf, err = cmd.Load(confFile, c.Flags())
		return err
	},
}

func init() {
	fs := rootCmd.PersistentFlags()
	fs.StringVar(&confFile, "conf", cmd.DefaultFile, "Configuration file")
	fs.BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Default().Bind(fs)

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(dumpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
