// Configuration dump
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
	"os"

	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump-config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		return conf.Dump(os.Stdout)
	},
}
