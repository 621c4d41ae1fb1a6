// Configuration
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

package cmd

import (
	"io"
	"os"
	"runtime"
	"time"

	"go-trb"
	"go-trb/score"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Default name of the configuration file
const DefaultFile = "go-trb.toml"

type SimulatorConf struct {
	Java             string        `toml:"java"`
	ServerJar        string        `toml:"server_jar"`
	RecorderJar      string        `toml:"recorder_jar,omitempty"`
	RecorderSecret   string        `toml:"recorder_secret,omitempty"`
	InitialPositions bool          `toml:"initial_positions"`
	Port             uint          `toml:"port"`
	ReadyTimeout     time.Duration `toml:"ready_timeout"`
	Grace            time.Duration `toml:"grace"`
}

type BotsConf struct {
	// Either "process" or "docker"
	Isolation  string        `toml:"isolation"`
	Python     string        `toml:"python"`
	PythonPath []string      `toml:"python_path"`
	Image      string        `toml:"image"`
	Network    string        `toml:"network"`
	CPUs       float64       `toml:"cpus"`
	MemoryMB   uint          `toml:"memory_mb"`
	Grace      time.Duration `toml:"grace"`
}

type MatchConf struct {
	Timeout       time.Duration `toml:"timeout"`
	RosterTimeout time.Duration `toml:"roster_timeout"`
	Concurrency   uint          `toml:"concurrency"`
	Attempts      uint          `toml:"attempts"`
	// Relative to the workspace
	Logs    string `toml:"logs"`
	Records string `toml:"records,omitempty"`
}

type BattleConf struct {
	Config string `toml:"config"`
}

type BaselinesConf struct {
	Manifest string `toml:"manifest"`
	Root     string `toml:"root,omitempty"`
	Validate bool   `toml:"validate"`
}

type ScoreConf struct {
	Weights            score.Weights `toml:"weights"`
	VarianceNormalizer float64       `toml:"variance_normalizer"`
}

type DatabaseConf struct {
	File string `toml:"file"`
}

type MetricsConf struct {
	Addr string `toml:"addr"`
}

type ControllerConf struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Author  string `toml:"author"`
}

// Conf is the configuration of a benchmark run
type Conf struct {
	BenchmarkId string         `toml:"benchmark_id"`
	Seeds       []int64        `toml:"seeds"`
	Simulator   SimulatorConf  `toml:"simulator"`
	Bots        BotsConf       `toml:"bots"`
	Match       MatchConf      `toml:"match"`
	Battle      BattleConf     `toml:"battle"`
	Baselines   BaselinesConf  `toml:"baselines"`
	Score       ScoreConf      `toml:"score"`
	Database    DatabaseConf   `toml:"database"`
	Metrics     MetricsConf    `toml:"metrics"`
	Controller  ControllerConf `toml:"controller"`
}

// Configuration object used by default
var defaultConfig = Conf{
	BenchmarkId: "tank-royale",
	Simulator: SimulatorConf{
		Java:         "java",
		ServerJar:    "tools/bin/robocode-tankroyale-server.jar",
		Port:         trb.DefaultPort,
		ReadyTimeout: 10 * time.Second,
		Grace:        5 * time.Second,
	},
	Bots: BotsConf{
		Isolation: "process",
		Python:    "python3",
		Image:     "python:3.11-slim",
		Network:   "host",
		CPUs:      1,
		MemoryMB:  512,
		Grace:     5 * time.Second,
	},
	Match: MatchConf{
		Timeout:     300 * time.Second,
		Concurrency: uint(runtime.NumCPU()/4 + 1),
		Attempts:    3,
		Logs:        "logs/matches",
	},
	Battle: BattleConf{
		Config: "server/battle-config.json",
	},
	Baselines: BaselinesConf{
		Manifest: "baselines/manifest.yaml",
		Validate: true,
	},
	Score: ScoreConf{
		Weights:            score.DefaultWeights,
		VarianceNormalizer: 1,
	},
	Metrics: MetricsConf{},
	Controller: ControllerConf{
		Name:    "bench-controller",
		Version: "0.1",
		Author:  "bench",
	},
}

// Default returns a copy of the default configuration
func Default() *Conf {
	c := defaultConfig
	c.Seeds = append([]int64(nil), defaultConfig.Seeds...)
	return &c
}

// Bind registers command line flags for C on FS
func (c *Conf) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&c.BenchmarkId, "benchmark", c.BenchmarkId,
		"Identifier of the benchmark")
	fs.Int64SliceVar(&c.Seeds, "seeds", c.Seeds,
		"Seeds to play every bracket with")
	fs.StringVar(&c.Simulator.ServerJar, "server-jar", c.Simulator.ServerJar,
		"Path to the simulator jar")
	fs.StringVar(&c.Simulator.RecorderJar, "recorder-jar", c.Simulator.RecorderJar,
		"Path to the recorder jar")
	fs.StringVar(&c.Simulator.Java, "java", c.Simulator.Java,
		"Java runtime to start the simulator with")
	fs.UintVar(&c.Simulator.Port, "port", c.Simulator.Port,
		"Preferred simulator port")
	fs.StringVar(&c.Bots.Isolation, "isolation", c.Bots.Isolation,
		"Bot isolation (process or docker)")
	fs.StringVar(&c.Bots.Python, "python", c.Bots.Python,
		"Python interpreter for bots")
	fs.DurationVar(&c.Match.Timeout, "timeout", c.Match.Timeout,
		"Deadline of a single match")
	fs.UintVar(&c.Match.Concurrency, "concurrency", c.Match.Concurrency,
		"Number of matches to run in parallel")
	fs.StringVar(&c.Battle.Config, "battle-config", c.Battle.Config,
		"Battle configuration, relative to the workspace")
	fs.StringVar(&c.Baselines.Manifest, "baselines", c.Baselines.Manifest,
		"Baseline manifest")
	fs.StringVar(&c.Database.File, "db", c.Database.File,
		"Database to record matches in")
	fs.StringVar(&c.Metrics.Addr, "metrics", c.Metrics.Addr,
		"Address to serve metrics on")
}

// Load reads the configuration file NAME.  A missing default file is
// not an error.  Flags changed on FS take precedence over the file.
func Load(name string, fs *pflag.FlagSet) (*Conf, error) {
	c := Default()

	file, err := os.Open(name)
	if err != nil {
		if !os.IsNotExist(err) || name != DefaultFile {
			return nil, err
		}
		trb.Debug.Printf("No configuration file %s", name)
	} else {
		defer file.Close()
		_, err = toml.NewDecoder(file).Decode(c)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid configuration %s", name)
		}
	}

	if fs != nil {
		over := pflag.NewFlagSet("", pflag.ContinueOnError)
		c.Bind(over)
		var ferr error
		fs.Visit(func(f *pflag.Flag) {
			o := over.Lookup(f.Name)
			if o == nil {
				return
			}
			var err error
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				err = o.Value.(pflag.SliceValue).Replace(sv.GetSlice())
			} else {
				err = over.Set(f.Name, f.Value.String())
			}
			if err != nil && ferr == nil {
				ferr = err
			}
		})
		if ferr != nil {
			return nil, ferr
		}
	}

	return c, nil
}

// Serialise the configuration into a writer
func (c *Conf) Dump(wr io.Writer) error {
	return toml.NewEncoder(wr).Encode(c)
}
