// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package tsconfig is the process configuration surface: flags and an
// optional TOML overlay, in the shape cmd/tscache hands to the rest of the
// process at start-up.
package tsconfig

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"

	"github.com/erigontech/tscache/internal/resultgen"
)

// Config is the full set of knobs the serve command needs.
type Config struct {
	ListenAddr         string        `toml:"listen_addr"`
	BackendURL         string        `toml:"backend_url"`
	DataDir            string        `toml:"data_dir"`
	Mem                bool          `toml:"mem"`
	MaxRetries         int           `toml:"max_retries"`
	MissingRetryWindow time.Duration `toml:"missing_retry_window"`
	Dev                bool          `toml:"dev"`
}

// Default returns the built-in defaults (spec.md §6: max retries 3, missing
// retry window 2.8 days), before flags or a TOML overlay are applied.
func Default() Config {
	return Config{
		ListenAddr:         ":8090",
		BackendURL:         "",
		DataDir:            "./tscache-data",
		Mem:                false,
		MaxRetries:         3,
		MissingRetryWindow: resultgen.MissingRetryWindow,
		Dev:                false,
	}
}

// Flags returns the urfave/cli/v2 flags that populate cfg's fields via
// Destination pointers, the way the teacher's own cmd packages bind flags
// straight to a config struct instead of re-reading ctx.String after Action
// runs.
func Flags(cfg *Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "listen-addr",
			Usage:       "HTTP listen address",
			Value:       cfg.ListenAddr,
			Destination: &cfg.ListenAddr,
			EnvVars:     []string{"TSCACHE_LISTEN_ADDR"},
		},
		&cli.StringFlag{
			Name:        "backend-url",
			Usage:       "remote analytics backend base URL",
			Value:       cfg.BackendURL,
			Destination: &cfg.BackendURL,
			EnvVars:     []string{"TSCACHE_BACKEND_URL"},
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "mdbx data directory (ignored with --mem)",
			Value:       cfg.DataDir,
			Destination: &cfg.DataDir,
			EnvVars:     []string{"TSCACHE_DATA_DIR"},
		},
		&cli.BoolFlag{
			Name:        "mem",
			Usage:       "use the in-memory store backend instead of mdbx",
			Value:       cfg.Mem,
			Destination: &cfg.Mem,
		},
		&cli.IntFlag{
			Name:        "max-retries",
			Usage:       "max retries on a transient (HTTP 500) remote error",
			Value:       cfg.MaxRetries,
			Destination: &cfg.MaxRetries,
		},
		&cli.DurationFlag{
			Name:        "missing-retry-window",
			Usage:       "how long a recorded negative result suppresses re-fetch",
			Value:       cfg.MissingRetryWindow,
			Destination: &cfg.MissingRetryWindow,
		},
		&cli.BoolFlag{
			Name:        "dev",
			Usage:       "human-readable console logging instead of JSON",
			Value:       cfg.Dev,
			Destination: &cfg.Dev,
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "optional TOML config file overlaying the flags above",
		},
	}
}

// ApplyTOMLOverlay reads path and unmarshals it over cfg, letting a config
// file override flag/default values (spec.md's ambient-stack config layer).
func ApplyTOMLOverlay(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return toml.Unmarshal(raw, cfg)
}
