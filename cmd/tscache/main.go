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

// Command tscache runs the timeseries cache and request coalescer as a
// standalone HTTP service.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/erigontech/tscache/internal/api"
	"github.com/erigontech/tscache/internal/coalesce"
	"github.com/erigontech/tscache/internal/kv"
	"github.com/erigontech/tscache/internal/kv/mdbxdb"
	"github.com/erigontech/tscache/internal/kv/memdb"
	"github.com/erigontech/tscache/internal/resultchannel"
	"github.com/erigontech/tscache/internal/resultgen"
	"github.com/erigontech/tscache/internal/tsconfig"
	"github.com/erigontech/tscache/internal/tslog"
	"github.com/erigontech/tscache/internal/tsstore"
	"github.com/erigontech/tscache/internal/transport"
)

const version = "0.1.0"

func main() {
	cfg := tsconfig.Default()

	app := &cli.App{
		Name:  "tscache",
		Usage: "client-side timeseries cache and request coalescer",
		Commands: []*cli.Command{
			serveCommand(&cfg),
			{
				Name:  "version",
				Usage: "print the build version",
				Action: func(*cli.Context) error {
					fmt.Println(version)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCommand(cfg *tsconfig.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP server",
		Flags: tsconfig.Flags(cfg),
		Action: func(c *cli.Context) error {
			if path := c.String("config"); path != "" {
				if err := tsconfig.ApplyTOMLOverlay(path, cfg); err != nil {
					return fmt.Errorf("applying config overlay: %w", err)
				}
			}
			return serve(*cfg)
		},
	}
}

func serve(cfg tsconfig.Config) error {
	logger, err := tslog.New(cfg.Dev)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	opener, err := storeOpener(cfg)
	if err != nil {
		return err
	}
	manager := tsstore.NewManager(opener)
	defer manager.Close() //nolint:errcheck

	server := &api.Server{
		Manager: manager,
		GenOpts: resultgen.Options{
			BackendURL:         cfg.BackendURL,
			Fetcher:            transport.NewHTTPFetcher(nil),
			Registry:           coalesce.NewRegistry(),
			Logger:             logger,
			MaxRetries:         cfg.MaxRetries,
			MissingRetryWindow: cfg.MissingRetryWindow,
		},
		Hub:    resultchannel.NewHub(),
		Logger: logger,
	}

	logger.Infow("starting tscache", "addr", cfg.ListenAddr, "mem", cfg.Mem, "backend", cfg.BackendURL)
	return http.ListenAndServe(cfg.ListenAddr, server.Router())
}

// storeOpener selects memdb (in-process, for --mem / local runs) or mdbxdb
// (the production embedded engine) as the kv.RwDB backend, one database per
// identity store name under cfg.DataDir.
func storeOpener(cfg tsconfig.Config) (tsstore.Opener, error) {
	if cfg.Mem {
		return func(string) (kv.RwDB, error) {
			return memdb.Open(tsstore.Tables()), nil
		}, nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return func(storeName string) (kv.RwDB, error) {
		dir := cfg.DataDir + "/" + sanitizeStoreName(storeName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		return mdbxdb.Open(dir, tsstore.Tables())
	}, nil
}

func sanitizeStoreName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '/' {
			c = '_'
		}
		out[i] = c
	}
	return string(out)
}
