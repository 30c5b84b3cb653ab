// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/jeranaias/confserve/internal/config"
	"github.com/jeranaias/confserve/internal/store"
)

// Version information, set by main.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// appState is shared by the commands of one App run.
type appState struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewApp builds the confserve command. Output goes to stdout and logs to
// stderr.
func NewApp(stdout, stderr io.Writer) *cli.App {
	st := &appState{}

	return &cli.App{
		Name:      "confserve",
		Usage:     "serve a key/value settings file as an editable web page",
		Version:   fmt.Sprintf("%s (%s)", Version, GitCommit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "host config `FILE` (default ~/.confserve/config.toml)",
				EnvVars: []string{"CONFSERVE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "settings `PATH` to operate on (overrides store.file)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "auto, text or json",
			},
		},
		Before: func(c *cli.Context) error {
			return st.init(c)
		},
		Commands: []*cli.Command{
			serveCommand(st),
			getCommand(st),
			setCommand(st),
			listCommand(st),
			initCommand(),
		},
	}
}

// init loads the host config and applies global flag overrides.
func (st *appState) init(c *cli.Context) error {
	// init must work even when the existing host config is invalid.
	if c.Args().First() == "init" {
		st.cfg = config.Default()
	} else {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return err
		}
		st.cfg = cfg
	}

	if c.IsSet("file") {
		st.cfg.Store.File = c.String("file")
	}
	if c.IsSet("log-level") {
		st.cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		st.cfg.Log.Format = c.String("log-format")
	}
	if err := st.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	st.logger = NewLogger(c.App.ErrWriter, st.cfg.SlogLevel(), st.cfg.Log.Format)
	return nil
}

// openStore creates the store described by the host config and loads it.
func (st *appState) openStore(opts ...store.Option) (*store.Store, error) {
	base := []store.Option{store.WithLogger(st.logger)}
	if st.cfg.Store.Name != "" {
		base = append(base, store.WithName(st.cfg.Store.Name))
	}
	if st.cfg.Store.Header != "" {
		base = append(base, store.WithHeader(st.cfg.Store.Header))
	}

	s := store.New(st.cfg.Store.File, append(base, opts...)...)
	if err := s.LoadFromFile(); err != nil {
		return nil, err
	}
	return s, nil
}
