// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/jeranaias/confserve/internal/server"
	"github.com/jeranaias/confserve/internal/store"
	"github.com/jeranaias/confserve/internal/watch"
)

// serveCommand loads the settings file, starts the edit server and keeps
// running until interrupted.
//
// Examples:
//
//	confserve serve --file plugins/Demo/config.yml --port 8888
//	confserve serve --watch=false --title "Demo server"
func serveCommand(st *appState) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the settings file as an editable web page",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen `PORT` (0 picks a free one)"},
			&cli.StringFlag{Name: "host", Usage: "bind `ADDRESS` (default all interfaces)"},
			&cli.StringFlag{Name: "title", Usage: "page title (default the file's directory name)"},
			&cli.BoolFlag{Name: "watch", Usage: "reload the file when it is edited outside confserve"},
			&cli.Float64Flag{Name: "rate-limit", Usage: "requests per second per client, 0 for unlimited"},
		},
		Action: func(c *cli.Context) error {
			cfg := st.cfg
			if c.IsSet("port") {
				cfg.Server.Port = c.Int("port")
			}
			if c.IsSet("host") {
				cfg.Server.Host = c.String("host")
			}
			if c.IsSet("title") {
				cfg.Store.Name = c.String("title")
			}
			if c.IsSet("watch") {
				cfg.Watch.Enabled = c.Bool("watch")
			}
			if c.IsSet("rate-limit") {
				cfg.Server.RateLimit = c.Float64("rate-limit")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return st.serve(ctx)
		},
	}
}

func (st *appState) serve(ctx context.Context) error {
	cfg, logger := st.cfg, st.logger

	var s *store.Store
	onUpdated := func() {
		logger.Info("settings updated from the web page", "path", s.Path(), "keys", s.Len())
	}
	s, err := st.openStore(store.WithOnUpdated(onUpdated))
	if err != nil {
		return newCommandError("serve", "could not load settings", err)
	}

	err = s.StartServerWith(server.Options{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	if err != nil {
		return newCommandError("serve", "could not start the edit server", err)
	}
	defer s.StopServer()

	logger.Info("edit page ready", "link", s.WebLink(), "path", s.Path(), "keys", s.Len())

	if cfg.Watch.Enabled {
		w, err := watch.Start(s, watch.Options{
			Debounce:     cfg.Debounce(),
			PollInterval: cfg.PollInterval(),
			Logger:       logger,
		})
		if err != nil {
			return newCommandError("serve", "could not watch the settings file", err)
		}
		defer w.Close()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
