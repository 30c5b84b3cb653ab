// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"github.com/jeranaias/confserve/internal/server"
)

// StartServer starts the edit server on port (0 picks any free port).
// Calling it again while the server is listening does nothing.
func (s *Store) StartServer(port int) error {
	return s.StartServerWith(server.Options{Port: port})
}

// StartServerWith is StartServer with full server options. Title, Logger
// and OnUpdated default to the store's own name, logger and callback.
func (s *Store) StartServerWith(opts server.Options) error {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()

	if s.srv == nil {
		if opts.Title == "" {
			opts.Title = s.name
		}
		if opts.Logger == nil {
			opts.Logger = s.logger
		}
		if opts.OnUpdated == nil {
			opts.OnUpdated = s.onUpdated
		}
		srv, err := server.New(s, opts)
		if err != nil {
			return err
		}
		s.srv = srv
	}
	return s.srv.Start()
}

// StopServer stops the edit server and releases its port. It does nothing
// when no server is running.
func (s *Store) StopServer() {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()

	if s.srv == nil {
		return
	}
	if err := s.srv.Stop(); err != nil {
		s.logger.Warn("config server did not stop cleanly", "error", err)
	}
	s.srv = nil
}

// WebLink returns the URL of the running edit server, or "" when there is
// none.
func (s *Store) WebLink() string {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()

	if s.srv == nil {
		return ""
	}
	link, ok := s.srv.Link()
	if !ok {
		return ""
	}
	return link
}
