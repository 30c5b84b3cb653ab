// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

var errMalformedForm = errors.New("malformed form body")

// handleIndex serves the edit page for every method. A request body is
// decoded as a form and applied before the page is written. The response
// is always 200 with the current page so the browser stays on the form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	values, err := s.readForm(w, r)
	switch {
	case err != nil:
		s.logger.Warn("ignoring form submission",
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
	case len(values) > 0:
		s.applyLocked(r, values)
	}

	if s.saveErr != nil && s.backend.Saves() != s.saveErrAt {
		s.saveErr = nil
		s.rendered = false
	}
	if s.stale() {
		s.refreshLocked()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(s.page)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(s.page)
	}
}

func (s *Server) readForm(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return parseForm(string(body))
}

// parseForm decodes an application/x-www-form-urlencoded body. When a key
// repeats the last value wins, which turns the hidden "false" field plus a
// ticked checkbox into "true". Pairs without '=' or with an empty key make
// the whole body malformed.
func parseForm(body string) (url.Values, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		k, _, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: pair %q", errMalformedForm, pair)
		}
	}
	values, err := url.ParseQuery(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedForm, err)
	}
	return values, nil
}

// applyLocked writes the submitted values into the backend, saves it and
// notifies the host. New keys are added in sorted order. Pairs the backend
// refuses are skipped and listed in the page banner; when nothing is left
// to apply there is no save and no callback.
func (s *Server) applyLocked(r *http.Request, values url.Values) {
	log := s.logger.With("request_id", RequestIDFromContext(r.Context()))

	var (
		applied  int
		rejected []error
	)
	for _, k := range slices.Sorted(maps.Keys(values)) {
		vs := values[k]
		v := vs[len(vs)-1]
		if err := s.backend.CheckSetting(k, v); err != nil {
			log.Warn("config value rejected from web", "key", k, "error", err)
			rejected = append(rejected, err)
			continue
		}
		s.backend.SetValue(k, v)
		applied++
	}
	s.rejectErr = errors.Join(rejected...)

	if applied > 0 {
		if err := s.backend.Save(); err != nil {
			log.Error("config save failed after web update", "error", err)
			s.saveErr = err
			s.saveErrAt = s.backend.Saves()
		} else {
			s.saveErr = nil
		}
		log.Info("config updated from web", "keys", applied, "rejected", len(rejected), "client", GetClientIP(r))
		s.notify(log)
	}

	s.refreshLocked()
}

func (s *Server) notify(log *slog.Logger) {
	if s.opts.OnUpdated == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("config update callback panicked", "panic", rec)
		}
	}()
	s.opts.OnUpdated()
}

// ============================================================================
// PAGE CACHE
// ============================================================================

func (s *Server) stale() bool {
	return !s.rendered || s.backend.Version() != s.pageVersion
}

// refreshLocked re-renders the cached page from the backend.
func (s *Server) refreshLocked() {
	version := s.backend.Version()

	var fields []Field
	s.backend.Range(func(key, value string) bool {
		fields = append(fields, Field{Key: key, Value: value})
		return true
	})

	s.page = []byte(RenderPage(s.template, s.opts.Title, fields, errors.Join(s.rejectErr, s.saveErr)))
	s.pageVersion = version
	s.rendered = true
}
