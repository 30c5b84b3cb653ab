// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store implements the key/value configuration store: an ordered
// map of text values with optional per-key comments, typed accessors, the
// line-oriented file format and control of the embedded edit server.
package store

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jeranaias/confserve/internal/server"
	"github.com/jeranaias/confserve/internal/util"
)

// =============================================================================
// TYPES
// =============================================================================

// Setting is one key/value/comment triple.
type Setting struct {
	Key        string
	Value      string
	Comment    string
	HasComment bool
}

// Store holds the settings of one host application and the file they are
// persisted to.
type Store struct {
	path      string
	name      string
	logger    *slog.Logger
	onUpdated func()

	mu       sync.RWMutex
	header   string
	keys     []string // first-set order
	values   map[string]string
	comments map[string]string
	version  uint64
	saves    uint64
	// disk holds the bytes last written or read, so Reload can tell an
	// external edit from the store's own save.
	disk []byte

	srvMu sync.Mutex
	srv   *server.Server
}

// Option configures a Store.
type Option func(*Store)

// WithHeader sets the header line written at the top of the file.
func WithHeader(header string) Option {
	return func(s *Store) { s.header = header }
}

// WithName sets the name shown as the title of the edit page.
func WithName(name string) Option {
	return func(s *Store) { s.name = name }
}

// WithOnUpdated registers the host callback invoked once after every
// web-driven update, after the store has attempted to save.
func WithOnUpdated(fn func()) Option {
	return func(s *Store) { s.onUpdated = fn }
}

// WithLogger sets the logger used for accessor warnings and persistence
// events. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates an empty store backed by path. Nothing is read from disk
// until LoadFromFile is called.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:     path,
		values:   make(map[string]string),
		comments: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.name == "" {
		s.name = defaultName(path)
	}
	return s
}

// defaultName derives a title from the backing path: the directory the
// file lives in ("plugins/Demo/config.yml" -> "Demo"), or the file name.
func defaultName(path string) string {
	dir := filepath.Base(filepath.Dir(path))
	if dir != "." && dir != string(filepath.Separator) && dir != "" {
		return dir
	}
	return filepath.Base(path)
}

// =============================================================================
// ACCESSORS FOR STORE METADATA
// =============================================================================

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Name returns the title used by the edit page.
func (s *Store) Name() string { return s.name }

// Header returns the header line, or "" when none is set.
func (s *Store) Header() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.header
}

// SetHeader replaces the header line.
func (s *Store) SetHeader(header string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = header
	s.version++
}

// Version increases on every mutation. The edit server uses it to decide
// when its cached page is stale.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// =============================================================================
// MUTATION
// =============================================================================

// SetValue stores the canonical text form of value under key, replacing any
// previous value. No type validation happens here.
func (s *Store) SetValue(key string, value any) {
	text := util.ToText(value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, text)
}

// SetValueInfo is SetValue plus SetInfo in one step.
func (s *Store) SetValueInfo(key string, value any, comment string) {
	text := util.ToText(value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, text)
	s.comments[key] = comment
}

// SetInfo sets the comment written above key. The key does not have to
// exist yet; the comment is kept until a value arrives.
func (s *Store) SetInfo(key, comment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[key] = comment
	s.version++
}

func (s *Store) setLocked(key, text string) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = text
	s.version++
}

// =============================================================================
// ENUMERATION
// =============================================================================

// Has reports whether key has a value.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Len returns the number of keys with a value.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Keys returns the keys in first-set order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Comment returns the comment for key, if one was set.
func (s *Store) Comment(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[key]
	return c, ok
}

// Settings returns a snapshot of every setting in first-set order.
func (s *Store) Settings() []Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Setting, 0, len(s.keys))
	for _, k := range s.keys {
		c, hasComment := s.comments[k]
		out = append(out, Setting{Key: k, Value: s.values[k], Comment: c, HasComment: hasComment})
	}
	return out
}

// Range calls fn for every key and value in first-set order until fn
// returns false. fn must not call back into the store.
func (s *Store) Range(fn func(key, value string) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if !fn(k, s.values[k]) {
			return
		}
	}
}

// lookup returns the raw text for key.
func (s *Store) lookup(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}
