// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/jeranaias/confserve/internal/util"
)

// On-disk format, one setting per line:
//
//	#	<header>          only when a header is set, followed by a blank line
//
//	#<comment>          only when the key has a comment
//	key: value
//
// Blank lines and '#' lines may appear anywhere. A '#' line directly above
// a data line is read back as that key's comment.

const filePerm = 0644

// =============================================================================
// SAVE
// =============================================================================

// Save writes every setting to the backing file, replacing it atomically.
// Parent directories are created as needed.
func (s *Store) Save() error {
	s.mu.RLock()
	data := s.encodeLocked()
	s.mu.RUnlock()

	if err := util.AtomicWriteFile(s.path, data, filePerm); err != nil {
		return fmt.Errorf("save config %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.disk = data
	s.saves++
	s.mu.Unlock()

	s.logger.Debug("config saved", "path", s.path, "bytes", len(data))
	return nil
}

func (s *Store) encodeLocked() []byte {
	var buf bytes.Buffer
	if s.header != "" {
		buf.WriteString("#\t")
		buf.WriteString(s.header)
		buf.WriteString("\n\n")
	}
	for _, k := range s.keys {
		v := s.values[k]
		if !reloadable(k, v) {
			s.logger.Warn("config value will not survive a reload",
				"path", s.path,
				"key", k,
				"hint", "keys and values must not contain ':' or line breaks",
			)
		}
		if c, ok := s.comments[k]; ok {
			buf.WriteString("#")
			buf.WriteString(c)
			buf.WriteString("\n")
		}
		buf.WriteString(k)
		buf.WriteString(": ")
		buf.WriteString(v)
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

func reloadable(key, value string) bool {
	return checkSetting(key, value) == nil && strings.TrimSpace(key) == key &&
		strings.TrimSpace(value) == value
}

// checkSetting reports whether key and value would survive a save and
// reload. A ':' or line break in either, an empty key or a key starting
// with '#' would make the file unreadable or lose the setting.
// Surrounding whitespace is allowed; it is trimmed on load.
func checkSetting(key, value string) error {
	k := strings.TrimSpace(key)
	switch {
	case k == "":
		return fmt.Errorf("%w: empty key", ErrNotStorable)
	case strings.HasPrefix(k, "#"):
		return fmt.Errorf("%w: key %q starts with '#'", ErrNotStorable, key)
	case strings.ContainsAny(key, ":\r\n"):
		return fmt.Errorf("%w: key %q contains ':' or a line break", ErrNotStorable, key)
	case strings.ContainsAny(value, ":\r\n"):
		return fmt.Errorf("%w: value of %q contains ':' or a line break", ErrNotStorable, key)
	}
	return nil
}

// CheckSetting returns an error matching ErrNotStorable when key and value
// would not survive a save and reload. The edit server calls it before
// applying submitted values.
func (s *Store) CheckSetting(key, value string) error {
	return checkSetting(key, value)
}

// Saves returns the number of successful saves.
func (s *Store) Saves() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// =============================================================================
// LOAD
// =============================================================================

// LoadFromFile reads the backing file and applies every setting in it on
// top of the current contents. A missing file is not an error; the store
// is left as it is.
func (s *Store) LoadFromFile() error {
	data, ok, err := util.ReadFileIfExists(s.path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", s.path, err)
	}
	if !ok {
		s.logger.Debug("config file not created yet, skipping load", "path", s.path)
		return nil
	}
	return s.apply(data)
}

// Reload re-reads the backing file when its content differs from what the
// store last wrote or read. It reports whether anything was applied.
func (s *Store) Reload() (bool, error) {
	data, ok, err := util.ReadFileIfExists(s.path)
	if err != nil {
		return false, fmt.Errorf("reload config %s: %w", s.path, err)
	}
	if !ok {
		return false, nil
	}

	s.mu.RLock()
	same := bytes.Equal(data, s.disk)
	s.mu.RUnlock()
	if same {
		return false, nil
	}

	if err := s.apply(data); err != nil {
		return false, err
	}
	return true, nil
}

// apply parses data completely before touching the store, so a malformed
// file leaves the settings unchanged.
func (s *Store) apply(data []byte) error {
	doc, err := parse(s.path, data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.hasHeader {
		s.header = doc.header
	}
	for _, e := range doc.entries {
		s.setLocked(e.Key, e.Value)
		if e.HasComment {
			s.comments[e.Key] = e.Comment
		}
	}
	s.disk = data
	s.version++

	s.logger.Debug("config loaded", "path", s.path, "keys", len(doc.entries))
	return nil
}

type document struct {
	header    string
	hasHeader bool
	entries   []Setting
}

func parse(path string, data []byte) (*document, error) {
	doc := &document{}

	var (
		lineNo     int
		pending    string
		hasPending bool
		// a "#\t" first line becomes the header once a blank line follows it
		firstLine string
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		raw := strings.TrimSuffix(sc.Text(), "\r")
		line := strings.TrimSpace(raw)

		switch lineNo {
		case 1:
			firstLine = raw
		case 2:
			if line == "" && strings.HasPrefix(firstLine, "#\t") {
				doc.header = strings.TrimPrefix(firstLine, "#\t")
				doc.hasHeader = true
			}
		}

		switch {
		case line == "":
			hasPending = false
		case strings.HasPrefix(line, "#"):
			// only leading indentation is dropped so comments round-trip
			pending = strings.TrimLeft(raw, " \t")[1:]
			hasPending = true
		default:
			parts := strings.Split(line, ":")
			key := strings.TrimSpace(parts[0])
			if len(parts) != 2 || key == "" {
				return nil, &MalformedLineError{Path: path, Line: lineNo, Tokens: len(parts), Text: line}
			}
			doc.entries = append(doc.entries, Setting{
				Key:        key,
				Value:      strings.TrimSpace(parts[1]),
				Comment:    pending,
				HasComment: hasPending,
			})
			hasPending = false
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return doc, nil
}
