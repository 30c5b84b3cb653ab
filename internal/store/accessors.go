// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"math"
	"strconv"
	"strings"

	"github.com/jeranaias/confserve/internal/util"
)

// Values are stored as text and parsed on every read. Accessors ending in
// Or never fail: a missing key yields the default silently, an unparsable
// value yields the default and a warning.

// =============================================================================
// STRING
// =============================================================================

// String returns the stored text for key.
func (s *Store) String(key string) (string, error) {
	v, ok := s.lookup(key)
	if !ok {
		return "", keyNotFound(key)
	}
	return v, nil
}

// StringOr returns the stored text for key, or def when key is absent.
func (s *Store) StringOr(key, def string) string {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return def
}

// =============================================================================
// INTEGER
// =============================================================================

// Int parses the value of key as an integer. Decimal text is accepted and
// truncated toward zero ("3.7" -> 3, "-3.7" -> -3).
func (s *Store) Int(key string) (int, error) {
	v, ok := s.lookup(key)
	if !ok {
		return 0, keyNotFound(key)
	}
	n, ok := parseInt(v)
	if !ok {
		return 0, notParsable(key, v, "integer")
	}
	return n, nil
}

// IntOr is Int with a default for missing or unparsable values.
func (s *Store) IntOr(key string, def int) int {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	n, ok := parseInt(v)
	if !ok {
		s.warnNotParsable(key, v, "integer")
		return def
	}
	return n
}

func parseInt(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if n, err := strconv.Atoi(text); err == nil {
		return n, true
	}
	f, ok := parseDecimal(text)
	if !ok {
		return 0, false
	}
	f = math.Trunc(f)
	if f < math.MinInt || f >= math.MaxInt {
		return 0, false
	}
	return int(f), true
}

// =============================================================================
// DOUBLE
// =============================================================================

// Float64 parses the value of key as a decimal number. Both '.' and ','
// are accepted as the decimal separator.
func (s *Store) Float64(key string) (float64, error) {
	v, ok := s.lookup(key)
	if !ok {
		return 0, keyNotFound(key)
	}
	f, ok := parseFloat(v)
	if !ok {
		return 0, notParsable(key, v, "double")
	}
	return f, nil
}

// Float64Or is Float64 with a default for missing or unparsable values.
func (s *Store) Float64Or(key string, def float64) float64 {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	f, ok := parseFloat(v)
	if !ok {
		s.warnNotParsable(key, v, "double")
		return def
	}
	return f
}

func parseFloat(text string) (float64, bool) {
	return parseDecimal(strings.ReplaceAll(strings.TrimSpace(text), ",", "."))
}

// parseDecimal accepts finite numbers in decimal notation only. strconv on
// its own also takes inf, NaN and hex floats.
func parseDecimal(text string) (float64, bool) {
	if strings.ContainsAny(text, "xX") {
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// =============================================================================
// BOOLEAN
// =============================================================================

// Bool parses the value of key. Only the exact tokens true, yes, false and
// no are recognised.
func (s *Store) Bool(key string) (bool, error) {
	v, ok := s.lookup(key)
	if !ok {
		return false, keyNotFound(key)
	}
	b, ok := parseBool(v)
	if !ok {
		return false, notParsable(key, v, "boolean")
	}
	return b, nil
}

// BoolOr is Bool with a default for missing or unparsable values.
func (s *Store) BoolOr(key string, def bool) bool {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	b, ok := parseBool(v)
	if !ok {
		s.warnNotParsable(key, v, "boolean")
		return def
	}
	return b
}

func parseBool(text string) (bool, bool) {
	switch text {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	}
	return false, false
}

func (s *Store) warnNotParsable(key, value, kind string) {
	s.logger.Warn("config value could not be parsed, using default",
		"key", key,
		"value", util.TruncateRunes(value, 64),
		"type", kind,
	)
}
