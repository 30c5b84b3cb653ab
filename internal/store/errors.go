// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is returned by accessors without a default when the key
	// was never set.
	ErrKeyNotFound = errors.New("config key not found")

	// ErrValueNotParsable is returned by typed accessors without a default
	// when the stored text does not match the requested type.
	ErrValueNotParsable = errors.New("config value not parsable")

	// ErrMalformedConfig matches every *MalformedLineError.
	ErrMalformedConfig = errors.New("malformed config file")

	// ErrNotStorable is returned by Store.CheckSetting for a key or value the
	// file format cannot carry.
	ErrNotStorable = errors.New("setting cannot be stored")
)

// MalformedLineError reports a data line that does not split into exactly
// one key and one value around a single ':'.
type MalformedLineError struct {
	Path   string
	Line   int // 1-based
	Tokens int // number of parts the line splits into around ':'
	Text   string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("%s: broken line %d (%d tokens, should be 2): %q", e.Path, e.Line, e.Tokens, e.Text)
}

// Is lets errors.Is(err, ErrMalformedConfig) match.
func (e *MalformedLineError) Is(target error) bool {
	return target == ErrMalformedConfig
}

func keyNotFound(key string) error {
	return fmt.Errorf("%w: %q was never set", ErrKeyNotFound, key)
}

func notParsable(key, value, kind string) error {
	return fmt.Errorf("%w: %q = %q is not a valid %s", ErrValueNotParsable, key, value, kind)
}
