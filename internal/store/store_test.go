// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Demo", "config.yml")
	return New(path, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNew_DefaultName(t *testing.T) {
	require.Equal(t, "Demo", New("plugins/Demo/config.yml").Name())
	require.Equal(t, "config.yml", New("config.yml").Name())
	require.Equal(t, "Custom", New("plugins/Demo/config.yml", WithName("Custom")).Name())
}

func TestNew_Empty(t *testing.T) {
	s := newTestStore(t)
	require.Zero(t, s.Len())
	require.Empty(t, s.Keys())
	require.Empty(t, s.Header())
}

// =============================================================================
// MUTATION AND ENUMERATION
// =============================================================================

func TestSetValue_CanonicalText(t *testing.T) {
	s := newTestStore(t)
	s.SetValue("port", 8080)
	s.SetValue("ratio", 0.25)
	s.SetValue("enabled", true)
	s.SetValue("name", "demo")
	s.SetValue("nothing", nil)

	require.Equal(t, "8080", s.StringOr("port", ""))
	require.Equal(t, "0.25", s.StringOr("ratio", ""))
	require.Equal(t, "true", s.StringOr("enabled", ""))
	require.Equal(t, "demo", s.StringOr("name", ""))
	require.Equal(t, "", s.StringOr("nothing", "x"))
}

func TestSetValue_KeepsFirstSetOrder(t *testing.T) {
	s := newTestStore(t)
	s.SetValue("b", 1)
	s.SetValue("a", 2)
	s.SetValue("b", 3)

	require.Equal(t, []string{"b", "a"}, s.Keys())
	require.Equal(t, 2, s.Len())

	var seen []string
	s.Range(func(k, v string) bool {
		seen = append(seen, k+"="+v)
		return true
	})
	require.Equal(t, []string{"b=3", "a=2"}, seen)
}

func TestRange_StopsEarly(t *testing.T) {
	s := newTestStore(t)
	s.SetValue("a", 1)
	s.SetValue("b", 2)

	n := 0
	s.Range(func(string, string) bool {
		n++
		return false
	})
	require.Equal(t, 1, n)
}

func TestSetInfo(t *testing.T) {
	s := newTestStore(t)
	s.SetInfo("later", "set before the value")
	require.False(t, s.Has("later"))

	c, ok := s.Comment("later")
	require.True(t, ok)
	require.Equal(t, "set before the value", c)

	s.SetValueInfo("port", 25565, " server port")
	settings := s.Settings()
	require.Len(t, settings, 1)
	require.Equal(t, Setting{Key: "port", Value: "25565", Comment: " server port", HasComment: true}, settings[0])
}

func TestVersion_ChangesOnMutation(t *testing.T) {
	s := newTestStore(t)
	v0 := s.Version()
	s.SetValue("a", 1)
	v1 := s.Version()
	require.Greater(t, v1, v0)
	s.SetInfo("a", "c")
	require.Greater(t, s.Version(), v1)
}

// =============================================================================
// TYPED ACCESSORS
// =============================================================================

func TestString(t *testing.T) {
	s := newTestStore(t)
	_, err := s.String("missing")
	require.ErrorIs(t, err, ErrKeyNotFound)
	require.Equal(t, "def", s.StringOr("missing", "def"))

	s.SetValue("k", "v")
	got, err := s.String("k")
	require.NoError(t, err)
	require.Equal(t, "v", got)
}

func TestInt(t *testing.T) {
	tests := []struct {
		value string
		want  int
		ok    bool
	}{
		{"42", 42, true},
		{"-7", -7, true},
		{"3.7", 3, true},
		{"-3.7", -3, true},
		{" 12 ", 12, true},
		{"1e3", 1000, true},
		{"abc", 0, false},
		{"", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"1e300", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			s := newTestStore(t)
			s.SetValue("k", tt.value)

			got, err := s.Int("k")
			if !tt.ok {
				require.ErrorIs(t, err, ErrValueNotParsable)
				require.Equal(t, 5, s.IntOr("k", 5))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.want, s.IntOr("k", 5))
		})
	}
}

func TestInt_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Int("missing")
	require.ErrorIs(t, err, ErrKeyNotFound)
	require.Equal(t, 9, s.IntOr("missing", 9))
}

func TestFloat64(t *testing.T) {
	s := newTestStore(t)
	s.SetValue("dot", "1.5")
	s.SetValue("comma", "1,5")
	s.SetValue("int", "2")
	s.SetValue("bad", "one and a half")

	for _, k := range []string{"dot", "comma"} {
		f, err := s.Float64(k)
		require.NoError(t, err)
		require.Equal(t, 1.5, f)
	}
	require.Equal(t, 2.0, s.Float64Or("int", 0))

	_, err := s.Float64("bad")
	require.ErrorIs(t, err, ErrValueNotParsable)
	require.Equal(t, math.Pi, s.Float64Or("bad", math.Pi))
	require.Equal(t, 0.5, s.Float64Or("missing", 0.5))
}

func TestFloat64_RejectsNonDecimal(t *testing.T) {
	for _, value := range []string{"inf", "+Inf", "Infinity", "NaN", "0x1p-2", "0X10", "1e400"} {
		t.Run(value, func(t *testing.T) {
			s := newTestStore(t)
			s.SetValue("k", value)

			_, err := s.Float64("k")
			require.ErrorIs(t, err, ErrValueNotParsable)
			require.Equal(t, 1.25, s.Float64Or("k", 1.25))

			_, err = s.Int("k")
			require.ErrorIs(t, err, ErrValueNotParsable)
		})
	}
}

func TestBool(t *testing.T) {
	s := newTestStore(t)
	for value, want := range map[string]bool{"true": true, "yes": true, "false": false, "no": false} {
		s.SetValue("k", value)
		got, err := s.Bool("k")
		require.NoError(t, err, value)
		require.Equal(t, want, got, value)
	}

	s.SetValue("k", "maybe")
	_, err := s.Bool("k")
	require.ErrorIs(t, err, ErrValueNotParsable)
	require.True(t, s.BoolOr("k", true))
	require.False(t, s.BoolOr("k", false))

	s.SetValue("k", "TRUE")
	require.False(t, s.BoolOr("k", false))
}

func TestAccessor_WarnsOnUnparsable(t *testing.T) {
	var buf bytes.Buffer
	s := New(filepath.Join(t.TempDir(), "c.yml"), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	s.SetValue("k", "maybe")

	s.BoolOr("k", true)
	require.Contains(t, buf.String(), "level=WARN")
	require.Contains(t, buf.String(), "key=k")

	buf.Reset()
	s.BoolOr("missing", true)
	require.Empty(t, buf.String())
}

// =============================================================================
// FILE FORMAT
// =============================================================================

func TestSave_Format(t *testing.T) {
	s := newTestStore(t, WithHeader("Demo settings"))
	s.SetValueInfo("port", 8080, " listening port")
	s.SetValue("enabled", true)

	require.NoError(t, s.Save())

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Equal(t, "#\tDemo settings\n\n# listening port\nport: 8080\nenabled: true\n", string(data))
}

func TestSave_NoHeader(t *testing.T) {
	s := newTestStore(t)
	s.SetValue("a", "b")
	require.NoError(t, s.Save())

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Equal(t, "a: b\n", string(data))
}

func TestSave_Fails(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	writeFile(t, blocker, "x")

	s := New(filepath.Join(blocker, "config.yml"), WithLogger(quietLogger()))
	s.SetValue("a", 1)
	require.Error(t, s.Save())
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t, WithHeader("Header line"))
	s.SetValueInfo("name", "demo server", " display name")
	s.SetValue("port", 25565)
	s.SetValueInfo("ratio", 0.75, " between 0 and 1")
	s.SetValue("enabled", false)
	s.SetValueInfo("spaced", "x", "   indented and trailing  ")
	s.SetValueInfo("tabbed", "y", "\tafter tab\t")
	require.NoError(t, s.Save())

	loaded := New(s.Path(), WithLogger(quietLogger()))
	require.NoError(t, loaded.LoadFromFile())

	require.Equal(t, s.Settings(), loaded.Settings())
	c, ok := loaded.Comment("spaced")
	require.True(t, ok)
	require.Equal(t, "   indented and trailing  ", c)
	require.Equal(t, "Header line", loaded.Header())
	require.Equal(t, 25565, loaded.IntOr("port", 0))
	require.Equal(t, 0.75, loaded.Float64Or("ratio", 0))
	require.False(t, loaded.BoolOr("enabled", true))
}

func TestLoadFromFile_Missing(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.LoadFromFile())
	require.Zero(t, s.Len())
}

func TestLoadFromFile_Parsing(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s.Path(), "# comment\r\n  key :  value with spaces  \r\n\n#orphan\n\nother:x\n")
	require.NoError(t, s.LoadFromFile())

	require.Equal(t, []string{"key", "other"}, s.Keys())
	require.Equal(t, "value with spaces", s.StringOr("key", ""))
	c, ok := s.Comment("key")
	require.True(t, ok)
	require.Equal(t, " comment", c)
	_, ok = s.Comment("other")
	require.False(t, ok)
	require.Empty(t, s.Header())
}

func TestLoadFromFile_HeaderNeedsBlankLine(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s.Path(), "#\tnot a header\nkey: v\n")
	require.NoError(t, s.LoadFromFile())
	require.Empty(t, s.Header())

	c, _ := s.Comment("key")
	require.Equal(t, "\tnot a header", c)
}

func TestLoadFromFile_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
		tokens  int
	}{
		{name: "no colon", content: "a: 1\nfoo=bar\n", line: 2, tokens: 1},
		{name: "two colons", content: "url: http://x\n", line: 1, tokens: 3},
		{name: "empty key", content: "\n\n: v\n", line: 3, tokens: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			s.SetValue("keep", "me")
			writeFile(t, s.Path(), tt.content)

			err := s.LoadFromFile()
			require.ErrorIs(t, err, ErrMalformedConfig)

			var lineErr *MalformedLineError
			require.True(t, errors.As(err, &lineErr))
			require.Equal(t, tt.line, lineErr.Line)
			require.Equal(t, tt.tokens, lineErr.Tokens)
			require.Contains(t, err.Error(), "broken line")

			require.Equal(t, []string{"keep"}, s.Keys())
		})
	}
}

func TestLoadFromFile_IsAdditive(t *testing.T) {
	s := newTestStore(t)
	s.SetValue("only-in-memory", 1)
	s.SetValue("shared", "old")
	writeFile(t, s.Path(), "shared: new\nfresh: yes\n")

	require.NoError(t, s.LoadFromFile())
	require.Equal(t, []string{"only-in-memory", "shared", "fresh"}, s.Keys())
	require.Equal(t, "new", s.StringOr("shared", ""))
}

func TestReload(t *testing.T) {
	s := newTestStore(t)
	s.SetValue("a", 1)
	require.NoError(t, s.Save())

	changed, err := s.Reload()
	require.NoError(t, err)
	require.False(t, changed, "own write must not count as a change")

	writeFile(t, s.Path(), "a: 2\n")
	changed, err = s.Reload()
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 2, s.IntOr("a", 0))

	changed, err = s.Reload()
	require.NoError(t, err)
	require.False(t, changed)
}

func TestCheckSetting(t *testing.T) {
	tests := []struct {
		key, value string
		ok         bool
	}{
		{"port", "8080", true},
		{"name", " padded ", true},
		{"motd", "hello, world #1", true},
		{"url", "http://example.com", false},
		{"a:b", "v", false},
		{"", "v", false},
		{"  ", "v", false},
		{"#hidden", "v", false},
		{"k", "two\nlines", false},
		{"k", "cr\r", false},
	}
	s := newTestStore(t)
	for _, tt := range tests {
		err := s.CheckSetting(tt.key, tt.value)
		if tt.ok {
			require.NoError(t, err, "%q=%q", tt.key, tt.value)
		} else {
			require.ErrorIs(t, err, ErrNotStorable, "%q=%q", tt.key, tt.value)
		}
	}
}

func TestSaves_CountsSuccessfulSaves(t *testing.T) {
	s := newTestStore(t)
	require.Zero(t, s.Saves())
	require.NoError(t, s.Save())
	require.NoError(t, s.Save())
	require.EqualValues(t, 2, s.Saves())

	blocked := filepath.Join(t.TempDir(), "file")
	writeFile(t, blocked, "x")
	bad := New(filepath.Join(blocked, "config.yml"), WithLogger(quietLogger()))
	require.Error(t, bad.Save())
	require.Zero(t, bad.Saves())
}

func TestSave_WarnsOnUnreloadableValue(t *testing.T) {
	var buf bytes.Buffer
	s := New(filepath.Join(t.TempDir(), "c.yml"), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	s.SetValue("url", "http://example.com")
	require.NoError(t, s.Save())
	require.True(t, strings.Contains(buf.String(), "will not survive a reload"))
}
