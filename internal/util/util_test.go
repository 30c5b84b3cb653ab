// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := []byte("key: value\n")

	require.NoError(t, AtomicWriteFile(path, data, 0644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, string(data), string(content))
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins", "demo", "config.yml")

	require.NoError(t, AtomicWriteFile(path, []byte("a: b\n"), 0644))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	require.NoError(t, AtomicWriteFile(path, []byte("first: 1\n"), 0644))
	require.NoError(t, AtomicWriteFile(path, []byte("second: 2\n"), 0644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second: 2\n", string(content))
}

func TestAtomicWriteFile_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	for i := 0; i < 3; i++ {
		require.NoError(t, AtomicWriteFile(path, []byte("k: v\n"), 0600))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "config.yml", entries[0].Name())
}

func TestAtomicWriteFile_Permissions(t *testing.T) {
	if os.PathSeparator == '\\' {
		t.Skip("permission bits are not meaningful on Windows")
	}
	path := filepath.Join(t.TempDir(), "config.yml")

	require.NoError(t, AtomicWriteFile(path, []byte("k: v\n"), 0600))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestAtomicWriteFile_FailsWhenParentIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := AtomicWriteFile(filepath.Join(blocker, "config.yml"), []byte("k: v\n"), 0644)
	require.Error(t, err)
}

func TestReadFileIfExists(t *testing.T) {
	dir := t.TempDir()

	data, ok, err := ReadFileIfExists(filepath.Join(dir, "missing.yml"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, data)

	path := filepath.Join(dir, "present.yml")
	require.NoError(t, os.WriteFile(path, []byte("k: v\n"), 0644))

	data, ok, err = ReadFileIfExists(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "k: v\n", string(data))
}

// =============================================================================
// TEXT TESTS
// =============================================================================

type port int

func (p port) String() string { return "port-" + strconv.Itoa(int(p)) }

func TestToText(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "hello world", "hello world"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"int", 42, "42"},
		{"negative int64", int64(-7), "-7"},
		{"uint64", uint64(9), "9"},
		{"float", 3.7, "3.7"},
		{"whole float", 3.0, "3"},
		{"small float", 0.0001, "0.0001"},
		{"float32", float32(1.5), "1.5"},
		{"bytes", []byte("raw"), "raw"},
		{"stringer", port(8080), "port-8080"},
		{"duration", 2 * time.Second, "2s"},
		{"fallback", struct{ A int }{1}, "{1}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ToText(tt.in))
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"日本語テキスト", 5, "日本..."},
		{"abc", 2, "ab"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, TruncateRunes(tt.in, tt.max), "TruncateRunes(%q, %d)", tt.in, tt.max)
	}
}
