// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides file and text helpers shared by the store and the
// host configuration.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//   - ReadFileIfExists: read a file, treating "not found" as empty
//
// Text:
//   - ToText: canonical text form of a setting value
//   - TruncateRunes: UTF-8 safe truncation for log output
//
// # Usage
//
//	// Persist a store without leaving half-written files behind
//	err := util.AtomicWriteFile(path, data, 0644)
//
//	// Store any value as text
//	s := util.ToText(0.25) // "0.25"
package util
