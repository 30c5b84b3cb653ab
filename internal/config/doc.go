// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the configuration of the confserve command: which
// settings file to serve, where to listen, whether to watch the file and
// how to log.
//
// # Configuration Precedence
//
//   - Command-line flags (applied by the caller)
//   - Environment variables (CONFSERVE_*)
//   - ~/.confserve/config.toml, or the file given with --config
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	srvOpts := server.Options{Host: cfg.Server.Host, Port: cfg.Server.Port}
package config
