// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the confserve command.
//
// # Commands Overview
//
//   - serve: serve the settings file as an editable web page
//   - get KEY [--type string|int|float|bool] [--json]: print one value
//   - set KEY VALUE [--comment C]: change one value and save
//   - list [--json]: print every setting in file order
//   - init [--force]: write a default host config
//
// Global flags (--config, --file, --log-level, --log-format) override the
// host config loaded by package config.
//
// # Usage
//
//	app := cli.NewApp(os.Stdout, os.Stderr)
//	if err := app.Run(os.Args); err != nil {
//	    os.Exit(cli.GetExitCode(err))
//	}
package cli
