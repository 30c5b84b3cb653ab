// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the embedded HTTP edit page for a settings store.
//
// A Server renders every key of its Backend as a labelled form control and
// applies submitted values back to the Backend, saves it and notifies the
// host. Requests are handled one at a time.
//
// # Endpoints
//
//   - ANY / - the edit page; a urlencoded body is applied first
//
// # Lifecycle
//
// New binds the port and renders the page, Start begins serving, Stop
// releases the port. A stopped server may be started again.
//
// # Usage
//
//	srv, err := server.New(st, server.Options{Port: 8080, Title: "Demo"})
//	if err != nil {
//		return err
//	}
//	if err := srv.Start(); err != nil {
//		return err
//	}
//	defer srv.Stop()
//	link, _ := srv.Link()
package server
