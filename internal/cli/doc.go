// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the mentesa command line.
//
// Without a subcommand mentesa opens the full-screen interface on a terminal
// and the line chat otherwise. The other commands work on saved
// conversations without contacting the generation API, so they run without
// an API key.
//
// # Commands
//
//   - tui: Full-screen interface with the conversation list
//   - chat: Line-mode session with slash commands (/nova, /lista, /abrir ...)
//   - list, show, rename, delete, export: Saved conversations of the current user
//   - check: Dry run of the topic filter
//   - config: Read and edit the config file
//   - auth: Account registration, sign-in, password reset and TOTP
//
// # Usage
//
//	os.Exit(cli.Execute(version))
//
// Commands open their dependencies through openApp and release them with
// app.close before returning.
package cli
