// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by mentesa packages.
//
// TruncateRunes, TruncateWidth and PadWidth fit Portuguese titles into
// terminal columns; AtomicWriteFile writes config, history and export files
// crash-safely.
//
// # Usage
//
//	cell := util.PadWidth(util.TruncateWidth(title, 40), 40)
//	err := util.AtomicWriteFile(path, data, 0o644)
package util
