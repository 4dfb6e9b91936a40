// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads, validates and edits the mentesa settings file.
//
// Settings live in ~/.mentesa/config.toml (config.json is read when no TOML
// file exists). Environment variables win over the file: MENTESA_PROVIDER,
// MENTESA_MODEL, MENTESA_BASE_URL, MENTESA_API_KEY, MENTESA_DB,
// MENTESA_TOPICS and MENTESA_LOG_LEVEL, plus GEMINI_API_KEY or
// OPENAI_API_KEY for the matching provider.
//
// # Key Types
//
//   - Config: storage, llm, session, topics and log sections
//   - ValidationError: one invalid field, collected into ValidateErrors
//
// Keys use dot notation ("session.history_window") for Get, Set and the
// config command; GetAllKeys lists them and IsSecretKey marks the API key.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	window := cfg.Session.HistoryWindow
package config
