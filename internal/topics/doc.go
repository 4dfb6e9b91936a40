// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package topics keeps conversations on mental health.
//
// A Filter classifies free text with static keyword lists grouped by subject
// (exact sciences, astronomy, history and geography, politics and economics,
// entertainment, technology, linguistics). Lists are data: a default set is
// embedded and a TOML file can replace it at runtime.
//
// # Key Types
//
//   - Lists: Raw keyword data as decoded from TOML
//   - Filter: Compiled, immutable classifier; safe for concurrent use
//   - Holder: Swappable Filter for hot reload
//
// # Matching Rules
//
// Text and keywords are lowercased and stripped of diacritics before
// matching, so "FÍSICA", "física" and "fisica" are equal. A keyword must
// match as a whole word: "física" matches "física quântica" but not
// "metafísica". Multi-word keywords also match hyphenated or joined forms
// ("buraco-negro", "buraconegro").
//
// # Usage
//
//	f := topics.Default()
//	if f.IsProhibitedTopic(text) {
//	    // refuse
//	}
package topics
