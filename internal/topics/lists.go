// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package topics

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed default_topics.toml
var defaultTopicsTOML string

// Lists is the keyword data behind a Filter.
type Lists struct {
	// Categories maps a subject name to its prohibited keywords.
	Categories map[string][]string `toml:"categories"`

	// DisallowedResponses are phrases a reply must not contain out of context.
	DisallowedResponses []string `toml:"disallowed_responses"`

	// AllowedContexts rescue a disallowed phrase found near them.
	AllowedContexts []string `toml:"allowed_contexts"`
}

// DefaultLists returns the embedded keyword lists.
func DefaultLists() Lists {
	lists, err := ParseLists(defaultTopicsTOML)
	if err != nil {
		panic(fmt.Sprintf("topics: embedded lists are invalid: %v", err))
	}
	return lists
}

// ParseLists decodes TOML keyword lists.
func ParseLists(data string) (Lists, error) {
	var lists Lists
	if _, err := toml.Decode(data, &lists); err != nil {
		return Lists{}, fmt.Errorf("failed to decode topic lists: %w", err)
	}
	if err := lists.Validate(); err != nil {
		return Lists{}, err
	}
	return lists, nil
}

// LoadLists reads keyword lists from a TOML file.
func LoadLists(path string) (Lists, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lists{}, fmt.Errorf("failed to read topic lists: %w", err)
	}
	return ParseLists(string(data))
}

// Validate rejects lists that would make the filter useless.
func (l Lists) Validate() error {
	total := 0
	for name, keywords := range l.Categories {
		for _, kw := range keywords {
			if len(keywordWords(normalize(kw))) == 0 {
				return fmt.Errorf("category %q has a blank keyword %q", name, kw)
			}
		}
		total += len(keywords)
	}
	if total == 0 {
		return fmt.Errorf("no prohibited keywords defined")
	}
	for _, phrase := range append(append([]string{}, l.DisallowedResponses...), l.AllowedContexts...) {
		if len(keywordWords(normalize(phrase))) == 0 {
			return fmt.Errorf("blank response phrase %q", phrase)
		}
	}
	return nil
}
