// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package topics

import (
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ContextWindow is how many characters on each side of a disallowed phrase
// are searched for an allowed context phrase.
const ContextWindow = 50

// =============================================================================
// FILTER
// =============================================================================

// Match describes which keyword flagged a text.
type Match struct {
	Category string
	Keyword  string
}

type keyword struct {
	category string
	text     string
	re       *regexp.Regexp
}

// Filter is a compiled keyword classifier. It is immutable and safe for
// concurrent use.
type Filter struct {
	prohibited []keyword
	disallowed []keyword
	allowed    []keyword
}

// New compiles lists into a Filter.
func New(lists Lists) (*Filter, error) {
	if err := lists.Validate(); err != nil {
		return nil, err
	}

	f := &Filter{}

	// Deterministic category order keeps Classify stable across runs.
	categories := make([]string, 0, len(lists.Categories))
	for name := range lists.Categories {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	for _, name := range categories {
		for _, kw := range lists.Categories[name] {
			f.prohibited = append(f.prohibited, compileKeyword(name, kw))
		}
	}
	for _, phrase := range lists.DisallowedResponses {
		f.disallowed = append(f.disallowed, compileKeyword("", phrase))
	}
	for _, phrase := range lists.AllowedContexts {
		f.allowed = append(f.allowed, compileKeyword("", phrase))
	}
	return f, nil
}

// Default returns a Filter built from the embedded lists.
func Default() *Filter {
	f, err := New(DefaultLists())
	if err != nil {
		panic("topics: embedded lists do not compile: " + err.Error())
	}
	return f
}

// IsProhibitedTopic reports whether text mentions an out-of-scope subject.
func (f *Filter) IsProhibitedTopic(text string) bool {
	_, ok := f.Classify(text)
	return ok
}

// Classify returns the first prohibited keyword found in text.
func (f *Filter) Classify(text string) (Match, bool) {
	normalized := normalize(text)
	if normalized == "" {
		return Match{}, false
	}
	for _, kw := range f.prohibited {
		if kw.re.MatchString(normalized) {
			return Match{Category: kw.category, Keyword: kw.text}, true
		}
	}
	return Match{}, false
}

// IsValidResponse reports whether a generated reply may be shown. A reply is
// invalid when it contains a disallowed phrase with no allowed context phrase
// within ContextWindow characters of it.
func (f *Filter) IsValidResponse(text string) bool {
	normalized := normalize(text)
	for _, kw := range f.disallowed {
		for _, loc := range kw.re.FindAllStringIndex(normalized, -1) {
			if !f.hasAllowedContext(window(normalized, loc[0], loc[1], ContextWindow)) {
				return false
			}
		}
	}
	return true
}

func (f *Filter) hasAllowedContext(s string) bool {
	for _, kw := range f.allowed {
		if kw.re.MatchString(s) {
			return true
		}
	}
	return false
}

// Categories lists the subject names known to the filter.
func (f *Filter) Categories() []string {
	seen := make(map[string]bool)
	var names []string
	for _, kw := range f.prohibited {
		if !seen[kw.category] {
			seen[kw.category] = true
			names = append(names, kw.category)
		}
	}
	return names
}

// =============================================================================
// HOLDER
// =============================================================================

// Holder publishes the current Filter and lets a reload replace it atomically.
type Holder struct {
	current atomic.Pointer[Filter]
}

// NewHolder returns a Holder serving f.
func NewHolder(f *Filter) *Holder {
	h := &Holder{}
	h.current.Store(f)
	return h
}

// Load returns the filter in effect.
func (h *Holder) Load() *Filter {
	return h.current.Load()
}

// Store replaces the filter in effect.
func (h *Holder) Store(f *Filter) {
	h.current.Store(f)
}

// IsProhibitedTopic delegates to the current filter.
func (h *Holder) IsProhibitedTopic(text string) bool {
	return h.Load().IsProhibitedTopic(text)
}

// IsValidResponse delegates to the current filter.
func (h *Holder) IsValidResponse(text string) bool {
	return h.Load().IsValidResponse(text)
}

// Classify delegates to the current filter.
func (h *Holder) Classify(text string) (Match, bool) {
	return h.Load().Classify(text)
}

// =============================================================================
// MATCHING HELPERS
// =============================================================================

// normalize lowercases s and strips diacritics (NFKD, then drop combining marks).
func normalize(s string) string {
	decomposed, _, err := transform.String(transform.Chain(norm.NFKD), s)
	if err != nil {
		decomposed = s
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r >= 0x300 && r <= 0x36f {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.TrimSpace(b.String())
}

// compileKeyword builds a whole-word pattern for kw. Words of a multi-word
// keyword may be separated by whitespace, hyphens or nothing.
func compileKeyword(category, kw string) keyword {
	normalized := normalize(kw)
	words := keywordWords(normalized)
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}

	pattern := strings.Join(quoted, `[\s-]*`)
	if isWordByte(normalized[0]) {
		pattern = `\b` + pattern
	}
	if isWordByte(normalized[len(normalized)-1]) {
		pattern += `\b`
	}

	return keyword{
		category: category,
		text:     kw,
		re:       regexp.MustCompile(pattern),
	}
}

// keywordWords splits a normalized keyword on spaces and hyphens.
func keywordWords(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})
}

// isWordByte mirrors the ASCII word class used by \b.
func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// window returns s[start:end] widened by n runes on each side.
func window(s string, start, end, n int) string {
	for i := 0; i < n && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:start])
		start -= size
	}
	for i := 0; i < n && end < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
	}
	return s[start:end]
}
