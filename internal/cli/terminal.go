// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TERMINAL DETECTION
// =============================================================================

// Wrapping width bounds for line-mode output.
const (
	DefaultTerminalWidth = 80
	MinTerminalWidth     = 40
)

// IsTTY reports whether stdin is a terminal.
func IsTTY() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

// GetTerminalWidth returns the stdout width, clamped to MinTerminalWidth,
// or DefaultTerminalWidth when it cannot be read.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return max(width, MinTerminalWidth)
}

// ColorsEnabled reports whether output may carry ANSI colors. NO_COLOR wins
// over FORCE_COLOR, which wins over TTY detection. Decided once per process.
var ColorsEnabled = sync.OnceValue(func() bool {
	switch {
	case os.Getenv("NO_COLOR") != "":
		return false
	case os.Getenv("FORCE_COLOR") != "":
		return true
	}
	return IsStdoutTTY()
})

// GetColorProfile returns Ascii when colors are off. Otherwise the profile
// comes from TERM and COLORTERM, even when FORCE_COLOR is set on a pipe.
func GetColorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	return termenv.NewOutput(os.Stdout, termenv.WithTTY(true)).EnvColorProfile()
}

// =============================================================================
// SECRET INPUT
// =============================================================================

// ErrTTYRequired is returned when a secret must be typed but stdin is not
// a terminal.
var ErrTTYRequired = errors.New("stdin is not a terminal; use --password-stdin")

// readSecret prompts for a value without echo. With fromStdin set, one line
// is read from in instead, so scripts can pipe it.
func readSecret(in io.Reader, out io.Writer, prompt string, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	if !IsTTY() {
		return "", ErrTTYRequired
	}

	fmt.Fprint(out, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.TrimSpace(strings.TrimSuffix(prompt, ": ")), err)
	}
	return string(secret), nil
}
