// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the structured logger shared by every mentesa
// component.
//
// Components receive a *log.Logger through their options and tag it with
// .With("component", name). Output goes to stderr unless a file is
// configured, so log lines never interleave with the chat on stdout.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn, error, fatal. Empty means warn.
	Level string

	// File receives log output in logfmt. Empty means stderr.
	File string
}

// Logger wraps a *log.Logger together with the sink it writes to.
type Logger struct {
	*log.Logger
	closer io.Closer
}

// New creates a logger for opts. Close releases the log file, if any.
func New(opts Options) (*Logger, error) {
	return newLogger(opts, os.Stderr)
}

func newLogger(opts Options, stderr io.Writer) (*Logger, error) {
	levelName := opts.Level
	if levelName == "" {
		levelName = "warn"
	}
	level, err := log.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	var (
		out    io.Writer = stderr
		closer io.Closer
	)
	logOpts := log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "mentesa",
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
		logOpts.Formatter = log.LogfmtFormatter
		logOpts.TimeFormat = time.RFC3339
	}

	return &Logger{Logger: log.NewWithOptions(out, logOpts), closer: closer}, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: log.New(io.Discard)}
}

// Close closes the log file. It is a no-op for stderr.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
