// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/mentesa/internal/config"
	"github.com/jeranaias/mentesa/internal/identity"
	"github.com/jeranaias/mentesa/internal/llm"
	"github.com/jeranaias/mentesa/internal/logging"
	"github.com/jeranaias/mentesa/internal/session"
	"github.com/jeranaias/mentesa/internal/storage"
	"github.com/jeranaias/mentesa/internal/topics"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

const ollamaPingTimeout = 2 * time.Second

// app holds every component a command may need, opened in dependency
// order: config, logger, database, identity, topic filter, streamer and
// session manager.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	db       *storage.DB
	identity *identity.Provider
	filter   *topics.Holder
	manager  *session.Manager
	now      func() time.Time
}

// openOptions selects the optional parts of the wiring.
type openOptions struct {
	// withLLM builds the reply streamer. Only chat needs it, so other
	// commands work without an API key.
	withLLM bool
}

// openApp loads configuration and opens the stores. Call close when done.
func openApp(ctx context.Context, g *globalFlags, opts openOptions) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, now: time.Now}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		a.close()
		return nil, err
	}
	a.db, err = storage.Open(ctx, dbPath, a.component("storage"))
	if err != nil {
		a.close()
		return nil, err
	}

	a.identity, err = identity.NewProvider(ctx, a.db.SQL(), identity.Options{Logger: a.component("identity")})
	if err != nil {
		a.close()
		return nil, err
	}

	filter := topics.Default()
	if cfg.Topics.File != "" {
		filter, err = topics.LoadFile(cfg.Topics.File)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to load topic lists: %w", err)
		}
	}
	a.filter = topics.NewHolder(filter)

	var streamer llm.Streamer
	if opts.withLLM {
		streamer, err = llm.New(ctx, llmConfig(cfg.LLM))
		if err != nil {
			a.close()
			if errors.Is(err, llm.ErrNoAPIKey) {
				return nil, fmt.Errorf("%w (set llm.api_key or MENTESA_API_KEY)", err)
			}
			return nil, err
		}
		if local, ok := streamer.(*llm.Ollama); ok {
			a.pingOllama(ctx, local)
		}
	}

	a.manager = session.NewManager(session.Deps{
		Messages: a.db.Messages(),
		Metadata: a.db.Metadata(),
		Streamer: streamer,
		Identity: a.identity,
		Filter:   a.filter,
		Clock:    a.now,
		Logger:   logger.Logger,
	}, session.Config{
		HistoryWindow:     cfg.Session.HistoryWindow,
		SettleDelay:       cfg.Session.SettleDelay(),
		TitlePreviewRunes: cfg.Session.TitlePreviewRunes,
	})

	return a, nil
}

// component returns the shared logger tagged with a component name.
func (a *app) component(name string) *log.Logger {
	return a.logger.With("component", name)
}

// pingOllama warns early when the local server is down. Chat still starts;
// each send reports the failure until the server comes up.
func (a *app) pingOllama(ctx context.Context, o *llm.Ollama) {
	ctx, cancel := context.WithTimeout(ctx, ollamaPingTimeout)
	defer cancel()
	if err := o.Ping(ctx); err != nil {
		a.logger.Warn("ollama unreachable", "err", err)
	}
}

// watchTopics reloads the topic lists on change when configured to.
func (a *app) watchTopics(ctx context.Context) error {
	if a.cfg.Topics.File == "" || !a.cfg.Topics.Watch {
		return nil
	}
	return topics.Watch(ctx, a.cfg.Topics.File, a.filter, a.component("topics"))
}

// close waits for background writes and releases the database and log file.
func (a *app) close() {
	if a.manager != nil {
		a.manager.Wait()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", "err", err)
		}
	}
	a.logger.Close()
}

func llmConfig(c config.LLMConfig) llm.Config {
	return llm.Config{
		Provider:        c.Provider,
		Model:           c.Model,
		APIKey:          c.APIKey,
		BaseURL:         c.BaseURL,
		Temperature:     float32(c.Temperature),
		MaxOutputTokens: int32(c.MaxOutputTokens),
	}
}
