// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"iter"

	"github.com/jeranaias/mentesa/internal/model"
	"github.com/jeranaias/mentesa/internal/ollama"
)

// Ollama streams replies from a local Ollama server.
type Ollama struct {
	client *ollama.Client
	system string
	opts   ollama.Options
}

// NewOllama creates a streamer for a local server. BaseURL defaults to the
// standard loopback port.
func NewOllama(cfg Config) *Ollama {
	return &Ollama{
		client: ollama.New(cfg.BaseURL, cfg.Model),
		system: cfg.systemInstruction(),
		opts: ollama.Options{
			Temperature: float64(cfg.Temperature),
			NumPredict:  int(cfg.MaxOutputTokens),
		},
	}
}

// Ping reports whether the server is reachable.
func (o *Ollama) Ping(ctx context.Context) error {
	return o.client.Ping(ctx)
}

// StartStream implements Streamer.
func (o *Ollama) StartStream(ctx context.Context, history []model.HistoryEntry, newMessage string) iter.Seq2[string, error] {
	messages := make([]ollama.Message, 0, len(history)+2)
	messages = append(messages, ollama.NewSystemMessage(o.system))
	for _, entry := range history {
		if entry.Role == model.RoleModel {
			messages = append(messages, ollama.NewAssistantMessage(entry.Text))
		} else {
			messages = append(messages, ollama.NewUserMessage(entry.Text))
		}
	}
	messages = append(messages, ollama.NewUserMessage(newMessage))

	return func(yield func(string, error) bool) {
		for chunk, err := range o.client.Chat(ctx, messages, o.opts) {
			if err != nil {
				yield("", err)
				return
			}
			if chunk.Content == "" {
				continue
			}
			if !yield(chunk.Content, nil) {
				return
			}
		}
	}
}
