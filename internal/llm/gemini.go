// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/genai"

	"github.com/jeranaias/mentesa/internal/model"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

const (
	geminiRoleUser  = "user"
	geminiRoleModel = "model"
)

// Gemini streams replies from the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGemini creates a Gemini streamer.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrNoAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: cfg.systemInstruction()}},
		},
	}
	if cfg.Temperature > 0 {
		genConfig.Temperature = genai.Ptr(cfg.Temperature)
	}
	if cfg.MaxOutputTokens > 0 {
		genConfig.MaxOutputTokens = cfg.MaxOutputTokens
	}

	return &Gemini{client: client, model: modelName, config: genConfig}, nil
}

// StartStream implements Streamer.
func (g *Gemini) StartStream(ctx context.Context, history []model.HistoryEntry, newMessage string) iter.Seq2[string, error] {
	contents := geminiContents(history, newMessage)

	return func(yield func(string, error) bool) {
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, g.config) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream: %w", err))
				return
			}
			if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part == nil || part.Text == "" || part.Thought {
					continue
				}
				if !yield(part.Text, nil) {
					return
				}
			}
		}
	}
}

// geminiContents maps history to Gemini's user/model roles.
func geminiContents(history []model.HistoryEntry, newMessage string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, entry := range history {
		role := geminiRoleUser
		if entry.Role == model.RoleModel {
			role = geminiRoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: entry.Text}},
		})
	}
	return append(contents, &genai.Content{
		Role:  geminiRoleUser,
		Parts: []*genai.Part{{Text: newMessage}},
	})
}
