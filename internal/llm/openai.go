// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/sashabaranov/go-openai"

	"github.com/jeranaias/mentesa/internal/model"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAI streams replies from an OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client      *openai.Client
	model       string
	system      string
	temperature float32
	maxTokens   int
}

// NewOpenAI creates an OpenAI-compatible streamer. BaseURL may point at any
// compatible server.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrNoAPIKey)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}

	return &OpenAI{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       modelName,
		system:      cfg.systemInstruction(),
		temperature: cfg.Temperature,
		maxTokens:   int(cfg.MaxOutputTokens),
	}, nil
}

// StartStream implements Streamer.
func (o *OpenAI) StartStream(ctx context.Context, history []model.HistoryEntry, newMessage string) iter.Seq2[string, error] {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    openAIMessages(o.system, history, newMessage),
		Stream:      true,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}

	return func(yield func(string, error) bool) {
		stream, err := o.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield("", fmt.Errorf("openai stream: %w", err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("openai stream: %w", err))
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !yield(choice.Delta.Content, nil) {
					return
				}
			}
		}
	}
}

func openAIMessages(system string, history []model.HistoryEntry, newMessage string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, entry := range history {
		role := openai.ChatMessageRoleUser
		if entry.Role == model.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: entry.Text})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: newMessage,
	})
}
