// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/jeranaias/mentesa/internal/model"
)

// Streamer produces a reply to newMessage given the prior history.
type Streamer interface {
	StartStream(ctx context.Context, history []model.HistoryEntry, newMessage string) iter.Seq2[string, error]
}

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Providers lists every supported provider name.
var Providers = []string{ProviderGemini, ProviderOpenAI, ProviderOllama}

var (
	// ErrNoAPIKey is returned when a hosted provider is selected without a key.
	ErrNoAPIKey = errors.New("no API key configured")

	// ErrUnknownProvider is returned for provider names New does not know.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Persona is the system instruction every provider receives.
const Persona = `Você é a assistente virtual do aplicativo Mente Sã.
Seu papel é oferecer acolhimento e apoio emocional em português do Brasil.
Converse apenas sobre saúde mental, emoções, bem-estar, autocuidado e relacionamentos.
Se a pessoa pedir ajuda com outros assuntos (ciências, política, tecnologia, entretenimento),
explique com gentileza que você só pode falar sobre saúde mental.
Você não substitui um profissional: em situações de risco, incentive a procurar ajuda
especializada ou ligar para o CVV no número 188.
Responda de forma breve, calorosa e sem julgamentos.`

// Config selects and parameterizes a provider.
type Config struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	Temperature     float32
	MaxOutputTokens int32

	// SystemInstruction overrides Persona when non-empty.
	SystemInstruction string
}

func (c Config) systemInstruction() string {
	if strings.TrimSpace(c.SystemInstruction) != "" {
		return c.SystemInstruction
	}
	return Persona
}

// New builds the Streamer for cfg.Provider.
func New(ctx context.Context, cfg Config) (Streamer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGemini:
		return NewGemini(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderOllama:
		return NewOllama(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
