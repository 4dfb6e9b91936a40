// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm adapts hosted and local generation APIs to one streaming contract.
//
// A Streamer takes the conversation history (USER/MODEL turns, oldest first)
// plus the new user message and returns a lazy sequence of text fragments.
// The sequence ends normally when generation completes or yields a single
// non-nil error and stops.
//
// # Providers
//
//   - gemini: Google Gemini via google.golang.org/genai (default)
//   - openai: Any OpenAI-compatible endpoint via github.com/sashabaranov/go-openai
//   - ollama: A local Ollama server via internal/ollama
//
// Every provider receives the Mente Sã persona as its system instruction.
//
// # Usage
//
//	s, err := llm.New(ctx, cfg)
//	for fragment, err := range s.StartStream(ctx, history, "Estou ansioso hoje") {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(fragment)
//	}
package llm
