// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for a local Ollama server.
//
// Mente Sã can run its persona on a local model instead of a hosted API.
// This package speaks the /api/chat streaming protocol (newline-delimited
// JSON) and exposes the stream as a pull-based sequence.
//
// # Key Types
//
//   - Client: chat and health check against one server
//   - Message: chat turn with role and content
//   - StreamReader: decoder for the streaming response
//   - APIError: non-OK status or in-band error from the server
//
// # Usage
//
//	client := ollama.New("", "llama3.2")
//	for chunk, err := range client.Chat(ctx, messages, ollama.Options{}) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(chunk.Content)
//	}
package ollama
