// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/mentesa/internal/model"
	"github.com/jeranaias/mentesa/internal/ollama"
)

var testHistory = []model.HistoryEntry{
	{Role: model.RoleUser, Text: "Oi"},
	{Role: model.RoleModel, Text: "Olá! Como você está?"},
}

func collect(t *testing.T, s Streamer, history []model.HistoryEntry, msg string) (string, error) {
	t.Helper()
	var sb strings.Builder
	for fragment, err := range s.StartStream(context.Background(), history, msg) {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(fragment)
	}
	return sb.String(), nil
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "gemini"})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = New(context.Background(), Config{Provider: "openai"})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = New(context.Background(), Config{Provider: "palm"})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	s, err := New(context.Background(), Config{Provider: "ollama"})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, s)
}

func TestConfig_SystemInstruction(t *testing.T) {
	assert.Equal(t, Persona, Config{}.systemInstruction())
	assert.Equal(t, "custom", Config{SystemInstruction: "custom"}.systemInstruction())
}

func TestGeminiContents_Roles(t *testing.T) {
	contents := geminiContents(testHistory, "Estou ansioso hoje")

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "user", contents[2].Role)
	assert.Equal(t, "Estou ansioso hoje", contents[2].Parts[0].Text)
}

func TestOpenAIMessages_Roles(t *testing.T) {
	messages := openAIMessages("persona", testHistory, "Estou ansioso hoje")

	require.Len(t, messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, messages[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, messages[2].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, messages[3].Role)
}

func TestOllama_StartStream(t *testing.T) {
	var got ollama.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		for _, part := range []string{"Sinto ", "muito."} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
		}
		fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
	}))
	defer srv.Close()

	s := NewOllama(Config{BaseURL: srv.URL, Model: "llama3.2"})
	text, err := collect(t, s, testHistory, "Estou triste")
	require.NoError(t, err)
	assert.Equal(t, "Sinto muito.", text)

	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, "Estou triste", got.Messages[3].Content)
}

func TestOllama_StartStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewOllama(Config{BaseURL: srv.URL})
	_, err := collect(t, s, nil, "oi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ollama.ErrModelNotFound)
}

func TestOpenAI_StartStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Respire ", "fundo."} {
			chunk := map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion.chunk",
				"model":   "test",
				"choices": []map[string]any{{"index": 0, "delta": map[string]string{"content": part}}},
			}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	s, err := NewOpenAI(Config{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "test"})
	require.NoError(t, err)

	text, err := collect(t, s, testHistory, "Estou ansioso")
	require.NoError(t, err)
	assert.Equal(t, "Respire fundo.", text)
}

func TestOpenAI_StartStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	s, err := NewOpenAI(Config{APIKey: "test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = collect(t, s, nil, "oi")
	require.Error(t, err)
}
