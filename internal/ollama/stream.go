// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxLine bounds a single NDJSON line.
const maxLine = 1 << 20

// StreamReader decodes a newline-delimited JSON chat stream.
type StreamReader struct {
	scanner *bufio.Scanner
	done    bool
}

// NewStreamReader wraps r.
func NewStreamReader(r io.Reader) *StreamReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	return &StreamReader{scanner: sc}
}

// Next returns the next chunk, or io.EOF once the final chunk has been read
// or the body ends. Blank and undecodable lines are skipped. An error
// reported inside the stream ends it.
func (s *StreamReader) Next() (StreamChunk, error) {
	for !s.done && s.scanner.Scan() {
		var line struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Done       bool   `json:"done"`
			DoneReason string `json:"done_reason"`
			EvalCount  int    `json:"eval_count"`
			errorBody
		}
		if err := json.Unmarshal(s.scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Error != "" {
			s.done = true
			return StreamChunk{}, &APIError{Message: line.Error}
		}

		chunk := StreamChunk{Content: line.Message.Content, Done: line.Done}
		if line.Done {
			s.done = true
			chunk.DoneReason = line.DoneReason
			chunk.EvalCount = line.EvalCount
		}
		return chunk, nil
	}

	if err := s.scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		s.done = true
		return StreamChunk{}, fmt.Errorf("ollama: stream interrupted: %w", err)
	}
	s.done = true
	return StreamChunk{}, io.EOF
}
