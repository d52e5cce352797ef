// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// MaxEventSize is the largest SSE event we accept (1MB).
const MaxEventSize = 1 << 20

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk is one chat.completion.chunk object.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Content returns the delta content of the first choice.
func (c *StreamChunk) Content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// FinishReason returns the finish reason, or "" while streaming.
func (c *StreamChunk) FinishReason() string {
	if len(c.Choices) > 0 && c.Choices[0].FinishReason != nil {
		return *c.Choices[0].FinishReason
	}
	return ""
}

// StreamCallback is called for each received chunk.
type StreamCallback func(chunk StreamChunk)

// StreamError is a failure after content started flowing. Partial holds
// what the caller already received.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	scanner *bufio.Scanner
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 16*1024), MaxEventSize)
	return &SSEReader{scanner: sc}
}

// ReadEvent returns the data of the next event, joining multi-line data
// fields with "\n". Comment lines and id/retry/event fields are ignored.
// It returns io.EOF once the stream ends with no pending data.
func (s *SSEReader) ReadEvent() ([]byte, error) {
	var dataLines [][]byte
	for s.scanner.Scan() {
		line := bytes.TrimRight(s.scanner.Bytes(), "\r")
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}
		if rest, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			dataLines = append(dataLines, bytes.Clone(bytes.TrimPrefix(rest, []byte(" "))))
		}
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	if len(dataLines) > 0 {
		return bytes.Join(dataLines, []byte("\n")), nil
	}
	return nil, io.EOF
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// ChatStream performs a streaming chat completion. The callback runs for
// each chunk in arrival order. Failures while connecting are retried with
// exponential backoff; once the first chunk has been delivered, a failure
// is returned as a *StreamError instead.
func (c *Client) ChatStream(ctx context.Context, messages []ChatMessage, callback StreamCallback) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(ChatRequest{Model: c.model, Messages: messages, Stream: true})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			delay := c.calculateBackoff(attempt - 1)
			log.Printf("CLOUD_RETRY | attempt=%d delay=%s err=%v", attempt, delay, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.open(ctx, body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			lastErr = err
			if !isRetryable(err) {
				return err
			}
			continue
		}

		err = c.processStream(ctx, resp.Body, callback)
		resp.Body.Close()
		return err
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Chat runs a streaming request and returns the concatenated answer.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	var b strings.Builder
	err := c.ChatStream(ctx, messages, func(chunk StreamChunk) {
		b.WriteString(chunk.Content())
	})
	return b.String(), err
}

func (c *Client) open(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	log.Printf("CLOUD_RESPONSE | status=%d model=%s key=%s elapsed=%s",
		resp.StatusCode, c.model, c.KeyFingerprint(), time.Since(start).Round(time.Millisecond))

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, handleErrorResponse(resp.StatusCode, readErrorBody(resp.Body))
	}
	return resp, nil
}

// processStream reads events until [DONE], a finish reason or EOF.
func (c *Client) processStream(ctx context.Context, body io.Reader, callback StreamCallback) error {
	reader := NewSSEReader(body)
	var partial strings.Builder

	fail := func(err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &StreamError{Partial: partial.String(), Err: err}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := reader.ReadEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fail(err)
		}

		if bytes.Equal(bytes.TrimSpace(data), []byte("[DONE]")) {
			return nil
		}

		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			continue
		}
		if chunk.Error != nil && chunk.Error.Message != "" {
			return fail(errors.New(chunk.Error.Message))
		}

		partial.WriteString(chunk.Content())
		callback(chunk)

		if chunk.FinishReason() != "" {
			return nil
		}
	}
}
