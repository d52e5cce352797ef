// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("sk-test-key").
		WithBaseURL(srv.URL + "/").
		WithHTTPClient(srv.Client()).
		WithRetryDelay(time.Millisecond)
}

func writeChunk(w io.Writer, content string) {
	fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q},\"finish_reason\":null}]}\n\n", content)
}

// =============================================================================
// SSE READER TESTS
// =============================================================================

func TestSSEReader(t *testing.T) {
	input := ": keep-alive\n" +
		"event: message\n" +
		"data: one\n\n" +
		"data: two\r\n" +
		"data: lines\n\n" +
		"id: 7\n" +
		"data:tail"

	r := NewSSEReader(strings.NewReader(input))
	var events []string
	for {
		data, err := r.ReadEvent()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		events = append(events, string(data))
	}
	assert.Equal(t, []string{"one", "two\nlines", "tail"}, events)
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestChatStream(t *testing.T) {
	var got ChatRequest
	var auth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		writeChunk(w, "Hel")
		fmt.Fprint(w, "data: not-json\n\n")
		writeChunk(w, "lo")
		fmt.Fprint(w, "data: [DONE]\n\n")
		writeChunk(w, "after done")
	})

	answer, err := client.WithModel("gpt-test").Chat(context.Background(), []ChatMessage{
		NewSystemMessage("sys"),
		NewUserMessage("hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", answer)
	assert.Equal(t, "Bearer sk-test-key", auth)
	assert.Equal(t, "gpt-test", got.Model)
	assert.True(t, got.Stream)
	assert.Len(t, got.Messages, 2)
}

func TestChatStream_FinishReasonEndsStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeChunk(w, "done")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		writeChunk(w, " never")
	})
	answer, err := client.Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", answer)
}

func TestChatStream_NotConfigured(t *testing.T) {
	err := NewClient("  ").ChatStream(context.Background(), nil, func(StreamChunk) {})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestChatStream_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, ErrAuthFailed},
		{"not found", http.StatusNotFound, "", ErrModelNotFound},
		{"credits", http.StatusPaymentRequired, "", ErrInsufficientCredits},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			})
			err := client.ChatStream(context.Background(), nil, func(StreamChunk) {})
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, int32(1), calls.Load(), "client errors must not be retried")
		})
	}
}

func TestChatStream_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"message":"overloaded","code":503}}`)
			return
		}
		writeChunk(w, "ok")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	answer, err := client.Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	assert.Equal(t, int32(3), calls.Load())
}

func TestChatStream_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	err := client.WithMaxRetries(2).ChatStream(context.Background(), nil, func(StreamChunk) {})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatStream_MidStreamErrorKeepsPartial(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeChunk(w, "partial ")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"upstream reset\"}}\n\n")
	})

	var received strings.Builder
	err := client.ChatStream(context.Background(), nil, func(c StreamChunk) {
		received.WriteString(c.Content())
	})

	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "partial ", streamErr.Partial)
	assert.Equal(t, "partial ", received.String())
	assert.Contains(t, err.Error(), "upstream reset")
}

func TestChatStream_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeChunk(w, "first")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	err := client.ChatStream(ctx, nil, func(c StreamChunk) {
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestClientAccessors(t *testing.T) {
	c := NewClient("sk-secret")
	assert.True(t, c.IsConfigured())
	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.True(t, strings.HasPrefix(c.KeyFingerprint(), "sha256:"))
	assert.NotContains(t, c.KeyFingerprint(), "secret")
	assert.Equal(t, "(none)", NewClient("").KeyFingerprint())

	c.WithModel("").WithBaseURL("")
	assert.Equal(t, DefaultModel, c.Model(), "empty model keeps the default")
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestHandleErrorResponse(t *testing.T) {
	err := handleErrorResponse(http.StatusInternalServerError, []byte(`{"error":{"message":"boom","code":"server_error"}}`))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "server_error", apiErr.Code)
	assert.Equal(t, 500, apiErr.Status)
	assert.True(t, isRetryable(err))

	err = handleErrorResponse(http.StatusBadRequest, []byte("bad input"))
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad input", apiErr.Message)
	assert.False(t, isRetryable(err))
	assert.False(t, isRetryable(context.Canceled))
}

func TestCalculateBackoff(t *testing.T) {
	c := NewClient("k").WithRetryDelay(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, c.calculateBackoff(1))
	assert.Equal(t, 200*time.Millisecond, c.calculateBackoff(2))
	assert.Equal(t, retryMaxDelay, c.calculateBackoff(20))
}
