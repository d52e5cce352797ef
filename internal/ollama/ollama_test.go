// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessageConstructors(t *testing.T) {
	tests := []struct {
		msg  Message
		role string
	}{
		{NewSystemMessage("be brief"), "system"},
		{NewUserMessage("Hello"), "user"},
		{NewAssistantMessage("Hi"), "assistant"},
	}
	for _, tc := range tests {
		if tc.msg.Role != tc.role {
			t.Errorf("Role = %q, want %q", tc.msg.Role, tc.role)
		}
		if tc.msg.Content == "" {
			t.Error("Content should be set")
		}
	}
}

func TestModelInfo_FormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{5 * 1024 * 1024, "5.0 MB"},
		{2 * 1024 * 1024 * 1024, "2.0 GB"},
	}
	for _, tc := range tests {
		if got := (ModelInfo{Size: tc.size}).FormatSize(); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}

func TestStreamChunk_TokensPerSecond(t *testing.T) {
	c := StreamChunk{CompletionTokens: 100, EvalDuration: 2 * time.Second}
	if got := c.TokensPerSecond(); got != 50 {
		t.Errorf("TokensPerSecond = %v, want 50", got)
	}
	if got := (StreamChunk{}).TokensPerSecond(); got != 0 {
		t.Errorf("zero chunk TokensPerSecond = %v, want 0", got)
	}
}

// =============================================================================
// STREAM READER TESTS
// =============================================================================

func TestStreamReader_Process(t *testing.T) {
	body := strings.Join([]string{
		`{"model":"llama3.2","message":{"role":"assistant","content":"Hel"},"done":false}`,
		``,
		`not json`,
		`{"model":"llama3.2","message":{"role":"assistant","content":"lo"},"done":false}`,
		`{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true,"eval_count":2,"eval_duration":1000000000}`,
		`{"model":"llama3.2","message":{"role":"assistant","content":"ignored"},"done":false}`,
	}, "\n")

	r := NewStreamReader(strings.NewReader(body))
	var chunks []StreamChunk
	if err := r.Process(context.Background(), func(c StreamChunk) { chunks = append(chunks, c) }); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if r.Accumulated() != "Hello" {
		t.Errorf("Accumulated = %q, want Hello", r.Accumulated())
	}
	if r.Chunks() != 2 || r.Malformed() != 1 {
		t.Errorf("Chunks=%d Malformed=%d, want 2 and 1", r.Chunks(), r.Malformed())
	}
	last := chunks[2]
	if !last.Done || last.CompletionTokens != 2 || last.EvalDuration != time.Second {
		t.Errorf("final chunk = %+v", last)
	}
	if r.Model() != "llama3.2" {
		t.Errorf("Model = %q", r.Model())
	}
}

func TestStreamReader_ErrorLine(t *testing.T) {
	r := NewStreamReader(strings.NewReader(`{"error":"model crashed"}` + "\n"))
	err := r.Process(context.Background(), func(StreamChunk) {})
	if err == nil || !strings.Contains(err.Error(), "model crashed") {
		t.Fatalf("err = %v, want model crashed", err)
	}
}

func TestStreamReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewStreamReader(strings.NewReader(`{"message":{"content":"x"}}` + "\n"))
	if err := r.Process(ctx, func(StreamChunk) {}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithConfig(&ClientConfig{BaseURL: srv.URL + "/", DefaultModel: "test-model"})
}

func TestClient_ChatStream(t *testing.T) {
	var got ChatRequest
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		for _, part := range []string{"The ", "answer"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	})

	answer, err := client.Chat(context.Background(), "", []Message{
		NewSystemMessage("sys"),
		NewUserMessage("q"),
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "The answer" {
		t.Errorf("answer = %q", answer)
	}
	if got.Model != "test-model" || !got.Stream || len(got.Messages) != 2 {
		t.Errorf("request = %+v", got)
	}
}

func TestClient_ChatStreamStatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(error) bool
		wantMsg string
	}{
		{"not found", http.StatusNotFound, "", IsModelNotFound, "model not found"},
		{"server error body", http.StatusInternalServerError, `{"error":"out of memory"}`, func(err error) bool { return err != nil }, "out of memory"},
		{"server error plain", http.StatusBadGateway, "nope", func(err error) bool { return err != nil }, "502"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			})
			err := client.ChatStream(context.Background(), "m", nil, func(StreamChunk) {})
			if !tc.check(err) {
				t.Fatalf("unexpected error classification: %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("err = %q, want substring %q", err, tc.wantMsg)
			}
		})
	}
}

func TestClient_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: url, Timeout: time.Second})
	if err := client.CheckRunning(context.Background()); !IsNotRunning(err) {
		t.Errorf("CheckRunning err = %v, want not running", err)
	}
	err := client.ChatStream(context.Background(), "", nil, func(StreamChunk) {})
	if !IsNotRunning(err) {
		t.Errorf("ChatStream err = %v, want not running", err)
	}
}

func TestClient_ListModels(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, "Ollama is running")
		case "/api/tags":
			fmt.Fprint(w, `{"models":[{"name":"llama3.2","size":2048}]}`)
		default:
			http.NotFound(w, r)
		}
	})

	if err := client.CheckRunning(context.Background()); err != nil {
		t.Fatalf("CheckRunning: %v", err)
	}
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 1 || models[0].Name != "llama3.2" {
		t.Errorf("models = %+v", models)
	}
}

func TestClient_Defaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{BaseURL: "http://localhost:11434/"})
	if c.BaseURL() != "http://localhost:11434" {
		t.Errorf("BaseURL = %q, trailing slash should be trimmed", c.BaseURL())
	}
	if c.Model() != "llama3.2" {
		t.Errorf("Model = %q", c.Model())
	}
	if NewClient().config.Timeout != 30*time.Second {
		t.Error("default timeout should be 30s")
	}
}
