// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_ChatSendsRequestAndReturnsStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.SessionID != "s1" || req.Query != "hi" || !req.Online {
			t.Errorf("unexpected body %+v", req)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"content\":\"hello\"}\n\ndata: [DONE]\n\n")
	}))
	defer server.Close()

	body, err := NewClient(server.URL).Chat(context.Background(), ChatRequest{SessionID: "s1", Query: "hi", Online: true})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if string(data) != "data: {\"content\":\"hello\"}\n\ndata: [DONE]\n\n" {
		t.Errorf("body = %q", data)
	}
}

func TestClient_ChatValidation(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	if _, err := c.Chat(context.Background(), ChatRequest{SessionID: "s", Query: "  "}); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("empty query err = %v", err)
	}
	if _, err := c.Chat(context.Background(), ChatRequest{Query: "q"}); !errors.Is(err, ErrNoSession) {
		t.Errorf("missing session err = %v", err)
	}
}

func TestClient_ChatHTTPErrorIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":"rate limit exceeded"}`)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Chat(context.Background(), ChatRequest{SessionID: "s", Query: "q"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if te.StatusCode != http.StatusTooManyRequests || te.Op != "chat" {
		t.Errorf("unexpected error fields %+v", te)
	}
	if te.Err.Error() != "rate limit exceeded" {
		t.Errorf("message = %q", te.Err.Error())
	}
}

func TestClient_ChatConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	_, err := NewClient(addr).Chat(context.Background(), ChatRequest{SessionID: "s", Query: "q"})
	if !IsTransportError(err) {
		t.Fatalf("err = %v, want transport error", err)
	}
}

func TestClient_ClearSession(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := NewClient(server.URL).ClearSession(context.Background(), "abc-123"); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if gotPath != "/api/chat/clear/abc-123" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestClient_HealthAndRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/health":
			io.WriteString(w, `{"status":"ok","online":true,"cloud_available":false}`)
		case r.Method == http.MethodPost && r.URL.Path == "/refresh-network":
			io.WriteString(w, `{"status":"ok","online":false,"cloud_available":false}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL + "/")
	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !h.Online || h.CloudAvailable || h.Status != "ok" {
		t.Errorf("Health = %+v", h)
	}

	h, err = c.RefreshNetwork(context.Background())
	if err != nil {
		t.Fatalf("RefreshNetwork: %v", err)
	}
	if h.Online {
		t.Errorf("RefreshNetwork = %+v", h)
	}
}

func TestClient_HealthTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).WithTimeout(20 * time.Millisecond).Health(context.Background())
	if !IsTransportError(err) {
		t.Errorf("err = %v, want transport error", err)
	}
}
