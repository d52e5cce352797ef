// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		m := NewMessage(RoleUser, "x")
		if !strings.HasPrefix(m.ID, "msg_") {
			t.Fatalf("ID %q lacks msg_ prefix", m.ID)
		}
		if seen[m.ID] {
			t.Fatalf("duplicate ID %q", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestMessage_Enhanceable(t *testing.T) {
	base := Message{Role: RoleAssistant, Source: SourceOffline, Text: "answer"}

	tests := []struct {
		name   string
		mutate func(*Message)
		want   bool
	}{
		{"offline answer", func(*Message) {}, true},
		{"online answer", func(m *Message) { m.Source = SourceOnline }, false},
		{"user turn", func(m *Message) { m.Role = RoleUser }, false},
		{"already enhanced", func(m *Message) { m.IsEnhanced = true }, false},
		{"still streaming", func(m *Message) { m.Streaming = true }, false},
		{"failed", func(m *Message) { m.Failed = true }, false},
		{"empty", func(m *Message) { m.Text = "" }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := base
			tc.mutate(&m)
			if got := m.Enhanceable(); got != tc.want {
				t.Errorf("Enhanceable() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSource(t *testing.T) {
	if SourceFor(true) != SourceOnline || SourceFor(false) != SourceOffline {
		t.Error("SourceFor mapping wrong")
	}
	if SourceOffline.Badge() != "OFFLINE" || SourceUnset.Badge() != "" {
		t.Error("Badge mapping wrong")
	}
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestTranscript_StreamingLifecycle(t *testing.T) {
	tr := NewTranscript()
	tr.AddUser("question")
	reply := tr.AddAssistant(SourceOnline)

	if !reply.Streaming {
		t.Fatal("assistant placeholder should be streaming")
	}
	tr.AppendText(reply.ID, "Hel")
	tr.AppendText(reply.ID, "lo")
	tr.MarkFallback(reply.ID)
	tr.Finish(reply.ID, 2*time.Second)

	got, ok := tr.Get(reply.ID)
	if !ok {
		t.Fatal("reply missing")
	}
	if got.Text != "Hello" {
		t.Errorf("Text = %q, want Hello", got.Text)
	}
	if got.Source != SourceOffline || !got.FallbackOccurred {
		t.Errorf("fallback not applied: %+v", got)
	}
	if got.Streaming || got.Duration != 2*time.Second {
		t.Errorf("Finish not applied: %+v", got)
	}
}

func TestTranscript_EnhanceOnce(t *testing.T) {
	tr := NewTranscript()
	tr.AddUser("q")
	reply := tr.AddAssistant(SourceOffline)
	tr.AppendText(reply.ID, "offline answer")

	if err := tr.Enhance(reply.ID, "online answer"); err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	got, _ := tr.Get(reply.ID)
	if got.Text != "offline answer" || got.OfflineText != "offline answer" {
		t.Errorf("original not preserved: %+v", got)
	}
	if !got.IsEnhanced || got.EnhancedText != "online answer" {
		t.Errorf("enhancement not stored: %+v", got)
	}
	if got.DisplayText() != "online answer" {
		t.Errorf("DisplayText = %q", got.DisplayText())
	}

	if err := tr.Enhance(reply.ID, "second"); !errors.Is(err, ErrAlreadyEnhanced) {
		t.Errorf("second Enhance err = %v, want ErrAlreadyEnhanced", err)
	}
	got, _ = tr.Get(reply.ID)
	if got.EnhancedText != "online answer" || got.OfflineText != "offline answer" {
		t.Errorf("second Enhance mutated message: %+v", got)
	}

	if !tr.ToggleView(reply.ID) {
		t.Fatal("ToggleView failed")
	}
	got, _ = tr.Get(reply.ID)
	if got.DisplayText() != "offline answer" {
		t.Errorf("toggled DisplayText = %q", got.DisplayText())
	}
}

func TestTranscript_PrecedingUserQuery(t *testing.T) {
	tr := NewTranscript()
	orphan := tr.AddAssistant(SourceOffline)
	tr.AddUser("what is go?")
	reply := tr.AddAssistant(SourceOffline)

	if q, ok := tr.PrecedingUserQuery(reply.ID); !ok || q != "what is go?" {
		t.Errorf("PrecedingUserQuery = %q, %v", q, ok)
	}
	if _, ok := tr.PrecedingUserQuery(orphan.ID); ok {
		t.Error("first message should have no preceding query")
	}
	if _, ok := tr.PrecedingUserQuery("msg_missing"); ok {
		t.Error("unknown ID should have no preceding query")
	}
}

func TestTranscript_ClearInvalidatesHandles(t *testing.T) {
	tr := NewTranscript()
	tr.AddUser("q")
	reply := tr.AddAssistant(SourceOffline)

	gen := tr.Clear()
	if gen != 1 || tr.Generation() != 1 {
		t.Errorf("generation = %d", gen)
	}
	if tr.AppendText(reply.ID, "late chunk") {
		t.Error("AppendText succeeded on a cleared message")
	}
	if err := tr.Enhance(reply.ID, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Enhance err = %v, want ErrNotFound", err)
	}
	if tr.Len() != 0 {
		t.Errorf("Len = %d after Clear", tr.Len())
	}
}

func TestTranscript_ConcurrentAppends(t *testing.T) {
	tr := NewTranscript()
	reply := tr.AddAssistant(SourceOnline)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.AppendText(reply.ID, "x")
			_ = tr.Messages()
		}()
	}
	wg.Wait()

	got, _ := tr.Get(reply.ID)
	if len(got.Text) != 50 {
		t.Errorf("len(Text) = %d, want 50", len(got.Text))
	}
}
