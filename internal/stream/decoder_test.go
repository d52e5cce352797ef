// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"reflect"
	"strings"
	"testing"
)

const sampleStream = "data: {\"content\":\"Hel\",\"source\":\"online\"}\n" +
	": keep-alive comment\n" +
	"data: {\"content\":\"lo \\u00e9t\u00e9\"}\r\n" +
	"\n" +
	"data: {\"fallback\":true,\"content\":\"ignored\"}\n" +
	"data: {not json\n" +
	"data: {\"content\":\" world\",\"source\":\"offline\"}\n" +
	"data: {\"error\":\"boom\",\"content\":\"partial\"}\n" +
	"data: {\"done\":true}\n" +
	"data: [DONE]\n" +
	"data: {\"content\":\"after done\"}\n"

func decodeAll(fragments ...string) ([]Event, int) {
	d := NewDecoder()
	var events []Event
	for _, f := range fragments {
		events = append(events, d.FeedString(f)...)
	}
	events = append(events, d.Finish()...)
	return events, d.Malformed()
}

func TestDecoder_WholeStream(t *testing.T) {
	events, malformed := decodeAll(sampleStream)

	want := []Event{
		{Kind: EventContent, Text: "Hel", Source: "online"},
		{Kind: EventContent, Text: "lo été"},
		{Kind: EventFallback},
		{Kind: EventContent, Text: " world", Source: "offline"},
		{Kind: EventError, Message: "boom", Text: "partial"},
		{Kind: EventEnd},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events mismatch\n got: %+v\nwant: %+v", events, want)
	}
	if malformed != 1 {
		t.Errorf("malformed = %d, want 1", malformed)
	}
}

func TestDecoder_SplitInvariance(t *testing.T) {
	want, wantMalformed := decodeAll(sampleStream)

	// Every two-way split, including splits inside a single line.
	for i := 0; i <= len(sampleStream); i++ {
		got, malformed := decodeAll(sampleStream[:i], sampleStream[i:])
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d: got %+v, want %+v", i, got, want)
		}
		if malformed != wantMalformed {
			t.Fatalf("split at %d: malformed = %d, want %d", i, malformed, wantMalformed)
		}
	}

	// Byte-at-a-time delivery.
	parts := make([]string, 0, len(sampleStream))
	for i := 0; i < len(sampleStream); i++ {
		parts = append(parts, sampleStream[i:i+1])
	}
	got, _ := decodeAll(parts...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("byte-wise: got %+v, want %+v", got, want)
	}
}

func TestDecoder_HelloScenario(t *testing.T) {
	events, _ := decodeAll("data: {\"content\":\"Hel\"}\ndata: {\"content\":\"lo\"}\ndata: [DONE]\n")

	var sb strings.Builder
	for _, ev := range events {
		if ev.Kind == EventContent {
			sb.WriteString(ev.Text)
		}
	}
	if sb.String() != "Hello" {
		t.Errorf("delivered %q, want %q", sb.String(), "Hello")
	}
	if events[len(events)-1].Kind != EventEnd {
		t.Errorf("last event = %v, want end", events[len(events)-1].Kind)
	}
}

func TestDecoder_NothingAfterDone(t *testing.T) {
	d := NewDecoder()
	events := d.FeedString("data: {\"content\":\"a\"}\ndata: [DONE]\ndata: {\"content\":\"b\"}\n")
	if len(events) != 2 || events[1].Kind != EventEnd {
		t.Fatalf("unexpected events: %+v", events)
	}
	if !d.Done() {
		t.Fatal("decoder should be done")
	}
	if more := d.FeedString("data: {\"content\":\"c\"}\n"); len(more) != 0 {
		t.Errorf("events after done: %+v", more)
	}
	if more := d.Finish(); len(more) != 0 {
		t.Errorf("Finish after done returned %+v", more)
	}
}

func TestDecoder_MalformedDoesNotDisturbLaterEvents(t *testing.T) {
	clean := "data: {\"content\":\"x\"}\ndata: {\"content\":\"y\"}\n"
	dirty := "data: {\"content\":\"x\"}\ndata: {\"content\":\ndata: [1,2\ndata: {\"content\":\"y\"}\n"

	a, am := decodeAll(clean)
	b, bm := decodeAll(dirty)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("malformed lines changed the event sequence: %+v vs %+v", a, b)
	}
	if am != 0 || bm != 2 {
		t.Errorf("malformed counts = %d, %d; want 0, 2", am, bm)
	}
}

func TestDecoder_FinishHandlesUnterminatedLine(t *testing.T) {
	d := NewDecoder()
	if events := d.FeedString("data: {\"content\":\"tail\"}"); len(events) != 0 {
		t.Fatalf("partial line decoded early: %+v", events)
	}
	if d.Pending() == 0 {
		t.Fatal("expected carried-over bytes")
	}
	events := d.Finish()
	want := []Event{{Kind: EventContent, Text: "tail"}, {Kind: EventEnd}}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("Finish = %+v, want %+v", events, want)
	}
}

func TestDecoder_OversizedLineDropped(t *testing.T) {
	d := NewDecoder()
	d.FeedString("data: {\"content\":\"" + strings.Repeat("a", MaxLineSize+1))
	if d.Pending() != 0 {
		t.Errorf("Pending = %d, want 0 after oversized line", d.Pending())
	}
	if d.Malformed() != 1 {
		t.Errorf("Malformed = %d, want 1", d.Malformed())
	}
}

func TestEventKind_String(t *testing.T) {
	tests := map[EventKind]string{
		EventContent:  "content",
		EventFallback: "fallback",
		EventError:    "error",
		EventEnd:      "end",
		EventKind(42): "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(k), got, want)
		}
	}
}
