// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

// EventKind identifies which variant an Event holds.
type EventKind int

const (
	// EventContent carries deliverable answer text.
	EventContent EventKind = iota
	// EventFallback signals the gateway switched from the online to the offline model.
	EventFallback
	// EventError carries a gateway-reported error and any accompanying text.
	EventError
	// EventEnd terminates the sequence.
	EventEnd
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case EventContent:
		return "content"
	case EventFallback:
		return "fallback"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is one decoded stream event.
//
// Text is set for EventContent and, optionally, EventError. Message is the
// error string of an EventError. Source is the producing model ("online" or
// "offline") when the gateway reported one.
type Event struct {
	Kind    EventKind
	Text    string
	Message string
	Source  string
}

// Content builds an EventContent.
func Content(text string) Event {
	return Event{Kind: EventContent, Text: text}
}

// Fallback builds an EventFallback.
func Fallback() Event {
	return Event{Kind: EventFallback}
}

// Error builds an EventError.
func Error(message, text string) Event {
	return Event{Kind: EventError, Message: message, Text: text}
}

// End builds an EventEnd.
func End() Event {
	return Event{Kind: EventEnd}
}
