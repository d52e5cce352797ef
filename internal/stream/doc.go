// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the line-framed event protocol spoken between the
// bridgeai client and its gateway.
//
// The gateway answers a chat turn with a text/event-stream body made of
// "data: {json}" lines terminated by "data: [DONE]". Network reads split that
// body at arbitrary points, so the Decoder keeps a carry-over buffer of the
// trailing partial line between fragments and only ever parses complete lines.
//
// # Key Types
//
//   - Event: tagged variant (Content, Fallback, Error, End) decided once at decode time
//   - Decoder: incremental fragment decoder with carry-over and malformed-line counting
//   - Reader: lazy event sequence over an io.Reader
//   - Encoder: frame writer used by the gateway side
//
// # Usage
//
//	r := stream.NewReader(resp.Body)
//	for {
//	    ev, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if ev.Kind == stream.EventContent {
//	        fmt.Print(ev.Text)
//	    }
//	}
package stream
