// Package stream consumes server-pushed event streams.
//
// Two transports are supported behind the Source interface:
//   - FetchSource reads a plain response body (typically a POST) and recovers
//     "data: <json>" lines from it.
//   - EventSource is a Server-Sent Events client that speaks the full
//     event/data/id/retry field grammar and tracks connection state.
//
// Both deliver Events in arrival order. Consumers decode Event.Data
// themselves, e.g. with DecodeFrame for chat streams.
package stream

import (
	"encoding/json"
	"fmt"
)

// FrameType discriminates chat stream frames.
type FrameType string

const (
	// FrameChunk carries an incremental piece of assistant content.
	FrameChunk FrameType = "chunk"
	// FrameComplete carries the final, authoritative assistant message.
	FrameComplete FrameType = "complete"
	// FrameError carries a user-facing failure message.
	FrameError FrameType = "error"
)

// Frame is one JSON envelope from a chat stream.
type Frame struct {
	Type    FrameType `json:"type"`
	Content string    `json:"content,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Event is a single unit delivered by a Source.
type Event struct {
	// ID is the last event id seen on the stream (SSE only).
	ID string
	// Type is the SSE event name; "message" when unnamed.
	Type string
	// Data is the raw payload with the "data:" prefix removed.
	Data []byte
}

// Result wraps an event or a recoverable error from a stream. Errors delivered
// this way do not close the stream; the channel closing does.
type Result struct {
	Event *Event
	Err   error
}

// DecodeFrame parses a chat frame from an event payload.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("decode frame: missing type")
	}
	return f, nil
}
