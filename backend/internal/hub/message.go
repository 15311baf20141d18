package hub

import (
	"time"

	"github.com/soar/DriveAssist/backend/internal/control"
)

// Server to client message types.
const (
	TypeFull  = "full"
	TypeDelta = "delta"
	TypeEvent = "event"
	TypeError = "error"
)

// Client to server message types.
const (
	CmdOverride      = "override"
	CmdClearFailsafe = "clear_failsafe"
	CmdSelectProfile = "select_profile"
	CmdRecord        = "record"
)

// WSMessage represents a WebSocket message sent from server to client.
type WSMessage struct {
	Type      string             `json:"type"`                // "full", "delta", "event" or "error"
	Seq       int64              `json:"seq"`                 // Sequence number for ordering
	Timestamp int64              `json:"timestamp"`           // Unix timestamp in milliseconds
	Event     string             `json:"event,omitempty"`     // Event name for type "event"
	Data      *control.Telemetry `json:"data,omitempty"`      // Full state for type "full"
	Changes   *control.Delta     `json:"changes,omitempty"`   // Changed fields for type "delta"
	Profile   string             `json:"profile,omitempty"`   // Selected profile for "profile_selected"
	Recording string             `json:"recording,omitempty"` // Recording id for "recording_*" events
	Error     string             `json:"error,omitempty"`
}

// NewFullMessage creates a "full" type message containing the complete state.
func NewFullMessage(seq int64, state *control.Telemetry) *WSMessage {
	return &WSMessage{
		Type:      TypeFull,
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
		Data:      state,
	}
}

// NewDeltaMessage creates a "delta" type message containing only changed fields.
func NewDeltaMessage(seq int64, changes *control.Delta) *WSMessage {
	return &WSMessage{
		Type:      TypeDelta,
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
		Changes:   changes,
	}
}

// NewEventMessage acknowledges a client command.
func NewEventMessage(event string) *WSMessage {
	return &WSMessage{
		Type:      TypeEvent,
		Timestamp: time.Now().UnixMilli(),
		Event:     event,
	}
}

// NewErrorMessage reports a rejected client command.
func NewErrorMessage(event string, err error) *WSMessage {
	return &WSMessage{
		Type:      TypeError,
		Timestamp: time.Now().UnixMilli(),
		Event:     event,
		Error:     err.Error(),
	}
}

// ClientMessage represents a message sent from the client to the server.
type ClientMessage struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled,omitempty"`
	Profile string `json:"profile,omitempty"`
}
