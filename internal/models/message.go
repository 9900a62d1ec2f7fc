// Package models defines the core domain entities for ca-monitor.
// These models represent incoming chat messages, detected contract addresses
// and the notifications routed for them.
//
// Terminology:
//   - Source: a Telegram channel, group or private chat a message arrived from.
//   - CA: a Base58-encoded Solana contract (mint) address, 32–44 characters.
//   - Hint: a platform tag derived from a known domain or keyword in the message.
package models

import (
	"time"
)

// SourceKind is the kind of chat a message originated from
type SourceKind string

const (
	SourceChannel SourceKind = "channel"
	SourceGroup   SourceKind = "group"
	SourceUser    SourceKind = "user"
)

// Valid reports whether k is one of the known source kinds
func (k SourceKind) Valid() bool {
	switch k {
	case SourceChannel, SourceGroup, SourceUser:
		return true
	}
	return false
}

// Button is an inline button (or embedded text link) attached to a message.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// IncomingMessage is a chat message handed to the detection engine by the chat client.
type IncomingMessage struct {
	SourceID    string     `json:"source_id"`
	SourceKind  SourceKind `json:"source_kind"`
	SourceTitle string     `json:"source_title,omitempty"`
	Text        string     `json:"text"`
	Buttons     []Button   `json:"buttons,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
}

// Validate checks that the message carries the fields the engine needs.
// Empty text and no buttons is a valid (if uninteresting) message.
func (m *IncomingMessage) Validate() error {
	if m == nil {
		return &InputError{Field: "message", Reason: "message is nil"}
	}
	if m.SourceID == "" {
		return &InputError{Field: "source_id", Reason: "must not be empty"}
	}
	if !m.SourceKind.Valid() {
		return &InputError{Field: "source_kind", Reason: "must be one of channel, group, user (got " + string(m.SourceKind) + ")"}
	}
	return nil
}

// IsEmpty reports whether the message has neither text nor buttons.
func (m *IncomingMessage) IsEmpty() bool {
	return m.Text == "" && len(m.Buttons) == 0
}

// SourceLabel returns a human-readable description of the message source,
// e.g. "Alpha Calls (Channel)".
func (m *IncomingMessage) SourceLabel() string {
	return sourceLabel(m.SourceTitle, m.SourceID, m.SourceKind)
}

func sourceLabel(title, id string, kind SourceKind) string {
	name := title
	if name == "" {
		name = id
	}
	switch kind {
	case SourceChannel:
		return name + " (Channel)"
	case SourceGroup:
		return name + " (Group)"
	case SourceUser:
		return name + " (User)"
	}
	return name
}
