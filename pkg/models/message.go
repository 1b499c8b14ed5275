package models

import (
	"encoding/json"
	"strings"
)

// Message roles. Roles outside this set are rejected by validation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Part types.
const (
	PartText = "text"
	PartData = "data"
)

type Message struct {
	ID   string `json:"id"`
	Chat string `json:"chat"`
	Role string `json:"role"`
	// Parts is the ordered content of the message. Finalized messages are
	// never mutated; edits and tombstones append new versions.
	Parts []Part `json:"parts,omitempty"`
	TS    int64  `json:"ts"`
	// Deleted flag; soft-delete implemented as an appended tombstone version
	Deleted bool `json:"deleted,omitempty"`
}

// Part is a single typed content element of a message.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part { return Part{Type: PartText, Text: text} }

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
