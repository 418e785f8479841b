package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PlaceholderPrefix marks ids generated locally for messages that were seen
// on the live channel before the server assigned them an id.
const PlaceholderPrefix = "local-"

// Message is a single chat message of the currently open room.
type Message struct {
	// ID is unique within a room. Server ids are kept in their decimal string
	// form; placeholder ids start with PlaceholderPrefix.
	ID string
	// OriginalContent is the text as authored. It never changes.
	OriginalContent string
	// TranslatedContent is the text in the viewer's display language, nil
	// until a translation is known.
	TranslatedContent *string
	// Sender is either a full identity record or a bare id.
	Sender Sender
}

// NewPlaceholderID returns a locally unique message id.
func NewPlaceholderID() string {
	return PlaceholderPrefix + uuid.NewString()
}

// IsPlaceholder reports whether the message id was generated locally.
func (m Message) IsPlaceholder() bool {
	return strings.HasPrefix(m.ID, PlaceholderPrefix)
}

// Text returns the translated content when present, the original otherwise.
func (m Message) Text() string {
	if m.TranslatedContent != nil {
		return *m.TranslatedContent
	}
	return m.OriginalContent
}

// Sender identifies the author of a message.
// A bare sender only carries ID and must be resolved through the directory.
type Sender struct {
	ID          string `json:"id"`
	DisplayName string `json:"username,omitempty"`
}

// IsBare reports whether the sender needs a directory lookup.
func (s Sender) IsBare() bool {
	return s.DisplayName == ""
}

// UnmarshalJSON accepts a bare id (number or string) or an object
// {"id": ..., "username": ...}.
func (s *Sender) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Sender{}
		return nil
	}
	if data[0] != '{' {
		var id FlexibleID
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("sender: %w", err)
		}
		*s = Sender{ID: string(id)}
		return nil
	}
	var record struct {
		ID       FlexibleID `json:"id"`
		Username string     `json:"username"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	*s = Sender{ID: string(record.ID), DisplayName: record.Username}
	return nil
}

// FlexibleID decodes identifiers that the backend sends either as JSON
// numbers or as strings.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}
