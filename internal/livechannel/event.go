package livechannel

import (
	"encoding/json"
	"errors"
	"fmt"

	"linguachat/client/internal/models"
)

// Frame kinds sent by the chat service.
const (
	KindChatMessage       = "chat_message"
	KindTranslationUpdate = "translation_update"
)

var errMissingMessageID = errors.New("translation update without message_id")

// Meta tags every event with the connection it came from.
type Meta struct {
	RoomID     string
	Generation uint64
}

// Event is the closed set of events a Channel reports: NewMessage,
// TranslationUpdate, Unrecognized and StateChange.
type Event interface {
	EventMeta() Meta
	isEvent()
}

// NewMessage is a message broadcast to the room.
type NewMessage struct {
	Meta
	Message models.Message
}

// TranslationUpdate carries the display-language text of a known message.
type TranslationUpdate struct {
	Meta
	MessageID string
	Text      string
}

// Unrecognized is a well-formed frame of a kind this client does not handle.
type Unrecognized struct {
	Meta
	Kind string
	Raw  []byte
}

// StateChange reports a connection state transition. Err is set for
// handshake failures and abnormal terminations.
type StateChange struct {
	Meta
	State State
	Err   error
}

func (m Meta) EventMeta() Meta { return m }

func (NewMessage) isEvent()        {}
func (TranslationUpdate) isEvent() {}
func (Unrecognized) isEvent()      {}
func (StateChange) isEvent()       {}

// inboundFrame is the union of all server frame fields.
type inboundFrame struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	MessageID models.FlexibleID `json:"message_id"`
	UserID    models.FlexibleID `json:"user_id"`
	Username  string            `json:"username"`
}

type outboundFrame struct {
	Message string `json:"message"`
}

// decodeFrame turns a raw frame into an event. Malformed frames return an
// error; unknown kinds return Unrecognized.
func decodeFrame(meta Meta, data []byte) (Event, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch frame.Type {
	case KindChatMessage:
		id := string(frame.MessageID)
		if id == "" {
			id = models.NewPlaceholderID()
		}
		return NewMessage{
			Meta: meta,
			Message: models.Message{
				ID:              id,
				OriginalContent: frame.Message,
				Sender:          models.Sender{ID: string(frame.UserID), DisplayName: frame.Username},
			},
		}, nil
	case KindTranslationUpdate:
		if frame.MessageID == "" {
			return nil, errMissingMessageID
		}
		return TranslationUpdate{Meta: meta, MessageID: string(frame.MessageID), Text: frame.Message}, nil
	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		return Unrecognized{Meta: meta, Kind: frame.Type, Raw: raw}, nil
	}
}

func encodeFrame(text string) ([]byte, error) {
	return json.Marshal(outboundFrame{Message: text})
}
