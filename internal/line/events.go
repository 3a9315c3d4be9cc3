package line

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// EventTypeMessage is the only event type that produces a stored message.
const EventTypeMessage = "message"

// ErrMalformedEvent is returned by FirstEvent when events[0] is null or has
// no type.
var ErrMalformedEvent = errors.New("malformed event")

// Envelope is the body of a LINE webhook delivery.
type Envelope struct {
	Destination string            `json:"destination"`
	Events      []json.RawMessage `json:"events"`
}

// Event is a single webhook event. Only the fields this service reads are
// declared.
type Event struct {
	Type            string           `json:"type"`
	Mode            string           `json:"mode,omitempty"`
	Timestamp       *int64           `json:"timestamp"`
	WebhookEventID  string           `json:"webhookEventId,omitempty"`
	DeliveryContext *DeliveryContext `json:"deliveryContext,omitempty"`
	Source          *Source          `json:"source,omitempty"`
	Message         *Message         `json:"message,omitempty"`
}

// DeliveryContext tells whether LINE is redelivering an event.
type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// Source identifies the sender.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// Message is the message object of a message event. Optional fields are
// pointers so absence can be told apart from an empty value.
type Message struct {
	ID        string  `json:"id,omitempty"`
	Type      string  `json:"type"`
	Text      *string `json:"text,omitempty"`
	StickerID *ID     `json:"stickerId,omitempty"`
	PackageID *ID     `json:"packageId,omitempty"`
}

// ID is an identifier LINE documents as a string. Numeric values are
// accepted too and kept in their literal form.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// ParseEnvelope decodes a delivery body. It must only be called after the
// body signature has been verified.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &env, nil
}

// FirstEvent decodes events[0]. The second return value reports how many
// further events were present and left unprocessed.
func (e *Envelope) FirstEvent() (*Event, int, error) {
	if len(e.Events) == 0 {
		return nil, 0, nil
	}
	dropped := len(e.Events) - 1
	raw := bytes.TrimSpace(e.Events[0])
	if bytes.Equal(raw, []byte("null")) {
		return nil, dropped, fmt.Errorf("%w: event is null", ErrMalformedEvent)
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, dropped, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return &ev, dropped, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	return &ev, dropped, nil
}

// IsRedelivery reports whether LINE flagged the event as a redelivery.
func (ev *Event) IsRedelivery() bool {
	return ev.DeliveryContext != nil && ev.DeliveryContext.IsRedelivery
}
