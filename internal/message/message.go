// Package message turns LINE webhook events into the flat records kept in the
// message log.
package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/mattjoyce/line-webhook/internal/line"
)

// TimestampLayout is the local-time layout of StoredMessage.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Content placeholders.
const (
	ImageContent   = "[Image message]"
	unknownSticker = "unknown"
)

// StoredMessage is one entry of the message log.
type StoredMessage struct {
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
}

// Log is the on-disk document. Messages keep append order.
type Log struct {
	Messages []StoredMessage `json:"messages"`
}

var (
	// ErrNotMessage is returned by Normalize for events whose type is not "message".
	ErrNotMessage = errors.New("not a message event")
	// ErrIncompleteEvent is returned when a message event lacks a field every
	// message record needs: timestamp, source.userId, message or message.type.
	ErrIncompleteEvent = errors.New("incomplete message event")
)

// Normalize builds the StoredMessage for ev.
func Normalize(ev *line.Event) (StoredMessage, error) {
	if ev == nil || ev.Type != line.EventTypeMessage {
		return StoredMessage{}, ErrNotMessage
	}
	if ev.Source == nil || ev.Source.UserID == "" {
		return StoredMessage{}, fmt.Errorf("%w: missing source.userId", ErrIncompleteEvent)
	}
	if ev.Timestamp == nil {
		return StoredMessage{}, fmt.Errorf("%w: missing timestamp", ErrIncompleteEvent)
	}
	if ev.Message == nil {
		return StoredMessage{}, fmt.Errorf("%w: missing message", ErrIncompleteEvent)
	}
	if ev.Message.Type == "" {
		return StoredMessage{}, fmt.Errorf("%w: missing message.type", ErrIncompleteEvent)
	}

	return StoredMessage{
		Timestamp: FormatTimestamp(*ev.Timestamp),
		UserID:    ev.Source.UserID,
		Type:      ev.Message.Type,
		Content:   RenderContent(ev.Message),
	}, nil
}

// RenderContent returns the human readable content for a message object.
func RenderContent(m *line.Message) string {
	switch m.Type {
	case "text":
		if m.Text == nil {
			return ""
		}
		return *m.Text
	case "sticker":
		return fmt.Sprintf("[Sticker: package=%s, sticker=%s]", idOrUnknown(m.PackageID), idOrUnknown(m.StickerID))
	case "image":
		return ImageContent
	default:
		return fmt.Sprintf("[%s message]", m.Type)
	}
}

// FormatTimestamp renders epoch milliseconds in local time.
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).Local().Format(TimestampLayout)
}

// Preview shortens content for log lines.
func Preview(content string, max int) string {
	r := []rune(content)
	if len(r) <= max {
		return content
	}
	return string(r[:max]) + "..."
}

func idOrUnknown(id *line.ID) string {
	if id == nil {
		return unknownSticker
	}
	return string(*id)
}
