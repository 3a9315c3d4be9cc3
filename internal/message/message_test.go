package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/line-webhook/internal/line"
)

func strPtr(s string) *string { return &s }

func idPtr(s string) *line.ID {
	id := line.ID(s)
	return &id
}

func TestNormalizeText(t *testing.T) {
	ts := int64(1700000000000)
	ev := &line.Event{
		Type:      "message",
		Timestamp: &ts,
		Source:    &line.Source{Type: "user", UserID: "U1"},
		Message:   &line.Message{Type: "text", Text: strPtr("hello")},
	}

	got, err := Normalize(ev)
	require.NoError(t, err)
	assert.Equal(t, StoredMessage{
		Timestamp: time.UnixMilli(1700000000000).Local().Format("2006-01-02 15:04:05"),
		UserID:    "U1",
		Type:      "text",
		Content:   "hello",
	}, got)
}

func TestRenderContent(t *testing.T) {
	tests := []struct {
		name string
		msg  *line.Message
		want string
	}{
		{name: "text", msg: &line.Message{Type: "text", Text: strPtr("hi there")}, want: "hi there"},
		{name: "text without text field", msg: &line.Message{Type: "text"}, want: ""},
		{name: "text keeps non-ascii", msg: &line.Message{Type: "text", Text: strPtr("こんにちは")}, want: "こんにちは"},
		{
			name: "sticker",
			msg:  &line.Message{Type: "sticker", PackageID: idPtr("446"), StickerID: idPtr("1988")},
			want: "[Sticker: package=446, sticker=1988]",
		},
		{
			name: "sticker without package",
			msg:  &line.Message{Type: "sticker", StickerID: idPtr("1988")},
			want: "[Sticker: package=unknown, sticker=1988]",
		},
		{
			name: "sticker without ids",
			msg:  &line.Message{Type: "sticker"},
			want: "[Sticker: package=unknown, sticker=unknown]",
		},
		{name: "image", msg: &line.Message{Type: "image", ID: "1"}, want: "[Image message]"},
		{name: "video", msg: &line.Message{Type: "video"}, want: "[video message]"},
		{name: "location", msg: &line.Message{Type: "location"}, want: "[location message]"},
		{name: "empty type", msg: &line.Message{}, want: "[ message]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderContent(tt.msg))
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	_, err := Normalize(nil)
	assert.ErrorIs(t, err, ErrNotMessage)

	_, err = Normalize(&line.Event{Type: "follow"})
	assert.ErrorIs(t, err, ErrNotMessage)

	ts := int64(1700000000000)
	user := &line.Source{Type: "user", UserID: "U1"}
	tests := []struct {
		name string
		ev   *line.Event
		want string
	}{
		{name: "no source", ev: &line.Event{Type: "message", Timestamp: &ts, Message: &line.Message{Type: "text"}}, want: "source.userId"},
		{name: "no user id", ev: &line.Event{Type: "message", Timestamp: &ts, Source: &line.Source{Type: "group"}, Message: &line.Message{Type: "text"}}, want: "source.userId"},
		{name: "no timestamp", ev: &line.Event{Type: "message", Source: user, Message: &line.Message{Type: "text"}}, want: "timestamp"},
		{name: "no message", ev: &line.Event{Type: "message", Timestamp: &ts, Source: user}, want: "missing message"},
		{name: "no message type", ev: &line.Event{Type: "message", Timestamp: &ts, Source: user, Message: &line.Message{Text: strPtr("hi")}}, want: "message.type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.ev)
			assert.ErrorIs(t, err, ErrIncompleteEvent)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	orig := time.Local
	t.Cleanup(func() { time.Local = orig })

	time.Local = time.UTC
	assert.Equal(t, "2023-11-14 22:13:20", FormatTimestamp(1700000000000))

	time.Local = time.FixedZone("JST", 9*60*60)
	assert.Equal(t, "2023-11-15 07:13:20", FormatTimestamp(1700000000999))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 30))
	assert.Equal(t, "abc...", Preview("abcdef", 3))
	assert.Equal(t, "日本...", Preview("日本語", 2))
}
