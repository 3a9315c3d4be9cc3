package line

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelopeFirstEvent(t *testing.T) {
	body := []byte(`{
  "destination": "Uxxxxxxxx",
  "events": [
    {
      "type": "message",
      "mode": "active",
      "timestamp": 1700000000000,
      "webhookEventId": "01HABC",
      "deliveryContext": {"isRedelivery": true},
      "source": {"type": "user", "userId": "U1"},
      "message": {"id": "444", "type": "sticker", "stickerId": "52002734", "packageId": 11537}
    },
    {"type": "follow", "timestamp": 1700000000001}
  ]
}`)

	env, err := ParseEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, "Uxxxxxxxx", env.Destination)

	ev, dropped, err := env.FirstEvent()
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, EventTypeMessage, ev.Type)
	require.NotNil(t, ev.Timestamp)
	assert.Equal(t, int64(1700000000000), *ev.Timestamp)
	assert.Equal(t, "01HABC", ev.WebhookEventID)
	assert.True(t, ev.IsRedelivery())
	require.NotNil(t, ev.Source)
	assert.Equal(t, "U1", ev.Source.UserID)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "sticker", ev.Message.Type)
	require.NotNil(t, ev.Message.StickerID)
	assert.Equal(t, ID("52002734"), *ev.Message.StickerID)
	require.NotNil(t, ev.Message.PackageID)
	assert.Equal(t, ID("11537"), *ev.Message.PackageID)
	assert.Nil(t, ev.Message.Text)
}

func TestFirstEventEmpty(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"events":[]}`))
	require.NoError(t, err)

	ev, dropped, err := env.FirstEvent()
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.Zero(t, dropped)

	env, err = ParseEnvelope([]byte(`{}`))
	require.NoError(t, err)
	ev, _, err = env.FirstEvent()
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestParseEnvelopeErrors(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{not json`))
	assert.Error(t, err)

	_, err = ParseEnvelope([]byte(`{"events": "nope"}`))
	assert.Error(t, err)

	env, err := ParseEnvelope([]byte(`{"events": [42]}`))
	require.NoError(t, err)
	_, _, err = env.FirstEvent()
	assert.Error(t, err)
}

func TestIDRejectsObjects(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"events":[{"type":"message","message":{"type":"sticker","stickerId":{"x":1}}}]}`))
	require.NoError(t, err)
	_, _, err = env.FirstEvent()
	assert.Error(t, err)
}

func TestFirstEventMalformed(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		dropped int
	}{
		{name: "null event", body: `{"events":[null]}`},
		{name: "null event with more", body: `{"events":[null, {"type":"follow"}]}`, dropped: 1},
		{name: "missing type", body: `{"events":[{"timestamp":1700000000000,"source":{"userId":"U1"}}]}`},
		{name: "empty type", body: `{"events":[{"type":""}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.body))
			require.NoError(t, err)

			_, dropped, err := env.FirstEvent()
			assert.ErrorIs(t, err, ErrMalformedEvent)
			assert.Equal(t, tt.dropped, dropped)
		})
	}
}

func TestFirstEventWithoutTimestamp(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"events":[{"type":"message"}]}`))
	require.NoError(t, err)

	ev, _, err := env.FirstEvent()
	require.NoError(t, err)
	assert.Nil(t, ev.Timestamp)
}
