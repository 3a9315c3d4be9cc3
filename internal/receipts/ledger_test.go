package receipts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/line-webhook/internal/storage"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "receipts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestRecordAndGet(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()
	at := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

	id, err := l.Record(ctx, Receipt{
		RequestID:      "req-1",
		WebhookEventID: "01HABC",
		EventType:      "message",
		Outcome:        OutcomeStored,
		Redelivery:     true,
		DroppedEvents:  2,
		ReceivedAt:     at,
	})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "receipt id should be a UUID")

	got, err := l.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "01HABC", got.WebhookEventID)
	assert.Equal(t, "message", got.EventType)
	assert.Equal(t, OutcomeStored, got.Outcome)
	assert.True(t, got.Redelivery)
	assert.Equal(t, 2, got.DroppedEvents)
	assert.True(t, at.Equal(got.ReceivedAt))
}

func TestRecordDefaultsReceivedAt(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	id, err := l.Record(context.Background(), Receipt{Outcome: OutcomeRejected})
	require.NoError(t, err)

	got, err := l.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(got.ReceivedAt))
	assert.Empty(t, got.WebhookEventID)
}

func TestRecordRequiresOutcome(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	_, err := l.Record(context.Background(), Receipt{})
	assert.Error(t, err)
}

func TestCount(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()
	for _, o := range []Outcome{OutcomeStored, OutcomeStored, OutcomeIgnored, OutcomeFailed} {
		_, err := l.Record(ctx, Receipt{Outcome: o})
		require.NoError(t, err)
	}

	n, err := l.Count(ctx, OutcomeStored)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = l.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = l.Count(ctx, OutcomeInvalid)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	_, err := l.Get(context.Background(), "nope")
	assert.Error(t, err)
}
