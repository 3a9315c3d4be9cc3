// Package receipts records the outcome of every webhook delivery in SQLite.
// It never stores message content; the message log is the only record of that.
package receipts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies how a delivery was handled.
type Outcome string

const (
	OutcomeStored   Outcome = "stored"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeRejected Outcome = "rejected"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeFailed   Outcome = "failed"
)

// Receipt is one ledger row.
type Receipt struct {
	ID             string
	RequestID      string
	WebhookEventID string
	EventType      string
	Outcome        Outcome
	Detail         string
	Redelivery     bool
	DroppedEvents  int
	ReceivedAt     time.Time
}

// Ledger writes receipts to the receipts table.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Record inserts r and returns its generated ID.
func (l *Ledger) Record(ctx context.Context, r Receipt) (string, error) {
	if r.Outcome == "" {
		return "", fmt.Errorf("outcome is empty")
	}

	id := uuid.NewString()
	receivedAt := r.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = l.now()
	}

	redelivery := 0
	if r.Redelivery {
		redelivery = 1
	}

	_, err := l.db.ExecContext(ctx, `
INSERT INTO receipts(
  id, request_id, webhook_event_id, event_type, outcome, detail, redelivery, dropped_events, received_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, id, r.RequestID, r.WebhookEventID, r.EventType, string(r.Outcome), r.Detail, redelivery, r.DroppedEvents,
		receivedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("record receipt: %w", err)
	}
	return id, nil
}

// Get returns the receipt with the given ID.
func (l *Ledger) Get(ctx context.Context, id string) (*Receipt, error) {
	var (
		r          Receipt
		outcome    string
		redelivery int
		receivedAt string
		requestID  sql.NullString
		eventID    sql.NullString
		eventType  sql.NullString
		detail     sql.NullString
	)
	err := l.db.QueryRowContext(ctx, `
SELECT id, request_id, webhook_event_id, event_type, outcome, detail, redelivery, dropped_events, received_at
FROM receipts WHERE id = ?;
`, id).Scan(&r.ID, &requestID, &eventID, &eventType, &outcome, &detail, &redelivery, &r.DroppedEvents, &receivedAt)
	if err != nil {
		return nil, fmt.Errorf("get receipt %s: %w", id, err)
	}

	r.RequestID = requestID.String
	r.WebhookEventID = eventID.String
	r.EventType = eventType.String
	r.Detail = detail.String
	r.Outcome = Outcome(outcome)
	r.Redelivery = redelivery != 0
	r.ReceivedAt, err = time.Parse(time.RFC3339Nano, receivedAt)
	if err != nil {
		return nil, fmt.Errorf("parse received_at: %w", err)
	}
	return &r, nil
}

// Count returns how many receipts have the given outcome. An empty outcome
// counts all receipts.
func (l *Ledger) Count(ctx context.Context, outcome Outcome) (int, error) {
	var (
		n   int
		err error
	)
	if outcome == "" {
		err = l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM receipts;`).Scan(&n)
	} else {
		err = l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM receipts WHERE outcome = ?;`, string(outcome)).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count receipts: %w", err)
	}
	return n, nil
}
