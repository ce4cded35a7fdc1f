// Package ledger implements the per-service idempotency ledger: a durable
// "already processed" set keyed by event id. Entries are written at most
// once, in the same transaction as the business mutation they guard, and
// are never updated.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/k-code-yt/order-saga/pkg/db/postgres"
)

const tableName = "processed_events"

type Entry struct {
	EventID     uuid.UUID `db:"event_id"`
	Topic       string    `db:"topic"`
	ProcessedAt time.Time `db:"processed_at"`
}

// Repo reads and writes the processed_events table. Every service database
// carries its own copy of the table, so one repo type serves all of them.
type Repo struct{}

func NewRepo() *Repo {
	return &Repo{}
}

func (r *Repo) Exists(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID) (bool, error) {
	var id uuid.UUID
	q := fmt.Sprintf("SELECT event_id FROM %s WHERE event_id = $1", tableName)
	err := tx.GetContext(ctx, &id, q, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: lookup event %s: %w", eventID, err)
	}
	return true, nil
}

func (r *Repo) Record(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID, topic string) error {
	q := fmt.Sprintf("INSERT INTO %s (event_id, topic, processed_at) VALUES ($1, $2, $3)", tableName)
	_, err := tx.ExecContext(ctx, q, eventID, topic, time.Now().UTC())
	if postgres.IsDuplicateKeyErr(err) {
		// A concurrent delivery already recorded this event; the ledger's
		// mere presence is the idempotency check, so this is not an error.
		return nil
	}
	if err != nil {
		return fmt.Errorf("ledger: record event %s on %s: %w", eventID, topic, err)
	}
	return nil
}
