package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/k-code-yt/order-saga/internal/ledger"
	"github.com/k-code-yt/order-saga/internal/payment/domain"
	"github.com/k-code-yt/order-saga/pkg/db/postgres"
)

// Store is the sqlx-backed payment store.
type Store struct {
	db     *sqlx.DB
	ledger *ledger.Repo
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, ledger: ledger.NewRepo()}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	_, err := postgres.TxClosure(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) (struct{}, error) {
		return struct{}{}, fn(&storeTx{ctx: ctx, tx: tx, ledger: s.ledger})
	})
	return err
}

type storeTx struct {
	ctx    context.Context
	tx     *sqlx.Tx
	ledger *ledger.Repo
}

func (t *storeTx) EventProcessed(eventID uuid.UUID) (bool, error) {
	return t.ledger.Exists(t.ctx, t.tx, eventID)
}

func (t *storeTx) MarkProcessed(eventID uuid.UUID, topic string) error {
	return t.ledger.Record(t.ctx, t.tx, eventID, topic)
}

func (t *storeTx) InsertPayment(p *domain.Payment) error {
	reason := sql.NullString{String: p.FailureReason, Valid: p.FailureReason != ""}
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO payments (id, order_id, customer_id, amount, status, failure_reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.OrderID, p.CustomerID, p.Amount, p.Status, reason, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("payment repo: insert %s: %w", p.ID, err)
	}
	return nil
}
