package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/k-code-yt/order-saga/internal/ledger"
	"github.com/k-code-yt/order-saga/internal/order/domain"
	"github.com/k-code-yt/order-saga/pkg/db/postgres"
	"github.com/k-code-yt/order-saga/pkg/saga"
)

type orderRow struct {
	ID            uuid.UUID       `db:"id"`
	CustomerID    uuid.UUID       `db:"customer_id"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	Status        string          `db:"status"`
	FailureReason sql.NullString  `db:"failure_reason"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

type itemRow struct {
	OrderID     uuid.UUID       `db:"order_id"`
	ProductID   uuid.UUID       `db:"product_id"`
	ProductName string          `db:"product_name"`
	Quantity    int             `db:"quantity"`
	Price       decimal.Decimal `db:"price"`
}

// Store is the sqlx-backed order store. The processed_events ledger lives
// in the same database so the idempotency record and the status mutation
// share one transaction.
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

func (s *Store) OrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order repo: get %s: %w", id, err)
	}

	items, err := s.itemsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDomain(row, items), nil
}

func (s *Store) OrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM orders WHERE customer_id = $1 ORDER BY created_at", customerID)
	if err != nil {
		return nil, fmt.Errorf("order repo: list by customer %s: %w", customerID, err)
	}

	orders := make([]*domain.Order, 0, len(rows))
	for _, row := range rows {
		items, err := s.itemsFor(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		orders = append(orders, toDomain(row, items))
	}
	return orders, nil
}

func (s *Store) itemsFor(ctx context.Context, orderID uuid.UUID) ([]domain.Item, error) {
	var rows []itemRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	if err != nil {
		return nil, fmt.Errorf("order repo: items for %s: %w", orderID, err)
	}
	items := make([]domain.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, domain.Item{
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			Quantity:    r.Quantity,
			Price:       r.Price,
		})
	}
	return items, nil
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

func (t *storeTx) InsertOrder(o *domain.Order) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO orders (id, customer_id, total_amount, status, failure_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.CustomerID, o.TotalAmount, o.Status, nullable(o.FailureReason), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("order repo: insert %s: %w", o.ID, err)
	}
	for _, it := range o.Items {
		_, err := t.tx.ExecContext(t.ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
			 VALUES ($1, $2, $3, $4, $5)`,
			o.ID, it.ProductID, it.ProductName, it.Quantity, it.Price)
		if err != nil {
			return fmt.Errorf("order repo: insert item %s/%s: %w", o.ID, it.ProductID, err)
		}
	}
	return nil
}

func (t *storeTx) OrderByID(id uuid.UUID) (*domain.Order, error) {
	var row orderRow
	err := t.tx.GetContext(t.ctx, &row, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order repo: get %s: %w", id, err)
	}

	var itemRows []itemRow
	err = t.tx.SelectContext(t.ctx, &itemRows, "SELECT * FROM order_items WHERE order_id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("order repo: items for %s: %w", id, err)
	}
	items := make([]domain.Item, 0, len(itemRows))
	for _, r := range itemRows {
		items = append(items, domain.Item{
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			Quantity:    r.Quantity,
			Price:       r.Price,
		})
	}
	return toDomain(row, items), nil
}

func (t *storeTx) UpdateStatus(o *domain.Order) error {
	_, err := t.tx.ExecContext(t.ctx,
		"UPDATE orders SET status = $1, failure_reason = $2, updated_at = $3 WHERE id = $4",
		o.Status, nullable(o.FailureReason), o.UpdatedAt, o.ID)
	if err != nil {
		return fmt.Errorf("order repo: update status %s: %w", o.ID, err)
	}
	return nil
}

func toDomain(row orderRow, items []domain.Item) *domain.Order {
	return &domain.Order{
		ID:            row.ID,
		CustomerID:    row.CustomerID,
		TotalAmount:   row.TotalAmount,
		Status:        saga.Status(row.Status),
		FailureReason: row.FailureReason.String,
		Items:         items,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
