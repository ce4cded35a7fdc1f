package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/k-code-yt/order-saga/internal/inventory/domain"
	"github.com/k-code-yt/order-saga/internal/ledger"
	"github.com/k-code-yt/order-saga/pkg/db/postgres"
)

type productRow struct {
	ID        uuid.UUID `db:"id"`
	SKUCode   string    `db:"sku_code"`
	Name      string    `db:"name"`
	Available int       `db:"available"`
	Reserved  int       `db:"reserved"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Store is the sqlx-backed product store.
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

// ProductCount reports the number of products. Used at startup to decide
// whether the demo catalog needs seeding.
func (s *Store) ProductCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM products"); err != nil {
		return 0, fmt.Errorf("inventory repo: count products: %w", err)
	}
	return n, nil
}

// Seed inserts the given products, skipping any that already exist.
func (s *Store) Seed(ctx context.Context, products []*domain.Product) error {
	_, err := postgres.TxClosure(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) (struct{}, error) {
		for _, p := range products {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO products (id, sku_code, name, available, reserved, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (id) DO NOTHING`,
				p.ID, p.SKUCode, p.Name, p.Available, p.Reserved, p.CreatedAt, p.UpdatedAt)
			if err != nil {
				return struct{}{}, fmt.Errorf("inventory repo: seed %s: %w", p.SKUCode, err)
			}
		}
		return struct{}{}, nil
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

// ProductsForUpdate loads and row-locks the given products. Concurrent
// reservations against the same product serialize here, so availability
// checks cannot race each other into overselling. Missing IDs are simply
// absent from the result map.
func (t *storeTx) ProductsForUpdate(ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*domain.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?) FOR UPDATE", ids)
	if err != nil {
		return nil, fmt.Errorf("inventory repo: build lock query: %w", err)
	}
	query = t.tx.Rebind(query)

	var rows []productRow
	if err := t.tx.SelectContext(t.ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("inventory repo: lock products: %w", err)
	}

	products := make(map[uuid.UUID]*domain.Product, len(rows))
	for _, r := range rows {
		products[r.ID] = &domain.Product{
			ID:        r.ID,
			SKUCode:   r.SKUCode,
			Name:      r.Name,
			Available: r.Available,
			Reserved:  r.Reserved,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return products, nil
}

func (t *storeTx) SaveProduct(p *domain.Product) error {
	_, err := t.tx.ExecContext(t.ctx,
		"UPDATE products SET available = $1, reserved = $2, updated_at = $3 WHERE id = $4",
		p.Available, p.Reserved, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("inventory repo: save %s: %w", p.ID, err)
	}
	return nil
}
