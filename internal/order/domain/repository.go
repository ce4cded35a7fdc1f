package domain

import (
	"context"

	"github.com/google/uuid"
)

// Store is the order service's persistence port. WithinTx runs fn as one
// atomic unit: the idempotency-ledger check, the status mutation and the
// ledger record commit or roll back together.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	OrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	OrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Order, error)
}

// Tx is the set of operations available inside one transaction.
type Tx interface {
	EventProcessed(eventID uuid.UUID) (bool, error)
	MarkProcessed(eventID uuid.UUID, topic string) error
	InsertOrder(o *Order) error
	OrderByID(id uuid.UUID) (*Order, error)
	UpdateStatus(o *Order) error
}
