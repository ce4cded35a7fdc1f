package domain

import (
	"context"

	"github.com/google/uuid"
)

// Store is the inventory service's persistence port.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside one transaction.
// ProductsForUpdate locks the fetched rows until commit, which is what
// closes the pre-check/reserve race between concurrent orders on the
// same product.
type Tx interface {
	EventProcessed(eventID uuid.UUID) (bool, error)
	MarkProcessed(eventID uuid.UUID, topic string) error
	ProductsForUpdate(ids []uuid.UUID) (map[uuid.UUID]*Product, error)
	SaveProduct(p *Product) error
}
