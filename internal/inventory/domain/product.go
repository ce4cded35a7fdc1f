package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrOverRelease       = errors.New("inventory: cannot release more than reserved")
)

// Product tracks stock as two counters. available + reserved is invariant
// across any matched reserve/release pair: reservation moves units between
// the counters, it never creates or destroys them.
type Product struct {
	ID        uuid.UUID
	SKUCode   string
	Name      string
	Available int
	Reserved  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Product) HasStock(quantity int) bool {
	return p.Available >= quantity
}

// Reserve moves quantity from available to reserved. The caller is expected
// to have checked HasStock first; failing here means a race slipped through
// the pre-check and must be treated as fatal, not silently partial.
func (p *Product) Reserve(quantity int) error {
	if !p.HasStock(quantity) {
		return fmt.Errorf("%w: product %s available=%d, requested=%d",
			ErrInsufficientStock, p.ID, p.Available, quantity)
	}
	p.Available -= quantity
	p.Reserved += quantity
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Release moves quantity back from reserved to available (saga compensation).
func (p *Product) Release(quantity int) error {
	if quantity > p.Reserved {
		return fmt.Errorf("%w: product %s reserved=%d, requested=%d",
			ErrOverRelease, p.ID, p.Reserved, quantity)
	}
	p.Reserved -= quantity
	p.Available += quantity
	p.UpdatedAt = time.Now().UTC()
	return nil
}
