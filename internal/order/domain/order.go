package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/k-code-yt/order-saga/pkg/saga"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrTerminal        = errors.New("order: already in a terminal state")
	ErrNoItems         = errors.New("order: at least one item is required")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrInvalidPrice    = errors.New("order: price must be zero or greater")
)

type Item struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

// Order is the saga's aggregate root. Status is monotonic: PLACED is
// initial; COMPLETED, FAILED and PAYMENT_FAILED are terminal and mutually
// exclusive. VALIDATED/PAID never appear as a persisted order status --
// they are inferred from which events have been consumed.
type Order struct {
	ID            uuid.UUID
	CustomerID    uuid.UUID
	TotalAmount   decimal.Decimal
	Status        saga.Status
	FailureReason string
	Items         []Item
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// New builds a PLACED order, computing totalAmount from the items.
func New(customerID uuid.UUID, items []Item) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	total := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, it.ProductID)
		}
		if it.Price.IsNegative() {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidPrice, it.ProductID)
		}
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	now := time.Now().UTC()
	return &Order{
		ID:          uuid.New(),
		CustomerID:  customerID,
		TotalAmount: total,
		Status:      saga.StatusPlaced,
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (o *Order) IsTerminal() bool {
	switch o.Status {
	case saga.StatusCompleted, saga.StatusFailed, saga.StatusPaymentFailed:
		return true
	}
	return false
}

// Complete moves the order to COMPLETED. Mutating a terminal order is an
// invariant violation and must surface as an error so the delivery is
// retried and dead-lettered rather than masked.
func (o *Order) Complete() error {
	return o.transition(saga.StatusCompleted, "")
}

// Fail moves the order to FAILED, recording the validation failure reason.
func (o *Order) Fail(reason string) error {
	return o.transition(saga.StatusFailed, reason)
}

// FailPayment moves the order to PAYMENT_FAILED.
func (o *Order) FailPayment(reason string) error {
	return o.transition(saga.StatusPaymentFailed, reason)
}

func (o *Order) transition(to saga.Status, reason string) error {
	if o.IsTerminal() {
		return fmt.Errorf("%w: %s is %s, cannot become %s", ErrTerminal, o.ID, o.Status, to)
	}
	o.Status = to
	o.FailureReason = reason
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// EventItems converts the order's items to their wire form.
func (o *Order) EventItems() []saga.OrderItem {
	items := make([]saga.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, saga.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	return items
}
