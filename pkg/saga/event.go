package saga

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status tags the business meaning of an OrderEvent.
//
// Flow: PLACED -> VALIDATED -> PAID -> COMPLETED
//
//	\-> FAILED          (insufficient stock)
//	          \-> PAYMENT_FAILED  (charge declined)
type Status string

const (
	StatusPlaced        Status = "PLACED"
	StatusValidated     Status = "VALIDATED"
	StatusPaid          Status = "PAID"
	StatusCompleted     Status = "COMPLETED"
	StatusFailed        Status = "FAILED"
	StatusPaymentFailed Status = "PAYMENT_FAILED"
)

// IsFailure reports whether the tag carries a failure reason.
func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusPaymentFailed
}

func (s Status) valid() bool {
	switch s {
	case StatusPlaced, StatusValidated, StatusPaid, StatusCompleted, StatusFailed, StatusPaymentFailed:
		return true
	}
	return false
}

const SchemaVersion = 1

var (
	ErrInvalidEnvelope = errors.New("saga: invalid event envelope")
)

// OrderItem is one line of an order as carried on the wire.
type OrderItem struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// OrderEvent is the envelope shared by all saga topics. It is immutable once
// published; every delivery attempt of the same logical event carries the
// same eventId, which is what the idempotency ledgers key on.
type OrderEvent struct {
	EventID       uuid.UUID       `json:"eventId"`
	OrderID       uuid.UUID       `json:"orderId"`
	CustomerID    uuid.UUID       `json:"customerId"`
	Items         []OrderItem     `json:"items"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Status        Status          `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	SchemaVersion int             `json:"schemaVersion"`
	Source        string          `json:"source"`
}

// NewEvent builds a fresh envelope with a unique eventId and the current
// timestamp. The eventId must be new per logical event so that redelivery
// of the same message dedupes while distinct events do not.
func NewEvent(orderID, customerID uuid.UUID, items []OrderItem, total decimal.Decimal, status Status, source string) *OrderEvent {
	return &OrderEvent{
		EventID:       uuid.New(),
		OrderID:       orderID,
		CustomerID:    customerID,
		Items:         items,
		TotalAmount:   total,
		Status:        status,
		CreatedAt:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Source:        source,
	}
}

// NewEventWithReason builds a failure envelope (FAILED or PAYMENT_FAILED).
func NewEventWithReason(orderID, customerID uuid.UUID, items []OrderItem, total decimal.Decimal, status Status, reason, source string) *OrderEvent {
	e := NewEvent(orderID, customerID, items, total, status, source)
	e.Reason = reason
	return e
}

// ItemsTotal computes the invariant sum over the items: sum(price * quantity).
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Validate rejects malformed envelopes before any handler runs:
// missing ids, an unknown status tag, a reason populated on a non-failure
// tag (or missing on a failure tag), non-positive quantities, negative
// prices, and a totalAmount that does not match the items.
func (e *OrderEvent) Validate() error {
	if e.EventID == uuid.Nil {
		return fmt.Errorf("%w: missing eventId", ErrInvalidEnvelope)
	}
	if e.OrderID == uuid.Nil {
		return fmt.Errorf("%w: missing orderId", ErrInvalidEnvelope)
	}
	if e.CustomerID == uuid.Nil {
		return fmt.Errorf("%w: missing customerId", ErrInvalidEnvelope)
	}
	if !e.Status.valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEnvelope, e.Status)
	}
	if e.Reason != "" && !e.Status.IsFailure() {
		return fmt.Errorf("%w: reason set on non-failure status %s", ErrInvalidEnvelope, e.Status)
	}
	if e.Reason == "" && e.Status.IsFailure() {
		return fmt.Errorf("%w: failure status %s without reason", ErrInvalidEnvelope, e.Status)
	}
	if len(e.Items) == 0 {
		return fmt.Errorf("%w: empty items", ErrInvalidEnvelope)
	}
	for _, it := range e.Items {
		if it.ProductID == uuid.Nil {
			return fmt.Errorf("%w: item missing productId", ErrInvalidEnvelope)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %s quantity must be positive", ErrInvalidEnvelope, it.ProductID)
		}
		if it.Price.IsNegative() {
			return fmt.Errorf("%w: item %s price must not be negative", ErrInvalidEnvelope, it.ProductID)
		}
	}
	if !e.TotalAmount.Equal(ItemsTotal(e.Items)) {
		return fmt.Errorf("%w: totalAmount %s does not match items total %s",
			ErrInvalidEnvelope, e.TotalAmount, ItemsTotal(e.Items))
	}
	return nil
}

// Key returns the partition key used on every publish, unconditionally.
func (e *OrderEvent) Key() string {
	return e.OrderID.String()
}
