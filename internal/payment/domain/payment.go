package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatus_Success PaymentStatus = "SUCCESS"
	PaymentStatus_Failed  PaymentStatus = "FAILED"
)

// Payment records the gate's decision for one order: the audit trail behind
// every PAID or PAYMENT_FAILED event.
type Payment struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	CustomerID    uuid.UUID
	Amount        decimal.Decimal
	Status        PaymentStatus
	FailureReason string
	CreatedAt     time.Time
}

func NewPayment(orderID, customerID uuid.UUID, amount decimal.Decimal, status PaymentStatus, failureReason string) *Payment {
	return &Payment{
		ID:            uuid.New(),
		OrderID:       orderID,
		CustomerID:    customerID,
		Amount:        amount,
		Status:        status,
		FailureReason: failureReason,
		CreatedAt:     time.Now().UTC(),
	}
}

// Store is the payment service's persistence port.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	EventProcessed(eventID uuid.UUID) (bool, error)
	MarkProcessed(eventID uuid.UUID, topic string) error
	InsertPayment(p *Payment) error
}
