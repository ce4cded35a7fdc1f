package application

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-code-yt/order-saga/internal/payment/domain"
	"github.com/k-code-yt/order-saga/internal/payment/infra/memory"
	"github.com/k-code-yt/order-saga/pkg/saga"
)

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
	events []*saga.OrderEvent
}

func (p *capturePublisher) Publish(_ context.Context, topic string, event *saga.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func validatedEvent(total string) *saga.OrderEvent {
	amount := decimal.RequireFromString(total)
	items := []saga.OrderItem{{
		ProductID:   uuid.New(),
		ProductName: "MacBook Pro 14",
		Quantity:    1,
		Price:       amount,
	}}
	return saga.NewEvent(uuid.New(), uuid.New(), items, amount, saga.StatusValidated, "inventory-service")
}

func TestProcessOrderValidatedSuccess(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	svc := NewService(store, pub, decimal.Zero)

	event := validatedEvent("9999.99")
	require.NoError(t, svc.ProcessOrderValidated(context.Background(), event, saga.TopicOrderValidated))

	require.Len(t, pub.events, 1)
	assert.Equal(t, saga.TopicOrderPaid, pub.topics[0])
	out := pub.events[0]
	assert.Equal(t, saga.StatusPaid, out.Status)
	assert.Equal(t, event.OrderID, out.OrderID)
	assert.Empty(t, out.Reason)

	payments := store.PaymentsForOrder(event.OrderID)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentStatus_Success, payments[0].Status)
	assert.True(t, payments[0].Amount.Equal(event.TotalAmount))
}

func TestProcessOrderValidatedBoundaryIsInclusive(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	svc := NewService(store, pub, decimal.Zero)

	event := validatedEvent("10000.00")
	require.NoError(t, svc.ProcessOrderValidated(context.Background(), event, saga.TopicOrderValidated))

	require.Len(t, pub.topics, 1)
	assert.Equal(t, saga.TopicOrderPaid, pub.topics[0])
}

func TestProcessOrderValidatedDeclined(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	svc := NewService(store, pub, decimal.Zero)

	event := validatedEvent("10000.01")
	require.NoError(t, svc.ProcessOrderValidated(context.Background(), event, saga.TopicOrderValidated))

	require.Len(t, pub.events, 1)
	assert.Equal(t, saga.TopicPaymentFailed, pub.topics[0])
	out := pub.events[0]
	assert.Equal(t, saga.StatusPaymentFailed, out.Status)
	assert.Equal(t, "Payment declined: amount 10000.01 exceeds limit 10000", out.Reason)

	payments := store.PaymentsForOrder(event.OrderID)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentStatus_Failed, payments[0].Status)
	assert.Equal(t, out.Reason, payments[0].FailureReason)
}

func TestProcessOrderValidatedCustomLimit(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	svc := NewService(store, pub, decimal.RequireFromString("500"))

	require.NoError(t, svc.ProcessOrderValidated(context.Background(), validatedEvent("501.00"), saga.TopicOrderValidated))
	require.Len(t, pub.topics, 1)
	assert.Equal(t, saga.TopicPaymentFailed, pub.topics[0])
}

func TestProcessOrderValidatedDuplicate(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	svc := NewService(store, pub, decimal.Zero)

	event := validatedEvent("100.00")
	require.NoError(t, svc.ProcessOrderValidated(context.Background(), event, saga.TopicOrderValidated))
	require.NoError(t, svc.ProcessOrderValidated(context.Background(), event, saga.TopicOrderValidated))

	// A redelivery must not record a second payment or publish again.
	assert.Len(t, pub.events, 1)
	assert.Len(t, store.PaymentsForOrder(event.OrderID), 1)
}
