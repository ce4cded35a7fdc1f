package application

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-code-yt/order-saga/internal/order/domain"
	"github.com/k-code-yt/order-saga/internal/order/infra/memory"
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

func createRequest() CreateOrderRequest {
	return CreateOrderRequest{
		CustomerID: uuid.New(),
		Items: []ItemRequest{
			{
				ProductID:   uuid.New(),
				ProductName: "MacBook Pro 14",
				Quantity:    2,
				Price:       decimal.RequireFromString("1999.00"),
			},
			{
				ProductID:   uuid.New(),
				ProductName: "Magic Mouse",
				Quantity:    1,
				Price:       decimal.RequireFromString("49.99"),
			},
		},
	}
}

func TestCreateOrder(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	svc := NewService(store, pub)

	order, err := svc.CreateOrder(context.Background(), createRequest())
	require.NoError(t, err)

	assert.Equal(t, saga.StatusPlaced, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("4047.99")), "got %s", order.TotalAmount)

	stored, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusPlaced, stored.Status)
	assert.Len(t, stored.Items, 2)

	require.Len(t, pub.events, 1)
	assert.Equal(t, saga.TopicOrderPlaced, pub.topics[0])
	event := pub.events[0]
	assert.Equal(t, order.ID, event.OrderID)
	assert.Equal(t, saga.StatusPlaced, event.Status)
	assert.True(t, order.TotalAmount.Equal(event.TotalAmount))
	require.NoError(t, event.Validate())
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	svc := NewService(memory.NewStore(), &capturePublisher{})

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{CustomerID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrNoItems)
}

func TestCreateOrderRejectsBadQuantity(t *testing.T) {
	svc := NewService(memory.NewStore(), &capturePublisher{})

	req := createRequest()
	req.Items[0].Quantity = 0
	_, err := svc.CreateOrder(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestGetOrderNotFound(t *testing.T) {
	svc := NewService(memory.NewStore(), &capturePublisher{})

	_, err := svc.GetOrder(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrdersByCustomer(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, &capturePublisher{})

	req := createRequest()
	_, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	orders, err := svc.OrdersByCustomer(context.Background(), req.CustomerID)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = svc.OrdersByCustomer(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func paidEventFor(order *domain.Order) *saga.OrderEvent {
	return saga.NewEvent(order.ID, order.CustomerID, order.EventItems(), order.TotalAmount, saga.StatusPaid, "payment-service")
}

func TestCompleteOrder(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	svc := NewService(store, pub)

	order, err := svc.CreateOrder(context.Background(), createRequest())
	require.NoError(t, err)

	require.NoError(t, svc.CompleteOrder(context.Background(), paidEventFor(order), saga.TopicOrderPaid))

	stored, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompleted, stored.Status)

	// order.placed then order.completed.
	require.Len(t, pub.topics, 2)
	assert.Equal(t, saga.TopicOrderCompleted, pub.topics[1])
	completed := pub.events[1]
	assert.Equal(t, saga.StatusCompleted, completed.Status)
	assert.True(t, order.TotalAmount.Equal(completed.TotalAmount), "completed event carries the original total")
	assert.Len(t, completed.Items, len(order.Items))
}

func TestFailOrder(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	svc := NewService(store, pub)

	order, err := svc.CreateOrder(context.Background(), createRequest())
	require.NoError(t, err)

	failed := saga.NewEventWithReason(order.ID, order.CustomerID, order.EventItems(), order.TotalAmount,
		saga.StatusFailed, "Insufficient stock for 'MacBook Pro 14': available=0, requested=2", "inventory-service")
	require.NoError(t, svc.FailOrder(context.Background(), failed, saga.TopicOrderFailed))

	stored, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusFailed, stored.Status)
	assert.Equal(t, failed.Reason, stored.FailureReason)

	// Terminal failure is absorbing: no further event is published.
	assert.Len(t, pub.topics, 1)
}

func TestHandlePaymentFailure(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	svc := NewService(store, pub)

	order, err := svc.CreateOrder(context.Background(), createRequest())
	require.NoError(t, err)

	failed := saga.NewEventWithReason(order.ID, order.CustomerID, order.EventItems(), order.TotalAmount,
		saga.StatusPaymentFailed, "Payment declined: amount 4047.99 exceeds limit 100", "payment-service")
	require.NoError(t, svc.HandlePaymentFailure(context.Background(), failed, saga.TopicPaymentFailed))

	stored, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusPaymentFailed, stored.Status)
	assert.Equal(t, failed.Reason, stored.FailureReason)
}

func TestCompleteOrderDuplicate(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	svc := NewService(store, pub)

	order, err := svc.CreateOrder(context.Background(), createRequest())
	require.NoError(t, err)

	paid := paidEventFor(order)
	require.NoError(t, svc.CompleteOrder(context.Background(), paid, saga.TopicOrderPaid))
	require.NoError(t, svc.CompleteOrder(context.Background(), paid, saga.TopicOrderPaid))

	// The duplicate must not publish a second order.completed.
	assert.Len(t, pub.topics, 2)
}

func TestMutatingTerminalOrderFails(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	svc := NewService(store, pub)

	order, err := svc.CreateOrder(context.Background(), createRequest())
	require.NoError(t, err)

	require.NoError(t, svc.CompleteOrder(context.Background(), paidEventFor(order), saga.TopicOrderPaid))

	// A distinct event trying a second terminal transition is an invariant
	// violation and must surface as an error for the bus to escalate.
	late := saga.NewEventWithReason(order.ID, order.CustomerID, order.EventItems(), order.TotalAmount,
		saga.StatusFailed, "late rejection", "inventory-service")
	err = svc.FailOrder(context.Background(), late, saga.TopicOrderFailed)
	assert.ErrorIs(t, err, domain.ErrTerminal)

	stored, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompleted, stored.Status)
}

func TestReduceUnknownOrder(t *testing.T) {
	svc := NewService(memory.NewStore(), &capturePublisher{})

	event := saga.NewEvent(uuid.New(), uuid.New(), []saga.OrderItem{{
		ProductID: uuid.New(), ProductName: "MacBook Pro 14", Quantity: 1,
		Price: decimal.RequireFromString("1.00"),
	}}, decimal.RequireFromString("1.00"), saga.StatusPaid, "payment-service")

	err := svc.CompleteOrder(context.Background(), event, saga.TopicOrderPaid)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
