package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-code-yt/order-saga/internal/notification/dedup"
	"github.com/k-code-yt/order-saga/pkg/saga"
)

type captureFeed struct {
	payloads []any
}

func (f *captureFeed) Broadcast(v any) {
	f.payloads = append(f.payloads, v)
}

func completedEvent() *saga.OrderEvent {
	items := []saga.OrderItem{{
		ProductID:   uuid.New(),
		ProductName: "MacBook Pro 14",
		Quantity:    1,
		Price:       decimal.RequireFromString("1999.00"),
	}}
	return saga.NewEvent(uuid.New(), uuid.New(), items, saga.ItemsTotal(items), saga.StatusCompleted, "order-service")
}

func TestNotifyOrderCompleted(t *testing.T) {
	feed := &captureFeed{}
	svc := NewService(dedup.NewMemoryDeduper(0), feed)

	event := completedEvent()
	require.NoError(t, svc.NotifyOrderCompleted(context.Background(), event, saga.TopicOrderCompleted))

	require.Len(t, feed.payloads, 1)
	n, ok := feed.payloads[0].(*Notification)
	require.True(t, ok)
	assert.Equal(t, event.OrderID.String(), n.OrderID)
	assert.Equal(t, string(saga.StatusCompleted), n.Status)
	assert.Contains(t, n.Message, "completed")
}

func TestNotifyDuplicateSuppressed(t *testing.T) {
	feed := &captureFeed{}
	svc := NewService(dedup.NewMemoryDeduper(0), feed)

	event := completedEvent()
	require.NoError(t, svc.NotifyOrderCompleted(context.Background(), event, saga.TopicOrderCompleted))
	require.NoError(t, svc.NotifyOrderCompleted(context.Background(), event, saga.TopicOrderCompleted))

	assert.Len(t, feed.payloads, 1, "redelivery must not notify twice")
}

func TestNotifyFailureCarriesReason(t *testing.T) {
	feed := &captureFeed{}
	svc := NewService(dedup.NewMemoryDeduper(0), feed)

	event := completedEvent()
	event.EventID = uuid.New()
	event.Status = saga.StatusPaymentFailed
	event.Reason = "Payment declined: amount 1999.00 exceeds limit 100"
	require.NoError(t, svc.NotifyPaymentFailed(context.Background(), event, saga.TopicPaymentFailed))

	require.Len(t, feed.payloads, 1)
	n := feed.payloads[0].(*Notification)
	assert.Equal(t, event.Reason, n.Reason)
	assert.Contains(t, n.Message, event.Reason)
}

func TestNotifyWithoutFeed(t *testing.T) {
	svc := NewService(dedup.NewMemoryDeduper(0), nil)
	assert.NoError(t, svc.NotifyOrderFailed(context.Background(), completedEvent(), saga.TopicOrderFailed))
}
