package application

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/k-code-yt/order-saga/internal/notification/dedup"
	"github.com/k-code-yt/order-saga/pkg/saga"
)

var (
	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Notifications sent, by outcome being notified.",
	}, []string{"status"})
	notificationsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_duplicate_total",
		Help: "Deliveries suppressed by the dedup set.",
	})
)

// Broadcaster pushes a notification to any live subscribers.
type Broadcaster interface {
	Broadcast(v any)
}

// Notification is the payload pushed to the websocket feed.
type Notification struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message"`
}

// Service turns terminal saga events into customer notifications. There is
// no real mail gateway; sends are structured log lines plus a feed push.
type Service struct {
	dedup dedup.Deduper
	feed  Broadcaster
}

func NewService(d dedup.Deduper, feed Broadcaster) *Service {
	return &Service{dedup: d, feed: feed}
}

// NotifyOrderCompleted handles order.completed.
func (s *Service) NotifyOrderCompleted(ctx context.Context, event *saga.OrderEvent, topic string) error {
	return s.notify(ctx, event, topic,
		"Your order has been completed. Thank you for your purchase!")
}

// NotifyOrderFailed handles order.failed.
func (s *Service) NotifyOrderFailed(ctx context.Context, event *saga.OrderEvent, topic string) error {
	return s.notify(ctx, event, topic,
		"Unfortunately your order could not be fulfilled: "+event.Reason)
}

// NotifyPaymentFailed handles payment.failed.
func (s *Service) NotifyPaymentFailed(ctx context.Context, event *saga.OrderEvent, topic string) error {
	return s.notify(ctx, event, topic,
		"Your payment was declined: "+event.Reason)
}

func (s *Service) notify(ctx context.Context, event *saga.OrderEvent, topic, message string) error {
	seen, err := s.dedup.Seen(ctx, event.EventID)
	if err != nil {
		return err
	}

	log := logrus.WithFields(logrus.Fields{
		"eventID":    event.EventID,
		"orderID":    event.OrderID,
		"customerID": event.CustomerID,
		"topic":      topic,
	})
	if seen {
		log.Info("duplicate notification, skipping")
		notificationsDuplicate.Inc()
		return nil
	}

	log.WithField("status", event.Status).Infof("sending email: %s", message)
	notificationsSent.WithLabelValues(string(event.Status)).Inc()

	if s.feed != nil {
		s.feed.Broadcast(&Notification{
			OrderID:    event.OrderID.String(),
			CustomerID: event.CustomerID.String(),
			Status:     string(event.Status),
			Reason:     event.Reason,
			Message:    message,
		})
	}
	return nil
}
