package application

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/k-code-yt/order-saga/internal/payment/domain"
	"github.com/k-code-yt/order-saga/pkg/saga"
)

const Source = "payment-service"

// DefaultMaxAmount is the admission threshold; the boundary is inclusive,
// so an order totalling exactly the limit is charged successfully.
var DefaultMaxAmount = decimal.NewFromInt(10000)

var (
	succeededCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_succeeded_total",
		Help: "Total payments admitted",
	})
	declinedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total payments declined",
	})
)

// Service is the payment gate. The decision is a pure function of
// (totalAmount, threshold): deterministic, so the same order always takes
// the same saga path. A real gateway would replace the rule, not the flow.
type Service struct {
	store     domain.Store
	publisher saga.Publisher
	maxAmount decimal.Decimal
}

func NewService(store domain.Store, publisher saga.Publisher, maxAmount decimal.Decimal) *Service {
	if maxAmount.IsZero() {
		maxAmount = DefaultMaxAmount
	}
	return &Service{
		store:     store,
		publisher: publisher,
		maxAmount: maxAmount,
	}
}

// ProcessOrderValidated consumes order.validated, persists the decision and
// emits order.paid or payment.failed. The latter is the compensation
// trigger consumed by inventory.
func (s *Service) ProcessOrderValidated(ctx context.Context, event *saga.OrderEvent, topic string) error {
	success := event.TotalAmount.Cmp(s.maxAmount) <= 0
	reason := ""
	if !success {
		reason = fmt.Sprintf("Payment declined: amount %s exceeds limit %s", event.TotalAmount, s.maxAmount)
	}

	applied := false
	err := s.store.WithinTx(ctx, func(tx domain.Tx) error {
		processed, err := tx.EventProcessed(event.EventID)
		if err != nil {
			return err
		}
		if processed {
			logrus.WithFields(logrus.Fields{
				"EVENT_ID": event.EventID,
				"ORDER_ID": event.OrderID,
				"TOPIC":    topic,
			}).Warn("Duplicate event detected, skipping")
			return nil
		}

		status := domain.PaymentStatus_Success
		if !success {
			status = domain.PaymentStatus_Failed
		}
		payment := domain.NewPayment(event.OrderID, event.CustomerID, event.TotalAmount, status, reason)
		if err := tx.InsertPayment(payment); err != nil {
			return err
		}
		if err := tx.MarkProcessed(event.EventID, topic); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	if success {
		logrus.WithFields(logrus.Fields{
			"ORDER_ID": event.OrderID,
			"AMOUNT":   event.TotalAmount,
		}).Info("Payment SUCCESS")
		succeededCounter.Inc()

		paid := saga.NewEvent(event.OrderID, event.CustomerID,
			event.Items, event.TotalAmount, saga.StatusPaid, Source)
		if err := s.publisher.Publish(ctx, saga.TopicOrderPaid, paid); err != nil {
			logrus.WithFields(logrus.Fields{
				"ORDER_ID": event.OrderID,
				"ERR":      err,
			}).Error("Failed to publish order.paid")
		}
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"ORDER_ID": event.OrderID,
		"REASON":   reason,
	}).Warn("Payment FAILED")
	declinedCounter.Inc()

	failed := saga.NewEventWithReason(event.OrderID, event.CustomerID,
		event.Items, event.TotalAmount, saga.StatusPaymentFailed, reason, Source)
	if err := s.publisher.Publish(ctx, saga.TopicPaymentFailed, failed); err != nil {
		logrus.WithFields(logrus.Fields{
			"ORDER_ID": event.OrderID,
			"ERR":      err,
		}).Error("Failed to publish payment.failed")
	}
	return nil
}
