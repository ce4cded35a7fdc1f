package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/k-code-yt/order-saga/internal/inventory/domain"
	"github.com/k-code-yt/order-saga/pkg/saga"
)

const Source = "inventory-service"

var (
	validatedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_validated_total",
		Help: "Total orders validated (stock reserved)",
	})
	rejectedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_rejected_total",
		Help: "Total orders rejected (missing product or insufficient stock)",
	})
	compensatedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_compensated_total",
		Help: "Total stock compensations (payment failed)",
	})
)

// Service validates and reserves stock for placed orders, and releases
// reservations when the payment leg of the saga fails.
type Service struct {
	store     domain.Store
	publisher saga.Publisher
}

func NewService(store domain.Store, publisher saga.Publisher) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
	}
}

// ProcessOrderPlaced consumes order.placed: validate every item, then
// either reserve the whole batch and emit order.validated, or reserve
// nothing and emit order.failed with the accumulated reasons.
func (s *Service) ProcessOrderPlaced(ctx context.Context, event *saga.OrderEvent, topic string) error {
	var out *saga.OrderEvent
	outTopic := ""

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

		logrus.WithFields(logrus.Fields{
			"ORDER_ID": event.OrderID,
			"ITEMS":    len(event.Items),
		}).Info("Processing order.placed")

		products, err := tx.ProductsForUpdate(productIDs(event.Items))
		if err != nil {
			return err
		}

		var failures []string
		for _, item := range event.Items {
			product, ok := products[item.ProductID]
			if !ok {
				failures = append(failures, fmt.Sprintf("Product not found: %s", item.ProductID))
				continue
			}
			if !product.HasStock(item.Quantity) {
				failures = append(failures, fmt.Sprintf(
					"Insufficient stock for '%s': available=%d, requested=%d",
					product.Name, product.Available, item.Quantity))
			}
		}

		if len(failures) > 0 {
			reason := strings.Join(failures, "; ")
			logrus.WithFields(logrus.Fields{
				"ORDER_ID": event.OrderID,
				"REASON":   reason,
			}).Warn("Stock validation FAILED")

			// The ledger entry is recorded on the failure path too, so a
			// redelivery cannot re-validate and double-publish.
			if err := tx.MarkProcessed(event.EventID, topic); err != nil {
				return err
			}
			out = saga.NewEventWithReason(event.OrderID, event.CustomerID,
				event.Items, event.TotalAmount, saga.StatusFailed, reason, Source)
			outTopic = saga.TopicOrderFailed
			return nil
		}

		// The batch is all-or-nothing: the pre-check above ran under row
		// locks, so a reservation failing here is an invariant violation.
		for _, item := range event.Items {
			product := products[item.ProductID]
			if err := product.Reserve(item.Quantity); err != nil {
				return err
			}
			if err := tx.SaveProduct(product); err != nil {
				return err
			}
		}

		if err := tx.MarkProcessed(event.EventID, topic); err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"ORDER_ID": event.OrderID,
			"ITEMS":    len(event.Items),
		}).Info("Stock reserved")

		out = saga.NewEvent(event.OrderID, event.CustomerID,
			event.Items, event.TotalAmount, saga.StatusValidated, Source)
		outTopic = saga.TopicOrderValidated
		return nil
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	if err := s.publisher.Publish(ctx, outTopic, out); err != nil {
		logrus.WithFields(logrus.Fields{
			"ORDER_ID": event.OrderID,
			"TOPIC":    outTopic,
			"ERR":      err,
		}).Error("Failed to publish inventory result")
	}
	if outTopic == saga.TopicOrderValidated {
		validatedCounter.Inc()
	} else {
		rejectedCounter.Inc()
	}
	return nil
}

// CompensateReservation consumes payment.failed and moves the reserved
// units back to available. Compensation is best-effort: a product missing
// from the database is logged and skipped, never fatal.
func (s *Service) CompensateReservation(ctx context.Context, event *saga.OrderEvent, topic string) error {
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
			}).Warn("Duplicate compensation event detected, skipping")
			return nil
		}

		logrus.WithFields(logrus.Fields{
			"ORDER_ID": event.OrderID,
			"ITEMS":    len(event.Items),
		}).Info("Compensating reservation")

		products, err := tx.ProductsForUpdate(productIDs(event.Items))
		if err != nil {
			return err
		}

		for _, item := range event.Items {
			product, ok := products[item.ProductID]
			if !ok {
				logrus.WithField("PRODUCT_ID", item.ProductID).
					Warn("Product not found during compensation")
				continue
			}
			// Releasing more than reserved is an invariant violation.
			if err := product.Release(item.Quantity); err != nil {
				return err
			}
			if err := tx.SaveProduct(product); err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{
				"PRODUCT_ID": product.ID,
				"PRODUCT":    product.Name,
				"QTY":        item.Quantity,
			}).Info("Released stock")
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
	if applied {
		logrus.WithField("ORDER_ID", event.OrderID).Info("Compensation completed")
		compensatedCounter.Inc()
	}
	return nil
}

func productIDs(items []saga.OrderItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return ids
}
