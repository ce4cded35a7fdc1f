package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/k-code-yt/order-saga/internal/order/domain"
	"github.com/k-code-yt/order-saga/pkg/saga"
)

const Source = "order-service"

var (
	ordersCreatedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total orders accepted and placed",
	})
	ordersCompletedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total orders that reached COMPLETED",
	})
	ordersFailedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total orders that reached a failure terminal state",
	}, []string{"status"})
)

// Service owns the order lifecycle: it starts the saga on create and acts
// as the terminal reducer for order.paid, order.failed and payment.failed.
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

type ItemRequest struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type CreateOrderRequest struct {
	CustomerID uuid.UUID     `json:"customerId"`
	Items      []ItemRequest `json:"items"`
}

// CreateOrder persists a PLACED order and emits order.placed. The publish
// happens after the local commit; a crash in between leaves the order
// PLACED with the event unsent, which is the accepted dual-write gap.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	items := make([]domain.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}

	order, err := domain.New(req.CustomerID, items)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(tx domain.Tx) error {
		return tx.InsertOrder(order)
	})
	if err != nil {
		return nil, fmt.Errorf("order: insert: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"ORDER_ID":    order.ID,
		"CUSTOMER_ID": order.CustomerID,
		"TOTAL":       order.TotalAmount,
		"ITEMS":       len(order.Items),
	}).Info("Order created")

	event := saga.NewEvent(order.ID, order.CustomerID, order.EventItems(), order.TotalAmount, saga.StatusPlaced, Source)
	if err := s.publisher.Publish(ctx, saga.TopicOrderPlaced, event); err != nil {
		// Local state is already committed and correct; the missing event
		// needs an out-of-band reconciliation sweep, not a rollback.
		logrus.WithFields(logrus.Fields{
			"ORDER_ID": order.ID,
			"ERR":      err,
		}).Error("Failed to publish order.placed")
	}

	ordersCreatedCounter.Inc()
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.store.OrderByID(ctx, id)
}

func (s *Service) OrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	return s.store.OrdersByCustomer(ctx, customerID)
}

// CompleteOrder consumes order.paid: the order becomes COMPLETED and one
// order.completed event is emitted carrying the same items and total.
func (s *Service) CompleteOrder(ctx context.Context, event *saga.OrderEvent, topic string) error {
	applied, err := s.reduce(ctx, event, topic, func(o *domain.Order) error {
		return o.Complete()
	})
	if err != nil || !applied {
		return err
	}

	logrus.WithField("ORDER_ID", event.OrderID).Info("Order COMPLETED")
	ordersCompletedCounter.Inc()

	completed := saga.NewEvent(event.OrderID, event.CustomerID, event.Items, event.TotalAmount, saga.StatusCompleted, Source)
	if err := s.publisher.Publish(ctx, saga.TopicOrderCompleted, completed); err != nil {
		logrus.WithFields(logrus.Fields{
			"ORDER_ID": event.OrderID,
			"ERR":      err,
		}).Error("Failed to publish order.completed")
	}
	return nil
}

// FailOrder consumes order.failed (stock validation failed upstream).
func (s *Service) FailOrder(ctx context.Context, event *saga.OrderEvent, topic string) error {
	applied, err := s.reduce(ctx, event, topic, func(o *domain.Order) error {
		return o.Fail(event.Reason)
	})
	if err != nil || !applied {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"ORDER_ID": event.OrderID,
		"REASON":   event.Reason,
	}).Warn("Order FAILED")
	ordersFailedCounter.WithLabelValues(string(saga.StatusFailed)).Inc()
	return nil
}

// HandlePaymentFailure consumes payment.failed. Inventory releases the
// reserved stock on its own; the reducer only records the terminal state.
func (s *Service) HandlePaymentFailure(ctx context.Context, event *saga.OrderEvent, topic string) error {
	applied, err := s.reduce(ctx, event, topic, func(o *domain.Order) error {
		return o.FailPayment(event.Reason)
	})
	if err != nil || !applied {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"ORDER_ID": event.OrderID,
		"REASON":   event.Reason,
	}).Warn("Order PAYMENT_FAILED")
	ordersFailedCounter.WithLabelValues(string(saga.StatusPaymentFailed)).Inc()
	return nil
}

// reduce runs one idempotency-gated terminal transition. It returns
// applied=false when the event was a duplicate delivery, so the caller can
// skip logging, metrics and downstream publishes.
func (s *Service) reduce(ctx context.Context, event *saga.OrderEvent, topic string, mutate func(o *domain.Order) error) (bool, error) {
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

		order, err := tx.OrderByID(event.OrderID)
		if err != nil {
			return err
		}
		if err := mutate(order); err != nil {
			return err
		}
		if err := tx.UpdateStatus(order); err != nil {
			return err
		}
		if err := tx.MarkProcessed(event.EventID, topic); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}
