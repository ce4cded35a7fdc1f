package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"

	"github.com/k-code-yt/order-saga/pkg/saga"
)

// HandlerFunc processes one decoded envelope. Returning an error triggers
// bus-level retry and eventually dead-lettering, so handlers must be safe
// to invoke multiple times for the same event.
type HandlerFunc func(ctx context.Context, event *saga.OrderEvent, topic string) error

// DeadLetterSink receives a message after its retry budget is exhausted.
type DeadLetterSink interface {
	PublishRaw(topic string, key, value []byte, headers []kafka.Header) error
}

// Consumer subscribes a consumer group to the topics it has handlers for
// and dispatches messages to a fixed pool of workers by partition id, so
// per-partition (hence per-orderId) ordering is preserved within a service.
type Consumer struct {
	consumer *kafka.Consumer
	codec    saga.Codec
	dlq      DeadLetterSink
	retry    RetryPolicy
	workers  int
	handlers map[string]HandlerFunc
	log      *logrus.Entry

	mu      sync.Mutex
	started bool
}

func NewConsumer(cfg *Config, codec saga.Codec, dlq DeadLetterSink) (*Consumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":             cfg.BootstrapServers,
		"group.id":                      cfg.GroupID,
		"session.timeout.ms":            cfg.SessionTimeout,
		"auto.offset.reset":             cfg.AutoOffsetReset,
		"partition.assignment.strategy": cfg.AssignStrategy,
		"enable.auto.commit":            true,
		"enable.auto.offset.store":      false,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka: create consumer for group %s: %w", cfg.GroupID, err)
	}

	return &Consumer{
		consumer: c,
		codec:    codec,
		dlq:      dlq,
		retry:    cfg.Retry,
		workers:  cfg.Workers,
		handlers: map[string]HandlerFunc{},
		log:      logrus.WithField("GROUP", cfg.GroupID),
	}, nil
}

// Handle registers the handler for a topic. Must be called before Run.
func (c *Consumer) Handle(topic string, h HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		panic("kafka: Handle called after Run")
	}
	c.handlers[topic] = h
}

// Run subscribes and consumes until ctx is cancelled. Offsets are stored
// only after a message has been handled or dead-lettered, never before.
func (c *Consumer) Run(ctx context.Context) error {
	c.mu.Lock()
	c.started = true
	topics := make([]string, 0, len(c.handlers))
	for t := range c.handlers {
		topics = append(topics, t)
	}
	c.mu.Unlock()

	if len(topics) == 0 {
		return fmt.Errorf("kafka: no handlers registered")
	}
	if err := c.consumer.SubscribeTopics(topics, nil); err != nil {
		return fmt.Errorf("kafka: subscribe %v: %w", topics, err)
	}

	workerCHs := make([]chan *kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range workerCHs {
		workerCHs[i] = make(chan *kafka.Message, 64)
		wg.Add(1)
		go func(ch chan *kafka.Message) {
			defer wg.Done()
			for msg := range ch {
				c.process(ctx, msg)
				if ctx.Err() != nil {
					// Shutdown mid-flight: leave the offset unstored so the
					// message is redelivered to the next assignee.
					continue
				}
				if _, err := c.consumer.StoreMessage(msg); err != nil {
					c.log.WithFields(logrus.Fields{
						"PRTN":   msg.TopicPartition.Partition,
						"OFFSET": msg.TopicPartition.Offset,
						"ERR":    err,
					}).Error("Failed to store offset")
				}
			}
		}(workerCHs[i])
	}

	for {
		if ctx.Err() != nil {
			break
		}
		msg, err := c.consumer.ReadMessage(time.Second)
		if err != nil {
			if kErr, ok := err.(kafka.Error); ok && kErr.IsTimeout() {
				continue
			}
			c.log.WithField("ERR", err).Error("Consumer read error")
			continue
		}
		// Same partition -> same worker: keeps per-order delivery order.
		idx := int(msg.TopicPartition.Partition) % c.workers
		select {
		case workerCHs[idx] <- msg:
		case <-ctx.Done():
		}
	}

	for _, ch := range workerCHs {
		close(ch)
	}
	wg.Wait()
	return c.consumer.Close()
}

func (c *Consumer) process(ctx context.Context, msg *kafka.Message) {
	topic := *msg.TopicPartition.Topic
	handler, ok := c.handlers[topic]
	if !ok {
		c.log.WithField("TOPIC", topic).Error("No handler for topic")
		return
	}

	event, err := c.codec.Decode(msg.Value)
	if err == nil {
		err = event.Validate()
	}
	if err != nil {
		// Poison message: retrying cannot fix a malformed envelope.
		c.log.WithFields(logrus.Fields{
			"TOPIC": topic,
			"ERR":   err,
		}).Error("Undecodable message")
		c.deadLetter(msg, topic, err)
		return
	}

	op := func() error {
		return handler(ctx, event, topic)
	}
	err = backoff.Retry(op, backoff.WithContext(c.retry.Backoff(), ctx))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.log.WithFields(logrus.Fields{
			"TOPIC":    topic,
			"EVENT_ID": event.EventID,
			"ORDER_ID": event.OrderID,
			"ERR":      err,
		}).Error("Handler failed after retries")
		c.deadLetter(msg, topic, err)
	}
}

func (c *Consumer) deadLetter(msg *kafka.Message, topic string, cause error) {
	if saga.IsDLT(topic) {
		// Never dead-letter a dead letter; log and move on.
		c.log.WithField("TOPIC", topic).Error("Dropping failed DLT message")
		return
	}
	if c.dlq == nil {
		return
	}
	headers := []kafka.Header{
		{Key: "dlt-original-topic", Value: []byte(topic)},
		{Key: "dlt-error", Value: []byte(cause.Error())},
	}
	if err := c.dlq.PublishRaw(saga.DLT(topic), msg.Key, msg.Value, headers); err != nil {
		c.log.WithFields(logrus.Fields{
			"TOPIC": saga.DLT(topic),
			"ERR":   err,
		}).Error("Failed to publish to DLT")
	}
}
