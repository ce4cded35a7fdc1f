package kafka

import (
	"context"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"

	"github.com/k-code-yt/order-saga/pkg/saga"
)

// Producer publishes envelopes keyed by orderId so that all events of one
// saga land on the same partition. Delivery reports are observed on a
// background goroutine; a failed delivery is logged, never propagated back
// into the transaction that triggered the publish.
type Producer struct {
	producer *kafka.Producer
	codec    saga.Codec
}

func NewProducer(cfg *Config, codec saga.Codec) (*Producer, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.BootstrapServers,
		"acks":              "all",
	})
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}

	go func() {
		for e := range p.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					logrus.WithFields(logrus.Fields{
						"TOPIC": *ev.TopicPartition.Topic,
						"KEY":   string(ev.Key),
						"ERR":   ev.TopicPartition.Error,
					}).Error("Delivery failed")
				} else {
					logrus.WithFields(logrus.Fields{
						"TOPIC":  *ev.TopicPartition.Topic,
						"PRTN":   ev.TopicPartition.Partition,
						"OFFSET": ev.TopicPartition.Offset,
					}).Debug("Delivery success")
				}
			case kafka.Error:
				logrus.WithField("ERR", ev).Error("Producer error")
			}
		}
	}()

	return &Producer{producer: p, codec: codec}, nil
}

func (p *Producer) Publish(ctx context.Context, topic string, event *saga.OrderEvent) error {
	data, err := p.codec.Encode(event)
	if err != nil {
		return err
	}
	return p.produce(topic, []byte(event.Key()), data, nil)
}

// PublishRaw forwards already-encoded bytes, used by the dead-letter path
// so a poisoned message reaches its DLT byte-identical.
func (p *Producer) PublishRaw(topic string, key, value []byte, headers []kafka.Header) error {
	return p.produce(topic, key, value, headers)
}

func (p *Producer) produce(topic string, key, value []byte, headers []kafka.Header) error {
	err := p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          value,
		Headers:        headers,
	}, nil)
	if err != nil {
		return fmt.Errorf("kafka: produce to %s: %w", topic, err)
	}
	return nil
}

// Close flushes outstanding messages and shuts the producer down.
func (p *Producer) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
}
