package kafka

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cenkalti/backoff/v4"

	"github.com/k-code-yt/order-saga/pkg/saga"
)

type EncoderType string

const (
	Encoder_JSON EncoderType = "json"
	Encoder_AVRO EncoderType = "avro"
)

type Config struct {
	BootstrapServers string      `env:"KAFKA_BOOTSTRAP_SERVERS" envDefault:"localhost:9092"`
	GroupID          string      `env:"KAFKA_GROUP_ID"`
	Workers          int         `env:"KAFKA_WORKERS" envDefault:"3"`
	NumPartitions    int         `env:"KAFKA_NUM_PARTITIONS" envDefault:"3"`
	AssignStrategy   string      `env:"KAFKA_ASSIGN_STRATEGY" envDefault:"cooperative-sticky"`
	SessionTimeout   int         `env:"KAFKA_SESSION_TIMEOUT_MS" envDefault:"45000"`
	AutoOffsetReset  string      `env:"KAFKA_AUTO_OFFSET_RESET" envDefault:"earliest"`
	MsgEncoderType   EncoderType `env:"EVENT_ENCODER" envDefault:"json"`

	Retry RetryPolicy
}

// NewConfig reads bus settings from the environment. fallbackGroup becomes
// the consumer group id when KAFKA_GROUP_ID is unset, so every service
// subscribes under its own group by default.
func NewConfig(fallbackGroup string) (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("kafka: parse config: %w", err)
	}
	if cfg.GroupID == "" {
		cfg.GroupID = fallbackGroup
	}
	return &cfg, nil
}

func (c *Config) Codec() (saga.Codec, error) {
	switch c.MsgEncoderType {
	case Encoder_AVRO:
		return saga.NewAvroCodec()
	case Encoder_JSON, "":
		return saga.JSONCodec{}, nil
	}
	return nil, fmt.Errorf("kafka: unknown encoder type %q", c.MsgEncoderType)
}

// RetryPolicy bounds handler retries before a message is dead-lettered.
// Defaults mirror the original escalation: 1s -> 2s -> 4s -> 8s -> 10s cap,
// giving up after 30s total.
type RetryPolicy struct {
	InitialInterval time.Duration `env:"RETRY_INITIAL_INTERVAL" envDefault:"1s"`
	Multiplier      float64       `env:"RETRY_MULTIPLIER" envDefault:"2.0"`
	MaxInterval     time.Duration `env:"RETRY_MAX_INTERVAL" envDefault:"10s"`
	MaxElapsedTime  time.Duration `env:"RETRY_MAX_ELAPSED_TIME" envDefault:"30s"`
}

func (p RetryPolicy) Backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsedTime
	b.RandomizationFactor = 0
	return b
}
