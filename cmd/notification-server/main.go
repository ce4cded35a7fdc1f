package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/k-code-yt/order-saga/internal/notification/application"
	"github.com/k-code-yt/order-saga/internal/notification/dedup"
	"github.com/k-code-yt/order-saga/internal/notification/ws"
	"github.com/k-code-yt/order-saga/pkg/kafka"
	"github.com/k-code-yt/order-saga/pkg/saga"
)

func init() {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		log.Fatal("Unable to get current file path")
	}
	envPath := filepath.Join(filepath.Dir(filename), ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("No .env file found at %s", envPath)
	}
}

func httpAddr() string {
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		return addr
	}
	return ":7574"
}

// newDeduper picks the seen-set backend: Redis when REDIS_ADDR is set so
// replicas share it, an in-process bounded set otherwise.
func newDeduper(ctx context.Context) dedup.Deduper {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return dedup.NewMemoryDeduper(dedup.DefaultCap)
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.Fatalf("redis ping %s: %v", addr, err)
	}
	logrus.Infof("using redis dedup at %s", addr)
	return dedup.NewRedisDeduper(client, dedup.DefaultTTL)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kafkaCfg, err := kafka.NewConfig("notification-service-group")
	if err != nil {
		logrus.Fatalf("kafka config: %v", err)
	}
	codec, err := kafkaCfg.Codec()
	if err != nil {
		logrus.Fatalf("event codec: %v", err)
	}

	producer, err := kafka.NewProducer(kafkaCfg, codec)
	if err != nil {
		logrus.Fatalf("kafka producer: %v", err)
	}
	defer producer.Close()

	hub := ws.NewHub()
	svc := application.NewService(newDeduper(ctx), hub)

	consumer, err := kafka.NewConsumer(kafkaCfg, codec, producer)
	if err != nil {
		logrus.Fatalf("kafka consumer: %v", err)
	}
	consumer.Handle(saga.TopicOrderCompleted, svc.NotifyOrderCompleted)
	consumer.Handle(saga.TopicOrderFailed, svc.NotifyOrderFailed)
	consumer.Handle(saga.TopicPaymentFailed, svc.NotifyPaymentFailed)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			logrus.Errorf("consumer stopped: %v", err)
			stop()
		}
	}()

	dltCfg := *kafkaCfg
	dltCfg.GroupID = "notification-dlt-group"
	dlt, err := kafka.NewConsumer(&dltCfg, codec, producer)
	if err != nil {
		logrus.Fatalf("kafka dlt consumer: %v", err)
	}
	dlt.Handle(saga.DLT(saga.TopicOrderCompleted), logDeadLetter)
	dlt.Handle(saga.DLT(saga.TopicOrderFailed), logDeadLetter)
	dlt.Handle(saga.DLT(saga.TopicPaymentFailed), logDeadLetter)
	go func() {
		if err := dlt.Run(ctx); err != nil {
			logrus.Errorf("dlt consumer stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: httpAddr(), Handler: mux}
	go func() {
		logrus.Infof("notification server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("http shutdown: %v", err)
	}
}

func logDeadLetter(_ context.Context, event *saga.OrderEvent, topic string) error {
	logrus.WithFields(logrus.Fields{
		"eventID": event.EventID,
		"orderID": event.OrderID,
		"status":  event.Status,
		"topic":   topic,
	}).Warn("dead-lettered event")
	return nil
}
