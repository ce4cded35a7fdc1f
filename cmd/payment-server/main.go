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
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/k-code-yt/order-saga/internal/payment/application"
	"github.com/k-code-yt/order-saga/internal/payment/infra/repo"
	"github.com/k-code-yt/order-saga/pkg/db/postgres"
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
	return ":7573"
}

func maxAmount() decimal.Decimal {
	raw := os.Getenv("PAYMENT_MAX_AMOUNT")
	if raw == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		logrus.Fatalf("invalid PAYMENT_MAX_AMOUNT %q: %v", raw, err)
	}
	return amount
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg, err := postgres.NewConfig("payment_service")
	if err != nil {
		logrus.Fatalf("postgres config: %v", err)
	}
	db, err := postgres.Connect(dbCfg)
	if err != nil {
		logrus.Fatalf("postgres connect: %v", err)
	}
	defer db.Close()

	kafkaCfg, err := kafka.NewConfig("payment-service-group")
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

	svc := application.NewService(repo.NewStore(db), producer, maxAmount())

	consumer, err := kafka.NewConsumer(kafkaCfg, codec, producer)
	if err != nil {
		logrus.Fatalf("kafka consumer: %v", err)
	}
	consumer.Handle(saga.TopicOrderValidated, svc.ProcessOrderValidated)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			logrus.Errorf("consumer stopped: %v", err)
			stop()
		}
	}()

	dltCfg := *kafkaCfg
	dltCfg.GroupID = "payment-dlt-group"
	dlt, err := kafka.NewConsumer(&dltCfg, codec, producer)
	if err != nil {
		logrus.Fatalf("kafka dlt consumer: %v", err)
	}
	dlt.Handle(saga.DLT(saga.TopicOrderValidated), logDeadLetter)
	go func() {
		if err := dlt.Run(ctx); err != nil {
			logrus.Errorf("dlt consumer stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: httpAddr(), Handler: mux}
	go func() {
		logrus.Infof("payment server listening on %s", srv.Addr)
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
