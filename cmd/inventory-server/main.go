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

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/k-code-yt/order-saga/internal/inventory/application"
	"github.com/k-code-yt/order-saga/internal/inventory/domain"
	"github.com/k-code-yt/order-saga/internal/inventory/infra/repo"
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
	return ":7572"
}

// seedCatalog inserts the demo products on first boot. The watch starts at
// zero stock so validation failures are easy to provoke.
func seedCatalog(ctx context.Context, store *repo.Store) error {
	count, err := store.ProductCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		logrus.Infof("catalog already seeded (%d products)", count)
		return nil
	}

	now := time.Now().UTC()
	products := []*domain.Product{
		{ID: uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7"), SKUCode: "LAPTOP-001", Name: "MacBook Pro 14", Available: 50},
		{ID: uuid.MustParse("8a9e6679-7425-40de-944b-e07fc1f90ae8"), SKUCode: "MOUSE-001", Name: "Magic Mouse", Available: 100},
		{ID: uuid.MustParse("9b9e6679-7425-40de-944b-e07fc1f90ae9"), SKUCode: "PHONE-001", Name: "iPhone 15 Pro", Available: 30},
		{ID: uuid.MustParse("ac9e6679-7425-40de-944b-e07fc1f90af0"), SKUCode: "WATCH-001", Name: "Apple Watch Ultra", Available: 0},
	}
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
	}
	if err := store.Seed(ctx, products); err != nil {
		return err
	}
	logrus.Infof("seeded %d products", len(products))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg, err := postgres.NewConfig("inventory_service")
	if err != nil {
		logrus.Fatalf("postgres config: %v", err)
	}
	db, err := postgres.Connect(dbCfg)
	if err != nil {
		logrus.Fatalf("postgres connect: %v", err)
	}
	defer db.Close()

	store := repo.NewStore(db)
	if err := seedCatalog(ctx, store); err != nil {
		logrus.Fatalf("seed catalog: %v", err)
	}

	kafkaCfg, err := kafka.NewConfig("inventory-service-group")
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

	svc := application.NewService(store, producer)

	consumer, err := kafka.NewConsumer(kafkaCfg, codec, producer)
	if err != nil {
		logrus.Fatalf("kafka consumer: %v", err)
	}
	consumer.Handle(saga.TopicOrderPlaced, svc.ProcessOrderPlaced)
	consumer.Handle(saga.TopicPaymentFailed, svc.CompensateReservation)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			logrus.Errorf("consumer stopped: %v", err)
			stop()
		}
	}()

	dltCfg := *kafkaCfg
	dltCfg.GroupID = "inventory-dlt-group"
	dlt, err := kafka.NewConsumer(&dltCfg, codec, producer)
	if err != nil {
		logrus.Fatalf("kafka dlt consumer: %v", err)
	}
	dlt.Handle(saga.DLT(saga.TopicOrderPlaced), logDeadLetter)
	dlt.Handle(saga.DLT(saga.TopicPaymentFailed), logDeadLetter)
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
		logrus.Infof("inventory server listening on %s", srv.Addr)
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
