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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/k-code-yt/order-saga/internal/order/application"
	orderhttp "github.com/k-code-yt/order-saga/internal/order/http"
	"github.com/k-code-yt/order-saga/internal/order/infra/repo"
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
	return ":7571"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg, err := postgres.NewConfig("order_service")
	if err != nil {
		logrus.Fatalf("postgres config: %v", err)
	}
	db, err := postgres.Connect(dbCfg)
	if err != nil {
		logrus.Fatalf("postgres connect: %v", err)
	}
	defer db.Close()

	kafkaCfg, err := kafka.NewConfig("order-service-group")
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

	store := repo.NewStore(db)
	svc := application.NewService(store, producer)

	consumer, err := kafka.NewConsumer(kafkaCfg, codec, producer)
	if err != nil {
		logrus.Fatalf("kafka consumer: %v", err)
	}
	consumer.Handle(saga.TopicOrderPaid, svc.CompleteOrder)
	consumer.Handle(saga.TopicOrderFailed, svc.FailOrder)
	consumer.Handle(saga.TopicPaymentFailed, svc.HandlePaymentFailure)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			logrus.Errorf("consumer stopped: %v", err)
			stop()
		}
	}()

	dltCfg := *kafkaCfg
	dltCfg.GroupID = "order-dlt-group"
	dlt, err := kafka.NewConsumer(&dltCfg, codec, producer)
	if err != nil {
		logrus.Fatalf("kafka dlt consumer: %v", err)
	}
	dlt.Handle(saga.DLT(saga.TopicOrderPaid), logDeadLetter)
	dlt.Handle(saga.DLT(saga.TopicOrderFailed), logDeadLetter)
	dlt.Handle(saga.DLT(saga.TopicPaymentFailed), logDeadLetter)
	go func() {
		if err := dlt.Run(ctx); err != nil {
			logrus.Errorf("dlt consumer stopped: %v", err)
		}
	}()

	r := gin.Default()
	orderhttp.NewHandler(svc).Register(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	srv := &http.Server{Addr: httpAddr(), Handler: r}
	go func() {
		logrus.Infof("order server listening on %s", srv.Addr)
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

// logDeadLetter is the terminal handler for already dead-lettered events:
// nothing to do but make them visible.
func logDeadLetter(_ context.Context, event *saga.OrderEvent, topic string) error {
	logrus.WithFields(logrus.Fields{
		"eventID": event.EventID,
		"orderID": event.OrderID,
		"status":  event.Status,
		"topic":   topic,
	}).Warn("dead-lettered event")
	return nil
}
