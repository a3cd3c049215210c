package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"daily-routine-service/internal/config"
	"daily-routine-service/internal/routine-manager/catalog"
	"daily-routine-service/internal/routine-manager/events"
	"daily-routine-service/internal/stats-worker/aggregators"
)

func main() {
	log.Println("Starting Stats Worker Service...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Stats Worker: failed to load configuration: %v", err)
	}
	hlog.SetOutput(os.Stdout)
	hlog.SetLevel(hlog.LevelInfo)

	routineCatalog, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("Stats Worker: failed to load task catalog: %v", err)
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		log.Fatalf("Stats Worker: failed to create metric exporter: %v", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.MetricsInterval))),
	)
	otel.SetMeterProvider(meterProvider)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Stats Worker: meter provider shutdown error: %v", err)
		}
	}()

	metrics, err := aggregators.NewMetricsAggregator(otel.Meter("daily-routine-service/stats-worker"))
	if err != nil {
		log.Fatalf("Stats Worker: %v", err)
	}
	stats := aggregators.NewStatsTracker()
	registry := aggregators.NewRegistry()
	registry.Register(stats)
	registry.Register(aggregators.NewAchievementTracker(routineCatalog, func(a aggregators.Achievement) {
		log.Printf("Stats Worker: achievement unlocked: %s (%s)", a.Name, a.ID)
	}))
	registry.Register(metrics)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.KafkaBrokers, GroupID: cfg.StatsGroupID, Topic: cfg.EventsTopic,
		MinBytes: 10e3, MaxBytes: 10e6, CommitInterval: time.Second, MaxWait: 3 * time.Second,
	})
	defer reader.Close()
	log.Printf("Stats Worker Kafka consumer configured for brokers: %v, topic: %s, groupID: %s", cfg.KafkaBrokers, cfg.EventsTopic, cfg.StatsGroupID)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := <-signals
		log.Printf("Stats Worker: Shutdown signal received (%s). Cancelling context...", sig)
		cancel()
	}()

	log.Println("Stats Worker listening for completion events...")
	for {
		select {
		case <-ctx.Done():
			s := stats.Snapshot()
			log.Printf("Stats Worker: Context cancelled. Final stats: %d completed (%d today), %d skipped.", s.TotalCompleted, s.CompletedToday, s.Skipped)
			return
		default:
		}

		readCtx, readCancel := context.WithTimeout(ctx, time.Second)
		m, err := reader.ReadMessage(readCtx)
		readCancel()
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			continue
		case errors.Is(err, context.Canceled):
			continue
		case errors.Is(err, io.EOF):
			log.Println("Stats Worker: Kafka reader closed (EOF). Exiting.")
			return
		case err != nil:
			log.Printf("Stats Worker: Kafka read error: %v. Retrying...", err)
			time.Sleep(time.Second)
			continue
		}

		e, err := events.Decode(m.Value)
		if err != nil {
			log.Printf("Stats Worker: Skipping undecodable message at partition %d offset %d: %v", m.Partition, m.Offset, err)
			continue
		}
		if err := registry.Dispatch(ctx, e); err != nil {
			log.Printf("Stats Worker: Aggregation failed for event %s (task %s): %v", e.ID, e.TaskID, err)
			continue
		}
		log.Printf("Stats Worker: Applied event %s (task %s %s on %s)", e.ID, e.TaskID, e.Status, e.Date)
	}
}
