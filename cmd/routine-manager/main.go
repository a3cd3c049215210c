package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"gorm.io/gorm"

	"daily-routine-service/internal/config"
	"daily-routine-service/internal/routine-manager/api"
	"daily-routine-service/internal/routine-manager/catalog"
	"daily-routine-service/internal/routine-manager/clock"
	routineDB "daily-routine-service/internal/routine-manager/db"
	"daily-routine-service/internal/routine-manager/events"
	rmKafka "daily-routine-service/internal/routine-manager/kafka"
	"daily-routine-service/internal/routine-manager/services"
	"daily-routine-service/internal/routine-manager/store"
	"daily-routine-service/internal/stats-worker/aggregators"
	gorm_db "daily-routine-service/pkg/db"
)

const storeTypeMemory = "memory"

func main() {
	stdlog.Println("Routine Manager Service starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	hlog.SetOutput(os.Stdout)
	hlog.SetLevel(hlog.LevelInfo)

	routineCatalog, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		stdlog.Fatalf("Failed to load task catalog: %v", err)
	}
	hlog.Infof("Task catalog loaded with %d tasks.", routineCatalog.Len())

	var (
		statusStore store.StatusStore
		gormDB      *gorm.DB
	)
	if cfg.DBType == storeTypeMemory {
		statusStore = store.NewMemoryStatusStore(routineCatalog.Tasks())
		hlog.Warn("Using in-memory status store; routine state will not survive a restart.")
	} else {
		gormDB, err = gorm_db.NewGormDB(gorm_db.Options{Type: cfg.DBType, DSN: cfg.DBDSN})
		if err != nil {
			stdlog.Fatalf("Failed to initialize database: %v", err)
		}
		stdlog.Println("Database initialized successfully.")

		stdlog.Println("Running database migrations...")
		if err := gorm_db.AutoMigrate(gormDB, &routineDB.DailyStatus{}); err != nil {
			stdlog.Fatalf("Failed to migrate database: %v", err)
		}
		stdlog.Println("Database migration successful.")
		statusStore = store.NewGormStatusStore(gormDB, routineCatalog.Tasks(), cfg.StoreTimeout)
	}

	stats := aggregators.NewStatsTracker()
	achievements := aggregators.NewAchievementTracker(routineCatalog, func(a aggregators.Achievement) {
		hlog.Infof("Achievement unlocked: %s (%s)", a.Name, a.ID)
	})
	registry := aggregators.NewRegistry()
	registry.Register(stats)
	registry.Register(achievements)

	bus := events.NewBus(events.DefaultBufferSize)
	if err := bus.Subscribe("aggregators", registry.Dispatch); err != nil {
		stdlog.Fatalf("Failed to subscribe aggregators: %v", err)
	}

	var kafkaProducer *kafkago.Writer
	if cfg.KafkaEnabled {
		kafkaProducer = rmKafka.NewKafkaProducer(cfg.KafkaBrokers, cfg.EventsTopic)
		if err := bus.Subscribe("kafka", rmKafka.NewEventPublisher(kafkaProducer).Handle); err != nil {
			stdlog.Fatalf("Failed to subscribe Kafka publisher: %v", err)
		}
	}

	wallClock := clockwork.NewRealClock()
	tickService, err := services.NewTickService(wallClock, cfg.Location)
	if err != nil {
		stdlog.Fatalf("Failed to create tick service: %v", err)
	}

	routineService := services.NewRoutineService(services.Options{
		Catalog: routineCatalog,
		Store:   statusStore,
		Clock:   clock.New(wallClock, cfg.Location),
		Ticker:  tickService,
		Events:  bus,
		Navigate: func(path string) {
			hlog.Infof("Navigate: %s", path)
		},
	})
	startCtx, startCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = routineService.Start(startCtx)
	startCancel()
	if err != nil {
		stdlog.Fatalf("Failed to start routine service: %v", err)
	}

	if cfg.RetentionDays > 0 {
		err := tickService.SchedulePrune(3, 0, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := routineService.Prune(ctx, cfg.RetentionDays); err != nil {
				hlog.Errorf("Retention prune failed: %v", err)
			}
		})
		if err != nil {
			stdlog.Fatalf("Failed to schedule retention prune: %v", err)
		}
	}

	h := server.Default(server.WithHostPorts(cfg.ServerAddr), server.WithExitWaitTime(5*time.Second))

	routineHandler := api.NewRoutineHandler(routineService, stats, achievements, cfg.TestModeAllowed)
	routineHandler.Register(h.Group("/routine"))

	h.GET("/ping", func(c context.Context, ctxReq *app.RequestContext) {
		ctxReq.JSON(http.StatusOK, utils.H{"message": "pong"})
	})

	hlog.Infof("Routine Manager Service fully initialized and starting Hertz server on %s...", cfg.ServerAddr)
	// Spin returns after hertz has handled SIGINT/SIGTERM and stopped the server.
	h.Spin()

	var shutdown shutdownSequence
	shutdown.add("Routine service", func() error {
		routineService.Close()
		return nil
	})
	shutdown.add("Event bus", func() error {
		bus.Close()
		return nil
	})
	if kafkaProducer != nil {
		shutdown.add("Kafka producer", kafkaProducer.Close)
	}
	if gormDB != nil {
		shutdown.add("Database", func() error { return gorm_db.Close(gormDB) })
	}
	if err := shutdown.run(); err != nil {
		stdlog.Printf("Routine Manager shut down with errors: %v", err)
		os.Exit(1)
	}

	stdlog.Println("Routine Manager Service has been shut down.")
}
