package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/floor-plan-reservations/internal/airtable"
	"github.com/iliyamo/floor-plan-reservations/internal/assign"
	"github.com/iliyamo/floor-plan-reservations/internal/calendly"
	"github.com/iliyamo/floor-plan-reservations/internal/config"
	"github.com/iliyamo/floor-plan-reservations/internal/floorplan"
	"github.com/iliyamo/floor-plan-reservations/internal/handler"
	"github.com/iliyamo/floor-plan-reservations/internal/poller"
	"github.com/iliyamo/floor-plan-reservations/internal/queue"
	"github.com/iliyamo/floor-plan-reservations/internal/router"
	"github.com/iliyamo/floor-plan-reservations/internal/store"
)

func main() {
	// Load .env when present; in production the variables come from the
	// environment directly and the file is simply absent.
	_ = godotenv.Load()

	cfg := config.Load()

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	market, err := time.LoadLocation(cfg.Market)
	if err != nil {
		logger.Fatal("invalid MARKET_TZ", zap.String("tz", cfg.Market), zap.Error(err))
	}

	plan := config.DefaultFloorPlan()
	if cfg.FloorPlanFile != "" {
		plan, err = config.LoadFloorPlan(cfg.FloorPlanFile)
		if err != nil {
			logger.Fatal("floor plan load failed", zap.String("file", cfg.FloorPlanFile), zap.Error(err))
		}
	}
	policy := floorplan.Policy{
		StrictSequentialBooking: cfg.StrictSequentialBooking,
		AllowOverCapacity:       cfg.AllowOverCapacity,
	}
	state := floorplan.NewState(plan, policy)
	selector := floorplan.NewSelector(plan)

	records := buildRecordStore(cfg, logger)

	reconciler := assign.NewReconciler(state, records, nil, logger)
	orchestrator := assign.NewOrchestrator(state, selector, nil, logger)

	var events assign.EventPublisher
	if cfg.AMQPURL != "" {
		events = queue.NewPublisher(cfg.AMQPURL, logger)
		go func() {
			if err := queue.StartAssignedConsumer(cfg.AMQPURL); err != nil {
				logger.Warn("assignment consumer stopped", zap.Error(err))
			}
		}()
	}
	batch := assign.NewBatchProcessor(orchestrator, state, records, reconciler, events, logger)

	provider := calendly.NewClient(cfg.CalendlyToken, market, nil, logger)
	p := poller.New(provider, batch, reconciler, state, records, market, nil, logger)

	// Seed the board and the duplicate fingerprints before the first poll
	// cycle runs.
	bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := p.RefreshFromStore(bootCtx); err != nil {
		logger.Warn("initial board load failed", zap.Error(err))
	}
	if err := reconciler.LoadFromPersistedState(bootCtx); err != nil {
		logger.Warn("fingerprint seed failed", zap.Error(err))
	}
	if removed := p.SweepDuplicates(bootCtx); removed > 0 {
		logger.Info("startup duplicate sweep", zap.Int("removed", removed))
	}
	cancel()

	go p.Start(context.Background(), poller.Intervals{
		Today:     cfg.TodayPollEvery,
		Future:    cfg.FuturePollEvery,
		Cancelled: cfg.CancelledPollEvery,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger(), echomw.Recover())
	router.RegisterRoutes(e)
	router.RegisterAPI(e,
		handler.NewAuthHandler(cfg),
		handler.NewBoardHandler(state, p),
		handler.NewReservationHandler(state, batch, records),
		handler.NewPollHandler(p),
		cfg.JWTSecret,
	)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// buildRecordStore picks the persistence backend: the hosted Airtable
// base when a token is configured, the local MySQL database when DB
// settings are present, otherwise local-only mode (the board still works,
// nothing survives a restart).
func buildRecordStore(cfg config.Config, logger *zap.Logger) store.RecordStore {
	if cfg.AirtableToken != "" {
		if cfg.AirtableBaseID == "" || cfg.AirtableTable == "" {
			logger.Fatal("AIRTABLE_TOKEN set but AIRTABLE_BASE_ID/AIRTABLE_TABLE missing")
		}
		cache := config.NewRedisClient() // nil when Redis is unreachable
		if cache == nil {
			logger.Warn("redis unavailable, record mirror disabled")
		}
		logger.Info("using airtable record store", zap.String("base", cfg.AirtableBaseID))
		return airtable.NewClient(cfg.AirtableToken, cfg.AirtableBaseID, cfg.AirtableTable, cache, logger)
	}
	if cfg.DBHost != "" {
		db, err := store.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			logger.Fatal("mysql open failed", zap.Error(err))
		}
		logger.Info("using mysql record store", zap.String("db", cfg.DBName))
		return store.NewMySQLStore(db)
	}
	logger.Warn("no record store configured, running local-only")
	return nil
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
