// Package main runs the graduation admission engine as one process:
// - Feed (continuous): HTTP + WebSocket candidate ingest, close requests
// - Admission (continuous): gates → scoring → sizing → execution workers
// - Guard (scheduled): daily loss-cap checks and UTC day rollover
// - Admin: operator text commands over POST /v1/admin
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/admin"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/config"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/engine"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/execution"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/feed"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/gate"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/intake"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/ledger"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/mode"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/notify"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/scoring"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/sizing"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage"
	chstore "github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage/clickhouse"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage/memory"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage/migrations"
	pgstore "github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage/postgres"
)

// engineStores holds the storage implementations the engine runs on.
type engineStores struct {
	journals  storage.JournalStore
	positions storage.PositionStore
	analytics storage.JournalAnalytics // nil when ClickHouse is not configured
}

func main() {
	// .env is optional; existing environment variables win.
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("GRAD_CONFIG"), "Path to YAML config file")
	listenAddr := flag.String("listen-addr", "", "Feed + admin + metrics listen address (overrides config)")
	initialMode := flag.String("mode", "", "Initial mode: PAPER, LIVE, or ALERTS_ONLY (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage regardless of configured DSNs")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lshortfile)

	// Load config: defaults -> file -> env -> flags
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	cfg.ApplyEnv()
	if *listenAddr != "" {
		cfg.Server.Addr = *listenAddr
	}
	if *initialMode != "" {
		cfg.Mode.Initial = strings.ToUpper(*initialMode)
	}
	if *useMemory {
		cfg.Storage.PostgresDSN = ""
		cfg.Storage.ClickHouseDSN = ""
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	startMode, err := domain.ParseMode(cfg.Mode.Initial)
	if err != nil {
		logger.Fatalf("Invalid initial mode: %v", err)
	}
	if startMode == domain.ModeLive {
		logger.Println("WARNING: starting in LIVE mode, orders will route to the venue")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Wire components. The mode controller and ledger fire their hooks
	// only after transitions and halts, both of which happen after eng
	// is assigned below, so the deferred pointer is safe.
	var eng *engine.Engine

	in := intake.New(intake.Options{
		DedupTTL: cfg.Engine.DedupTTL,
		Buffer:   cfg.Engine.IntakeBuffer,
	})
	defer in.Close()

	ctrl := mode.New(mode.Options{
		Initial:         startMode,
		KillDuration:    cfg.Mode.KillDuration,
		DailyLossCapPct: cfg.Risk.DailyLossCapPct,
		OnTransition: func(tr mode.Transition) {
			if eng != nil {
				eng.OnModeTransition(tr)
			}
		},
	})

	led := ledger.New(ledger.Options{
		EquityUSD:       cfg.Risk.EquityUSD,
		ExposureCapFrac: cfg.Risk.ExposureCapFrac,
		MaxConcurrent:   cfg.Risk.MaxConcurrent,
		HaltHook: func(reason string) {
			if eng != nil {
				eng.OnLedgerHalt(reason)
			}
		},
	})

	sizer := sizing.New(cfg.Sizing)

	var venue execution.VenueClient
	if cfg.Execution.VenueEndpoint != "" {
		venue = execution.NewHTTPVenue(cfg.Execution.VenueEndpoint,
			execution.WithVenueTimeout(cfg.Execution.RouteTimeout))
		logger.Printf("Venue endpoint: %s", cfg.Execution.VenueEndpoint)
	}

	router := execution.New(execution.Options{
		Paper: execution.NewPaperFiller(execution.PaperOptions{
			SlippageBps: cfg.Execution.SlippageBpsDefault,
		}),
		Venue:   venue,
		Mode:    ctrl.Mode,
		Timeout: cfg.Execution.RouteTimeout,
	})

	eng = engine.New(engine.Options{
		Intake:        in,
		Gate:          gate.NewEvaluator(cfg.Gates),
		Scorer:        scoring.NewEngine(scoring.NewWeightedModel(cfg.Scoring)),
		Sizer:         sizer,
		Ledger:        led,
		Modes:         ctrl,
		Router:        router,
		Journal:       stores.journals,
		Positions:     stores.positions,
		Analytics:     stores.analytics,
		Notifier:      buildNotifier(cfg.Telegram, logger),
		Logger:        logger,
		Workers:       cfg.Engine.Workers,
		MinScore:      cfg.Engine.MinScore,
		NotifyRejects: cfg.Engine.NotifyRejects,
		GuardInterval: cfg.Mode.GuardInterval,
	})

	adminHandler := admin.New(admin.Options{
		Engine:     eng,
		Intake:     in,
		Sizer:      sizer,
		Ledger:     led,
		Modes:      ctrl,
		Positions:  stores.positions,
		Analytics:  stores.analytics,
		LossCapPct: cfg.Risk.DailyLossCapPct,
	})

	srv := feed.New(feed.Options{
		Engine: eng,
		Admin:  adminHandler,
	})

	logger.Printf("Starting in %s mode, equity %.2f USD, listening on %s",
		startMode, cfg.Risk.EquityUSD, cfg.Server.Addr)

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Run the feed server and the admission engine until shutdown
	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(runCtx, cfg.Server.Addr)
	})
	g.Go(func() error {
		return eng.Run(runCtx)
	})

	err = g.Wait()
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Engine error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates the journal, position, and analytics stores.
// An empty Postgres DSN selects in-memory primaries; an empty ClickHouse
// DSN leaves the analytics mirror off.
func createStores(ctx context.Context, cfg config.StorageConfig, logger *log.Logger) (*engineStores, func(), error) {
	stores := &engineStores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN == "" {
		stores.journals = memory.NewJournalStore()
		stores.positions = memory.NewPositionStore()
		logger.Println("Storage: in-memory (journal and positions reset on restart)")
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		stores.journals = pgstore.NewJournalStore(pool)
		stores.positions = pgstore.NewPositionStore(pool)
		logger.Println("Storage: postgres")
	}

	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		stores.analytics = chstore.NewJournalStore(conn)
		logger.Println("Analytics mirror: clickhouse")
	}

	return stores, cleanup, nil
}

// buildNotifier assembles the notification fan-out. The log sink is
// always present; Telegram joins when a bot token is configured.
func buildNotifier(cfg config.TelegramConfig, logger *log.Logger) notify.Notifier {
	sinks := []notify.Notifier{notify.NewLog(logger)}
	if cfg.Enabled {
		tg := notify.NewTelegram(cfg.BotToken, cfg.ChatID)
		if tg.Enabled() {
			sinks = append(sinks, tg)
			logger.Println("Telegram notifications enabled")
		}
	}
	return notify.NewMulti(sinks...)
}
