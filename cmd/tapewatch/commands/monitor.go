package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaekwon-dev/tapewatch/internal/api"
	"github.com/jaekwon-dev/tapewatch/internal/api/handlers"
	"github.com/jaekwon-dev/tapewatch/internal/archive"
	"github.com/jaekwon-dev/tapewatch/internal/external/polygon"
	"github.com/jaekwon-dev/tapewatch/internal/external/stooq"
	"github.com/jaekwon-dev/tapewatch/internal/external/tiingo"
	"github.com/jaekwon-dev/tapewatch/internal/feature"
	"github.com/jaekwon-dev/tapewatch/internal/funnel"
	"github.com/jaekwon-dev/tapewatch/internal/funnelconfig"
	"github.com/jaekwon-dev/tapewatch/internal/monitor"
	"github.com/jaekwon-dev/tapewatch/internal/provider"
	"github.com/jaekwon-dev/tapewatch/internal/risk"
	"github.com/jaekwon-dev/tapewatch/internal/scheduler"
	"github.com/jaekwon-dev/tapewatch/internal/scheduler/jobs"
	"github.com/jaekwon-dev/tapewatch/internal/snapshot"
	"github.com/jaekwon-dev/tapewatch/internal/universe"
	"github.com/jaekwon-dev/tapewatch/pkg/config"
	"github.com/jaekwon-dev/tapewatch/pkg/database"
	"github.com/jaekwon-dev/tapewatch/pkg/httputil"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
	"github.com/jaekwon-dev/tapewatch/pkg/redis"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Start the live monitor loop",
	Long: `Starts the live monitor loop plus its read-only API.

This command:
- Polls the ranked provider chain on a fixed cadence during session hours
- Computes features, classifies risk and evaluates the decision funnel
- Persists a snapshot whenever the decision state changes
- Archives every cycle for replay (when ARCHIVE_ENABLED=true)
- Serves the latest decisions over HTTP

Example:
  go run ./cmd/tapewatch monitor
  go run ./cmd/tapewatch monitor --exchanges XNAS,XNYS --retention-days 60`,
	RunE: runMonitor,
}

var (
	monitorExchanges string
	archiveRetention int
)

func init() {
	rootCmd.AddCommand(monitorCmd)

	// Flags
	monitorCmd.Flags().StringVar(&monitorExchanges, "exchanges", "XNAS,XNYS", "comma-separated exchange MICs to scan")
	monitorCmd.Flags().IntVar(&archiveRetention, "retention-days", 90, "days of archived cycles to keep")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	fmt.Println("=== tapewatch Monitor ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load the funnel thresholds and pin their hash
	fcfg, _, err := funnelconfig.Load(cfg.Monitor.FunnelConfigPath)
	if err != nil {
		return fmt.Errorf("load funnel config: %w", err)
	}
	configHash, err := funnelconfig.Hash(fcfg)
	if err != nil {
		return fmt.Errorf("hash funnel config: %w", err)
	}

	clock, err := monitor.NewSessionClock(fcfg.Meta)
	if err != nil {
		return fmt.Errorf("session clock: %w", err)
	}
	loc, err := time.LoadLocation(fcfg.Meta.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %s: %w", fcfg.Meta.Timezone, err)
	}

	log.WithFields(map[string]interface{}{
		"strategy":    fcfg.Meta.StrategyID,
		"config_hash": configHash[:12],
		"cadence":     fcfg.Monitor.Cadence.String(),
	}).Info("Funnel config loaded")

	// 4. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 5. Redis cache (optional mirror of the latest cycle)
	var cache *redis.Cache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
		cache = redis.NewCache(redisClient, "tapewatch")
		log.Info("Connected to redis")
	}

	// 6. HTTP client and tier clients, ranked Tier-1 .. Tier-3
	httpClient := httputil.New(log)
	polygonClient := polygon.NewClient(cfg.Polygon, log, httpClient)
	tiingoClient := tiingo.NewClient(cfg.Tiingo, httpClient, log)
	stooqClient := stooq.NewClient(cfg.Stooq, httpClient, log)

	chain := provider.NewChain(
		[]provider.TierProvider{polygonClient, tiingoClient, stooqClient},
		fcfg.Monitor.FetchWorkers,
		log,
	)

	// 7. Repositories
	snapshotRepo := snapshot.NewPostgresRepository(db)
	universeRepo := universe.NewPostgresRepository(db)

	var archiveRepo archive.Repository
	if cfg.Monitor.ArchiveEnabled {
		archiveRepo = archive.NewPostgresRepository(db)
	}

	// 8. Universe service, pipeline stages, snapshot store
	exchanges := strings.Split(monitorExchanges, ",")
	universeSvc := universe.NewService(polygonClient, universeRepo, exchanges, log)

	engine := feature.NewEngine(fcfg)
	classifier := risk.NewClassifier(fcfg, engine)
	decisionFunnel := funnel.New(fcfg)
	store := snapshot.NewStore(snapshotRepo, configHash, log)

	if err := store.Init(context.Background()); err != nil {
		return fmt.Errorf("prime snapshot store: %w", err)
	}

	loop := monitor.NewLoop(monitor.Deps{
		Cfg:        fcfg,
		Clock:      clock,
		Universe:   universeSvc,
		Fetcher:    chain,
		Engine:     engine,
		Classifier: classifier,
		Funnel:     decisionFunnel,
		Store:      store,
		Archive:    archiveRepo,
		Cache:      cache,
		Log:        log,
	})

	// 9. Signal-aware root context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 10. Start the Tier-1 stream and subscribe today's universe.
	// A dead stream is not fatal; the chain falls through to Tier-2.
	if err := polygonClient.Start(ctx); err != nil {
		log.WithError(err).Warn("Tier-1 stream unavailable at startup")
	}
	defer polygonClient.Stop()

	sessionDate := clock.SessionDate(time.Now())
	if u, err := universeSvc.Current(ctx, sessionDate); err != nil {
		log.WithError(err).Warn("Universe not ready at startup, pre-open job will retry")
	} else {
		symbols := make([]string, 0, u.Count())
		for _, inst := range u.Instruments {
			symbols = append(symbols, inst.Symbol)
		}
		if err := polygonClient.Subscribe(symbols); err != nil {
			log.WithError(err).Warn("Tier-1 subscribe failed")
		}
	}

	// 11. Warm the rolling feature buffers from the archive so a restart
	// decides from the same history an uninterrupted run would carry.
	if archiveRepo != nil {
		warmed, err := loop.Warmup(ctx, universeSvc, sessionDate)
		if err != nil {
			return fmt.Errorf("warm feature buffers: %w", err)
		}
		log.WithField("sessions", warmed).Info("Warmup complete")
	}

	// 12. Maintenance scheduler
	sched := scheduler.New(log, loc)
	if err := sched.AddJob(jobs.NewUniverseRefreshJob(universeSvc, loc, log)); err != nil {
		return fmt.Errorf("add universe refresh job: %w", err)
	}
	if archiveRepo != nil {
		if err := sched.AddJob(jobs.NewRetentionJob(archiveRepo, archiveRetention, log)); err != nil {
			return fmt.Errorf("add retention job: %w", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	// 13. Read-only API over the loop state
	watchHandler := handlers.NewWatchHandler(loop.State(), snapshotRepo, universeRepo, chain, sched, db, log)
	router := api.NewRouter(watchHandler, log)
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start API server")
		}
	}()

	fmt.Printf("\n✅ Monitor running, API on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	// 14. Run the loop until interrupted
	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("monitor loop: %w", err)
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Monitor stopped")
	return nil
}
