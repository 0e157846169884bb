package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"inventory-reconciler/config"
	"inventory-reconciler/internal/command"
	"inventory-reconciler/internal/extract"
	"inventory-reconciler/internal/inbox"
	"inventory-reconciler/internal/logger"
	"inventory-reconciler/internal/metrics"
	"inventory-reconciler/internal/notification"
	"inventory-reconciler/internal/opsws"
	"inventory-reconciler/internal/pipeline"
	"inventory-reconciler/internal/resolve"
	"inventory-reconciler/internal/retry"
	"inventory-reconciler/internal/review"
	"inventory-reconciler/internal/stock"
	redisstore "inventory-reconciler/internal/store/redis"
	sqlitestore "inventory-reconciler/internal/store/sqlite"
	"inventory-reconciler/internal/validate"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[reconciler] starting...")
	logger.Init("reconciler", slog.LevelInfo)

	cfg := config.Load()
	if cfg.StagingMode {
		log.Println("[reconciler] *** STAGING MODE — local stand-ins for every external system ***")
	}

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Ledger store (source of truth) ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	ledger, err := sqlitestore.New(sqlitestore.LedgerConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[reconciler] sqlite init failed: %v", err)
	}
	defer ledger.Close()
	health.CheckSQLite(ctx, ledger.DB())
	log.Println("[reconciler] ledger ready")

	// ---- Redis state (watermark, dedupe cache, session stats) ----
	var (
		state  pipeline.State
		cache  review.SyncedCache
		rstore *redisstore.Store
	)
	if cfg.StagingMode {
		state = pipeline.NewMemoryState()
	} else {
		rstore, err = redisstore.New(redisstore.StoreConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[reconciler] WARNING: redis init failed: %v (continuing without redis)", err)
			state = pipeline.NewMemoryState()
		} else {
			state = rstore
			cache = rstore
			health.CheckRedis(ctx, rstore.Client())
			rstore.Breaker().OnStateChange = func(from, to redisstore.State) {
				prom.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.RedisCircuitBreakerTrips.Inc()
				}
			}
		}
	}

	// ---- Periodic liveness checks ----
	if rstore != nil {
		health.StartLivenessChecker(ctx, rstore.Client(), ledger.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, ledger.DB(), 10*time.Second)
	}

	// ---- Stock backend ----
	var backend stock.Backend
	if cfg.StagingMode {
		backend = stock.NewMemoryBackend()
		log.Println("[reconciler] using in-memory stock backend")
	} else {
		backend = stock.NewHTTPBackend(cfg.StockAPIBase, cfg.StockAPIToken)
	}

	// ---- Extractor ----
	var extractor extract.Extractor
	if cfg.StagingMode {
		extractor = extract.NewStaticExtractor()
		log.Println("[reconciler] using static extractor")
	} else {
		extractor = extract.NewHTTPExtractor(cfg.ExtractorURL, cfg.ExtractorAPIKey, cfg.ExtractorModel)
	}

	// ---- Notifier ----
	var notifier notification.Notifier
	switch {
	case cfg.StagingMode, cfg.NotifyChannel == "log":
		notifier = notification.NewLogNotifier()
	case cfg.NotifyChannel == "discord":
		notifier = notification.NewDiscordNotifier(cfg.DiscordWebhookURL, "")
	case cfg.NotifyChannel == "telegram":
		notifier = notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	}
	log.Printf("[reconciler] notifications via %s", cfg.NotifyChannel)

	// ---- Core wiring ----
	policy := retry.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	resolver := resolve.New(backend, cfg.AutoSKUPrefix)
	syncer := pipeline.NewSyncer(resolver, backend, policy, prom)
	validator := validate.New(cfg.ConfidenceThreshold)
	machine := review.New(ledger, syncer, validator, notifier, cache)

	source := inbox.NewMailDirSource(cfg.InboxDir)
	pipe := pipeline.New(source, extractor, machine, state, notifier, prom, cfg.Workers)
	pipe.OnBatchDone = func() {
		health.SetLastBatchAt(time.Now())
		refreshTicketGauge(ctx, ledger, prom)
	}

	// ---- Operator command channel ----
	cmdSrv := opsws.NewServer(cfg.CommandAddr, func(ctx context.Context, cmd command.Command) string {
		prom.CommandsTotal.WithLabelValues(cmdLabel(cmd.Kind)).Inc()
		return machine.HandleCommand(ctx, cmd)
	})
	cmdSrv.Start()

	// ---- Ingestion loop ----
	go pipe.Run(ctx, cfg.PollInterval)
	log.Printf("[reconciler] ingesting from %s every %s", cfg.InboxDir, cfg.PollInterval)

	// ---- Wait for shutdown ----
	sig := <-sigCh
	log.Printf("[reconciler] received %v, shutting down...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	cmdSrv.Stop(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	log.Println("[reconciler] bye")
}

func refreshTicketGauge(ctx context.Context, ledger *sqlitestore.Ledger, prom *metrics.Metrics) {
	tickets, err := ledger.OpenTickets(ctx)
	if err != nil {
		log.Printf("[reconciler] open ticket count failed: %v", err)
		return
	}
	prom.OpenTickets.Set(float64(len(tickets)))
}

func cmdLabel(k command.Kind) string {
	switch k {
	case command.KindResolved:
		return "resolved"
	case command.KindStatus:
		return "status"
	case command.KindPending:
		return "pending"
	default:
		return "unknown"
	}
}
