package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httpadapter "attest/internal/adapters/http"
	pg "attest/internal/adapters/postgres"
	"attest/internal/adapters/rediscache"
	"attest/internal/config"
	"attest/internal/lockout"
	"attest/internal/logger"
	"attest/internal/metrics"
	"attest/internal/policy"
	"attest/internal/ports"
	acctsvc "attest/internal/services/accounts"
	evalsvc "attest/internal/services/evaluator"
	"attest/internal/workers/evalrunner"
)

func main() {
	cfg, err := config.Load()

	log, logErr := logger.New(cfg.LogLevel, cfg.LogFormat, "attest")
	if logErr != nil {
		panic(logErr)
	}
	defer log.Sync()

	if err != nil {
		log.Warn("config", zap.Error(err))
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required for Postgres adapters")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pg.Migrate(ctx, cfg.DatabaseURL); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	policies, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		log.Fatal("load policies", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// Wire repositories to services (ports)
	var _ ports.EntityRepository = db
	var _ ports.ItemRepository = db
	var _ ports.LockoutRepository = db
	var _ ports.RunRepository = db

	evalOpts := []evalsvc.Option{evalsvc.WithWorkers(cfg.EvalWorkers)}
	if cfg.RedisAddr != "" {
		cache, err := rediscache.New(ctx, cfg.RedisAddr, os.Getenv("REDIS_PASSWORD"), 0)
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer cache.Close()
		evalOpts = append(evalOpts, evalsvc.WithCache(cache, 15*time.Minute))
		log.Info("snapshot cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	evaluator := evalsvc.New(db, db, policies, log, m, evalOpts...)
	accounts := acctsvc.New(db, lockout.Policy{OverdueDays: cfg.OverdueDays}, log, m)

	srv := httpadapter.New(evaluator, accounts, db, m, log)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Background evaluation workers and schedule
	evalrunner.Run(ctx, db, evaluator, 1, 2*time.Second, log)
	scheduler := evalrunner.NewScheduler(db, log)
	if err := scheduler.Start(ctx, cfg.EvalSchedule); err != nil {
		log.Fatal("scheduler", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- http.ListenAndServe(cfg.ListenAddr, r) }()
	log.Info("listening", zap.String("addr", cfg.ListenAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
		time.Sleep(300 * time.Millisecond)
	case err := <-errCh:
		log.Fatal("server error", zap.Error(err))
	}
}
