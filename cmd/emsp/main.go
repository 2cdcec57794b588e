package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emsp/internal/authz"
	"emsp/internal/config"
	"emsp/internal/correlate"
	"emsp/internal/db"
	"emsp/internal/dispatch"
	"emsp/internal/httpapi"
	"emsp/internal/logging"
	"emsp/internal/metrics"
	"emsp/internal/models"
	"emsp/internal/outbound"
	"emsp/internal/repo"
	"emsp/internal/sweeper"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

type correlationStore interface {
	correlate.Store
	correlate.Registrar
	Expire(ctx context.Context, cutoff time.Time) (int, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	d, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer d.Close()
	if cfg.MigrateOnStart {
		if err := d.Migrate(logger); err != nil {
			logger.Fatal("migrate database", zap.Error(err))
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tokens := repo.NewTokensRepo(d.Pool)
	locations := repo.NewLocationsRepo(d.Pool)
	parties := repo.NewRemotePartiesRepo(d.Pool)
	journal := repo.NewCallbackJournalRepo(d.Pool)

	var store correlationStore
	switch cfg.CorrelationBackend {
	case config.BackendMemory:
		store = correlate.NewMemoryStore()
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("connect redis", zap.Error(err))
		}
		defer rdb.Close()
		store = correlate.NewRedisStore(rdb, logger, cfg.CommandTTL)
	default:
		store = repo.NewPendingCommandsRepo(d.Pool)
	}

	self := models.NewPartyScope(cfg.CountryCode, cfg.PartyId)
	engineOpts := []authz.Option{authz.WithLogger(logger.Named("authz")), authz.WithMetrics(m)}
	if cfg.AuthorizationHookURL != "" {
		engineOpts = append(engineOpts, authz.WithHook(
			authz.NewHTTPHook(cfg.AuthorizationHookURL, cfg.AuthorizationHookToken, cfg.AuthorizationHookTimeout)))
	}
	engine := authz.NewEngine(tokens, locations, self, engineOpts...)

	correlator := correlate.New(store,
		correlate.WithJournal(journal),
		correlate.WithLogger(logger.Named("correlate")),
		correlate.WithMetrics(m))

	cache := outbound.NewCache(parties,
		outbound.WithHTTPClient(&http.Client{Timeout: cfg.OutboundTimeout}),
		outbound.WithLogger(logger.Named("outbound")),
		outbound.WithMetrics(m))
	dispatcher := dispatch.New(store, cache, cfg.PublicBaseURL, logger.Named("dispatch"))

	sw, err := sweeper.New(store, cache, sweeper.Config{
		Schedule:   cfg.SweepSchedule,
		CommandTTL: cfg.CommandTTL,
		ClientTTL:  cfg.ClientTTL,
	}, m, logger.Named("sweeper"))
	if err != nil {
		logger.Fatal("configure sweeper", zap.Error(err))
	}
	sw.Start(context.Background())
	defer sw.Stop()

	srv := httpapi.NewServer(cfg, logger.Named("http"), engine, correlator, dispatcher, parties, reg)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("EMSP listening",
			zap.String("addr", cfg.ListenAddr),
			zap.Stringer("party", self),
			zap.String("correlation_backend", cfg.CorrelationBackend))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = httpServer.Shutdown(ctx2)
	logger.Info("EMSP shutdown complete")
}
