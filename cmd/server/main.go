// Command server runs the trustgate HTTP service: webhook ingress
// verification, bearer-token authentication, policy decisions, and the audit
// pipeline behind them.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"trustgate/internal/audit"
	"trustgate/internal/ingress"
	ingresshandler "trustgate/internal/ingress/handler"
	"trustgate/internal/ingress/idempotency"
	"trustgate/internal/platform/config"
	"trustgate/internal/platform/httpserver"
	"trustgate/internal/platform/logger"
	platformredis "trustgate/internal/platform/redis"
	"trustgate/internal/policy"
	policyhandler "trustgate/internal/policy/handler"
	"trustgate/internal/token"
	httptransport "trustgate/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	if cfg.Auth.Issuer == "" || cfg.Auth.Audience == "" {
		return errors.New("TRUSTGATE_ISSUER and TRUSTGATE_AUDIENCE are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audit pipeline: request handlers enqueue, one worker persists.
	auditor := audit.NewWriter(cfg.Audit.BufferSize, log)
	store, closeStore, err := newAuditStore(cfg.Audit)
	if err != nil {
		return fmt.Errorf("audit sink: %w", err)
	}
	defer closeStore()
	worker := audit.NewWorker(store, auditor.Inbox(), log)

	// Token verification.
	keys := token.NewKeySet(cfg.Auth.Issuer, cfg.Auth.JWKSTTL, &http.Client{Timeout: cfg.Auth.HTTPTimeout})
	verifier := token.NewVerifier(cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.ClockTolerance, keys, log)

	// Policy engine.
	engine := policy.NewEngine(policy.NewFileStore(cfg.Policy.RulesPath), auditor, policy.NewMetrics(), log)
	if err := engine.Initialize(ctx); err != nil {
		// Tolerated at boot: the engine retries on first use and /readyz
		// stays red until rules load.
		log.Warn("policy rules not loaded yet", "error", err, "path", cfg.Policy.RulesPath)
	}

	// Ingress: optional shared dedup store, per-instance fallback otherwise.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	var dedupe idempotency.Store
	if redisClient != nil {
		defer redisClient.Close()
		dedupe = idempotency.NewRedisStore(redisClient.Client, cfg.Webhooks.ReplayWindow)
		log.Info("using redis idempotency store")
	} else {
		dedupe = idempotency.NewInMemoryStore(cfg.Webhooks.ReplayWindow)
		log.Info("using in-memory idempotency store")
	}

	ingressHandler := ingresshandler.New(
		ingress.NewVerifier(cfg.Webhooks),
		dedupe,
		ingress.LogPublisher{Logger: log},
		auditor,
		ingress.NewMetrics(),
		log,
	)

	checks := []httptransport.ReadinessCheck{
		{Name: "policy", Probe: func(context.Context) error {
			if !engine.Ready() {
				return errors.New("policy rules not loaded")
			}
			return nil
		}},
	}
	if redisClient != nil {
		checks = append(checks, httptransport.ReadinessCheck{Name: "redis", Probe: redisClient.Health})
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		Verifier:     verifier,
		Auditor:      auditor,
		Ingress:      ingressHandler,
		Policy:       policyhandler.New(engine, log),
		PolicyAdmin:  policyhandler.NewAdmin(engine, auditor, log),
		Health:       httptransport.NewHealth(log, checks...),
		AdminKeyHash: cfg.Admin.KeyHash,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("starting trustgate", "addr", cfg.Addr, "audit_sink", cfg.Audit.Sink)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("trustgate stopped")
	return nil
}

// newAuditStore selects the configured sink. The returned close function is
// safe to call once regardless of sink type.
func newAuditStore(cfg config.AuditConfig) (audit.Store, func(), error) {
	switch cfg.Sink {
	case "file", "":
		store, err := audit.NewFileStore(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return audit.NewPostgresStore(db), func() { _ = db.Close() }, nil
	case "kafka":
		store, err := audit.NewKafkaStore(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit sink %q", cfg.Sink)
	}
}
