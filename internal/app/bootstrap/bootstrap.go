package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	voteadmission "crowdstage/contexts/trust-safety/vote-admission"
	"crowdstage/contexts/trust-safety/vote-admission/adapters/lookup"
	postgresadapter "crowdstage/contexts/trust-safety/vote-admission/adapters/postgres"
	"crowdstage/contexts/trust-safety/vote-admission/application/guard"
	"crowdstage/contexts/trust-safety/vote-admission/application/workers"
	"crowdstage/contexts/trust-safety/vote-admission/ports"
	"crowdstage/internal/platform/config"
	"crowdstage/internal/platform/db"
	"crowdstage/internal/platform/httpserver"
	"crowdstage/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	outboxRelay  workers.OutboxRelay
	relayEnabled bool
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN, cfg.DBPingTimeout)
	if err != nil {
		return nil, err
	}
	if err := postgresadapter.Migrate(pg.DB); err != nil {
		_ = pg.Close()
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	module := voteadmission.NewModule(voteadmission.Dependencies{
		Ledger:   repo,
		Catalog:  repo,
		Denylist: buildDenylist(cfg, logger),
		Geo:      buildGeoResolver(cfg, logger),
		Outbox:   repo,
		Clock:    postgresadapter.SystemClock{},
		IDGen:    postgresadapter.UUIDGenerator{},
		GuardConfig: guard.Config{
			VelocityThreshold: cfg.GuardVelocityThreshold,
			VelocityWindow:    cfg.GuardVelocityWindow,
			MinBotScore:       cfg.GuardMinBotScore,
			FlagThreshold:     cfg.GuardFlagThreshold,
			SharingWindow:     cfg.GuardSharingWindow,
		},
		Logger: logger,
	})

	server := httpserver.New(module, httpserver.NewMetrics(), logger, normalizeAddr(cfg.HTTPPort), cfg.EnableSwagger)
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN, cfg.DBPingTimeout)
	if err != nil {
		return nil, err
	}
	if err := postgresadapter.Migrate(pg.DB); err != nil {
		_ = pg.Close()
		return nil, err
	}

	bus := messaging.NewBus(logger)
	repo := postgresadapter.NewRepository(pg.DB, logger)
	return &WorkerApp{
		postgres: pg,
		outboxRelay: workers.OutboxRelay{
			Outbox:    repo,
			Publisher: bus,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		relayEnabled: cfg.EnableOutboxRelay,
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

func buildDenylist(cfg config.Config, logger *slog.Logger) ports.DomainDenylist {
	if cfg.DenylistBaseURL == "" {
		return nil
	}
	checker := lookup.NewHTTPDenylist(cfg.DenylistBaseURL, cfg.LookupTimeout, logger)
	if cfg.DenylistCacheSizeMB <= 0 {
		return checker
	}
	return lookup.NewCachedDenylist(checker, cfg.DenylistCacheSizeMB, cfg.DenylistCacheTTL, logger)
}

func buildGeoResolver(cfg config.Config, logger *slog.Logger) ports.GeoResolver {
	if cfg.GeoBaseURL == "" {
		return nil
	}
	return lookup.NewHTTPGeoResolver(cfg.GeoBaseURL, cfg.LookupTimeout, logger)
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if !w.relayEnabled {
		w.logger.Info("outbox relay disabled, worker idle",
			"event", "bootstrap_worker_idle",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.outboxRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
