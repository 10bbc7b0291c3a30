// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package main is the entry point for the Dealhound server.
//
// Dealhound ranks an affiliate deal catalog from live click engagement and
// generates deterministic, non-repeating call-to-action copy per deal. The
// server wires the engine components into a supervised process:
//
//  1. Configuration: layered Koanf v2 (defaults, optional YAML, DEALHOUND_* env)
//  2. Snapshot store: BadgerDB (or in-memory for ephemeral runs)
//  3. Catalog library: JSON deal files reloaded periodically from disk
//  4. Ledger actor: single writer for all engagement state
//  5. Event bus: Watermill, in-process Go channels or NATS JetStream
//  6. Click archive (optional): batched DuckDB appender for offline analysis
//  7. Analytics scheduler: periodic entropy/rising-keyword pulse
//  8. HTTP API: chi router with JWT auth and Casbin RBAC on the admin surface
//
// All long-running components sit under a suture supervision tree with
// separate data, messaging and API layers, so a crash in the click pipeline
// restarts without dropping the HTTP listener.
//
// # Configuration
//
// Everything is tunable via environment variables (DEALHOUND_SERVER_PORT=8480
// maps to server.port) or a config.yaml. Notable settings:
//
//	DEALHOUND_CATALOG_DIR       deal catalog directory (*.json per category)
//	DEALHOUND_STORE_BACKEND     badger | memory
//	DEALHOUND_EVENTS_TRANSPORT  gochannel | nats
//	DEALHOUND_ARCHIVE_ENABLED   enable the DuckDB click archive
//	DEALHOUND_SECURITY_AUTH_MODE jwt | none (jwt requires a 32+ char secret)
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the supervision tree stops
// leaf services first (HTTP drain, ledger flush, archive flush) before the
// process exits.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dealhound/dealhound/internal/analytics"
	"github.com/dealhound/dealhound/internal/api"
	"github.com/dealhound/dealhound/internal/archive"
	"github.com/dealhound/dealhound/internal/auth"
	"github.com/dealhound/dealhound/internal/authz"
	"github.com/dealhound/dealhound/internal/catalog"
	"github.com/dealhound/dealhound/internal/config"
	"github.com/dealhound/dealhound/internal/content"
	"github.com/dealhound/dealhound/internal/events"
	"github.com/dealhound/dealhound/internal/governor"
	"github.com/dealhound/dealhound/internal/ledger"
	"github.com/dealhound/dealhound/internal/logging"
	"github.com/dealhound/dealhound/internal/ranking"
	"github.com/dealhound/dealhound/internal/store"
	"github.com/dealhound/dealhound/internal/stream"
	"github.com/dealhound/dealhound/internal/supervisor"
	"github.com/dealhound/dealhound/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("catalog_dir", cfg.Catalog.Dir).
		Str("store_backend", cfg.Store.Backend).
		Str("events_transport", cfg.Events.Transport).
		Bool("archive_enabled", cfg.Archive.Enabled).
		Str("auth_mode", cfg.Security.AuthMode).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && ctx.Err() == nil {
		logging.Fatal().Err(err).Msg("Server failed")
	}
	logging.Info().Msg("Shutdown complete")
}

// run builds the component graph and serves the supervision tree until ctx
// is cancelled or the tree fails.
func run(ctx context.Context, cfg *config.Config) error {
	// Snapshot store backs both the ledger actor and the analytics
	// scheduler; each uses its own key with optimistic versioning.
	st, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	library := catalog.NewLibrary(cfg.Catalog.Dir, cfg.Catalog.ReloadInterval)
	logging.Info().Int("categories", len(library.All())).Msg("Catalog loaded")

	actor := ledger.NewActor(ledger.ActorConfig{
		Ledger: ledger.Config{
			RecentWindow:        cfg.Ledger.RecentWindow,
			DecayGap:            cfg.Ledger.DecayGap,
			DeltaCap:            cfg.Ledger.DeltaCap,
			ImpressionIncrement: cfg.Governor.ImpressionIncrement,
		},
		FlushInterval: cfg.Ledger.FlushInterval,
		IngestRate:    cfg.Ledger.IngestRate,
		IngestBurst:   cfg.Ledger.IngestBurst,
	}, st)

	wmLogger := events.NewLoggerAdapter(logging.Logger())
	bus, err := events.NewBus(cfg.Events, wmLogger)
	if err != nil {
		return fmt.Errorf("open event bus: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	hub := stream.NewHub()

	// The archive is optional; without it clicks live only in the ledger.
	var archiver events.Archiver
	var appender *archive.Appender
	if cfg.Archive.Enabled {
		clickStore, err := archive.OpenDuckDB(ctx, cfg.Archive.Path)
		if err != nil {
			return fmt.Errorf("open click archive: %w", err)
		}
		defer func() {
			if err := clickStore.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing click archive")
			}
		}()

		appenderCfg := archive.DefaultAppenderConfig()
		appenderCfg.BreakerThreshold = cfg.Archive.BreakerThreshold
		appenderCfg.BreakerCooldown = cfg.Archive.BreakerCooldown
		appender = archive.NewAppender(appenderCfg, clickStore)
		archiver = appender
		logging.Info().Str("path", cfg.Archive.Path).Msg("Click archive enabled")
	}

	routerCfg := events.DefaultRouterConfig()
	routerCfg.Topic = cfg.Events.Topic
	clickRouter, err := events.NewClickRouter(routerCfg, bus.Subscriber, actor, hub, archiver, wmLogger)
	if err != nil {
		return fmt.Errorf("build click router: %w", err)
	}

	generator := content.New(content.Config{
		MaxCTALength:      cfg.Content.MaxCTALength,
		MaxSubtitleLength: cfg.Content.MaxSubtitleLength,
		TemplateAttempts:  cfg.Content.TemplateAttempts,
	})

	scheduler := analytics.NewScheduler(analytics.SchedulerConfig{
		Interval:    cfg.Pulse.Interval,
		LiftEpsilon: cfg.Pulse.LiftEpsilon,
	}, st, library, actor.View, generator, hub.BroadcastPulse)

	gov := governor.New(governor.Config{
		RecencyWindow:  cfg.Governor.RecencyWindow,
		CTRWeight:      cfg.Governor.CTRWeight,
		RecencyWeight:  cfg.Governor.RecencyWeight,
		LearningWeight: cfg.Governor.LearningWeight,
	})

	ranker := ranking.New(ranking.Config{
		CTRWeight:            cfg.Ranking.CTRWeight,
		MomentumWeight:       cfg.Ranking.MomentumWeight,
		SemanticWeight:       cfg.Ranking.SemanticWeight,
		LongTailWeight:       cfg.Ranking.LongTailWeight,
		FreshnessWeight:      cfg.Ranking.FreshnessWeight,
		ExploreScale:         cfg.Ranking.ExploreScale,
		ExploreEpsilon:       cfg.Ranking.ExploreEpsilon,
		FreshnessHorizonDays: cfg.Ranking.FreshnessHorizonDays,
	}, time.Now().UnixNano())

	jwtManager, enforcer, err := buildAuth(cfg.Security)
	if err != nil {
		return fmt.Errorf("configure auth: %w", err)
	}

	handler := api.NewHandler(
		library, actor, gov, ranker, generator, scheduler,
		events.NewClickPublisher(cfg.Events.Topic, bus.Publisher),
		hub,
	)
	httpHandler := api.NewRouter(handler, cfg.Security, jwtManager, enforcer).Setup()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      httpHandler,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(actor)
	tree.AddDataService(library)
	if appender != nil {
		tree.AddDataService(appender)
	}
	tree.AddMessagingService(clickRouter)
	tree.AddMessagingService(hub)
	tree.AddMessagingService(scheduler)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	logging.Info().Str("addr", server.Addr).Msg("Dealhound listening")
	return tree.Serve(ctx)
}

// openStore selects the snapshot store backend.
func openStore(cfg config.StoreConfig) (store.SnapshotStore, error) {
	switch cfg.Backend {
	case "memory":
		logging.Warn().Msg("Using in-memory store; engagement state is lost on restart")
		return store.NewMemoryStore(), nil
	default:
		return store.NewBadgerStore(store.BadgerConfig{Path: cfg.Path})
	}
}

// buildAuth returns the JWT manager and RBAC enforcer, or nils when auth is
// disabled.
func buildAuth(cfg config.SecurityConfig) (*auth.Manager, *authz.Enforcer, error) {
	if cfg.AuthMode != "jwt" {
		logging.Warn().Msg("Admin API authentication disabled (auth_mode=none)")
		return nil, nil, nil
	}
	manager, err := auth.NewManager(cfg.JWTSecret, 0)
	if err != nil {
		return nil, nil, err
	}
	enforcer, err := authz.NewEnforcer()
	if err != nil {
		return nil, nil, err
	}
	return manager, enforcer, nil
}
