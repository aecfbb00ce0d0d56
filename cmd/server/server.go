package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"parley-server/internal/application/audit"
	"parley-server/internal/config"
	"parley-server/internal/domain/conversation"
	"parley-server/internal/guard/dedup"
	"parley-server/internal/guard/ratelimit"
	"parley-server/internal/guard/session"
	"parley-server/internal/guard/ttlcache"
	"parley-server/internal/infrastructure/crontab"
	"parley-server/internal/infrastructure/database"
	_ "parley-server/internal/infrastructure/database/dbschema"
	"parley-server/internal/infrastructure/database/repository/auditrepo"
	"parley-server/internal/infrastructure/database/repository/conversationrepo"
	"parley-server/internal/infrastructure/logger"
	"parley-server/internal/interfaces/httpserver"
	"parley-server/internal/interfaces/httpserver/handlers/chathandler"
	"parley-server/internal/interfaces/httpserver/handlers/conversationhandler"
	"parley-server/internal/interfaces/httpserver/handlers/sessionhandler"
	v1 "parley-server/internal/interfaces/httpserver/routes/v1"
	"parley-server/internal/process"
	"parley-server/internal/relay"
)

const shutdownGrace = 10 * time.Second

func main() {
	log := logger.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	log, err = logger.New(cfg.ServiceName, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log = logger.GetLogger()
		log.Warn().Err(err).Msg("invalid log settings, using defaults")
	}

	db, err := database.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	if cfg.AutoMigrate {
		if err := database.Migration(db); err != nil {
			log.Fatal().Err(err).Msg("migrate database")
		}
	}

	// Guards
	sessionGuard := session.NewGuard(cfg.SessionTimeoutDefault, cfg.SessionTimeoutMin, cfg.SessionTimeoutMax)
	limiterStore := ttlcache.New[[]time.Time]()
	globalLimiter := ratelimit.NewLimiter("global", cfg.RateLimitWindow, cfg.RateLimitMax, limiterStore)
	sendLimiter := ratelimit.NewLimiter("send", cfg.SendRateLimitWindow, cfg.SendRateLimitMax, limiterStore)
	dedupDetector := dedup.NewDetector(cfg.DedupTTL, cfg.DedupMaxEntries)

	// Assistant processes
	spawner := &process.CommandSpawner{
		Command:   cfg.AssistantCommand,
		Args:      cfg.AssistantArgs,
		StopGrace: cfg.ProcessStopGrace,
	}
	pool := process.NewPool(spawner, cfg.ProcessIdleTimeout)

	// Domain and application services
	conversationService := conversation.NewService(conversationrepo.NewRepository(db), pool)
	auditLogger := audit.NewLogger(auditrepo.NewRepository(db))
	streamRelay := relay.New(conversationService, cfg.StreamListenerBuffer)

	// HTTP surface
	conversationRoute := v1.NewConversationRoute(conversationhandler.NewConversationHandler(conversationService))
	chatRoute := v1.NewChatRoute(chathandler.NewChatHandler(conversationService, pool, streamRelay), sendLimiter)
	sessionRoute := v1.NewSessionRoute(sessionhandler.NewSessionHandler(sessionGuard))
	v1Route := v1.NewV1Route(conversationRoute, chatRoute, sessionRoute)

	server := httpserver.NewHttpServer(v1Route, cfg, log, sessionGuard, globalLimiter, dedupDetector, auditLogger)

	// Background sweepers
	sweepers := map[string]crontab.Sweeper{
		"rate_limit": globalLimiter,
		"send_limit": sendLimiter,
		"dedup":      dedupDetector,
		"session":    sessionGuard,
	}
	cron := crontab.NewCrontab(sweepers, pool, cfg.SweepInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiServer := &http.Server{Addr: server.Addr(), Handler: server.Handler()}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: promhttp.Handler(),
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Int("port", cfg.HTTPPort).Msg("chat api listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		log.Info().Int("port", cfg.MetricsPort).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		return cron.Run(egCtx)
	})
	eg.Go(func() error {
		<-egCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown api server")
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown metrics server")
		}

		pool.Shutdown()
		auditLogger.Flush()
		return nil
	})

	if err := eg.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("shutdown complete")
}
