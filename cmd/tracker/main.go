// interntrack-tracker
//
// Application tracker API. Serves the same operations over REST (gorilla/mux)
// and gRPC:
//   - create / get / update / delete applications, bulk delete
//   - status changes with an append-only timeline
//   - filtered, sorted, paged listings
//   - per-user analytics (dashboard, status stats, timeline, sources)
//
// Publishes EVENT_CARD_MOVED to Redis on every status change.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/zulfie1003/InternTrack/internal/analytics"
	"github.com/zulfie1003/InternTrack/internal/auth"
	"github.com/zulfie1003/InternTrack/internal/config"
	"github.com/zulfie1003/InternTrack/internal/db"
	"github.com/zulfie1003/InternTrack/internal/db/migrations"
	"github.com/zulfie1003/InternTrack/internal/events"
	"github.com/zulfie1003/InternTrack/internal/grpcserver"
	"github.com/zulfie1003/InternTrack/internal/httpapi"
	"github.com/zulfie1003/InternTrack/internal/kanban"
	"github.com/zulfie1003/InternTrack/internal/query"
	"github.com/zulfie1003/InternTrack/internal/store/postgres"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("[tracker] Config error: %v", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		logrus.Fatalf("[tracker] Logger: %v", err)
	}
	log := logger.WithField("service", "tracker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Info("connecting to PostgreSQL")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns})
	if err != nil {
		log.Fatalf("PostgreSQL: %v", err)
	}
	defer pool.Close()

	sqlDB := db.SQLDB(pool)
	if err := migrations.Apply(ctx, sqlDB); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	_ = sqlDB.Close()
	log.Info("PostgreSQL connected, schema up to date")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, "interntrack-tracker")
	if err != nil {
		log.Fatalf("Redis: %v", err)
	}
	defer rdb.Close()
	log.Info("Redis connected")

	// ── Engines ──────────────────────────────────────────────────────────────
	store := postgres.New(pool)
	svc := kanban.NewService(store, events.NewPublisher(rdb), logger)
	q := query.NewEngine(store)
	stats := analytics.NewEngine(store)

	resolver := auth.NewResolver(cfg.JWTSecret)
	if resolver.HeaderMode() {
		log.Warn("JWT_SECRET not set, trusting x-user-id headers from the gateway")
	}

	limiter := httpapi.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(3 * time.Minute)
			}
		}
	}()

	// ── HTTP server ──────────────────────────────────────────────────────────
	h := httpapi.NewHandler(httpapi.Deps{
		Service:   svc,
		Query:     q,
		Analytics: stats,
		Resolver:  resolver,
		Limiter:   limiter,
		Logger:    logger,
		Version:   version,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      h.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("v%s HTTP listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// ── gRPC server ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatalf("gRPC listen: %v", err)
	}
	gs := grpc.NewServer()
	grpcserver.NewServer(svc, q, stats, resolver, logger).Register(gs)

	go func() {
		log.Infof("gRPC listening on :%s", cfg.GRPCPort)
		if err := gs.Serve(lis); err != nil {
			log.Fatalf("gRPC server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP shutdown error")
	}
	gs.GracefulStop()
	log.Info("stopped")
}
