// interntrack-reminders
//
// Cron worker that sweeps for upcoming interviews and application deadlines
// and publishes EVENT_REMINDER_DUE to Redis, once per record, kind and date.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/zulfie1003/InternTrack/internal/config"
	"github.com/zulfie1003/InternTrack/internal/db"
	"github.com/zulfie1003/InternTrack/internal/events"
	"github.com/zulfie1003/InternTrack/internal/metrics"
	"github.com/zulfie1003/InternTrack/internal/scheduler"
	"github.com/zulfie1003/InternTrack/internal/store/postgres"
)

const version = "1.0.0"

// dedupTTL outlives the largest sensible reminder window.
const dedupTTL = 48 * time.Hour

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("[reminders] Config error: %v", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		logrus.Fatalf("[reminders] Logger: %v", err)
	}
	log := logger.WithField("service", "reminders")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Fatalf("PostgreSQL: %v", err)
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, "interntrack-reminders")
	if err != nil {
		log.Fatalf("Redis: %v", err)
	}
	defer rdb.Close()

	sweeper := scheduler.NewSweeper(
		postgres.New(pool),
		events.NewPublisher(rdb),
		events.NewDeduper(rdb, "reminder:", dedupTTL),
		cfg.ReminderWindow(),
		logger,
	)
	sched := scheduler.New(sweeper, cfg.ReminderSchedule, logger)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("scheduler: %v", err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Service: "reminders", Version: version})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP shutdown error")
	}
	log.Info("stopped")
}
