// Package scheduler wires up the cron job that periodically sweeps for
// upcoming interviews and deadlines and publishes reminder events.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/zulfie1003/InternTrack/internal/application"
	"github.com/zulfie1003/InternTrack/internal/metrics"
)

// ChannelReminderDue is the pub/sub channel carrying reminders.
const ChannelReminderDue = "EVENT_REMINDER_DUE"

const (
	KindInterview = "interview"
	KindDeadline  = "deadline"
)

// ReminderEvent is published once per record, kind and due date.
type ReminderEvent struct {
	Type          string    `json:"type"`
	Kind          string    `json:"kind"`
	ApplicationID string    `json:"applicationId"`
	UserID        string    `json:"userId"`
	Company       string    `json:"company"`
	Position      string    `json:"position"`
	Status        string    `json:"status"`
	Due           time.Time `json:"due"`
}

// UpcomingSource finds records with a date inside a window.
type UpcomingSource interface {
	ListUpcoming(ctx context.Context, from, to time.Time) ([]application.Record, error)
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Deduper reports whether a key is new. Forget releases a claimed key.
type Deduper interface {
	First(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// ─── Sweeper ─────────────────────────────────────────────────────────────────

// Sweeper runs one reminder pass.
type Sweeper struct {
	src    UpcomingSource
	events Publisher
	dedup  Deduper
	window time.Duration
	log    *logrus.Entry
	now    func() time.Time
}

// NewSweeper returns a Sweeper looking window ahead. dedup may be nil, in
// which case every sweep re-sends reminders.
func NewSweeper(src UpcomingSource, events Publisher, dedup Deduper, window time.Duration, log *logrus.Logger) *Sweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweeper{
		src:    src,
		events: events,
		dedup:  dedup,
		window: window,
		log:    log.WithField("component", "scheduler"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces time.Now.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep publishes a reminder for every open record whose interview date or
// deadline falls in [now, now+window). It returns how many were sent.
// A failure on one reminder is logged and the sweep continues.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	from := s.now()
	to := from.Add(s.window)

	recs, err := s.src.ListUpcoming(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("list upcoming: %w", err)
	}

	sent := 0
	for i := range recs {
		rec := &recs[i]
		if !rec.Status.IsOpen() {
			continue
		}
		for _, due := range []struct {
			kind string
			at   *time.Time
		}{
			{KindInterview, rec.InterviewDate},
			{KindDeadline, rec.Deadline},
		} {
			if due.at == nil || due.at.Before(from) || !due.at.Before(to) {
				continue
			}
			if s.remind(ctx, rec, due.kind, due.at.UTC()) {
				sent++
			}
		}
	}
	return sent, nil
}

func (s *Sweeper) remind(ctx context.Context, rec *application.Record, kind string, due time.Time) bool {
	log := s.log.WithFields(logrus.Fields{"applicationId": rec.ID, "kind": kind})

	key := fmt.Sprintf("%s:%s:%s", rec.ID, kind, due.Format(time.RFC3339))
	if s.dedup != nil {
		first, err := s.dedup.First(ctx, key)
		if err != nil {
			log.WithError(err).Warn("reminder dedup failed")
			return false
		}
		if !first {
			return false
		}
	}

	event := ReminderEvent{
		Type:          ChannelReminderDue,
		Kind:          kind,
		ApplicationID: rec.ID,
		UserID:        rec.OwnerID,
		Company:       rec.Company,
		Position:      rec.Position,
		Status:        string(rec.Status),
		Due:           due,
	}
	if err := s.events.Publish(ctx, ChannelReminderDue, event); err != nil {
		log.WithError(err).Warn("publish EVENT_REMINDER_DUE failed")
		// Release the claim so the next sweep retries.
		if s.dedup != nil {
			if ferr := s.dedup.Forget(ctx, key); ferr != nil {
				log.WithError(ferr).Warn("reminder dedup release failed")
			}
		}
		return false
	}
	metrics.RemindersSent.WithLabelValues(kind).Inc()
	return true
}

// ─── Scheduler ───────────────────────────────────────────────────────────────

// Scheduler wraps robfig/cron and runs the sweep on a schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	spec    string // cron spec, e.g. "@every 1h"
	log     *logrus.Entry
}

// New creates a Scheduler that sweeps on spec.
func New(sweeper *Sweeper, spec string, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := log.WithField("component", "scheduler")
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cron.PrintfLogger(entry)),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(entry))),
		),
		sweeper: sweeper,
		spec:    spec,
		log:     entry,
	}
}

// Start registers the job and starts the scheduler. Also runs one sweep
// immediately so reminders do not wait for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.log.WithField("spec", s.spec).Info("cron started")

	go s.run(ctx)
	return nil
}

// Stop shuts down the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("cron stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	start := time.Now()
	sent, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.log.WithError(err).Error("reminder sweep failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"sent":     sent,
		"duration": time.Since(start).String(),
	}).Info("reminder sweep complete")
}
