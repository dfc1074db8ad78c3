package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulfie1003/InternTrack/internal/application"
	"github.com/zulfie1003/InternTrack/internal/metrics"
	"github.com/zulfie1003/InternTrack/internal/store/memstore"
)

var now = time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)

type fakePublisher struct {
	mu     sync.Mutex
	events []ReminderEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if channel != ChannelReminderDue {
		return errors.New("unexpected channel " + channel)
	}
	p.events = append(p.events, payload.(ReminderEvent))
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// memDedup is an in-process stand-in for the Redis SETNX deduper.
type memDedup struct {
	seen map[string]bool
	err  error
}

func (d *memDedup) First(_ context.Context, key string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *memDedup) Forget(_ context.Context, key string) error {
	delete(d.seen, key)
	return nil
}

type failingSource struct{}

func (failingSource) ListUpcoming(context.Context, time.Time, time.Time) ([]application.Record, error) {
	return nil, errors.New("db down")
}

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func seed(t *testing.T, recs ...application.Record) *memstore.Store {
	t.Helper()
	s := memstore.New()
	for i := range recs {
		rec := recs[i]
		require.NoError(t, s.Insert(context.Background(), &rec))
	}
	return s
}

func newSweeper(src UpcomingSource, pub Publisher, dedup Deduper) (*Sweeper, *test.Hook) {
	logger, hook := test.NewNullLogger()
	sw := NewSweeper(src, pub, dedup, 24*time.Hour, logger).WithClock(func() time.Time { return now })
	return sw, hook
}

func TestSweepPublishesDueReminders(t *testing.T) {
	store := seed(t,
		application.Record{ID: "a", OwnerID: "u1", Company: "Acme", Position: "Dev", Status: application.StatusInterview, InterviewDate: at(2 * time.Hour)},
		application.Record{ID: "b", OwnerID: "u1", Company: "Beta", Position: "Dev", Status: application.StatusApplied, Deadline: at(23 * time.Hour), InterviewDate: at(30 * time.Hour)},
		application.Record{ID: "c", OwnerID: "u2", Company: "Gamma", Position: "Dev", Status: application.StatusRejected, InterviewDate: at(time.Hour)},
		application.Record{ID: "d", OwnerID: "u2", Company: "Delta", Position: "Dev", Status: application.StatusApplied, Deadline: at(-time.Hour)},
	)
	pub := &fakePublisher{}
	sw, _ := newSweeper(store, pub, nil)

	before := testutil.ToFloat64(metrics.RemindersSent.WithLabelValues(KindDeadline))
	sent, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	require.Len(t, pub.events, 2)

	assert.Equal(t, ReminderEvent{
		Type:          ChannelReminderDue,
		Kind:          KindInterview,
		ApplicationID: "a",
		UserID:        "u1",
		Company:       "Acme",
		Position:      "Dev",
		Status:        "interview",
		Due:           now.Add(2 * time.Hour),
	}, pub.events[0])
	assert.Equal(t, "b", pub.events[1].ApplicationID)
	assert.Equal(t, KindDeadline, pub.events[1].Kind)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RemindersSent.WithLabelValues(KindDeadline)))
}

func TestSweepBothKindsOnOneRecord(t *testing.T) {
	store := seed(t, application.Record{
		ID: "a", OwnerID: "u1", Status: application.StatusOffer,
		InterviewDate: at(time.Hour), Deadline: at(5 * time.Hour),
	})
	pub := &fakePublisher{}
	sw, _ := newSweeper(store, pub, nil)

	sent, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, KindInterview, pub.events[0].Kind)
	assert.Equal(t, KindDeadline, pub.events[1].Kind)
}

func TestSweepDeduplicates(t *testing.T) {
	store := seed(t, application.Record{ID: "a", OwnerID: "u1", Status: application.StatusApplied, Deadline: at(time.Hour)})
	pub := &fakePublisher{}
	dedup := &memDedup{seen: map[string]bool{}}
	sw, _ := newSweeper(store, pub, dedup)

	sent, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 1, pub.count())
	assert.True(t, dedup.seen["a:deadline:2026-06-30T13:00:00Z"])
}

func TestSweepFailuresAreSkipped(t *testing.T) {
	store := seed(t, application.Record{ID: "a", OwnerID: "u1", Status: application.StatusApplied, Deadline: at(time.Hour)})

	t.Run("dedup error", func(t *testing.T) {
		pub := &fakePublisher{}
		sw, hook := newSweeper(store, pub, &memDedup{err: errors.New("redis down")})
		sent, err := sw.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, sent)
		assert.Equal(t, 0, pub.count())
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	})

	t.Run("publish error", func(t *testing.T) {
		sw, hook := newSweeper(store, &fakePublisher{err: errors.New("redis down")}, nil)
		sent, err := sw.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, sent)
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, "publish EVENT_REMINDER_DUE failed", hook.LastEntry().Message)
	})
}

func TestSweepRetriesAfterPublishFailure(t *testing.T) {
	store := seed(t, application.Record{ID: "a", OwnerID: "u1", Status: application.StatusApplied, Deadline: at(time.Hour)})
	pub := &fakePublisher{err: errors.New("redis down")}
	dedup := &memDedup{seen: map[string]bool{}}
	sw, _ := newSweeper(store, pub, dedup)

	sent, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Empty(t, dedup.seen)

	pub.err = nil
	sent, err = sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 1, pub.count())
}

func TestSweepSourceError(t *testing.T) {
	sw, _ := newSweeper(failingSource{}, &fakePublisher{}, nil)
	_, err := sw.Sweep(context.Background())
	assert.ErrorContains(t, err, "list upcoming: db down")
}

func TestSchedulerRunsImmediately(t *testing.T) {
	store := seed(t, application.Record{ID: "a", OwnerID: "u1", Status: application.StatusApplied, Deadline: at(time.Hour)})
	pub := &fakePublisher{}
	sw, _ := newSweeper(store, pub, &memDedup{seen: map[string]bool{}})
	logger, _ := test.NewNullLogger()

	s := New(sw, "@every 1h", logger)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	sw, _ := newSweeper(memstore.New(), &fakePublisher{}, nil)
	logger, _ := test.NewNullLogger()

	err := New(sw, "not a schedule", logger).Start(context.Background())
	assert.ErrorContains(t, err, `cron.AddFunc "not a schedule"`)
}
