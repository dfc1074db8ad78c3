package kanban_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulfie1003/InternTrack/internal/application"
	"github.com/zulfie1003/InternTrack/internal/kanban"
	"github.com/zulfie1003/InternTrack/internal/store/memstore"
)

var (
	owner = application.Principal{UserID: "user-1", Role: application.RoleUser}
	other = application.Principal{UserID: "user-2", Role: application.RoleUser}
	admin = application.Principal{UserID: "admin-1", Role: application.RoleAdmin}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []kanban.CardMovedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if channel == kanban.ChannelCardMoved {
		p.events = append(p.events, payload.(kanban.CardMovedEvent))
	}
	return nil
}

type fixture struct {
	svc    *kanban.Service
	store  *memstore.Store
	events *recordingPublisher
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memstore.New(),
		events: &recordingPublisher{},
		now:    time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC),
	}
	seq := 0
	logger, _ := test.NewNullLogger()
	f.svc = kanban.NewService(f.store, f.events, logger,
		kanban.WithClock(func() time.Time { return f.now }),
		kanban.WithIDGenerator(func() string { seq++; return fmt.Sprintf("app-%d", seq) }),
	)
	return f
}

func (f *fixture) create(t *testing.T, p application.Principal, in kanban.CreateInput) *application.Record {
	t.Helper()
	rec, err := f.svc.Create(context.Background(), p, in)
	require.NoError(t, err)
	return rec
}

// ── Create ────────────────────────────────────────────────────────────────

func TestCreate_AppliesDefaults(t *testing.T) {
	f := newFixture(t)

	rec := f.create(t, owner, kanban.CreateInput{
		Company:  "  Acme  ",
		Position: "Backend Intern",
		Tags:     []string{" go ", "go", ""},
		Salary:   &application.Salary{},
	})

	assert.Equal(t, "app-1", rec.ID)
	assert.Equal(t, owner.UserID, rec.OwnerID)
	assert.Equal(t, "Acme", rec.Company)
	assert.Equal(t, application.JobTypeInternship, rec.JobType)
	assert.Equal(t, application.StatusApplied, rec.Status)
	assert.Equal(t, application.PriorityMedium, rec.Priority)
	assert.Equal(t, application.SourceOther, rec.Source)
	assert.Equal(t, "USD", rec.Salary.Currency)
	assert.Equal(t, []string{"go"}, rec.Tags)
	assert.Equal(t, f.now, rec.ApplicationDate)
	assert.Equal(t, f.now, rec.CreatedAt)
	assert.Empty(t, rec.Timeline)
	assert.Equal(t, 1, f.store.Len())
}

func TestCreate_KeepsExplicitApplicationDate(t *testing.T) {
	f := newFixture(t)
	when := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	rec := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev", ApplicationDate: &when})

	assert.Equal(t, when, rec.ApplicationDate)
}

func TestCreate_ValidationError(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), owner, kanban.CreateInput{Company: "Acme"})
	require.Error(t, err)
	assert.True(t, application.IsValidation(err))

	_, err = f.svc.Create(context.Background(), owner, kanban.CreateInput{Company: "Acme", Position: "Dev", Status: "hired"})
	assert.True(t, application.IsValidation(err))

	_, err = f.svc.Create(context.Background(), owner, kanban.CreateInput{Company: "Acme", Position: "Dev", Notes: strings.Repeat("n", 1001)})
	assert.True(t, application.IsValidation(err))

	assert.Equal(t, 0, f.store.Len())
}

func TestCreate_RequiresPrincipal(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), application.Principal{}, kanban.CreateInput{Company: "Acme", Position: "Dev"})
	assert.ErrorIs(t, err, application.ErrUnauthenticated)
}

// ── ChangeStatus ──────────────────────────────────────────────────────────

func TestChangeStatus_AppendsTimeline(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})
	f.now = f.now.Add(time.Hour)

	got, err := f.svc.ChangeStatus(context.Background(), owner, a.ID, "interview", "phone screen")
	require.NoError(t, err)

	assert.Equal(t, application.StatusInterview, got.Status)
	require.Len(t, got.Timeline, 1)
	assert.Equal(t, "Status changed from applied to interview", got.Timeline[0].Event)
	assert.Equal(t, "phone screen", got.Timeline[0].Notes)
	assert.Equal(t, f.now, got.Timeline[0].Date)

	stored, err := f.store.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Timeline, stored.Timeline)
	assert.Equal(t, f.now, stored.UpdatedAt)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, kanban.CardMovedEvent{
		Type:          kanban.ChannelCardMoved,
		ApplicationID: a.ID,
		UserID:        owner.UserID,
		From:          "applied",
		To:            "interview",
		At:            f.now,
	}, f.events.events[0])
}

// Two identical calls give the state of one call and a single entry.
func TestChangeStatus_Idempotent(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	first, err := f.svc.ChangeStatus(context.Background(), owner, a.ID, "offer", "")
	require.NoError(t, err)
	second, err := f.svc.ChangeStatus(context.Background(), owner, a.ID, "offer", "again")
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Len(t, second.Timeline, 1)
	assert.Len(t, f.events.events, 1)
}

func TestChangeStatus_SameStatusNoEntry(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	got, err := f.svc.ChangeStatus(context.Background(), owner, a.ID, "applied", "")
	require.NoError(t, err)
	assert.Empty(t, got.Timeline)
	assert.Empty(t, f.events.events)
}

func TestChangeStatus_InvalidStatus(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	_, err := f.svc.ChangeStatus(context.Background(), owner, a.ID, "HIRED", "")
	require.Error(t, err)
	assert.True(t, application.IsValidation(err))
}

// Foreign and unknown ids look the same to the caller.
func TestChangeStatus_NonOwnerGetsNotFound(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	_, errForeign := f.svc.ChangeStatus(context.Background(), other, a.ID, "offer", "")
	_, errMissing := f.svc.ChangeStatus(context.Background(), other, "nope", "offer", "")

	assert.ErrorIs(t, errForeign, application.ErrNotFound)
	assert.ErrorIs(t, errMissing, application.ErrNotFound)
	assert.Equal(t, errForeign.Error(), errMissing.Error())

	stored, _ := f.store.Get(context.Background(), a.ID)
	assert.Equal(t, application.StatusApplied, stored.Status)
}

func TestChangeStatus_AdminMayMutate(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	got, err := f.svc.ChangeStatus(context.Background(), admin, a.ID, "rejected", "")
	require.NoError(t, err)
	assert.Equal(t, application.StatusRejected, got.Status)
	assert.Equal(t, owner.UserID, got.OwnerID)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, owner.UserID, f.events.events[0].UserID)
}

func TestChangeStatus_PublishFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	logger, hook := test.NewNullLogger()
	f.events.err = errors.New("redis down")
	svc := kanban.NewService(f.store, f.events, logger, kanban.WithClock(func() time.Time { return f.now }))

	a, err := svc.Create(context.Background(), owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})
	require.NoError(t, err)

	got, err := svc.ChangeStatus(context.Background(), owner, a.ID, "interview", "")
	require.NoError(t, err)
	assert.Equal(t, application.StatusInterview, got.Status)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

// ── Update ────────────────────────────────────────────────────────────────

func ptr[T any](v T) *T { return &v }

func TestUpdate_FieldsWithoutStatus(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	got, err := f.svc.Update(context.Background(), owner, a.ID, kanban.Patch{
		Company:  ptr("Acme Corp"),
		Priority: ptr(application.PriorityHigh),
		Tags:     ptr([]string{"remote", " remote "}),
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", got.Company)
	assert.Equal(t, application.PriorityHigh, got.Priority)
	assert.Equal(t, []string{"remote"}, got.Tags)
	assert.Empty(t, got.Timeline)
	assert.Empty(t, f.events.events)
}

func TestUpdate_WithStatusAppendsEntry(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	got, err := f.svc.Update(context.Background(), owner, a.ID, kanban.Patch{
		Status:      ptr(application.StatusOffer),
		StatusNotes: "verbal offer",
		Notes:       ptr("negotiate"),
	})
	require.NoError(t, err)

	assert.Equal(t, application.StatusOffer, got.Status)
	assert.Equal(t, "negotiate", got.Notes)
	require.Len(t, got.Timeline, 1)
	assert.Equal(t, "Status changed from applied to offer", got.Timeline[0].Event)
	assert.Equal(t, "verbal offer", got.Timeline[0].Notes)
	assert.Len(t, f.events.events, 1)
}

func TestUpdate_SameStatusNoEntry(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	got, err := f.svc.Update(context.Background(), owner, a.ID, kanban.Patch{Status: ptr(application.StatusApplied)})
	require.NoError(t, err)
	assert.Empty(t, got.Timeline)
}

func TestUpdate_InvalidFieldLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	_, err := f.svc.Update(context.Background(), owner, a.ID, kanban.Patch{
		Status:  ptr(application.StatusInterview),
		Company: ptr(""),
	})
	require.Error(t, err)
	assert.True(t, application.IsValidation(err))

	stored, _ := f.store.Get(context.Background(), a.ID)
	assert.Equal(t, "Acme", stored.Company)
	assert.Equal(t, application.StatusApplied, stored.Status)
	assert.Empty(t, stored.Timeline)
}

func TestUpdate_SetsAndClearsOptionalDates(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	paris := time.FixedZone("CEST", 2*60*60)
	interview := time.Date(2026, 7, 2, 11, 0, 0, 0, paris)

	got, err := f.svc.Update(context.Background(), owner, a.ID, kanban.Patch{
		InterviewDate: kanban.SetTime(interview),
		Deadline:      kanban.SetTime(interview.Add(48 * time.Hour)),
	})
	require.NoError(t, err)
	require.NotNil(t, got.InterviewDate)
	assert.Equal(t, time.UTC, got.InterviewDate.Location())
	assert.True(t, got.InterviewDate.Equal(interview))
	require.NotNil(t, got.Deadline)

	// Absent fields are left untouched.
	got, err = f.svc.Update(context.Background(), owner, a.ID, kanban.Patch{Notes: ptr("prep")})
	require.NoError(t, err)
	assert.NotNil(t, got.InterviewDate)
	assert.NotNil(t, got.Deadline)

	got, err = f.svc.Update(context.Background(), owner, a.ID, kanban.Patch{Deadline: kanban.ClearTime()})
	require.NoError(t, err)
	assert.Nil(t, got.Deadline)
	assert.NotNil(t, got.InterviewDate)

	stored, err := f.store.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Deadline)
}

func TestPatch_DecodesNullAsClear(t *testing.T) {
	var pt kanban.Patch
	require.NoError(t, json.Unmarshal([]byte(`{"interviewDate":"2026-07-02T09:00:00Z","deadline":null}`), &pt))
	assert.True(t, pt.InterviewDate.Set)
	require.NotNil(t, pt.InterviewDate.Time)
	assert.Equal(t, time.Date(2026, 7, 2, 9, 0, 0, 0, time.UTC), pt.InterviewDate.Time.UTC())
	assert.True(t, pt.Deadline.Set)
	assert.Nil(t, pt.Deadline.Time)

	var empty kanban.Patch
	require.NoError(t, json.Unmarshal([]byte(`{"notes":"x"}`), &empty))
	assert.False(t, empty.InterviewDate.Set)
	assert.False(t, empty.Deadline.Set)

	assert.Error(t, json.Unmarshal([]byte(`{"deadline":"tomorrow"}`), &pt))
}

func TestCreate_NormalizesOptionalDatesToUTC(t *testing.T) {
	f := newFixture(t)
	d := time.Date(2026, 7, 10, 18, 0, 0, 0, time.FixedZone("EST", -5*60*60))
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev", Deadline: &d, InterviewDate: &d})

	require.NotNil(t, a.Deadline)
	assert.Equal(t, time.UTC, a.Deadline.Location())
	assert.Equal(t, time.UTC, a.InterviewDate.Location())
	assert.True(t, a.Deadline.Equal(d))
}

func TestUpdate_NonOwner(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	_, err := f.svc.Update(context.Background(), other, a.ID, kanban.Patch{Company: ptr("Evil")})
	assert.ErrorIs(t, err, application.ErrNotFound)
}

// ── Get / Delete / Attachments ────────────────────────────────────────────

func TestGet(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	got, err := f.svc.Get(context.Background(), owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = f.svc.Get(context.Background(), other, a.ID)
	assert.ErrorIs(t, err, application.ErrNotFound)

	_, err = f.svc.Get(context.Background(), admin, a.ID)
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	assert.ErrorIs(t, f.svc.Delete(context.Background(), other, a.ID), application.ErrNotFound)
	require.NoError(t, f.svc.Delete(context.Background(), owner, a.ID))
	assert.Equal(t, 0, f.store.Len())
	assert.ErrorIs(t, f.svc.Delete(context.Background(), owner, a.ID), application.ErrNotFound)
}

func TestAddAttachment(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	got, err := f.svc.AddAttachment(context.Background(), owner, a.ID, "cv.pdf", "https://files.example/cv.pdf")
	require.NoError(t, err)
	got, err = f.svc.AddAttachment(context.Background(), owner, a.ID, "letter.pdf", "https://files.example/letter.pdf")
	require.NoError(t, err)

	require.Len(t, got.Attachments, 2)
	assert.Equal(t, "cv.pdf", got.Attachments[0].Name)
	assert.Equal(t, f.now, got.Attachments[1].UploadDate)

	_, err = f.svc.AddAttachment(context.Background(), owner, a.ID, "", "x")
	assert.True(t, application.IsValidation(err))
}

// ── BulkDelete ────────────────────────────────────────────────────────────

func TestBulkDelete_OnlyOwnRecords(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})
	b := f.create(t, other, kanban.CreateInput{Company: "Beta", Position: "Dev"})

	n, err := f.svc.BulkDelete(context.Background(), owner, []string{a.ID, "nonexistent-id", b.ID})
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	_, err = f.store.Get(context.Background(), a.ID)
	assert.ErrorIs(t, err, application.ErrNotFound)
	_, err = f.store.Get(context.Background(), b.ID)
	assert.NoError(t, err)
}

func TestBulkDelete_DuplicateIdsCountOnce(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	n, err := f.svc.BulkDelete(context.Background(), owner, []string{a.ID, a.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBulkDelete_AdminHasNoOverride(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, owner, kanban.CreateInput{Company: "Acme", Position: "Dev"})

	n, err := f.svc.BulkDelete(context.Background(), admin, []string{a.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, f.store.Len())
}

func TestBulkDelete_EmptyIDs(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.BulkDelete(context.Background(), owner, nil)
	assert.True(t, application.IsValidation(err))
	_, err = f.svc.BulkDelete(context.Background(), owner, []string{" ", ""})
	assert.True(t, application.IsValidation(err))
}
