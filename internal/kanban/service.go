package kanban

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zulfie1003/InternTrack/internal/application"
	"github.com/zulfie1003/InternTrack/internal/metrics"
)

// ChannelCardMoved is the pub/sub channel carrying status changes.
const ChannelCardMoved = "EVENT_CARD_MOVED"

// Publisher delivers domain events. Delivery failures never fail the
// mutation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// CardMovedEvent is published on ChannelCardMoved after a status change.
type CardMovedEvent struct {
	Type          string    `json:"type"`
	ApplicationID string    `json:"applicationId"`
	UserID        string    `json:"userId"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	At            time.Time `json:"at"`
}

// ─── Service ─────────────────────────────────────────────────────────────────

// Service encapsulates all lifecycle logic for tracked applications.
// It has no dependency on net/http and is shared by the REST and gRPC layers.
type Service struct {
	store  application.Store
	events Publisher
	log    *logrus.Entry
	now    func() time.Time
	newID  func() string
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the UUID generator for new records.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService returns a configured Service. events may be nil.
func NewService(store application.Store, events Publisher, log *logrus.Logger, opts ...Option) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Service{
		store:  store,
		events: events,
		log:    log.WithField("component", "kanban"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ─── Inputs ───────────────────────────────────────────────────────────────────

// CreateInput carries the caller-supplied fields of a new record. Empty enum
// fields take their defaults.
type CreateInput struct {
	Company         string                     `json:"company"`
	Position        string                     `json:"position"`
	Location        string                     `json:"location"`
	JobType         application.JobType        `json:"jobType"`
	Status          application.Status         `json:"status"`
	Priority        application.Priority       `json:"priority"`
	Source          application.Source         `json:"source"`
	Salary          *application.Salary        `json:"salary"`
	ContactPerson   *application.ContactPerson `json:"contactPerson"`
	ApplicationDate *time.Time                 `json:"applicationDate"`
	InterviewDate   *time.Time                 `json:"interviewDate"`
	Deadline        *time.Time                 `json:"deadline"`
	JobURL          string                     `json:"jobUrl"`
	Notes           string                     `json:"notes"`
	Tags            []string                   `json:"tags"`
}

// Patch is a partial update. Nil fields are left untouched. Identity, owner,
// timeline and attachments are not patchable. InterviewDate and Deadline are
// cleared by an explicit JSON null.
type Patch struct {
	Company         *string                    `json:"company"`
	Position        *string                    `json:"position"`
	Location        *string                    `json:"location"`
	JobType         *application.JobType       `json:"jobType"`
	Status          *application.Status        `json:"status"`
	StatusNotes     string                     `json:"statusNotes"`
	Priority        *application.Priority      `json:"priority"`
	Source          *application.Source        `json:"source"`
	Salary          *application.Salary        `json:"salary"`
	ContactPerson   *application.ContactPerson `json:"contactPerson"`
	ApplicationDate *time.Time                 `json:"applicationDate"`
	InterviewDate   OptionalTime               `json:"interviewDate"`
	Deadline        OptionalTime               `json:"deadline"`
	JobURL          *string                    `json:"jobUrl"`
	Notes           *string                    `json:"notes"`
	Tags            *[]string                  `json:"tags"`
}

// OptionalTime is a patchable date: Set reports that the field was present,
// and a nil Time with Set means an explicit null.
type OptionalTime struct {
	Set  bool
	Time *time.Time
}

// SetTime returns an OptionalTime holding t.
func SetTime(t time.Time) OptionalTime { return OptionalTime{Set: true, Time: &t} }

// ClearTime returns an OptionalTime that clears the field.
func ClearTime() OptionalTime { return OptionalTime{Set: true} }

// UnmarshalJSON is only called when the key is present, null included.
func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Time = nil
	if string(data) == "null" {
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Time = &t
	return nil
}

// ─── Business logic ───────────────────────────────────────────────────────────

// Create validates in and stores a new record owned by the caller.
func (s *Service) Create(ctx context.Context, p application.Principal, in CreateInput) (*application.Record, error) {
	if p.UserID == "" {
		return nil, application.ErrUnauthenticated
	}

	now := s.now()
	rec := &application.Record{
		ID:              s.newID(),
		OwnerID:         p.UserID,
		Company:         strings.TrimSpace(in.Company),
		Position:        strings.TrimSpace(in.Position),
		Location:        strings.TrimSpace(in.Location),
		JobType:         orDefault(in.JobType, application.DefaultJobType),
		Status:          orDefault(in.Status, application.DefaultStatus),
		Priority:        orDefault(in.Priority, application.DefaultPriority),
		Source:          orDefault(in.Source, application.DefaultSource),
		Salary:          normalizeSalary(in.Salary),
		ContactPerson:   in.ContactPerson,
		ApplicationDate: now,
		InterviewDate:   utcPtr(in.InterviewDate),
		Deadline:        utcPtr(in.Deadline),
		JobURL:          strings.TrimSpace(in.JobURL),
		Notes:           in.Notes,
		Tags:            application.NormalizeTags(in.Tags),
		Attachments:     []application.Attachment{},
		Timeline:        []application.TimelineEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.ApplicationDate != nil {
		rec.ApplicationDate = in.ApplicationDate.UTC()
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("createApplication: %w", err)
	}
	return rec, nil
}

// Get returns a single record, validating ownership.
func (s *Service) Get(ctx context.Context, p application.Principal, id string) (*application.Record, error) {
	return s.load(ctx, p, id)
}

// ChangeStatus moves a record to a new status.
// Returns a *ValidationError for an unknown status and ErrNotFound when the
// record does not exist or the caller may not touch it. Moving to the current
// status returns the record unchanged.
func (s *Service) ChangeStatus(ctx context.Context, p application.Principal, id, newStatus, notes string) (*application.Record, error) {
	status, err := application.ParseStatus(newStatus)
	if err != nil {
		return nil, &application.ValidationError{Msg: err.Error()}
	}

	rec, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}

	from := rec.Status
	if !IsTransitionAllowed(from, status) {
		return nil, &application.ValidationError{
			Msg: fmt.Sprintf("transition %s → %s is not allowed", from, status),
		}
	}

	now := s.now()
	entry := ApplyStatus(rec, status, notes, now)
	if entry == nil {
		return rec, nil
	}
	rec.UpdatedAt = now

	if err := s.store.Update(ctx, rec, []application.TimelineEntry{*entry}); err != nil {
		return nil, fmt.Errorf("changeStatus update: %w", err)
	}

	s.statusChanged(ctx, p, rec, from)
	return rec, nil
}

// Update applies a partial update. A status change inside the patch is
// recorded on the timeline exactly as ChangeStatus would.
func (s *Service) Update(ctx context.Context, p application.Principal, id string, patch Patch) (*application.Record, error) {
	rec, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	from := rec.Status
	var appended []application.TimelineEntry

	if patch.Status != nil {
		status, err := application.ParseStatus(string(*patch.Status))
		if err != nil {
			return nil, &application.ValidationError{Msg: err.Error()}
		}
		if entry := ApplyStatus(rec, status, patch.StatusNotes, now); entry != nil {
			appended = append(appended, *entry)
		}
	}

	patch.applyTo(rec)
	rec.UpdatedAt = now

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, rec, appended); err != nil {
		return nil, fmt.Errorf("updateApplication: %w", err)
	}

	if len(appended) > 0 {
		s.statusChanged(ctx, p, rec, from)
	}
	return rec, nil
}

// AddAttachment appends a document reference to a record.
func (s *Service) AddAttachment(ctx context.Context, p application.Principal, id, name, url string) (*application.Record, error) {
	name, url = strings.TrimSpace(name), strings.TrimSpace(url)
	if name == "" || url == "" {
		return nil, &application.ValidationError{Msg: "attachment name and url are required"}
	}

	rec, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec.Attachments = append(rec.Attachments, application.Attachment{Name: name, URL: url, UploadDate: now})
	rec.UpdatedAt = now

	if err := s.store.Update(ctx, rec, nil); err != nil {
		return nil, fmt.Errorf("addAttachment: %w", err)
	}
	return rec, nil
}

// Delete removes a single record.
func (s *Service) Delete(ctx context.Context, p application.Principal, id string) error {
	if _, err := s.load(ctx, p, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, application.ErrNotFound) {
			return application.ErrNotFound
		}
		return fmt.Errorf("deleteApplication: %w", err)
	}
	metrics.ApplicationsDeleted.Inc()
	return nil
}

// BulkDelete removes the caller's own records among ids and returns how many
// were deleted. Unknown ids and ids owned by someone else are skipped
// silently; admins get no override here.
func (s *Service) BulkDelete(ctx context.Context, p application.Principal, ids []string) (int, error) {
	if p.UserID == "" {
		return 0, application.ErrUnauthenticated
	}

	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return 0, &application.ValidationError{Msg: "please provide an array of application ids"}
	}

	n, err := s.store.DeleteMany(ctx, p.UserID, unique)
	if err != nil {
		return 0, fmt.Errorf("bulkDelete: %w", err)
	}
	metrics.ApplicationsDeleted.Add(float64(n))
	return n, nil
}

// load fetches a record and enforces access. A record the caller may not
// access is reported exactly like a missing one.
func (s *Service) load(ctx context.Context, p application.Principal, id string) (*application.Record, error) {
	if p.UserID == "" {
		return nil, application.ErrUnauthenticated
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			return nil, application.ErrNotFound
		}
		return nil, fmt.Errorf("load application %s: %w", id, err)
	}
	if !p.CanAccess(rec) {
		return nil, application.ErrNotFound
	}
	return rec, nil
}

// statusChanged records the transition metric and publishes EVENT_CARD_MOVED
// on Redis pub/sub (non-fatal).
func (s *Service) statusChanged(ctx context.Context, p application.Principal, rec *application.Record, from application.Status) {
	metrics.StatusTransitions.WithLabelValues(string(from), string(rec.Status)).Inc()

	if s.events == nil {
		return
	}
	event := CardMovedEvent{
		Type:          ChannelCardMoved,
		ApplicationID: rec.ID,
		UserID:        rec.OwnerID,
		From:          string(from),
		To:            string(rec.Status),
		At:            rec.UpdatedAt,
	}
	if err := s.events.Publish(ctx, ChannelCardMoved, event); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"applicationId": rec.ID,
			"actor":         p.UserID,
		}).Warn("publish EVENT_CARD_MOVED failed")
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (pt Patch) applyTo(rec *application.Record) {
	if pt.Company != nil {
		rec.Company = strings.TrimSpace(*pt.Company)
	}
	if pt.Position != nil {
		rec.Position = strings.TrimSpace(*pt.Position)
	}
	if pt.Location != nil {
		rec.Location = strings.TrimSpace(*pt.Location)
	}
	if pt.JobType != nil {
		rec.JobType = *pt.JobType
	}
	if pt.Priority != nil {
		rec.Priority = *pt.Priority
	}
	if pt.Source != nil {
		rec.Source = *pt.Source
	}
	if pt.Salary != nil {
		rec.Salary = normalizeSalary(pt.Salary)
	}
	if pt.ContactPerson != nil {
		rec.ContactPerson = pt.ContactPerson
	}
	if pt.ApplicationDate != nil {
		rec.ApplicationDate = pt.ApplicationDate.UTC()
	}
	if pt.InterviewDate.Set {
		rec.InterviewDate = utcPtr(pt.InterviewDate.Time)
	}
	if pt.Deadline.Set {
		rec.Deadline = utcPtr(pt.Deadline.Time)
	}
	if pt.JobURL != nil {
		rec.JobURL = strings.TrimSpace(*pt.JobURL)
	}
	if pt.Notes != nil {
		rec.Notes = *pt.Notes
	}
	if pt.Tags != nil {
		rec.Tags = application.NormalizeTags(*pt.Tags)
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func normalizeSalary(in *application.Salary) *application.Salary {
	if in == nil {
		return nil
	}
	out := *in
	if out.Currency == "" {
		out.Currency = application.DefaultCurrency
	}
	return &out
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}
