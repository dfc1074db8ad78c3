// Package application defines the tracked application record, its enums and
// invariants, the identity of the caller, and the store contract shared by
// the lifecycle, query and analytics engines.
package application

import (
	"math"
	"strings"
	"time"
)

// Record is one tracked job or internship application.
type Record struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`

	Company  string `json:"company" validate:"required,max=100"`
	Position string `json:"position" validate:"required,max=100"`
	Location string `json:"location,omitempty" validate:"max=100"`

	JobType  JobType  `json:"jobType" validate:"oneof=internship full-time part-time contract freelance"`
	Status   Status   `json:"status" validate:"oneof=applied interview offer rejected accepted withdrawn"`
	Priority Priority `json:"priority" validate:"oneof=low medium high"`
	Source   Source   `json:"source" validate:"oneof=linkedin indeed company-website referral other"`

	Salary        *Salary        `json:"salary,omitempty"`
	ContactPerson *ContactPerson `json:"contactPerson,omitempty"`

	ApplicationDate time.Time  `json:"applicationDate"`
	InterviewDate   *time.Time `json:"interviewDate,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`

	JobURL string   `json:"jobUrl,omitempty"`
	Notes  string   `json:"notes,omitempty" validate:"max=1000"`
	Tags   []string `json:"tags"`

	Attachments []Attachment    `json:"attachments"`
	Timeline    []TimelineEntry `json:"timeline"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Salary is an optional pay range. Min and Max are independent; no ordering
// between them is enforced.
type Salary struct {
	Min      *float64 `json:"min,omitempty" validate:"omitempty,gte=0"`
	Max      *float64 `json:"max,omitempty" validate:"omitempty,gte=0"`
	Currency string   `json:"currency"`
}

// ContactPerson is the recruiter or hiring manager for an application.
type ContactPerson struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty"`
}

// Attachment references an uploaded document (CV, cover letter…).
type Attachment struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	UploadDate time.Time `json:"uploadDate"`
}

// TimelineEntry is one event in the append-only audit log of a record.
type TimelineEntry struct {
	Event string    `json:"event"`
	Date  time.Time `json:"date"`
	Notes string    `json:"notes"`
}

// DaysSinceApplication returns the whole number of days elapsed between the
// application date and now.
func (r *Record) DaysSinceApplication(now time.Time) int {
	return int(math.Floor(now.Sub(r.ApplicationDate).Hours() / 24))
}

// Clone returns a deep copy so callers can mutate a record without touching
// the stored instance.
func (r *Record) Clone() *Record {
	c := *r
	if r.Salary != nil {
		s := *r.Salary
		s.Min = cloneFloat(r.Salary.Min)
		s.Max = cloneFloat(r.Salary.Max)
		c.Salary = &s
	}
	if r.ContactPerson != nil {
		cp := *r.ContactPerson
		c.ContactPerson = &cp
	}
	c.InterviewDate = cloneTime(r.InterviewDate)
	c.Deadline = cloneTime(r.Deadline)
	c.Tags = cloneSlice(r.Tags)
	c.Attachments = cloneSlice(r.Attachments)
	c.Timeline = cloneSlice(r.Timeline)
	return &c
}

// View is the read projection handed to transports: the record itself plus
// derived fields. It replaces any implicit population on read.
type View struct {
	*Record
	DaysSinceApplication int `json:"daysSinceApplication"`
}

// Project builds the read projection of r at the given instant.
func Project(r *Record, now time.Time) View {
	return View{Record: r, DaysSinceApplication: r.DaysSinceApplication(now)}
}

// NormalizeTags trims every tag, drops empty ones and keeps the first
// occurrence of duplicates.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
