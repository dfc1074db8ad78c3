package application_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulfie1003/InternTrack/internal/application"
)

func validRecord() *application.Record {
	return &application.Record{
		ID:              "a1",
		OwnerID:         "u1",
		Company:         "Acme",
		Position:        "Backend Intern",
		JobType:         application.DefaultJobType,
		Status:          application.DefaultStatus,
		Priority:        application.DefaultPriority,
		Source:          application.DefaultSource,
		ApplicationDate: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Tags:            []string{},
		Attachments:     []application.Attachment{},
		Timeline:        []application.TimelineEntry{},
	}
}

func float(f float64) *float64 { return &f }

// ── Validate ───────────────────────────────────────────────────────────────

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validRecord().Validate())
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(r *application.Record)
		want   string
	}{
		{"missing company", func(r *application.Record) { r.Company = "" }, "company is required"},
		{"missing position", func(r *application.Record) { r.Position = "" }, "position is required"},
		{"long company", func(r *application.Record) { r.Company = strings.Repeat("x", 101) }, "company cannot exceed 100"},
		{"long location", func(r *application.Record) { r.Location = strings.Repeat("x", 101) }, "location cannot exceed 100"},
		{"long notes", func(r *application.Record) { r.Notes = strings.Repeat("x", 1001) }, "notes cannot exceed 1000"},
		{"bad status", func(r *application.Record) { r.Status = "hired" }, "status must be one of"},
		{"bad job type", func(r *application.Record) { r.JobType = "gig" }, "jobType must be one of"},
		{"bad priority", func(r *application.Record) { r.Priority = "urgent" }, "priority must be one of"},
		{"bad source", func(r *application.Record) { r.Source = "glassdoor" }, "source must be one of"},
		{"negative salary", func(r *application.Record) {
			r.Salary = &application.Salary{Min: float(-1), Currency: "USD"}
		}, "salary.min must be at least 0"},
		{"bad contact email", func(r *application.Record) {
			r.ContactPerson = &application.ContactPerson{Email: "not-an-email"}
		}, "contactPerson.email"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := validRecord()
			c.mutate(r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, application.IsValidation(err))
			assert.Contains(t, err.Error(), c.want)
		})
	}
}

// Exactly 100 characters is allowed; the limit counts characters, not bytes.
func TestValidate_LengthBoundary(t *testing.T) {
	r := validRecord()
	r.Company = strings.Repeat("é", 100)
	assert.NoError(t, r.Validate())
}

// min > max is accepted: no ordering between the two bounds is enforced.
func TestValidate_SalaryRangeNotOrdered(t *testing.T) {
	r := validRecord()
	r.Salary = &application.Salary{Min: float(5000), Max: float(1000), Currency: "EUR"}
	assert.NoError(t, r.Validate())
}

// ── Derived fields ─────────────────────────────────────────────────────────

func TestDaysSinceApplication(t *testing.T) {
	r := validRecord()
	now := r.ApplicationDate.Add(3*24*time.Hour + 23*time.Hour)
	assert.Equal(t, 3, r.DaysSinceApplication(now))
	assert.Equal(t, 0, r.DaysSinceApplication(r.ApplicationDate))
	assert.Equal(t, -1, r.DaysSinceApplication(r.ApplicationDate.Add(-time.Hour)))
}

func TestProject(t *testing.T) {
	r := validRecord()
	v := application.Project(r, r.ApplicationDate.Add(10*24*time.Hour))
	assert.Equal(t, 10, v.DaysSinceApplication)
	assert.Same(t, r, v.Record)
}

func TestClone_IsDeep(t *testing.T) {
	r := validRecord()
	r.Tags = []string{"go"}
	r.Salary = &application.Salary{Min: float(1), Currency: "USD"}
	r.Timeline = []application.TimelineEntry{{Event: "x"}}

	c := r.Clone()
	c.Tags[0] = "rust"
	*c.Salary.Min = 2
	c.Timeline = append(c.Timeline, application.TimelineEntry{Event: "y"})

	assert.Equal(t, "go", r.Tags[0])
	assert.Equal(t, 1.0, *r.Salary.Min)
	assert.Len(t, r.Timeline, 1)
}

func TestNormalizeTags(t *testing.T) {
	got := application.NormalizeTags([]string{" go ", "", "backend", "go", "  "})
	assert.Equal(t, []string{"go", "backend"}, got)
	assert.NotNil(t, application.NormalizeTags(nil))
}

// ── Principal ──────────────────────────────────────────────────────────────

func TestPrincipal_CanAccess(t *testing.T) {
	r := validRecord()
	assert.True(t, application.Principal{UserID: "u1", Role: application.RoleUser}.CanAccess(r))
	assert.False(t, application.Principal{UserID: "u2", Role: application.RoleUser}.CanAccess(r))
	assert.True(t, application.Principal{UserID: "u2", Role: application.RoleAdmin}.CanAccess(r))
	assert.False(t, application.Principal{}.CanAccess(r))
	assert.False(t, application.Principal{UserID: "u1"}.CanAccess(nil))
}
