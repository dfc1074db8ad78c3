// Package analytics derives aggregate statistics from one owner's
// applications. Every call reads the owner's records once and aggregates in
// memory; nothing is written.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/zulfie1003/InternTrack/internal/application"
)

const (
	DefaultTimelineDays = 30
	topCompaniesLimit   = 5
	monthlyWindow       = 6 // months
	recentWindow        = 7 // days
)

// RecordSource is the slice of application.Store the engine needs.
type RecordSource interface {
	ListByOwner(ctx context.Context, owner string) ([]application.Record, error)
}

// Engine computes analytics for a principal.
type Engine struct {
	src RecordSource
	now func() time.Time
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(src RecordSource, opts ...Option) *Engine {
	e := &Engine{src: src, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ─── Result types ────────────────────────────────────────────────────────────

type StatusCount struct {
	Status application.Status `json:"status"`
	Count  int                `json:"count"`
}

type JobTypeCount struct {
	JobType application.JobType `json:"jobType"`
	Count   int                 `json:"count"`
}

type PriorityCount struct {
	Priority application.Priority `json:"priority"`
	Count    int                  `json:"count"`
}

type CompanyCount struct {
	Company string `json:"company"`
	Count   int    `json:"count"`
}

type MonthCount struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Count int `json:"count"`
}

type Dashboard struct {
	TotalApplications   int             `json:"totalApplications"`
	RecentCount         int             `json:"recentCount"`
	SuccessRate         float64         `json:"successRate"`
	OfferCount          int             `json:"offerCount"`
	StatusBreakdown     []StatusCount   `json:"statusBreakdown"`
	JobTypeBreakdown    []JobTypeCount  `json:"jobTypeBreakdown"`
	MonthlyApplications []MonthCount    `json:"monthlyApplications"`
	PriorityBreakdown   []PriorityCount `json:"priorityBreakdown"`
	TopCompanies        []CompanyCount  `json:"topCompanies"`
}

type StatusStat struct {
	Status       application.Status `json:"status"`
	Count        int                `json:"count"`
	AvgDaysSince int                `json:"avgDaysSince"`
}

type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD, UTC
	Count int    `json:"count"`
}

type ResponseRate struct {
	Total        int     `json:"total"`
	Responded    int     `json:"responded"`
	NoResponse   int     `json:"noResponse"`
	ResponseRate float64 `json:"responseRate"`
}

type SourceStat struct {
	Source      application.Source `json:"source"`
	Count       int                `json:"count"`
	OfferCount  int                `json:"offerCount"`
	SuccessRate float64            `json:"successRate"`
}

// ─── Aggregations ────────────────────────────────────────────────────────────

// Dashboard summarises the caller's whole collection.
func (e *Engine) Dashboard(ctx context.Context, p application.Principal) (*Dashboard, error) {
	recs, err := e.load(ctx, p)
	if err != nil {
		return nil, err
	}
	now := e.now()
	monthsFrom := now.AddDate(0, -monthlyWindow, 0)
	recentFrom := now.AddDate(0, 0, -recentWindow)

	d := &Dashboard{TotalApplications: len(recs)}
	statuses := map[application.Status]int{}
	jobTypes := map[application.JobType]int{}
	priorities := map[application.Priority]int{}
	companies := map[string]int{}
	months := map[[2]int]int{}

	for i := range recs {
		r := &recs[i]
		statuses[r.Status]++
		jobTypes[r.JobType]++
		priorities[r.Priority]++
		companies[r.Company]++
		if r.Status.IsOffer() {
			d.OfferCount++
		}
		if !r.CreatedAt.Before(recentFrom) {
			d.RecentCount++
		}
		if !r.ApplicationDate.Before(monthsFrom) {
			at := r.ApplicationDate.UTC()
			months[[2]int{at.Year(), int(at.Month())}]++
		}
	}

	d.SuccessRate = percent(d.OfferCount, d.TotalApplications)

	d.StatusBreakdown = make([]StatusCount, 0, len(statuses))
	for _, s := range application.Statuses {
		if n := statuses[s]; n > 0 {
			d.StatusBreakdown = append(d.StatusBreakdown, StatusCount{Status: s, Count: n})
		}
	}
	sort.SliceStable(d.StatusBreakdown, func(i, j int) bool {
		return d.StatusBreakdown[i].Count > d.StatusBreakdown[j].Count
	})

	d.JobTypeBreakdown = make([]JobTypeCount, 0, len(jobTypes))
	for _, jt := range application.JobTypes {
		if n := jobTypes[jt]; n > 0 {
			d.JobTypeBreakdown = append(d.JobTypeBreakdown, JobTypeCount{JobType: jt, Count: n})
		}
	}

	d.PriorityBreakdown = make([]PriorityCount, 0, len(priorities))
	for _, pr := range application.Priorities {
		if n := priorities[pr]; n > 0 {
			d.PriorityBreakdown = append(d.PriorityBreakdown, PriorityCount{Priority: pr, Count: n})
		}
	}

	d.MonthlyApplications = make([]MonthCount, 0, len(months))
	for ym, n := range months {
		d.MonthlyApplications = append(d.MonthlyApplications, MonthCount{Year: ym[0], Month: ym[1], Count: n})
	}
	sort.Slice(d.MonthlyApplications, func(i, j int) bool {
		a, b := d.MonthlyApplications[i], d.MonthlyApplications[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})

	d.TopCompanies = make([]CompanyCount, 0, len(companies))
	for c, n := range companies {
		d.TopCompanies = append(d.TopCompanies, CompanyCount{Company: c, Count: n})
	}
	sort.Slice(d.TopCompanies, func(i, j int) bool {
		a, b := d.TopCompanies[i], d.TopCompanies[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Company < b.Company
	})
	if len(d.TopCompanies) > topCompaniesLimit {
		d.TopCompanies = d.TopCompanies[:topCompaniesLimit]
	}

	return d, nil
}

// StatusStats reports, per status present, the count and the mean age in
// whole days. Statuses with no records are omitted.
func (e *Engine) StatusStats(ctx context.Context, p application.Principal) ([]StatusStat, error) {
	recs, err := e.load(ctx, p)
	if err != nil {
		return nil, err
	}
	now := e.now()

	counts := map[application.Status]int{}
	days := map[application.Status]float64{}
	for i := range recs {
		r := &recs[i]
		counts[r.Status]++
		days[r.Status] += now.Sub(r.ApplicationDate).Hours() / 24
	}

	out := make([]StatusStat, 0, len(counts))
	for _, s := range application.Statuses {
		n := counts[s]
		if n == 0 {
			continue
		}
		out = append(out, StatusStat{
			Status:       s,
			Count:        n,
			AvgDaysSince: int(math.Round(days[s] / float64(n))),
		})
	}
	return out, nil
}

// Timeline counts applications per UTC calendar day over the trailing days.
// Days without applications are absent from the result.
func (e *Engine) Timeline(ctx context.Context, p application.Principal, days int) ([]DayCount, error) {
	if days < 1 {
		days = DefaultTimelineDays
	}
	recs, err := e.load(ctx, p)
	if err != nil {
		return nil, err
	}
	from := e.now().AddDate(0, 0, -days)

	perDay := map[string]int{}
	for i := range recs {
		if recs[i].ApplicationDate.Before(from) {
			continue
		}
		perDay[recs[i].ApplicationDate.UTC().Format(time.DateOnly)]++
	}

	out := make([]DayCount, 0, len(perDay))
	for day, n := range perDay {
		out = append(out, DayCount{Date: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// ResponseRate splits the collection into responded and unanswered records.
// Withdrawn records count toward the total only.
func (e *Engine) ResponseRate(ctx context.Context, p application.Principal) (*ResponseRate, error) {
	recs, err := e.load(ctx, p)
	if err != nil {
		return nil, err
	}

	rr := &ResponseRate{Total: len(recs)}
	for i := range recs {
		switch {
		case recs[i].Status.IsResponse():
			rr.Responded++
		case recs[i].Status == application.StatusApplied:
			rr.NoResponse++
		}
	}
	rr.ResponseRate = percent(rr.Responded, rr.Total)
	return rr, nil
}

// SourceAnalytics reports the offer conversion of each source, largest
// source first.
func (e *Engine) SourceAnalytics(ctx context.Context, p application.Principal) ([]SourceStat, error) {
	recs, err := e.load(ctx, p)
	if err != nil {
		return nil, err
	}

	counts := map[application.Source]int{}
	offers := map[application.Source]int{}
	for i := range recs {
		counts[recs[i].Source]++
		if recs[i].Status.IsOffer() {
			offers[recs[i].Source]++
		}
	}

	out := make([]SourceStat, 0, len(counts))
	for _, s := range application.Sources {
		n := counts[s]
		if n == 0 {
			continue
		}
		out = append(out, SourceStat{
			Source:      s,
			Count:       n,
			OfferCount:  offers[s],
			SuccessRate: percent(offers[s], n),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

func (e *Engine) load(ctx context.Context, p application.Principal) ([]application.Record, error) {
	if p.UserID == "" {
		return nil, application.ErrUnauthenticated
	}
	recs, err := e.src.ListByOwner(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("analytics: list records: %w", err)
	}
	return recs, nil
}

// percent returns part/total as a percentage rounded to 2 decimals, 0 when
// total is 0.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
