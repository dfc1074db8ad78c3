package application

import (
	"context"
	"time"
)

// Store is the queryable collection of records. Implementations return
// ErrNotFound for unknown ids and are safe for concurrent use; concurrent
// writes to one record are last-write-wins.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// Update persists every mutable field of rec. appended holds the timeline
	// entries added since rec was loaded; stores append them to the stored
	// log instead of rewriting it.
	Update(ctx context.Context, rec *Record, appended []TimelineEntry) error
	Delete(ctx context.Context, id string) error
	// DeleteMany removes the records among ids owned by owner and returns how
	// many were removed. Foreign or unknown ids are ignored.
	DeleteMany(ctx context.Context, owner string, ids []string) (int, error)
	Find(ctx context.Context, owner string, q Query) ([]Record, int, error)
	ListByOwner(ctx context.Context, owner string) ([]Record, error)
	// ListUpcoming returns records of every owner whose interview date or
	// deadline falls in [from, to).
	ListUpcoming(ctx context.Context, from, to time.Time) ([]Record, error)
}

// Filter narrows a listing. Zero-valued fields do not filter.
type Filter struct {
	Status   Status
	JobType  JobType
	Priority Priority
	// Search is matched case-insensitively against company, position and
	// location; any one of them may contain it.
	Search string
}

// Matches reports whether r passes every set criterion of f.
func (f Filter) Matches(r *Record) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.JobType != "" && r.JobType != f.JobType {
		return false
	}
	if f.Priority != "" && r.Priority != f.Priority {
		return false
	}
	if f.Search != "" && !ContainsFold(f.Search, r.Company, r.Position, r.Location) {
		return false
	}
	return true
}

// SortOrder is the closed set of orderings a listing can use.
type SortOrder int

const (
	SortNewest SortOrder = iota
	SortCompanyAsc
	SortCompanyDesc
	SortPositionAsc
	SortApplicationDateDesc
	SortStatusAsc
)

// ParseSort maps a wire key to a SortOrder. Unknown keys, including the
// empty string, select SortNewest.
func ParseSort(key string) SortOrder {
	switch key {
	case "company":
		return SortCompanyAsc
	case "-company":
		return SortCompanyDesc
	case "position":
		return SortPositionAsc
	case "applicationDate":
		return SortApplicationDateDesc
	case "status":
		return SortStatusAsc
	}
	return SortNewest
}

func (s SortOrder) String() string {
	switch s {
	case SortCompanyAsc:
		return "company"
	case SortCompanyDesc:
		return "-company"
	case SortPositionAsc:
		return "position"
	case SortApplicationDateDesc:
		return "applicationDate"
	case SortStatusAsc:
		return "status"
	}
	return "-createdAt"
}

// Less orders a before b under s. Ties fall back to newest-created, then id,
// so that paging is deterministic.
func (s SortOrder) Less(a, b *Record) bool {
	switch s {
	case SortCompanyAsc:
		if a.Company != b.Company {
			return a.Company < b.Company
		}
	case SortCompanyDesc:
		if a.Company != b.Company {
			return a.Company > b.Company
		}
	case SortPositionAsc:
		if a.Position != b.Position {
			return a.Position < b.Position
		}
	case SortApplicationDateDesc:
		if !a.ApplicationDate.Equal(b.ApplicationDate) {
			return a.ApplicationDate.After(b.ApplicationDate)
		}
	case SortStatusAsc:
		if a.Status != b.Status {
			return a.Status < b.Status
		}
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Query is a filtered, ordered window over one owner's records.
type Query struct {
	Filter Filter
	Sort   SortOrder
	Offset int
	Limit  int
}
