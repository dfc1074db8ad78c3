// Package query lists one owner's applications with filtering, ordering and
// pagination.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/zulfie1003/InternTrack/internal/application"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPage bounds the page number so the row offset cannot overflow.
	MaxPage = 1_000_000
)

// Params describes one listing request.
type Params struct {
	Filter   application.Filter
	Sort     application.SortOrder
	Page     int
	PageSize int
}

// Page is one window of a listing.
type Page struct {
	Items     []application.View `json:"applications"`
	Count     int                `json:"count"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	PageSize  int                `json:"pageSize"`
	PageCount int                `json:"pages"`
}

// Engine runs listings against a store.
type Engine struct {
	store application.Store
	now   func() time.Time
}

// NewEngine returns an Engine reading from store.
func NewEngine(store application.Store) *Engine {
	return &Engine{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock returns a copy of e using now for derived fields.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	c := *e
	c.now = now
	return &c
}

// List returns the requested page of the caller's own records. Admins list
// their own records too.
func (e *Engine) List(ctx context.Context, p application.Principal, params Params) (*Page, error) {
	if p.UserID == "" {
		return nil, application.ErrUnauthenticated
	}

	page, size := Normalize(params.Page, params.PageSize)
	recs, total, err := e.store.Find(ctx, p.UserID, application.Query{
		Filter: params.Filter,
		Sort:   params.Sort,
		Offset: (page - 1) * size,
		Limit:  size,
	})
	if err != nil {
		return nil, fmt.Errorf("listApplications: %w", err)
	}

	now := e.now()
	items := make([]application.View, 0, len(recs))
	for i := range recs {
		items = append(items, application.Project(&recs[i], now))
	}

	return &Page{
		Items:     items,
		Count:     len(items),
		Total:     total,
		Page:      page,
		PageSize:  size,
		PageCount: PageCount(total, size),
	}, nil
}

// Normalize clamps page and size to at least 1, page to MaxPage and size
// to MaxPageSize.
func Normalize(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if size < 1 {
		size = 1
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// PageCount is ceil(total / size).
func PageCount(total, size int) int {
	if size < 1 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
