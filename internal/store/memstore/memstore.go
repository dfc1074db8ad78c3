// Package memstore is an in-process application.Store. It backs the service
// tests and local runs without PostgreSQL.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zulfie1003/InternTrack/internal/application"
)

// Store keeps records in a map guarded by a mutex. Every read and write
// copies the record so callers never share memory with the store.
type Store struct {
	mu      sync.RWMutex
	records map[string]*application.Record
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[string]*application.Record)}
}

func (s *Store) Insert(_ context.Context, rec *application.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("application %s already exists", rec.ID)
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*application.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, application.ErrNotFound
	}
	return rec.Clone(), nil
}

// Update replaces the stored fields of rec. The timeline is rebuilt from the
// stored log plus appended, so entries cannot be dropped through an update.
func (s *Store) Update(_ context.Context, rec *application.Record, appended []application.TimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[rec.ID]
	if !ok {
		return application.ErrNotFound
	}

	next := rec.Clone()
	next.OwnerID = cur.OwnerID
	next.CreatedAt = cur.CreatedAt
	next.Timeline = append(append(make([]application.TimelineEntry, 0, len(cur.Timeline)+len(appended)), cur.Timeline...), appended...)
	s.records[rec.ID] = next
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return application.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *Store) DeleteMany(_ context.Context, owner string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		rec, ok := s.records[id]
		if !ok || rec.OwnerID != owner {
			continue
		}
		delete(s.records, id)
		deleted++
	}
	return deleted, nil
}

func (s *Store) Find(_ context.Context, owner string, q application.Query) ([]application.Record, int, error) {
	s.mu.RLock()
	matched := make([]*application.Record, 0)
	for _, rec := range s.records {
		if rec.OwnerID == owner && q.Filter.Matches(rec) {
			matched = append(matched, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool { return q.Sort.Less(matched[i], matched[j]) })

	total := len(matched)
	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}

	items := make([]application.Record, 0, end-start)
	for _, rec := range matched[start:end] {
		items = append(items, *rec)
	}
	return items, total, nil
}

func (s *Store) ListByOwner(_ context.Context, owner string) ([]application.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]application.Record, 0)
	for _, rec := range s.records {
		if rec.OwnerID == owner {
			out = append(out, *rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return application.SortNewest.Less(&out[i], &out[j]) })
	return out, nil
}

func (s *Store) ListUpcoming(_ context.Context, from, to time.Time) ([]application.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	within := func(t *time.Time) bool {
		return t != nil && !t.Before(from) && t.Before(to)
	}

	out := make([]application.Record, 0)
	for _, rec := range s.records {
		if within(rec.InterviewDate) || within(rec.Deadline) {
			out = append(out, *rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
