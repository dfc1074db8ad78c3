// Package kanban applies lifecycle changes to tracked applications.
//
// The status graph is complete: each of
//
//	applied, interview, offer, rejected, accepted, withdrawn
//
// may move to any other, and none is terminal. Moving a card onto its own
// column is a no-op and leaves the timeline untouched.
package kanban

import (
	"fmt"
	"time"

	"github.com/zulfie1003/InternTrack/internal/application"
)

// IsTransitionAllowed returns true when moving from → to is permitted.
// Any pair of known statuses is allowed, including from == to (a no-op).
func IsTransitionAllowed(from, to application.Status) bool {
	if _, err := application.ParseStatus(string(from)); err != nil {
		return false
	}
	_, err := application.ParseStatus(string(to))
	return err == nil
}

// StatusChangeEvent is the timeline text recorded for a transition.
func StatusChangeEvent(from, to application.Status) string {
	return fmt.Sprintf("Status changed from %s to %s", from, to)
}

// ApplyStatus moves rec to status and appends exactly one timeline entry
// dated at. It returns the appended entry, or nil when status equals the
// current one and nothing changed.
func ApplyStatus(rec *application.Record, status application.Status, notes string, at time.Time) *application.TimelineEntry {
	if rec.Status == status {
		return nil
	}
	entry := application.TimelineEntry{
		Event: StatusChangeEvent(rec.Status, status),
		Date:  at,
		Notes: notes,
	}
	rec.Timeline = append(rec.Timeline, entry)
	rec.Status = status
	return &entry
}
