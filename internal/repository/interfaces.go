package repository

import (
	"context"

	"github.com/Kerhoff/courtcal/internal/models"
)

// EventRepository is the remote event store as the calendar core consumes it.
type EventRepository interface {
	// Subscribe calls onChange with the full event list, ordered by date then
	// start time, right away and again after every change. Each call is a
	// complete replacement, never a delta.
	Subscribe(ctx context.Context, onChange func([]models.Event)) (unsubscribe func(), err error)

	// CreateOrReplace upserts the event by id. Absent optional fields are
	// stored as absent. The event's UpdatedAt is kept when set.
	CreateOrReplace(ctx context.Context, event models.Event) error

	// Delete removes the event. Deleting a missing event is not an error.
	Delete(ctx context.Context, id string) error

	// AddAttendee appends to the roster. A missing event is a silent no-op.
	AddAttendee(ctx context.Context, eventID string, attendee models.Attendee) error

	// RemoveAttendee drops the attendee from the roster. A missing event is a
	// silent no-op.
	RemoveAttendee(ctx context.Context, eventID, attendeeID string) error

	List(ctx context.Context, filters EventFilters) ([]models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
}

// EventFilters narrows List. Zero values mean unbounded.
type EventFilters struct {
	From  *string // inclusive YYYY-MM-DD
	To    *string // inclusive YYYY-MM-DD
	Limit int
}

// Match reports whether e falls within the filter's date range.
func (f EventFilters) Match(e models.Event) bool {
	if f.From != nil && e.DateISO < *f.From {
		return false
	}
	if f.To != nil && e.DateISO > *f.To {
		return false
	}
	return true
}

// IdentityFunc returns the identity that stamps writes, or "" when none is
// available yet.
type IdentityFunc func(ctx context.Context) string

// StaticIdentity always stamps writes with the same identity.
func StaticIdentity(id string) IdentityFunc {
	return func(context.Context) string { return id }
}
