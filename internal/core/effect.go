package core

import (
	"context"

	"github.com/Kerhoff/courtcal/internal/models"
	"github.com/Kerhoff/courtcal/internal/repository"
)

// Effect is a remote mutation requested by a transition. Effects run
// outside the transition; a failure comes back as new intents.
type Effect interface {
	// Name labels the effect in logs and metrics.
	Name() string

	apply(ctx context.Context, repo repository.EventRepository) error
	failurePrefix() string
	compensate() []Action
}

type createOrReplace struct {
	event models.Event
	seq   uint64 // optimistic edit sequence, 0 for creations
}

func (e createOrReplace) Name() string { return "create_or_replace" }

func (e createOrReplace) apply(ctx context.Context, repo repository.EventRepository) error {
	return repo.CreateOrReplace(ctx, e.event)
}

func (e createOrReplace) failurePrefix() string {
	if e.seq == 0 {
		return "Add failed"
	}
	return "Update failed"
}

func (e createOrReplace) compensate() []Action {
	if e.seq == 0 {
		return nil
	}
	return []Action{DiscardPendingEdit{EventID: e.event.ID, Seq: e.seq}}
}

type remove struct {
	id string
}

func (e remove) Name() string { return "delete" }

func (e remove) apply(ctx context.Context, repo repository.EventRepository) error {
	return repo.Delete(ctx, e.id)
}

func (e remove) failurePrefix() string { return "Delete failed" }
func (e remove) compensate() []Action  { return nil }

type addAttendee struct {
	eventID  string
	attendee models.Attendee
}

func (e addAttendee) Name() string { return "add_attendee" }

func (e addAttendee) apply(ctx context.Context, repo repository.EventRepository) error {
	return repo.AddAttendee(ctx, e.eventID, e.attendee)
}

func (e addAttendee) failurePrefix() string { return "Add attendee failed" }
func (e addAttendee) compensate() []Action  { return nil }

type removeAttendee struct {
	eventID    string
	attendeeID string
}

func (e removeAttendee) Name() string { return "remove_attendee" }

func (e removeAttendee) apply(ctx context.Context, repo repository.EventRepository) error {
	return repo.RemoveAttendee(ctx, e.eventID, e.attendeeID)
}

func (e removeAttendee) failurePrefix() string { return "Remove attendee failed" }
func (e removeAttendee) compensate() []Action  { return nil }
