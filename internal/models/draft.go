package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kerhoff/courtcal/internal/dates"
)

// Validation errors returned before an intent is ever dispatched.
var (
	ErrInvalidDate      = errors.New("date must be YYYY-MM-DD")
	ErrPastDate         = errors.New("date is in the past")
	ErrInvalidTime      = errors.New("time must be HH:MM")
	ErrEndNotAfterStart = errors.New("end time must be after start time")
	ErrCourtRequired    = errors.New("court is required")
	ErrNameRequired     = errors.New("name is required")
	ErrInvalidStatus    = errors.New("status must be confirmed, maybe or no")
	ErrEventNotFound    = errors.New("event not found")
	ErrInvalidRange     = errors.New("from must not be after to")
	ErrInvalidLimit     = errors.New("limit must not be negative")
)

// DefaultStartTime is the start time offered for a new event.
const DefaultStartTime = "18:00"

// EventDraft is raw user input for creating or editing an event.
type EventDraft struct {
	DateISO   string `json:"dateISO"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Court     string `json:"court"`
	Notes     string `json:"notes"`
}

// Normalize trims the draft's free-text fields and fills the default start.
func (d EventDraft) Normalize() EventDraft {
	d.DateISO = strings.TrimSpace(d.DateISO)
	d.StartTime = strings.TrimSpace(d.StartTime)
	d.EndTime = strings.TrimSpace(d.EndTime)
	d.Court = strings.TrimSpace(d.Court)
	d.Notes = strings.TrimSpace(d.Notes)
	if d.StartTime == "" {
		d.StartTime = DefaultStartTime
	}
	return d
}

// Validate checks the draft against the event invariants. todayISO is the
// date floor; pass "" to skip the floor (edits of existing events).
func (d EventDraft) Validate(todayISO string) error {
	d = d.Normalize()
	if !dates.IsISODate(d.DateISO) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, d.DateISO)
	}
	if todayISO != "" && d.DateISO < todayISO {
		return fmt.Errorf("%w: %s is before %s", ErrPastDate, d.DateISO, todayISO)
	}
	start, err := dates.ToMinutes(d.StartTime)
	if err != nil {
		return fmt.Errorf("%w: start %q", ErrInvalidTime, d.StartTime)
	}
	if d.EndTime != "" {
		end, err := dates.ToMinutes(d.EndTime)
		if err != nil {
			return fmt.Errorf("%w: end %q", ErrInvalidTime, d.EndTime)
		}
		if end <= start {
			return fmt.Errorf("%w: %s-%s", ErrEndNotAfterStart, d.StartTime, d.EndTime)
		}
	}
	if d.Court == "" {
		return ErrCourtRequired
	}
	return nil
}

// Build validates the draft and constructs a new event with an empty roster.
func (d EventDraft) Build(id string, todayISO string, now time.Time) (Event, error) {
	if err := d.Validate(todayISO); err != nil {
		return Event{}, err
	}
	d = d.Normalize()
	return Event{
		ID:        id,
		DateISO:   d.DateISO,
		StartTime: d.StartTime,
		EndTime:   d.EndTime,
		Court:     d.Court,
		Notes:     d.Notes,
		Attendees: []Attendee{},
		UpdatedAt: now.UnixMilli(),
	}, nil
}

// Apply validates the draft and returns a copy of base with the draft's
// fields replaced. The roster is kept.
func (d EventDraft) Apply(base Event, now time.Time) (Event, error) {
	if err := d.Validate(""); err != nil {
		return Event{}, err
	}
	d = d.Normalize()
	out := base.Clone()
	out.DateISO = d.DateISO
	out.StartTime = d.StartTime
	out.EndTime = d.EndTime
	out.Court = d.Court
	out.Notes = d.Notes
	out.UpdatedAt = now.UnixMilli()
	return out, nil
}

// DraftFrom returns the draft that reproduces e.
func DraftFrom(e Event) EventDraft {
	return EventDraft{
		DateISO:   e.DateISO,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Court:     e.Court,
		Notes:     e.Notes,
	}
}

// NewAttendee validates a roster entry. The name is trimmed and an unset
// status becomes confirmed.
func NewAttendee(id, name string, status AttendeeStatus) (Attendee, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Attendee{}, ErrNameRequired
	}
	status = AttendeeStatus(strings.ToLower(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return Attendee{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return Attendee{ID: id, Name: name, Status: status.OrDefault()}, nil
}
