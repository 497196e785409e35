package models

import (
	"slices"
	"time"
)

// AttendeeStatus is an attendee's commitment to an event.
type AttendeeStatus string

const (
	AttendeeConfirmed AttendeeStatus = "confirmed"
	AttendeeMaybe     AttendeeStatus = "maybe"
	AttendeeNo        AttendeeStatus = "no"
)

// Valid reports whether s is one of the known statuses. The empty status is
// valid and reads as confirmed.
func (s AttendeeStatus) Valid() bool {
	switch s {
	case "", AttendeeConfirmed, AttendeeMaybe, AttendeeNo:
		return true
	}
	return false
}

// OrDefault returns the status, defaulting an unset one to confirmed.
func (s AttendeeStatus) OrDefault() AttendeeStatus {
	if s == "" {
		return AttendeeConfirmed
	}
	return s
}

// Label is the human-readable status shown on rosters.
func (s AttendeeStatus) Label() string {
	switch s.OrDefault() {
	case AttendeeMaybe:
		return "Maybe"
	case AttendeeNo:
		return "No"
	default:
		return "Confirmed"
	}
}

// Attendee is a person committed to an Event. It has no life outside it.
type Attendee struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Status AttendeeStatus `json:"status,omitempty"`
}

// Event is a booking of a court on a date. EndTime and Notes are optional:
// the empty string means absent and is never serialized.
type Event struct {
	ID        string     `json:"id"`
	DateISO   string     `json:"dateISO"`
	StartTime string     `json:"startTime"`
	EndTime   string     `json:"endTime,omitempty"`
	Court     string     `json:"court"`
	Notes     string     `json:"notes,omitempty"`
	Attendees []Attendee `json:"attendees"`
	UpdatedAt int64      `json:"updatedAt"` // epoch ms
	UpdatedBy string     `json:"updatedBy,omitempty"`
}

// HasEnd reports whether the event has an explicit end time.
func (e *Event) HasEnd() bool {
	return e.EndTime != ""
}

// UpdatedTime returns UpdatedAt as a time.Time.
func (e *Event) UpdatedTime() time.Time {
	return time.UnixMilli(e.UpdatedAt).UTC()
}

// Going counts the confirmed attendees.
func (e *Event) Going() int {
	n := 0
	for _, a := range e.Attendees {
		if a.Status.OrDefault() == AttendeeConfirmed {
			n++
		}
	}
	return n
}

// Attendee returns the attendee with the given id, or nil.
func (e *Event) Attendee(id string) *Attendee {
	for i := range e.Attendees {
		if e.Attendees[i].ID == id {
			return &e.Attendees[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can never alias another snapshot's roster.
func (e Event) Clone() Event {
	e.Attendees = slices.Clone(e.Attendees)
	return e
}

// CloneEvents deep-copies a slice of events, preserving nil.
func CloneEvents(events []Event) []Event {
	if events == nil {
		return nil
	}
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}

// SortEvents orders events by date, then start time, then id.
func SortEvents(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		switch {
		case a.DateISO != b.DateISO:
			return compare(a.DateISO, b.DateISO)
		case a.StartTime != b.StartTime:
			return compare(a.StartTime, b.StartTime)
		default:
			return compare(a.ID, b.ID)
		}
	})
}

func compare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
