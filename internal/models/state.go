package models

import (
	"maps"
	"time"
)

// ModalState holds which dialogs are visible.
type ModalState struct {
	AddEventOpen   bool   `json:"addEventOpen"`
	DetailsEventID string `json:"detailsEventId,omitempty"`
}

// PendingEdit is an optimistic update that the feed has not confirmed yet.
type PendingEdit struct {
	Seq   uint64
	Event Event
	// Base is the last feed-confirmed version, restored if the write fails.
	Base Event
}

// CalendarState is the root snapshot owned by the calendar core.
type CalendarState struct {
	MonthCursorISO  string     `json:"monthCursorISO"`
	SelectedDateISO string     `json:"selectedDateISO,omitempty"`
	Events          []Event    `json:"events"`
	Modal           ModalState `json:"modal"`
	ToastMessage    string     `json:"toastMessage,omitempty"`

	// Bookkeeping that never leaves the process.
	ToastID uint64                 `json:"-"`
	EditSeq uint64                 `json:"-"`
	Pending map[string]PendingEdit `json:"-"`
}

// DefaultState is the state of a fresh client: today's month, today
// selected, no events.
func DefaultState(now time.Time) CalendarState {
	u := now.UTC()
	return CalendarState{
		MonthCursorISO:  time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
		SelectedDateISO: u.Format("2006-01-02"),
		Events:          []Event{},
	}
}

// Clone returns a deep copy of the state.
func (s CalendarState) Clone() CalendarState {
	s.Events = CloneEvents(s.Events)
	if s.Pending != nil {
		pending := make(map[string]PendingEdit, len(s.Pending))
		for id, p := range s.Pending {
			p.Event = p.Event.Clone()
			p.Base = p.Base.Clone()
			pending[id] = p
		}
		s.Pending = pending
	}
	return s
}

// Event returns the event with the given id, or nil.
func (s *CalendarState) Event(id string) *Event {
	for i := range s.Events {
		if s.Events[i].ID == id {
			return &s.Events[i]
		}
	}
	return nil
}

// EventsOn returns the events scheduled on dateISO in feed order.
func (s *CalendarState) EventsOn(dateISO string) []Event {
	var out []Event
	for _, e := range s.Events {
		if e.DateISO == dateISO {
			out = append(out, e.Clone())
		}
	}
	return out
}

// DetailsEvent returns the event whose detail dialog is open, or nil.
func (s *CalendarState) DetailsEvent() *Event {
	if s.Modal.DetailsEventID == "" {
		return nil
	}
	return s.Event(s.Modal.DetailsEventID)
}

// HasPending reports whether an optimistic edit for id is outstanding.
func (s *CalendarState) HasPending(id string) bool {
	_, ok := s.Pending[id]
	return ok
}

// PendingIDs lists the ids of unconfirmed optimistic edits.
func (s *CalendarState) PendingIDs() []string {
	ids := make([]string, 0, len(s.Pending))
	for id := range maps.Keys(s.Pending) {
		ids = append(ids, id)
	}
	return ids
}
