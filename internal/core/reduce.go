package core

import (
	"time"

	"github.com/Kerhoff/courtcal/internal/dates"
	"github.com/Kerhoff/courtcal/internal/models"
)

// Env is what a transition may read besides the state and the action.
type Env struct {
	Now time.Time
}

func (e Env) today() string {
	return dates.ToISODate(e.Now)
}

// Reduce applies a to state and returns the next state plus the remote
// mutations the transition asks for. It never mutates its input and never
// panics: unknown or nil actions return state unchanged.
func Reduce(state models.CalendarState, a Action, env Env) (models.CalendarState, []Effect) {
	next, effects, _ := reduce(state, a, env)
	return next, effects
}

// reduce reports whether a was handled so the store can skip persisting
// no-op intents.
func reduce(s models.CalendarState, a Action, env Env) (models.CalendarState, []Effect, bool) {
	switch a := a.(type) {
	case ReplaceEvents:
		return replaceEvents(s, a.Events), nil, true

	case NavigateMonth:
		s.MonthCursorISO = dates.AddMonthsISO(s.MonthCursorISO, a.Delta)
		return s, nil, true

	case SetSelectedDate:
		s.SelectedDateISO = a.DateISO
		return s, nil, true

	case OpenAddEvent:
		if dates.IsISODate(a.DateISO) {
			s.SelectedDateISO = floorDate(a.DateISO, env.today())
		}
		s.Modal.AddEventOpen = true
		return s, nil, true

	case CloseAddEvent:
		s.Modal.AddEventOpen = false
		return s, nil, true

	case AddEvent:
		event := a.Event.Clone()
		if event.Attendees == nil {
			event.Attendees = []models.Attendee{}
		}
		event.DateISO = floorDate(event.DateISO, env.today())
		event.UpdatedAt = env.Now.UnixMilli()
		s.Modal.AddEventOpen = false
		return s, []Effect{createOrReplace{event: event}}, true

	case OpenDetails:
		s.Modal.DetailsEventID = a.EventID
		return s, nil, true

	case CloseDetails:
		s.Modal.DetailsEventID = ""
		return s, nil, true

	case AddAttendee:
		return s, []Effect{addAttendee{eventID: a.EventID, attendee: a.Attendee}}, true

	case RemoveAttendee:
		return s, []Effect{removeAttendee{eventID: a.EventID, attendeeID: a.AttendeeID}}, true

	case DeleteEvent:
		s.Modal.DetailsEventID = ""
		if s.HasPending(a.EventID) {
			s.Pending = withoutPending(s.Pending, a.EventID)
		}
		return s, []Effect{remove{id: a.EventID}}, true

	case UpdateEvent:
		return updateEvent(s, a.Event, env)

	case ShowNotification:
		s.ToastMessage = a.Message
		s.ToastID = a.ID
		return s, nil, true

	case ClearNotification:
		if a.ID == 0 || a.ID == s.ToastID {
			s.ToastMessage = ""
			s.ToastID = 0
		}
		return s, nil, true

	case DiscardPendingEdit:
		return discardPendingEdit(s, a), nil, true

	default:
		return s, nil, false
	}
}

// replaceEvents takes the push as ground truth, then reconciles pending
// edits. An edit is confirmed once the push carries its id with an
// updatedAt at least as new; an edit whose event vanished is dropped; any
// other edit means the push is stale for that id and the edit stays on top.
func replaceEvents(s models.CalendarState, pushed []models.Event) models.CalendarState {
	events := models.CloneEvents(pushed)
	if events == nil {
		events = []models.Event{}
	}

	var pending map[string]models.PendingEdit
	for id, p := range s.Pending {
		i := indexOf(events, id)
		if i < 0 || events[i].UpdatedAt >= p.Event.UpdatedAt {
			continue
		}
		p.Base = events[i].Clone()
		events[i] = p.Event.Clone()
		if pending == nil {
			pending = make(map[string]models.PendingEdit)
		}
		pending[id] = p
	}

	s.Events = events
	s.Pending = pending
	return s
}

func updateEvent(s models.CalendarState, event models.Event, env Env) (models.CalendarState, []Effect, bool) {
	event = event.Clone()
	if event.Attendees == nil {
		event.Attendees = []models.Attendee{}
	}
	event.UpdatedAt = env.Now.UnixMilli()

	i := indexOf(s.Events, event.ID)
	if i < 0 {
		// Not listed yet: nothing to show optimistically, just write it.
		return s, []Effect{createOrReplace{event: event}}, true
	}

	s.EditSeq++
	base := s.Events[i].Clone()
	if prev, ok := s.Pending[event.ID]; ok {
		base = prev.Base
	}

	events := models.CloneEvents(s.Events)
	events[i] = event.Clone()
	s.Events = events
	s.Pending = withPending(s.Pending, event.ID, models.PendingEdit{Seq: s.EditSeq, Event: event.Clone(), Base: base})

	return s, []Effect{createOrReplace{event: event, seq: s.EditSeq}}, true
}

func discardPendingEdit(s models.CalendarState, a DiscardPendingEdit) models.CalendarState {
	p, ok := s.Pending[a.EventID]
	if !ok || p.Seq != a.Seq {
		return s
	}
	s.Pending = withoutPending(s.Pending, a.EventID)

	i := indexOf(s.Events, a.EventID)
	if i < 0 || s.Events[i].UpdatedAt != p.Event.UpdatedAt {
		return s
	}
	events := models.CloneEvents(s.Events)
	events[i] = p.Base.Clone()
	s.Events = events
	return s
}

// floorDate moves dateISO forward to todayISO when it lies in the past.
func floorDate(dateISO, todayISO string) string {
	if !dates.IsISODate(dateISO) || dateISO < todayISO {
		return todayISO
	}
	return dateISO
}

func indexOf(events []models.Event, id string) int {
	for i := range events {
		if events[i].ID == id {
			return i
		}
	}
	return -1
}

func withPending(m map[string]models.PendingEdit, id string, p models.PendingEdit) map[string]models.PendingEdit {
	out := make(map[string]models.PendingEdit, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[id] = p
	return out
}

func withoutPending(m map[string]models.PendingEdit, id string) map[string]models.PendingEdit {
	if len(m) <= 1 {
		return nil
	}
	out := make(map[string]models.PendingEdit, len(m)-1)
	for k, v := range m {
		if k != id {
			out[k] = v
		}
	}
	return out
}
