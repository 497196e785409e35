package core

import (
	"reflect"
	"testing"
	"time"

	"github.com/Kerhoff/courtcal/internal/models"
)

var testNow = time.Date(2025, 9, 20, 17, 30, 0, 0, time.UTC)

func testEnv() Env { return Env{Now: testNow} }

func baseState() models.CalendarState {
	return models.CalendarState{
		MonthCursorISO:  "2025-09-01",
		SelectedDateISO: "2025-09-20",
		Events: []models.Event{
			{ID: "e1", DateISO: "2025-09-21", StartTime: "18:00", EndTime: "20:00", Court: "Court 1", Attendees: []models.Attendee{}, UpdatedAt: 1000},
			{ID: "e2", DateISO: "2025-09-22", StartTime: "07:00", Court: "Magnum", Attendees: []models.Attendee{{ID: "a1", Name: "Ana"}}, UpdatedAt: 1000},
		},
	}
}

func TestNavigateMonth(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
		delta  int
		want   string
	}{
		{"forward", "2025-09-01", 1, "2025-10-01"},
		{"back across year", "2025-01-01", -1, "2024-12-01"},
		{"forward across year", "2025-12-01", 1, "2026-01-01"},
		{"twelve back", "2025-03-01", -12, "2024-03-01"},
		{"zero", "2025-03-01", 0, "2025-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := models.CalendarState{MonthCursorISO: tt.cursor}
			got, effects := Reduce(s, NavigateMonth{Delta: tt.delta}, testEnv())
			if got.MonthCursorISO != tt.want {
				t.Errorf("MonthCursorISO = %v, want %v", got.MonthCursorISO, tt.want)
			}
			if len(effects) != 0 {
				t.Errorf("effects = %v, want none", effects)
			}
		})
	}
}

func TestNavigateMonthRoundTrip(t *testing.T) {
	s := models.CalendarState{MonthCursorISO: "2020-01-01"}
	for i := 0; i < 120; i++ {
		start := s.MonthCursorISO
		fwd, _ := Reduce(s, NavigateMonth{Delta: 1}, testEnv())
		if fwd.MonthCursorISO[8:] != "01" {
			t.Fatalf("cursor %v not normalized to day 01", fwd.MonthCursorISO)
		}
		back, _ := Reduce(fwd, NavigateMonth{Delta: -1}, testEnv())
		if back.MonthCursorISO != start {
			t.Fatalf("+1 then -1 from %v = %v", start, back.MonthCursorISO)
		}
		s = fwd
	}
}

func TestOpenAddEventFloorsPastDates(t *testing.T) {
	tests := []struct {
		name string
		date string
		want string
	}{
		{"future", "2025-09-25", "2025-09-25"},
		{"today", "2025-09-20", "2025-09-20"},
		{"past", "2025-09-01", "2025-09-20"},
		{"empty keeps selection", "", "2025-09-01"},
		{"malformed keeps selection", "yesterday", "2025-09-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := models.CalendarState{MonthCursorISO: "2025-09-01", SelectedDateISO: "2025-09-01"}
			got, _ := Reduce(s, OpenAddEvent{DateISO: tt.date}, testEnv())
			if got.SelectedDateISO != tt.want {
				t.Errorf("SelectedDateISO = %v, want %v", got.SelectedDateISO, tt.want)
			}
			if !got.Modal.AddEventOpen {
				t.Error("AddEventOpen = false, want true")
			}
		})
	}
}

func TestAddEvent(t *testing.T) {
	s := baseState()
	s.Modal.AddEventOpen = true

	draft := models.EventDraft{DateISO: "2025-09-10", StartTime: "18:00", Court: " Court 1 "}
	event, err := draft.Build("new", "", testNow.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	got, effects := Reduce(s, AddEvent{Event: event}, testEnv())
	if got.Modal.AddEventOpen {
		t.Error("AddEventOpen = true, want false")
	}
	if !reflect.DeepEqual(got.Events, s.Events) {
		t.Error("AddEvent changed events before the feed confirmed it")
	}
	if len(effects) != 1 {
		t.Fatalf("effects = %d, want 1", len(effects))
	}
	c, ok := effects[0].(createOrReplace)
	if !ok {
		t.Fatalf("effect = %T, want createOrReplace", effects[0])
	}
	if c.event.DateISO != "2025-09-20" {
		t.Errorf("DateISO = %v, want floored to 2025-09-20", c.event.DateISO)
	}
	if c.event.EndTime != "" || c.event.HasEnd() {
		t.Errorf("EndTime = %q, want absent", c.event.EndTime)
	}
	if c.event.Court != "Court 1" {
		t.Errorf("Court = %q, want trimmed", c.event.Court)
	}
	if c.event.UpdatedAt != testNow.UnixMilli() {
		t.Errorf("UpdatedAt = %v, want dispatch time %v", c.event.UpdatedAt, testNow.UnixMilli())
	}
	if c.failurePrefix() != "Add failed" || c.compensate() != nil {
		t.Errorf("creation effect = %q %v", c.failurePrefix(), c.compensate())
	}
}

func TestReplaceEventsIsIdempotent(t *testing.T) {
	payload := baseState().Events
	s := models.CalendarState{MonthCursorISO: "2025-09-01", Events: []models.Event{}}

	once, _ := Reduce(s, ReplaceEvents{Events: payload}, testEnv())
	twice, _ := Reduce(once, ReplaceEvents{Events: payload}, testEnv())

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second replace = %+v, want %+v", twice, once)
	}
	if !reflect.DeepEqual(once.Events, payload) {
		t.Errorf("Events = %+v, want payload verbatim", once.Events)
	}

	payload[0].Court = "mutated"
	if once.Events[0].Court == "mutated" {
		t.Error("state aliases the pushed slice")
	}
}

func TestReplaceEventsNilPayload(t *testing.T) {
	got, _ := Reduce(baseState(), ReplaceEvents{}, testEnv())
	if got.Events == nil || len(got.Events) != 0 {
		t.Errorf("Events = %#v, want empty non-nil", got.Events)
	}
}

func TestUpdateEventIsOptimistic(t *testing.T) {
	s := baseState()
	edited := s.Events[0].Clone()
	edited.Court = "Court 9"
	edited.Notes = "moved"

	got, effects := Reduce(s, UpdateEvent{Event: edited}, testEnv())

	want := edited.Clone()
	want.UpdatedAt = testNow.UnixMilli()
	if e := got.Event("e1"); e == nil || !reflect.DeepEqual(*e, want) {
		t.Errorf("Event(e1) = %+v, want %+v", e, want)
	}
	if !got.HasPending("e1") || got.Pending["e1"].Seq != 1 {
		t.Errorf("Pending = %+v, want seq 1 for e1", got.Pending)
	}
	if s.Events[0].Court != "Court 1" || s.Pending != nil {
		t.Error("UpdateEvent mutated its input")
	}
	c, ok := effects[0].(createOrReplace)
	if !ok || c.seq != 1 || c.failurePrefix() != "Update failed" {
		t.Fatalf("effect = %+v, want update write with seq 1", effects[0])
	}
	wantComp := []Action{DiscardPendingEdit{EventID: "e1", Seq: 1}}
	if !reflect.DeepEqual(c.compensate(), wantComp) {
		t.Errorf("compensate() = %v, want %v", c.compensate(), wantComp)
	}
}

func TestUpdateEventUnknownIDOnlyWrites(t *testing.T) {
	s := baseState()
	got, effects := Reduce(s, UpdateEvent{Event: models.Event{ID: "ghost", DateISO: "2025-09-30", StartTime: "10:00", Court: "X"}}, testEnv())
	if len(got.Events) != 2 || got.HasPending("ghost") {
		t.Errorf("state changed for an unlisted event: %+v", got)
	}
	if len(effects) != 1 {
		t.Errorf("effects = %d, want 1", len(effects))
	}
}

func TestPendingEditReconciliation(t *testing.T) {
	s := baseState()
	edited := s.Events[0].Clone()
	edited.Court = "Court 9"
	s, _ = Reduce(s, UpdateEvent{Event: edited}, testEnv())
	editAt := s.Pending["e1"].Event.UpdatedAt

	stale := baseState().Events
	afterStale, _ := Reduce(s, ReplaceEvents{Events: stale}, testEnv())
	if afterStale.Event("e1").Court != "Court 9" {
		t.Errorf("stale push clobbered optimistic edit: %+v", afterStale.Event("e1"))
	}
	if !afterStale.HasPending("e1") {
		t.Error("stale push dropped the pending edit")
	}

	confirmed := baseState().Events
	confirmed[0].Court = "Court 9"
	confirmed[0].UpdatedAt = editAt + 5
	afterConfirm, _ := Reduce(afterStale, ReplaceEvents{Events: confirmed}, testEnv())
	if afterConfirm.HasPending("e1") {
		t.Error("confirming push left the edit pending")
	}
	if !reflect.DeepEqual(afterConfirm.Events, confirmed) {
		t.Errorf("Events = %+v, want confirmed push", afterConfirm.Events)
	}

	gone := baseState().Events[1:]
	afterGone, _ := Reduce(afterStale, ReplaceEvents{Events: gone}, testEnv())
	if afterGone.HasPending("e1") || afterGone.Event("e1") != nil {
		t.Error("edit of a vanished event survived the push")
	}
}

func TestDiscardPendingEdit(t *testing.T) {
	s := baseState()
	original := s.Events[0].Clone()

	first := original.Clone()
	first.Court = "first"
	s, _ = Reduce(s, UpdateEvent{Event: first}, testEnv())

	second := original.Clone()
	second.Court = "second"
	s, _ = Reduce(s, UpdateEvent{Event: second}, Env{Now: testNow.Add(time.Second)})

	// The first write failing must not undo the second edit.
	got, _ := Reduce(s, DiscardPendingEdit{EventID: "e1", Seq: 1}, testEnv())
	if got.Event("e1").Court != "second" || !got.HasPending("e1") {
		t.Errorf("stale discard touched newer edit: %+v", got.Event("e1"))
	}

	got, _ = Reduce(s, DiscardPendingEdit{EventID: "e1", Seq: 2}, testEnv())
	if got.HasPending("e1") {
		t.Error("pending edit not discarded")
	}
	if e := got.Event("e1"); !reflect.DeepEqual(*e, original) {
		t.Errorf("Event(e1) = %+v, want rolled back to %+v", e, original)
	}
}

func TestDeleteEventClearsDetails(t *testing.T) {
	s := baseState()
	s.Modal.DetailsEventID = "e1"
	got, effects := Reduce(s, DeleteEvent{EventID: "e1"}, testEnv())
	if got.Modal.DetailsEventID != "" {
		t.Errorf("DetailsEventID = %q, want cleared", got.Modal.DetailsEventID)
	}
	if len(got.Events) != 2 {
		t.Error("DeleteEvent removed the event before the feed confirmed it")
	}
	if r, ok := effects[0].(remove); !ok || r.id != "e1" || r.failurePrefix() != "Delete failed" {
		t.Errorf("effect = %+v, want delete of e1", effects[0])
	}
}

func TestAttendeeActionsOnlyWrite(t *testing.T) {
	s := baseState()
	ana := models.Attendee{ID: "a2", Name: "Ana", Status: models.AttendeeMaybe}

	got, effects := Reduce(s, AddAttendee{EventID: "e1", Attendee: ana}, testEnv())
	if !reflect.DeepEqual(got, s) {
		t.Error("AddAttendee changed local state")
	}
	if a, ok := effects[0].(addAttendee); !ok || a.attendee != ana || a.failurePrefix() != "Add attendee failed" {
		t.Errorf("effect = %+v", effects[0])
	}

	_, effects = Reduce(s, RemoveAttendee{EventID: "e1", AttendeeID: "a2"}, testEnv())
	if r, ok := effects[0].(removeAttendee); !ok || r.attendeeID != "a2" || r.failurePrefix() != "Remove attendee failed" {
		t.Errorf("effect = %+v", effects[0])
	}
}

func TestToastIDs(t *testing.T) {
	s := baseState()
	s, _ = Reduce(s, ShowNotification{Message: "Add failed: boom", ID: 1}, testEnv())
	s, _ = Reduce(s, ShowNotification{Message: "Event updated", ID: 2}, testEnv())

	got, _ := Reduce(s, ClearNotification{ID: 1}, testEnv())
	if got.ToastMessage != "Event updated" {
		t.Errorf("older timer cleared newer toast: %q", got.ToastMessage)
	}
	got, _ = Reduce(got, ClearNotification{ID: 2}, testEnv())
	if got.ToastMessage != "" || got.ToastID != 0 {
		t.Errorf("toast = %q/%d, want cleared", got.ToastMessage, got.ToastID)
	}

	got, _ = Reduce(s, ClearNotification{}, testEnv())
	if got.ToastMessage != "" {
		t.Error("ClearNotification{0} did not dismiss")
	}
}

func TestModalActions(t *testing.T) {
	s := baseState()
	s, _ = Reduce(s, OpenDetails{EventID: "e2"}, testEnv())
	if d := s.DetailsEvent(); d == nil || d.ID != "e2" {
		t.Fatalf("DetailsEvent() = %v, want e2", d)
	}
	s, _ = Reduce(s, CloseDetails{}, testEnv())
	if s.Modal.DetailsEventID != "" {
		t.Error("CloseDetails left a target")
	}
	s, _ = Reduce(s, OpenAddEvent{DateISO: "2025-09-28"}, testEnv())
	s, _ = Reduce(s, CloseAddEvent{}, testEnv())
	if s.Modal.AddEventOpen {
		t.Error("CloseAddEvent left the dialog open")
	}
	s, _ = Reduce(s, SetSelectedDate{DateISO: "2025-09-02"}, testEnv())
	if s.SelectedDateISO != "2025-09-02" {
		t.Errorf("SelectedDateISO = %v", s.SelectedDateISO)
	}
}

// allActions holds one value of every Action variant.
var allActions = []Action{
	ReplaceEvents{},
	NavigateMonth{Delta: 1},
	SetSelectedDate{DateISO: "2025-09-21"},
	OpenAddEvent{DateISO: "2025-09-21"},
	CloseAddEvent{},
	AddEvent{Event: models.Event{ID: "x"}},
	OpenDetails{EventID: "e1"},
	CloseDetails{},
	AddAttendee{EventID: "e1"},
	RemoveAttendee{EventID: "e1"},
	DeleteEvent{EventID: "e1"},
	UpdateEvent{Event: models.Event{ID: "e1"}},
	ShowNotification{Message: "hi", ID: 1},
	ClearNotification{},
	DiscardPendingEdit{EventID: "e1"},
}

func TestReduceHandlesEveryAction(t *testing.T) {
	seen := make(map[string]bool)
	for _, a := range allActions {
		if _, _, ok := reduce(baseState(), a, testEnv()); !ok {
			t.Errorf("reduce(%T) not handled", a)
		}
		seen[a.actionName()] = true
	}
	if len(seen) != len(allActions) {
		t.Errorf("action names not unique: %v", seen)
	}
}

func TestReduceIgnoresUnknownActions(t *testing.T) {
	for _, a := range []Action{nil, (*ReplaceEvents)(nil), &NavigateMonth{Delta: 1}} {
		s := baseState()
		got, effects, ok := reduce(s, a, testEnv())
		if ok || effects != nil || !reflect.DeepEqual(got, s) {
			t.Errorf("reduce(%#v) = %v, %v, %v; want unchanged", a, got, effects, ok)
		}
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	for _, a := range allActions {
		s := baseState()
		s.Pending = map[string]models.PendingEdit{"e1": {Seq: 1, Event: s.Events[0].Clone(), Base: s.Events[0].Clone()}}
		before := s.Clone()
		Reduce(s, a, testEnv())
		if !reflect.DeepEqual(s, before) {
			t.Errorf("Reduce(%T) mutated its input", a)
		}
	}
}

func FuzzReduce(f *testing.F) {
	f.Add(0, 1, "2025-09-01", "e1", "18:00", "Court 1", int64(0))
	f.Add(11, -1, "", "", "", "", int64(-1))
	f.Add(3, 0, "not-a-date", "e2", "99:99", " ", int64(1<<62))
	f.Fuzz(func(t *testing.T, kind, delta int, date, id, start, court string, updatedAt int64) {
		event := models.Event{ID: id, DateISO: date, StartTime: start, Court: court, UpdatedAt: updatedAt}
		var a Action
		switch n := len(allActions) + 1; ((kind % n) + n) % n {
		case 0:
			a = ReplaceEvents{Events: []models.Event{event, event}}
		case 1:
			a = NavigateMonth{Delta: delta}
		case 2:
			a = SetSelectedDate{DateISO: date}
		case 3:
			a = OpenAddEvent{DateISO: date}
		case 4:
			a = AddEvent{Event: event}
		case 5:
			a = UpdateEvent{Event: event}
		case 6:
			a = DeleteEvent{EventID: id}
		case 7:
			a = AddAttendee{EventID: id, Attendee: models.Attendee{ID: start, Name: court}}
		case 8:
			a = RemoveAttendee{EventID: id, AttendeeID: start}
		case 9:
			a = ShowNotification{Message: court, ID: uint64(updatedAt)}
		case 10:
			a = ClearNotification{ID: uint64(delta)}
		case 11:
			a = DiscardPendingEdit{EventID: id, Seq: uint64(delta)}
		case 12:
			a = OpenDetails{EventID: id}
		default:
			a = nil
		}

		s := baseState()
		s.MonthCursorISO = date
		for i := 0; i < 3; i++ {
			s, _ = Reduce(s, a, Env{Now: testNow})
		}
		if s.Events == nil {
			t.Errorf("Events became nil after %T", a)
		}
	})
}
