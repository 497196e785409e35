package core

import "github.com/Kerhoff/courtcal/internal/models"

// Action is an intent applied to the calendar state. The set of actions is
// closed: only the types in this file implement it.
type Action interface {
	actionName() string
}

// ReplaceEvents carries a full feed push. It is ground truth for every event
// without an unconfirmed optimistic edit.
type ReplaceEvents struct {
	Events []models.Event
}

// NavigateMonth moves the visible month by Delta calendar months.
type NavigateMonth struct {
	Delta int
}

// SetSelectedDate selects a day. An empty date clears the selection.
type SetSelectedDate struct {
	DateISO string
}

// OpenAddEvent opens the creation dialog for a day. Days before today are
// moved forward to today.
type OpenAddEvent struct {
	DateISO string
}

type CloseAddEvent struct{}

// AddEvent closes the creation dialog and writes a fully built event. The
// event shows up once the feed confirms it.
type AddEvent struct {
	Event models.Event
}

type OpenDetails struct {
	EventID string
}

type CloseDetails struct{}

// AddAttendee appends to an event's roster remotely. Local state waits for
// the feed.
type AddAttendee struct {
	EventID  string
	Attendee models.Attendee
}

type RemoveAttendee struct {
	EventID    string
	AttendeeID string
}

// DeleteEvent clears the detail dialog and deletes the event remotely.
type DeleteEvent struct {
	EventID string
}

// UpdateEvent replaces an event optimistically and writes it remotely.
type UpdateEvent struct {
	Event models.Event
}

// ShowNotification sets the toast. ID ties a later ClearNotification to this
// toast.
type ShowNotification struct {
	Message string
	ID      uint64
}

// ClearNotification clears the toast with the given ID. ID 0 clears
// whatever is showing.
type ClearNotification struct {
	ID uint64
}

// DiscardPendingEdit rolls back the optimistic edit Seq of EventID after its
// remote write failed. Newer edits of the same event are left alone.
type DiscardPendingEdit struct {
	EventID string
	Seq     uint64
}

func (ReplaceEvents) actionName() string      { return "replace_events" }
func (NavigateMonth) actionName() string      { return "navigate_month" }
func (SetSelectedDate) actionName() string    { return "set_selected_date" }
func (OpenAddEvent) actionName() string       { return "open_add_event" }
func (CloseAddEvent) actionName() string      { return "close_add_event" }
func (AddEvent) actionName() string           { return "add_event" }
func (OpenDetails) actionName() string        { return "open_details" }
func (CloseDetails) actionName() string       { return "close_details" }
func (AddAttendee) actionName() string        { return "add_attendee" }
func (RemoveAttendee) actionName() string     { return "remove_attendee" }
func (DeleteEvent) actionName() string        { return "delete_event" }
func (UpdateEvent) actionName() string        { return "update_event" }
func (ShowNotification) actionName() string   { return "show_notification" }
func (ClearNotification) actionName() string  { return "clear_notification" }
func (DiscardPendingEdit) actionName() string { return "discard_pending_edit" }
