package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/courtcal/internal/core"
	"github.com/Kerhoff/courtcal/internal/dates"
	"github.com/Kerhoff/courtcal/internal/models"
	"github.com/Kerhoff/courtcal/internal/repository"
)

// Toast messages shown after successful commands.
const (
	MsgEventUpdated = "Event updated"
	MsgEventDeleted = "Event deleted"

	updatedToastDelay = 2 * time.Second
	deletedToastDelay = 3 * time.Second
)

// Calendar is the state core as the service drives it.
type Calendar interface {
	Dispatch(ctx context.Context, a core.Action) error
	Post(a core.Action)
	State() models.CalendarState
	Now() time.Time
	NotifyFor(msg string, d time.Duration)
}

// Service validates user commands and turns them into calendar intents.
// Every surface (HTTP API, Telegram bot) goes through it.
type Service struct {
	logger   *logrus.Logger
	calendar Calendar
	Events   repository.EventRepository
	identity models.Identity
	newID    func() string

	mu          sync.Mutex
	unsubscribe func()
	cron        *cron.Cron
	closers     []func() error
}

// New creates a new Service with all required dependencies.
func New(logger *logrus.Logger, calendar Calendar, events repository.EventRepository, identity models.Identity) *Service {
	return &Service{
		logger:   logger,
		calendar: calendar,
		Events:   events,
		identity: identity,
		newID:    uuid.NewString,
	}
}

// ResolveIdentity returns the configured identity, or a fresh anonymous one
// when id is empty.
func ResolveIdentity(id string) models.Identity {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Identity{ID: "anon-" + uuid.NewString(), Anonymous: true}
	}
	return models.Identity{ID: id, Anonymous: models.IsAnonymousID(id)}
}

// Identity returns who this process writes as.
func (s *Service) Identity() models.Identity {
	return s.identity
}

// Now is the calendar's clock.
func (s *Service) Now() time.Time {
	return s.calendar.Now()
}

func (s *Service) today() string {
	return dates.ToISODate(s.calendar.Now())
}

// CreateEvent validates the draft and adds a new event. The event becomes
// visible once the feed confirms it.
func (s *Service) CreateEvent(ctx context.Context, draft models.EventDraft) (*models.Event, error) {
	event, err := draft.Build(s.newID(), s.today(), s.calendar.Now())
	if err != nil {
		return nil, err
	}
	if err := s.calendar.Dispatch(ctx, core.AddEvent{Event: event}); err != nil {
		return nil, fmt.Errorf("failed to add event: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"event_id": event.ID,
		"date":     event.DateISO,
		"court":    event.Court,
	}).Info("Event created")
	return &event, nil
}

// UpdateEvent replaces the editable fields of a known event. Its roster is
// kept. Moving an event to a past date is rejected; an event already in the
// past may still be edited in place.
func (s *Service) UpdateEvent(ctx context.Context, id string, draft models.EventDraft) (*models.Event, error) {
	state := s.calendar.State()
	base := state.Event(id)
	if base == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrEventNotFound, id)
	}

	updated, err := draft.Apply(*base, s.calendar.Now())
	if err != nil {
		return nil, err
	}
	if today := s.today(); updated.DateISO != base.DateISO && updated.DateISO < today {
		return nil, fmt.Errorf("%w: %s is before %s", models.ErrPastDate, updated.DateISO, today)
	}

	if err := s.calendar.Dispatch(ctx, core.UpdateEvent{Event: updated}); err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", id, err)
	}
	s.calendar.NotifyFor(MsgEventUpdated, updatedToastDelay)

	s.logger.WithField("event_id", id).Info("Event updated")
	return &updated, nil
}

// DeleteEvent closes the detail dialog and deletes the event.
func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	if err := s.calendar.Dispatch(ctx, core.DeleteEvent{EventID: id}); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	s.calendar.NotifyFor(MsgEventDeleted, deletedToastDelay)

	s.logger.WithField("event_id", id).Info("Event deleted")
	return nil
}

// AddAttendee adds a person to a known event's roster.
func (s *Service) AddAttendee(ctx context.Context, eventID, name string, status models.AttendeeStatus) (*models.Attendee, error) {
	state := s.calendar.State()
	if state.Event(eventID) == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrEventNotFound, eventID)
	}

	attendee, err := models.NewAttendee(s.newID(), name, status)
	if err != nil {
		return nil, err
	}
	if err := s.calendar.Dispatch(ctx, core.AddAttendee{EventID: eventID, Attendee: attendee}); err != nil {
		return nil, fmt.Errorf("failed to add attendee to %s: %w", eventID, err)
	}
	return &attendee, nil
}

// RemoveAttendee drops an attendee from an event's roster.
func (s *Service) RemoveAttendee(ctx context.Context, eventID, attendeeID string) error {
	if err := s.calendar.Dispatch(ctx, core.RemoveAttendee{EventID: eventID, AttendeeID: attendeeID}); err != nil {
		return fmt.Errorf("failed to remove attendee from %s: %w", eventID, err)
	}
	return nil
}

// OpenAddEvent opens the creation dialog for dateISO, or for the selected
// date when dateISO is empty. Past dates are moved to today.
func (s *Service) OpenAddEvent(ctx context.Context, dateISO string) error {
	dateISO = strings.TrimSpace(dateISO)
	if dateISO == "" {
		state := s.calendar.State()
		dateISO = state.SelectedDateISO
	}
	if dateISO != "" && !dates.IsISODate(dateISO) {
		return fmt.Errorf("%w: %q", models.ErrInvalidDate, dateISO)
	}
	if today := s.today(); dateISO == "" || dateISO < today {
		dateISO = today
	}
	return s.calendar.Dispatch(ctx, core.OpenAddEvent{DateISO: dateISO})
}

func (s *Service) CloseAddEvent(ctx context.Context) error {
	return s.calendar.Dispatch(ctx, core.CloseAddEvent{})
}

// OpenDetails opens the detail dialog of a known event.
func (s *Service) OpenDetails(ctx context.Context, id string) error {
	state := s.calendar.State()
	if state.Event(id) == nil {
		return fmt.Errorf("%w: %s", models.ErrEventNotFound, id)
	}
	return s.calendar.Dispatch(ctx, core.OpenDetails{EventID: id})
}

func (s *Service) CloseDetails(ctx context.Context) error {
	return s.calendar.Dispatch(ctx, core.CloseDetails{})
}

// NavigateMonth moves the visible month by delta months.
func (s *Service) NavigateMonth(ctx context.Context, delta int) error {
	return s.calendar.Dispatch(ctx, core.NavigateMonth{Delta: delta})
}

// SelectDate selects a day. An empty date clears the selection.
func (s *Service) SelectDate(ctx context.Context, dateISO string) error {
	dateISO = strings.TrimSpace(dateISO)
	if dateISO != "" && !dates.IsISODate(dateISO) {
		return fmt.Errorf("%w: %q", models.ErrInvalidDate, dateISO)
	}
	return s.calendar.Dispatch(ctx, core.SetSelectedDate{DateISO: dateISO})
}

// DismissNotification clears whatever toast is showing.
func (s *Service) DismissNotification(ctx context.Context) error {
	return s.calendar.Dispatch(ctx, core.ClearNotification{})
}

// Snapshot returns a copy of the current calendar state.
func (s *Service) Snapshot() models.CalendarState {
	return s.calendar.State()
}

// ListEvents reads confirmed events from the remote store. from and to are
// inclusive YYYY-MM-DD bounds, empty for unbounded; limit 0 means no limit.
func (s *Service) ListEvents(ctx context.Context, from, to string, limit int) ([]models.Event, error) {
	var filters repository.EventFilters
	for _, bound := range []struct {
		value string
		dst   **string
	}{{from, &filters.From}, {to, &filters.To}} {
		v := strings.TrimSpace(bound.value)
		if v == "" {
			continue
		}
		if !dates.IsISODate(v) {
			return nil, fmt.Errorf("%w: %q", models.ErrInvalidDate, v)
		}
		*bound.dst = &v
	}
	if filters.From != nil && filters.To != nil && *filters.From > *filters.To {
		return nil, fmt.Errorf("%w: %s > %s", models.ErrInvalidRange, *filters.From, *filters.To)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidLimit, limit)
	}
	filters.Limit = limit

	events, err := s.Events.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// ListMonth reads the confirmed events of the month starting at monthISO.
func (s *Service) ListMonth(ctx context.Context, monthISO string) ([]models.Event, error) {
	start, err := dates.ParseISODate(monthISO)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidDate, monthISO)
	}
	start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return s.ListEvents(ctx, dates.ToISODate(start), dates.ToISODate(end), 0)
}

// EventsOn lists the events of one day.
func (s *Service) EventsOn(dateISO string) []models.Event {
	state := s.calendar.State()
	return state.EventsOn(dateISO)
}

// AddCloser registers a resource released by Close.
func (s *Service) AddCloser(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Close stops background jobs and releases registered resources, reporting
// every failure.
func (s *Service) Close() error {
	s.mu.Lock()
	unsubscribe, c, closers := s.unsubscribe, s.cron, s.closers
	s.unsubscribe, s.cron, s.closers = nil, nil, nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	if unsubscribe != nil {
		unsubscribe()
	}

	var result *multierror.Error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
