// Package memory is an in-process event store. It backs the calendar when no
// database is configured and stands in for Postgres in tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Kerhoff/courtcal/internal/models"
	"github.com/Kerhoff/courtcal/internal/repository"
)

type eventRepository struct {
	// deliver is held across reading the list and calling subscribers, so
	// pushes reach every subscriber in the order the list changed. Subscribers
	// must not write back to the repository from onChange.
	deliver sync.Mutex

	mu       sync.Mutex
	events   map[string]models.Event
	subs     map[int]func([]models.Event)
	nextSub  int
	identity repository.IdentityFunc
	now      func() time.Time
}

// NewEventRepository creates an empty in-memory event store.
func NewEventRepository(identity repository.IdentityFunc) repository.EventRepository {
	if identity == nil {
		identity = repository.StaticIdentity("")
	}
	return &eventRepository{
		events:   make(map[string]models.Event),
		subs:     make(map[int]func([]models.Event)),
		identity: identity,
		now:      time.Now,
	}
}

func (r *eventRepository) Subscribe(ctx context.Context, onChange func([]models.Event)) (func(), error) {
	r.deliver.Lock()
	defer r.deliver.Unlock()

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = onChange
	current := r.sortedLocked()
	r.mu.Unlock()

	onChange(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}, nil
}

func (r *eventRepository) CreateOrReplace(ctx context.Context, event models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	event = event.Clone()
	if event.Attendees == nil {
		event.Attendees = []models.Attendee{}
	}
	if event.UpdatedAt == 0 {
		event.UpdatedAt = r.now().UnixMilli()
	}
	r.stampWriter(ctx, &event)

	r.mu.Lock()
	r.events[event.ID] = event
	r.mu.Unlock()

	r.publish()
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	_, ok := r.events[id]
	delete(r.events, id)
	r.mu.Unlock()

	if ok {
		r.publish()
	}
	return nil
}

func (r *eventRepository) AddAttendee(ctx context.Context, eventID string, attendee models.Attendee) error {
	return r.modifyRoster(ctx, eventID, func(roster []models.Attendee) []models.Attendee {
		return append(roster, attendee)
	})
}

func (r *eventRepository) RemoveAttendee(ctx context.Context, eventID, attendeeID string) error {
	return r.modifyRoster(ctx, eventID, func(roster []models.Attendee) []models.Attendee {
		return slices.DeleteFunc(roster, func(a models.Attendee) bool { return a.ID == attendeeID })
	})
}

func (r *eventRepository) List(ctx context.Context, filters repository.EventFilters) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	all := r.sortedLocked()
	r.mu.Unlock()

	out := make([]models.Event, 0, len(all))
	for _, e := range all {
		if !filters.Match(e) {
			continue
		}
		out = append(out, e)
		if filters.Limit > 0 && len(out) == filters.Limit {
			break
		}
	}
	return out, nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[id]
	if !ok {
		return nil, nil
	}
	out := e.Clone()
	return &out, nil
}

// modifyRoster is the read-modify-write used by both attendee operations.
func (r *eventRepository) modifyRoster(ctx context.Context, eventID string, fn func([]models.Attendee) []models.Attendee) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	e, ok := r.events[eventID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	e = e.Clone()
	e.Attendees = fn(e.Attendees)
	e.UpdatedAt = r.now().UnixMilli()
	r.stampWriter(ctx, &e)
	r.events[eventID] = e
	r.mu.Unlock()

	r.publish()
	return nil
}

func (r *eventRepository) stampWriter(ctx context.Context, e *models.Event) {
	if who := r.identity(ctx); who != "" {
		e.UpdatedBy = who
	}
}

// publish delivers the current list to every subscriber outside r.mu.
func (r *eventRepository) publish() {
	r.deliver.Lock()
	defer r.deliver.Unlock()

	r.mu.Lock()
	current := r.sortedLocked()
	subs := make([]func([]models.Event), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(models.CloneEvents(current))
	}
}

func (r *eventRepository) sortedLocked() []models.Event {
	out := make([]models.Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Clone())
	}
	models.SortEvents(out)
	return out
}
