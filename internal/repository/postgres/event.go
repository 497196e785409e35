package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/courtcal/internal/models"
	"github.com/Kerhoff/courtcal/internal/repository"
)

// NotifyChannel is raised by the events trigger on every row change.
const NotifyChannel = "events_changed"

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
	refreshTimeout       = 15 * time.Second
)

const selectEvents = `
	SELECT id, date_iso, start_time, end_time, court, notes, attendees, updated_at, updated_by
	FROM events`

type eventRepository struct {
	db       *sqlx.DB
	dsn      string
	logger   *logrus.Logger
	identity repository.IdentityFunc
	tracer   tracer
	now      func() time.Time
}

// Options configures the Postgres event repository.
type Options struct {
	// DSN opens the dedicated LISTEN connection of the change feed.
	DSN      string
	Identity repository.IdentityFunc
	Tracing  bool
}

// NewEventRepository creates an event repository over db.
func NewEventRepository(db *sqlx.DB, logger *logrus.Logger, opts Options) repository.EventRepository {
	if opts.Identity == nil {
		opts.Identity = repository.StaticIdentity("")
	}
	return &eventRepository{
		db:       db,
		dsn:      opts.DSN,
		logger:   logger,
		identity: opts.Identity,
		tracer:   tracer{enabled: opts.Tracing},
		now:      time.Now,
	}
}

func (r *eventRepository) Subscribe(ctx context.Context, onChange func([]models.Event)) (func(), error) {
	listener := pq.NewListener(r.dsn, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			r.logger.WithError(err).WithField("listener_event", ev).Warn("Event feed listener problem")
		}
	})
	if err := listener.Listen(NotifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}

	events, err := r.List(ctx, repository.EventFilters{})
	if err != nil {
		listener.Close()
		return nil, err
	}
	onChange(events)

	done := make(chan struct{})
	go r.watch(listener, onChange, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			if err := listener.Close(); err != nil {
				r.logger.WithError(err).Debug("Failed to close event feed listener")
			}
		})
	}, nil
}

// watch re-reads the collection after each burst of notifications. A nil
// notification means the listener reconnected and may have missed some, so
// it triggers a re-read too.
func (r *eventRepository) watch(listener *pq.Listener, onChange func([]models.Event), done <-chan struct{}) {
	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					r.logger.WithError(err).Debug("Event feed ping failed")
				}
			}()
		case _, ok := <-listener.Notify:
			if !ok {
				return
			}
			if !drain(listener.Notify) {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			events, err := r.List(ctx, repository.EventFilters{})
			cancel()
			if err != nil {
				r.logger.WithError(err).Error("Failed to refresh events after change notification")
				continue
			}

			select {
			case <-done:
				return
			default:
				onChange(events)
			}
		}
	}
}

// drain discards queued notifications. It returns false once ch is closed.
func drain(ch <-chan *pq.Notification) bool {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}

func (r *eventRepository) CreateOrReplace(ctx context.Context, event models.Event) (err error) {
	ctx, done := r.tracer.begin(ctx, "EventRepository.CreateOrReplace")
	defer func() { done(err) }()

	if event.UpdatedAt == 0 {
		event.UpdatedAt = r.now().UnixMilli()
	}
	if who := r.identity(ctx); who != "" {
		event.UpdatedBy = who
	}

	query := `
		INSERT INTO events (id, date_iso, start_time, end_time, court, notes, attendees, updated_at, updated_by)
		VALUES (:id, :date_iso, :start_time, :end_time, :court, :notes, :attendees, :updated_at, :updated_by)
		ON CONFLICT (id) DO UPDATE SET
			date_iso = EXCLUDED.date_iso,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			court = EXCLUDED.court,
			notes = EXCLUDED.notes,
			attendees = EXCLUDED.attendees,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by`

	if _, err = r.db.NamedExecContext(ctx, query, toRow(event)); err != nil {
		return fmt.Errorf("failed to save event %s: %w", event.ID, err)
	}
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, done := r.tracer.begin(ctx, "EventRepository.Delete")
	defer func() { done(err) }()

	if _, err = r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	return nil
}

func (r *eventRepository) AddAttendee(ctx context.Context, eventID string, attendee models.Attendee) error {
	return r.modifyRoster(ctx, "EventRepository.AddAttendee", eventID, func(roster attendeeList) attendeeList {
		return append(roster, attendee)
	})
}

func (r *eventRepository) RemoveAttendee(ctx context.Context, eventID, attendeeID string) error {
	return r.modifyRoster(ctx, "EventRepository.RemoveAttendee", eventID, func(roster attendeeList) attendeeList {
		return slices.DeleteFunc(roster, func(a models.Attendee) bool { return a.ID == attendeeID })
	})
}

// modifyRoster locks the event row, rewrites its roster and commits. A
// missing event is not an error.
func (r *eventRepository) modifyRoster(ctx context.Context, name, eventID string, fn func(attendeeList) attendeeList) (err error) {
	ctx, done := r.tracer.begin(ctx, name)
	defer func() { done(err) }()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.WithError(rbErr).Warn("Failed to roll back roster update")
			}
		}
	}()

	var roster attendeeList
	err = tx.GetContext(ctx, &roster, `SELECT attendees FROM events WHERE id = $1 FOR UPDATE`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read roster of %s: %w", eventID, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE events SET attendees = $2, updated_at = $3, updated_by = COALESCE($4, updated_by) WHERE id = $1`,
		eventID, fn(roster), r.now().UnixMilli(), nullString(r.identity(ctx)),
	)
	if err != nil {
		return fmt.Errorf("failed to update roster of %s: %w", eventID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit roster of %s: %w", eventID, err)
	}
	return nil
}

func (r *eventRepository) List(ctx context.Context, filters repository.EventFilters) (_ []models.Event, err error) {
	ctx, done := r.tracer.begin(ctx, "EventRepository.List")
	defer func() { done(err) }()

	query := selectEvents + " WHERE TRUE"
	args := []interface{}{}
	argIdx := 1

	if filters.From != nil {
		query += fmt.Sprintf(" AND date_iso >= $%d", argIdx)
		args = append(args, *filters.From)
		argIdx++
	}
	if filters.To != nil {
		query += fmt.Sprintf(" AND date_iso <= $%d", argIdx)
		args = append(args, *filters.To)
		argIdx++
	}

	query += " ORDER BY date_iso ASC, start_time ASC, id ASC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
	}

	var rows []eventRow
	if err = r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	events := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toModel())
	}
	return events, nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (_ *models.Event, err error) {
	ctx, done := r.tracer.begin(ctx, "EventRepository.GetByID")
	defer func() { done(err) }()

	var row eventRow
	err = r.db.GetContext(ctx, &row, selectEvents+" WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}

	event := row.toModel()
	return &event, nil
}
