package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/Kerhoff/courtcal/internal/metrics"
	"github.com/Kerhoff/courtcal/internal/models"
	"github.com/Kerhoff/courtcal/internal/repository"
	"github.com/Kerhoff/courtcal/internal/storage"
)

// ErrStopped is returned by Dispatch once Run has returned.
var ErrStopped = errors.New("calendar store stopped")

const (
	DefaultToastDelay    = 3 * time.Second
	DefaultEffectTimeout = 30 * time.Second

	intentBuffer = 64
)

// Notifier shows a transient message to the user.
type Notifier interface {
	Notify(msg string)
}

type envelope struct {
	action Action
	done   chan struct{}
}

// Store owns the calendar state. Every transition runs on the Run goroutine,
// one at a time, in the order intents were queued.
type Store struct {
	logger        *logrus.Logger
	repo          repository.EventRepository
	snapshots     storage.Store
	now           func() time.Time
	toastDelay    time.Duration
	effectTimeout time.Duration
	notifier      Notifier
	onTransition  func(Action, models.CalendarState)

	intents chan envelope
	stopped chan struct{}

	mu    sync.RWMutex
	state models.CalendarState

	toastSeq      atomic.Uint64
	closed        atomic.Bool
	running       atomic.Bool
	effects       sync.WaitGroup
	restoredToast uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithToastDelay sets how long a notification stays up.
func WithToastDelay(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.toastDelay = d
		}
	}
}

// WithEffectTimeout bounds each remote mutation.
func WithEffectTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.effectTimeout = d
		}
	}
}

// WithNotifier routes effect failures to n instead of the store's own toast.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithTransitionHook calls fn on the Run goroutine after every applied
// transition with the action and a copy of the new state.
func WithTransitionHook(fn func(Action, models.CalendarState)) Option {
	return func(s *Store) { s.onTransition = fn }
}

// NewStore hydrates the state from snapshots, falling back to today's month
// with today selected.
func NewStore(logger *logrus.Logger, repo repository.EventRepository, snapshots storage.Store, opts ...Option) *Store {
	s := &Store{
		logger:        logger,
		repo:          repo,
		snapshots:     snapshots,
		now:           time.Now,
		toastDelay:    DefaultToastDelay,
		effectTimeout: DefaultEffectTimeout,
		intents:       make(chan envelope, intentBuffer),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = s
	}

	snap := snapshots.Load(storage.NewSnapshot(models.DefaultState(s.now())))
	s.state = snap.CalendarState
	s.state.ToastID, s.state.EditSeq, s.state.Pending = 0, 0, nil
	if s.state.ToastMessage != "" {
		// A toast that survived a restart still expires.
		s.state.ToastID = s.toastSeq.Inc()
		s.restoredToast = s.state.ToastID
	}

	logger.WithFields(logrus.Fields{
		"month":  s.state.MonthCursorISO,
		"events": len(s.state.Events),
	}).Debug("Calendar state hydrated")
	return s
}

// Run processes intents until ctx is done. It must be called exactly once.
func (s *Store) Run(ctx context.Context) error {
	if !s.running.CAS(false, true) {
		return errors.New("calendar store already running")
	}
	defer func() {
		s.closed.Store(true)
		close(s.stopped)
	}()

	if s.restoredToast != 0 {
		id := s.restoredToast
		time.AfterFunc(s.toastDelay, func() { s.post(ClearNotification{ID: id}) })
	}

	s.logger.Info("Calendar store started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Calendar store stopped")
			return ctx.Err()
		case env := <-s.intents:
			s.apply(env.action)
			if env.done != nil {
				close(env.done)
			}
		}
	}
}

// Dispatch queues a and waits until its transition has been applied.
func (s *Store) Dispatch(ctx context.Context, a Action) error {
	if s.closed.Load() {
		return ErrStopped
	}
	done := make(chan struct{})
	select {
	case s.intents <- envelope{action: a, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	}
}

// post queues a without waiting. Effect goroutines, timers and the feed use
// it; it must never be called from the Run goroutine while the queue is full.
func (s *Store) post(a Action) {
	select {
	case s.intents <- envelope{action: a}:
	case <-s.stopped:
	}
}

// Post queues a without waiting for the transition.
func (s *Store) Post(a Action) {
	s.post(a)
}

// State returns a deep copy of the current state.
func (s *Store) State() models.CalendarState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Now is the store's clock.
func (s *Store) Now() time.Time {
	return s.now()
}

// Wait blocks until every in-flight remote mutation has finished.
func (s *Store) Wait() {
	s.effects.Wait()
}

// Notify shows msg for the default delay.
func (s *Store) Notify(msg string) {
	s.NotifyFor(msg, s.toastDelay)
}

// NotifyFor shows msg and clears it after d, unless a newer toast replaced
// it in the meantime.
func (s *Store) NotifyFor(msg string, d time.Duration) {
	id := s.toastSeq.Inc()
	s.post(ShowNotification{Message: msg, ID: id})
	time.AfterFunc(d, func() { s.post(ClearNotification{ID: id}) })
}

func (s *Store) apply(a Action) {
	s.mu.RLock()
	current := s.state
	s.mu.RUnlock()

	next, effects, ok := reduce(current, a, Env{Now: s.now()})
	if !ok {
		s.logger.WithField("action", fmt.Sprintf("%T", a)).Warn("Ignoring unknown action")
		return
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	name := a.actionName()
	metrics.ActionsTotal.WithLabelValues(name).Inc()
	metrics.PendingEdits.Set(float64(len(next.Pending)))
	if _, isFeed := a.(ReplaceEvents); isFeed {
		metrics.FeedPushesTotal.Inc()
	}

	if err := s.snapshots.Save(storage.NewSnapshot(next)); err != nil {
		metrics.SnapshotSaveFailuresTotal.Inc()
		s.logger.WithError(err).WithField("action", name).Warn("Failed to persist calendar snapshot")
	}

	for _, e := range effects {
		s.run(e)
	}

	if s.onTransition != nil {
		s.onTransition(a, next.Clone())
	}
}

// run executes e on its own goroutine. Failures are logged, compensated and
// surfaced through the notifier; they are never retried.
func (s *Store) run(e Effect) {
	metrics.EffectsTotal.WithLabelValues(e.Name()).Inc()
	s.effects.Add(1)
	go func() {
		defer s.effects.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.effectTimeout)
		defer cancel()

		err := e.apply(ctx, s.repo)
		if err == nil {
			return
		}
		metrics.EffectFailuresTotal.WithLabelValues(e.Name()).Inc()
		s.logger.WithError(err).WithField("effect", e.Name()).Error("Remote mutation failed")

		for _, c := range e.compensate() {
			s.post(c)
		}
		s.notifier.Notify(fmt.Sprintf("%s: %v", e.failurePrefix(), err))
	}()
}
