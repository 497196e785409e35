package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Kerhoff/courtcal/internal/core"
	"github.com/Kerhoff/courtcal/internal/models"
	"github.com/Kerhoff/courtcal/internal/repository"
	"github.com/Kerhoff/courtcal/internal/repository/memory"
	"github.com/Kerhoff/courtcal/internal/storage"
	"github.com/Kerhoff/courtcal/pkg/logger"
)

var testNow = time.Date(2025, 9, 20, 17, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, repo repository.EventRepository) (*Service, *core.Store) {
	t.Helper()
	if repo == nil {
		repo = memory.NewEventRepository(repository.StaticIdentity("anon-test"))
	}
	store := core.NewStore(logger.NewNop(), repo, storage.NopStore{},
		core.WithClock(func() time.Time { return testNow }),
		core.WithToastDelay(time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = store.Run(ctx)
		close(done)
	}()

	svc := New(logger.NewNop(), store, repo, ResolveIdentity("anon-test"))
	svc.newID = sequentialIDs()
	go svc.StartFeedSync(ctx)

	t.Cleanup(func() {
		cancel()
		<-done
		store.Wait()
		_ = svc.Close()
	})
	return svc, store
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return "id-" + strconv.FormatInt(n.Add(1), 10)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func createEvent(t *testing.T, svc *Service, draft models.EventDraft) *models.Event {
	t.Helper()
	event, err := svc.CreateEvent(context.Background(), draft)
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	eventually(t, "event "+event.ID+" in state", func() bool {
		st := svc.Snapshot()
		return st.Event(event.ID) != nil
	})
	return event
}

func TestCreateEventValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)

	tests := []struct {
		name    string
		draft   models.EventDraft
		wantErr error
	}{
		{"empty court", models.EventDraft{DateISO: "2025-09-21", StartTime: "18:00", Court: "   "}, models.ErrCourtRequired},
		{"bad start", models.EventDraft{DateISO: "2025-09-21", StartTime: "25:00", Court: "C"}, models.ErrInvalidTime},
		{"end before start", models.EventDraft{DateISO: "2025-09-21", StartTime: "18:00", EndTime: "17:00", Court: "C"}, models.ErrEndNotAfterStart},
		{"end equals start", models.EventDraft{DateISO: "2025-09-21", StartTime: "18:00", EndTime: "18:00", Court: "C"}, models.ErrEndNotAfterStart},
		{"past date", models.EventDraft{DateISO: "2025-09-19", StartTime: "18:00", Court: "C"}, models.ErrPastDate},
		{"bad date", models.EventDraft{DateISO: "21/09/2025", StartTime: "18:00", Court: "C"}, models.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateEvent(context.Background(), tt.draft)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateEvent() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateEvent(t *testing.T) {
	svc, _ := newTestService(t, nil)

	event := createEvent(t, svc, models.EventDraft{DateISO: "2025-09-20", Court: " Court 1 ", Notes: "  "})
	st := svc.Snapshot()
	got := st.Event(event.ID)
	if got.StartTime != models.DefaultStartTime || got.Court != "Court 1" || got.Notes != "" || got.HasEnd() {
		t.Errorf("stored event = %+v", got)
	}
	if got.UpdatedBy != "anon-test" {
		t.Errorf("UpdatedBy = %q, want anon-test", got.UpdatedBy)
	}
}

func TestUpdateEvent(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	event := createEvent(t, svc, models.EventDraft{DateISO: "2025-09-22", StartTime: "18:00", Court: "Court 1"})

	if _, err := svc.UpdateEvent(ctx, "ghost", models.EventDraft{DateISO: "2025-09-22", Court: "C"}); !errors.Is(err, models.ErrEventNotFound) {
		t.Errorf("UpdateEvent(ghost) error = %v, want ErrEventNotFound", err)
	}
	if _, err := svc.UpdateEvent(ctx, event.ID, models.EventDraft{DateISO: "2025-09-01", Court: "C"}); !errors.Is(err, models.ErrPastDate) {
		t.Errorf("UpdateEvent(past) error = %v, want ErrPastDate", err)
	}

	updated, err := svc.UpdateEvent(ctx, event.ID, models.EventDraft{DateISO: "2025-09-22", StartTime: "19:00", EndTime: "21:00", Court: "Court 2"})
	if err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	st := svc.Snapshot()
	if got := st.Event(event.ID); got.Court != "Court 2" || got.EndTime != "21:00" {
		t.Errorf("event after update = %+v, want optimistic replacement", got)
	}
	if updated.Attendees == nil {
		t.Error("update dropped the roster")
	}
	eventually(t, "update toast", func() bool { return svc.Snapshot().ToastMessage == MsgEventUpdated })
}

func TestDeleteEvent(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	event := createEvent(t, svc, models.EventDraft{DateISO: "2025-09-22", Court: "Court 1"})

	if err := svc.OpenDetails(ctx, event.ID); err != nil {
		t.Fatalf("OpenDetails() error = %v", err)
	}
	if err := svc.DeleteEvent(ctx, event.ID); err != nil {
		t.Fatalf("DeleteEvent() error = %v", err)
	}
	if svc.Snapshot().Modal.DetailsEventID != "" {
		t.Error("detail dialog still open after delete")
	}
	eventually(t, "event gone", func() bool {
		st := svc.Snapshot()
		return st.Event(event.ID) == nil && st.ToastMessage == MsgEventDeleted
	})
}

func TestAttendees(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	event := createEvent(t, svc, models.EventDraft{DateISO: "2025-09-22", Court: "Court 1"})

	tests := []struct {
		name    string
		eventID string
		person  string
		status  models.AttendeeStatus
		wantErr error
	}{
		{"blank name", event.ID, "  ", "", models.ErrNameRequired},
		{"bad status", event.ID, "Ana", "perhaps", models.ErrInvalidStatus},
		{"unknown event", "ghost", "Ana", "", models.ErrEventNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.AddAttendee(ctx, tt.eventID, tt.person, tt.status); !errors.Is(err, tt.wantErr) {
				t.Errorf("AddAttendee() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	ana, err := svc.AddAttendee(ctx, event.ID, " Ana ", "maybe")
	if err != nil {
		t.Fatalf("AddAttendee() error = %v", err)
	}
	eventually(t, "Ana on roster", func() bool {
		st := svc.Snapshot()
		a := st.Event(event.ID).Attendee(ana.ID)
		return a != nil && a.Name == "Ana" && a.Status == models.AttendeeMaybe
	})

	if err := svc.RemoveAttendee(ctx, event.ID, ana.ID); err != nil {
		t.Fatalf("RemoveAttendee() error = %v", err)
	}
	eventually(t, "empty roster", func() bool {
		st := svc.Snapshot()
		return len(st.Event(event.ID).Attendees) == 0
	})
}

func TestOpenAddEvent(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		date     string
		selected string
		want     string
		wantErr  error
	}{
		{name: "future", date: "2025-09-30", want: "2025-09-30"},
		{name: "past floors to today", date: "2025-09-01", want: "2025-09-20"},
		{name: "empty uses selection", selected: "2025-09-25", want: "2025-09-25"},
		{name: "empty with past selection", selected: "2025-09-02", want: "2025-09-20"},
		{name: "malformed", date: "soon", wantErr: models.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.SelectDate(ctx, tt.selected); err != nil {
				t.Fatalf("SelectDate() error = %v", err)
			}
			err := svc.OpenAddEvent(ctx, tt.date)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("OpenAddEvent() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			st := svc.Snapshot()
			if st.SelectedDateISO != tt.want || !st.Modal.AddEventOpen {
				t.Errorf("state = %q open=%v, want %q open", st.SelectedDateISO, st.Modal.AddEventOpen, tt.want)
			}
			_ = svc.CloseAddEvent(ctx)
		})
	}
}

func TestMonthView(t *testing.T) {
	svc, _ := newTestService(t, nil)
	createEvent(t, svc, models.EventDraft{DateISO: "2025-09-22", Court: "Court 1"})

	view := svc.MonthView()
	if view.MonthISO != "2025-09-01" || view.Label != "September 2025" {
		t.Errorf("MonthView() header = %v %v", view.MonthISO, view.Label)
	}
	if len(view.Days) != 35 {
		t.Fatalf("len(Days) = %d, want 35", len(view.Days))
	}
	if view.Days[0].DateISO != "2025-08-31" || view.Days[0].CurrentMonth {
		t.Errorf("first cell = %+v", view.Days[0])
	}
	for _, d := range view.Days {
		switch d.DateISO {
		case "2025-09-20":
			if !d.Today || !d.Selected || d.Past {
				t.Errorf("today cell = %+v", d)
			}
		case "2025-09-22":
			if len(d.Events) != 1 {
				t.Errorf("events on 22nd = %d, want 1", len(d.Events))
			}
		case "2025-09-19":
			if !d.Past {
				t.Errorf("yesterday not past: %+v", d)
			}
		}
	}

	if err := svc.NavigateMonth(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if got := svc.MonthView().Label; got != "October 2025" {
		t.Errorf("Label after next = %v", got)
	}
}

func TestRollover(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	if err := svc.SelectDate(ctx, "2025-09-10"); err != nil {
		t.Fatal(err)
	}
	svc.rollover(ctx)
	if got := svc.Snapshot().SelectedDateISO; got != "2025-09-20" {
		t.Errorf("SelectedDateISO = %v, want today", got)
	}

	if err := svc.SelectDate(ctx, "2025-09-28"); err != nil {
		t.Fatal(err)
	}
	svc.rollover(ctx)
	if got := svc.Snapshot().SelectedDateISO; got != "2025-09-28" {
		t.Errorf("future selection moved to %v", got)
	}
}

func TestStartDayRolloverStopsOnClose(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.StartDayRollover(ctx); err != nil {
		t.Fatalf("StartDayRollover() error = %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestCloseAggregatesErrors(t *testing.T) {
	svc := New(logger.NewNop(), nil, nil, models.Identity{})
	var order []string
	svc.AddCloser(func() error { order = append(order, "db"); return errors.New("db close failed") })
	svc.AddCloser(func() error { order = append(order, "bot"); return nil })
	svc.AddCloser(func() error { order = append(order, "snapshot"); return errors.New("flush failed") })

	err := svc.Close()
	var merr *multierror.Error
	if !errors.As(err, &merr) || len(merr.Errors) != 2 {
		t.Fatalf("Close() error = %v, want 2 aggregated errors", err)
	}
	if strings.Join(order, ",") != "snapshot,bot,db" {
		t.Errorf("close order = %v, want reverse registration", order)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

// flakyRepo fails the first Subscribe call.
type flakyRepo struct {
	repository.EventRepository
	calls atomic.Int32
}

func (r *flakyRepo) Subscribe(ctx context.Context, onChange func([]models.Event)) (func(), error) {
	if r.calls.Add(1) == 1 {
		return nil, errors.New("connection refused")
	}
	return r.EventRepository.Subscribe(ctx, onChange)
}

func TestFeedSyncRetries(t *testing.T) {
	old := feedRetryInterval
	feedRetryInterval = 10 * time.Millisecond
	t.Cleanup(func() { feedRetryInterval = old })

	inner := memory.NewEventRepository(nil)
	_ = inner.CreateOrReplace(context.Background(), models.Event{ID: "seed", DateISO: "2025-09-21", StartTime: "18:00", Court: "C"})

	repo := &flakyRepo{EventRepository: inner}
	svc, _ := newTestService(t, repo)

	eventually(t, "seed event after retry", func() bool {
		st := svc.Snapshot()
		return st.Event("seed") != nil
	})
	if repo.calls.Load() < 2 {
		t.Errorf("Subscribe calls = %d, want a retry", repo.calls.Load())
	}
}

func TestResolveIdentity(t *testing.T) {
	anon := ResolveIdentity("  ")
	if !anon.Anonymous || !models.IsAnonymousID(anon.ID) || len(anon.ID) != len("anon-")+36 {
		t.Errorf("ResolveIdentity(\"\") = %+v", anon)
	}
	named := ResolveIdentity("coach")
	if named.Anonymous || named.ID != "coach" {
		t.Errorf("ResolveIdentity(coach) = %+v", named)
	}
}

func TestListEvents(t *testing.T) {
	svc, _ := newTestService(t, nil)
	for _, d := range []string{"2025-09-21", "2025-09-30", "2025-10-01"} {
		createEvent(t, svc, models.EventDraft{DateISO: d, StartTime: "18:00", Court: "C"})
	}
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to string
		limit    int
		want     []string
		wantErr  error
	}{
		{name: "unbounded", want: []string{"2025-09-21", "2025-09-30", "2025-10-01"}},
		{name: "range", from: "2025-09-21", to: "2025-09-30", want: []string{"2025-09-21", "2025-09-30"}},
		{name: "open end", from: "2025-09-30", want: []string{"2025-09-30", "2025-10-01"}},
		{name: "limit", limit: 1, want: []string{"2025-09-21"}},
		{name: "bad from", from: "2025-9-1", wantErr: models.ErrInvalidDate},
		{name: "inverted", from: "2025-10-01", to: "2025-09-01", wantErr: models.ErrInvalidRange},
		{name: "negative limit", limit: -1, wantErr: models.ErrInvalidLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ListEvents(ctx, tt.from, tt.to, tt.limit)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ListEvents() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ListEvents() error = %v", err)
			}
			var days []string
			for _, e := range got {
				days = append(days, e.DateISO)
			}
			if strings.Join(days, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ListEvents() dates = %v, want %v", days, tt.want)
			}
		})
	}

	for month, want := range map[string]int{"2025-09-01": 2, "2025-10-15": 1, "2025-11-01": 0} {
		got, err := svc.ListMonth(ctx, month)
		if err != nil || len(got) != want {
			t.Errorf("ListMonth(%s) = %d events, %v, want %d", month, len(got), err, want)
		}
	}
}
