package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/courtcal/internal/export"
	"github.com/Kerhoff/courtcal/internal/metrics"
	"github.com/Kerhoff/courtcal/internal/models"
	"github.com/Kerhoff/courtcal/internal/service"
)

// Options tunes the API.
type Options struct {
	// CalendarName titles the ICS export.
	CalendarName string
	// Location is the zone event times are read in for the ICS export.
	Location *time.Location
}

// Server provides the HTTP JSON API.
type Server struct {
	svc    *service.Service
	logger *logrus.Logger
	opts   Options
	mux    *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, logger *logrus.Logger, opts Options) *Server {
	if opts.CalendarName == "" {
		opts.CalendarName = "CourtCal"
	}
	s := &Server{svc: svc, logger: logger, opts: opts, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.instrument(s.mux)
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// API – State and month view
	s.mux.HandleFunc("GET /api/state", s.handleGetState)
	s.mux.HandleFunc("GET /api/month", s.handleGetMonth)
	s.mux.HandleFunc("POST /api/month/next", s.handleNavigate(1))
	s.mux.HandleFunc("POST /api/month/prev", s.handleNavigate(-1))
	s.mux.HandleFunc("POST /api/select", s.handleSelectDate)

	// API – Dialogs and toast
	s.mux.HandleFunc("POST /api/add-dialog", s.handleOpenAddDialog)
	s.mux.HandleFunc("DELETE /api/add-dialog", s.handleCloseAddDialog)
	s.mux.HandleFunc("POST /api/events/{id}/details", s.handleOpenDetails)
	s.mux.HandleFunc("DELETE /api/details", s.handleCloseDetails)
	s.mux.HandleFunc("DELETE /api/toast", s.handleDismissToast)

	// API – Events
	s.mux.HandleFunc("GET /api/events", s.handleGetEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("PUT /api/events/{id}", s.handleUpdateEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)

	// API – Attendees
	s.mux.HandleFunc("POST /api/events/{id}/attendees", s.handleAddAttendee)
	s.mux.HandleFunc("DELETE /api/events/{id}/attendees/{attendeeId}", s.handleRemoveAttendee)

	// Export
	s.mux.HandleFunc("GET /api/calendar.ics", s.handleExportICS)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps validation failures to 400, unknown events to
// 404 and everything else to 500.
func (s *Server) respondServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, models.ErrEventNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case isValidationError(err):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.respondError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.logger.WithError(err).Errorf("failed to %s", action)
		s.respondError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		models.ErrInvalidDate,
		models.ErrPastDate,
		models.ErrInvalidTime,
		models.ErrEndNotAfterStart,
		models.ErrCourtRequired,
		models.ErrNameRequired,
		models.ErrInvalidStatus,
		models.ErrInvalidRange,
		models.ErrInvalidLimit,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil || r.Body == http.NoBody {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// decodeOptionalJSON is decodeJSON for requests whose body may be omitted.
func (s *Server) decodeOptionalJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return true, ""
	}
	return s.decodeJSON(r, dst)
}

// pathID extracts a path value such as {id}.
func pathID(r *http.Request, name string) (string, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	if raw == "" {
		return "", fmt.Errorf("missing %s in path", name)
	}
	return raw, nil
}

// ---------------------------------------------------------------------------
// Health, state and month view
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type stateResponse struct {
	models.CalendarState
	PendingEventIDs []string        `json:"pendingEventIds"`
	Identity        models.Identity `json:"identity"`
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state := s.svc.Snapshot()
	s.respondJSON(w, http.StatusOK, stateResponse{
		CalendarState:   state,
		PendingEventIDs: state.PendingIDs(),
		Identity:        s.svc.Identity(),
	})
}

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.svc.MonthView())
}

func (s *Server) handleNavigate(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.svc.NavigateMonth(r.Context(), delta); err != nil {
			s.respondServiceError(w, err, "navigate month")
			return
		}
		s.respondJSON(w, http.StatusOK, s.svc.MonthView())
	}
}

type dateRequest struct {
	DateISO string `json:"dateISO"`
}

func (s *Server) handleSelectDate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.svc.SelectDate(r.Context(), req.DateISO); err != nil {
		s.respondServiceError(w, err, "select date")
		return
	}
	s.respondJSON(w, http.StatusOK, s.svc.Snapshot())
}

// ---------------------------------------------------------------------------
// Dialogs and toast
// ---------------------------------------------------------------------------

func (s *Server) handleOpenAddDialog(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if ok, msg := s.decodeOptionalJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.svc.OpenAddEvent(r.Context(), req.DateISO); err != nil {
		s.respondServiceError(w, err, "open add dialog")
		return
	}
	s.respondJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *Server) handleCloseAddDialog(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.CloseAddEvent(r.Context()); err != nil {
		s.respondServiceError(w, err, "close add dialog")
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleOpenDetails(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	if err := s.svc.OpenDetails(r.Context(), id); err != nil {
		s.respondServiceError(w, err, "open details")
		return
	}
	state := s.svc.Snapshot()
	s.respondJSON(w, http.StatusOK, state.DetailsEvent())
}

func (s *Server) handleCloseDetails(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.CloseDetails(r.Context()); err != nil {
		s.respondServiceError(w, err, "close details")
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDismissToast(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DismissNotification(r.Context()); err != nil {
		s.respondServiceError(w, err, "dismiss notification")
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// handleGetEvents serves ?date= from the live calendar state (optimistic
// edits included) and everything else from the remote store.
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if date := q.Get("date"); date != "" {
		events := s.svc.EventsOn(date)
		if events == nil {
			events = []models.Event{}
		}
		s.respondJSON(w, http.StatusOK, events)
		return
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		limit = n
	}

	events, err := s.svc.ListEvents(r.Context(), q.Get("from"), q.Get("to"), limit)
	if err != nil {
		s.respondServiceError(w, err, "list events")
		return
	}
	s.respondJSON(w, http.StatusOK, events)
}

// handleCreateEvent answers 202: the event shows up once the feed confirms
// the write.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var draft models.EventDraft
	if ok, msg := s.decodeJSON(r, &draft); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := s.svc.CreateEvent(r.Context(), draft)
	if err != nil {
		s.respondServiceError(w, err, "create event")
		return
	}

	s.respondJSON(w, http.StatusAccepted, created)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var draft models.EventDraft
	if ok, msg := s.decodeJSON(r, &draft); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := s.svc.UpdateEvent(r.Context(), id, draft)
	if err != nil {
		s.respondServiceError(w, err, "update event")
		return
	}

	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	if err := s.svc.DeleteEvent(r.Context(), id); err != nil {
		s.respondServiceError(w, err, "delete event")
		return
	}

	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---------------------------------------------------------------------------
// Attendees
// ---------------------------------------------------------------------------

type addAttendeeRequest struct {
	Name   string                `json:"name"`
	Status models.AttendeeStatus `json:"status"`
}

func (s *Server) handleAddAttendee(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req addAttendeeRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	attendee, err := s.svc.AddAttendee(r.Context(), eventID, req.Name, req.Status)
	if err != nil {
		s.respondServiceError(w, err, "add attendee")
		return
	}

	s.respondJSON(w, http.StatusAccepted, attendee)
}

func (s *Server) handleRemoveAttendee(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	attendeeID, err := pathID(r, "attendeeId")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid attendee id")
		return
	}

	if err := s.svc.RemoveAttendee(r.Context(), eventID, attendeeID); err != nil {
		s.respondServiceError(w, err, "remove attendee")
		return
	}

	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---------------------------------------------------------------------------
// Export
// ---------------------------------------------------------------------------

func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	state := s.svc.Snapshot()
	body, skipped := export.ICS(state.Events, export.ICSOptions{
		Name:     s.opts.CalendarName,
		Location: s.opts.Location,
	})
	if len(skipped) > 0 {
		s.logger.WithField("event_ids", skipped).Warn("Events left out of ICS export")
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="courtcal.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		s.logger.WithError(err).Debug("failed to write ICS response")
	}
}

// ---------------------------------------------------------------------------
// Instrumentation
// ---------------------------------------------------------------------------

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("HTTP request")
	})
}
