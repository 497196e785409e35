package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/courtcal/internal/dates"
	"github.com/Kerhoff/courtcal/internal/models"
	"github.com/Kerhoff/courtcal/internal/service"
	"github.com/Kerhoff/courtcal/internal/telegram"
)

const eventUsage = "❌ Usage: /event <YYYY-MM-DD> <HH:MM[-HH:MM]> <court> [| notes]\n\n" +
	"Example: /event 2025-09-27 18:00-20:00 Court 3 | bring a ball"

var errEventUsage = errors.New("bad /event arguments")

// EventsHandler handles the /events command
type EventsHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewEventsHandler creates a new events listing handler
func NewEventsHandler(svc *service.Service, logger *logrus.Logger) *EventsHandler {
	return &EventsHandler{svc: svc, logger: logger}
}

// Handle lists the events of a month: /events [YYYY-MM]
func (h *EventsHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	monthISO := dates.StartOfMonthISO(h.svc.Now())
	if len(args) > 0 {
		m, err := parseMonth(args[0])
		if err != nil {
			return reply(bot, message.Chat.ID, "❌ Usage: /events [YYYY-MM]", false)
		}
		monthISO = m
	}

	events, err := h.svc.ListMonth(context.Background(), monthISO)
	if err != nil {
		return err
	}
	return reply(bot, message.Chat.ID, formatMonth(events, monthISO), true)
}

// parseMonth accepts YYYY-MM and returns the first of that month.
func parseMonth(arg string) (string, error) {
	monthISO := arg + "-01"
	if !dates.IsISODate(monthISO) {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidDate, arg)
	}
	return monthISO, nil
}

func formatMonth(events []models.Event, monthISO string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 *%s*\n", dates.MonthLabel(monthISO))

	day, count := "", 0
	for _, e := range events {
		if e.DateISO != day {
			day = e.DateISO
			label := day
			if t, err := dates.ParseISODate(day); err == nil {
				label = t.Format("Mon, Jan 2")
			}
			fmt.Fprintf(&b, "\n*%s*\n", label)
		}
		b.WriteString(formatEventLine(e) + "\n")
		count++
	}
	if count == 0 {
		b.WriteString("\nNo games scheduled. Add one with /event!")
	}
	return strings.TrimRight(b.String(), "\n")
}

// EventHandler handles the /event command
type EventHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewEventHandler creates a new event creation/details handler
func NewEventHandler(svc *service.Service, logger *logrus.Logger) *EventHandler {
	return &EventHandler{svc: svc, logger: logger}
}

// Handle creates an event, or shows one when given a single id:
// /event <YYYY-MM-DD> <HH:MM[-HH:MM]> <court> [| notes]
// /event <id>
func (h *EventHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) == 1 && !dates.IsISODate(args[0]) {
		event, err := resolveEvent(h.svc.Snapshot(), args[0])
		if err != nil {
			return replyError(bot, message.Chat.ID, err)
		}
		return reply(bot, message.Chat.ID, formatEventDetails(*event), true)
	}

	draft, err := parseEventArgs(args)
	if err != nil {
		return reply(bot, message.Chat.ID, eventUsage, false)
	}

	event, err := h.svc.CreateEvent(context.Background(), draft)
	if err != nil {
		return replyError(bot, message.Chat.ID, err)
	}

	h.logger.WithFields(logrus.Fields{
		"event_id": event.ID,
		"chat_id":  message.Chat.ID,
	}).Info("Event created via bot")

	text := fmt.Sprintf("✅ Game added!\n\n%s", formatEventDetails(*event))
	return reply(bot, message.Chat.ID, text, true)
}

// parseEventArgs reads "<date> <start[-end]> <court words...> [| notes]".
// Validation of the values themselves is left to the draft.
func parseEventArgs(args []string) (models.EventDraft, error) {
	if len(args) < 3 {
		return models.EventDraft{}, errEventUsage
	}
	draft := models.EventDraft{DateISO: args[0]}

	start, end, _ := strings.Cut(args[1], "-")
	draft.StartTime, draft.EndTime = start, end

	rest := strings.Join(args[2:], " ")
	court, notes, _ := strings.Cut(rest, "|")
	draft.Court = strings.TrimSpace(court)
	draft.Notes = strings.TrimSpace(notes)
	if draft.Court == "" {
		return models.EventDraft{}, errEventUsage
	}
	return draft.Normalize(), nil
}

// DeleteEventHandler handles the /delevent command
type DeleteEventHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewDeleteEventHandler creates a new event deletion handler
func NewDeleteEventHandler(svc *service.Service, logger *logrus.Logger) *DeleteEventHandler {
	return &DeleteEventHandler{svc: svc, logger: logger}
}

// Handle deletes an event: /delevent <id>
func (h *DeleteEventHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return reply(bot, message.Chat.ID, "❌ Usage: /delevent <event id>", false)
	}

	event, err := resolveEvent(h.svc.Snapshot(), args[0])
	if err != nil {
		return replyError(bot, message.Chat.ID, err)
	}
	if err := h.svc.DeleteEvent(context.Background(), event.ID); err != nil {
		return err
	}

	text := fmt.Sprintf("🗑 Deleted *%s* on %s.", escape(event.Court), event.DateISO)
	return reply(bot, message.Chat.ID, text, true)
}

// replyError answers with a readable message for user mistakes and hands
// anything else back to the router.
func replyError(bot telegram.Sender, chatID int64, err error) error {
	msg := userMessage(err)
	if msg == "" {
		return err
	}
	return reply(bot, chatID, msg, false)
}

// MoveEventHandler handles the /move command
type MoveEventHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewMoveEventHandler creates a new reschedule handler
func NewMoveEventHandler(svc *service.Service, logger *logrus.Logger) *MoveEventHandler {
	return &MoveEventHandler{svc: svc, logger: logger}
}

// Handle reschedules an event, keeping its court, notes and roster:
// /move <id> <YYYY-MM-DD> [HH:MM[-HH:MM]]
// A new start without an end keeps the event's length.
func (h *MoveEventHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return reply(bot, message.Chat.ID, "❌ Usage: /move <event id> <YYYY-MM-DD> [HH:MM[-HH:MM]]", false)
	}

	event, err := resolveEvent(h.svc.Snapshot(), args[0])
	if err != nil {
		return replyError(bot, message.Chat.ID, err)
	}
	draft := models.DraftFrom(*event)
	draft.DateISO = args[1]
	if len(args) == 3 {
		start, end, hasEnd := strings.Cut(args[2], "-")
		if !hasEnd {
			end = keepDuration(*event, start)
		}
		draft.StartTime, draft.EndTime = start, end
	}

	updated, err := h.svc.UpdateEvent(context.Background(), event.ID, draft)
	if err != nil {
		return replyError(bot, message.Chat.ID, err)
	}

	text := fmt.Sprintf("📆 Moved!\n\n%s", formatEventDetails(*updated))
	return reply(bot, message.Chat.ID, text, true)
}

// keepDuration returns the end time that gives an event starting at start
// the same length as e, or "" when e is open-ended or the game would run
// past midnight.
func keepDuration(e models.Event, start string) string {
	if !e.HasEnd() {
		return ""
	}
	from, err := dates.ToMinutes(e.StartTime)
	if err != nil {
		return ""
	}
	to, err := dates.ToMinutes(e.EndTime)
	if err != nil {
		return ""
	}
	newStart, err := dates.ToMinutes(start)
	if err != nil {
		return ""
	}
	if newStart+to-from >= 24*60 {
		return ""
	}
	end, err := dates.AddMinutes(start, to-from)
	if err != nil {
		return ""
	}
	return end
}
