package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/courtcal/internal/models"
	"github.com/Kerhoff/courtcal/internal/service"
	"github.com/Kerhoff/courtcal/internal/telegram"
)

var errJoinUsage = errors.New("bad /join arguments")

// JoinHandler handles the /join command
type JoinHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewJoinHandler creates a new join handler
func NewJoinHandler(svc *service.Service, logger *logrus.Logger) *JoinHandler {
	return &JoinHandler{svc: svc, logger: logger}
}

// Handle adds someone to an event: /join <id> [name] [confirmed|maybe|no]
// Without a name the sender's Telegram name is used.
func (h *JoinHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	ref, name, status, err := parseJoinArgs(args)
	if err != nil {
		return reply(bot, message.Chat.ID, "❌ Usage: /join <event id> [name] [confirmed|maybe|no]", false)
	}
	if name == "" {
		name = senderName(message.From)
	}

	event, err := resolveEvent(h.svc.Snapshot(), ref)
	if err != nil {
		return replyError(bot, message.Chat.ID, err)
	}
	attendee, err := h.svc.AddAttendee(context.Background(), event.ID, name, status)
	if err != nil {
		return replyError(bot, message.Chat.ID, err)
	}

	h.logger.WithFields(logrus.Fields{
		"event_id":    event.ID,
		"attendee_id": attendee.ID,
	}).Debug("Attendee joined via bot")

	text := fmt.Sprintf("👍 %s is in for *%s* on %s (%s). Attendee id `%s`",
		escape(attendee.Name), escape(event.Court), event.DateISO, attendee.Status.Label(), shortID(attendee.ID))
	return reply(bot, message.Chat.ID, text, true)
}

// parseJoinArgs splits "<id> [name words...] [status]". A trailing word that
// names a status is taken as the status.
func parseJoinArgs(args []string) (ref, name string, status models.AttendeeStatus, err error) {
	if len(args) == 0 {
		return "", "", "", errJoinUsage
	}
	ref, rest := args[0], args[1:]
	status = models.AttendeeConfirmed
	if n := len(rest); n > 0 {
		if s := models.AttendeeStatus(strings.ToLower(rest[n-1])); s != "" && s.Valid() {
			status = s
			rest = rest[:n-1]
		}
	}
	return ref, strings.Join(rest, " "), status, nil
}

func senderName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}

// LeaveHandler handles the /leave command
type LeaveHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewLeaveHandler creates a new leave handler
func NewLeaveHandler(svc *service.Service, logger *logrus.Logger) *LeaveHandler {
	return &LeaveHandler{svc: svc, logger: logger}
}

// Handle removes an attendee: /leave <event id> <attendee id>
func (h *LeaveHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 2 {
		return reply(bot, message.Chat.ID, "❌ Usage: /leave <event id> <attendee id>", false)
	}

	event, err := resolveEvent(h.svc.Snapshot(), args[0])
	if err != nil {
		return replyError(bot, message.Chat.ID, err)
	}
	attendee := findAttendee(*event, args[1])
	if attendee == nil {
		return reply(bot, message.Chat.ID, "❌ No such attendee on that event. Use /event <id> to see the roster.", false)
	}
	if err := h.svc.RemoveAttendee(context.Background(), event.ID, attendee.ID); err != nil {
		return err
	}

	text := fmt.Sprintf("👋 %s left *%s*.", escape(attendee.Name), escape(event.Court))
	return reply(bot, message.Chat.ID, text, true)
}

// findAttendee matches an attendee by id or unambiguous id prefix.
func findAttendee(e models.Event, ref string) *models.Attendee {
	if a := e.Attendee(ref); a != nil {
		return a
	}
	var found *models.Attendee
	for i := range e.Attendees {
		if strings.HasPrefix(e.Attendees[i].ID, ref) {
			if found != nil {
				return nil
			}
			found = &e.Attendees[i]
		}
	}
	return found
}
