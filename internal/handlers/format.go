package handlers

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kerhoff/courtcal/internal/dates"
	"github.com/Kerhoff/courtcal/internal/models"
	"github.com/Kerhoff/courtcal/internal/telegram"
)

// shortIDLen is how much of an event id listings show. Commands accept any
// unambiguous prefix.
const shortIDLen = 8

var errAmbiguousID = errors.New("id matches more than one event")

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// resolveEvent finds the event whose id is ref or starts with ref.
func resolveEvent(state models.CalendarState, ref string) (*models.Event, error) {
	if e := state.Event(ref); e != nil {
		return e, nil
	}
	var found *models.Event
	for i := range state.Events {
		if !strings.HasPrefix(state.Events[i].ID, ref) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %s", errAmbiguousID, ref)
		}
		found = &state.Events[i]
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrEventNotFound, ref)
	}
	return found, nil
}

func timeRange(e models.Event) string {
	if !e.HasEnd() {
		return dates.Format12h(e.StartTime)
	}
	return dates.Format12h(e.StartTime) + " - " + dates.Format12h(e.EndTime)
}

// formatEventLine renders one event as a single Markdown list line.
func formatEventLine(e models.Event) string {
	line := fmt.Sprintf("• %s · *%s*", timeRange(e), escape(e.Court))
	if going := e.Going(); going > 0 {
		line += fmt.Sprintf(" (%d going)", going)
	}
	return line + fmt.Sprintf(" `%s`", shortID(e.ID))
}

// formatEventDetails renders an event with its roster.
func formatEventDetails(e models.Event) string {
	var b strings.Builder
	day := e.DateISO
	if t, err := dates.ParseISODate(e.DateISO); err == nil {
		day = t.Format("Mon, Jan 2 2006")
	}
	fmt.Fprintf(&b, "🏐 *%s*\n", escape(e.Court))
	fmt.Fprintf(&b, "📅 %s, %s\n", day, timeRange(e))
	if e.Notes != "" {
		fmt.Fprintf(&b, "📝 %s\n", escape(e.Notes))
	}
	fmt.Fprintf(&b, "🆔 `%s`\n", e.ID)

	if len(e.Attendees) == 0 {
		b.WriteString("\nNobody has joined yet.")
		return b.String()
	}
	b.WriteString("\n*Attendees:*\n")
	for _, a := range e.Attendees {
		fmt.Fprintf(&b, "• %s (%s) `%s`\n", escape(a.Name), a.Status.Label(), shortID(a.ID))
	}
	return strings.TrimRight(b.String(), "\n")
}

// userMessage turns a service error into something worth showing in chat, or
// "" when the error is internal.
func userMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrEventNotFound):
		return "❌ Event not found. Use /events to see event ids."
	case errors.Is(err, errAmbiguousID):
		return "❌ That id matches more than one event. Type more of it."
	case errors.Is(err, models.ErrInvalidDate),
		errors.Is(err, models.ErrPastDate),
		errors.Is(err, models.ErrInvalidTime),
		errors.Is(err, models.ErrEndNotAfterStart),
		errors.Is(err, models.ErrCourtRequired),
		errors.Is(err, models.ErrNameRequired),
		errors.Is(err, models.ErrInvalidStatus):
		return "❌ " + capitalize(rootCause(err))
	}
	return ""
}

func rootCause(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func reply(bot telegram.Sender, chatID int64, text string, markdown bool) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	_, err := bot.Send(msg)
	return err
}
