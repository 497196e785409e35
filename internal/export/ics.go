// Package export renders the calendar for other tools.
package export

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/Kerhoff/courtcal/internal/dates"
	"github.com/Kerhoff/courtcal/internal/models"
)

const productID = "-//Kerhoff//CourtCal//EN"

// ICSOptions controls an ICS export.
type ICSOptions struct {
	// Name is the calendar display name (X-WR-CALNAME).
	Name string
	// Location is the zone event wall-clock times are read in. Nil means UTC.
	Location *time.Location
	// Now stamps DTSTAMP. Zero means time.Now.
	Now time.Time
}

// ICS renders events as an iCalendar document. Events whose date or time
// cannot be read are left out and returned as skipped ids.
func ICS(events []models.Event, opts ICSOptions) (string, []string) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	var skipped []string
	for _, e := range events {
		start, err := wallClock(e.DateISO, e.StartTime, loc)
		if err != nil {
			skipped = append(skipped, e.ID)
			continue
		}

		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(now)
		ve.SetStartAt(start)
		if e.HasEnd() {
			if end, err := wallClock(e.DateISO, e.EndTime, loc); err == nil {
				ve.SetEndAt(end)
			}
		}
		ve.SetSummary(summary(e))
		ve.SetLocation(e.Court)
		if e.Notes != "" {
			ve.SetDescription(e.Notes)
		}
		if e.UpdatedAt > 0 {
			ve.SetModifiedAt(e.UpdatedTime())
		}

		for _, a := range e.Attendees {
			ve.AddAttendee(a.ID+"@courtcal.invalid", ical.WithCN(a.Name), partStat(a.Status))
		}
	}

	return cal.Serialize(), skipped
}

func summary(e models.Event) string {
	going := e.Going()
	if going == 0 {
		return e.Court
	}
	return fmt.Sprintf("%s (%d going)", e.Court, going)
}

func partStat(s models.AttendeeStatus) ical.ParticipationStatus {
	switch s.OrDefault() {
	case models.AttendeeMaybe:
		return ical.ParticipationStatusTentative
	case models.AttendeeNo:
		return ical.ParticipationStatusDeclined
	default:
		return ical.ParticipationStatusAccepted
	}
}

func wallClock(dateISO, hhmm string, loc *time.Location) (time.Time, error) {
	day, err := dates.ParseISODate(strings.TrimSpace(dateISO))
	if err != nil {
		return time.Time{}, err
	}
	mins, err := dates.ToMinutes(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), mins/60, mins%60, 0, 0, loc), nil
}
