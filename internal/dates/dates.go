package dates

import (
	"fmt"
	"time"
)

// ISOLayout is the layout of every date string the calendar stores.
const ISOLayout = "2006-01-02"

// ToISODate formats t as YYYY-MM-DD using its UTC calendar fields.
func ToISODate(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// StartOfMonthISO returns the first day of t's UTC month.
func StartOfMonthISO(t time.Time) string {
	u := t.UTC()
	return ToISODate(time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC))
}

// DaysInMonth returns the number of days in the given month. month0 is
// zero-based (0 = January). The last day of the month is day 0 of the next one.
func DaysInMonth(year, month0 int) int {
	return time.Date(year, time.Month(month0+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseISODate parses a YYYY-MM-DD string as midnight UTC.
func ParseISODate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(ISOLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// IsISODate reports whether s is a well-formed YYYY-MM-DD date.
func IsISODate(s string) bool {
	_, err := ParseISODate(s)
	return err == nil
}

// AddMonthsISO moves a month cursor by delta calendar months. The result is
// always normalized to day 01. Anything that does not parse as a date is
// treated as the month of the zero time so callers never see a panic.
func AddMonthsISO(monthISO string, delta int) string {
	t, err := ParseISODate(monthISO)
	if err != nil {
		t = time.Time{}
	}
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return ToISODate(first.AddDate(0, delta, 0))
}

// ToMinutes converts an HH:MM 24-hour clock value to minutes after midnight.
// Both fields must be exactly two ASCII digits, so valid values also sort
// correctly as strings.
func ToMinutes(hhmm string) (int, error) {
	if len(hhmm) != 5 || hhmm[2] != ':' || !isDigits(hhmm[:2]) || !isDigits(hhmm[3:]) {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", hhmm)
	}
	hour := int(hhmm[0]-'0')*10 + int(hhmm[1]-'0')
	if hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	minute := int(hhmm[3]-'0')*10 + int(hhmm[4]-'0')
	if minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return hour*60 + minute, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatMinutes renders minutes after midnight as HH:MM, wrapping at 24h.
func FormatMinutes(mins int) string {
	mins %= 24 * 60
	if mins < 0 {
		mins += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// AddMinutes shifts an HH:MM value by n minutes.
func AddMinutes(hhmm string, n int) (string, error) {
	m, err := ToMinutes(hhmm)
	if err != nil {
		return "", err
	}
	return FormatMinutes(m + n), nil
}

// Format12h renders "18:30" as "6:30 PM". Malformed input yields "".
func Format12h(hhmm string) string {
	m, err := ToMinutes(hhmm)
	if err != nil {
		return ""
	}
	h := m / 60
	ampm := "AM"
	if h >= 12 {
		ampm = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", (h+11)%12+1, m%60, ampm)
}

// MonthLabel renders "2025-09-01" as "September 2025".
func MonthLabel(monthISO string) string {
	t, err := ParseISODate(monthISO)
	if err != nil {
		return monthISO
	}
	return t.Format("January 2006")
}
