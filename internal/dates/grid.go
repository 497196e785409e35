package dates

import "time"

// GridCell is one day slot of the month view.
type GridCell struct {
	DateISO      string `json:"dateISO"`
	CurrentMonth bool   `json:"isCurrentMonth"`
}

// MonthGrid lays out the month containing monthISO Sunday-first: the tail of
// the previous month, every day of the month, then just enough of the next
// month to complete the last week.
func MonthGrid(monthISO string) []GridCell {
	t, err := ParseISODate(monthISO)
	if err != nil {
		return nil
	}
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	lead := int(first.Weekday())
	days := DaysInMonth(first.Year(), int(first.Month())-1)
	trail := (7 - (lead+days)%7) % 7

	cells := make([]GridCell, 0, lead+days+trail)
	for i := lead; i > 0; i-- {
		cells = append(cells, GridCell{DateISO: ToISODate(first.AddDate(0, 0, -i))})
	}
	for i := 0; i < days; i++ {
		cells = append(cells, GridCell{DateISO: ToISODate(first.AddDate(0, 0, i)), CurrentMonth: true})
	}
	for i := 0; i < trail; i++ {
		cells = append(cells, GridCell{DateISO: ToISODate(first.AddDate(0, 0, days+i))})
	}
	return cells
}
