package service

import (
	"github.com/Kerhoff/courtcal/internal/dates"
	"github.com/Kerhoff/courtcal/internal/models"
)

// DayView is one cell of the month grid with its events.
type DayView struct {
	DateISO      string         `json:"dateISO"`
	CurrentMonth bool           `json:"isCurrentMonth"`
	Today        bool           `json:"isToday"`
	Past         bool           `json:"isPast"`
	Selected     bool           `json:"isSelected"`
	Events       []models.Event `json:"events"`
}

// MonthView is the visible month as every surface renders it.
type MonthView struct {
	MonthISO string    `json:"monthISO"`
	Label    string    `json:"label"`
	Days     []DayView `json:"days"`
}

// MonthView projects the current state onto the month grid.
func (s *Service) MonthView() MonthView {
	state := s.calendar.State()
	today := s.today()

	byDate := make(map[string][]models.Event)
	for _, e := range state.Events {
		byDate[e.DateISO] = append(byDate[e.DateISO], e)
	}

	grid := dates.MonthGrid(state.MonthCursorISO)
	days := make([]DayView, 0, len(grid))
	for _, cell := range grid {
		events := byDate[cell.DateISO]
		if events == nil {
			events = []models.Event{}
		}
		days = append(days, DayView{
			DateISO:      cell.DateISO,
			CurrentMonth: cell.CurrentMonth,
			Today:        cell.DateISO == today,
			Past:         cell.DateISO < today,
			Selected:     cell.DateISO == state.SelectedDateISO,
			Events:       events,
		})
	}

	return MonthView{
		MonthISO: state.MonthCursorISO,
		Label:    dates.MonthLabel(state.MonthCursorISO),
		Days:     days,
	}
}
