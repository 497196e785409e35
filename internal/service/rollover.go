package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Kerhoff/courtcal/internal/core"
)

// rolloverSchedule fires at midnight UTC, when today's date changes.
const rolloverSchedule = "0 0 * * *"

// StartDayRollover schedules the midnight job that moves a selected date
// which fell into the past forward to today. The job stops with ctx or
// Close.
func (s *Service) StartDayRollover(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(rolloverSchedule, func() { s.rollover(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule day rollover: %w", err)
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	s.logger.Info("Day rollover scheduled")

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return nil
}

func (s *Service) rollover(ctx context.Context) {
	state := s.calendar.State()
	today := s.today()
	if state.SelectedDateISO == "" || state.SelectedDateISO >= today {
		return
	}
	if err := s.calendar.Dispatch(ctx, core.SetSelectedDate{DateISO: today}); err != nil {
		s.logger.WithError(err).Warn("Failed to roll selected date over")
		return
	}
	s.logger.Debugf("Selected date rolled over from %s to %s", state.SelectedDateISO, today)
}
