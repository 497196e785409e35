package service

import (
	"context"
	"time"

	"github.com/Kerhoff/courtcal/internal/core"
	"github.com/Kerhoff/courtcal/internal/models"
)

// feedRetryInterval is how long StartFeedSync waits after a failed
// subscription before trying again.
var feedRetryInterval = 30 * time.Second

// StartFeedSync subscribes to the remote event feed and turns every push
// into one ReplaceEvents transition. A failed subscription is retried until
// ctx is cancelled. It blocks, so it should be launched in a separate
// goroutine.
func (s *Service) StartFeedSync(ctx context.Context) {
	s.logger.Info("Event feed sync started")

	if s.subscribe(ctx) {
		<-ctx.Done()
		s.logger.Info("Event feed sync stopped")
		return
	}

	ticker := time.NewTicker(feedRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Event feed sync stopped")
			return
		case <-ticker.C:
			if s.subscribe(ctx) {
				<-ctx.Done()
				s.logger.Info("Event feed sync stopped")
				return
			}
		}
	}
}

func (s *Service) subscribe(ctx context.Context) bool {
	unsubscribe, err := s.Events.Subscribe(ctx, func(events []models.Event) {
		s.calendar.Post(core.ReplaceEvents{Events: events})
	})
	if err != nil {
		s.logger.WithError(err).Errorf("Failed to subscribe to event feed, retrying in %s", feedRetryInterval)
		return false
	}

	s.mu.Lock()
	previous := s.unsubscribe
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	if previous != nil {
		previous()
	}
	return true
}
