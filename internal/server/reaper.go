package server

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/taskdeck-dev/taskdeck/internal/models"
)

// newReaper schedules the expired refresh token purge. The returned cron is not started.
func (s *Server) newReaper(schedule string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, s.reapRefreshTokens); err != nil {
		return nil, fmt.Errorf("invalid reaper schedule %q: %w", schedule, err)
	}
	return c, nil
}

func (s *Server) reapRefreshTokens() {
	purged, err := models.PurgeExpiredRefreshTokens(s.db, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to purge expired refresh tokens")
		return
	}

	reaperPurgedTotal.Add(float64(purged))
	if purged > 0 {
		s.logger.Info().Int64("purged", purged).Msg("Purged expired refresh tokens")
	}
}
