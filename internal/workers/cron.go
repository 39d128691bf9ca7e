package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"dispatch-service/internal/logger"
)

const rollTimeout = 5 * time.Minute

// ScheduleHorizonRoll starts a cron running RollHorizon on spec, a standard
// five-field expression read in the service timezone. Stop the returned cron
// on shutdown.
func (s *Service) ScheduleHorizonRoll(spec string) (*cron.Cron, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)
	if _, err := c.AddFunc(spec, s.rollFromCron); err != nil {
		return nil, fmt.Errorf("schedule horizon roll %q: %w", spec, err)
	}
	c.Start()
	s.log.Info("Horizon roll scheduled", logger.String("schedule", spec))
	return c, nil
}

func (s *Service) rollFromCron() {
	ctx, cancel := context.WithTimeout(context.Background(), rollTimeout)
	defer cancel()
	if _, err := s.RollHorizon(ctx); err != nil {
		s.log.Warn("Scheduled horizon roll finished with errors", logger.Error(err))
	}
}
