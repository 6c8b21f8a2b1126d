package agent

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Watch runs fn on the given cron schedule until ctx is cancelled. Overlap
// protection comes from the run lock: a tick that finds the lock held exits
// as a no-op.
func Watch(ctx context.Context, schedule string, log zerolog.Logger, fn func()) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, fn); err != nil {
		return fmt.Errorf("Watch: invalid schedule %q: %w", schedule, err)
	}
	log.Info().Str("schedule", schedule).Msg("watch mode started")
	c.Start()
	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	return nil
}
