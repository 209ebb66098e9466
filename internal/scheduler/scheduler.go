// Package scheduler drives periodic monitoring passes in server mode.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fucho777/rakuten-price-monitor/internal/monitor"
)

// Config tunes the scheduler.
type Config struct {
	Interval time.Duration
}

// Run executes one pass immediately, then one per interval, until ctx is
// cancelled. The pipeline's own single-flight lock protects against overlap
// with manually triggered passes.
func Run(ctx context.Context, pipeline *monitor.Pipeline, cfg Config) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("scheduler started")

	runOnce(ctx, pipeline)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopping")
			return
		case <-ticker.C:
			runOnce(ctx, pipeline)
		}
	}
}

func runOnce(ctx context.Context, pipeline *monitor.Pipeline) {
	summary, err := pipeline.Run(ctx)
	switch {
	case errors.Is(err, monitor.ErrRunInProgress):
		log.Warn().Msg("scheduled pass skipped, another pass is running")
	case err != nil:
		log.Error().Err(err).Msg("scheduled pass failed")
	default:
		log.Info().
			Str("run_id", summary.RunID).
			Int("changed", summary.Changed).
			Int("notifiable", summary.Notifiable).
			Int("confirmed", summary.Confirmed).
			Msg("scheduled pass completed")
	}
}
