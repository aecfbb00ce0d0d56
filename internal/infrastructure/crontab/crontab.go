package crontab

import (
	"context"
	"fmt"
	"time"

	"parley-server/internal/infrastructure/logger"
	"parley-server/internal/utils/platformerrors"

	"github.com/mileusna/crontab"
)

const DefaultSweepIntervalMinutes = 1

// Sweeper is any guard that can reclaim expired entries.
type Sweeper interface {
	Sweep() int
}

// Reaper releases idle assistant processes.
type Reaper interface {
	ReapIdle() int
}

type Crontab struct {
	ctab     *crontab.Crontab
	sweepers map[string]Sweeper
	reaper   Reaper
	interval time.Duration
}

func NewCrontab(sweepers map[string]Sweeper, reaper Reaper, interval time.Duration) *Crontab {
	return &Crontab{
		ctab:     crontab.New(),
		sweepers: sweepers,
		reaper:   reaper,
		interval: interval,
	}
}

func (c *Crontab) Run(ctx context.Context) error {
	// execute once on server start
	c.sweep()

	minutes := int(c.interval.Minutes())
	if minutes <= 0 {
		minutes = DefaultSweepIntervalMinutes
	}

	cronExpr := fmt.Sprintf("*/%d * * * *", minutes)
	if err := c.ctab.AddJob(cronExpr, c.sweep); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to add sweep job")
	}
	log := logger.GetLogger()
	log.Info().Msgf("Guard sweep scheduled: every %d minute(s)", minutes)

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) sweep() {
	log := logger.GetLogger()
	for name, sweeper := range c.sweepers {
		if removed := sweeper.Sweep(); removed > 0 {
			log.Debug().Int("removed", removed).Str("guard", name).Msg("swept expired guard entries")
		}
	}
	if c.reaper != nil {
		if reaped := c.reaper.ReapIdle(); reaped > 0 {
			log.Info().Int("reaped", reaped).Msg("released idle assistant processes")
		}
	}
}
