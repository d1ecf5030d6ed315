package floortrack

import (
	"context"

	cron "github.com/robfig/cron/v3"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

// ScheduleResync forces a full refresh on a cron spec (standard five-field
// specs and descriptors such as "@every 15m" or "@hourly"), on top of the
// tick-driven refresh. Useful for shift-boundary resyncs. It blocks until the
// context is cancelled and so is usually run in its own goroutine after Run.
func (t *Tracker) ScheduleResync(ctx context.Context, spec string) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return errors.Wrap(err, "parse resync spec", j.KV("spec", spec))
	}

	for ctx.Err() == nil {
		next := schedule.Next(t.clock.Now())

		err := t.waitFor(ctx, next.Sub(t.clock.Now()))
		if err != nil {
			return err
		}

		err = t.refresh(ctx)
		if err != nil {
			// NoReturnErr: absorbed, the next scheduled slot retries.
			t.logger.Error(ctx, errors.Wrap(err, "scheduled resync", j.KV("spec", spec)))
		}
	}

	return ctx.Err()
}
