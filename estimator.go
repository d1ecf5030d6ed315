package floortrack

import (
	"context"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/andrewwormald/floortrack/internal/metrics"
)

// estimate extrapolates the part count of a single record from wall-clock
// time. It returns an updated copy and true when the record changed, or the
// original and false. The function is pure and idempotent: with no elapsed
// time a second call reports no change.
func estimate(r *ProductionRecord, now time.Time) (*ProductionRecord, bool) {
	if r.Status != StatusActive || r.CycleTime <= 0 || r.StartTime.IsZero() {
		return r, false
	}

	estimated := extrapolate(r.StartTime, now, r.CycleTime)

	if r.TargetCount > 0 && estimated >= r.TargetCount {
		updated := r.clone()
		updated.PartCount = r.TargetCount
		updated.Status = StatusCompleted
		updated.EndTime = now
		updated.Version++
		return updated, true
	}

	// Counts only move forward while active; a shrinking estimate (eg a
	// rebased start time racing a refresh) is ignored.
	if estimated <= r.PartCount {
		return r, false
	}

	updated := r.clone()
	updated.PartCount = estimated
	updated.Version++
	return updated, true
}

// estimatorTick runs one extrapolation pass over the store. Records with no
// change keep their identity; changed records are updated in place and their
// events emitted. The pass runs under storeMu so an overlapping refresh cannot
// clobber its updates.
func (t *Tracker) estimatorTick(ctx context.Context) error {
	events, err := t.estimatePass(ctx)
	if err != nil {
		return err
	}

	for _, e := range events {
		t.emit(ctx, e)
	}

	metrics.EstimatorTicks.WithLabelValues(t.name).Inc()
	return nil
}

func (t *Tracker) estimatePass(ctx context.Context) ([]RecordEvent, error) {
	t.storeMu.Lock()
	defer t.storeMu.Unlock()

	records, err := t.store.All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "estimator list records")
	}

	now := t.clock.Now()
	var events []RecordEvent
	for _, r := range records {
		updated, changed := estimate(r, now)
		if !changed {
			continue
		}

		err := t.store.Update(ctx, updated)
		if err != nil {
			return nil, errors.Wrap(err, "estimator update", j.KV("record_id", updated.ID))
		}

		events = append(events, recordEvent(EventRecordUpdated, updated, now))
	}

	return events, nil
}
