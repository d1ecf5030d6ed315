package floortrack

import (
	"context"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/andrewwormald/floortrack/internal/metrics"
)

// ResumeProduction restarts a stopped record: the paused stage transitions
// back to in progress (or, when nothing is paused, the next planned stage is
// started), the record's issue state clears and the start time is rebased so
// extrapolation resumes exactly from the frozen count.
func (t *Tracker) ResumeProduction(ctx context.Context, recordID string) error {
	record, err := t.store.Lookup(ctx, recordID)
	if err != nil {
		return err
	}

	stage, wasPaused, err := resumableStage(record)
	if err != nil {
		return err
	}

	if wasPaused {
		err = t.gateway.ResumeStage(ctx, stage.ID)
	} else {
		err = t.gateway.StartStage(ctx, stage.ID)
	}
	if err != nil {
		metrics.WorkflowErrors.WithLabelValues(t.name, "resume").Inc()
		return errors.Wrap(err, "resume stage", j.KV("stage_id", stage.ID))
	}

	now := t.clock.Now()

	t.storeMu.Lock()
	// Re-read under the lock: a refresh may have installed a new generation
	// since the stage was resolved.
	record, err = t.store.Lookup(ctx, recordID)
	if err != nil {
		t.storeMu.Unlock()
		return err
	}

	updated := record.clone()
	updated.Status = StatusActive
	updated.Issue = ""
	updated.PausedAt = time.Time{}
	updated.StartTime = rebaseStartTime(record, now)
	setStageViewStatus(updated.Stages, stage.ID, StageInProgress)
	updated.Version = record.Version + 1

	err = t.store.Update(ctx, updated)
	t.storeMu.Unlock()
	if err != nil {
		return errors.Wrap(err, "patch resumed record", j.KV("record_id", recordID))
	}
	t.emit(ctx, recordEvent(EventRecordUpdated, updated, now))

	t.confirmAsync(recordID, StatusActive)
	return nil
}

func resumableStage(record *ProductionRecord) (StageView, bool, error) {
	for _, s := range record.Stages {
		if s.Status == StagePaused {
			return s, true, nil
		}
	}
	for _, s := range record.Stages {
		if s.Status == StagePlanned {
			return s, false, nil
		}
	}

	return StageView{}, false, errors.Wrap(ErrNoResumableStage, "", j.KV("record_id", record.ID))
}

// rebaseStartTime shifts the start time forward by the paused duration so that
// floor((now-start)/cycle) lands on the frozen count the moment extrapolation
// restarts. When the pause instant is unknown the count itself anchors the
// rebase.
func rebaseStartTime(record *ProductionRecord, now time.Time) time.Time {
	if !record.PausedAt.IsZero() && !record.StartTime.IsZero() {
		elapsedBeforePause := record.PausedAt.Sub(record.StartTime)
		return now.Add(-elapsedBeforePause)
	}

	if record.CycleTime > 0 {
		produced := time.Duration(record.PartCount*record.CycleTime) * time.Second
		return now.Add(-produced)
	}

	return record.StartTime
}

// StartStage and CompleteStage expose the remaining stage verbs so an operator
// surface can drive the full planned -> in_progress -> done sequence. Both
// force a refresh so the derived records follow immediately.
func (t *Tracker) StartStage(ctx context.Context, stageID int64) error {
	err := t.gateway.StartStage(ctx, stageID)
	if err != nil {
		metrics.WorkflowErrors.WithLabelValues(t.name, "start_stage").Inc()
		return errors.Wrap(err, "start stage", j.KV("stage_id", stageID))
	}

	return t.refresh(ctx)
}

func (t *Tracker) CompleteStage(ctx context.Context, stageID int64) error {
	err := t.gateway.DoneStage(ctx, stageID)
	if err != nil {
		metrics.WorkflowErrors.WithLabelValues(t.name, "complete_stage").Inc()
		return errors.Wrap(err, "complete stage", j.KV("stage_id", stageID))
	}

	return t.refresh(ctx)
}
