package floortrack

import (
	"context"
	"strings"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/andrewwormald/floortrack/internal/metrics"
)

// defaultIssueType is the backend issue classification used for operator
// initiated machine stops.
const defaultIssueType = "machine_stop"

// ReportIssue runs the stop-production workflow for a record: create an issue
// against the current stage, pause that stage, freeze the part count at the
// pause instant and optimistically patch the store before a verify refresh
// confirms the backend state. A backend failure leaves the store untouched
// and is returned to the caller.
func (t *Tracker) ReportIssue(ctx context.Context, recordID, description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return errors.Wrap(ErrEmptyDescription, "", j.KV("record_id", recordID))
	}

	record, err := t.store.Lookup(ctx, recordID)
	if err != nil {
		return err
	}

	stage, alreadyPaused, err := t.reportableStage(ctx, record)
	if err != nil {
		return err
	}

	_, err = t.gateway.ReportIssue(ctx, stage.ID, defaultIssueType, description)
	if err != nil {
		metrics.WorkflowErrors.WithLabelValues(t.name, "report_issue").Inc()
		return errors.Wrap(err, "report issue", j.KV("stage_id", stage.ID))
	}

	// An already paused stage only gets the extra issue appended; pausing
	// again would be a duplicate transition.
	if !alreadyPaused {
		err = t.gateway.PauseStage(ctx, stage.ID)
		if err != nil {
			metrics.WorkflowErrors.WithLabelValues(t.name, "report_issue").Inc()
			return errors.Wrap(err, "pause stage", j.KV("stage_id", stage.ID))
		}
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
	updated.Issue = description
	if record.Status != StatusPaused {
		// First report on a running record: freeze the count and stamp the
		// pause instant. A record that is already paused only collects the
		// new issue; its frozen count and pause instant must not move.
		updated.PausedAt = now
		updated.PartCount = frozenPartCount(record, now)
	}
	updated.Status = StatusPaused
	setStageViewStatus(updated.Stages, stage.ID, StagePaused)
	updated.Version = record.Version + 1

	err = t.store.Update(ctx, updated)
	t.storeMu.Unlock()
	if err != nil {
		return errors.Wrap(err, "patch paused record", j.KV("record_id", recordID))
	}
	t.emit(ctx, recordEvent(EventRecordUpdated, updated, now))

	t.confirmAsync(recordID, StatusPaused)
	return nil
}

// reportableStage picks the stage an issue attaches to: the in progress stage,
// else the paused one, else the first planned stage which is auto-started so
// the pause has something to act on.
func (t *Tracker) reportableStage(ctx context.Context, record *ProductionRecord) (StageView, bool, error) {
	for _, s := range record.Stages {
		if s.Status == StageInProgress {
			return s, false, nil
		}
	}
	for _, s := range record.Stages {
		if s.Status == StagePaused {
			return s, true, nil
		}
	}
	for _, s := range record.Stages {
		if s.Status == StagePlanned {
			err := t.gateway.StartStage(ctx, s.ID)
			if err != nil {
				return StageView{}, false, errors.Wrap(err, "auto start stage", j.KV("stage_id", s.ID))
			}
			return s, false, nil
		}
	}

	return StageView{}, false, errors.Wrap(ErrNoReportableStage, "", j.KV("record_id", record.ID))
}

// frozenPartCount computes the count at the pause instant with the same
// extrapolation the estimator uses, so the frozen value matches what a tick at
// that exact moment would have shown.
func frozenPartCount(record *ProductionRecord, now time.Time) int {
	if record.CycleTime <= 0 || record.StartTime.IsZero() {
		return record.PartCount
	}

	count := extrapolate(record.StartTime, now, record.CycleTime)
	if record.TargetCount > 0 && count > record.TargetCount {
		count = record.TargetCount
	}
	return count
}

// confirmAsync runs the bounded verify-refresh loop in the background: the
// optimistic patch is already visible and the eventual backend-confirmed state
// arrives via the normal reconcile path.
func (t *Tracker) confirmAsync(recordID string, want Status) {
	if t.ctx == nil {
		// Tracker not running (direct library use in tests); the caller
		// refreshes explicitly.
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		err := t.verifyRefresh(t.ctx, func(records []*ProductionRecord) bool {
			for _, r := range records {
				if r.ID == recordID {
					return r.Status == want
				}
			}
			return false
		})
		if err != nil {
			// NoReturnErr: the next scheduled refresh keeps reconciling.
			t.logger.Error(t.ctx, errors.Wrap(err, "confirm workflow action",
				j.KV("record_id", recordID),
				j.KV("want_status", want.String()),
			))
		}
	}()
}

func setStageViewStatus(views []StageView, stageID int64, status StageStatus) {
	for i := range views {
		if views[i].ID == stageID {
			views[i].Status = status
			return
		}
	}
}
