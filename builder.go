package floortrack

import (
	"sort"
	"time"
)

// DefaultCycleTime is assumed (seconds per part) when no stage evidence allows
// deriving a better value.
const DefaultCycleTime = 3

// Operator identifies who the tracker is running on behalf of. It is attached
// to every built record.
type Operator struct {
	ID   string
	Name string
}

// BuildRecords transforms a snapshot into the candidate production records:
// one per product with an operator-initiated (machine-assigned) work order.
// The output is deterministic for a given snapshot: latest-wins grouping by
// work order id, molds resolved in ascending id order, and the result sorted
// by record id.
func BuildRecords(snap *Snapshot, op Operator, now time.Time) []*ProductionRecord {
	// Only work orders an operator explicitly started on a machine, with at
	// least one stage beyond planning, count as production.
	latest := make(map[string]WorkOrder)
	for _, wo := range snap.WorkOrders {
		if wo.MachineID <= 0 {
			continue
		}

		started := false
		for _, s := range snap.Stages[wo.ID] {
			if s.Status.Started() {
				started = true
				break
			}
		}
		if !started {
			continue
		}

		if cur, ok := latest[wo.ProductCode]; !ok || wo.ID > cur.ID {
			latest[wo.ProductCode] = wo
		}
	}

	machines := append([]Machine(nil), snap.Machines...)
	sort.Slice(machines, func(i, j int) bool {
		return machines[i].ID < machines[j].ID
	})

	var records []*ProductionRecord
	for _, wo := range latest {
		records = append(records, buildRecord(snap, wo, machines, op, now))
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	return records
}

func buildRecord(snap *Snapshot, wo WorkOrder, machines []Machine, op Operator, now time.Time) *ProductionRecord {
	stages := snap.Stages[wo.ID]
	status := deriveStatus(stages)

	mold, hasMold := resolveMold(snap, wo.ProductCode)
	var moldID int64
	if hasMold {
		moldID = mold.ID
	}

	machine, fallback := resolveMachine(wo, machines)

	start := deriveStartTime(wo, stages)
	cycle := deriveCycleTime(wo, stages, now)

	r := &ProductionRecord{
		ID:           RecordID(wo.ID, moldID),
		WorkOrderID:  wo.ID,
		MachineID:    machine.ID,
		MachineName:  machine.Name,
		OperatorID:   op.ID,
		OperatorName: op.Name,
		ProductName:  resolveProductName(snap, wo),
		MoldID:       moldID,
		StartTime:    start,
		TargetCount:  wo.Qty,
		CycleTime:    cycle,
		Status:       status,
		Stages:       buildStageViews(stages),
		Readings:     latestReadings(snap.Readings[machine.ID]),

		machineFallback: fallback,
	}

	if issue, pausedAt, ok := resolvePausedIssue(snap, stages); ok {
		r.Issue = issue
		r.PausedAt = pausedAt
	}

	r.PartCount = derivePartCount(r, wo, now)
	if status == StatusCompleted {
		r.EndTime = lastActualEnd(stages)
	}

	return r
}

// resolveMold returns the mold associated with the product, picking the lowest
// mold id when several molds reference the same product so the choice is
// stable across passes.
func resolveMold(snap *Snapshot, productCode string) (Mold, bool) {
	var productID int64
	for _, p := range snap.Products {
		if p.Code == productCode {
			productID = p.ID
			break
		}
	}
	if productID == 0 {
		return Mold{}, false
	}

	var (
		best  Mold
		found bool
	)
	for _, m := range snap.Molds {
		if m.ProductID != productID {
			continue
		}
		if !found || m.ID < best.ID {
			best = m
			found = true
		}
	}
	return best, found
}

// resolveMachine uses the work order's explicit assignment when it refers to a
// known machine, else the legacy deterministic fallback index
// (work_order_id - 1) mod machine_count into the ascending-id machine list.
// The second return reports whether the fallback path was used.
func resolveMachine(wo WorkOrder, machines []Machine) (Machine, bool) {
	for _, m := range machines {
		if m.ID == wo.MachineID {
			return m, false
		}
	}

	if len(machines) == 0 {
		return Machine{ID: wo.MachineID}, false
	}

	idx := (wo.ID - 1) % int64(len(machines))
	if idx < 0 {
		idx += int64(len(machines))
	}
	return machines[idx], true
}

func resolveProductName(snap *Snapshot, wo WorkOrder) string {
	for _, p := range snap.Products {
		if p.Code == wo.ProductCode && p.Name != "" {
			return p.Name
		}
	}
	if wo.ProductCode != "" {
		return wo.ProductCode
	}
	return wo.LotNo
}

// deriveStartTime picks the most specific evidence of real activity: the in
// progress stage's actual start, else the paused stage's, else the first done
// stage's, else the first stage's planned start, else the work order's.
func deriveStartTime(wo WorkOrder, stages []Stage) time.Time {
	for _, s := range stages {
		if s.Status == StageInProgress && !s.ActualStart.IsZero() {
			return s.ActualStart
		}
	}
	for _, s := range stages {
		if s.Status == StagePaused && !s.ActualStart.IsZero() {
			return s.ActualStart
		}
	}
	for _, s := range stages {
		if s.Status == StageDone && !s.ActualStart.IsZero() {
			return s.ActualStart
		}
	}
	if len(stages) > 0 && !stages[0].PlannedStart.IsZero() {
		return stages[0].PlannedStart
	}
	return wo.PlannedStart
}

// deriveCycleTime estimates seconds per part. A finished stage gives the
// strongest evidence (stage duration spread over the order quantity); an in
// progress stage gives a rough elapsed-time estimate; otherwise the default
// applies.
func deriveCycleTime(wo WorkOrder, stages []Stage, now time.Time) int {
	for _, s := range stages {
		if s.Status != StageDone || s.ActualStart.IsZero() || s.ActualEnd.IsZero() {
			continue
		}
		duration := s.ActualEnd.Sub(s.ActualStart).Seconds()
		if wo.Qty > 0 && duration > 0 {
			cycle := int(duration) / wo.Qty
			if cycle < 1 {
				cycle = 1
			}
			return cycle
		}
		break
	}

	for _, s := range stages {
		if s.Status != StageInProgress || s.ActualStart.IsZero() {
			continue
		}
		elapsed := now.Sub(s.ActualStart).Seconds()
		if elapsed <= 0 {
			break
		}
		produced := int(elapsed) / DefaultCycleTime
		if produced < 1 {
			produced = 1
		}
		cycle := int(elapsed) / produced
		if cycle < 1 {
			cycle = 1
		}
		return cycle
	}

	return DefaultCycleTime
}

// resolvePausedIssue surfaces the most recently created issue attached to the
// paused stage, if any.
func resolvePausedIssue(snap *Snapshot, stages []Stage) (description string, pausedAt time.Time, ok bool) {
	var paused *Stage
	for i := range stages {
		if stages[i].Status == StagePaused {
			paused = &stages[i]
			break
		}
	}
	if paused == nil {
		return "", time.Time{}, false
	}

	var (
		best  Issue
		found bool
	)
	for _, issue := range snap.Issues {
		if issue.StageID != paused.ID {
			continue
		}
		if !found || issue.CreatedAt.After(best.CreatedAt) ||
			(issue.CreatedAt.Equal(best.CreatedAt) && issue.ID > best.ID) {
			best = issue
			found = true
		}
	}
	if !found {
		return "", time.Time{}, false
	}

	return best.Description, paused.PausedAt, true
}

// derivePartCount computes the initial count for a freshly built record. The
// reconciler decides afterwards whether this or the locally estimated value
// wins.
func derivePartCount(r *ProductionRecord, wo WorkOrder, now time.Time) int {
	switch r.Status {
	case StatusActive:
		if r.CycleTime <= 0 || r.StartTime.IsZero() {
			return wo.ProducedQty
		}
		count := extrapolate(r.StartTime, now, r.CycleTime)
		if r.TargetCount > 0 && count > r.TargetCount {
			count = r.TargetCount
		}
		return count
	case StatusPaused:
		if !r.PausedAt.IsZero() && r.CycleTime > 0 && !r.StartTime.IsZero() {
			count := extrapolate(r.StartTime, r.PausedAt, r.CycleTime)
			if r.TargetCount > 0 && count > r.TargetCount {
				count = r.TargetCount
			}
			return count
		}
		return wo.ProducedQty
	case StatusCompleted:
		if r.TargetCount > 0 {
			return r.TargetCount
		}
		return wo.ProducedQty
	default:
		return wo.ProducedQty
	}
}

// extrapolate is the single counting rule shared by the builder, estimator and
// pause workflow: whole parts completed between start and now at the given
// cycle time.
func extrapolate(start, now time.Time, cycleTime int) int {
	if cycleTime <= 0 || now.Before(start) {
		return 0
	}
	return int(now.Sub(start).Seconds()) / cycleTime
}

func buildStageViews(stages []Stage) []StageView {
	views := make([]StageView, 0, len(stages))
	for i, s := range stages {
		seq := s.Seq
		if seq == 0 {
			seq = i + 1
		}
		views = append(views, StageView{
			ID:        s.ID,
			Name:      s.Name,
			Seq:       seq,
			Status:    s.Status,
			StartedAt: s.ActualStart,
			EndedAt:   s.ActualEnd,
		})
	}
	return views
}

func latestReadings(readings []Reading) map[string]string {
	if len(readings) == 0 {
		return nil
	}

	latest := make(map[string]Reading)
	for _, r := range readings {
		cur, ok := latest[r.Type]
		if !ok || r.Timestamp.After(cur.Timestamp) {
			latest[r.Type] = r
		}
	}

	byType := make(map[string]string, len(latest))
	for typ, r := range latest {
		byType[typ] = r.Value
	}
	return byType
}

func lastActualEnd(stages []Stage) time.Time {
	var last time.Time
	for _, s := range stages {
		if s.ActualEnd.After(last) {
			last = s.ActualEnd
		}
	}
	return last
}
