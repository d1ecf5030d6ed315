package floortrack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func activeRecord(id string, version int64) *ProductionRecord {
	return &ProductionRecord{
		ID:          id,
		WorkOrderID: 1,
		MachineID:   1,
		StartTime:   t0,
		PartCount:   10,
		TargetCount: 100,
		CycleTime:   3,
		Status:      StatusActive,
		Version:     version,
	}
}

func TestReconcileInstallsNewRecords(t *testing.T) {
	candidate := activeRecord("WO-1", 0)

	out, events := Reconcile(nil, []*ProductionRecord{candidate}, t0)

	require.Len(t, out, 1)
	require.Equal(t, int64(1), out[0].Version)
	require.NotSame(t, candidate, out[0])

	require.Len(t, events, 1)
	require.Equal(t, EventRecordInstalled, events[0].Type)
	require.Equal(t, "WO-1", events[0].RecordID)
	require.Equal(t, int64(1), events[0].Version)
}

func TestReconcileUnchangedKeepsIdentity(t *testing.T) {
	prev := activeRecord("WO-1", 3)

	candidate := activeRecord("WO-1", 0)
	candidate.PartCount = 4 // stale backend count loses to the local estimate

	out, events := Reconcile([]*ProductionRecord{prev}, []*ProductionRecord{candidate}, t0)

	require.Len(t, out, 1)
	require.Same(t, prev, out[0])
	require.Equal(t, int64(3), out[0].Version)
	require.Empty(t, events)
}

func TestReconcileChangeBumpsVersion(t *testing.T) {
	prev := activeRecord("WO-1", 3)

	candidate := activeRecord("WO-1", 0)
	candidate.TargetCount = 120
	candidate.StartTime = t0.Add(time.Minute) // backend re-derivation must not win

	out, events := Reconcile([]*ProductionRecord{prev}, []*ProductionRecord{candidate}, t0)

	require.Len(t, out, 1)
	merged := out[0]
	require.Equal(t, int64(4), merged.Version)
	require.Equal(t, 120, merged.TargetCount)
	require.Equal(t, prev.StartTime, merged.StartTime)
	require.Equal(t, prev.PartCount, merged.PartCount)

	require.Len(t, events, 1)
	require.Equal(t, EventRecordUpdated, events[0].Type)
	require.Equal(t, int64(4), events[0].Version)
}

func TestReconcileStartTimeChangeMerges(t *testing.T) {
	prev := activeRecord("WO-1", 2)
	prev.Stages = []StageView{
		{ID: 11, Name: "Injection", Seq: 1, Status: StageInProgress, StartedAt: t0},
		{ID: 12, Name: "Inspection", Seq: 2, Status: StagePlanned},
	}

	// The backend moved on to the next stage, shifting the derived start
	// time. That alone forces a merge so the stage views follow, while the
	// displayed start time stays put.
	candidate := activeRecord("WO-1", 0)
	candidate.StartTime = t0.Add(time.Minute)
	candidate.Stages = []StageView{
		{ID: 11, Name: "Injection", Seq: 1, Status: StageDone, StartedAt: t0, EndedAt: t0.Add(time.Minute)},
		{ID: 12, Name: "Inspection", Seq: 2, Status: StageInProgress, StartedAt: t0.Add(time.Minute)},
	}

	out, events := Reconcile([]*ProductionRecord{prev}, []*ProductionRecord{candidate}, t0)

	require.Len(t, out, 1)
	merged := out[0]
	require.Equal(t, int64(3), merged.Version)
	require.Equal(t, prev.StartTime, merged.StartTime)
	require.Equal(t, StageDone, merged.Stages[0].Status)
	require.Equal(t, StageInProgress, merged.Stages[1].Status)

	require.Len(t, events, 1)
	require.Equal(t, EventRecordUpdated, events[0].Type)
}

func TestReconcileRefreshesDisplayFields(t *testing.T) {
	prev := activeRecord("WO-1", 2)
	prev.Readings = map[string]string{"mold_temp": "184"}

	candidate := activeRecord("WO-1", 0)
	candidate.PartCount = 4 // stale backend count loses to the local estimate
	candidate.Readings = map[string]string{"mold_temp": "191"}

	out, events := Reconcile([]*ProductionRecord{prev}, []*ProductionRecord{candidate}, t0)

	// Fresh telemetry rides along without a version bump or an event.
	require.Len(t, out, 1)
	refreshed := out[0]
	require.NotSame(t, prev, refreshed)
	require.Equal(t, int64(2), refreshed.Version)
	require.Equal(t, 10, refreshed.PartCount)
	require.Equal(t, map[string]string{"mold_temp": "191"}, refreshed.Readings)
	require.Empty(t, events)
}

func TestReconcileBackendCountWinsWithoutCycleTime(t *testing.T) {
	prev := activeRecord("WO-1", 1)
	prev.CycleTime = 0
	prev.PartCount = 2

	candidate := activeRecord("WO-1", 0)
	candidate.PartCount = 8

	out, _ := Reconcile([]*ProductionRecord{prev}, []*ProductionRecord{candidate}, t0)

	require.Len(t, out, 1)
	require.Equal(t, 8, out[0].PartCount)
	require.Equal(t, int64(2), out[0].Version)
}

func TestReconcilePausedCountFrozen(t *testing.T) {
	prev := activeRecord("WO-1", 2)
	prev.Status = StatusPaused
	prev.PausedAt = t0
	prev.Issue = "jam"
	prev.PartCount = 6

	// The backend keeps extrapolating on its side; the frozen local count must
	// survive until the record leaves paused.
	candidate := activeRecord("WO-1", 0)
	candidate.Status = StatusPaused
	candidate.PausedAt = t0
	candidate.Issue = "jam"
	candidate.PartCount = 9

	out, events := Reconcile([]*ProductionRecord{prev}, []*ProductionRecord{candidate}, t0)

	require.Len(t, out, 1)
	require.Same(t, prev, out[0])
	require.Equal(t, 6, out[0].PartCount)
	require.Empty(t, events)
}

func TestReconcileFallbackMachinePinned(t *testing.T) {
	prev := activeRecord("WO-1", 1)
	prev.MachineID = 5
	prev.MachineName = "IMM-5"

	candidate := activeRecord("WO-1", 0)
	candidate.MachineID = 2
	candidate.MachineName = "IMM-2"
	candidate.machineFallback = true
	candidate.TargetCount = 120 // force a merge

	out, _ := Reconcile([]*ProductionRecord{prev}, []*ProductionRecord{candidate}, t0)

	require.Len(t, out, 1)
	require.Equal(t, int64(5), out[0].MachineID)
	require.Equal(t, "IMM-5", out[0].MachineName)
}

func TestReconcileRemovedRecords(t *testing.T) {
	prev := activeRecord("WO-1", 4)

	out, events := Reconcile([]*ProductionRecord{prev}, nil, t0)

	require.Empty(t, out)
	require.Len(t, events, 1)
	require.Equal(t, EventRecordRemoved, events[0].Type)
	require.Equal(t, "WO-1", events[0].RecordID)
}

func TestReconcileTolerantOfReordering(t *testing.T) {
	prevA := activeRecord("WO-1", 1)
	prevB := activeRecord("WO-2", 1)
	prevB.WorkOrderID = 2

	candA := activeRecord("WO-1", 0)
	candB := activeRecord("WO-2", 0)
	candB.WorkOrderID = 2

	out, events := Reconcile(
		[]*ProductionRecord{prevA, prevB},
		[]*ProductionRecord{candB, candA},
		t0,
	)

	require.Len(t, out, 2)
	require.Same(t, prevB, out[0])
	require.Same(t, prevA, out[1])
	require.Empty(t, events)
}
