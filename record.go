package floortrack

import (
	"fmt"
	"time"
)

// ProductionRecord is the derived view of one running production: the latest
// machine-assigned work order for a product, enriched with mold, machine and
// telemetry data. Records are synthesised fresh on every snapshot pass; the
// store only ever holds the most recently reconciled generation.
type ProductionRecord struct {
	ID           string
	WorkOrderID  int64
	MachineID    int64
	MachineName  string
	OperatorID   string
	OperatorName string
	ProductName  string
	MoldID       int64

	StartTime time.Time
	EndTime   time.Time

	PartCount   int
	TargetCount int
	// CycleTime is the number of seconds required to produce one part. Zero
	// means unknown, which disables extrapolation for this record.
	CycleTime int

	Status Status
	Stages []StageView

	// Issue and PausedAt are set while the record is paused due to a reported
	// problem.
	Issue    string
	PausedAt time.Time

	// Readings maps reading type to the latest telemetry value of the
	// record's machine.
	Readings map[string]string

	// Version increments every time the reconciler or estimator produces a
	// changed copy of the record. Consumers use it as a cheap change signal.
	Version int64

	// machineFallback marks that MachineID was derived via the deterministic
	// fallback rather than an explicit assignment. The reconciler pins the
	// previous machine for such records so a machine-list cardinality change
	// cannot silently reassign them.
	machineFallback bool
}

// StageView is the per-stage slice of a production record.
type StageView struct {
	ID        int64
	Name      string
	Seq       int
	Status    StageStatus
	StartedAt time.Time
	EndedAt   time.Time
}

// RecordID synthesises the stable identifier of a record from its owning work
// order and, when one is associated, the resolved mold.
func RecordID(workOrderID, moldID int64) string {
	if moldID > 0 {
		return fmt.Sprintf("WO-%d-M-%d", workOrderID, moldID)
	}
	return fmt.Sprintf("WO-%d", workOrderID)
}

// HourlyOutput returns the theoretical parts per hour at the record's cycle
// time, or zero when the cycle time is unknown.
func (r *ProductionRecord) HourlyOutput() int {
	if r.CycleTime <= 0 {
		return 0
	}
	return 3600 / r.CycleTime
}

// clone returns a deep copy so that store mutations never leak into copies
// held by consumers.
func (r *ProductionRecord) clone() *ProductionRecord {
	c := *r
	c.Stages = append([]StageView(nil), r.Stages...)
	if r.Readings != nil {
		c.Readings = make(map[string]string, len(r.Readings))
		for k, v := range r.Readings {
			c.Readings[k] = v
		}
	}
	return &c
}
