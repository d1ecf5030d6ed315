package floortrack

import "time"

// StageStatus is the lifecycle status of a single work order stage as reported
// by the backend.
type StageStatus string

const (
	StagePlanned    StageStatus = "planned"
	StageInProgress StageStatus = "in_progress"
	StagePaused     StageStatus = "paused"
	StageDone       StageStatus = "done"
)

// Started reports whether the stage has progressed beyond planning. Work orders
// where no stage has started are not considered production.
func (s StageStatus) Started() bool {
	switch s {
	case StageInProgress, StagePaused, StageDone:
		return true
	default:
		return false
	}
}

type IssueStatus string

const (
	IssueOpen         IssueStatus = "open"
	IssueAcknowledged IssueStatus = "acknowledged"
	IssueResolved     IssueStatus = "resolved"
)

type MachineStatus string

const (
	MachineActive      MachineStatus = "active"
	MachineInactive    MachineStatus = "inactive"
	MachineMaintenance MachineStatus = "maintenance"
)

// WorkOrder is a planned production job. MachineID is zero until an operator
// starts production on a machine.
type WorkOrder struct {
	ID           int64
	ProductCode  string
	LotNo        string
	Qty          int
	ProducedQty  int
	PlannedStart time.Time
	PlannedEnd   time.Time
	MachineID    int64
}

// Stage is one ordered phase of a work order's execution. Optional timestamps
// are zero when the backend reports null.
type Stage struct {
	ID           int64
	WorkOrderID  int64
	Name         string
	Seq          int
	PlannedStart time.Time
	PlannedEnd   time.Time
	ActualStart  time.Time
	ActualEnd    time.Time
	Status       StageStatus
	PausedAt     time.Time
}

// Issue is a reported problem attached to a stage.
type Issue struct {
	ID          int64
	StageID     int64
	Type        string
	Description string
	Status      IssueStatus
	CreatedAt   time.Time
}

type Machine struct {
	ID       int64
	Name     string
	Type     string
	Location string
	Status   MachineStatus
}

// Reading is a single telemetry sample from a machine. Readings are surfaced
// on production records for display but take no part in reconciliation.
type Reading struct {
	ID        int64
	MachineID int64
	Type      string
	Value     string
	Timestamp time.Time
}

type Product struct {
	ID   int64
	Code string
	Name string
}

type Mold struct {
	ID        int64
	ProductID int64
	Name      string
}

// Snapshot is a flat, point-in-time view of all backend state that the record
// builder consumes. Stages and Readings are keyed by work order id and machine
// id respectively; a missing key means that fetch failed and the owner is
// treated as having none.
type Snapshot struct {
	WorkOrders []WorkOrder
	Stages     map[int64][]Stage
	Machines   []Machine
	Issues     []Issue
	Products   []Product
	Molds      []Mold
	Readings   map[int64][]Reading
	At         time.Time
}
