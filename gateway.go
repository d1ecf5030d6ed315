package floortrack

import "context"

// Gateway is the backend's consumed surface. The tracker treats it as an
// unreliable, eventually consistent source of truth: reads may fail partially
// and writes are confirmed by re-fetching rather than trusted blindly.
//
// Implementations should all be tested with the scenarios in tracker_test.go;
// adapters/httpgateway talks to the real REST backend and adapters/memgateway
// is the in-memory fake used across the test suite.
type Gateway interface {
	ListWorkOrders(ctx context.Context) ([]WorkOrder, error)
	ListStages(ctx context.Context, workOrderID int64) ([]Stage, error)
	ListMachines(ctx context.Context) ([]Machine, error)
	ListReadings(ctx context.Context, machineID int64, limit int) ([]Reading, error)
	ListIssues(ctx context.Context) ([]Issue, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListMolds(ctx context.Context) ([]Mold, error)

	StartStage(ctx context.Context, stageID int64) error
	DoneStage(ctx context.Context, stageID int64) error
	PauseStage(ctx context.Context, stageID int64) error
	ResumeStage(ctx context.Context, stageID int64) error
	// ReportIssue creates a new issue row attached to the stage. It does not
	// transition the stage; callers pair it with PauseStage.
	ReportIssue(ctx context.Context, stageID int64, issueType, description string) (issueID int64, err error)
}
