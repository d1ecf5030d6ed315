// Package memgateway implements an in-memory Gateway with real stage
// transition semantics. It backs the tracker test suite and the getting
// started example, where a verify refresh must observe the effect of a
// previous write.
package memgateway

import (
	"context"
	"sync"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/andrewwormald/floortrack"
)

func New(opts ...Option) *Gateway {
	g := &Gateway{
		stages:   make(map[int64][]floortrack.Stage),
		readings: make(map[int64][]floortrack.Reading),
		errs:     make(map[string]error),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

var _ floortrack.Gateway = (*Gateway)(nil)

type Gateway struct {
	mu sync.Mutex

	workOrders []floortrack.WorkOrder
	stages     map[int64][]floortrack.Stage
	machines   []floortrack.Machine
	readings   map[int64][]floortrack.Reading
	issues     []floortrack.Issue
	products   []floortrack.Product
	molds      []floortrack.Mold

	issueSeq int64
	now      func() time.Time
	errs     map[string]error
}

type Option func(*Gateway)

func WithWorkOrders(wos ...floortrack.WorkOrder) Option {
	return func(g *Gateway) { g.workOrders = wos }
}

func WithStages(workOrderID int64, stages ...floortrack.Stage) Option {
	return func(g *Gateway) { g.stages[workOrderID] = stages }
}

func WithMachines(machines ...floortrack.Machine) Option {
	return func(g *Gateway) { g.machines = machines }
}

func WithReadings(machineID int64, readings ...floortrack.Reading) Option {
	return func(g *Gateway) { g.readings[machineID] = readings }
}

func WithIssues(issues ...floortrack.Issue) Option {
	return func(g *Gateway) { g.issues = issues }
}

func WithProducts(products ...floortrack.Product) Option {
	return func(g *Gateway) { g.products = products }
}

func WithMolds(molds ...floortrack.Mold) Option {
	return func(g *Gateway) { g.molds = molds }
}

// WithNow injects the clock used to stamp stage transitions. Tests pair it
// with the fake clock driving the tracker.
func WithNow(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// FailWith makes the named operation ("list_stages", "pause_stage", ...)
// return err until cleared with a nil err.
func (g *Gateway) FailWith(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err == nil {
		delete(g.errs, op)
		return
	}
	g.errs[op] = err
}

func (g *Gateway) ListWorkOrders(ctx context.Context) ([]floortrack.WorkOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.errs["list_work_orders"]; err != nil {
		return nil, err
	}

	return append([]floortrack.WorkOrder(nil), g.workOrders...), nil
}

func (g *Gateway) ListStages(ctx context.Context, workOrderID int64) ([]floortrack.Stage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.errs["list_stages"]; err != nil {
		return nil, err
	}

	return append([]floortrack.Stage(nil), g.stages[workOrderID]...), nil
}

func (g *Gateway) ListMachines(ctx context.Context) ([]floortrack.Machine, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.errs["list_machines"]; err != nil {
		return nil, err
	}

	return append([]floortrack.Machine(nil), g.machines...), nil
}

func (g *Gateway) ListReadings(ctx context.Context, machineID int64, limit int) ([]floortrack.Reading, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.errs["list_readings"]; err != nil {
		return nil, err
	}

	rs := g.readings[machineID]
	if limit > 0 && len(rs) > limit {
		rs = rs[:limit]
	}

	return append([]floortrack.Reading(nil), rs...), nil
}

func (g *Gateway) ListIssues(ctx context.Context) ([]floortrack.Issue, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.errs["list_issues"]; err != nil {
		return nil, err
	}

	return append([]floortrack.Issue(nil), g.issues...), nil
}

func (g *Gateway) ListProducts(ctx context.Context) ([]floortrack.Product, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.errs["list_products"]; err != nil {
		return nil, err
	}

	return append([]floortrack.Product(nil), g.products...), nil
}

func (g *Gateway) ListMolds(ctx context.Context) ([]floortrack.Mold, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.errs["list_molds"]; err != nil {
		return nil, err
	}

	return append([]floortrack.Mold(nil), g.molds...), nil
}

func (g *Gateway) StartStage(ctx context.Context, stageID int64) error {
	return g.transition(stageID, "start_stage", func(s *floortrack.Stage) {
		s.Status = floortrack.StageInProgress
		s.ActualStart = g.clockNow()
		s.PausedAt = time.Time{}
	})
}

func (g *Gateway) DoneStage(ctx context.Context, stageID int64) error {
	return g.transition(stageID, "done_stage", func(s *floortrack.Stage) {
		s.Status = floortrack.StageDone
		s.ActualEnd = g.clockNow()
		s.PausedAt = time.Time{}
	})
}

func (g *Gateway) PauseStage(ctx context.Context, stageID int64) error {
	return g.transition(stageID, "pause_stage", func(s *floortrack.Stage) {
		s.Status = floortrack.StagePaused
		s.PausedAt = g.clockNow()
	})
}

func (g *Gateway) ResumeStage(ctx context.Context, stageID int64) error {
	return g.transition(stageID, "resume_stage", func(s *floortrack.Stage) {
		s.Status = floortrack.StageInProgress
		s.PausedAt = time.Time{}
	})
}

func (g *Gateway) ReportIssue(ctx context.Context, stageID int64, issueType, description string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.errs["report_issue"]; err != nil {
		return 0, err
	}

	g.issueSeq++
	g.issues = append(g.issues, floortrack.Issue{
		ID:          g.issueSeq,
		StageID:     stageID,
		Type:        issueType,
		Description: description,
		Status:      floortrack.IssueOpen,
		CreatedAt:   g.clockNow(),
	})

	return g.issueSeq, nil
}

// SetProducedQty adjusts a work order's reported produced quantity, so tests
// can replay backend-side progress between refreshes.
func (g *Gateway) SetProducedQty(workOrderID int64, qty int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.workOrders {
		if g.workOrders[i].ID == workOrderID {
			g.workOrders[i].ProducedQty = qty
			return
		}
	}
}

// SetReadings replaces a machine's telemetry, so tests can replay fresh
// sensor values between refreshes.
func (g *Gateway) SetReadings(machineID int64, readings ...floortrack.Reading) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.readings[machineID] = readings
}

func (g *Gateway) transition(stageID int64, op string, apply func(*floortrack.Stage)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.errs[op]; err != nil {
		return err
	}

	for woID, stages := range g.stages {
		for i := range stages {
			if stages[i].ID != stageID {
				continue
			}
			apply(&stages[i])
			g.stages[woID] = stages
			return nil
		}
	}

	return errors.Wrap(floortrack.ErrStageNotFound, "", j.KV("stage_id", stageID))
}

func (g *Gateway) clockNow() time.Time {
	if g.now != nil {
		return g.now()
	}
	return time.Now()
}
