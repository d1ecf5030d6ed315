package floortrack

import (
	"context"
	"sort"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"k8s.io/utils/clock"
)

// defaultReadingsLimit matches the dashboard's per-machine telemetry window.
const defaultReadingsLimit = 10

// FetchSnapshot pulls the full backend state in one pass. Failures are handled
// per the error taxonomy: a failed work order list or machine list aborts the
// pass, a failed per-work-order stage fetch excludes only that work order, a
// failed per-machine readings fetch only loses that machine's telemetry, and
// failed reference data (issues, products, molds) degrades to an empty
// collection.
func FetchSnapshot(ctx context.Context, g Gateway, logger Logger, cl clock.Clock) (*Snapshot, error) {
	workOrders, err := g.ListWorkOrders(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list work orders")
	}

	stages := make(map[int64][]Stage)
	for _, wo := range workOrders {
		ss, err := g.ListStages(ctx, wo.ID)
		if err != nil {
			// NoReturnErr: a single work order's stages failing to load must
			// not abort the snapshot. The work order is left without stages
			// and so is excluded from the build pass.
			logger.Error(ctx, errors.Wrap(err, "list stages", j.KV("work_order_id", wo.ID)))
			continue
		}

		sort.Slice(ss, func(i, j int) bool {
			return ss[i].Seq < ss[j].Seq
		})
		stages[wo.ID] = ss
	}

	machines, err := g.ListMachines(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list machines")
	}

	readings := make(map[int64][]Reading)
	for _, m := range machines {
		rs, err := g.ListReadings(ctx, m.ID, defaultReadingsLimit)
		if err != nil {
			// NoReturnErr: telemetry is display enrichment only.
			logger.Error(ctx, errors.Wrap(err, "list readings", j.KV("machine_id", m.ID)))
			continue
		}
		readings[m.ID] = rs
	}

	issues, err := g.ListIssues(ctx)
	if err != nil {
		// NoReturnErr: without issues the paused records simply carry no
		// description until the next pass.
		logger.Error(ctx, errors.Wrap(err, "list issues"))
		issues = nil
	}

	products, err := g.ListProducts(ctx)
	if err != nil {
		// NoReturnErr: reference data, degrade to empty.
		logger.Error(ctx, errors.Wrap(err, "list products"))
		products = nil
	}

	molds, err := g.ListMolds(ctx)
	if err != nil {
		// NoReturnErr: reference data, degrade to empty.
		logger.Error(ctx, errors.Wrap(err, "list molds"))
		molds = nil
	}

	return &Snapshot{
		WorkOrders: workOrders,
		Stages:     stages,
		Machines:   machines,
		Issues:     issues,
		Products:   products,
		Molds:      molds,
		Readings:   readings,
		At:         cl.Now(),
	}, nil
}
