package floortrack

import "context"

// RecordStore holds the current reconciled generation of production records.
// It is the only process-wide mutable state of the tracker and is mutated
// solely through the reconciler and estimator paths. Stored records are
// immutable by convention: writers clone a record, mutate the clone and bump
// its version before calling Update, so reads may return shared pointers.
//
// adapters/memstore provides the canonical in-memory implementation.
type RecordStore interface {
	// Init installs the first generation. Calling Init on a populated store
	// is a no-op so a cache seed can never clobber live data.
	Init(ctx context.Context, records []*ProductionRecord) error

	All(ctx context.Context) ([]*ProductionRecord, error)
	// Active returns records whose status is active or paused.
	Active(ctx context.Context) ([]*ProductionRecord, error)
	Lookup(ctx context.Context, id string) (*ProductionRecord, error)

	// Set replaces the held generation with the reconciled one.
	Set(ctx context.Context, records []*ProductionRecord) error
	// Update replaces a single record in place, keyed by record id.
	Update(ctx context.Context, record *ProductionRecord) error

	Clear(ctx context.Context) error
}

// RecordCache persists the last known-good generation across restarts. It is
// best effort: load failures only delay the first populated view until the
// next successful refresh.
type RecordCache interface {
	Load(ctx context.Context) ([]*ProductionRecord, error)
	Save(ctx context.Context, records []*ProductionRecord) error
}
