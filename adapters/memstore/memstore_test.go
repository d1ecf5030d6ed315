package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andrewwormald/floortrack"
	"github.com/andrewwormald/floortrack/adapters/memstore"
)

func record(id string, status floortrack.Status) *floortrack.ProductionRecord {
	return &floortrack.ProductionRecord{
		ID:     id,
		Status: status,
	}
}

func TestUninitialised(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	_, err := s.All(ctx)
	require.ErrorIs(t, err, floortrack.ErrStoreNotInitialised)

	_, err = s.Active(ctx)
	require.ErrorIs(t, err, floortrack.ErrStoreNotInitialised)

	_, err = s.Lookup(ctx, "WO-1")
	require.ErrorIs(t, err, floortrack.ErrStoreNotInitialised)

	err = s.Update(ctx, record("WO-1", floortrack.StatusActive))
	require.ErrorIs(t, err, floortrack.ErrStoreNotInitialised)
}

func TestInitDoesNotClobber(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	require.NoError(t, s.Set(ctx, []*floortrack.ProductionRecord{
		record("WO-1", floortrack.StatusActive),
	}))

	// A late cache seed must not replace live data.
	require.NoError(t, s.Init(ctx, []*floortrack.ProductionRecord{
		record("WO-9", floortrack.StatusActive),
	}))

	records, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "WO-1", records[0].ID)
}

func TestActiveFiltersCompleted(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	require.NoError(t, s.Set(ctx, []*floortrack.ProductionRecord{
		record("WO-1", floortrack.StatusActive),
		record("WO-2", floortrack.StatusPaused),
		record("WO-3", floortrack.StatusCompleted),
	}))

	active, err := s.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "WO-1", active[0].ID)
	require.Equal(t, "WO-2", active[1].ID)
}

func TestLookupAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	original := record("WO-1", floortrack.StatusActive)
	require.NoError(t, s.Set(ctx, []*floortrack.ProductionRecord{original}))

	got, err := s.Lookup(ctx, "WO-1")
	require.NoError(t, err)
	require.Same(t, original, got)

	_, err = s.Lookup(ctx, "WO-404")
	require.ErrorIs(t, err, floortrack.ErrRecordNotFound)

	updated := record("WO-1", floortrack.StatusPaused)
	updated.Version = 2
	require.NoError(t, s.Update(ctx, updated))

	got, err = s.Lookup(ctx, "WO-1")
	require.NoError(t, err)
	require.Same(t, updated, got)

	err = s.Update(ctx, record("WO-404", floortrack.StatusActive))
	require.ErrorIs(t, err, floortrack.ErrRecordNotFound)
}

func TestSetPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	require.NoError(t, s.Set(ctx, []*floortrack.ProductionRecord{
		record("WO-2", floortrack.StatusActive),
		record("WO-1", floortrack.StatusActive),
	}))

	records, err := s.All(ctx)
	require.NoError(t, err)
	require.Equal(t, "WO-2", records[0].ID)
	require.Equal(t, "WO-1", records[1].ID)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	require.NoError(t, s.Set(ctx, []*floortrack.ProductionRecord{
		record("WO-1", floortrack.StatusActive),
	}))
	require.NoError(t, s.Clear(ctx))

	_, err := s.All(ctx)
	require.ErrorIs(t, err, floortrack.ErrStoreNotInitialised)
}
