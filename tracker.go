package floortrack

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"k8s.io/utils/clock"

	"github.com/andrewwormald/floortrack/internal/metrics"
)

// Tracker owns the local store and drives the three recurring activities of
// the engine: the 1-tick estimator pass, the every-Nth-tick full refresh
// (snapshot fetch, build, reconcile) and the user-triggered pause/issue
// workflow. All store mutations funnel through the reconciler and estimator
// contracts, so the timers never fight over part counts.
type Tracker struct {
	name     string
	gateway  Gateway
	store    RecordStore
	cache    RecordCache
	streamer EventStreamer
	sender   EventSender
	clock    clock.WithTicker
	logger   Logger
	operator Operator

	tickInterval   time.Duration
	refreshEvery   int
	verifyAttempts int
	verifyBackoff  time.Duration

	// storeMu serialises every read-merge-write cycle on the store: refresh
	// passes, estimator ticks and the workflow's optimistic patches. Without
	// it an update landing between a refresh's read and its install would be
	// clobbered by the stale generation.
	storeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

// New constructs a tracker. The gateway and store are required; everything
// else defaults (real clock, no-op logger, no event streamer, no cache, 1s
// tick with a refresh every 5th tick).
func New(name string, gateway Gateway, store RecordStore, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		name:           name,
		gateway:        gateway,
		store:          store,
		clock:          clock.RealClock{},
		logger:         noopLogger{},
		tickInterval:   time.Second,
		refreshEvery:   5,
		verifyAttempts: 3,
		verifyBackoff:  500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *Tracker) Name() string {
	return t.name
}

// Run starts the background tick loop. Subsequent calls are safe no-ops.
func (t *Tracker) Run(ctx context.Context) {
	t.once.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		t.ctx = ctx
		t.cancel = cancel

		if t.streamer != nil {
			sender, err := t.streamer.NewSender(ctx, t.name)
			if err != nil {
				// NoReturnErr: the tracker still functions without event
				// emission; consumers fall back to version polling.
				t.logger.Error(ctx, errors.Wrap(err, "open event sender"))
			} else {
				t.sender = sender
			}
		}

		t.seedFromCache(ctx)

		// First refresh straight away so the view populates without waiting
		// for the fifth tick.
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			err := t.refresh(ctx)
			if err != nil {
				// NoReturnErr: absorbed, next timer tick retries.
				t.logger.Error(ctx, errors.Wrap(err, "initial refresh"))
			}
		}()

		t.wg.Add(1)
		go t.tickForever()
	})
}

// Stop cancels the background loops and waits for them to exit. Timers are
// the only resource the tracker holds, so Stop is the complete teardown.
func (t *Tracker) Stop() {
	if t.cancel == nil {
		return
	}

	t.cancel()
	t.wg.Wait()

	if t.sender != nil {
		err := t.sender.Close()
		if err != nil {
			// NoReturnErr: nothing actionable at teardown.
			t.logger.Error(context.Background(), errors.Wrap(err, "close event sender"))
		}
	}
}

// Records returns the current reconciled generation.
func (t *Tracker) Records(ctx context.Context) ([]*ProductionRecord, error) {
	return t.store.All(ctx)
}

// ActiveRecords returns the records an operator dashboard shows: active and
// paused productions.
func (t *Tracker) ActiveRecords(ctx context.Context) ([]*ProductionRecord, error) {
	return t.store.Active(ctx)
}

func (t *Tracker) Lookup(ctx context.Context, recordID string) (*ProductionRecord, error) {
	return t.store.Lookup(ctx, recordID)
}

// RefreshNow forces a full snapshot fetch, build and reconcile pass, the same
// one the timer runs every Nth tick.
func (t *Tracker) RefreshNow(ctx context.Context) error {
	return t.refresh(ctx)
}

func (t *Tracker) tickForever() {
	defer t.wg.Done()

	ticker := t.clock.NewTicker(t.tickInterval)
	defer ticker.Stop()

	var tick int
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C():
		}

		tick++

		err := t.estimatorTick(t.ctx)
		if err != nil {
			// NoReturnErr: absorbed, the next tick retries.
			t.logger.Error(t.ctx, errors.Wrap(err, "estimator tick"))
		}

		if tick%t.refreshEvery == 0 {
			// Fire and forget: each refresh is an independent, idempotent
			// full pass, so an overlap with a slow in-flight refresh only
			// produces a redundant reconcile.
			t.wg.Add(1)
			go func() {
				defer t.wg.Done()
				err := t.refresh(t.ctx)
				if err != nil {
					// NoReturnErr: absorbed, next scheduled refresh retries.
					t.logger.Error(t.ctx, errors.Wrap(err, "scheduled refresh"))
				}
			}()
		}
	}
}

// refresh runs one full pass: fetch a snapshot, build candidates, reconcile
// against the held generation and install the result. On failure the store is
// left at its last known-good state.
func (t *Tracker) refresh(ctx context.Context) error {
	t0 := t.clock.Now()

	snap, err := FetchSnapshot(ctx, t.gateway, t.logger, t.clock)
	if err != nil {
		metrics.RefreshErrors.WithLabelValues(t.name).Inc()
		return errors.Wrap(err, "fetch snapshot")
	}

	candidates := BuildRecords(snap, t.operator, snap.At)

	// The read-reconcile-install cycle runs under storeMu so a concurrent
	// estimator tick or workflow patch cannot land in between and get
	// clobbered by the stale generation.
	t.storeMu.Lock()
	prev, err := t.store.All(ctx)
	if errors.Is(err, ErrStoreNotInitialised) {
		// NoReturnErr: first ever refresh, reconcile against nothing.
		prev = nil
	} else if err != nil {
		t.storeMu.Unlock()
		return errors.Wrap(err, "list previous records")
	}

	generation, events := Reconcile(prev, candidates, snap.At)

	err = t.store.Set(ctx, generation)
	t.storeMu.Unlock()
	if err != nil {
		return errors.Wrap(err, "install reconciled records")
	}

	for _, e := range events {
		t.emit(ctx, e)
	}

	if t.cache != nil {
		err := t.cache.Save(ctx, generation)
		if err != nil {
			// NoReturnErr: the cache is best effort.
			t.logger.Error(ctx, errors.Wrap(err, "save record cache"))
		}
	}

	t.observe(generation)
	metrics.RefreshLatency.WithLabelValues(t.name).Observe(t.clock.Since(t0).Seconds())
	metrics.Refreshes.WithLabelValues(t.name).Inc()

	return nil
}

// verifyRefresh re-fetches until the installed generation satisfies the
// post-condition of a workflow action or the bounded attempts run out. This
// replaces fixed re-fetch delays: the eventual-consistency assumption is
// explicit and capped. Delays grow linearly, so the defaults probe at 0.5,
// 1.5 and 3.0 seconds after the action.
func (t *Tracker) verifyRefresh(ctx context.Context, check func([]*ProductionRecord) bool) error {
	for attempt := 0; attempt < t.verifyAttempts; attempt++ {
		err := t.waitFor(ctx, time.Duration(attempt+1)*t.verifyBackoff)
		if err != nil {
			return err
		}

		err = t.refresh(ctx)
		if err != nil {
			// NoReturnErr: a failed verify refresh just burns an attempt.
			t.logger.Error(ctx, errors.Wrap(err, "verify refresh", j.KV("attempt", attempt)))
			continue
		}

		records, err := t.store.All(ctx)
		if err != nil {
			return err
		}

		if check(records) {
			return nil
		}
	}

	return errors.Wrap(ErrVerifyTimeout, "", j.KV("attempts", t.verifyAttempts))
}

func (t *Tracker) waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := t.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

func (t *Tracker) seedFromCache(ctx context.Context) {
	if t.cache == nil {
		err := t.store.Init(ctx, nil)
		if err != nil {
			// NoReturnErr: the first refresh will initialise via Set.
			t.logger.Error(ctx, errors.Wrap(err, "init empty store"))
		}
		return
	}

	seed, err := t.cache.Load(ctx)
	if err != nil {
		// NoReturnErr: a broken cache only delays the first populated view.
		t.logger.Error(ctx, errors.Wrap(err, "load record cache"))
		seed = nil
	}

	err = t.store.Init(ctx, seed)
	if err != nil {
		// NoReturnErr: as above.
		t.logger.Error(ctx, errors.Wrap(err, "seed store from cache"))
		return
	}

	if len(seed) > 0 {
		t.logger.Debug(ctx, "seeded store from cache", MKV{
			"records": strconv.Itoa(len(seed)),
		})
	}
}

func (t *Tracker) emit(ctx context.Context, e RecordEvent) {
	if t.sender == nil {
		return
	}

	err := t.sender.Send(ctx, e)
	if err != nil {
		// NoReturnErr: emission is best effort; versions still advance.
		t.logger.Error(ctx, errors.Wrap(err, "emit record event",
			j.KV("record_id", e.RecordID),
			j.KV("event_type", e.Type.String()),
		))
	}
}

func (t *Tracker) observe(generation []*ProductionRecord) {
	var active, paused, completed float64
	for _, r := range generation {
		switch r.Status {
		case StatusActive:
			active++
		case StatusPaused:
			paused++
		case StatusCompleted:
			completed++
		}
	}

	metrics.Records.WithLabelValues(t.name, StatusActive.String()).Set(active)
	metrics.Records.WithLabelValues(t.name, StatusPaused.String()).Set(paused)
	metrics.Records.WithLabelValues(t.name, StatusCompleted.String()).Set(completed)
}
