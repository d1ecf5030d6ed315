package floortrack

import (
	"time"

	"k8s.io/utils/clock"
)

type TrackerOption func(t *Tracker)

// WithClock overrides the default real-time clock. Tests inject a fake clock
// to drive ticks deterministically.
func WithClock(c clock.WithTicker) TrackerOption {
	return func(t *Tracker) {
		t.clock = c
	}
}

func WithLogger(l Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = l
	}
}

// WithOperator attaches the operator identity to every built record.
func WithOperator(op Operator) TrackerOption {
	return func(t *Tracker) {
		t.operator = op
	}
}

// WithEventStreamer enables record-change event emission. The topic is the
// tracker name.
func WithEventStreamer(s EventStreamer) TrackerOption {
	return func(t *Tracker) {
		t.streamer = s
	}
}

// WithCache persists each reconciled generation and seeds the store from the
// last one on start.
func WithCache(c RecordCache) TrackerOption {
	return func(t *Tracker) {
		t.cache = c
	}
}

// WithTickInterval sets the estimator tick period.
func WithTickInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.tickInterval = d
	}
}

// WithRefreshEvery sets how many estimator ticks elapse between full refresh
// passes.
func WithRefreshEvery(n int) TrackerOption {
	return func(t *Tracker) {
		t.refreshEvery = n
	}
}

// WithVerify configures the bounded poll-until-confirmed loop run after
// workflow actions: the number of refresh attempts and the base backoff
// between them (delays grow linearly per attempt).
func WithVerify(attempts int, backoff time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.verifyAttempts = attempts
		t.verifyBackoff = backoff
	}
}
