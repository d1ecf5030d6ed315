package floortrack

import (
	"context"
	"time"
)

// EventType describes what happened to a record in a reconcile or estimator
// pass.
type EventType int

const (
	EventUnknown         EventType = 0
	EventRecordInstalled EventType = 1
	EventRecordUpdated   EventType = 2
	EventRecordRemoved   EventType = 3
)

func (t EventType) String() string {
	switch t {
	case EventRecordInstalled:
		return "record_installed"
	case EventRecordUpdated:
		return "record_updated"
	case EventRecordRemoved:
		return "record_removed"
	default:
		return "unknown"
	}
}

// RecordEvent is emitted whenever a record's observable fields change. It is
// the explicit change-notification contract that replaces reference-equality
// change detection: consumers react to events (or compare versions) instead
// of comparing pointers.
type RecordEvent struct {
	Type      EventType `json:"type"`
	RecordID  string    `json:"record_id"`
	Version   int64     `json:"version"`
	Status    Status    `json:"status"`
	PartCount int       `json:"part_count"`
	At        time.Time `json:"at"`
}

// EventStreamer defines the event streaming adapter interface. Adapters
// include memstreamer (in-memory, used in tests and by UI collaborators in
// process) and kafkastreamer.
type EventStreamer interface {
	NewSender(ctx context.Context, topic string) (EventSender, error)
	NewReceiver(ctx context.Context, topic string, name string) (EventReceiver, error)
}

type EventSender interface {
	Send(ctx context.Context, event RecordEvent) error
	Close() error
}

type EventReceiver interface {
	Recv(ctx context.Context) (*RecordEvent, Ack, error)
	Close() error
}

// Ack is used for the event streamer to update its cursor of what events have
// been consumed.
type Ack func() error
