// Package memstreamer implements an in-memory EventStreamer over a shared
// append-only log. Receivers poll their own offset, so a sender and many
// receivers in the same process see a consistent stream.
package memstreamer

import (
	"context"
	"sync"
	"time"

	"github.com/andrewwormald/floortrack"
)

func New(opts ...Option) *StreamConstructor {
	var (
		log []entry
		opt options
	)

	for _, option := range opts {
		option(&opt)
	}

	return &StreamConstructor{
		opts: &opt,
		stream: &Stream{
			mu:  &sync.Mutex{},
			log: &log,
		},
	}
}

type entry struct {
	topic string
	event floortrack.RecordEvent
}

type options struct {
	ackFunc func() error
}

type Option func(o *options)

// WithAck overrides the receiver ack, letting tests assert on or fail acks.
func WithAck(ackFunc func() error) Option {
	return func(o *options) {
		o.ackFunc = ackFunc
	}
}

type StreamConstructor struct {
	opts   *options
	stream *Stream
}

func (s *StreamConstructor) NewSender(ctx context.Context, topic string) (floortrack.EventSender, error) {
	s.stream.mu.Lock()
	defer s.stream.mu.Unlock()

	return &Stream{
		mu:    s.stream.mu,
		log:   s.stream.log,
		topic: topic,
	}, nil
}

func (s *StreamConstructor) NewReceiver(ctx context.Context, topic string, name string) (floortrack.EventReceiver, error) {
	s.stream.mu.Lock()
	defer s.stream.mu.Unlock()

	return &Stream{
		mu:    s.stream.mu,
		log:   s.stream.log,
		topic: topic,
		name:  name,
		ack:   s.opts.ackFunc,
	}, nil
}

var _ floortrack.EventStreamer = (*StreamConstructor)(nil)

type Stream struct {
	mu     *sync.Mutex
	log    *[]entry
	offset int
	topic  string
	name   string
	ack    func() error
}

func (s *Stream) Send(ctx context.Context, event floortrack.RecordEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	*s.log = append(*s.log, entry{
		topic: s.topic,
		event: event,
	})

	return nil
}

func (s *Stream) Recv(ctx context.Context) (*floortrack.RecordEvent, floortrack.Ack, error) {
	for ctx.Err() == nil {
		s.mu.Lock()
		log := *s.log
		s.mu.Unlock()

		if len(log)-1 < s.offset {
			time.Sleep(time.Millisecond * 10)
			continue
		}

		e := log[s.offset]

		if s.topic != e.topic {
			s.offset += 1
			continue
		}

		ackFunc := func() error {
			s.offset += 1
			return nil
		}

		if s.ack != nil {
			ackFunc = s.ack
		}

		event := e.event
		return &event, ackFunc, nil
	}

	return nil, nil, ctx.Err()
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log = nil
	s.offset = 0
	return nil
}

var (
	_ floortrack.EventSender   = (*Stream)(nil)
	_ floortrack.EventReceiver = (*Stream)(nil)
)
