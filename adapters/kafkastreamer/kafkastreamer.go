// Package kafkastreamer implements the EventStreamer interface on Kafka.
// Events are JSON encoded, keyed by record id so per-record ordering is
// preserved across partitions, and consumed through consumer groups so the
// receiver name maps onto a group id.
package kafkastreamer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/segmentio/kafka-go"

	"github.com/andrewwormald/floortrack"
)

func New(brokers []string) *StreamConstructor {
	return &StreamConstructor{
		brokers: brokers,
	}
}

var _ floortrack.EventStreamer = (*StreamConstructor)(nil)

type StreamConstructor struct {
	brokers []string
}

func (s *StreamConstructor) NewSender(ctx context.Context, topic string) (floortrack.EventSender, error) {
	return &Sender{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(s.brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: time.Millisecond * 50,
		},
	}, nil
}

type Sender struct {
	writer *kafka.Writer
}

func (s *Sender) Send(ctx context.Context, event floortrack.RecordEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal record event")
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RecordID),
		Value: b,
	})
	if err != nil {
		return errors.Wrap(err, "write record event", j.KV("record_id", event.RecordID))
	}

	return nil
}

func (s *Sender) Close() error {
	return s.writer.Close()
}

func (s *StreamConstructor) NewReceiver(ctx context.Context, topic string, name string) (floortrack.EventReceiver, error) {
	return &Receiver{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        s.brokers,
			GroupID:        name,
			Topic:          topic,
			CommitInterval: 0, // synchronous commits via Ack
		}),
	}, nil
}

type Receiver struct {
	reader *kafka.Reader
}

func (r *Receiver) Recv(ctx context.Context) (*floortrack.RecordEvent, floortrack.Ack, error) {
	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "fetch record event")
	}

	var event floortrack.RecordEvent
	err = json.Unmarshal(msg.Value, &event)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unmarshal record event", j.KV("offset", msg.Offset))
	}

	return &event, func() error {
		return r.reader.CommitMessages(ctx, msg)
	}, nil
}

func (r *Receiver) Close() error {
	return r.reader.Close()
}

var (
	_ floortrack.EventSender   = (*Sender)(nil)
	_ floortrack.EventReceiver = (*Receiver)(nil)
)
