package memstreamer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andrewwormald/floortrack"
	"github.com/andrewwormald/floortrack/adapters/memstreamer"
)

func TestSendRecv(t *testing.T) {
	ctx := context.Background()
	constructor := memstreamer.New()

	sender, err := constructor.NewSender(ctx, "floor-a")
	require.NoError(t, err)

	otherSender, err := constructor.NewSender(ctx, "floor-b")
	require.NoError(t, err)

	require.NoError(t, sender.Send(ctx, floortrack.RecordEvent{
		Type:     floortrack.EventRecordInstalled,
		RecordID: "WO-1",
		Version:  1,
	}))
	require.NoError(t, otherSender.Send(ctx, floortrack.RecordEvent{
		Type:     floortrack.EventRecordInstalled,
		RecordID: "WO-9",
		Version:  1,
	}))
	require.NoError(t, sender.Send(ctx, floortrack.RecordEvent{
		Type:      floortrack.EventRecordUpdated,
		RecordID:  "WO-1",
		Version:   2,
		PartCount: 5,
	}))

	receiver, err := constructor.NewReceiver(ctx, "floor-a", "consumer")
	require.NoError(t, err)
	defer receiver.Close()

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// Only floor-a events arrive, in order.
	event, ack, err := receiver.Recv(recvCtx)
	require.NoError(t, err)
	require.Equal(t, floortrack.EventRecordInstalled, event.Type)
	require.Equal(t, int64(1), event.Version)
	require.NoError(t, ack())

	event, ack, err = receiver.Recv(recvCtx)
	require.NoError(t, err)
	require.Equal(t, floortrack.EventRecordUpdated, event.Type)
	require.Equal(t, int64(2), event.Version)
	require.Equal(t, 5, event.PartCount)
	require.NoError(t, ack())
}

func TestRecvBlocksUntilCancelled(t *testing.T) {
	constructor := memstreamer.New()

	receiver, err := constructor.NewReceiver(context.Background(), "floor-a", "consumer")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err = receiver.Recv(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnackedEventRedelivered(t *testing.T) {
	ctx := context.Background()
	constructor := memstreamer.New()

	sender, err := constructor.NewSender(ctx, "floor-a")
	require.NoError(t, err)
	require.NoError(t, sender.Send(ctx, floortrack.RecordEvent{RecordID: "WO-1"}))

	receiver, err := constructor.NewReceiver(ctx, "floor-a", "consumer")
	require.NoError(t, err)

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	event, _, err := receiver.Recv(recvCtx) // never acked
	require.NoError(t, err)
	require.Equal(t, "WO-1", event.RecordID)

	event, ack, err := receiver.Recv(recvCtx)
	require.NoError(t, err)
	require.Equal(t, "WO-1", event.RecordID)
	require.NoError(t, ack())
}
