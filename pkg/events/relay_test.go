package events

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larry-a4/bidmore/pkg/kvstore"
)

type publishedMessage struct {
	exchange   string
	routingKey string
	body       []byte
}

type fakePublisher struct {
	messages []publishedMessage
	failNext bool
}

func (p *fakePublisher) Publish(_ context.Context, exchange, routingKey string, body []byte) error {
	if p.failNext {
		p.failNext = false
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, publishedMessage{exchange, routingKey, body})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestKVOutbox_EnqueueAndPending(t *testing.T) {
	outbox := NewKVOutbox(kvstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, outbox.EnqueuePayload(ctx, EventTypeTransferRequested, []byte(`{"first":true}`)))
	require.NoError(t, outbox.EnqueuePayload(ctx, EventTypeTransferRequested, []byte(`{"second":true}`)))

	events, keys, err := outbox.PendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Len(t, keys, 2)

	// Time-ordered keys preserve enqueue order.
	assert.Equal(t, []byte(`{"first":true}`), events[0].Payload)
	assert.Equal(t, []byte(`{"second":true}`), events[1].Payload)
	assert.Equal(t, OutboxStatusPending, events[0].Status)
}

func TestKVOutbox_PendingBatchLimit(t *testing.T) {
	outbox := NewKVOutbox(kvstore.NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, outbox.EnqueuePayload(ctx, EventTypeTransferRequested, []byte("{}")))
	}

	events, _, err := outbox.PendingEvents(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestRelay_PublishesPendingEvents(t *testing.T) {
	outbox := NewKVOutbox(kvstore.NewMemoryStore())
	publisher := &fakePublisher{}
	relay := NewOutboxRelay(outbox, publisher, 10, time.Second, TransferExchange, testLogger())
	ctx := context.Background()

	require.NoError(t, outbox.EnqueuePayload(ctx, EventTypeTransferRequested, []byte(`{"auction_id":"swap0001"}`)))

	require.NoError(t, relay.processBatch(ctx))

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, TransferExchange, publisher.messages[0].exchange)
	assert.Equal(t, EventTypeTransferRequested, publisher.messages[0].routingKey)
	assert.Equal(t, []byte(`{"auction_id":"swap0001"}`), publisher.messages[0].body)

	// Published events are not picked up again.
	require.NoError(t, relay.processBatch(ctx))
	assert.Len(t, publisher.messages, 1)
}

func TestRelay_FailedPublishStaysPending(t *testing.T) {
	outbox := NewKVOutbox(kvstore.NewMemoryStore())
	publisher := &fakePublisher{failNext: true}
	relay := NewOutboxRelay(outbox, publisher, 10, time.Second, TransferExchange, testLogger())
	ctx := context.Background()

	require.NoError(t, outbox.EnqueuePayload(ctx, EventTypeTransferRequested, []byte("{}")))

	err := relay.processBatch(ctx)
	require.Error(t, err)

	events, _, err := outbox.PendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1, "event must stay pending after a failed publish")

	// Next tick succeeds and drains the event.
	require.NoError(t, relay.processBatch(ctx))
	assert.Len(t, publisher.messages, 1)
}

func TestRelay_EmptyOutboxIsANoop(t *testing.T) {
	outbox := NewKVOutbox(kvstore.NewMemoryStore())
	publisher := &fakePublisher{}
	relay := NewOutboxRelay(outbox, publisher, 10, time.Second, TransferExchange, testLogger())

	require.NoError(t, relay.processBatch(context.Background()))
	assert.Empty(t, publisher.messages)
}
