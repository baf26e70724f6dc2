package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// OutboxRelay polls the outbox for pending events and publishes them to the
// broker. A publish failure leaves the event pending, so it is retried on
// the next tick; the relay never drops an instruction.
type OutboxRelay struct {
	outbox    *KVOutbox
	publisher EventPublisher
	batchSize int
	interval  time.Duration
	exchange  string
	logger    *slog.Logger
}

// NewOutboxRelay creates a new outbox relay
func NewOutboxRelay(
	outbox *KVOutbox,
	publisher EventPublisher,
	batchSize int,
	interval time.Duration,
	exchange string,
	logger *slog.Logger,
) *OutboxRelay {
	return &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
		exchange:  exchange,
		logger:    logger,
	}
}

// Run starts the polling loop
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Initial run
	if err := r.processBatch(ctx); err != nil {
		r.logger.Error("Error processing batch", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.processBatch(ctx); err != nil {
				r.logger.Error("Error processing batch", "error", err)
			}
		}
	}
}

func (r *OutboxRelay) processBatch(ctx context.Context) error {
	events, keys, err := r.outbox.PendingEvents(ctx, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending events: %w", err)
	}

	if len(events) == 0 {
		return nil // Nothing to do
	}

	r.logger.Info("Processing events", "count", len(events))

	for i, event := range events {
		// Exchange is configurable, routing key is the event type. If the
		// publish fails the event stays pending and is retried next tick.
		if pubErr := r.publisher.Publish(ctx, r.exchange, event.EventType, event.Payload); pubErr != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.ID, pubErr)
		}

		if markErr := r.outbox.markStatus(ctx, keys[i], OutboxStatusPublished); markErr != nil {
			return fmt.Errorf("failed to update event status %s: %w", event.ID, markErr)
		}
	}

	return nil
}
