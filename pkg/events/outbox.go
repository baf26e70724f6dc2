package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/larry-a4/bidmore/pkg/kvstore"
)

// OutboxNamespace holds pending transfer instructions in the shared store,
// isolated from auction records.
const OutboxNamespace = "outbox"

// EventTypeTransferRequested is the routing key for balance-return
// instructions emitted by accepted bids.
const EventTypeTransferRequested = "transfer.requested"

// OutboxStatus defines the status of an event in the outbox
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxEvent is one instruction waiting to be handed to the execution
// layer. Events are keyed by a time-ordered UUID so the store's ascending
// key scan yields them in enqueue order.
type OutboxEvent struct {
	ID          uuid.UUID    `json:"id"`
	EventType   string       `json:"event_type"`
	Payload     []byte       `json:"payload"`
	Status      OutboxStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
}

// EventPublisher defines the interface for publishing events to a broker
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// KVOutbox stores outbox events in the namespaced key-value store.
type KVOutbox struct {
	kv kvstore.Store
}

// NewKVOutbox creates an outbox on top of kv.
func NewKVOutbox(kv kvstore.Store) *KVOutbox {
	return &KVOutbox{kv: kv}
}

// EnqueuePayload stores a pending event carrying the given payload.
func (o *KVOutbox) EnqueuePayload(ctx context.Context, eventType string, payload []byte) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate event id: %w", err)
	}

	event := OutboxEvent{
		ID:        id,
		EventType: eventType,
		Payload:   payload,
		Status:    OutboxStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	return o.kv.Create(ctx, OutboxNamespace, []byte(id.String()), func() ([]byte, error) {
		value, marshalErr := json.Marshal(event)
		if marshalErr != nil {
			return nil, fmt.Errorf("failed to encode outbox event: %w", marshalErr)
		}
		return value, nil
	})
}

// get loads and decodes one event.
func (o *KVOutbox) get(ctx context.Context, key []byte) (*OutboxEvent, error) {
	value, err := o.kv.Get(ctx, OutboxNamespace, key)
	if err != nil {
		return nil, err
	}

	var event OutboxEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, fmt.Errorf("failed to decode outbox event: %w", err)
	}
	return &event, nil
}

// markStatus transitions one event's status.
func (o *KVOutbox) markStatus(ctx context.Context, key []byte, status OutboxStatus) error {
	return o.kv.Update(ctx, OutboxNamespace, key, func(existing []byte) ([]byte, error) {
		var event OutboxEvent
		if err := json.Unmarshal(existing, &event); err != nil {
			return nil, fmt.Errorf("failed to decode outbox event: %w", err)
		}

		event.Status = status
		now := time.Now().UTC()
		event.ProcessedAt = &now

		return json.Marshal(event)
	})
}

// PendingEvents returns up to limit pending events in enqueue order, along
// with their store keys.
func (o *KVOutbox) PendingEvents(ctx context.Context, limit int) ([]*OutboxEvent, [][]byte, error) {
	var (
		pending     []*OutboxEvent
		pendingKeys [][]byte
		startAfter  []byte
	)

	// Scan forward until the batch is full or the namespace is exhausted;
	// published events stay behind as an audit trail and are skipped.
	for len(pending) < limit {
		keys, err := o.kv.Keys(ctx, OutboxNamespace, startAfter, limit)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan outbox: %w", err)
		}
		if len(keys) == 0 {
			break
		}

		for _, key := range keys {
			event, getErr := o.get(ctx, key)
			if getErr != nil {
				return nil, nil, getErr
			}
			if event.Status != OutboxStatusPending {
				continue
			}
			pending = append(pending, event)
			pendingKeys = append(pendingKeys, key)
			if len(pending) == limit {
				break
			}
		}

		startAfter = keys[len(keys)-1]
	}

	return pending, pendingKeys, nil
}
