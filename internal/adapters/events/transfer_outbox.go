package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/larry-a4/bidmore/internal/domain/auctions"
	pkgevents "github.com/larry-a4/bidmore/pkg/events"
)

// TransferOutbox implements auctions.TransferOutbox by recording each
// instruction as a pending outbox event for the relay to publish.
type TransferOutbox struct {
	outbox *pkgevents.KVOutbox
}

var _ auctions.TransferOutbox = (*TransferOutbox)(nil)

// NewTransferOutbox creates the outbox adapter.
func NewTransferOutbox(outbox *pkgevents.KVOutbox) *TransferOutbox {
	return &TransferOutbox{outbox: outbox}
}

// Enqueue records a transfer instruction for the execution layer.
func (o *TransferOutbox) Enqueue(ctx context.Context, instruction *auctions.TransferInstruction) error {
	payload, err := json.Marshal(instruction)
	if err != nil {
		return fmt.Errorf("failed to encode transfer instruction: %w", err)
	}
	return o.outbox.EnqueuePayload(ctx, pkgevents.EventTypeTransferRequested, payload)
}
