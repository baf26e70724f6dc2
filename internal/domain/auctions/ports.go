package auctions

import "context"

// Store is the typed persistence port for auction records. Implementations
// wrap the namespaced key-value store with the record codec; the
// conditional semantics (create-if-absent, update-if-present, closure
// errors aborting the write) are those of the underlying store.
type Store interface {
	// Load returns the record for id, or a NotFoundError.
	Load(ctx context.Context, id string) (*Auction, error)

	// Create installs produce()'s record if no record exists at id;
	// returns an AlreadyExistsError otherwise.
	Create(ctx context.Context, id string, produce func() (*Auction, error)) error

	// Update replaces the record at id with transform(existing); returns a
	// NotFoundError when absent. A transform error aborts the write.
	Update(ctx context.Context, id string, transform func(*Auction) (*Auction, error)) error

	// ListIDs returns up to limit identifiers in ascending byte order,
	// strictly after startAfter when non-empty. A stored key that does not
	// decode to a valid identifier fails the call with a CorruptStateError.
	ListIDs(ctx context.Context, startAfter string, limit int) ([]string, error)
}

// TransferOutbox records transfer instructions for the collaborating
// execution layer to carry out after the state write commits.
type TransferOutbox interface {
	Enqueue(ctx context.Context, instruction *TransferInstruction) error
}
