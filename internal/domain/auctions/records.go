package auctions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/larry-a4/bidmore/pkg/kvstore"
)

// Records implements Store over a namespaced key-value store, keyed by raw
// identifier bytes under the "auction" namespace with JSON-encoded values.
type Records struct {
	kv kvstore.Store
}

var _ Store = (*Records)(nil)

// NewRecords creates the auction record store on top of kv.
func NewRecords(kv kvstore.Store) *Records {
	return &Records{kv: kv}
}

func decodeAuction(value []byte) (*Auction, error) {
	var auction Auction
	if err := json.Unmarshal(value, &auction); err != nil {
		return nil, fmt.Errorf("failed to decode auction record: %w", err)
	}
	return &auction, nil
}

func encodeAuction(auction *Auction) ([]byte, error) {
	value, err := json.Marshal(auction)
	if err != nil {
		return nil, fmt.Errorf("failed to encode auction record: %w", err)
	}
	return value, nil
}

// Load returns the record for id, or a NotFoundError.
func (r *Records) Load(ctx context.Context, id string) (*Auction, error) {
	value, err := r.kv.Get(ctx, Namespace, []byte(id))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, err
	}
	return decodeAuction(value)
}

// Create installs produce()'s record if no record exists at id.
func (r *Records) Create(ctx context.Context, id string, produce func() (*Auction, error)) error {
	err := r.kv.Create(ctx, Namespace, []byte(id), func() ([]byte, error) {
		auction, produceErr := produce()
		if produceErr != nil {
			return nil, produceErr
		}
		return encodeAuction(auction)
	})
	if errors.Is(err, kvstore.ErrExists) {
		return &AlreadyExistsError{ID: id}
	}
	return err
}

// Update replaces the record at id with transform(existing).
func (r *Records) Update(ctx context.Context, id string, transform func(*Auction) (*Auction, error)) error {
	err := r.kv.Update(ctx, Namespace, []byte(id), func(existing []byte) ([]byte, error) {
		auction, decodeErr := decodeAuction(existing)
		if decodeErr != nil {
			return nil, decodeErr
		}
		next, transformErr := transform(auction)
		if transformErr != nil {
			return nil, transformErr
		}
		return encodeAuction(next)
	})
	if errors.Is(err, kvstore.ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	return err
}

// ListIDs returns up to limit identifiers in ascending byte order, strictly
// after startAfter when non-empty.
func (r *Records) ListIDs(ctx context.Context, startAfter string, limit int) ([]string, error) {
	var start []byte
	if startAfter != "" {
		start = []byte(startAfter)
	}

	keys, err := r.kv.Keys(ctx, Namespace, start, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if !utf8.Valid(key) {
			return nil, &CorruptStateError{Key: key, Reason: "not valid utf-8"}
		}
		if len(key) < MinIDLength || len(key) > MaxIDLength {
			return nil, &CorruptStateError{Key: key, Reason: "identifier length out of bounds"}
		}
		ids = append(ids, string(key))
	}
	return ids, nil
}
