package auctions

import (
	"context"
	"fmt"
	"log/slog"
)

// Listing bounds.
const (
	DefaultListLimit = 10
	MaxListLimit     = 30
)

// Service enforces the auction lifecycle rules: absent -> open on create,
// open -> open on each accepted bid. There is no terminal state.
type Service struct {
	store  Store
	outbox TransferOutbox
	logger *slog.Logger
}

// NewService creates the auction service. outbox may be nil when no
// execution layer is attached; accepted bids then only report the transfer
// instruction in their result.
func NewService(store Store, outbox TransferOutbox, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		outbox: outbox,
		logger: logger,
	}
}

// CreateAuction opens a new auction holding the depositor's escrowed
// balance. The record is installed only if the identifier is free.
func (s *Service) CreateAuction(ctx context.Context, cmd CreateCommand) error {
	if err := ValidateID(cmd.ID); err != nil {
		return err
	}

	if !cmd.Expires.Valid() {
		return &AlreadyExpiredError{ID: cmd.ID, Expires: cmd.Expires}
	}
	if cmd.Expires.IsExpired(cmd.Block) {
		return &AlreadyExpiredError{ID: cmd.ID, Expires: cmd.Expires}
	}

	err := s.store.Create(ctx, cmd.ID, func() (*Auction, error) {
		return &Auction{
			Winner:  cmd.Depositor,
			Source:  cmd.Depositor,
			Expires: cmd.Expires,
			Balance: cmd.Deposit,
		}, nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("auction created", "id", cmd.ID, "source", string(cmd.Depositor))
	return nil
}

// PlaceBid out-bids the current balance of an existing auction. The
// precondition chain runs in order inside the conditional update, so the
// transfer instruction is computed from the same snapshot the write is
// conditioned on: a bid that fails any check commits nothing and emits
// nothing.
func (s *Service) PlaceBid(ctx context.Context, cmd BidCommand) (*BidResult, error) {
	var transfer *TransferInstruction

	err := s.store.Update(ctx, cmd.ID, func(current *Auction) (*Auction, error) {
		if current.IsExpired(cmd.Block) {
			return nil, &AuctionExpiredError{ID: cmd.ID, Expires: current.Expires}
		}
		if current.Balance.Token != cmd.Bid.Token {
			return nil, &TokenMismatchError{
				ID:        cmd.ID,
				WantToken: current.Balance.Token,
				GotToken:  cmd.Bid.Token,
			}
		}
		if !cmd.Bid.Amount.GreaterThan(current.Balance.Amount) {
			return nil, &BidTooLowError{
				ID:      cmd.ID,
				Current: current.Balance.Amount,
				Offered: cmd.Bid.Amount,
			}
		}

		// Return the superseded balance to the out-bid winner. An empty
		// balance needs no transfer.
		if !current.Balance.IsZero() {
			transfer = &TransferInstruction{
				AuctionID: cmd.ID,
				Recipient: current.Winner,
				Balance:   current.Balance,
			}
		}

		next := *current
		next.Winner = cmd.Bidder
		next.Balance = cmd.Bid
		return &next, nil
	})
	if err != nil {
		transfer = nil
		return nil, err
	}

	if transfer != nil && s.outbox != nil {
		if enqueueErr := s.outbox.Enqueue(ctx, transfer); enqueueErr != nil {
			// The state write has committed; the instruction is still
			// returned to the caller even if the outbox write fails.
			s.logger.Error("failed to enqueue transfer instruction",
				"id", cmd.ID, "error", enqueueErr)
		}
	}

	s.logger.Info("bid accepted", "id", cmd.ID, "bidder", string(cmd.Bidder))
	return &BidResult{Transfer: transfer}, nil
}

// ListAuctions enumerates open auction identifiers in ascending
// lexicographic byte order. The limit is clamped to MaxListLimit and
// defaults to DefaultListLimit; startAfter is excluded from the result.
func (s *Service) ListAuctions(ctx context.Context, query ListQuery) ([]string, error) {
	limit := DefaultListLimit
	if query.Limit != nil {
		limit = *query.Limit
		if limit > MaxListLimit {
			limit = MaxListLimit
		}
		if limit < 0 {
			limit = 0
		}
	}

	startAfter := ""
	if query.StartAfter != nil {
		startAfter = *query.StartAfter
	}

	ids, err := s.store.ListIDs(ctx, startAfter, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	return ids, nil
}

// GetDetails returns the full state of one auction, or a NotFoundError.
func (s *Service) GetDetails(ctx context.Context, id string) (*Details, error) {
	auction, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Details{
		ID:      id,
		Winner:  auction.Winner,
		Source:  auction.Source,
		Expires: auction.Expires,
		Balance: auction.Balance,
	}, nil
}
