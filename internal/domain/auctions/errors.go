package auctions

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// The error types below form the closed taxonomy for auction operations.
// Each carries the context the caller needs to build an actionable message.
// All are terminal: nothing in this package retries.

// InvalidIdentifierError reports an identifier outside the 3-20 byte bounds.
type InvalidIdentifierError struct {
	ID string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid auction id %q: must be %d-%d bytes", e.ID, MinIDLength, MaxIDLength)
}

// AlreadyExistsError reports a create targeting an existing identifier.
type AlreadyExistsError struct {
	ID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("auction %q already exists", e.ID)
}

// AlreadyExpiredError reports a create whose expiration has already elapsed.
type AlreadyExpiredError struct {
	ID      string
	Expires Expiration
}

func (e *AlreadyExpiredError) Error() string {
	return fmt.Sprintf("auction %q would already be expired at creation", e.ID)
}

// NotFoundError reports an operation targeting an unknown identifier.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("auction %q does not exist", e.ID)
}

// AuctionExpiredError reports a bid on an expired auction.
type AuctionExpiredError struct {
	ID      string
	Expires Expiration
}

func (e *AuctionExpiredError) Error() string {
	return fmt.Sprintf("auction %q has already expired", e.ID)
}

// TokenMismatchError reports a bid using a different token type than the
// one the auction was opened with.
type TokenMismatchError struct {
	ID        string
	WantToken string
	GotToken  string
}

func (e *TokenMismatchError) Error() string {
	return fmt.Sprintf("auction %q holds token %q, bid used %q", e.ID, e.WantToken, e.GotToken)
}

// BidTooLowError reports a bid amount not strictly greater than the
// current balance.
type BidTooLowError struct {
	ID      string
	Current decimal.Decimal
	Offered decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid of %s on auction %q does not exceed current balance %s",
		e.Offered, e.ID, e.Current)
}

// CorruptStateError reports a stored key that cannot be decoded back into
// a valid auction identifier. It is never silently skipped.
type CorruptStateError struct {
	Key    []byte
	Reason string
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt auction key %x: %s", e.Key, e.Reason)
}
