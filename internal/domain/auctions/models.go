package auctions

import (
	"time"

	"github.com/shopspring/decimal"
)

// Namespace is the key-prefix scope isolating auction records from any
// other data in the shared store.
const Namespace = "auction"

// Identifier length bounds, in bytes.
const (
	MinIDLength = 3
	MaxIDLength = 20
)

// Address is an opaque ledger address. The service never interprets or
// canonicalizes it; equality is the only operation.
type Address string

// Balance is an escrowed amount of a single fungible token type.
type Balance struct {
	Token  string          `json:"token"`
	Amount decimal.Decimal `json:"amount"`
}

// IsZero reports whether the balance carries no funds.
func (b Balance) IsZero() bool {
	return b.Amount.IsZero()
}

// BlockInfo is the caller-supplied point in chain time an operation is
// evaluated at.
type BlockInfo struct {
	Height uint64
	Time   time.Time
}

// Expiration is a predicate over block height or timestamp. Exactly one of
// the two fields is set.
type Expiration struct {
	AtHeight *uint64    `json:"at_height,omitempty"`
	AtTime   *time.Time `json:"at_time,omitempty"`
}

// Valid reports whether exactly one variant is set.
func (e Expiration) Valid() bool {
	return (e.AtHeight != nil) != (e.AtTime != nil)
}

// IsExpired evaluates the predicate against the given block.
func (e Expiration) IsExpired(block BlockInfo) bool {
	switch {
	case e.AtHeight != nil:
		return block.Height >= *e.AtHeight
	case e.AtTime != nil:
		return !block.Time.Before(*e.AtTime)
	default:
		return false
	}
}

// Auction is the persisted record tracking one escrowed balance. Winner
// changes on every accepted bid; Source and Expires are fixed at creation.
// Records are never deleted: an expired auction stays listed and loadable,
// merely un-biddable.
type Auction struct {
	Winner  Address    `json:"winner"`
	Source  Address    `json:"source"`
	Expires Expiration `json:"expires"`
	Balance Balance    `json:"balance"`
}

// IsExpired evaluates the auction's expiration against the given block.
func (a *Auction) IsExpired(block BlockInfo) bool {
	return a.Expires.IsExpired(block)
}

// ValidateID checks the creator-chosen identifier bounds (3-20 bytes).
func ValidateID(id string) error {
	if len(id) < MinIDLength || len(id) > MaxIDLength {
		return &InvalidIdentifierError{ID: id}
	}
	return nil
}

// CreateCommand opens a new auction. Depositor and Deposit arrive
// out-of-band with the escrow transfer, not in the request body.
type CreateCommand struct {
	ID        string
	Expires   Expiration
	Depositor Address
	Deposit   Balance
	Block     BlockInfo
}

// BidCommand out-bids the current balance of an existing auction.
type BidCommand struct {
	ID     string
	Bidder Address
	Bid    Balance
	Block  BlockInfo
}

// TransferInstruction tells the collaborating execution layer to return a
// superseded balance to its previous holder. The service only authorizes
// the instruction; it never moves funds itself.
type TransferInstruction struct {
	AuctionID string  `json:"auction_id"`
	Recipient Address `json:"recipient"`
	Balance   Balance `json:"balance"`
}

// BidResult reports an accepted bid. Transfer is nil when the superseded
// balance was zero.
type BidResult struct {
	Transfer *TransferInstruction
}

// ListQuery bounds an auction listing. Nil fields take the defaults.
type ListQuery struct {
	StartAfter *string
	Limit      *int
}

// Details is the full state of one auction as returned to queries.
type Details struct {
	ID      string     `json:"id"`
	Winner  Address    `json:"winner"`
	Source  Address    `json:"source"`
	Expires Expiration `json:"expires"`
	Balance Balance    `json:"balance"`
}
