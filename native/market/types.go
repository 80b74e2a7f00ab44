package market

import (
	"fmt"
	"math/big"
	"strings"

	"charitychain/core/types"
)

// DisputeWindowSeconds is the period after delivery confirmation during which
// the buyer may still open a dispute. Once it elapses without a dispute the
// escrowed funds become releasable to the charity.
const DisputeWindowSeconds int64 = 14 * 24 * 60 * 60

// ListingStatus enumerates the lifecycle states of a listing. The numeric
// values are part of the external protocol.
type ListingStatus uint8

const (
	ListingActive ListingStatus = iota
	ListingSold
	ListingCancelled
)

// Valid reports whether the status value is within the supported range.
func (s ListingStatus) Valid() bool {
	return s <= ListingCancelled
}

// Listing is an item offered by a seller with a designated charity as the
// recipient of the eventual sale proceeds. Price is immutable after creation;
// only the status changes, and never back to Active.
type Listing struct {
	ID          uint64
	Seller      [20]byte
	MetadataRef string
	Price       *big.Int
	Category    types.Category
	Status      ListingStatus
	Charity     [20]byte
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// OrderStatus enumerates the escrow order state machine. The numeric values
// are part of the external protocol.
type OrderStatus uint8

const (
	OrderAwaitingShipment OrderStatus = iota
	OrderShipped
	OrderDelivered
	OrderCompleted
	OrderDisputed
	OrderRefunded
)

// Valid reports whether the status value is within the supported range.
func (s OrderStatus) Valid() bool {
	return s <= OrderRefunded
}

// Terminal reports whether the status permits no further transition.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderRefunded
}

// Order escrows a buyer's payment for a sold listing until delivery settles
// to the charity or a dispute refunds the buyer. Amount equals the listing
// price at purchase time. Timestamps are unix seconds, zero when unset.
type Order struct {
	ID            uint64
	ListingID     uint64
	Buyer         [20]byte
	Seller        [20]byte
	Charity       [20]byte
	Amount        *big.Int
	Status        OrderStatus
	ShippedAt     int64
	DeliveredAt   int64
	DisputeReason string
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Amount != nil {
		clone.Amount = new(big.Int).Set(o.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// SanitizeListing validates a listing record and returns a cloned instance
// with a non-nil price.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("market: nil listing")
	}
	clone := l.Clone()
	if strings.TrimSpace(clone.MetadataRef) == "" {
		return nil, fmt.Errorf("market: listing metadata required")
	}
	if clone.Price.Sign() < 0 {
		return nil, fmt.Errorf("market: listing price must be non-negative")
	}
	if !clone.Category.Valid() {
		return nil, fmt.Errorf("market: invalid category: %d", clone.Category)
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("market: invalid listing status: %d", clone.Status)
	}
	return clone, nil
}

// SanitizeOrder validates an order record and returns a cloned instance with
// a non-nil amount.
func SanitizeOrder(o *Order) (*Order, error) {
	if o == nil {
		return nil, fmt.Errorf("market: nil order")
	}
	clone := o.Clone()
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("market: order amount must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("market: invalid order status: %d", clone.Status)
	}
	return clone, nil
}
