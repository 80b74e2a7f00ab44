package state

import (
	"fmt"
	"math/big"

	coretypes "charitychain/core/types"
	"charitychain/native/market"
)

func listingStorageKey(id uint64) []byte {
	return hashedKey(listingRecordPrefix, idSuffix(id))
}

func orderStorageKey(id uint64) []byte {
	return hashedKey(orderRecordPrefix, idSuffix(id))
}

type storedListing struct {
	ID          uint64
	Seller      [20]byte
	MetadataRef string
	Price       *big.Int
	Category    uint8
	Status      uint8
	Charity     [20]byte
}

func newStoredListing(l *market.Listing) *storedListing {
	price := big.NewInt(0)
	if l.Price != nil {
		price = new(big.Int).Set(l.Price)
	}
	return &storedListing{
		ID:          l.ID,
		Seller:      l.Seller,
		MetadataRef: l.MetadataRef,
		Price:       price,
		Category:    uint8(l.Category),
		Status:      uint8(l.Status),
		Charity:     l.Charity,
	}
}

func (s *storedListing) toListing() (*market.Listing, error) {
	if s == nil {
		return nil, fmt.Errorf("state: nil listing record")
	}
	out := &market.Listing{
		ID:          s.ID,
		Seller:      s.Seller,
		MetadataRef: s.MetadataRef,
		Price:       big.NewInt(0),
		Category:    coretypes.Category(s.Category),
		Status:      market.ListingStatus(s.Status),
		Charity:     s.Charity,
	}
	if s.Price != nil {
		out.Price = new(big.Int).Set(s.Price)
	}
	return market.SanitizeListing(out)
}

type storedOrder struct {
	ID            uint64
	ListingID     uint64
	Buyer         [20]byte
	Seller        [20]byte
	Charity       [20]byte
	Amount        *big.Int
	Status        uint8
	ShippedAt     *big.Int
	DeliveredAt   *big.Int
	DisputeReason string
}

func newStoredOrder(o *market.Order) *storedOrder {
	amount := big.NewInt(0)
	if o.Amount != nil {
		amount = new(big.Int).Set(o.Amount)
	}
	return &storedOrder{
		ID:            o.ID,
		ListingID:     o.ListingID,
		Buyer:         o.Buyer,
		Seller:        o.Seller,
		Charity:       o.Charity,
		Amount:        amount,
		Status:        uint8(o.Status),
		ShippedAt:     big.NewInt(o.ShippedAt),
		DeliveredAt:   big.NewInt(o.DeliveredAt),
		DisputeReason: o.DisputeReason,
	}
}

func (s *storedOrder) toOrder() (*market.Order, error) {
	if s == nil {
		return nil, fmt.Errorf("state: nil order record")
	}
	out := &market.Order{
		ID:            s.ID,
		ListingID:     s.ListingID,
		Buyer:         s.Buyer,
		Seller:        s.Seller,
		Charity:       s.Charity,
		Amount:        big.NewInt(0),
		Status:        market.OrderStatus(s.Status),
		DisputeReason: s.DisputeReason,
	}
	if s.Amount != nil {
		out.Amount = new(big.Int).Set(s.Amount)
	}
	if s.ShippedAt != nil {
		out.ShippedAt = s.ShippedAt.Int64()
	}
	if s.DeliveredAt != nil {
		out.DeliveredAt = s.DeliveredAt.Int64()
	}
	return market.SanitizeOrder(out)
}

// ListingPut persists the listing record.
func (m *Manager) ListingPut(l *market.Listing) error {
	sanitized, err := market.SanitizeListing(l)
	if err != nil {
		return err
	}
	return m.writeRLP(listingStorageKey(sanitized.ID), newStoredListing(sanitized))
}

// ListingGet loads the listing for the id.
func (m *Manager) ListingGet(id uint64) (*market.Listing, bool) {
	stored := new(storedListing)
	ok, err := m.loadRLP(listingStorageKey(id), stored)
	if err != nil || !ok {
		return nil, false
	}
	listing, err := stored.toListing()
	if err != nil {
		return nil, false
	}
	return listing, true
}

// NextListingID returns the next dense listing id and advances the counter.
func (m *Manager) NextListingID() (uint64, error) {
	return m.bumpCounter(hashedKey(listingCounterKey, nil))
}

// ListingCount returns the number of listings ever created.
func (m *Manager) ListingCount() (uint64, error) {
	return m.loadCounter(hashedKey(listingCounterKey, nil))
}

// ListingIndexSeller appends the listing id to the seller's index.
func (m *Manager) ListingIndexSeller(seller [20]byte, id uint64) error {
	return m.appendIDList(hashedKey(sellerListingsPrefix, seller[:]), id)
}

// SellerListingIDs returns the listing ids created by the seller.
func (m *Manager) SellerListingIDs(seller [20]byte) ([]uint64, error) {
	return m.loadIDList(hashedKey(sellerListingsPrefix, seller[:]))
}

// OrderPut persists the order record.
func (m *Manager) OrderPut(o *market.Order) error {
	sanitized, err := market.SanitizeOrder(o)
	if err != nil {
		return err
	}
	return m.writeRLP(orderStorageKey(sanitized.ID), newStoredOrder(sanitized))
}

// OrderGet loads the order for the id.
func (m *Manager) OrderGet(id uint64) (*market.Order, bool) {
	stored := new(storedOrder)
	ok, err := m.loadRLP(orderStorageKey(id), stored)
	if err != nil || !ok {
		return nil, false
	}
	order, err := stored.toOrder()
	if err != nil {
		return nil, false
	}
	return order, true
}

// NextOrderID returns the next dense order id and advances the counter.
func (m *Manager) NextOrderID() (uint64, error) {
	return m.bumpCounter(hashedKey(orderCounterKey, nil))
}

// OrderCount returns the number of orders ever created.
func (m *Manager) OrderCount() (uint64, error) {
	return m.loadCounter(hashedKey(orderCounterKey, nil))
}

// OrderIndexBuyer appends the order id to the buyer's index.
func (m *Manager) OrderIndexBuyer(buyer [20]byte, id uint64) error {
	return m.appendIDList(hashedKey(buyerOrdersPrefix, buyer[:]), id)
}

// BuyerOrderIDs returns the order ids opened by the buyer.
func (m *Manager) BuyerOrderIDs(buyer [20]byte) ([]uint64, error) {
	return m.loadIDList(hashedKey(buyerOrdersPrefix, buyer[:]))
}
