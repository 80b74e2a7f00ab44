package market

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"charitychain/core/events"
	coretypes "charitychain/core/types"
	"charitychain/native/charity"
	"charitychain/native/common"
)

type mockState struct {
	accounts     map[[20]byte]*coretypes.Account
	vault        [20]byte
	listings     map[uint64]*Listing
	listingSeq   uint64
	sellerIndex  map[[20]byte][]uint64
	orders       map[uint64]*Order
	orderSeq     uint64
	buyerIndex   map[[20]byte][]uint64
	charities    map[[20]byte]*charity.Charity
	itemRequests map[uint64]*charity.ItemRequest
}

func newMockState() *mockState {
	return &mockState{
		accounts:     make(map[[20]byte]*coretypes.Account),
		vault:        newTestAddress(0xEE),
		listings:     make(map[uint64]*Listing),
		sellerIndex:  make(map[[20]byte][]uint64),
		orders:       make(map[uint64]*Order),
		buyerIndex:   make(map[[20]byte][]uint64),
		charities:    make(map[[20]byte]*charity.Charity),
		itemRequests: make(map[uint64]*charity.ItemRequest),
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func (m *mockState) GetAccount(addr []byte) (*coretypes.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	if acc, ok := m.accounts[key]; ok {
		return acc.Clone(), nil
	}
	return coretypes.NewAccount(), nil
}

func (m *mockState) PutAccount(addr []byte, account *coretypes.Account) error {
	if account == nil {
		return fmt.Errorf("nil account")
	}
	var key [20]byte
	copy(key[:], addr)
	m.accounts[key] = account.Clone()
	return nil
}

func (m *mockState) EscrowVaultAddress() [20]byte { return m.vault }

func (m *mockState) ListingPut(l *Listing) error {
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return err
	}
	m.listings[sanitized.ID] = sanitized.Clone()
	return nil
}

func (m *mockState) ListingGet(id uint64) (*Listing, bool) {
	listing, ok := m.listings[id]
	if !ok {
		return nil, false
	}
	return listing.Clone(), true
}

func (m *mockState) NextListingID() (uint64, error) {
	id := m.listingSeq
	m.listingSeq++
	return id, nil
}

func (m *mockState) ListingCount() (uint64, error) { return m.listingSeq, nil }

func (m *mockState) ListingIndexSeller(seller [20]byte, id uint64) error {
	m.sellerIndex[seller] = append(m.sellerIndex[seller], id)
	return nil
}

func (m *mockState) SellerListingIDs(seller [20]byte) ([]uint64, error) {
	return append([]uint64(nil), m.sellerIndex[seller]...), nil
}

func (m *mockState) OrderPut(o *Order) error {
	sanitized, err := SanitizeOrder(o)
	if err != nil {
		return err
	}
	m.orders[sanitized.ID] = sanitized.Clone()
	return nil
}

func (m *mockState) OrderGet(id uint64) (*Order, bool) {
	order, ok := m.orders[id]
	if !ok {
		return nil, false
	}
	return order.Clone(), true
}

func (m *mockState) NextOrderID() (uint64, error) {
	id := m.orderSeq
	m.orderSeq++
	return id, nil
}

func (m *mockState) OrderCount() (uint64, error) { return m.orderSeq, nil }

func (m *mockState) OrderIndexBuyer(buyer [20]byte, id uint64) error {
	m.buyerIndex[buyer] = append(m.buyerIndex[buyer], id)
	return nil
}

func (m *mockState) BuyerOrderIDs(buyer [20]byte) ([]uint64, error) {
	return append([]uint64(nil), m.buyerIndex[buyer]...), nil
}

func (m *mockState) CharityGet(addr [20]byte) (*charity.Charity, bool) {
	record, ok := m.charities[addr]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

func (m *mockState) CharityPut(c *charity.Charity) error {
	if c == nil {
		return fmt.Errorf("nil charity")
	}
	m.charities[c.Identity] = c.Clone()
	return nil
}

func (m *mockState) ItemRequestGet(id uint64) (*charity.ItemRequest, bool) {
	request, ok := m.itemRequests[id]
	if !ok {
		return nil, false
	}
	return request.Clone(), true
}

func (m *mockState) ItemRequestPut(r *charity.ItemRequest) error {
	sanitized, err := charity.SanitizeItemRequest(r)
	if err != nil {
		return err
	}
	m.itemRequests[sanitized.ID] = sanitized.Clone()
	return nil
}

type mockAuthorizer struct {
	admins map[[20]byte]bool
}

func (a *mockAuthorizer) IsAdmin(addr [20]byte) (bool, error) {
	return a.admins[addr], nil
}

func (m *mockState) fund(addr [20]byte, amount int64) {
	m.accounts[addr] = &coretypes.Account{Balance: big.NewInt(amount)}
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	if acc, ok := m.accounts[addr]; ok {
		return new(big.Int).Set(acc.Balance)
	}
	return big.NewInt(0)
}

func (m *mockState) registerCharity(addr [20]byte, verified bool) {
	m.charities[addr] = &charity.Charity{
		Identity:      addr,
		MetadataRef:   "ipfs://charity",
		Verified:      verified,
		TotalReceived: big.NewInt(0),
	}
}

func newTestEngine(state *mockState, admin [20]byte) (*Engine, *events.MemoryEmitter) {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetAuthorizer(&mockAuthorizer{admins: map[[20]byte]bool{admin: true}})
	emitter := &events.MemoryEmitter{}
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return 1000 })
	return engine, emitter
}

func TestCreateListingRequiresVerifiedCharity(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state, newTestAddress(0x01))
	seller := newTestAddress(0x02)
	charityAddr := newTestAddress(0x03)

	if _, err := engine.CreateListing(seller, "ipfs://coat", big.NewInt(100), coretypes.CategoryClothing, charityAddr); !errors.Is(err, common.ErrCharityNotVerified) {
		t.Fatalf("expected ErrCharityNotVerified for unregistered charity, got %v", err)
	}

	state.registerCharity(charityAddr, false)
	if _, err := engine.CreateListing(seller, "ipfs://coat", big.NewInt(100), coretypes.CategoryClothing, charityAddr); !errors.Is(err, common.ErrCharityNotVerified) {
		t.Fatalf("expected ErrCharityNotVerified for unverified charity, got %v", err)
	}

	state.registerCharity(charityAddr, true)
	listing, err := engine.CreateListing(seller, "ipfs://coat", big.NewInt(100), coretypes.CategoryClothing, charityAddr)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if listing.ID != 0 {
		t.Fatalf("expected first listing id 0, got %d", listing.ID)
	}
	if listing.Status != ListingActive {
		t.Fatalf("expected active listing, got %d", listing.Status)
	}

	listings, err := engine.SellerListings(seller)
	if err != nil {
		t.Fatalf("seller listings: %v", err)
	}
	if len(listings) != 1 || listings[0].ID != 0 {
		t.Fatalf("expected seller index to hold listing 0, got %+v", listings)
	}
}

func TestCreateListingValidation(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state, newTestAddress(0x01))
	charityAddr := newTestAddress(0x03)
	state.registerCharity(charityAddr, true)

	if _, err := engine.CreateListing(newTestAddress(0x02), "   ", big.NewInt(100), coretypes.CategoryClothing, charityAddr); !errors.Is(err, common.ErrInvariant) {
		t.Fatalf("expected ErrInvariant for blank metadata, got %v", err)
	}
	if _, err := engine.CreateListing(newTestAddress(0x02), "ipfs://x", big.NewInt(-5), coretypes.CategoryClothing, charityAddr); !errors.Is(err, common.ErrInvariant) {
		t.Fatalf("expected ErrInvariant for negative price, got %v", err)
	}
}

func TestPurchaseLifecycleSettlesToCharity(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	engine, _ := newTestEngine(state, admin)
	seller := newTestAddress(0x02)
	buyer := newTestAddress(0x04)
	charityAddr := newTestAddress(0x03)
	state.registerCharity(charityAddr, true)
	state.fund(buyer, 500)

	listing, err := engine.CreateListing(seller, "ipfs://bike", big.NewInt(300), coretypes.CategorySportsGoods, charityAddr)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	order, err := engine.PurchaseItem(buyer, listing.ID, big.NewInt(300))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if order.Status != OrderAwaitingShipment {
		t.Fatalf("expected awaiting shipment, got %d", order.Status)
	}
	if got := state.balance(buyer); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected buyer balance 200 after escrow, got %s", got)
	}
	if got := state.balance(state.vault); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected vault balance 300, got %s", got)
	}

	stored, _ := state.ListingGet(listing.ID)
	if stored.Status != ListingSold {
		t.Fatalf("expected listing sold after purchase, got %d", stored.Status)
	}

	if err := engine.ConfirmShipment(seller, order.ID); err != nil {
		t.Fatalf("confirm shipment: %v", err)
	}
	if err := engine.ConfirmDelivery(buyer, order.ID); err != nil {
		t.Fatalf("confirm delivery: %v", err)
	}
	delivered, _ := state.OrderGet(order.ID)
	if delivered.DeliveredAt != 1000 {
		t.Fatalf("expected delivery stamp 1000, got %d", delivered.DeliveredAt)
	}

	// Window not yet elapsed.
	if err := engine.ReleaseFundsToCharity(order.ID); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState before window elapses, got %v", err)
	}

	engine.SetNowFunc(func() int64 { return 1000 + DisputeWindowSeconds })
	if err := engine.ReleaseFundsToCharity(order.ID); err != nil {
		t.Fatalf("release funds: %v", err)
	}
	if got := state.balance(charityAddr); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected charity balance 300, got %s", got)
	}
	record, _ := state.CharityGet(charityAddr)
	if record.TotalReceived.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected total received 300, got %s", record.TotalReceived)
	}
	settled, _ := state.OrderGet(order.ID)
	if settled.Status != OrderCompleted {
		t.Fatalf("expected completed order, got %d", settled.Status)
	}

	// Idempotent: the second release must not double-pay.
	if err := engine.ReleaseFundsToCharity(order.ID); err != nil {
		t.Fatalf("repeat release: %v", err)
	}
	if got := state.balance(charityAddr); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected charity balance unchanged at 300, got %s", got)
	}
}

func TestPurchaseRejectsBadPayment(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state, newTestAddress(0x01))
	seller := newTestAddress(0x02)
	buyer := newTestAddress(0x04)
	charityAddr := newTestAddress(0x03)
	state.registerCharity(charityAddr, true)
	state.fund(buyer, 500)

	listing, err := engine.CreateListing(seller, "ipfs://lamp", big.NewInt(300), coretypes.CategoryHouseGoods, charityAddr)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	if _, err := engine.PurchaseItem(buyer, listing.ID, big.NewInt(299)); !errors.Is(err, common.ErrPaymentMismatch) {
		t.Fatalf("expected ErrPaymentMismatch for underpayment, got %v", err)
	}
	if _, err := engine.PurchaseItem(buyer, listing.ID, big.NewInt(301)); !errors.Is(err, common.ErrPaymentMismatch) {
		t.Fatalf("expected ErrPaymentMismatch for overpayment, got %v", err)
	}

	poor := newTestAddress(0x05)
	state.fund(poor, 10)
	if _, err := engine.PurchaseItem(poor, listing.ID, big.NewInt(300)); !errors.Is(err, common.ErrPaymentMismatch) {
		t.Fatalf("expected ErrPaymentMismatch for insufficient balance, got %v", err)
	}
	// Rejected purchases leave the listing active and balances untouched.
	stored, _ := state.ListingGet(listing.ID)
	if stored.Status != ListingActive {
		t.Fatalf("expected listing still active, got %d", stored.Status)
	}
	if got := state.balance(buyer); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected buyer balance untouched, got %s", got)
	}
}

func TestListingPurchasableExactlyOnce(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state, newTestAddress(0x01))
	charityAddr := newTestAddress(0x03)
	state.registerCharity(charityAddr, true)
	buyerA := newTestAddress(0x04)
	buyerB := newTestAddress(0x05)
	state.fund(buyerA, 100)
	state.fund(buyerB, 100)

	listing, err := engine.CreateListing(newTestAddress(0x02), "ipfs://cards", big.NewInt(100), coretypes.CategoryHobbies, charityAddr)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if _, err := engine.PurchaseItem(buyerA, listing.ID, big.NewInt(100)); err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	if _, err := engine.PurchaseItem(buyerB, listing.ID, big.NewInt(100)); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for second purchase, got %v", err)
	}
}

func TestCancelListing(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	engine, _ := newTestEngine(state, admin)
	seller := newTestAddress(0x02)
	charityAddr := newTestAddress(0x03)
	state.registerCharity(charityAddr, true)

	listing, err := engine.CreateListing(seller, "ipfs://tv", big.NewInt(100), coretypes.CategoryElectronics, charityAddr)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	if err := engine.CancelListing(newTestAddress(0x09), listing.ID); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-seller cancel, got %v", err)
	}
	if err := engine.CancelListing(seller, listing.ID); err != nil {
		t.Fatalf("seller cancel: %v", err)
	}
	stored, _ := state.ListingGet(listing.ID)
	if stored.Status != ListingCancelled {
		t.Fatalf("expected cancelled listing, got %d", stored.Status)
	}
	if err := engine.CancelListing(seller, listing.ID); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for repeat cancel, got %v", err)
	}

	buyer := newTestAddress(0x04)
	state.fund(buyer, 100)
	if _, err := engine.PurchaseItem(buyer, listing.ID, big.NewInt(100)); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState purchasing cancelled listing, got %v", err)
	}

	second, err := engine.CreateListing(seller, "ipfs://radio", big.NewInt(50), coretypes.CategoryElectronics, charityAddr)
	if err != nil {
		t.Fatalf("create second listing: %v", err)
	}
	if err := engine.AdminCancelListing(newTestAddress(0x09), second.ID); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin override, got %v", err)
	}
	if err := engine.AdminCancelListing(admin, second.ID); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
}

func TestShipmentAndDeliveryGuards(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state, newTestAddress(0x01))
	seller := newTestAddress(0x02)
	buyer := newTestAddress(0x04)
	charityAddr := newTestAddress(0x03)
	state.registerCharity(charityAddr, true)
	state.fund(buyer, 100)

	listing, _ := engine.CreateListing(seller, "ipfs://desk", big.NewInt(100), coretypes.CategoryHouseGoods, charityAddr)
	order, err := engine.PurchaseItem(buyer, listing.ID, big.NewInt(100))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if err := engine.ConfirmShipment(buyer, order.ID); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for buyer shipment, got %v", err)
	}
	if err := engine.ConfirmDelivery(buyer, order.ID); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for delivery before shipment, got %v", err)
	}
	if err := engine.ConfirmShipment(seller, order.ID); err != nil {
		t.Fatalf("confirm shipment: %v", err)
	}
	if err := engine.ConfirmShipment(seller, order.ID); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for repeat shipment, got %v", err)
	}
	if err := engine.ConfirmDelivery(seller, order.ID); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for seller delivery, got %v", err)
	}
	if err := engine.ConfirmDelivery(buyer, order.ID); err != nil {
		t.Fatalf("confirm delivery: %v", err)
	}
}

func TestDisputeRefundFlow(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	engine, _ := newTestEngine(state, admin)
	seller := newTestAddress(0x02)
	buyer := newTestAddress(0x04)
	charityAddr := newTestAddress(0x03)
	state.registerCharity(charityAddr, true)
	state.fund(buyer, 100)

	listing, _ := engine.CreateListing(seller, "ipfs://boots", big.NewInt(100), coretypes.CategoryClothing, charityAddr)
	order, _ := engine.PurchaseItem(buyer, listing.ID, big.NewInt(100))
	if err := engine.ConfirmShipment(seller, order.ID); err != nil {
		t.Fatalf("confirm shipment: %v", err)
	}

	if err := engine.OpenDispute(seller, order.ID, "never arrived"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for seller dispute, got %v", err)
	}
	if err := engine.OpenDispute(buyer, order.ID, "  never arrived  "); err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	reason, err := engine.DisputeReason(order.ID)
	if err != nil {
		t.Fatalf("dispute reason: %v", err)
	}
	if reason != "never arrived" {
		t.Fatalf("expected trimmed reason, got %q", reason)
	}

	if err := engine.ResolveDispute(buyer, order.ID, true); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin resolve, got %v", err)
	}
	if err := engine.ResolveDispute(admin, order.ID, true); err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}
	if got := state.balance(buyer); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected buyer refunded to 100, got %s", got)
	}
	resolved, _ := state.OrderGet(order.ID)
	if resolved.Status != OrderRefunded {
		t.Fatalf("expected refunded order, got %d", resolved.Status)
	}
	if err := engine.ResolveDispute(admin, order.ID, false); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState resolving settled order, got %v", err)
	}
}

func TestReleaseRejectsDisputedAndRefunded(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	engine, _ := newTestEngine(state, admin)
	seller := newTestAddress(0x02)
	buyer := newTestAddress(0x04)
	charityAddr := newTestAddress(0x03)
	state.registerCharity(charityAddr, true)
	state.fund(buyer, 100)

	listing, _ := engine.CreateListing(seller, "ipfs://lamp", big.NewInt(100), coretypes.CategoryHouseGoods, charityAddr)
	order, _ := engine.PurchaseItem(buyer, listing.ID, big.NewInt(100))
	_ = engine.ConfirmShipment(seller, order.ID)
	if err := engine.OpenDispute(buyer, order.ID, "wrong item"); err != nil {
		t.Fatalf("open dispute: %v", err)
	}

	err := engine.ReleaseFundsToCharity(order.ID)
	if !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for disputed order, got %v", err)
	}
	if !strings.Contains(err.Error(), "dispute") || strings.Contains(err.Error(), "window") {
		t.Fatalf("expected dispute-state message, got %q", err)
	}

	if err := engine.ResolveDispute(admin, order.ID, true); err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}
	err = engine.ReleaseFundsToCharity(order.ID)
	if !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for refunded order, got %v", err)
	}
	if !strings.Contains(err.Error(), "refunded") {
		t.Fatalf("expected refunded-state message, got %q", err)
	}

	// Refund stays final: the buyer keeps the money and the charity gets none.
	if got := state.balance(buyer); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected buyer balance 100 after refund, got %s", got)
	}
	record, _ := state.CharityGet(charityAddr)
	if record.TotalReceived.Sign() != 0 {
		t.Fatalf("expected no charity credit, got %s", record.TotalReceived)
	}
}

func TestDisputeSettlesToCharity(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	engine, _ := newTestEngine(state, admin)
	seller := newTestAddress(0x02)
	buyer := newTestAddress(0x04)
	charityAddr := newTestAddress(0x03)
	state.registerCharity(charityAddr, true)
	state.fund(buyer, 100)

	listing, _ := engine.CreateListing(seller, "ipfs://kettle", big.NewInt(100), coretypes.CategoryHouseGoods, charityAddr)
	order, _ := engine.PurchaseItem(buyer, listing.ID, big.NewInt(100))
	_ = engine.ConfirmShipment(seller, order.ID)
	_ = engine.OpenDispute(buyer, order.ID, "damaged")

	if err := engine.ResolveDispute(admin, order.ID, false); err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}
	if got := state.balance(charityAddr); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected charity paid 100, got %s", got)
	}
	resolved, _ := state.OrderGet(order.ID)
	if resolved.Status != OrderCompleted {
		t.Fatalf("expected completed order, got %d", resolved.Status)
	}
}

func TestDisputeWindowAfterDelivery(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state, newTestAddress(0x01))
	seller := newTestAddress(0x02)
	buyer := newTestAddress(0x04)
	charityAddr := newTestAddress(0x03)
	state.registerCharity(charityAddr, true)
	state.fund(buyer, 100)

	listing, _ := engine.CreateListing(seller, "ipfs://skis", big.NewInt(100), coretypes.CategorySportsGoods, charityAddr)
	order, _ := engine.PurchaseItem(buyer, listing.ID, big.NewInt(100))
	_ = engine.ConfirmShipment(seller, order.ID)
	_ = engine.ConfirmDelivery(buyer, order.ID)

	// Inside the window the buyer can still dispute.
	engine.SetNowFunc(func() int64 { return 1000 + DisputeWindowSeconds - 1 })
	if err := engine.OpenDispute(buyer, order.ID, "wrong size"); err != nil {
		t.Fatalf("open dispute inside window: %v", err)
	}

	// Reset and let the window elapse on a fresh order.
	state2 := newMockState()
	engine2, _ := newTestEngine(state2, newTestAddress(0x01))
	state2.registerCharity(charityAddr, true)
	state2.fund(buyer, 100)
	listing2, _ := engine2.CreateListing(seller, "ipfs://skates", big.NewInt(100), coretypes.CategorySportsGoods, charityAddr)
	order2, _ := engine2.PurchaseItem(buyer, listing2.ID, big.NewInt(100))
	_ = engine2.ConfirmShipment(seller, order2.ID)
	_ = engine2.ConfirmDelivery(buyer, order2.ID)
	engine2.SetNowFunc(func() int64 { return 1000 + DisputeWindowSeconds })
	if err := engine2.OpenDispute(buyer, order2.ID, "too late"); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState past window, got %v", err)
	}
}

func TestDonateItemToCharity(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state, newTestAddress(0x01))
	donor := newTestAddress(0x02)
	charityAddr := newTestAddress(0x03)

	if _, err := engine.DonateItemToCharity(donor, "ipfs://chair", coretypes.CategoryHouseGoods, charityAddr); !errors.Is(err, common.ErrCharityNotVerified) {
		t.Fatalf("expected ErrCharityNotVerified, got %v", err)
	}

	state.registerCharity(charityAddr, true)
	listing, err := engine.DonateItemToCharity(donor, "ipfs://chair", coretypes.CategoryHouseGoods, charityAddr)
	if err != nil {
		t.Fatalf("donate: %v", err)
	}
	if listing.Status != ListingSold {
		t.Fatalf("expected donated listing sold, got %d", listing.Status)
	}
	if listing.Price.Sign() != 0 {
		t.Fatalf("expected zero price, got %s", listing.Price)
	}
	if count, _ := engine.OrderCount(); count != 0 {
		t.Fatalf("expected no orders for direct donation, got %d", count)
	}
}

func TestDonateItemForRequest(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state, newTestAddress(0x01))
	donor := newTestAddress(0x02)
	charityAddr := newTestAddress(0x03)
	state.registerCharity(charityAddr, true)
	state.itemRequests[7] = &charity.ItemRequest{
		ID:          7,
		Charity:     charityAddr,
		MetadataRef: "ipfs://need-coats",
		Category:    coretypes.CategoryClothing,
		Status:      charity.RequestActive,
	}

	if _, err := engine.DonateItemForRequest(donor, "ipfs://coat", 99); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown request, got %v", err)
	}

	listing, err := engine.DonateItemForRequest(donor, "ipfs://coat", 7)
	if err != nil {
		t.Fatalf("donate for request: %v", err)
	}
	if listing.Charity != charityAddr {
		t.Fatalf("expected listing bound to the request charity")
	}
	if listing.Category != coretypes.CategoryClothing {
		t.Fatalf("expected listing to inherit the request category")
	}
	request, _ := state.ItemRequestGet(7)
	if request.FulfilledCount != 1 {
		t.Fatalf("expected fulfilled count 1, got %d", request.FulfilledCount)
	}
	if request.Status != charity.RequestActive {
		t.Fatalf("donation must not change request status, got %d", request.Status)
	}

	request.Status = charity.RequestCancelled
	state.itemRequests[7] = request
	if _, err := engine.DonateItemForRequest(donor, "ipfs://coat", 7); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for cancelled request, got %v", err)
	}
}

func TestReleaseEligible(t *testing.T) {
	base := int64(5000)
	cases := []struct {
		name  string
		order *Order
		now   int64
		want  bool
	}{
		{"nil order", nil, base, false},
		{"not delivered", &Order{Status: OrderShipped}, base, false},
		{"no delivery stamp", &Order{Status: OrderDelivered}, base, false},
		{"inside window", &Order{Status: OrderDelivered, DeliveredAt: base}, base + DisputeWindowSeconds - 1, false},
		{"at boundary", &Order{Status: OrderDelivered, DeliveredAt: base}, base + DisputeWindowSeconds, true},
		{"past window", &Order{Status: OrderDelivered, DeliveredAt: base}, base + DisputeWindowSeconds + 60, true},
		{"disputed", &Order{Status: OrderDisputed, DeliveredAt: base}, base + DisputeWindowSeconds, false},
	}
	for _, tc := range cases {
		if got := ReleaseEligible(tc.order, tc.now); got != tc.want {
			t.Fatalf("%s: ReleaseEligible = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBuyerOrdersIndex(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state, newTestAddress(0x01))
	seller := newTestAddress(0x02)
	buyer := newTestAddress(0x04)
	charityAddr := newTestAddress(0x03)
	state.registerCharity(charityAddr, true)
	state.fund(buyer, 300)

	for i := 0; i < 3; i++ {
		listing, err := engine.CreateListing(seller, fmt.Sprintf("ipfs://item-%d", i), big.NewInt(100), coretypes.CategoryHobbies, charityAddr)
		if err != nil {
			t.Fatalf("create listing %d: %v", i, err)
		}
		if _, err := engine.PurchaseItem(buyer, listing.ID, big.NewInt(100)); err != nil {
			t.Fatalf("purchase %d: %v", i, err)
		}
	}
	orders, err := engine.BuyerOrders(buyer)
	if err != nil {
		t.Fatalf("buyer orders: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(orders))
	}
	for i, order := range orders {
		if order.ID != uint64(i) {
			t.Fatalf("expected dense order ids in purchase order, got %d at %d", order.ID, i)
		}
	}
}
