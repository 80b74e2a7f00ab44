package market

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	coretypes "charitychain/core/types"

	"charitychain/core/events"
	"charitychain/native/charity"
	"charitychain/native/common"
)

var (
	errNilState      = errors.New("market engine: state not configured")
	errNilAuthorizer = errors.New("market engine: authorizer not configured")
)

type engineState interface {
	GetAccount(addr []byte) (*coretypes.Account, error)
	PutAccount(addr []byte, account *coretypes.Account) error
	EscrowVaultAddress() [20]byte
	ListingPut(*Listing) error
	ListingGet(id uint64) (*Listing, bool)
	NextListingID() (uint64, error)
	ListingCount() (uint64, error)
	ListingIndexSeller(seller [20]byte, id uint64) error
	SellerListingIDs(seller [20]byte) ([]uint64, error)
	OrderPut(*Order) error
	OrderGet(id uint64) (*Order, bool)
	NextOrderID() (uint64, error)
	OrderCount() (uint64, error)
	OrderIndexBuyer(buyer [20]byte, id uint64) error
	BuyerOrderIDs(buyer [20]byte) ([]uint64, error)
	CharityGet(addr [20]byte) (*charity.Charity, bool)
	CharityPut(*charity.Charity) error
	ItemRequestGet(id uint64) (*charity.ItemRequest, bool)
	ItemRequestPut(*charity.ItemRequest) error
}

// Authorizer answers the admin-set membership predicate for the admin
// override and dispute resolution paths.
type Authorizer interface {
	IsAdmin(addr [20]byte) (bool, error)
}

// Engine implements the listing registry and the escrow order state machine:
// AwaitingShipment -> Shipped -> Delivered -> Completed, with a side branch
// to Disputed -> {Completed | Refunded}. Every operation validates all of its
// preconditions before the first mutation, so a rejected call leaves the
// ledgers untouched.
type Engine struct {
	state   engineState
	auth    Authorizer
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a market engine with a no-op emitter and the wall clock.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuthorizer configures the admin-set predicate.
func (e *Engine) SetAuthorizer(auth Authorizer) { e.auth = auth }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to simulate elapsed dispute windows deterministically.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	if e.auth == nil {
		return errNilAuthorizer
	}
	ok, err := e.auth.IsAdmin(caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: caller is not an admin", common.ErrUnauthorized)
	}
	return nil
}

func (e *Engine) requireVerifiedCharity(addr [20]byte) error {
	record, ok := e.state.CharityGet(addr)
	if !ok {
		return fmt.Errorf("%w: charity not registered", common.ErrCharityNotVerified)
	}
	if !record.Verified {
		return fmt.Errorf("%w: charity %x", common.ErrCharityNotVerified, addr)
	}
	return nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// transfer moves native currency between two accounts. A zero amount is a
// no-op; the sender must hold at least the amount.
func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("%w: negative transfer amount", common.ErrInvariant)
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amt) < 0 {
		return fmt.Errorf("%w: insufficient balance", common.ErrPaymentMismatch)
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

func (e *Engine) createListing(seller [20]byte, metadataRef string, price *big.Int, category coretypes.Category, charityAddr [20]byte, status ListingStatus) (*Listing, error) {
	listing := &Listing{
		Seller:      seller,
		MetadataRef: strings.TrimSpace(metadataRef),
		Price:       cloneBigInt(price),
		Category:    category,
		Status:      status,
		Charity:     charityAddr,
	}
	sanitized, err := SanitizeListing(listing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvariant, err)
	}
	id, err := e.state.NextListingID()
	if err != nil {
		return nil, err
	}
	sanitized.ID = id
	if err := e.state.ListingPut(sanitized); err != nil {
		return nil, err
	}
	if err := e.state.ListingIndexSeller(seller, id); err != nil {
		return nil, err
	}
	return sanitized, nil
}

// CreateListing registers an item for sale. The designated charity must be
// verified at this moment; the listing starts Active.
func (e *Engine) CreateListing(caller [20]byte, metadataRef string, price *big.Int, category coretypes.Category, charityAddr [20]byte) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.requireVerifiedCharity(charityAddr); err != nil {
		return nil, err
	}
	listing, err := e.createListing(caller, metadataRef, price, category, charityAddr, ListingActive)
	if err != nil {
		return nil, err
	}
	e.emit(listingCreated{Listing: listing})
	return listing.Clone(), nil
}

// DonateItemToCharity gifts an item directly to a verified charity: the
// listing is created with price zero and status Sold, bypassing escrow
// entirely. No order is created.
func (e *Engine) DonateItemToCharity(caller [20]byte, metadataRef string, category coretypes.Category, charityAddr [20]byte) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.requireVerifiedCharity(charityAddr); err != nil {
		return nil, err
	}
	listing, err := e.createListing(caller, metadataRef, big.NewInt(0), category, charityAddr, ListingSold)
	if err != nil {
		return nil, err
	}
	e.emit(listingDonated{Listing: listing})
	return listing.Clone(), nil
}

// DonateItemForRequest gifts an item against an active item request. Any
// caller may donate; the listing is created Sold at price zero for the
// request's charity and the request's fulfilled counter grows by one. The
// request status itself is untouched.
func (e *Engine) DonateItemForRequest(caller [20]byte, metadataRef string, requestID uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	request, ok := e.state.ItemRequestGet(requestID)
	if !ok {
		return nil, fmt.Errorf("%w: item request %d", common.ErrNotFound, requestID)
	}
	if request.Status != charity.RequestActive {
		return nil, fmt.Errorf("%w: item request is not active", common.ErrInvalidState)
	}
	listing, err := e.createListing(caller, metadataRef, big.NewInt(0), request.Category, request.Charity, ListingSold)
	if err != nil {
		return nil, err
	}
	request.FulfilledCount++
	if err := e.state.ItemRequestPut(request); err != nil {
		return nil, err
	}
	e.emit(listingDonated{Listing: listing})
	return listing.Clone(), nil
}

// CancelListing withdraws an active listing. Seller only.
func (e *Engine) CancelListing(caller [20]byte, listingID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	listing, ok := e.state.ListingGet(listingID)
	if !ok {
		return fmt.Errorf("%w: listing %d", common.ErrNotFound, listingID)
	}
	if listing.Seller != caller {
		return fmt.Errorf("%w: only the seller may cancel the listing", common.ErrUnauthorized)
	}
	return e.cancelListing(listing)
}

// AdminCancelListing withdraws an active listing through the admin override
// path, e.g. for policy violations.
func (e *Engine) AdminCancelListing(caller [20]byte, listingID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	listing, ok := e.state.ListingGet(listingID)
	if !ok {
		return fmt.Errorf("%w: listing %d", common.ErrNotFound, listingID)
	}
	return e.cancelListing(listing)
}

func (e *Engine) cancelListing(listing *Listing) error {
	if listing.Status != ListingActive {
		return fmt.Errorf("%w: listing is not active", common.ErrInvalidState)
	}
	listing.Status = ListingCancelled
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	e.emit(listingCancelled{Listing: listing})
	return nil
}

// PurchaseItem escrows the payment for an active listing. The payment must
// exactly equal the listing price. In one atomic step the buyer's balance
// moves into the escrow vault, the listing flips to Sold, and the order is
// created in AwaitingShipment. The Active-status guard is what makes a
// listing purchasable exactly once.
func (e *Engine) PurchaseItem(caller [20]byte, listingID uint64, payment *big.Int) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, ok := e.state.ListingGet(listingID)
	if !ok {
		return nil, fmt.Errorf("%w: listing %d", common.ErrNotFound, listingID)
	}
	if listing.Status != ListingActive {
		return nil, fmt.Errorf("%w: listing is not active", common.ErrInvalidState)
	}
	amount := cloneBigInt(payment)
	if amount.Cmp(listing.Price) != 0 {
		return nil, fmt.Errorf("%w: sent %s, listing price %s", common.ErrPaymentMismatch, amount, listing.Price)
	}
	buyerAcc, err := e.state.GetAccount(caller[:])
	if err != nil {
		return nil, err
	}
	if buyerAcc.Balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: insufficient balance", common.ErrPaymentMismatch)
	}
	// Preconditions hold; apply all mutations.
	if err := e.transfer(caller, e.state.EscrowVaultAddress(), amount); err != nil {
		return nil, err
	}
	listing.Status = ListingSold
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	id, err := e.state.NextOrderID()
	if err != nil {
		return nil, err
	}
	order := &Order{
		ID:        id,
		ListingID: listing.ID,
		Buyer:     caller,
		Seller:    listing.Seller,
		Charity:   listing.Charity,
		Amount:    amount,
		Status:    OrderAwaitingShipment,
	}
	if err := e.state.OrderPut(order); err != nil {
		return nil, err
	}
	if err := e.state.OrderIndexBuyer(caller, id); err != nil {
		return nil, err
	}
	e.emit(orderPurchased{Order: order})
	return order.Clone(), nil
}

// ConfirmShipment records that the seller handed the item to the carrier.
// Seller only, AwaitingShipment only.
func (e *Engine) ConfirmShipment(caller [20]byte, orderID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	order, ok := e.state.OrderGet(orderID)
	if !ok {
		return fmt.Errorf("%w: order %d", common.ErrNotFound, orderID)
	}
	if order.Seller != caller {
		return fmt.Errorf("%w: only the seller may confirm shipment", common.ErrUnauthorized)
	}
	if order.Status != OrderAwaitingShipment {
		return fmt.Errorf("%w: order is not awaiting shipment", common.ErrInvalidState)
	}
	order.Status = OrderShipped
	order.ShippedAt = e.now()
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	e.emit(orderShipped{Order: order})
	return nil
}

// ConfirmDelivery records that the buyer received the item and starts the
// dispute window. Buyer only, Shipped only.
func (e *Engine) ConfirmDelivery(caller [20]byte, orderID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	order, ok := e.state.OrderGet(orderID)
	if !ok {
		return fmt.Errorf("%w: order %d", common.ErrNotFound, orderID)
	}
	if order.Buyer != caller {
		return fmt.Errorf("%w: only the buyer may confirm delivery", common.ErrUnauthorized)
	}
	if order.Status != OrderShipped {
		return fmt.Errorf("%w: order is not shipped", common.ErrInvalidState)
	}
	order.Status = OrderDelivered
	order.DeliveredAt = e.now()
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	e.emit(orderDelivered{Order: order})
	return nil
}

// ReleaseEligible reports whether the order's escrow can settle to the
// charity at the given time: delivered, undisputed, and past the dispute
// window. Pure predicate so callers and tests can evaluate eligibility
// without mutating anything.
func ReleaseEligible(order *Order, now int64) bool {
	if order == nil {
		return false
	}
	if order.Status != OrderDelivered {
		return false
	}
	return order.DeliveredAt > 0 && now >= order.DeliveredAt+DisputeWindowSeconds
}

// ReleaseFundsToCharity settles the escrowed amount to the order's charity
// once the dispute window has elapsed after delivery. Any caller may trigger
// it. The operation is idempotent: a second call on a Completed order is a
// no-op and never double-pays.
func (e *Engine) ReleaseFundsToCharity(orderID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	order, ok := e.state.OrderGet(orderID)
	if !ok {
		return fmt.Errorf("%w: order %d", common.ErrNotFound, orderID)
	}
	switch order.Status {
	case OrderCompleted:
		return nil
	case OrderDisputed:
		return fmt.Errorf("%w: order is under dispute", common.ErrInvalidState)
	case OrderRefunded:
		return fmt.Errorf("%w: order was refunded", common.ErrInvalidState)
	}
	if !ReleaseEligible(order, e.now()) {
		return fmt.Errorf("%w: dispute window has not elapsed", common.ErrInvalidState)
	}
	return e.settleToCharity(order)
}

// settleToCharity moves the escrowed amount from the vault to the charity,
// bumps the cumulative total, and completes the order.
func (e *Engine) settleToCharity(order *Order) error {
	record, ok := e.state.CharityGet(order.Charity)
	if !ok {
		return fmt.Errorf("%w: order charity not registered", common.ErrNotFound)
	}
	if err := e.transfer(e.state.EscrowVaultAddress(), order.Charity, order.Amount); err != nil {
		return err
	}
	record.TotalReceived = new(big.Int).Add(record.TotalReceived, cloneBigInt(order.Amount))
	if err := e.state.CharityPut(record); err != nil {
		return err
	}
	order.Status = OrderCompleted
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	e.emit(orderCompleted{Order: order})
	return nil
}

// OpenDispute contests an order. Buyer only, while Shipped or while Delivered
// inside the dispute window. The reason text is stored for later review.
func (e *Engine) OpenDispute(caller [20]byte, orderID uint64, reason string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	order, ok := e.state.OrderGet(orderID)
	if !ok {
		return fmt.Errorf("%w: order %d", common.ErrNotFound, orderID)
	}
	if order.Buyer != caller {
		return fmt.Errorf("%w: only the buyer may open a dispute", common.ErrUnauthorized)
	}
	switch order.Status {
	case OrderShipped:
	case OrderDelivered:
		if e.now() >= order.DeliveredAt+DisputeWindowSeconds {
			return fmt.Errorf("%w: dispute window has elapsed", common.ErrInvalidState)
		}
	default:
		return fmt.Errorf("%w: order cannot be disputed in its current status", common.ErrInvalidState)
	}
	order.Status = OrderDisputed
	order.DisputeReason = strings.TrimSpace(reason)
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	e.emit(orderDisputed{Order: order})
	return nil
}

// ResolveDispute settles a disputed order. Admin only. With refundBuyer the
// escrowed amount returns to the buyer and the order ends Refunded; otherwise
// it settles to the charity and the order ends Completed. Both outcomes are
// terminal.
func (e *Engine) ResolveDispute(caller [20]byte, orderID uint64, refundBuyer bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	order, ok := e.state.OrderGet(orderID)
	if !ok {
		return fmt.Errorf("%w: order %d", common.ErrNotFound, orderID)
	}
	if order.Status != OrderDisputed {
		return fmt.Errorf("%w: order is not disputed", common.ErrInvalidState)
	}
	if !refundBuyer {
		return e.settleToCharity(order)
	}
	if err := e.transfer(e.state.EscrowVaultAddress(), order.Buyer, order.Amount); err != nil {
		return err
	}
	order.Status = OrderRefunded
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	e.emit(orderRefunded{Order: order})
	return nil
}

// GetListing returns the listing record for the id.
func (e *Engine) GetListing(listingID uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, ok := e.state.ListingGet(listingID)
	if !ok {
		return nil, fmt.Errorf("%w: listing %d", common.ErrNotFound, listingID)
	}
	return listing.Clone(), nil
}

// GetOrder returns the order record for the id.
func (e *Engine) GetOrder(orderID uint64) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	order, ok := e.state.OrderGet(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: order %d", common.ErrNotFound, orderID)
	}
	return order.Clone(), nil
}

// DisputeReason returns the stored reason text for a disputed order.
func (e *Engine) DisputeReason(orderID uint64) (string, error) {
	order, err := e.GetOrder(orderID)
	if err != nil {
		return "", err
	}
	return order.DisputeReason, nil
}

// ListingCount returns the number of listings ever created.
func (e *Engine) ListingCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.ListingCount()
}

// OrderCount returns the number of orders ever created.
func (e *Engine) OrderCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.OrderCount()
}

// SellerListings returns the listings created by the identity.
func (e *Engine) SellerListings(seller [20]byte) ([]*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.SellerListingIDs(seller)
	if err != nil {
		return nil, err
	}
	out := make([]*Listing, 0, len(ids))
	for _, id := range ids {
		listing, ok := e.state.ListingGet(id)
		if !ok {
			return nil, fmt.Errorf("%w: listing index out of sync", common.ErrNotFound)
		}
		out = append(out, listing.Clone())
	}
	return out, nil
}

// BuyerOrders returns the orders opened by the identity.
func (e *Engine) BuyerOrders(buyer [20]byte) ([]*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.BuyerOrderIDs(buyer)
	if err != nil {
		return nil, err
	}
	out := make([]*Order, 0, len(ids))
	for _, id := range ids {
		order, ok := e.state.OrderGet(id)
		if !ok {
			return nil, fmt.Errorf("%w: order index out of sync", common.ErrNotFound)
		}
		out = append(out, order.Clone())
	}
	return out, nil
}
