package core

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"charitychain/core/events"
	"charitychain/core/state"
	coretypes "charitychain/core/types"
	"charitychain/native/admin"
	"charitychain/native/charity"
	"charitychain/native/market"
	"charitychain/storage"
)

// Node is the in-process stand-in for the ledger substrate: it serializes
// every state-changing call under a single mutex (the substrate's global
// total order), authenticates nothing itself (caller identity arrives as an
// explicit parameter), and wires the engines to one shared state manager.
// Each call either fully commits or rejects with no partial mutation.
type Node struct {
	mu sync.Mutex

	state     *state.Manager
	admins    *admin.Engine
	charities *charity.Engine
	market    *market.Engine
	logger    *slog.Logger
}

// GenesisAccount seeds a balance at genesis so buyers can fund purchases.
type GenesisAccount struct {
	Address [20]byte
	Balance *big.Int
}

// logEmitter forwards engine events to structured logs.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	if l.logger == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	attrs := make([]any, 0, len(payload.Attributes)*2)
	for k, v := range payload.Attributes {
		attrs = append(attrs, slog.String(k, v))
	}
	l.logger.With(attrs...).Info(payload.Type)
}

// NewNode constructs a node over the supplied database.
func NewNode(db storage.Database, logger *slog.Logger) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	manager := state.NewManager(db)
	emitter := logEmitter{logger: logger}

	adminEngine := admin.NewEngine()
	adminEngine.SetState(manager)
	adminEngine.SetEmitter(emitter)

	charityEngine := charity.NewEngine()
	charityEngine.SetState(manager)
	charityEngine.SetAuthorizer(adminEngine)
	charityEngine.SetEmitter(emitter)

	marketEngine := market.NewEngine()
	marketEngine.SetState(manager)
	marketEngine.SetAuthorizer(adminEngine)
	marketEngine.SetEmitter(emitter)

	return &Node{
		state:     manager,
		admins:    adminEngine,
		charities: charityEngine,
		market:    marketEngine,
		logger:    logger,
	}, nil
}

// InitGenesis installs the primary admin and seeds the allocation balances.
// Re-running against existing state leaves the admin set untouched.
func (n *Node) InitGenesis(primaryAdmin [20]byte, alloc []GenesisAccount) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.admins.Bootstrap(primaryAdmin); err != nil {
		return err
	}
	for _, entry := range alloc {
		account, err := n.state.GetAccount(entry.Address[:])
		if err != nil {
			return err
		}
		if account.Balance.Sign() > 0 {
			continue
		}
		if entry.Balance != nil {
			account.Balance = new(big.Int).Set(entry.Balance)
		}
		if err := n.state.PutAccount(entry.Address[:], account); err != nil {
			return err
		}
	}
	return nil
}

// SetNowFunc overrides the clock used for shipment, delivery, and dispute
// window arithmetic. Tests use it to simulate elapsed time.
func (n *Node) SetNowFunc(now func() int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.market.SetNowFunc(now)
}

// --- Listing registry and escrow order engine ---

func (n *Node) CreateListing(caller [20]byte, metadataRef string, price *big.Int, category coretypes.Category, charityAddr [20]byte) (*market.Listing, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.CreateListing(caller, metadataRef, price, category, charityAddr)
}

func (n *Node) CancelListing(caller [20]byte, listingID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.CancelListing(caller, listingID)
}

func (n *Node) AdminCancelListing(caller [20]byte, listingID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.AdminCancelListing(caller, listingID)
}

func (n *Node) DonateItemToCharity(caller [20]byte, metadataRef string, category coretypes.Category, charityAddr [20]byte) (*market.Listing, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.DonateItemToCharity(caller, metadataRef, category, charityAddr)
}

func (n *Node) DonateItemForRequest(caller [20]byte, metadataRef string, requestID uint64) (*market.Listing, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.DonateItemForRequest(caller, metadataRef, requestID)
}

func (n *Node) PurchaseItem(caller [20]byte, listingID uint64, payment *big.Int) (*market.Order, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.PurchaseItem(caller, listingID, payment)
}

func (n *Node) ConfirmShipment(caller [20]byte, orderID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.ConfirmShipment(caller, orderID)
}

func (n *Node) ConfirmDelivery(caller [20]byte, orderID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.ConfirmDelivery(caller, orderID)
}

func (n *Node) OpenDispute(caller [20]byte, orderID uint64, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.OpenDispute(caller, orderID, reason)
}

func (n *Node) ResolveDispute(caller [20]byte, orderID uint64, refundBuyer bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.ResolveDispute(caller, orderID, refundBuyer)
}

func (n *Node) ReleaseFundsToCharity(orderID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.ReleaseFundsToCharity(orderID)
}

func (n *Node) GetListing(listingID uint64) (*market.Listing, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.GetListing(listingID)
}

func (n *Node) GetOrder(orderID uint64) (*market.Order, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.GetOrder(orderID)
}

func (n *Node) GetDisputeReason(orderID uint64) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.DisputeReason(orderID)
}

func (n *Node) ListingCount() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.ListingCount()
}

func (n *Node) OrderCount() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.OrderCount()
}

func (n *Node) SellerListings(seller [20]byte) ([]*market.Listing, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.SellerListings(seller)
}

func (n *Node) BuyerOrders(buyer [20]byte) ([]*market.Order, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.BuyerOrders(buyer)
}

// --- Charity registry, goals, and item requests ---

func (n *Node) AddCharity(caller, identity [20]byte, metadataRef string) (*charity.Charity, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.AddCharity(caller, identity, metadataRef)
}

func (n *Node) UpdateCharity(caller, identity [20]byte, metadataRef string, verified bool) (*charity.Charity, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.UpdateCharity(caller, identity, metadataRef, verified)
}

func (n *Node) GetCharity(identity [20]byte) (*charity.Charity, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.GetCharity(identity)
}

func (n *Node) GetCharityByID(id uint64) (*charity.Charity, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.GetCharityByID(id)
}

func (n *Node) GetCharityCount() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.CharityCount()
}

func (n *Node) GetAllCharities() ([]*charity.Charity, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.Charities()
}

func (n *Node) IsVerifiedCharity(identity [20]byte) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.IsVerified(identity)
}

func (n *Node) CreateGoal(caller [20]byte, metadataRef string, targetAmount *big.Int, deadline int64) (*charity.Goal, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.CreateGoal(caller, metadataRef, targetAmount, deadline)
}

func (n *Node) CancelGoal(caller [20]byte, goalID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.CancelGoal(caller, goalID)
}

func (n *Node) RecordGoalProgress(caller [20]byte, goalID uint64, amount *big.Int) (*charity.Goal, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.RecordGoalProgress(caller, goalID, amount)
}

func (n *Node) GetGoal(goalID uint64) (*charity.Goal, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.GetGoal(goalID)
}

func (n *Node) GetAllGoals() ([]*charity.Goal, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.Goals()
}

func (n *Node) GetCharityGoals(identity [20]byte) ([]*charity.Goal, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.CharityGoals(identity)
}

func (n *Node) CreateItemRequest(caller [20]byte, metadataRef string, category coretypes.Category) (*charity.ItemRequest, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.CreateItemRequest(caller, metadataRef, category)
}

func (n *Node) CancelItemRequest(caller [20]byte, requestID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.CancelItemRequest(caller, requestID)
}

func (n *Node) MarkItemRequestFulfilled(caller [20]byte, requestID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.MarkItemRequestFulfilled(caller, requestID)
}

func (n *Node) GetItemRequest(requestID uint64) (*charity.ItemRequest, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.GetItemRequest(requestID)
}

func (n *Node) GetAllItemRequests() ([]*charity.ItemRequest, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.ItemRequests()
}

func (n *Node) GetCharityItemRequests(identity [20]byte) ([]*charity.ItemRequest, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.charities.CharityItemRequests(identity)
}

// --- Access control ---

func (n *Node) AddAdmin(caller, target [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.admins.AddAdmin(caller, target)
}

func (n *Node) RemoveAdmin(caller, target [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.admins.RemoveAdmin(caller, target)
}

func (n *Node) TransferPrimaryAdmin(caller, target [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.admins.TransferPrimaryAdmin(caller, target)
}

func (n *Node) GetAllAdmins() ([][20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.admins.Admins()
}

func (n *Node) GetPrimaryAdmin() ([20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.admins.Primary()
}

func (n *Node) IsAdminAddress(identity [20]byte) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.admins.IsAdmin(identity)
}

// --- Substrate reads ---

// GetBalance returns the native balance of the identity.
func (n *Node) GetBalance(identity [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.state.GetAccount(identity[:])
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}
