package charity

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"charitychain/core/events"
	"charitychain/core/types"
	"charitychain/native/common"
)

var (
	errNilState      = errors.New("charity engine: state not configured")
	errNilAuthorizer = errors.New("charity engine: authorizer not configured")
)

type engineState interface {
	CharityPut(*Charity) error
	CharityGet(addr [20]byte) (*Charity, bool)
	CharityList() ([][20]byte, error)
	GoalPut(*Goal) error
	GoalGet(id uint64) (*Goal, bool)
	NextGoalID() (uint64, error)
	GoalCount() (uint64, error)
	GoalIndexCharity(addr [20]byte, id uint64) error
	CharityGoalIDs(addr [20]byte) ([]uint64, error)
	ItemRequestPut(*ItemRequest) error
	ItemRequestGet(id uint64) (*ItemRequest, bool)
	NextItemRequestID() (uint64, error)
	ItemRequestCount() (uint64, error)
	ItemRequestIndexCharity(addr [20]byte, id uint64) error
	CharityItemRequestIDs(addr [20]byte) ([]uint64, error)
}

// Authorizer answers the admin-set membership predicate for gated operations.
type Authorizer interface {
	IsAdmin(addr [20]byte) (bool, error)
}

// Engine maintains the charity registry plus the goal and item-request
// ledgers attached to it. Admin-gated writes go through the configured
// Authorizer; charity-gated writes match the caller against the owning
// charity identity. Verification is checked at creation time only.
type Engine struct {
	state   engineState
	auth    Authorizer
	emitter events.Emitter
}

// NewEngine creates a charity engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
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

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
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

func (e *Engine) requireVerifiedCharity(caller [20]byte) (*Charity, error) {
	record, ok := e.state.CharityGet(caller)
	if !ok {
		return nil, fmt.Errorf("%w: caller is not a registered charity", common.ErrUnauthorized)
	}
	if !record.Verified {
		return nil, fmt.Errorf("%w: charity %x", common.ErrCharityNotVerified, caller)
	}
	return record, nil
}

// AddCharity registers the identity as a verified charity. Admin-only.
func (e *Engine) AddCharity(caller, identity [20]byte, metadataRef string) (*Charity, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	if _, ok := e.state.CharityGet(identity); ok {
		return nil, fmt.Errorf("%w: charity already registered", common.ErrInvariant)
	}
	existing, err := e.state.CharityList()
	if err != nil {
		return nil, err
	}
	record := &Charity{
		ID:            uint64(len(existing)),
		Identity:      identity,
		MetadataRef:   strings.TrimSpace(metadataRef),
		Verified:      true,
		TotalReceived: big.NewInt(0),
	}
	if err := e.state.CharityPut(record); err != nil {
		return nil, err
	}
	e.emit(charityAdded{Charity: record})
	return record.Clone(), nil
}

// UpdateCharity replaces the metadata reference and verified flag of an
// existing charity. Admin-only. The cumulative total is untouched.
func (e *Engine) UpdateCharity(caller, identity [20]byte, metadataRef string, verified bool) (*Charity, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	record, ok := e.state.CharityGet(identity)
	if !ok {
		return nil, fmt.Errorf("%w: charity not registered", common.ErrNotFound)
	}
	record.MetadataRef = strings.TrimSpace(metadataRef)
	record.Verified = verified
	if err := e.state.CharityPut(record); err != nil {
		return nil, err
	}
	e.emit(charityUpdated{Charity: record})
	return record.Clone(), nil
}

// GetCharity returns the charity record for the identity.
func (e *Engine) GetCharity(identity [20]byte) (*Charity, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, ok := e.state.CharityGet(identity)
	if !ok {
		return nil, fmt.Errorf("%w: charity not registered", common.ErrNotFound)
	}
	return record.Clone(), nil
}

// GetCharityByID returns the charity at the dense registration index.
func (e *Engine) GetCharityByID(id uint64) (*Charity, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	addrs, err := e.state.CharityList()
	if err != nil {
		return nil, err
	}
	if id >= uint64(len(addrs)) {
		return nil, fmt.Errorf("%w: charity %d", common.ErrNotFound, id)
	}
	record, ok := e.state.CharityGet(addrs[id])
	if !ok {
		return nil, fmt.Errorf("%w: charity index out of sync", common.ErrNotFound)
	}
	return record.Clone(), nil
}

// IsVerified reports whether the identity is a currently verified charity.
func (e *Engine) IsVerified(identity [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	record, ok := e.state.CharityGet(identity)
	if !ok {
		return false, nil
	}
	return record.Verified, nil
}

// Charities returns every registered charity in registration order.
func (e *Engine) Charities() ([]*Charity, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	addrs, err := e.state.CharityList()
	if err != nil {
		return nil, err
	}
	out := make([]*Charity, 0, len(addrs))
	for _, addr := range addrs {
		record, ok := e.state.CharityGet(addr)
		if !ok {
			return nil, fmt.Errorf("%w: charity index out of sync", common.ErrNotFound)
		}
		out = append(out, record.Clone())
	}
	return out, nil
}

// CharityCount returns the number of registered charities.
func (e *Engine) CharityCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	addrs, err := e.state.CharityList()
	if err != nil {
		return 0, err
	}
	return uint64(len(addrs)), nil
}

// CreateGoal opens a fundraising goal for the calling charity. The target
// must be positive; a zero deadline means no deadline.
func (e *Engine) CreateGoal(caller [20]byte, metadataRef string, targetAmount *big.Int, deadline int64) (*Goal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.requireVerifiedCharity(caller); err != nil {
		return nil, err
	}
	if targetAmount == nil || targetAmount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: goal target must be positive", common.ErrInvariant)
	}
	if deadline < 0 {
		return nil, fmt.Errorf("%w: negative goal deadline", common.ErrInvariant)
	}
	id, err := e.state.NextGoalID()
	if err != nil {
		return nil, err
	}
	goal := &Goal{
		ID:            id,
		Charity:       caller,
		MetadataRef:   strings.TrimSpace(metadataRef),
		TargetAmount:  new(big.Int).Set(targetAmount),
		CurrentAmount: big.NewInt(0),
		Deadline:      deadline,
		Status:        GoalActive,
	}
	if err := e.state.GoalPut(goal); err != nil {
		return nil, err
	}
	if err := e.state.GoalIndexCharity(caller, id); err != nil {
		return nil, err
	}
	e.emit(goalCreated{Goal: goal})
	return goal.Clone(), nil
}

// CancelGoal cancels an active goal. Owning charity only.
func (e *Engine) CancelGoal(caller [20]byte, goalID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	goal, ok := e.state.GoalGet(goalID)
	if !ok {
		return fmt.Errorf("%w: goal %d", common.ErrNotFound, goalID)
	}
	if goal.Charity != caller {
		return fmt.Errorf("%w: only the owning charity may cancel the goal", common.ErrUnauthorized)
	}
	if goal.Status != GoalActive {
		return fmt.Errorf("%w: goal is not active", common.ErrInvalidState)
	}
	goal.Status = GoalCancelled
	if err := e.state.GoalPut(goal); err != nil {
		return err
	}
	e.emit(goalCancelled{Goal: goal})
	return nil
}

// RecordGoalProgress advances an active goal's current amount. Admin-only;
// goal funding is an off-ledger process reported through this operation, never
// inferred from purchases. Reaching the target completes the goal in the same
// step.
func (e *Engine) RecordGoalProgress(caller [20]byte, goalID uint64, amount *big.Int) (*Goal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: progress amount must be positive", common.ErrInvariant)
	}
	goal, ok := e.state.GoalGet(goalID)
	if !ok {
		return nil, fmt.Errorf("%w: goal %d", common.ErrNotFound, goalID)
	}
	if goal.Status != GoalActive {
		return nil, fmt.Errorf("%w: goal is not active", common.ErrInvalidState)
	}
	goal.CurrentAmount = new(big.Int).Add(goal.CurrentAmount, amount)
	if goal.CurrentAmount.Cmp(goal.TargetAmount) >= 0 {
		goal.Status = GoalCompleted
	}
	if err := e.state.GoalPut(goal); err != nil {
		return nil, err
	}
	if goal.Status == GoalCompleted {
		e.emit(goalCompleted{Goal: goal})
	}
	return goal.Clone(), nil
}

// GetGoal returns the goal record for the id.
func (e *Engine) GetGoal(goalID uint64) (*Goal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	goal, ok := e.state.GoalGet(goalID)
	if !ok {
		return nil, fmt.Errorf("%w: goal %d", common.ErrNotFound, goalID)
	}
	return goal.Clone(), nil
}

// Goals returns every goal in creation order.
func (e *Engine) Goals() ([]*Goal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	count, err := e.state.GoalCount()
	if err != nil {
		return nil, err
	}
	out := make([]*Goal, 0, count)
	for id := uint64(0); id < count; id++ {
		goal, ok := e.state.GoalGet(id)
		if !ok {
			return nil, fmt.Errorf("%w: goal %d missing from dense range", common.ErrNotFound, id)
		}
		out = append(out, goal.Clone())
	}
	return out, nil
}

// CharityGoals returns the goals owned by the identity in creation order.
func (e *Engine) CharityGoals(identity [20]byte) ([]*Goal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.CharityGoalIDs(identity)
	if err != nil {
		return nil, err
	}
	out := make([]*Goal, 0, len(ids))
	for _, id := range ids {
		goal, ok := e.state.GoalGet(id)
		if !ok {
			return nil, fmt.Errorf("%w: goal index out of sync", common.ErrNotFound)
		}
		out = append(out, goal.Clone())
	}
	return out, nil
}

// CreateItemRequest opens an item request for the calling charity.
func (e *Engine) CreateItemRequest(caller [20]byte, metadataRef string, category types.Category) (*ItemRequest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.requireVerifiedCharity(caller); err != nil {
		return nil, err
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: invalid category %d", common.ErrInvariant, category)
	}
	id, err := e.state.NextItemRequestID()
	if err != nil {
		return nil, err
	}
	request := &ItemRequest{
		ID:          id,
		Charity:     caller,
		MetadataRef: strings.TrimSpace(metadataRef),
		Category:    category,
		Status:      RequestActive,
	}
	if err := e.state.ItemRequestPut(request); err != nil {
		return nil, err
	}
	if err := e.state.ItemRequestIndexCharity(caller, id); err != nil {
		return nil, err
	}
	e.emit(requestCreated{Request: request})
	return request.Clone(), nil
}

// CancelItemRequest cancels an active item request. Owning charity only.
func (e *Engine) CancelItemRequest(caller [20]byte, requestID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	request, ok := e.state.ItemRequestGet(requestID)
	if !ok {
		return fmt.Errorf("%w: item request %d", common.ErrNotFound, requestID)
	}
	if request.Charity != caller {
		return fmt.Errorf("%w: only the owning charity may cancel the request", common.ErrUnauthorized)
	}
	if request.Status != RequestActive {
		return fmt.Errorf("%w: item request is not active", common.ErrInvalidState)
	}
	request.Status = RequestCancelled
	if err := e.state.ItemRequestPut(request); err != nil {
		return err
	}
	e.emit(requestCancelled{Request: request})
	return nil
}

// MarkItemRequestFulfilled flips an active request to Fulfilled. Owning
// charity only; donations alone never change the status.
func (e *Engine) MarkItemRequestFulfilled(caller [20]byte, requestID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	request, ok := e.state.ItemRequestGet(requestID)
	if !ok {
		return fmt.Errorf("%w: item request %d", common.ErrNotFound, requestID)
	}
	if request.Charity != caller {
		return fmt.Errorf("%w: only the owning charity may close the request", common.ErrUnauthorized)
	}
	if request.Status != RequestActive {
		return fmt.Errorf("%w: item request is not active", common.ErrInvalidState)
	}
	request.Status = RequestFulfilled
	if err := e.state.ItemRequestPut(request); err != nil {
		return err
	}
	e.emit(requestFulfilled{Request: request})
	return nil
}

// GetItemRequest returns the item request for the id.
func (e *Engine) GetItemRequest(requestID uint64) (*ItemRequest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	request, ok := e.state.ItemRequestGet(requestID)
	if !ok {
		return nil, fmt.Errorf("%w: item request %d", common.ErrNotFound, requestID)
	}
	return request.Clone(), nil
}

// ItemRequests returns every item request in creation order.
func (e *Engine) ItemRequests() ([]*ItemRequest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	count, err := e.state.ItemRequestCount()
	if err != nil {
		return nil, err
	}
	out := make([]*ItemRequest, 0, count)
	for id := uint64(0); id < count; id++ {
		request, ok := e.state.ItemRequestGet(id)
		if !ok {
			return nil, fmt.Errorf("%w: item request %d missing from dense range", common.ErrNotFound, id)
		}
		out = append(out, request.Clone())
	}
	return out, nil
}

// CharityItemRequests returns the requests owned by the identity.
func (e *Engine) CharityItemRequests(identity [20]byte) ([]*ItemRequest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.CharityItemRequestIDs(identity)
	if err != nil {
		return nil, err
	}
	out := make([]*ItemRequest, 0, len(ids))
	for _, id := range ids {
		request, ok := e.state.ItemRequestGet(id)
		if !ok {
			return nil, fmt.Errorf("%w: item request index out of sync", common.ErrNotFound)
		}
		out = append(out, request.Clone())
	}
	return out, nil
}
