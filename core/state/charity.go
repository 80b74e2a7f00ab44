package state

import (
	"fmt"
	"math/big"

	coretypes "charitychain/core/types"
	"charitychain/native/charity"
)

func charityStorageKey(addr [20]byte) []byte {
	return hashedKey(charityRecordPrefix, addr[:])
}

func goalStorageKey(id uint64) []byte {
	return hashedKey(goalRecordPrefix, idSuffix(id))
}

func requestStorageKey(id uint64) []byte {
	return hashedKey(requestRecordPrefix, idSuffix(id))
}

type storedCharity struct {
	ID            uint64
	Identity      [20]byte
	MetadataRef   string
	Verified      bool
	TotalReceived *big.Int
}

type storedGoal struct {
	ID            uint64
	Charity       [20]byte
	MetadataRef   string
	TargetAmount  *big.Int
	CurrentAmount *big.Int
	Deadline      *big.Int
	Status        uint8
}

type storedRequest struct {
	ID             uint64
	Charity        [20]byte
	MetadataRef    string
	Category       uint8
	Status         uint8
	FulfilledCount uint64
}

// CharityPut persists the charity record, registering it in the ordered
// charity list on first write.
func (m *Manager) CharityPut(c *charity.Charity) error {
	if c == nil {
		return fmt.Errorf("state: nil charity")
	}
	total := big.NewInt(0)
	if c.TotalReceived != nil {
		if c.TotalReceived.Sign() < 0 {
			return fmt.Errorf("state: negative charity total")
		}
		total = new(big.Int).Set(c.TotalReceived)
	}
	if _, exists := m.CharityGet(c.Identity); !exists {
		list, err := m.CharityList()
		if err != nil {
			return err
		}
		list = append(list, c.Identity)
		if err := m.writeRLP(hashedKey(charityListKey, nil), list); err != nil {
			return err
		}
	}
	record := &storedCharity{
		ID:            c.ID,
		Identity:      c.Identity,
		MetadataRef:   c.MetadataRef,
		Verified:      c.Verified,
		TotalReceived: total,
	}
	return m.writeRLP(charityStorageKey(c.Identity), record)
}

// CharityGet loads the charity for the identity.
func (m *Manager) CharityGet(addr [20]byte) (*charity.Charity, bool) {
	stored := new(storedCharity)
	ok, err := m.loadRLP(charityStorageKey(addr), stored)
	if err != nil || !ok {
		return nil, false
	}
	out := &charity.Charity{
		ID:            stored.ID,
		Identity:      stored.Identity,
		MetadataRef:   stored.MetadataRef,
		Verified:      stored.Verified,
		TotalReceived: big.NewInt(0),
	}
	if stored.TotalReceived != nil {
		out.TotalReceived = new(big.Int).Set(stored.TotalReceived)
	}
	return out, true
}

// CharityList returns every registered charity identity in registration
// order.
func (m *Manager) CharityList() ([][20]byte, error) {
	var list [][20]byte
	if _, err := m.loadRLP(hashedKey(charityListKey, nil), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GoalPut persists the goal record.
func (m *Manager) GoalPut(g *charity.Goal) error {
	sanitized, err := charity.SanitizeGoal(g)
	if err != nil {
		return err
	}
	record := &storedGoal{
		ID:            sanitized.ID,
		Charity:       sanitized.Charity,
		MetadataRef:   sanitized.MetadataRef,
		TargetAmount:  sanitized.TargetAmount,
		CurrentAmount: sanitized.CurrentAmount,
		Deadline:      big.NewInt(sanitized.Deadline),
		Status:        uint8(sanitized.Status),
	}
	return m.writeRLP(goalStorageKey(sanitized.ID), record)
}

// GoalGet loads the goal for the id.
func (m *Manager) GoalGet(id uint64) (*charity.Goal, bool) {
	stored := new(storedGoal)
	ok, err := m.loadRLP(goalStorageKey(id), stored)
	if err != nil || !ok {
		return nil, false
	}
	out := &charity.Goal{
		ID:            stored.ID,
		Charity:       stored.Charity,
		MetadataRef:   stored.MetadataRef,
		TargetAmount:  big.NewInt(0),
		CurrentAmount: big.NewInt(0),
		Status:        charity.GoalStatus(stored.Status),
	}
	if stored.TargetAmount != nil {
		out.TargetAmount = new(big.Int).Set(stored.TargetAmount)
	}
	if stored.CurrentAmount != nil {
		out.CurrentAmount = new(big.Int).Set(stored.CurrentAmount)
	}
	if stored.Deadline != nil {
		out.Deadline = stored.Deadline.Int64()
	}
	goal, err := charity.SanitizeGoal(out)
	if err != nil {
		return nil, false
	}
	return goal, true
}

// NextGoalID returns the next dense goal id and advances the counter.
func (m *Manager) NextGoalID() (uint64, error) {
	return m.bumpCounter(hashedKey(goalCounterKey, nil))
}

// GoalCount returns the number of goals ever created.
func (m *Manager) GoalCount() (uint64, error) {
	return m.loadCounter(hashedKey(goalCounterKey, nil))
}

// GoalIndexCharity appends the goal id to the charity's index.
func (m *Manager) GoalIndexCharity(addr [20]byte, id uint64) error {
	return m.appendIDList(hashedKey(charityGoalsPrefix, addr[:]), id)
}

// CharityGoalIDs returns the goal ids owned by the charity.
func (m *Manager) CharityGoalIDs(addr [20]byte) ([]uint64, error) {
	return m.loadIDList(hashedKey(charityGoalsPrefix, addr[:]))
}

// ItemRequestPut persists the item request record.
func (m *Manager) ItemRequestPut(r *charity.ItemRequest) error {
	sanitized, err := charity.SanitizeItemRequest(r)
	if err != nil {
		return err
	}
	record := &storedRequest{
		ID:             sanitized.ID,
		Charity:        sanitized.Charity,
		MetadataRef:    sanitized.MetadataRef,
		Category:       uint8(sanitized.Category),
		Status:         uint8(sanitized.Status),
		FulfilledCount: sanitized.FulfilledCount,
	}
	return m.writeRLP(requestStorageKey(sanitized.ID), record)
}

// ItemRequestGet loads the item request for the id.
func (m *Manager) ItemRequestGet(id uint64) (*charity.ItemRequest, bool) {
	stored := new(storedRequest)
	ok, err := m.loadRLP(requestStorageKey(id), stored)
	if err != nil || !ok {
		return nil, false
	}
	out := &charity.ItemRequest{
		ID:             stored.ID,
		Charity:        stored.Charity,
		MetadataRef:    stored.MetadataRef,
		Category:       coretypes.Category(stored.Category),
		Status:         charity.RequestStatus(stored.Status),
		FulfilledCount: stored.FulfilledCount,
	}
	request, err := charity.SanitizeItemRequest(out)
	if err != nil {
		return nil, false
	}
	return request, true
}

// NextItemRequestID returns the next dense request id and advances the
// counter.
func (m *Manager) NextItemRequestID() (uint64, error) {
	return m.bumpCounter(hashedKey(requestCounterKey, nil))
}

// ItemRequestCount returns the number of item requests ever created.
func (m *Manager) ItemRequestCount() (uint64, error) {
	return m.loadCounter(hashedKey(requestCounterKey, nil))
}

// ItemRequestIndexCharity appends the request id to the charity's index.
func (m *Manager) ItemRequestIndexCharity(addr [20]byte, id uint64) error {
	return m.appendIDList(hashedKey(charityRequestsPrefix, addr[:]), id)
}

// CharityItemRequestIDs returns the request ids owned by the charity.
func (m *Manager) CharityItemRequestIDs(addr [20]byte) ([]uint64, error) {
	return m.loadIDList(hashedKey(charityRequestsPrefix, addr[:]))
}
