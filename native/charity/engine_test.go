package charity

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"charitychain/core/events"
	coretypes "charitychain/core/types"
	"charitychain/native/common"
)

type mockState struct {
	charities    map[[20]byte]*Charity
	charityOrder [][20]byte
	goals        map[uint64]*Goal
	goalSeq      uint64
	goalIndex    map[[20]byte][]uint64
	requests     map[uint64]*ItemRequest
	requestSeq   uint64
	requestIndex map[[20]byte][]uint64
}

func newMockState() *mockState {
	return &mockState{
		charities:    make(map[[20]byte]*Charity),
		goals:        make(map[uint64]*Goal),
		goalIndex:    make(map[[20]byte][]uint64),
		requests:     make(map[uint64]*ItemRequest),
		requestIndex: make(map[[20]byte][]uint64),
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func (m *mockState) CharityPut(c *Charity) error {
	if c == nil {
		return fmt.Errorf("nil charity")
	}
	if _, ok := m.charities[c.Identity]; !ok {
		m.charityOrder = append(m.charityOrder, c.Identity)
	}
	m.charities[c.Identity] = c.Clone()
	return nil
}

func (m *mockState) CharityGet(addr [20]byte) (*Charity, bool) {
	record, ok := m.charities[addr]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

func (m *mockState) CharityList() ([][20]byte, error) {
	return append([][20]byte(nil), m.charityOrder...), nil
}

func (m *mockState) GoalPut(g *Goal) error {
	sanitized, err := SanitizeGoal(g)
	if err != nil {
		return err
	}
	m.goals[sanitized.ID] = sanitized.Clone()
	return nil
}

func (m *mockState) GoalGet(id uint64) (*Goal, bool) {
	goal, ok := m.goals[id]
	if !ok {
		return nil, false
	}
	return goal.Clone(), true
}

func (m *mockState) NextGoalID() (uint64, error) {
	id := m.goalSeq
	m.goalSeq++
	return id, nil
}

func (m *mockState) GoalCount() (uint64, error) { return m.goalSeq, nil }

func (m *mockState) GoalIndexCharity(addr [20]byte, id uint64) error {
	m.goalIndex[addr] = append(m.goalIndex[addr], id)
	return nil
}

func (m *mockState) CharityGoalIDs(addr [20]byte) ([]uint64, error) {
	return append([]uint64(nil), m.goalIndex[addr]...), nil
}

func (m *mockState) ItemRequestPut(r *ItemRequest) error {
	sanitized, err := SanitizeItemRequest(r)
	if err != nil {
		return err
	}
	m.requests[sanitized.ID] = sanitized.Clone()
	return nil
}

func (m *mockState) ItemRequestGet(id uint64) (*ItemRequest, bool) {
	request, ok := m.requests[id]
	if !ok {
		return nil, false
	}
	return request.Clone(), true
}

func (m *mockState) NextItemRequestID() (uint64, error) {
	id := m.requestSeq
	m.requestSeq++
	return id, nil
}

func (m *mockState) ItemRequestCount() (uint64, error) { return m.requestSeq, nil }

func (m *mockState) ItemRequestIndexCharity(addr [20]byte, id uint64) error {
	m.requestIndex[addr] = append(m.requestIndex[addr], id)
	return nil
}

func (m *mockState) CharityItemRequestIDs(addr [20]byte) ([]uint64, error) {
	return append([]uint64(nil), m.requestIndex[addr]...), nil
}

type mockAuthorizer struct {
	admins map[[20]byte]bool
}

func (a *mockAuthorizer) IsAdmin(addr [20]byte) (bool, error) {
	return a.admins[addr], nil
}

func newTestEngine(state *mockState, admin [20]byte) (*Engine, *events.MemoryEmitter) {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetAuthorizer(&mockAuthorizer{admins: map[[20]byte]bool{admin: true}})
	emitter := &events.MemoryEmitter{}
	engine.SetEmitter(emitter)
	return engine, emitter
}

func TestAddCharity(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	engine, emitter := newTestEngine(state, admin)
	identity := newTestAddress(0x02)

	if _, err := engine.AddCharity(newTestAddress(0x09), identity, "ipfs://shelter"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin, got %v", err)
	}

	record, err := engine.AddCharity(admin, identity, "  ipfs://shelter  ")
	if err != nil {
		t.Fatalf("add charity: %v", err)
	}
	if !record.Verified {
		t.Fatalf("expected newly added charity to be verified")
	}
	if record.MetadataRef != "ipfs://shelter" {
		t.Fatalf("expected trimmed metadata, got %q", record.MetadataRef)
	}
	if record.TotalReceived.Sign() != 0 {
		t.Fatalf("expected zero cumulative total, got %s", record.TotalReceived)
	}
	if record.ID != 0 {
		t.Fatalf("expected first registration id 0, got %d", record.ID)
	}

	if _, err := engine.AddCharity(admin, identity, "ipfs://other"); !errors.Is(err, common.ErrInvariant) {
		t.Fatalf("expected ErrInvariant for duplicate registration, got %v", err)
	}

	if len(emitter.Events) != 1 || emitter.Events[0].Type != "charity.added" {
		t.Fatalf("expected one charity.added event, got %+v", emitter.Events)
	}
}

func TestCharityIDsFollowRegistrationOrder(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	engine, _ := newTestEngine(state, admin)

	for i := byte(2); i <= 4; i++ {
		record, err := engine.AddCharity(admin, newTestAddress(i), "ipfs://charity")
		if err != nil {
			t.Fatalf("add charity %d: %v", i, err)
		}
		if record.ID != uint64(i-2) {
			t.Fatalf("expected dense id %d, got %d", i-2, record.ID)
		}
	}

	byID, err := engine.GetCharityByID(1)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Identity != newTestAddress(3) {
		t.Fatalf("id 1 resolved to wrong identity %x", byID.Identity)
	}

	// Both read paths return the same record.
	byIdentity, err := engine.GetCharity(newTestAddress(3))
	if err != nil {
		t.Fatalf("get by identity: %v", err)
	}
	if byIdentity.ID != byID.ID {
		t.Fatalf("id mismatch between read paths: %d != %d", byIdentity.ID, byID.ID)
	}

	if _, err := engine.GetCharityByID(3); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound past the dense range, got %v", err)
	}
}

func TestUpdateCharity(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	engine, _ := newTestEngine(state, admin)
	identity := newTestAddress(0x02)

	if _, err := engine.UpdateCharity(admin, identity, "ipfs://x", true); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown charity, got %v", err)
	}

	if _, err := engine.AddCharity(admin, identity, "ipfs://shelter"); err != nil {
		t.Fatalf("add charity: %v", err)
	}
	state.charities[identity].TotalReceived = big.NewInt(777)

	record, err := engine.UpdateCharity(admin, identity, "ipfs://shelter-v2", false)
	if err != nil {
		t.Fatalf("update charity: %v", err)
	}
	if record.Verified {
		t.Fatalf("expected verification revoked")
	}
	if record.MetadataRef != "ipfs://shelter-v2" {
		t.Fatalf("unexpected metadata %q", record.MetadataRef)
	}
	if record.TotalReceived.Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("update must preserve cumulative total, got %s", record.TotalReceived)
	}

	verified, err := engine.IsVerified(identity)
	if err != nil {
		t.Fatalf("is verified: %v", err)
	}
	if verified {
		t.Fatalf("expected unverified after revocation")
	}
}

func TestCharitiesRegistrationOrder(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	engine, _ := newTestEngine(state, admin)

	for i := byte(2); i < 5; i++ {
		if _, err := engine.AddCharity(admin, newTestAddress(i), fmt.Sprintf("ipfs://charity-%d", i)); err != nil {
			t.Fatalf("add charity %d: %v", i, err)
		}
	}
	records, err := engine.Charities()
	if err != nil {
		t.Fatalf("charities: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 charities, got %d", len(records))
	}
	for i, record := range records {
		if record.Identity != newTestAddress(byte(i+2)) {
			t.Fatalf("expected registration order preserved at %d", i)
		}
	}
	count, err := engine.CharityCount()
	if err != nil {
		t.Fatalf("charity count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}

func TestCreateGoal(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	engine, _ := newTestEngine(state, admin)
	identity := newTestAddress(0x02)

	if _, err := engine.CreateGoal(identity, "ipfs://goal", big.NewInt(1000), 0); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unregistered caller, got %v", err)
	}

	if _, err := engine.AddCharity(admin, identity, "ipfs://shelter"); err != nil {
		t.Fatalf("add charity: %v", err)
	}

	if _, err := engine.CreateGoal(identity, "ipfs://goal", big.NewInt(0), 0); !errors.Is(err, common.ErrInvariant) {
		t.Fatalf("expected ErrInvariant for zero target, got %v", err)
	}

	goal, err := engine.CreateGoal(identity, "ipfs://goal", big.NewInt(1000), 2000)
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if goal.ID != 0 || goal.Status != GoalActive {
		t.Fatalf("unexpected goal %+v", goal)
	}
	if goal.CurrentAmount.Sign() != 0 {
		t.Fatalf("expected zero progress, got %s", goal.CurrentAmount)
	}

	// Revoked charities cannot open new goals.
	if _, err := engine.UpdateCharity(admin, identity, "ipfs://shelter", false); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := engine.CreateGoal(identity, "ipfs://goal-2", big.NewInt(500), 0); !errors.Is(err, common.ErrCharityNotVerified) {
		t.Fatalf("expected ErrCharityNotVerified after revocation, got %v", err)
	}
}

func TestCancelGoal(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	engine, _ := newTestEngine(state, admin)
	identity := newTestAddress(0x02)
	if _, err := engine.AddCharity(admin, identity, "ipfs://shelter"); err != nil {
		t.Fatalf("add charity: %v", err)
	}
	goal, err := engine.CreateGoal(identity, "ipfs://goal", big.NewInt(1000), 0)
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}

	if err := engine.CancelGoal(newTestAddress(0x09), goal.ID); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-owner, got %v", err)
	}
	if err := engine.CancelGoal(identity, goal.ID); err != nil {
		t.Fatalf("cancel goal: %v", err)
	}
	if err := engine.CancelGoal(identity, goal.ID); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for repeat cancel, got %v", err)
	}
	if err := engine.CancelGoal(identity, 99); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown goal, got %v", err)
	}
}

func TestRecordGoalProgress(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	engine, emitter := newTestEngine(state, admin)
	identity := newTestAddress(0x02)
	if _, err := engine.AddCharity(admin, identity, "ipfs://shelter"); err != nil {
		t.Fatalf("add charity: %v", err)
	}
	goal, err := engine.CreateGoal(identity, "ipfs://goal", big.NewInt(1000), 0)
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}

	if _, err := engine.RecordGoalProgress(identity, goal.ID, big.NewInt(100)); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin progress, got %v", err)
	}
	if _, err := engine.RecordGoalProgress(admin, goal.ID, big.NewInt(0)); !errors.Is(err, common.ErrInvariant) {
		t.Fatalf("expected ErrInvariant for zero amount, got %v", err)
	}

	updated, err := engine.RecordGoalProgress(admin, goal.ID, big.NewInt(400))
	if err != nil {
		t.Fatalf("record progress: %v", err)
	}
	if updated.Status != GoalActive || updated.CurrentAmount.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("unexpected goal after partial progress: %+v", updated)
	}

	updated, err = engine.RecordGoalProgress(admin, goal.ID, big.NewInt(600))
	if err != nil {
		t.Fatalf("record progress to target: %v", err)
	}
	if updated.Status != GoalCompleted {
		t.Fatalf("expected completed goal at target, got %d", updated.Status)
	}

	if _, err := engine.RecordGoalProgress(admin, goal.ID, big.NewInt(1)); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for progress on completed goal, got %v", err)
	}

	var sawCompleted bool
	for _, evt := range emitter.Events {
		if evt.Type == "charity.goal.completed" {
			sawCompleted = true
		}
	}
	if !sawCompleted {
		t.Fatalf("expected charity.goal.completed event, got %+v", emitter.Events)
	}
}

func TestGoalsDenseIteration(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	engine, _ := newTestEngine(state, admin)
	first := newTestAddress(0x02)
	second := newTestAddress(0x03)
	if _, err := engine.AddCharity(admin, first, "ipfs://a"); err != nil {
		t.Fatalf("add charity: %v", err)
	}
	if _, err := engine.AddCharity(admin, second, "ipfs://b"); err != nil {
		t.Fatalf("add charity: %v", err)
	}

	if _, err := engine.CreateGoal(first, "ipfs://g0", big.NewInt(10), 0); err != nil {
		t.Fatalf("goal 0: %v", err)
	}
	if _, err := engine.CreateGoal(second, "ipfs://g1", big.NewInt(20), 0); err != nil {
		t.Fatalf("goal 1: %v", err)
	}
	if _, err := engine.CreateGoal(first, "ipfs://g2", big.NewInt(30), 0); err != nil {
		t.Fatalf("goal 2: %v", err)
	}

	goals, err := engine.Goals()
	if err != nil {
		t.Fatalf("goals: %v", err)
	}
	if len(goals) != 3 {
		t.Fatalf("expected 3 goals, got %d", len(goals))
	}
	for i, goal := range goals {
		if goal.ID != uint64(i) {
			t.Fatalf("expected dense ids, got %d at %d", goal.ID, i)
		}
	}

	owned, err := engine.CharityGoals(first)
	if err != nil {
		t.Fatalf("charity goals: %v", err)
	}
	if len(owned) != 2 || owned[0].ID != 0 || owned[1].ID != 2 {
		t.Fatalf("unexpected per-charity goal index: %+v", owned)
	}
}

func TestItemRequestLifecycle(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	engine, _ := newTestEngine(state, admin)
	identity := newTestAddress(0x02)

	if _, err := engine.CreateItemRequest(identity, "ipfs://need-coats", coretypes.CategoryClothing); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unregistered caller, got %v", err)
	}
	if _, err := engine.AddCharity(admin, identity, "ipfs://shelter"); err != nil {
		t.Fatalf("add charity: %v", err)
	}
	if _, err := engine.CreateItemRequest(identity, "ipfs://bad", coretypes.Category(42)); !errors.Is(err, common.ErrInvariant) {
		t.Fatalf("expected ErrInvariant for invalid category, got %v", err)
	}

	request, err := engine.CreateItemRequest(identity, "ipfs://need-coats", coretypes.CategoryClothing)
	if err != nil {
		t.Fatalf("create item request: %v", err)
	}
	if request.ID != 0 || request.Status != RequestActive || request.FulfilledCount != 0 {
		t.Fatalf("unexpected request %+v", request)
	}

	if err := engine.MarkItemRequestFulfilled(newTestAddress(0x09), request.ID); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-owner, got %v", err)
	}
	if err := engine.MarkItemRequestFulfilled(identity, request.ID); err != nil {
		t.Fatalf("mark fulfilled: %v", err)
	}
	if err := engine.CancelItemRequest(identity, request.ID); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState cancelling fulfilled request, got %v", err)
	}

	second, err := engine.CreateItemRequest(identity, "ipfs://need-desks", coretypes.CategoryHouseGoods)
	if err != nil {
		t.Fatalf("create second request: %v", err)
	}
	if err := engine.CancelItemRequest(identity, second.ID); err != nil {
		t.Fatalf("cancel request: %v", err)
	}
	stored, _ := state.ItemRequestGet(second.ID)
	if stored.Status != RequestCancelled {
		t.Fatalf("expected cancelled request, got %d", stored.Status)
	}

	all, err := engine.ItemRequests()
	if err != nil {
		t.Fatalf("item requests: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(all))
	}
	owned, err := engine.CharityItemRequests(identity)
	if err != nil {
		t.Fatalf("charity item requests: %v", err)
	}
	if len(owned) != 2 {
		t.Fatalf("expected 2 owned requests, got %d", len(owned))
	}
}
