package charity

import (
	"fmt"
	"math/big"
	"strings"

	"charitychain/core/types"
)

// Charity is a fund recipient registered by an admin. ID is the dense
// registration index, assigned once and never reused. TotalReceived is the
// cumulative settled escrow volume and only ever grows.
type Charity struct {
	ID            uint64
	Identity      [20]byte
	MetadataRef   string
	Verified      bool
	TotalReceived *big.Int
}

// Clone returns a deep copy of the charity record.
func (c *Charity) Clone() *Charity {
	if c == nil {
		return nil
	}
	clone := *c
	if c.TotalReceived != nil {
		clone.TotalReceived = new(big.Int).Set(c.TotalReceived)
	} else {
		clone.TotalReceived = big.NewInt(0)
	}
	return &clone
}

// GoalStatus enumerates the lifecycle states of a fundraising goal.
type GoalStatus uint8

const (
	GoalActive GoalStatus = iota
	GoalCompleted
	GoalCancelled
)

// Valid reports whether the status value is within the supported range.
func (s GoalStatus) Valid() bool {
	return s <= GoalCancelled
}

// Goal is a fundraising target owned by a charity. CurrentAmount is advanced
// only through the admin-gated progress operation; it is never inferred from
// purchases.
type Goal struct {
	ID            uint64
	Charity       [20]byte
	MetadataRef   string
	TargetAmount  *big.Int
	CurrentAmount *big.Int
	Deadline      int64
	Status        GoalStatus
}

// Clone returns a deep copy of the goal.
func (g *Goal) Clone() *Goal {
	if g == nil {
		return nil
	}
	clone := *g
	if g.TargetAmount != nil {
		clone.TargetAmount = new(big.Int).Set(g.TargetAmount)
	} else {
		clone.TargetAmount = big.NewInt(0)
	}
	if g.CurrentAmount != nil {
		clone.CurrentAmount = new(big.Int).Set(g.CurrentAmount)
	} else {
		clone.CurrentAmount = big.NewInt(0)
	}
	return &clone
}

// RequestStatus enumerates the lifecycle states of an item request.
type RequestStatus uint8

const (
	RequestActive RequestStatus = iota
	RequestFulfilled
	RequestCancelled
)

// Valid reports whether the status value is within the supported range.
func (s RequestStatus) Valid() bool {
	return s <= RequestCancelled
}

// ItemRequest asks donors for items of a given category. FulfilledCount grows
// with each donated item; the status flips to Fulfilled only by an explicit
// charity action.
type ItemRequest struct {
	ID             uint64
	Charity        [20]byte
	MetadataRef    string
	Category       types.Category
	Status         RequestStatus
	FulfilledCount uint64
}

// Clone returns a copy of the item request.
func (r *ItemRequest) Clone() *ItemRequest {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// SanitizeGoal validates a goal record and returns a cloned instance with
// non-nil amounts.
func SanitizeGoal(g *Goal) (*Goal, error) {
	if g == nil {
		return nil, fmt.Errorf("charity: nil goal")
	}
	clone := g.Clone()
	if clone.TargetAmount.Sign() <= 0 {
		return nil, fmt.Errorf("charity: goal target must be positive")
	}
	if clone.CurrentAmount.Sign() < 0 {
		return nil, fmt.Errorf("charity: goal progress must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("charity: invalid goal status: %d", clone.Status)
	}
	return clone, nil
}

// SanitizeItemRequest validates an item request record.
func SanitizeItemRequest(r *ItemRequest) (*ItemRequest, error) {
	if r == nil {
		return nil, fmt.Errorf("charity: nil item request")
	}
	clone := r.Clone()
	if strings.TrimSpace(clone.MetadataRef) == "" {
		return nil, fmt.Errorf("charity: item request metadata required")
	}
	if !clone.Category.Valid() {
		return nil, fmt.Errorf("charity: invalid category: %d", clone.Category)
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("charity: invalid request status: %d", clone.Status)
	}
	return clone, nil
}
