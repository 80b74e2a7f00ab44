package charity

import (
	"encoding/hex"
	"strconv"

	"charitychain/core/types"
)

const (
	EventTypeCharityAdded     = "charity.added"
	EventTypeCharityUpdated   = "charity.updated"
	EventTypeGoalCreated      = "charity.goal.created"
	EventTypeGoalCancelled    = "charity.goal.cancelled"
	EventTypeGoalCompleted    = "charity.goal.completed"
	EventTypeRequestCreated   = "charity.request.created"
	EventTypeRequestCancelled = "charity.request.cancelled"
	EventTypeRequestFulfilled = "charity.request.fulfilled"
)

type charityAdded struct{ Charity *Charity }

func (charityAdded) EventType() string { return EventTypeCharityAdded }

func (e charityAdded) Event() *types.Event { return newCharityEvent(EventTypeCharityAdded, e.Charity) }

type charityUpdated struct{ Charity *Charity }

func (charityUpdated) EventType() string { return EventTypeCharityUpdated }

func (e charityUpdated) Event() *types.Event {
	return newCharityEvent(EventTypeCharityUpdated, e.Charity)
}

type goalCreated struct{ Goal *Goal }

func (goalCreated) EventType() string { return EventTypeGoalCreated }

func (e goalCreated) Event() *types.Event { return newGoalEvent(EventTypeGoalCreated, e.Goal) }

type goalCancelled struct{ Goal *Goal }

func (goalCancelled) EventType() string { return EventTypeGoalCancelled }

func (e goalCancelled) Event() *types.Event { return newGoalEvent(EventTypeGoalCancelled, e.Goal) }

type goalCompleted struct{ Goal *Goal }

func (goalCompleted) EventType() string { return EventTypeGoalCompleted }

func (e goalCompleted) Event() *types.Event { return newGoalEvent(EventTypeGoalCompleted, e.Goal) }

type requestCreated struct{ Request *ItemRequest }

func (requestCreated) EventType() string { return EventTypeRequestCreated }

func (e requestCreated) Event() *types.Event {
	return newRequestEvent(EventTypeRequestCreated, e.Request)
}

type requestCancelled struct{ Request *ItemRequest }

func (requestCancelled) EventType() string { return EventTypeRequestCancelled }

func (e requestCancelled) Event() *types.Event {
	return newRequestEvent(EventTypeRequestCancelled, e.Request)
}

type requestFulfilled struct{ Request *ItemRequest }

func (requestFulfilled) EventType() string { return EventTypeRequestFulfilled }

func (e requestFulfilled) Event() *types.Event {
	return newRequestEvent(EventTypeRequestFulfilled, e.Request)
}

func newCharityEvent(eventType string, c *Charity) *types.Event {
	attrs := make(map[string]string)
	if c != nil {
		attrs["charity"] = hex.EncodeToString(c.Identity[:])
		attrs["metadata"] = c.MetadataRef
		attrs["verified"] = strconv.FormatBool(c.Verified)
		if c.TotalReceived != nil {
			attrs["totalReceived"] = c.TotalReceived.String()
		}
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newGoalEvent(eventType string, g *Goal) *types.Event {
	attrs := make(map[string]string)
	if g != nil {
		attrs["id"] = strconv.FormatUint(g.ID, 10)
		attrs["charity"] = hex.EncodeToString(g.Charity[:])
		if g.TargetAmount != nil {
			attrs["target"] = g.TargetAmount.String()
		}
		if g.CurrentAmount != nil {
			attrs["current"] = g.CurrentAmount.String()
		}
		attrs["deadline"] = strconv.FormatInt(g.Deadline, 10)
		attrs["status"] = strconv.FormatUint(uint64(g.Status), 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newRequestEvent(eventType string, r *ItemRequest) *types.Event {
	attrs := make(map[string]string)
	if r != nil {
		attrs["id"] = strconv.FormatUint(r.ID, 10)
		attrs["charity"] = hex.EncodeToString(r.Charity[:])
		attrs["category"] = r.Category.String()
		attrs["status"] = strconv.FormatUint(uint64(r.Status), 10)
		attrs["fulfilledCount"] = strconv.FormatUint(r.FulfilledCount, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
