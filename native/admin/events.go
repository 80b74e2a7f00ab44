package admin

import (
	"encoding/hex"

	"charitychain/core/types"
)

const (
	EventTypeAdminAdded         = "admin.added"
	EventTypeAdminRemoved       = "admin.removed"
	EventTypePrimaryTransferred = "admin.primary_transferred"
)

type adminAdded struct {
	Admin [20]byte
	By    [20]byte
}

func (adminAdded) EventType() string { return EventTypeAdminAdded }

func (e adminAdded) Event() *types.Event {
	return &types.Event{
		Type: EventTypeAdminAdded,
		Attributes: map[string]string{
			"admin": hex.EncodeToString(e.Admin[:]),
			"by":    hex.EncodeToString(e.By[:]),
		},
	}
}

type adminRemoved struct {
	Admin [20]byte
	By    [20]byte
}

func (adminRemoved) EventType() string { return EventTypeAdminRemoved }

func (e adminRemoved) Event() *types.Event {
	return &types.Event{
		Type: EventTypeAdminRemoved,
		Attributes: map[string]string{
			"admin": hex.EncodeToString(e.Admin[:]),
			"by":    hex.EncodeToString(e.By[:]),
		},
	}
}

type primaryTransferred struct {
	From [20]byte
	To   [20]byte
}

func (primaryTransferred) EventType() string { return EventTypePrimaryTransferred }

func (e primaryTransferred) Event() *types.Event {
	return &types.Event{
		Type: EventTypePrimaryTransferred,
		Attributes: map[string]string{
			"from": hex.EncodeToString(e.From[:]),
			"to":   hex.EncodeToString(e.To[:]),
		},
	}
}
