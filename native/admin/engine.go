package admin

import (
	"errors"
	"fmt"

	"charitychain/core/events"
	"charitychain/native/common"
)

var errNilState = errors.New("admin engine: state not configured")

type engineState interface {
	AdminList() ([][20]byte, error)
	AdminPut(addr [20]byte) error
	AdminDelete(addr [20]byte) error
	AdminExists(addr [20]byte) (bool, error)
	PrimaryAdmin() ([20]byte, bool, error)
	SetPrimaryAdmin(addr [20]byte) error
}

// Engine maintains the admin set and the designated primary admin. The
// primary can never be removed, so the set always has at least one member once
// the engine is bootstrapped.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine creates an admin engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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

// Bootstrap installs the genesis primary admin. It is a no-op when a primary
// is already set, so restarting a node against existing state is safe.
func (e *Engine) Bootstrap(primary [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if _, ok, err := e.state.PrimaryAdmin(); err != nil {
		return err
	} else if ok {
		return nil
	}
	if err := e.state.AdminPut(primary); err != nil {
		return err
	}
	return e.state.SetPrimaryAdmin(primary)
}

// IsAdmin reports whether the identity is a member of the admin set. It is
// the authorization predicate consumed by every admin-gated operation.
func (e *Engine) IsAdmin(addr [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.AdminExists(addr)
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	ok, err := e.IsAdmin(caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: caller is not an admin", common.ErrUnauthorized)
	}
	return nil
}

// AddAdmin adds the target identity to the admin set. Admin-only.
func (e *Engine) AddAdmin(caller, target [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	exists, err := e.state.AdminExists(target)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: already an admin", common.ErrInvariant)
	}
	if err := e.state.AdminPut(target); err != nil {
		return err
	}
	e.emit(adminAdded{Admin: target, By: caller})
	return nil
}

// RemoveAdmin removes the target from the admin set. Admin-only; removing the
// primary admin or a non-member is rejected.
func (e *Engine) RemoveAdmin(caller, target [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	primary, ok, err := e.state.PrimaryAdmin()
	if err != nil {
		return err
	}
	if ok && primary == target {
		return fmt.Errorf("%w: primary admin cannot be removed", common.ErrInvariant)
	}
	exists, err := e.state.AdminExists(target)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: target is not an admin", common.ErrNotFound)
	}
	if err := e.state.AdminDelete(target); err != nil {
		return err
	}
	e.emit(adminRemoved{Admin: target, By: caller})
	return nil
}

// TransferPrimaryAdmin moves the primary designation to the target. Only the
// current primary may transfer it; the target is admitted to the admin set in
// the same step when not already a member.
func (e *Engine) TransferPrimaryAdmin(caller, target [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	primary, ok, err := e.state.PrimaryAdmin()
	if err != nil {
		return err
	}
	if !ok || primary != caller {
		return fmt.Errorf("%w: only the primary admin may transfer the role", common.ErrUnauthorized)
	}
	exists, err := e.state.AdminExists(target)
	if err != nil {
		return err
	}
	if !exists {
		if err := e.state.AdminPut(target); err != nil {
			return err
		}
	}
	if err := e.state.SetPrimaryAdmin(target); err != nil {
		return err
	}
	e.emit(primaryTransferred{From: caller, To: target})
	return nil
}

// Admins returns the current admin set.
func (e *Engine) Admins() ([][20]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.AdminList()
}

// Primary returns the current primary admin.
func (e *Engine) Primary() ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	primary, ok, err := e.state.PrimaryAdmin()
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, fmt.Errorf("%w: primary admin not set", common.ErrNotFound)
	}
	return primary, nil
}
