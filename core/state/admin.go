package state

import "fmt"

func (m *Manager) loadAdminSet() ([][20]byte, error) {
	var set [][20]byte
	if _, err := m.loadRLP(hashedKey(adminSetKey, nil), &set); err != nil {
		return nil, err
	}
	return set, nil
}

func (m *Manager) writeAdminSet(set [][20]byte) error {
	return m.writeRLP(hashedKey(adminSetKey, nil), set)
}

// AdminList returns the admin set in admission order.
func (m *Manager) AdminList() ([][20]byte, error) {
	return m.loadAdminSet()
}

// AdminExists reports whether the address is a member of the admin set.
func (m *Manager) AdminExists(addr [20]byte) (bool, error) {
	set, err := m.loadAdminSet()
	if err != nil {
		return false, err
	}
	for _, member := range set {
		if member == addr {
			return true, nil
		}
	}
	return false, nil
}

// AdminPut adds the address to the admin set. Adding an existing member is a
// no-op.
func (m *Manager) AdminPut(addr [20]byte) error {
	set, err := m.loadAdminSet()
	if err != nil {
		return err
	}
	for _, member := range set {
		if member == addr {
			return nil
		}
	}
	return m.writeAdminSet(append(set, addr))
}

// AdminDelete removes the address from the admin set.
func (m *Manager) AdminDelete(addr [20]byte) error {
	set, err := m.loadAdminSet()
	if err != nil {
		return err
	}
	out := set[:0]
	found := false
	for _, member := range set {
		if member == addr {
			found = true
			continue
		}
		out = append(out, member)
	}
	if !found {
		return fmt.Errorf("state: address is not an admin")
	}
	return m.writeAdminSet(out)
}

// PrimaryAdmin returns the designated primary admin, with ok reporting
// whether one has been set.
func (m *Manager) PrimaryAdmin() ([20]byte, bool, error) {
	var primary [20]byte
	ok, err := m.loadRLP(hashedKey(primaryAdminKey, nil), &primary)
	if err != nil {
		return [20]byte{}, false, err
	}
	return primary, ok, nil
}

// SetPrimaryAdmin stores the primary admin designation.
func (m *Manager) SetPrimaryAdmin(addr [20]byte) error {
	return m.writeRLP(hashedKey(primaryAdminKey, nil), addr)
}
