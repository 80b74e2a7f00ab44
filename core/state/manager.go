package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"charitychain/core/types"
	"charitychain/storage"
)

// Manager persists every ledger table over a flat key-value database. Records
// are RLP encoded and stored under Keccak-hashed, prefixed keys; monotonic id
// counters and secondary id-list indexes live beside the records. The engines
// talk to the manager through their own narrow interfaces, so tests can swap
// in map-backed mocks.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var escrowVaultAddr = func() [20]byte {
	hash := ethcrypto.Keccak256([]byte("charitychain/escrow-vault"))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}()

// EscrowVaultAddress returns the fixed module account that holds in-flight
// escrow funds.
func (m *Manager) EscrowVaultAddress() [20]byte { return escrowVaultAddr }

func hashedKey(prefix []byte, suffix []byte) []byte {
	buf := make([]byte, len(prefix)+len(suffix))
	copy(buf, prefix)
	copy(buf[len(prefix):], suffix)
	return ethcrypto.Keccak256(buf)
}

func idSuffix(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

// loadRLP decodes the value stored under key into out. The second return is
// false when the key does not exist.
func (m *Manager) loadRLP(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %x: %w", key[:4], err)
	}
	return true, nil
}

func (m *Manager) writeRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) loadCounter(key []byte) (uint64, error) {
	value := new(big.Int)
	ok, err := m.loadRLP(key, value)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	if value.Sign() < 0 || value.BitLen() > 63 {
		return 0, fmt.Errorf("state: counter out of range")
	}
	return value.Uint64(), nil
}

// bumpCounter returns the current counter value as the next dense id and
// advances the counter by one.
func (m *Manager) bumpCounter(key []byte) (uint64, error) {
	current, err := m.loadCounter(key)
	if err != nil {
		return 0, err
	}
	if err := m.writeRLP(key, new(big.Int).SetUint64(current+1)); err != nil {
		return 0, err
	}
	return current, nil
}

func (m *Manager) loadIDList(key []byte) ([]uint64, error) {
	var ids []uint64
	if _, err := m.loadRLP(key, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) appendIDList(key []byte, id uint64) error {
	ids, err := m.loadIDList(key)
	if err != nil {
		return err
	}
	return m.writeRLP(key, append(ids, id))
}

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount loads the account for the raw address, returning a fresh empty
// account when none exists yet.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if len(addr) != 20 {
		return nil, fmt.Errorf("state: address must be 20 bytes")
	}
	stored := new(storedAccount)
	ok, err := m.loadRLP(hashedKey(accountPrefix, addr), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	account := &types.Account{Nonce: stored.Nonce, Balance: big.NewInt(0)}
	if stored.Balance != nil {
		account.Balance = new(big.Int).Set(stored.Balance)
	}
	return account, nil
}

// PutAccount persists the account under the raw address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if len(addr) != 20 {
		return fmt.Errorf("state: address must be 20 bytes")
	}
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := big.NewInt(0)
	if account.Balance != nil {
		if account.Balance.Sign() < 0 {
			return fmt.Errorf("state: negative account balance")
		}
		balance = new(big.Int).Set(account.Balance)
	}
	return m.writeRLP(hashedKey(accountPrefix, addr), &storedAccount{Nonce: account.Nonce, Balance: balance})
}
