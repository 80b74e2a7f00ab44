package types

import "math/big"

// Account holds the native-currency balance and replay nonce for a single
// externally-authenticated identity.
type Account struct {
	Nonce   uint64
	Balance *big.Int
}

// NewAccount returns an empty account with a zeroed balance.
func NewAccount() *Account {
	return &Account{Balance: big.NewInt(0)}
}

// Clone returns a deep copy so callers can mutate the copy without affecting
// the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := &Account{Nonce: a.Nonce, Balance: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return clone
}
