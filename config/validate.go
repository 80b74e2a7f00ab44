package config

import (
	"fmt"
	"math/big"
	"strings"

	"charitychain/crypto"
)

var supportedBackends = map[string]bool{
	"memory":  true,
	"leveldb": true,
	"bolt":    true,
}

// Validate checks the configuration for values the node cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress required")
	}
	if !supportedBackends[strings.TrimSpace(c.DBBackend)] {
		return fmt.Errorf("config: unsupported DBBackend %q (memory, leveldb, bolt)", c.DBBackend)
	}
	if strings.TrimSpace(c.GenesisAdmin) == "" {
		return fmt.Errorf("config: GenesisAdmin required")
	}
	if _, err := crypto.DecodeAddress(strings.TrimSpace(c.GenesisAdmin)); err != nil {
		return fmt.Errorf("config: invalid GenesisAdmin: %w", err)
	}
	for i, account := range c.GenesisAccounts {
		if _, err := crypto.DecodeAddress(strings.TrimSpace(account.Address)); err != nil {
			return fmt.Errorf("config: invalid GenesisAccounts[%d].Address: %w", i, err)
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(account.Balance), 10)
		if !ok || balance.Sign() < 0 {
			return fmt.Errorf("config: invalid GenesisAccounts[%d].Balance %q", i, account.Balance)
		}
	}
	return nil
}

// GenesisAdminAddress decodes the configured genesis admin.
func (c *Config) GenesisAdminAddress() ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(c.GenesisAdmin))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Bytes(), nil
}

// GenesisAllocations decodes the configured genesis balances.
func (c *Config) GenesisAllocations() (map[[20]byte]*big.Int, error) {
	out := make(map[[20]byte]*big.Int, len(c.GenesisAccounts))
	for i, account := range c.GenesisAccounts {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(account.Address))
		if err != nil {
			return nil, fmt.Errorf("config: invalid GenesisAccounts[%d].Address: %w", i, err)
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(account.Balance), 10)
		if !ok || balance.Sign() < 0 {
			return nil, fmt.Errorf("config: invalid GenesisAccounts[%d].Balance %q", i, account.Balance)
		}
		out[addr.Bytes()] = balance
	}
	return out, nil
}
