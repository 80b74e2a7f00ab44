package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"charitychain/crypto"

	"github.com/BurntSushi/toml"
)

type GenesisAccount struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

type Config struct {
	RPCAddress      string           `toml:"RPCAddress"`
	RPCToken        string           `toml:"RPCToken"`
	DataDir         string           `toml:"DataDir"`
	DBBackend       string           `toml:"DBBackend"`
	NetworkName     string           `toml:"NetworkName"`
	AdminKeyPath    string           `toml:"AdminKeyPath"`
	GenesisAdmin    string           `toml:"GenesisAdmin"`
	GenesisAccounts []GenesisAccount `toml:"GenesisAccounts"`
	LogLevel        string           `toml:"LogLevel"`
	LogFile         string           `toml:"LogFile"`
}

// Load loads the configuration from the given path, creating a default file
// with a freshly generated admin key when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "charity-local"
	}
	if strings.TrimSpace(cfg.DBBackend) == "" {
		cfg.DBBackend = "memory"
	}
	if strings.TrimSpace(cfg.GenesisAdmin) == "" {
		if err := ensureAdminKey(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ensureAdminKey generates an admin key when the config names no genesis
// admin, saving both the key material and the derived address back to disk.
func ensureAdminKey(configPath string, cfg *Config) error {
	keyPath := cfg.AdminKeyPath
	if keyPath == "" {
		keyPath = defaultAdminKeyPath(configPath)
	}

	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := saveKey(keyPath, key); err != nil {
			return err
		}
		cfg.GenesisAdmin = key.PubKey().Address().String()
	} else if err != nil {
		return err
	} else {
		key, loadErr := loadKey(keyPath)
		if loadErr != nil {
			return loadErr
		}
		cfg.GenesisAdmin = key.PubKey().Address().String()
	}

	cfg.AdminKeyPath = keyPath
	return persist(configPath, cfg)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keyPath := defaultAdminKeyPath(path)
	if err := saveKey(keyPath, key); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:      ":8080",
		DataDir:         "./charity-data",
		DBBackend:       "memory",
		NetworkName:     "charity-local",
		AdminKeyPath:    keyPath,
		GenesisAdmin:    key.PubKey().Address().String(),
		GenesisAccounts: []GenesisAccount{},
		LogLevel:        "info",
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultAdminKeyPath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "admin.key")
}

func saveKey(path string, key *crypto.PrivateKey) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	encoded := hex.EncodeToString(key.Bytes())
	return os.WriteFile(path, []byte(encoded+"\n"), 0o600)
}

func loadKey(path string) (*crypto.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("config: malformed admin key file %s: %w", path, err)
	}
	return crypto.PrivateKeyFromBytes(decoded)
}
