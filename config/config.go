package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Ledger holds the administrative parameters of the contest ledger.
type Ledger struct {
	Owner             string   `toml:"Owner"`
	Agents            []string `toml:"Agents"`
	PlatformAccount   string   `toml:"PlatformAccount"`
	FeeBps            uint32   `toml:"FeeBps"`
	PauseOnStart      bool     `toml:"PauseOnStart"`
	DataDir           string   `toml:"DataDir"`
	StorageBaseCost   string   `toml:"StorageBaseCost"`
	StorageOptionCost string   `toml:"StorageOptionCost"`
	Limits            Limits   `toml:"Limits"`
	Deposits          Deposits `toml:"Deposits"`
}

// Load loads the ledger parameters from path, writing defaults when the file
// does not exist yet.
func Load(path string) (*Ledger, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Ledger{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Ledger) {
	cfg.Owner = strings.TrimSpace(cfg.Owner)
	cfg.PlatformAccount = strings.TrimSpace(cfg.PlatformAccount)
	if cfg.Agents == nil {
		cfg.Agents = []string{}
	}
	if strings.TrimSpace(cfg.StorageBaseCost) == "" {
		cfg.StorageBaseCost = "0"
	}
	if strings.TrimSpace(cfg.StorageOptionCost) == "" {
		cfg.StorageOptionCost = "0"
	}
	cfg.Limits.applyDefaults()
	cfg.Deposits.applyDefaults()
}

// Default returns the parameters written for a fresh installation.
func Default() *Ledger {
	cfg := &Ledger{
		Owner:           "owner",
		Agents:          []string{},
		PlatformAccount: "platform",
		FeeBps:          250,
		DataDir:         "./contest-data",
	}
	applyDefaults(cfg)
	return cfg
}

func createDefault(path string) (*Ledger, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Ledger) error {
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
