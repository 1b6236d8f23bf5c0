// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package scriptexec

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/ethereum/go-ethereum/common"
)

// Config is the configuration of a script executor.
type Config struct {
	// ExecAdmin may change the configuration and create registries.
	ExecAdmin appvault.Address `toml:"exec_admin"`
	// DefaultProvider and DefaultRegistry resolve the applications
	// instantiated through CreateAppInstance.
	DefaultProvider appvault.Address `toml:"default_provider"`
	DefaultRegistry appvault.ExecID  `toml:"default_registry"`
	// Address is the account the executor submits calls from. It is the
	// executor of all instances it creates.
	Address appvault.Address `toml:"address"`
}

// DefaultAddress is the account used by executors not configuring one.
func DefaultAddress() appvault.Address {
	return appvault.Address(common.HexToAddress("0x5c1e000000000000000000000000000000000001"))
}

// DefaultConfig returns a configuration with only the executor address set.
func DefaultConfig() Config {
	return Config{Address: DefaultAddress()}
}

// LoadConfig reads a configuration from a TOML file. A missing file results
// in the default configuration; unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return Config{}, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if cfg.Address == (appvault.Address{}) {
		cfg.Address = DefaultAddress()
	}
	return cfg, nil
}

// SaveConfig writes the configuration to a TOML file.
func SaveConfig(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return errors.Join(err, f.Close())
	}
	return f.Close()
}
