// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staker

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/stakeledger/staker/stakes"
	"github.com/vechain/stakeledger/staker/storage"
)

var (
	slotConfig = storage.NameToSlot("config")

	ErrConfigMismatch = errors.New("config does not match the one the ledger was created with")
)

const (
	DefaultMaxValidators = 21
	DefaultEpochLength   = 10
	DefaultCacheSize     = 4096
)

// Config is fixed for the life of a ledger. Unit, MaxValidators and EpochLength are
// persisted on first open; CacheSize is a runtime setting only.
type Config struct {
	Unit          *uint256.Int // stake unit, deposits must be positive multiples of it
	MaxValidators int          // capacity of the active set
	EpochLength   uint64       // blocks per epoch
	CacheSize     int          // number of committed values cached in memory
}

func DefaultConfig() Config {
	return Config{
		Unit:          new(uint256.Int).Set(stakes.DefaultUnit),
		MaxValidators: DefaultMaxValidators,
		EpochLength:   DefaultEpochLength,
		CacheSize:     DefaultCacheSize,
	}
}

func (c Config) Validate() error {
	if c.Unit == nil || c.Unit.IsZero() {
		return errors.New("unit must be positive")
	}
	if c.MaxValidators < 1 {
		return errors.New("max validators must be at least 1")
	}
	if c.EpochLength == 0 {
		return errors.New("epoch length must be positive")
	}
	return nil
}

type storedConfig struct {
	Unit          *uint256.Int
	MaxValidators uint64
	EpochLength   uint64
}

func (c Config) stored() *storedConfig {
	return &storedConfig{
		Unit:          new(uint256.Int).Set(c.Unit),
		MaxValidators: uint64(c.MaxValidators),
		EpochLength:   c.EpochLength,
	}
}

func (sc *storedConfig) equal(other *storedConfig) bool {
	return sc.Unit.Eq(other.Unit) &&
		sc.MaxValidators == other.MaxValidators &&
		sc.EpochLength == other.EpochLength
}
