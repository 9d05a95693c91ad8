// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package globalstats

import (
	"github.com/holiman/uint256"

	"github.com/vechain/stakeledger/staker/storage"
)

var (
	slotTotalStaked = storage.NameToSlot("total-stake")
	slotStakedCount = storage.NameToSlot("staked-validators")
)

// Service manages ledger-wide totals.
type Service struct {
	totalStaked *storage.Uint256
	stakedCount *storage.Raw[uint64]
}

func New(sctx *storage.Context) *Service {
	return &Service{
		totalStaked: storage.NewUint256(sctx, slotTotalStaked),
		stakedCount: storage.NewRaw[uint64](sctx, slotStakedCount),
	}
}

// TotalStaked returns the sum of all validator totals.
func (s *Service) TotalStaked() (*uint256.Int, error) {
	return s.totalStaked.Get()
}

// StakedValidators returns how many validators hold a positive total.
func (s *Service) StakedValidators() (uint64, error) {
	return s.stakedCount.Get()
}

// ApplyChange records a validator total moving from before to after.
func (s *Service) ApplyChange(before, after *uint256.Int) error {
	switch {
	case after.Gt(before):
		if err := s.totalStaked.Add(new(uint256.Int).Sub(after, before)); err != nil {
			return err
		}
	case after.Lt(before):
		if err := s.totalStaked.Sub(new(uint256.Int).Sub(before, after)); err != nil {
			return err
		}
	default:
		return nil
	}

	count, err := s.stakedCount.Get()
	if err != nil {
		return err
	}
	switch {
	case before.IsZero() && !after.IsZero():
		return s.stakedCount.Set(count + 1)
	case !before.IsZero() && after.IsZero():
		return s.stakedCount.Set(count - 1)
	}
	return nil
}
