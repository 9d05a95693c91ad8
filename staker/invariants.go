// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staker

import (
	"sort"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/stakeledger/staker/delegation"
	"github.com/vechain/stakeledger/staker/validation"
	"github.com/vechain/stakeledger/thor"
)

// CheckInvariants recomputes every derived value from the stored balances and
// reports the first disagreement: per-validator totals against their delegations,
// the global totals, and the active set against a full re-sort.
func (s *Staker) CheckInvariants() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type ranked struct {
		id    thor.Address
		seq   uint64
		total *uint256.Int
	}
	var (
		all    []ranked
		sum    = new(uint256.Int)
		staked uint64
	)

	if err := s.validationService.Iterate(func(id thor.Address, v *validation.Validation) (bool, error) {
		delegated := new(uint256.Int)
		if err := s.delegationService.Iterate(id, func(_ thor.Address, d *delegation.Delegation) (bool, error) {
			delegated.Add(delegated, d.Amount())
			return true, nil
		}); err != nil {
			return false, err
		}

		total := v.TotalDelegated()
		if !delegated.Eq(total) {
			return false, errors.Errorf("validator %v: total %v, delegations sum to %v", id, total, delegated)
		}
		if !total.IsZero() {
			all = append(all, ranked{id, v.Seq(), total})
			staked++
		}
		sum.Add(sum, total)
		return true, nil
	}); err != nil {
		return err
	}

	totalStaked, err := s.globalStatsService.TotalStaked()
	if err != nil {
		return err
	}
	if !totalStaked.Eq(sum) {
		return errors.Errorf("total staked %v, validators sum to %v", totalStaked, sum)
	}
	stakedValidators, err := s.globalStatsService.StakedValidators()
	if err != nil {
		return err
	}
	if stakedValidators != staked {
		return errors.Errorf("staked validators %d, counted %d", stakedValidators, staked)
	}

	sort.Slice(all, func(i, j int) bool {
		if c := all[i].total.Cmp(all[j].total); c != 0 {
			return c > 0
		}
		return all[i].seq < all[j].seq
	})
	if len(all) > s.cfg.MaxValidators {
		all = all[:s.cfg.MaxValidators]
	}
	active := s.ranker.ActiveSet()
	if len(active) != len(all) {
		return errors.Errorf("active set has %d entries, expected %d", len(active), len(all))
	}
	for i, r := range all {
		if active[i] != r.id {
			return errors.Errorf("active set position %d holds %v, expected %v", i, active[i], r.id)
		}
	}
	return nil
}
