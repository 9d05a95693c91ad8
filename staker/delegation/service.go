// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package delegation

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/stakeledger/staker/reverts"
	"github.com/vechain/stakeledger/staker/storage"
	"github.com/vechain/stakeledger/thor"
)

var (
	slotDelegations  = storage.NameToSlot("delegations")
	slotStakers      = storage.NameToSlot("delegation-stakers")
	slotStakersCount = storage.NameToSlot("delegation-stakers-count")
)

type Service struct {
	delegations  *storage.Mapping[thor.Bytes32, *body]
	stakers      *storage.Mapping[thor.Bytes32, thor.Address]
	stakersCount *storage.Mapping[thor.Address, uint64]
}

func New(sctx *storage.Context) *Service {
	return &Service{
		delegations:  storage.NewMapping[thor.Bytes32, *body](sctx, slotDelegations),
		stakers:      storage.NewMapping[thor.Bytes32, thor.Address](sctx, slotStakers),
		stakersCount: storage.NewMapping[thor.Address, uint64](sctx, slotStakersCount),
	}
}

func pairKey(validator, staker thor.Address) thor.Bytes32 {
	return thor.Blake2b(validator.Bytes(), staker.Bytes())
}

func stakerKey(validator thor.Address, index uint64) thor.Bytes32 {
	return thor.Blake2b(validator.Bytes(), storage.IndexKey(index).Bytes())
}

func (s *Service) get(validator, staker thor.Address) (*body, error) {
	b, err := s.delegations.Get(pairKey(validator, staker))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get delegation")
	}
	return b, nil
}

// Get returns the delegation for the pair. A pair that never delegated yields a zero record.
func (s *Service) Get(validator, staker thor.Address) (*Delegation, error) {
	b, err := s.get(validator, staker)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return newEmpty(), nil
	}
	return &Delegation{b}, nil
}

// Add increases the pair balance by amount and stamps the epoch.
func (s *Service) Add(validator, staker thor.Address, amount *uint256.Int, epoch uint64) (*Delegation, error) {
	b, err := s.get(validator, staker)
	if err != nil {
		return nil, err
	}
	if b == nil {
		if err := s.appendStaker(validator, staker); err != nil {
			return nil, err
		}
		b = &body{Amount: new(uint256.Int)}
	}

	sum, overflow := new(uint256.Int).AddOverflow(b.Amount, amount)
	if overflow {
		return nil, reverts.ErrAmountOverflow
	}
	b.Amount = sum
	b.Epoch = epoch

	if err := s.delegations.Set(pairKey(validator, staker), b); err != nil {
		return nil, errors.Wrap(err, "failed to set delegation")
	}
	return &Delegation{b}, nil
}

// Sub decreases the pair balance by amount. It fails with ErrInsufficientBalance
// if amount exceeds the balance, writing nothing.
func (s *Service) Sub(validator, staker thor.Address, amount *uint256.Int) (*Delegation, error) {
	b, err := s.get(validator, staker)
	if err != nil {
		return nil, err
	}
	if b == nil {
		if amount.IsZero() {
			return newEmpty(), nil
		}
		return nil, reverts.ErrInsufficientBalance
	}

	rest, underflow := new(uint256.Int).SubOverflow(b.Amount, amount)
	if underflow {
		return nil, reverts.ErrInsufficientBalance
	}
	b.Amount = rest

	if err := s.delegations.Set(pairKey(validator, staker), b); err != nil {
		return nil, errors.Wrap(err, "failed to set delegation")
	}
	return &Delegation{b}, nil
}

// StakerCount returns how many distinct stakers ever delegated to the validator.
func (s *Service) StakerCount(validator thor.Address) (uint64, error) {
	n, err := s.stakersCount.Get(validator)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get staker count")
	}
	return n, nil
}

// Iterate visits the validator's stakers in first-delegation order until fn returns false or an error.
func (s *Service) Iterate(validator thor.Address, fn func(staker thor.Address, d *Delegation) (bool, error)) error {
	count, err := s.StakerCount(validator)
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		staker, err := s.stakers.Get(stakerKey(validator, i))
		if err != nil {
			return errors.Wrap(err, "failed to get staker")
		}
		d, err := s.Get(validator, staker)
		if err != nil {
			return err
		}
		next, err := fn(staker, d)
		if err != nil {
			return err
		}
		if !next {
			return nil
		}
	}
	return nil
}

func (s *Service) appendStaker(validator, staker thor.Address) error {
	count, err := s.StakerCount(validator)
	if err != nil {
		return err
	}
	if err := s.stakers.Set(stakerKey(validator, count), staker); err != nil {
		return errors.Wrap(err, "failed to set staker")
	}
	if err := s.stakersCount.Set(validator, count+1); err != nil {
		return errors.Wrap(err, "failed to set staker count")
	}
	return nil
}
