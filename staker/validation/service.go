// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validation

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/stakeledger/staker/reverts"
	"github.com/vechain/stakeledger/staker/storage"
	"github.com/vechain/stakeledger/thor"
)

var (
	slotValidations       = storage.NameToSlot("validations")
	slotValidationsBySeq  = storage.NameToSlot("validations-by-seq")
	slotValidationCounter = storage.NameToSlot("validations-counter")
)

// Service is the validator registry.
// Records are never removed; only their totals change.
type Service struct {
	validations *storage.Mapping[thor.Address, *body]
	bySeq       *storage.Mapping[thor.Bytes32, thor.Address]
	counter     *storage.Raw[uint64]
}

func New(sctx *storage.Context) *Service {
	return &Service{
		validations: storage.NewMapping[thor.Address, *body](sctx, slotValidations),
		bySeq:       storage.NewMapping[thor.Bytes32, thor.Address](sctx, slotValidationsBySeq),
		counter:     storage.NewRaw[uint64](sctx, slotValidationCounter),
	}
}

// Get returns the validation for the given id, nil if it was never registered.
func (s *Service) Get(id thor.Address) (*Validation, error) {
	b, err := s.validations.Get(id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get validator")
	}
	if b == nil {
		return nil, nil
	}
	return &Validation{b}, nil
}

func (s *Service) GetExisting(id thor.Address) (*Validation, error) {
	v, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, reverts.ErrValidatorNotFound
	}
	return v, nil
}

// Add registers id with a zero total and the next registration sequence.
func (s *Service) Add(id thor.Address) (*Validation, error) {
	existing, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, reverts.ErrAlreadyExists
	}

	count, err := s.counter.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get validator counter")
	}
	seq := count + 1

	v := &Validation{&body{Seq: seq, TotalDelegated: new(uint256.Int)}}
	if err := s.validations.Set(id, v.body); err != nil {
		return nil, errors.Wrap(err, "failed to set validator")
	}
	if err := s.bySeq.Set(storage.IndexKey(seq), id); err != nil {
		return nil, errors.Wrap(err, "failed to index validator")
	}
	if err := s.counter.Set(seq); err != nil {
		return nil, errors.Wrap(err, "failed to set validator counter")
	}
	return v, nil
}

// SetTotal stores the new total of an existing validator.
func (s *Service) SetTotal(id thor.Address, v *Validation, total *uint256.Int) error {
	v.setTotal(total)
	if err := s.validations.Set(id, v.body); err != nil {
		return errors.Wrap(err, "failed to set validator")
	}
	return nil
}

// Count returns the number of registered validators.
func (s *Service) Count() (uint64, error) {
	return s.counter.Get()
}

// Iterate visits validators in registration order until fn returns false or an error.
func (s *Service) Iterate(fn func(id thor.Address, v *Validation) (bool, error)) error {
	count, err := s.counter.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get validator counter")
	}
	for seq := uint64(1); seq <= count; seq++ {
		id, err := s.bySeq.Get(storage.IndexKey(seq))
		if err != nil {
			return errors.Wrap(err, "failed to get validator index")
		}
		v, err := s.Get(id)
		if err != nil {
			return err
		}
		if v == nil {
			return errors.Errorf("validator index %d points to missing record %v", seq, id)
		}
		next, err := fn(id, v)
		if err != nil {
			return err
		}
		if !next {
			return nil
		}
	}
	return nil
}
