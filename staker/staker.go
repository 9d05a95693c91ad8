// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staker

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/stakeledger/kv"
	"github.com/vechain/stakeledger/log"
	"github.com/vechain/stakeledger/staker/delegation"
	"github.com/vechain/stakeledger/staker/epoch"
	"github.com/vechain/stakeledger/staker/globalstats"
	"github.com/vechain/stakeledger/staker/ranking"
	"github.com/vechain/stakeledger/staker/reverts"
	"github.com/vechain/stakeledger/staker/stakes"
	"github.com/vechain/stakeledger/staker/storage"
	"github.com/vechain/stakeledger/staker/validation"
	"github.com/vechain/stakeledger/thor"
)

var (
	logger = log.WithContext("pkg", "staker")

	storeBucket = kv.Bucket("staker.")
	slotBlock   = storage.NameToSlot("block")
)

func SetLogger(l log.Logger) {
	logger = l
}

// ValidatorStatus is the stake and active-set status of a registered validator.
type ValidatorStatus struct {
	TotalDelegated *uint256.Int
	Status         validation.Status
}

// Staker is the ledger: validator registry, delegation balances, the active set
// and the epoch clock, bundled as one owned state object.
type Staker struct {
	mu  sync.RWMutex
	cfg Config

	sctx   *storage.Context
	policy *stakes.Policy
	ranker *ranking.Ranker
	epochs *epoch.Tracker
	block  *storage.Raw[uint64]

	validationService  *validation.Service
	delegationService  *delegation.Service
	globalStatsService *globalstats.Service

	feed  event.FeedOf[*Event]
	scope event.SubscriptionScope
}

// Open loads the ledger held in store, creating it with cfg if the store is empty.
// Reopening with a config other than the persisted one fails with ErrConfigMismatch.
func Open(store kv.Store, cfg Config) (*Staker, error) {
	s, err := newStaker(store, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.loadConfig(); err != nil {
		return nil, err
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	s.updateGauges()

	logger.Debug("opened ledger",
		"unit", cfg.Unit,
		"maxValidators", cfg.MaxValidators,
		"epochLength", cfg.EpochLength,
		"block", s.epochs.Block(),
		"ranked", s.ranker.Len(),
	)
	return s, nil
}

// newStaker builds a ledger over store without reading or writing it.
func newStaker(store kv.Store, cfg Config) (*Staker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	policy, err := stakes.NewPolicy(cfg.Unit)
	if err != nil {
		return nil, err
	}
	epochs, err := epoch.New(cfg.EpochLength)
	if err != nil {
		return nil, err
	}
	sctx, err := storage.NewContext(storeBucket.NewStore(store), cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	return &Staker{
		cfg:                cfg,
		sctx:               sctx,
		policy:             policy,
		ranker:             ranking.New(cfg.MaxValidators),
		epochs:             epochs,
		block:              storage.NewRaw[uint64](sctx, slotBlock),
		validationService:  validation.New(sctx),
		delegationService:  delegation.New(sctx),
		globalStatsService: globalstats.New(sctx),
	}, nil
}

func (s *Staker) loadConfig() error {
	raw := storage.NewRaw[*storedConfig](s.sctx, slotConfig)
	existing, err := raw.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get config")
	}
	if existing != nil {
		if !existing.equal(s.cfg.stored()) {
			return errors.Wrapf(ErrConfigMismatch, "stored unit=%v maxValidators=%d epochLength=%d",
				existing.Unit, existing.MaxValidators, existing.EpochLength)
		}
		return nil
	}
	return s.mutate(s.storeConfig)
}

func (s *Staker) storeConfig() error {
	return storage.NewRaw[*storedConfig](s.sctx, slotConfig).Set(s.cfg.stored())
}

// load restores the epoch clock and rebuilds the ranker from validator totals.
func (s *Staker) load() error {
	block, err := s.block.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get block")
	}
	if err := s.epochs.Advance(block); err != nil {
		return err
	}

	ranker := ranking.New(s.cfg.MaxValidators)
	if err := s.validationService.Iterate(func(id thor.Address, v *validation.Validation) (bool, error) {
		ranker.Update(id, v.Seq(), v.TotalDelegated())
		return true, nil
	}); err != nil {
		return err
	}
	s.ranker = ranker
	return nil
}

// mutate runs fn in a storage checkpoint. The staged writes are committed as one batch
// if fn succeeds and discarded otherwise.
func (s *Staker) mutate(fn func() error) error {
	depth := s.sctx.Checkpoint()
	if err := fn(); err != nil {
		s.sctx.Revert(depth)
		return err
	}
	if err := s.sctx.Commit(); err != nil {
		s.sctx.Revert(depth)
		return err
	}
	return nil
}

// Close ends all event subscriptions. The store is owned by the caller.
func (s *Staker) Close() {
	s.scope.Close()
}

// Config returns a copy of the ledger configuration.
func (s *Staker) Config() Config {
	cfg := s.cfg
	cfg.Unit = new(uint256.Int).Set(s.cfg.Unit)
	return cfg
}

//
// Getters - no state change
//

// Validators returns the active set, highest stake first.
func (s *Staker) Validators() []thor.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ranker.ActiveSet()
}

// ValidatorStatus returns the total and status of a registered validator.
func (s *Staker) ValidatorStatus(id thor.Address) (*ValidatorStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := s.validationService.Get(id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, reverts.ErrNotFound
	}
	return s.status(id, v), nil
}

func (s *Staker) status(id thor.Address, v *validation.Validation) *ValidatorStatus {
	status := validation.StatusInactive
	if s.ranker.Contains(id) {
		status = validation.StatusActive
	}
	return &ValidatorStatus{TotalDelegated: v.TotalDelegated(), Status: status}
}

// ValidatorDelegation returns the staker's balance with the validator, zero if none.
func (s *Staker) ValidatorDelegation(validator, staker thor.Address) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, err := s.delegationService.Get(validator, staker)
	if err != nil {
		return nil, err
	}
	return d.Amount(), nil
}

// DelegationEpoch returns the epoch of the staker's most recent deposit to the validator.
func (s *Staker) DelegationEpoch(validator, staker thor.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, err := s.delegationService.Get(validator, staker)
	if err != nil {
		return 0, err
	}
	return d.Epoch(), nil
}

// Epoch returns the epoch of the latest block.
func (s *Staker) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.epochs.Current()
}

// Block returns the latest block passed to AdvanceBlock.
func (s *Staker) Block() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.epochs.Block()
}

// TotalStaked returns the sum of all validator totals.
func (s *Staker) TotalStaked() (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.globalStatsService.TotalStaked()
}

// StakedValidators returns how many validators hold a positive total.
func (s *Staker) StakedValidators() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.globalStatsService.StakedValidators()
}

// ValidatorCount returns the number of registered validators.
func (s *Staker) ValidatorCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.validationService.Count()
}

// IterateValidators visits registered validators in registration order until fn returns false.
func (s *Staker) IterateValidators(fn func(id thor.Address, status *ValidatorStatus) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.validationService.Iterate(func(id thor.Address, v *validation.Validation) (bool, error) {
		return fn(id, s.status(id, v)), nil
	})
}

// IterateDelegations visits the validator's stakers in first-delegation order until fn returns false.
func (s *Staker) IterateDelegations(validator thor.Address, fn func(staker thor.Address, amount *uint256.Int) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.delegationService.Iterate(validator, func(staker thor.Address, d *delegation.Delegation) (bool, error) {
		return fn(staker, d.Amount()), nil
	})
}

//
// Setters - state change
//

// AddValidator registers id with zero stake.
func (s *Staker) AddValidator(id thor.Address) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func(start time.Time) { observe("add_validator", start, err) }(time.Now())

	logger.Debug("adding validator", "id", id)

	if err = s.mutate(func() error {
		_, err := s.validationService.Add(id)
		return err
	}); err != nil {
		logger.Info("add validator failed", "id", id, "error", err)
		return err
	}

	s.emit(&Event{Kind: ValidatorAdded, Validator: id})
	logger.Info("added validator", "id", id)
	return nil
}

// Delegate adds amount to the staker's delegation and returns the validator's new total.
func (s *Staker) Delegate(validator, staker thor.Address, amount *uint256.Int) (total *uint256.Int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func(start time.Time) { observe("delegate", start, err) }(time.Now())

	logger.Debug("adding delegation", "validator", validator, "staker", staker, "amount", amount)

	var (
		seq          uint64
		currentEpoch = s.epochs.Current()
	)
	if err = s.mutate(func() error {
		if err := s.policy.ValidateDeposit(amount); err != nil {
			return err
		}
		v, err := s.validationService.GetExisting(validator)
		if err != nil {
			return err
		}
		before := v.TotalDelegated()
		after, overflow := new(uint256.Int).AddOverflow(before, amount)
		if overflow {
			return reverts.ErrAmountOverflow
		}
		if _, err := s.delegationService.Add(validator, staker, amount, currentEpoch); err != nil {
			return err
		}
		if err := s.validationService.SetTotal(validator, v, after); err != nil {
			return err
		}
		if err := s.globalStatsService.ApplyChange(before, after); err != nil {
			return err
		}
		seq, total = v.Seq(), after
		return nil
	}); err != nil {
		logger.Info("failed to add delegation", "validator", validator, "staker", staker, "error", err)
		return nil, err
	}

	s.ranker.Update(validator, seq, total)
	s.updateGauges()
	s.emit(&Event{
		Kind:      Delegated,
		Validator: validator,
		Staker:    staker,
		Amount:    new(uint256.Int).Set(amount),
		Epoch:     currentEpoch,
	})

	logger.Info("added delegation", "validator", validator, "staker", staker, "total", total, "epoch", currentEpoch)
	return new(uint256.Int).Set(total), nil
}

// Undelegate withdraws amount from the staker's delegation and returns the validator's new total.
// Only the staker's own balance bounds the withdrawal; the unit policy does not apply.
func (s *Staker) Undelegate(validator, staker thor.Address, amount *uint256.Int) (total *uint256.Int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func(start time.Time) { observe("undelegate", start, err) }(time.Now())

	logger.Debug("withdrawing delegation", "validator", validator, "staker", staker, "amount", amount)

	if amount == nil || amount.IsZero() {
		v, err := s.validationService.Get(validator)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return new(uint256.Int), nil
		}
		return v.TotalDelegated(), nil
	}

	var seq uint64
	if err = s.mutate(func() error {
		if _, err := s.delegationService.Sub(validator, staker, amount); err != nil {
			return err
		}
		v, err := s.validationService.Get(validator)
		if err != nil {
			return err
		}
		if v == nil {
			return reverts.ErrInsufficientBalance
		}
		before := v.TotalDelegated()
		after, underflow := new(uint256.Int).SubOverflow(before, amount)
		if underflow {
			return reverts.ErrInsufficientBalance
		}
		if err := s.validationService.SetTotal(validator, v, after); err != nil {
			return err
		}
		if err := s.globalStatsService.ApplyChange(before, after); err != nil {
			return err
		}
		seq, total = v.Seq(), after
		return nil
	}); err != nil {
		logger.Info("withdraw delegation failed", "validator", validator, "staker", staker, "error", err)
		return nil, err
	}

	s.ranker.Update(validator, seq, total)
	s.updateGauges()
	s.emit(&Event{
		Kind:      Undelegated,
		Validator: validator,
		Staker:    staker,
		Amount:    new(uint256.Int).Set(amount),
	})

	logger.Info("withdrew delegation", "validator", validator, "staker", staker, "total", total)
	return new(uint256.Int).Set(total), nil
}

// AdvanceBlock moves the epoch clock to block. Blocks never go backwards.
func (s *Staker) AdvanceBlock(block uint64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func(start time.Time) { observe("advance_block", start, err) }(time.Now())

	current := s.epochs.Block()
	if block < current {
		return errors.Wrapf(epoch.ErrBlockRegression, "current %d, got %d", current, block)
	}
	if block == current {
		return nil
	}

	if err = s.mutate(func() error {
		return s.block.Set(block)
	}); err != nil {
		return err
	}

	prevEpoch := s.epochs.Current()
	if err = s.epochs.Advance(block); err != nil {
		return err
	}
	if e := s.epochs.Current(); e != prevEpoch {
		s.updateGauges()
		logger.Info("entered new epoch", "epoch", e, "block", block)
	}
	return nil
}
