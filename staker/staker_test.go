// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staker

import (
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakeledger/kv"
	"github.com/vechain/stakeledger/lvldb"
	"github.com/vechain/stakeledger/staker/epoch"
	"github.com/vechain/stakeledger/staker/reverts"
	"github.com/vechain/stakeledger/staker/stakes"
	"github.com/vechain/stakeledger/staker/validation"
	"github.com/vechain/stakeledger/thor"
)

var (
	validator1 = thor.BytesToAddress([]byte("validator1"))
	validator2 = thor.BytesToAddress([]byte("validator2"))
	validator3 = thor.BytesToAddress([]byte("validator3"))
	validator4 = thor.BytesToAddress([]byte("validator4"))
	validator5 = thor.BytesToAddress([]byte("validator5"))

	staker1 = thor.BytesToAddress([]byte("staker1"))
	staker2 = thor.BytesToAddress([]byte("staker2"))
	staker3 = thor.BytesToAddress([]byte("staker3"))
)

func units(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), stakes.DefaultUnit)
}

func newMemStore(t *testing.T) kv.Store {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStaker(t *testing.T, maxValidators int) *Staker {
	cfg := DefaultConfig()
	cfg.MaxValidators = maxValidators
	s, err := Open(newMemStore(t), cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func addValidators(t *testing.T, s *Staker, ids ...thor.Address) {
	for _, id := range ids {
		require.NoError(t, s.AddValidator(id))
	}
}

func assertDelegation(t *testing.T, s *Staker, validator, staker thor.Address, want *uint256.Int) {
	t.Helper()
	got, err := s.ValidatorDelegation(validator, staker)
	require.NoError(t, err)
	assert.Equal(t, want.Dec(), got.Dec())
}

func assertTotal(t *testing.T, s *Staker, validator thor.Address, want *uint256.Int) {
	t.Helper()
	status, err := s.ValidatorStatus(validator)
	require.NoError(t, err)
	assert.Equal(t, want.Dec(), status.TotalDelegated.Dec())
}

func TestSimpleDelegation(t *testing.T) {
	s := newTestStaker(t, DefaultMaxValidators)
	events := make(chan *Event, 8)
	sub := s.SubscribeEvents(events)
	defer sub.Unsubscribe()

	addValidators(t, s, validator1)
	ev := <-events
	assert.Equal(t, ValidatorAdded, ev.Kind)
	assert.Equal(t, validator1, ev.Validator)

	total, err := s.Delegate(validator1, staker1, units(1))
	require.NoError(t, err)
	assert.Equal(t, units(1).Dec(), total.Dec())

	ev = <-events
	assert.Equal(t, Delegated, ev.Kind)
	assert.Equal(t, validator1, ev.Validator)
	assert.Equal(t, staker1, ev.Staker)
	assert.Equal(t, "1000000000000000000", ev.Amount.Dec())
	assert.Equal(t, uint64(1), ev.Epoch)
	assertDelegation(t, s, validator1, staker1, units(1))

	require.NoError(t, s.AdvanceBlock(1))
	_, err = s.Delegate(validator1, staker2, units(1))
	require.NoError(t, err)
	ev = <-events
	assert.Equal(t, staker2, ev.Staker)
	assert.Equal(t, uint64(1), ev.Epoch)
	assert.Equal(t, uint64(1), ev.Block)
	assertDelegation(t, s, validator1, staker2, units(1))

	status, err := s.ValidatorStatus(validator1)
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000", status.TotalDelegated.Dec())
	assert.Equal(t, validation.StatusActive, status.Status)
	assert.Equal(t, uint8(1), status.Status)
}

func TestUndelegateReorders(t *testing.T) {
	s := newTestStaker(t, DefaultMaxValidators)
	events := make(chan *Event, 16)
	sub := s.SubscribeEvents(events)
	defer sub.Unsubscribe()

	addValidators(t, s, validator1, validator2)
	_, err := s.Delegate(validator1, staker1, units(1))
	require.NoError(t, err)
	// zero-stake validators are not active
	assert.Equal(t, []thor.Address{validator1}, s.Validators())

	_, err = s.Delegate(validator2, staker2, units(2))
	require.NoError(t, err)
	assert.Equal(t, []thor.Address{validator2, validator1}, s.Validators())
	assertTotal(t, s, validator1, units(1))
	assertTotal(t, s, validator2, units(2))

	for len(events) > 0 {
		<-events
	}
	total, err := s.Undelegate(validator2, staker2, units(1))
	require.NoError(t, err)
	assert.Equal(t, units(1).Dec(), total.Dec())

	ev := <-events
	assert.Equal(t, Undelegated, ev.Kind)
	assert.Equal(t, validator2, ev.Validator)
	assert.Equal(t, staker2, ev.Staker)
	assert.Equal(t, "1000000000000000000", ev.Amount.Dec())
	assert.Equal(t, uint64(0), ev.Epoch)

	assertTotal(t, s, validator1, units(1))
	assertTotal(t, s, validator2, units(1))
	// equal stake, earlier registration first
	assert.Equal(t, []thor.Address{validator1, validator2}, s.Validators())
	assertDelegation(t, s, validator2, staker2, units(1))

	_, err = s.Undelegate(validator2, staker2, units(1))
	require.NoError(t, err)
	assertDelegation(t, s, validator2, staker2, units(0))
	assert.Equal(t, []thor.Address{validator1}, s.Validators())

	status, err := s.ValidatorStatus(validator2)
	require.NoError(t, err)
	assert.Equal(t, validation.StatusInactive, status.Status)
	assert.NoError(t, s.CheckInvariants())
}

func TestUndelegateMoreThanDelegated(t *testing.T) {
	s := newTestStaker(t, DefaultMaxValidators)
	addValidators(t, s, validator1)

	for i, amount := range []uint64{1, 2, 3} {
		_, err := s.Delegate(validator1, staker1, units(amount))
		require.NoError(t, err)
		want := units([]uint64{1, 3, 6}[i])
		assertDelegation(t, s, validator1, staker1, want)
		assertTotal(t, s, validator1, want)
	}

	_, err := s.Undelegate(validator1, staker1, units(5))
	require.NoError(t, err)
	assertDelegation(t, s, validator1, staker1, units(1))

	_, err = s.Undelegate(validator1, staker1, units(2))
	assert.ErrorIs(t, err, reverts.ErrInsufficientBalance)
	assert.EqualError(t, err, "Staking: insufficient balance")
	assertDelegation(t, s, validator1, staker1, units(1))
	assertTotal(t, s, validator1, units(1))

	_, err = s.Undelegate(validator1, staker1, units(1))
	require.NoError(t, err)
	assertDelegation(t, s, validator1, staker1, units(0))
	assertTotal(t, s, validator1, units(0))
	assert.NoError(t, s.CheckInvariants())
}

func TestActiveValidatorOrder(t *testing.T) {
	s := newTestStaker(t, 3)
	addValidators(t, s, validator1, validator2, validator3, validator4, validator5)

	_, err := s.Delegate(validator1, staker1, units(3))
	require.NoError(t, err)
	_, err = s.Delegate(validator2, staker2, units(2))
	require.NoError(t, err)
	_, err = s.Delegate(validator3, staker3, units(1))
	require.NoError(t, err)
	assert.Equal(t, []thor.Address{validator1, validator2, validator3}, s.Validators())

	_, err = s.Delegate(validator4, staker3, units(4))
	require.NoError(t, err)
	assert.Equal(t, []thor.Address{validator4, validator1, validator2}, s.Validators())

	status, err := s.ValidatorStatus(validator3)
	require.NoError(t, err)
	assert.Equal(t, validation.StatusInactive, status.Status)
	assert.Equal(t, units(1).Dec(), status.TotalDelegated.Dec())
	assert.NoError(t, s.CheckInvariants())
}

func TestDelegateToUnknownValidator(t *testing.T) {
	s := newTestStaker(t, DefaultMaxValidators)
	addValidators(t, s, validator1, validator3)

	_, err := s.Delegate(validator2, staker1, units(3))
	assert.ErrorIs(t, err, reverts.ErrValidatorNotFound)
	assert.EqualError(t, err, "Staking: validator not found")

	// no records were created
	_, err = s.ValidatorStatus(validator2)
	assert.ErrorIs(t, err, reverts.ErrNotFound)
	assertDelegation(t, s, validator2, staker1, units(0))
	count, err := s.ValidatorCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	// the amount is checked before registration
	_, err = s.Delegate(validator2, staker1, uint256.NewInt(1))
	assert.ErrorIs(t, err, reverts.ErrAmountTooLow)
	_, err = s.Delegate(validator2, staker1, nil)
	assert.ErrorIs(t, err, reverts.ErrAmountTooLow)
	_, err = s.Delegate(validator2, staker1, new(uint256.Int).AddUint64(units(1), 1))
	assert.ErrorIs(t, err, reverts.ErrNotDivisible)
	_, err = s.ValidatorStatus(validator2)
	assert.ErrorIs(t, err, reverts.ErrNotFound)
}

func TestIncorrectAmounts(t *testing.T) {
	s := newTestStaker(t, DefaultMaxValidators)
	addValidators(t, s, validator1)

	tenth, _ := uint256.FromDecimal("100000000000000000")
	oneAndTenth, _ := uint256.FromDecimal("1100000000000000000")

	_, err := s.Delegate(validator1, staker1, tenth)
	assert.EqualError(t, err, "Staking: amount too low")
	_, err = s.Delegate(validator1, staker1, uint256.NewInt(0))
	assert.EqualError(t, err, "Staking: amount too low")
	_, err = s.Delegate(validator1, staker1, nil)
	assert.ErrorIs(t, err, reverts.ErrAmountTooLow)
	_, err = s.Delegate(validator1, staker1, oneAndTenth)
	assert.EqualError(t, err, "Staking: amount shouldn't have a remainder")

	assertDelegation(t, s, validator1, staker1, units(0))
	assertTotal(t, s, validator1, units(0))
	assert.Empty(t, s.Validators())
}

func TestActiveSetEviction(t *testing.T) {
	t.Run("single delegation", func(t *testing.T) {
		s := newTestStaker(t, 2)
		addValidators(t, s, validator1)
		_, err := s.Delegate(validator1, staker1, units(1))
		require.NoError(t, err)
		assertDelegation(t, s, validator1, staker1, units(1))
		assertTotal(t, s, validator1, units(1))
	})

	t.Run("ordering and eviction", func(t *testing.T) {
		s := newTestStaker(t, 2)
		addValidators(t, s, validator1, validator2)
		_, err := s.Delegate(validator1, staker1, units(1))
		require.NoError(t, err)
		_, err = s.Delegate(validator2, staker2, units(2))
		require.NoError(t, err)
		assert.Equal(t, []thor.Address{validator2, validator1}, s.Validators())

		addValidators(t, s, validator3)
		_, err = s.Delegate(validator3, staker3, units(3))
		require.NoError(t, err)
		assert.Equal(t, []thor.Address{validator3, validator2}, s.Validators())

		status, err := s.ValidatorStatus(validator1)
		require.NoError(t, err)
		assert.Equal(t, validation.StatusInactive, status.Status)
		assert.Equal(t, units(1).Dec(), status.TotalDelegated.Dec())
	})

	t.Run("re-entry after eviction", func(t *testing.T) {
		s := newTestStaker(t, 2)
		addValidators(t, s, validator1, validator2, validator3)
		for i, v := range []thor.Address{validator1, validator2, validator3} {
			_, err := s.Delegate(v, staker1, units(uint64(i+1)))
			require.NoError(t, err)
		}
		assert.Equal(t, []thor.Address{validator3, validator2}, s.Validators())

		_, err := s.Delegate(validator1, staker2, units(2))
		require.NoError(t, err)
		// validator1 (3) ties validator3 (3) and was registered first
		assert.Equal(t, []thor.Address{validator1, validator3}, s.Validators())
	})
}

func TestAlreadyExists(t *testing.T) {
	s := newTestStaker(t, DefaultMaxValidators)
	addValidators(t, s, validator1)

	err := s.AddValidator(validator1)
	assert.ErrorIs(t, err, reverts.ErrAlreadyExists)
	count, err := s.ValidatorCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestUndelegateEdgeCases(t *testing.T) {
	s := newTestStaker(t, DefaultMaxValidators)
	addValidators(t, s, validator1)
	_, err := s.Delegate(validator1, staker1, units(4))
	require.NoError(t, err)

	// unregistered validator holds no balances
	_, err = s.Undelegate(validator2, staker1, units(1))
	assert.ErrorIs(t, err, reverts.ErrInsufficientBalance)

	// another staker's balance does not count
	_, err = s.Undelegate(validator1, staker2, units(1))
	assert.ErrorIs(t, err, reverts.ErrInsufficientBalance)

	events := make(chan *Event, 4)
	sub := s.SubscribeEvents(events)
	defer sub.Unsubscribe()

	total, err := s.Undelegate(validator1, staker1, uint256.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, units(4).Dec(), total.Dec())
	total, err = s.Undelegate(validator2, staker1, nil)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
	assert.Len(t, events, 0)

	// withdrawals are not bound to the unit
	total, err = s.Undelegate(validator1, staker1, uint256.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "3999999999999999999", total.Dec())
	assert.NoError(t, s.CheckInvariants())
}

func TestEpochStamping(t *testing.T) {
	s := newTestStaker(t, DefaultMaxValidators)
	addValidators(t, s, validator1)
	assert.Equal(t, uint64(1), s.Epoch())

	require.NoError(t, s.AdvanceBlock(9))
	assert.Equal(t, uint64(1), s.Epoch())
	require.NoError(t, s.AdvanceBlock(10))
	assert.Equal(t, uint64(2), s.Epoch())
	assert.Equal(t, uint64(10), s.Block())

	_, err := s.Delegate(validator1, staker1, units(1))
	require.NoError(t, err)
	epo, err := s.DelegationEpoch(validator1, staker1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), epo)

	require.NoError(t, s.AdvanceBlock(35))
	// undelegation does not restamp
	_, err = s.Undelegate(validator1, staker1, units(1))
	require.NoError(t, err)
	epo, err = s.DelegationEpoch(validator1, staker1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), epo)

	err = s.AdvanceBlock(34)
	assert.True(t, errors.Is(err, epoch.ErrBlockRegression))
	assert.Equal(t, uint64(35), s.Block())
	assert.NoError(t, s.AdvanceBlock(35))
	assert.Equal(t, uint64(4), s.Epoch())
}

func TestGlobalStats(t *testing.T) {
	s := newTestStaker(t, 2)
	addValidators(t, s, validator1, validator2, validator3)
	_, err := s.Delegate(validator1, staker1, units(1))
	require.NoError(t, err)
	_, err = s.Delegate(validator2, staker1, units(2))
	require.NoError(t, err)
	_, err = s.Delegate(validator3, staker2, units(3))
	require.NoError(t, err)

	total, err := s.TotalStaked()
	require.NoError(t, err)
	assert.Equal(t, units(6).Dec(), total.Dec())
	staked, err := s.StakedValidators()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), staked)

	_, err = s.Undelegate(validator1, staker1, units(1))
	require.NoError(t, err)
	staked, err = s.StakedValidators()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), staked)

	var ids []thor.Address
	var statuses []validation.Status
	require.NoError(t, s.IterateValidators(func(id thor.Address, st *ValidatorStatus) bool {
		ids = append(ids, id)
		statuses = append(statuses, st.Status)
		return true
	}))
	assert.Equal(t, []thor.Address{validator1, validator2, validator3}, ids)
	assert.Equal(t, []validation.Status{validation.StatusInactive, validation.StatusActive, validation.StatusActive}, statuses)

	var stakers []thor.Address
	require.NoError(t, s.IterateDelegations(validator1, func(staker thor.Address, amount *uint256.Int) bool {
		stakers = append(stakers, staker)
		assert.True(t, amount.IsZero())
		return true
	}))
	assert.Equal(t, []thor.Address{staker1}, stakers)
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.MaxValidators = 2

	db, err := lvldb.New(dir, lvldb.Options{})
	require.NoError(t, err)
	s, err := Open(db, cfg)
	require.NoError(t, err)
	addValidators(t, s, validator1, validator2, validator3)
	_, err = s.Delegate(validator1, staker1, units(1))
	require.NoError(t, err)
	_, err = s.Delegate(validator2, staker1, units(5))
	require.NoError(t, err)
	_, err = s.Delegate(validator3, staker2, units(3))
	require.NoError(t, err)
	require.NoError(t, s.AdvanceBlock(42))
	active := s.Validators()
	s.Close()
	require.NoError(t, db.Close())

	db, err = lvldb.New(dir, lvldb.Options{})
	require.NoError(t, err)
	defer db.Close()

	// persisted config guards the capacity
	other := cfg
	other.MaxValidators = 3
	_, err = Open(db, other)
	assert.True(t, errors.Is(err, ErrConfigMismatch))

	s, err = Open(db, cfg)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, active, s.Validators())
	assert.Equal(t, []thor.Address{validator2, validator3}, s.Validators())
	assert.Equal(t, uint64(42), s.Block())
	assert.Equal(t, uint64(5), s.Epoch())
	assertDelegation(t, s, validator1, staker1, units(1))
	assert.NoError(t, s.CheckInvariants())

	// new registrations continue the sequence
	addValidators(t, s, validator4)
	_, err = s.Delegate(validator4, staker1, units(3))
	require.NoError(t, err)
	assert.Equal(t, []thor.Address{validator2, validator3}, s.Validators())
}

func TestOpenInvalidConfig(t *testing.T) {
	store := newMemStore(t)
	for _, mutate := range []func(*Config){
		func(c *Config) { c.Unit = nil },
		func(c *Config) { c.Unit = uint256.NewInt(0) },
		func(c *Config) { c.MaxValidators = 0 },
		func(c *Config) { c.EpochLength = 0 },
	} {
		cfg := DefaultConfig()
		mutate(&cfg)
		_, err := Open(store, cfg)
		assert.Error(t, err)
	}
}

func TestConfigurableUnit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Unit = uint256.NewInt(100)
	s, err := Open(newMemStore(t), cfg)
	require.NoError(t, err)
	defer s.Close()

	addValidators(t, s, validator1)
	_, err = s.Delegate(validator1, staker1, uint256.NewInt(99))
	assert.ErrorIs(t, err, reverts.ErrAmountTooLow)
	_, err = s.Delegate(validator1, staker1, uint256.NewInt(150))
	assert.ErrorIs(t, err, reverts.ErrNotDivisible)
	_, err = s.Delegate(validator1, staker1, uint256.NewInt(300))
	assert.NoError(t, err)

	got := s.Config()
	got.Unit.SetUint64(1)
	assert.Equal(t, uint64(100), s.Config().Unit.Uint64())
}

func TestConcurrentReaders(t *testing.T) {
	s := newTestStaker(t, 3)
	addValidators(t, s, validator1, validator2, validator3, validator4, validator5)

	var wg sync.WaitGroup
	done := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				active := s.Validators()
				assert.LessOrEqual(t, len(active), 3)
				_, err := s.ValidatorDelegation(validator1, staker1)
				assert.NoError(t, err)
			}
		}()
	}

	ids := []thor.Address{validator1, validator2, validator3, validator4, validator5}
	for i := range 50 {
		_, err := s.Delegate(ids[i%len(ids)], staker1, units(uint64(i%3+1)))
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()
	assert.NoError(t, s.CheckInvariants())
}
