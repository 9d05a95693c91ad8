// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staker

import (
	"math/rand"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakeledger/staker/reverts"
	"github.com/vechain/stakeledger/thor"
)

type op struct {
	Kind      uint8
	Validator uint8
	Staker    uint8
	Amount    uint8
}

type pair struct {
	validator, staker thor.Address
}

// Random operation sequences must keep balances equal to a simple model and
// never leave a trace of rejected operations.
func TestRandomOperations(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		f := fuzz.New().NilChance(0).RandSource(rand.NewSource(seed))
		var ops []op
		f.NumElements(150, 300).Fuzz(&ops)

		cfg := DefaultConfig()
		cfg.Unit = uint256.NewInt(10)
		cfg.MaxValidators = int(seed%4) + 1
		s, err := Open(newMemStore(t), cfg)
		require.NoError(t, err)

		registered := make(map[thor.Address]bool)
		balances := make(map[pair]uint64)
		totals := make(map[thor.Address]uint64)

		for i, o := range ops {
			v := thor.BytesToAddress([]byte{'v', o.Validator % 8})
			st := thor.BytesToAddress([]byte{'s', o.Staker % 4})
			amount := uint64(o.Amount % 64)

			switch o.Kind % 4 {
			case 0:
				err := s.AddValidator(v)
				if registered[v] {
					assert.ErrorIs(t, err, reverts.ErrAlreadyExists)
				} else {
					require.NoError(t, err)
					registered[v] = true
				}
			case 1, 2:
				total, err := s.Delegate(v, st, uint256.NewInt(amount))
				switch {
				case amount < 10:
					assert.ErrorIs(t, err, reverts.ErrAmountTooLow)
				case amount%10 != 0:
					assert.ErrorIs(t, err, reverts.ErrNotDivisible)
				case !registered[v]:
					assert.ErrorIs(t, err, reverts.ErrValidatorNotFound)
				default:
					require.NoError(t, err)
					balances[pair{v, st}] += amount
					totals[v] += amount
					assert.Equal(t, totals[v], total.Uint64())
				}
			case 3:
				total, err := s.Undelegate(v, st, uint256.NewInt(amount))
				switch {
				case amount == 0:
					require.NoError(t, err)
					assert.Equal(t, totals[v], total.Uint64())
				case amount > balances[pair{v, st}]:
					assert.ErrorIs(t, err, reverts.ErrInsufficientBalance)
				default:
					require.NoError(t, err)
					balances[pair{v, st}] -= amount
					totals[v] -= amount
					assert.Equal(t, totals[v], total.Uint64())
				}
			}
			require.NoError(t, s.AdvanceBlock(uint64(i+1)))

			require.NoError(t, s.CheckInvariants(), "seed %d op %d", seed, i)
			active := s.Validators()
			assert.LessOrEqual(t, len(active), cfg.MaxValidators)
			for _, id := range active {
				assert.NotZero(t, totals[id])
			}
		}

		for p, want := range balances {
			got, err := s.ValidatorDelegation(p.validator, p.staker)
			require.NoError(t, err)
			assert.Equal(t, want, got.Uint64())
		}
		s.Close()
	}
}
