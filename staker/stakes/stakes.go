// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/stakeledger/staker/reverts"
)

// DefaultUnit is one whole token in base units (1e18).
var DefaultUnit = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))

// Policy decides whether a deposit amount is admissible. It holds no ledger state.
type Policy struct {
	unit *uint256.Int
}

func NewPolicy(unit *uint256.Int) (*Policy, error) {
	if unit == nil || unit.IsZero() {
		return nil, errors.New("stake unit must be positive")
	}
	return &Policy{unit: new(uint256.Int).Set(unit)}, nil
}

func (p *Policy) Unit() *uint256.Int {
	return new(uint256.Int).Set(p.unit)
}

// ValidateDeposit accepts only positive multiples of the unit.
// A nonzero amount below one unit reports ErrAmountTooLow, not ErrNotDivisible.
func (p *Policy) ValidateDeposit(amount *uint256.Int) error {
	if amount == nil || amount.Lt(p.unit) {
		return reverts.ErrAmountTooLow
	}
	if !new(uint256.Int).Mod(amount, p.unit).IsZero() {
		return reverts.ErrNotDivisible
	}
	return nil
}

// Units returns how many whole units amount holds, rounding down.
func (p *Policy) Units(amount *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(amount, p.unit)
}
