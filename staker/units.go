// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staker

import (
	"github.com/holiman/uint256"

	"github.com/vechain/stakeledger/staker/reverts"
)

// FromUnits converts a count of whole units into base units.
func FromUnits(units uint64, unit *uint256.Int) (*uint256.Int, error) {
	amount, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(units), unit)
	if overflow {
		return nil, reverts.ErrAmountOverflow
	}
	return amount, nil
}

// ToUnits splits a base-unit amount into whole units and the remainder.
func ToUnits(amount, unit *uint256.Int) (whole, rest *uint256.Int) {
	whole, rest = new(uint256.Int), new(uint256.Int)
	whole.DivMod(amount, unit, rest)
	return whole, rest
}
