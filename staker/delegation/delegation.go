// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package delegation

import (
	"github.com/holiman/uint256"
)

// Delegation is the amount a staker has committed to a validator.
type Delegation struct {
	body *body
}

type body struct {
	Amount *uint256.Int // current balance, may be zero
	Epoch  uint64       // epoch of the most recent deposit
}

func newEmpty() *Delegation {
	return &Delegation{&body{Amount: new(uint256.Int)}}
}

// Amount returns a copy of the delegated balance.
func (d *Delegation) Amount() *uint256.Int {
	if d.body.Amount == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(d.body.Amount)
}

func (d *Delegation) Epoch() uint64 {
	return d.body.Epoch
}

func (d *Delegation) IsEmpty() bool {
	return d.body.Amount == nil || d.body.Amount.IsZero()
}
