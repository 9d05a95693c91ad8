// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validation

import (
	"github.com/holiman/uint256"
)

type Status = uint8

const (
	StatusUnknown  = Status(iota) // 0 -> default value, never reported for a registered validator
	StatusActive                  // In the active set
	StatusInactive                // Registered but outside the active set
)

type Validation struct {
	body *body
}

type body struct {
	Seq            uint64       // registration sequence, 1-based, breaks stake ties
	TotalDelegated *uint256.Int // sum of all delegations to this validator
}

func (v *Validation) Seq() uint64 {
	return v.body.Seq
}

// TotalDelegated returns a copy of the validator's total.
func (v *Validation) TotalDelegated() *uint256.Int {
	if v.body.TotalDelegated == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v.body.TotalDelegated)
}

func (v *Validation) setTotal(total *uint256.Int) {
	v.body.TotalDelegated = new(uint256.Int).Set(total)
}
