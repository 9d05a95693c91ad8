// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"github.com/holiman/uint256"

	"github.com/vechain/stakeledger/staker/reverts"
	"github.com/vechain/stakeledger/thor"
)

// Uint256 is a 256-bit unsigned counter stored at a fixed slot.
// Add and Sub never wrap; they fail with a revert error instead.
type Uint256 struct {
	context *Context
	pos     thor.Bytes32
}

func NewUint256(context *Context, slot thor.Bytes32) *Uint256 {
	return &Uint256{context: context, pos: slot}
}

func (u *Uint256) Get() (*uint256.Int, error) {
	raw, err := u.context.get(u.pos)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(raw), nil
}

func (u *Uint256) Set(value *uint256.Int) {
	u.context.put(u.pos, value.Bytes())
}

func (u *Uint256) Add(value *uint256.Int) error {
	v, err := u.Get()
	if err != nil {
		return err
	}
	if _, overflow := v.AddOverflow(v, value); overflow {
		return reverts.ErrAmountOverflow
	}
	u.Set(v)
	return nil
}

func (u *Uint256) Sub(value *uint256.Int) error {
	v, err := u.Get()
	if err != nil {
		return err
	}
	if _, underflow := v.SubOverflow(v, value); underflow {
		return reverts.ErrInsufficientBalance
	}
	u.Set(v)
	return nil
}
