// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package epoch

import (
	"github.com/pkg/errors"
)

var ErrBlockRegression = errors.New("block number must not decrease")

// Tracker derives the epoch from the latest block: every length blocks start a new epoch,
// and block 0 is in epoch 1.
type Tracker struct {
	length uint64
	block  uint64
}

func New(length uint64) (*Tracker, error) {
	if length == 0 {
		return nil, errors.New("epoch length must be positive")
	}
	return &Tracker{length: length}, nil
}

func (t *Tracker) Advance(block uint64) error {
	if block < t.block {
		return errors.Wrapf(ErrBlockRegression, "current %d, got %d", t.block, block)
	}
	t.block = block
	return nil
}

func (t *Tracker) Current() uint64 {
	return EpochOf(t.block, t.length)
}

func (t *Tracker) Block() uint64 {
	return t.block
}

func (t *Tracker) Length() uint64 {
	return t.length
}

func EpochOf(block, length uint64) uint64 {
	return block/length + 1
}
