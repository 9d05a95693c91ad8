// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventlog

import (
	"github.com/vechain/stakeledger/staker"
	"github.com/vechain/stakeledger/thor"
)

// Event is a stored ledger fact with its insertion sequence.
type Event struct {
	Seq uint64
	staker.Event
}

type Order string

const (
	ASC  Order = "asc"
	DESC Order = "desc"
)

// Range is an inclusive block range. A To below From leaves the range open-ended.
type Range struct {
	From uint64
	To   uint64
}

type Options struct {
	Offset uint64
	Limit  uint64
}

type Filter struct {
	Validator *thor.Address
	Staker    *thor.Address
	Kinds     []staker.EventKind
	Range     *Range
	Order     Order
	Options   *Options
}
