// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staker

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/holiman/uint256"

	"github.com/vechain/stakeledger/thor"
)

type EventKind uint8

const (
	ValidatorAdded EventKind = iota + 1
	Delegated
	Undelegated
)

func (k EventKind) String() string {
	switch k {
	case ValidatorAdded:
		return "ValidatorAdded"
	case Delegated:
		return "Delegated"
	case Undelegated:
		return "Undelegated"
	default:
		return "Unknown"
	}
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(s string) (EventKind, bool) {
	for _, k := range []EventKind{ValidatorAdded, Delegated, Undelegated} {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Event is a fact emitted after a mutation has been committed.
// Staker and Amount are zero for ValidatorAdded; Epoch is set only for Delegated.
type Event struct {
	Kind      EventKind
	Validator thor.Address
	Staker    thor.Address
	Amount    *uint256.Int
	Epoch     uint64
	Block     uint64
}

// SubscribeEvents delivers every committed fact to ch, in application order.
// Delivery happens while the ledger is locked, so subscribers must keep draining ch.
func (s *Staker) SubscribeEvents(ch chan<- *Event) event.Subscription {
	return s.scope.Track(s.feed.Subscribe(ch))
}

func (s *Staker) emit(ev *Event) {
	ev.Block = s.epochs.Block()
	s.feed.Send(ev)
}
