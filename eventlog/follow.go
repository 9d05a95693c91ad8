// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventlog

import (
	"context"

	"github.com/ethereum/go-ethereum/event"

	"github.com/vechain/stakeledger/staker"
)

const followBuffer = 256

// Follower stores the events of a ledger into the event log.
type Follower struct {
	el  *EventLog
	ch  chan *staker.Event
	sub event.Subscription
}

// NewFollower subscribes to s immediately, so no event emitted after it returns is missed.
func (el *EventLog) NewFollower(s *staker.Staker) *Follower {
	ch := make(chan *staker.Event, followBuffer)
	return &Follower{
		el:  el,
		ch:  ch,
		sub: s.SubscribeEvents(ch),
	}
}

// Run stores events until ctx is done or the ledger closes. Events already
// queued when ctx ends are stored before it returns.
func (f *Follower) Run(ctx context.Context) error {
	defer f.sub.Unsubscribe()

	logger.Debug("following ledger events", "path", f.el.path)
	for {
		select {
		case ev := <-f.ch:
			if err := f.el.Insert(context.Background(), ev); err != nil {
				return err
			}
		case err := <-f.sub.Err():
			if err != nil {
				return err
			}
			return f.drain()
		case <-ctx.Done():
			return f.drain()
		}
	}
}

func (f *Follower) drain() error {
	var pending []*staker.Event
	for {
		select {
		case ev := <-f.ch:
			pending = append(pending, ev)
		default:
			if len(pending) == 0 {
				return nil
			}
			logger.Debug("stored pending events", "count", len(pending))
			return f.el.Insert(context.Background(), pending...)
		}
	}
}
