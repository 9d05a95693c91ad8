// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ranking maintains the stake-ordered active validator set.
//
// Every validator with a positive total is kept in a B-tree ordered by total
// descending, then registration sequence ascending. The active set is the first
// K entries of the tree, so a validator pushed out of it re-enters as soon as
// its stake ranks it high enough again.
package ranking

import (
	"bytes"

	"github.com/google/btree"
	"github.com/holiman/uint256"

	"github.com/vechain/stakeledger/thor"
)

const defaultTreeDegree = 2

var _ btree.LessFunc[*Entry] = (*Entry).Less

// Entry is a ranked validator.
type Entry struct {
	ID    thor.Address
	Seq   uint64
	Total *uint256.Int
}

// Less orders entries by total descending, then by registration sequence ascending.
func (e *Entry) Less(than *Entry) bool {
	if c := e.Total.Cmp(than.Total); c != 0 {
		return c > 0
	}
	if e.Seq != than.Seq {
		return e.Seq < than.Seq
	}
	return bytes.Compare(e.ID[:], than.ID[:]) < 0
}

// Ranker is not safe for concurrent mutation; callers serialize updates.
type Ranker struct {
	capacity int
	tree     *btree.BTreeG[*Entry]
	index    map[thor.Address]*Entry

	active  []*Entry
	members map[thor.Address]int
}

// New creates a ranker whose active set holds at most capacity validators.
// A capacity below 1 is raised to 1.
func New(capacity int) *Ranker {
	if capacity < 1 {
		capacity = 1
	}
	return &Ranker{
		capacity: capacity,
		tree:     btree.NewG(defaultTreeDegree, (*Entry).Less),
		index:    make(map[thor.Address]*Entry),
		members:  make(map[thor.Address]int),
	}
}

// Update repositions id according to its new total. A zero total removes it.
func (r *Ranker) Update(id thor.Address, seq uint64, total *uint256.Int) {
	_, wasActive := r.members[id]

	if old, ok := r.index[id]; ok {
		r.tree.Delete(old)
		delete(r.index, id)
	}

	var entry *Entry
	if total != nil && !total.IsZero() {
		entry = &Entry{ID: id, Seq: seq, Total: new(uint256.Int).Set(total)}
		r.tree.ReplaceOrInsert(entry)
		r.index[id] = entry
	}

	if wasActive || r.entersActive(entry) {
		r.rebuild()
	}
}

// entersActive reports whether a newly placed entry belongs in the current top K.
func (r *Ranker) entersActive(entry *Entry) bool {
	if entry == nil {
		return false
	}
	if len(r.active) < r.capacity {
		return true
	}
	return entry.Less(r.active[len(r.active)-1])
}

func (r *Ranker) rebuild() {
	r.active = r.active[:0]
	clear(r.members)
	r.tree.Ascend(func(e *Entry) bool {
		r.members[e.ID] = len(r.active)
		r.active = append(r.active, e)
		return len(r.active) < r.capacity
	})
}

// ActiveSet returns the active validators, highest stake first.
func (r *Ranker) ActiveSet() []thor.Address {
	ids := make([]thor.Address, len(r.active))
	for i, e := range r.active {
		ids[i] = e.ID
	}
	return ids
}

func (r *Ranker) Contains(id thor.Address) bool {
	_, ok := r.members[id]
	return ok
}

// Position returns the zero-based position of id in the active set.
func (r *Ranker) Position(id thor.Address) (int, bool) {
	pos, ok := r.members[id]
	return pos, ok
}

// Len returns the number of ranked validators, including those outside the active set.
func (r *Ranker) Len() int {
	return r.tree.Len()
}

func (r *Ranker) Capacity() int {
	return r.capacity
}

// Ascend visits all ranked validators in rank order until fn returns false.
func (r *Ranker) Ascend(fn func(e Entry) bool) {
	r.tree.Ascend(func(e *Entry) bool {
		return fn(Entry{ID: e.ID, Seq: e.Seq, Total: new(uint256.Int).Set(e.Total)})
	})
}
