// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"github.com/pkg/errors"

	"github.com/vechain/stakeledger/cache"
	"github.com/vechain/stakeledger/kv"
	"github.com/vechain/stakeledger/stackedmap"
	"github.com/vechain/stakeledger/thor"
)

// Context is the staged view of the ledger keyspace.
// Writes land in a stack of in-memory levels and reach the store only on Commit,
// as a single batch. Reverting a checkpoint discards everything written after it.
type Context struct {
	store kv.Store
	stage *stackedmap.StackedMap[thor.Bytes32, []byte]
	cache *cache.LRU
}

// NewContext creates a context over the store. cacheSize bounds the number of committed
// values kept decoded-ready in memory.
func NewContext(store kv.Store, cacheSize int) (*Context, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	lru, err := cache.NewLRU(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "create storage cache")
	}
	c := &Context{
		store: store,
		cache: lru,
	}
	c.stage = stackedmap.New(c.load)
	return c, nil
}

func (c *Context) load(key thor.Bytes32) ([]byte, bool, error) {
	v, err := c.cache.GetOrLoad(key, func(any) (any, error) {
		raw, err := c.store.Get(key.Bytes())
		if err != nil {
			if c.store.IsNotFound(err) {
				return []byte(nil), nil
			}
			return nil, errors.Wrap(err, "read storage")
		}
		return raw, nil
	})
	if err != nil {
		return nil, false, err
	}
	raw := v.([]byte)
	return raw, len(raw) > 0, nil
}

// Checkpoint opens a new staging level and returns the depth to revert to.
func (c *Context) Checkpoint() int {
	return c.stage.Push()
}

// Revert discards all staged writes above depth.
func (c *Context) Revert(depth int) {
	c.stage.PopTo(depth)
}

// Commit flushes all staged writes to the store in one batch and clears the stage.
// On failure the stage is left untouched so the caller can revert it.
func (c *Context) Commit() error {
	batch := c.store.NewBatch()
	var putErr error
	c.stage.Journal(func(key thor.Bytes32, val []byte) bool {
		putErr = batch.Put(key.Bytes(), val)
		return putErr == nil
	})
	if putErr != nil {
		return errors.Wrap(putErr, "stage batch")
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "commit batch")
	}
	c.stage.Journal(func(key thor.Bytes32, val []byte) bool {
		c.cache.Add(key, val)
		return true
	})
	c.stage.PopTo(0)
	return nil
}

// CacheStats returns the hit/miss counters of committed reads and whether
// the hit rate changed since the last call.
func (c *Context) CacheStats() (changed bool, hit, miss int64) {
	return c.cache.Stats()
}

// Staged returns whether there are uncommitted levels.
func (c *Context) Staged() bool {
	return c.stage.Depth() > 0
}

func (c *Context) get(key thor.Bytes32) ([]byte, error) {
	raw, _, err := c.stage.Get(key)
	return raw, err
}

func (c *Context) put(key thor.Bytes32, raw []byte) {
	if c.stage.Depth() == 0 {
		panic("storage: write outside of checkpoint")
	}
	c.stage.Put(key, raw)
}
