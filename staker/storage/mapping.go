// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/vechain/stakeledger/thor"
)

type Key interface {
	Bytes() []byte
}

// Mapping is a typed key/value view over a slot of the ledger keyspace.
// Values are RLP encoded; an absent key decodes to the zero value of V.
type Mapping[K Key, V any] struct {
	context *Context
	basePos thor.Bytes32
}

func NewMapping[K Key, V any](context *Context, pos thor.Bytes32) *Mapping[K, V] {
	return &Mapping[K, V]{context: context, basePos: pos}
}

func (m *Mapping[K, V]) position(key K) thor.Bytes32 {
	return thor.Blake2b(key.Bytes(), m.basePos.Bytes())
}

func (m *Mapping[K, V]) Get(key K) (value V, err error) {
	raw, err := m.context.get(m.position(key))
	if err != nil {
		return value, err
	}
	if len(raw) == 0 {
		return value, nil
	}
	if err := rlp.DecodeBytes(raw, &value); err != nil {
		return value, errors.Wrap(err, "decode value")
	}
	return value, nil
}

func (m *Mapping[K, V]) Set(key K, value V) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return errors.Wrap(err, "encode value")
	}
	m.context.put(m.position(key), raw)
	return nil
}

// Raw is a single typed value stored at a fixed slot.
type Raw[V any] struct {
	context *Context
	pos     thor.Bytes32
}

func NewRaw[V any](context *Context, pos thor.Bytes32) *Raw[V] {
	return &Raw[V]{context: context, pos: pos}
}

func (r *Raw[V]) Get() (value V, err error) {
	raw, err := r.context.get(r.pos)
	if err != nil {
		return value, err
	}
	if len(raw) == 0 {
		return value, nil
	}
	if err := rlp.DecodeBytes(raw, &value); err != nil {
		return value, errors.Wrap(err, "decode value")
	}
	return value, nil
}

func (r *Raw[V]) Set(value V) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return errors.Wrap(err, "encode value")
	}
	r.context.put(r.pos, raw)
	return nil
}

// NameToSlot derives a storage slot from a readable name.
func NameToSlot(name string) thor.Bytes32 {
	return thor.BytesToBytes32([]byte(name))
}

// IndexKey converts a sequence number into a mapping key.
func IndexKey(i uint64) thor.Bytes32 {
	var b [8]byte
	for j := 7; j >= 0; j-- {
		b[j] = byte(i)
		i >>= 8
	}
	return thor.BytesToBytes32(b[:])
}
