// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakeledger/eventlog"
	"github.com/vechain/stakeledger/lvldb"
	"github.com/vechain/stakeledger/staker"
	"github.com/vechain/stakeledger/thor"
)

var (
	validator1 = thor.MustParseAddress("0x0000000000000000000000000000000000000a01")
	validator2 = thor.MustParseAddress("0x0000000000000000000000000000000000000a02")
	validator4 = thor.MustParseAddress("0x0000000000000000000000000000000000000a04")
	staker1    = thor.MustParseAddress("0x0000000000000000000000000000000000000b01")
)

func newTestStaker(t *testing.T, maxValidators int) *staker.Staker {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := staker.DefaultConfig()
	cfg.MaxValidators = maxValidators
	s, err := staker.Open(db, cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func mustDecode(t *testing.T, src string) *Script {
	script, err := decodeScript(strings.NewReader(src))
	require.NoError(t, err)
	return script
}

func TestApplyUndelegateMoreThanDelegated(t *testing.T) {
	script := mustDecode(t, `
ops:
  - {op: add-validator, validator: "0x0000000000000000000000000000000000000a01"}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", amount: "1000000000000000000"}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", units: 2}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", units: 3}
  - {op: undelegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", units: 5}
  - {op: undelegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", units: 2, expect: "Staking: insufficient balance"}
`)
	s := newTestStaker(t, 21)

	var steps int
	rejected, err := script.Apply(context.Background(), s, func() { steps++ })
	require.NoError(t, err)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, len(script.Ops), steps)
	assert.Equal(t, uint64(len(script.Ops)), s.Block())

	amount, err := s.ValidatorDelegation(validator1, staker1)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", amount.Dec())
	require.NoError(t, s.CheckInvariants())
}

func TestApplyActiveValidatorOrder(t *testing.T) {
	script := mustDecode(t, `
ops:
  - {op: add-validator, validator: "0x0000000000000000000000000000000000000a01"}
  - {op: add-validator, validator: "0x0000000000000000000000000000000000000a02"}
  - {op: add-validator, validator: "0x0000000000000000000000000000000000000a03"}
  - {op: add-validator, validator: "0x0000000000000000000000000000000000000a04"}
  - {op: add-validator, validator: "0x0000000000000000000000000000000000000a05"}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", units: 3}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a02", staker: "0x0000000000000000000000000000000000000b02", units: 2}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a03", staker: "0x0000000000000000000000000000000000000b03", units: 1}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a04", staker: "0x0000000000000000000000000000000000000b03", units: 4}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a09", staker: "0x0000000000000000000000000000000000000b01", units: 3, expect: "Staking: validator not found"}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", amount: "100000000000000000", expect: "Staking: amount too low"}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", amount: "0", expect: "Staking: amount too low"}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", amount: "1100000000000000000", expect: "Staking: amount shouldn't have a remainder"}
`)
	s := newTestStaker(t, 3)

	rejected, err := script.Apply(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, rejected)
	assert.Equal(t, []thor.Address{validator4, validator1, validator2}, s.Validators())
}

func TestApplyEpochs(t *testing.T) {
	script := mustDecode(t, `
ops:
  - {op: add-validator, validator: "0x0000000000000000000000000000000000000a01"}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", units: 1}
  - {op: advance, block: 25}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a02", staker: "0x0000000000000000000000000000000000000b01", units: 1, block: 30, expect: "Staking: validator not found"}
`)
	s := newTestStaker(t, 21)

	_, err := script.Apply(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), s.Block())
	assert.Equal(t, uint64(4), s.Epoch())

	epoch, err := s.DelegationEpoch(validator1, staker1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), epoch)

	// blocks never go backwards
	_, err = mustDecode(t, `ops: [{op: advance, block: 10}]`).Apply(context.Background(), s, nil)
	assert.Error(t, err)
}

func TestApplyFailures(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unexpected success", `ops: [{op: add-validator, validator: "0x0000000000000000000000000000000000000a01", expect: "Staking: validator already exists"}]`},
		{"wrong rejection", `ops: [{op: delegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", units: 1, expect: "Staking: amount too low"}]`},
		{"bad address", `ops: [{op: add-validator, validator: "validator1"}]`},
		{"exclusive amounts", `ops: [{op: delegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", units: 1, amount: "1"}]`},
		{"unknown op", `ops: [{op: slash, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01"}]`},
		{"advance without block", `ops: [{op: advance}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mustDecode(t, tt.src).Apply(context.Background(), newTestStaker(t, 21), nil)
			assert.Error(t, err)
		})
	}

	_, err := decodeScript(strings.NewReader(`ops: [{op: delegate, value: 1}]`))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestApplyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestStaker(t, 21)
	_, err := mustDecode(t, `ops: [{op: add-validator, validator: "0x0000000000000000000000000000000000000a01"}]`).Apply(ctx, s, nil)
	assert.ErrorIs(t, err, context.Canceled)

	count, err := s.ValidatorCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestApplyRecordsEvents(t *testing.T) {
	s := newTestStaker(t, 21)
	el, err := eventlog.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { el.Close() })

	follower := el.NewFollower(s)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- follower.Run(ctx) }()

	script := mustDecode(t, `
ops:
  - {op: add-validator, validator: "0x0000000000000000000000000000000000000a01"}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", units: 2}
  - {op: delegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", amount: "5", expect: "Staking: amount too low"}
  - {op: undelegate, validator: "0x0000000000000000000000000000000000000a01", staker: "0x0000000000000000000000000000000000000b01", units: 1}
`)
	_, err = script.Apply(context.Background(), s, nil)
	require.NoError(t, err)
	cancel()
	require.NoError(t, <-done)

	events, err := el.Filter(context.Background(), &eventlog.Filter{Order: eventlog.ASC})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, staker.ValidatorAdded, events[0].Kind)
	assert.Equal(t, staker.Delegated, events[1].Kind)
	assert.Equal(t, uint64(2), events[1].Block)
	assert.Equal(t, staker.Undelegated, events[2].Kind)
	assert.Equal(t, uint64(4), events[2].Block)
}
