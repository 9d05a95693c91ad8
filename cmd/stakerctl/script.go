// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"io"
	"os"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vechain/stakeledger/staker"
	"github.com/vechain/stakeledger/staker/reverts"
	"github.com/vechain/stakeledger/thor"
)

const (
	opAddValidator = "add-validator"
	opDelegate     = "delegate"
	opUndelegate   = "undelegate"
	opAdvance      = "advance"
)

// Op is one ledger operation of a replay script.
// Every op other than advance runs one block after the previous op unless Block pins it.
type Op struct {
	Op        string `yaml:"op"`
	Validator string `yaml:"validator"`
	Staker    string `yaml:"staker"`
	// Amount in base units. Units is a shorthand for whole stake units.
	Amount string  `yaml:"amount"`
	Units  *uint64 `yaml:"units"`
	Block  uint64  `yaml:"block"`
	// Expect is the rejection message the op must fail with.
	Expect string `yaml:"expect"`
}

type Script struct {
	Ops []Op `yaml:"ops"`
}

func loadScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open script")
	}
	defer f.Close()
	return decodeScript(f)
}

func decodeScript(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var script Script
	if err := dec.Decode(&script); err != nil {
		return nil, errors.Wrap(err, "parse script")
	}
	return &script, nil
}

func (op *Op) amount(unit *uint256.Int) (*uint256.Int, error) {
	switch {
	case op.Units != nil && op.Amount != "":
		return nil, errors.New("amount and units are exclusive")
	case op.Units != nil:
		return staker.FromUnits(*op.Units, unit)
	case op.Amount != "":
		return parseAmount(op.Amount)
	default:
		return new(uint256.Int), nil
	}
}

func (op *Op) apply(s *staker.Staker) error {
	if op.Op == opAdvance {
		if op.Block == 0 {
			return errors.New("advance needs a block")
		}
		return s.AdvanceBlock(op.Block)
	}

	block := op.Block
	if block == 0 {
		block = s.Block() + 1
	}
	if err := s.AdvanceBlock(block); err != nil {
		return err
	}

	validator, err := parseAddress(op.Validator)
	if err != nil {
		return err
	}
	if op.Op == opAddValidator {
		return s.AddValidator(validator)
	}

	var delegator thor.Address
	if delegator, err = parseAddress(op.Staker); err != nil {
		return err
	}
	amount, err := op.amount(s.Config().Unit)
	if err != nil {
		return err
	}
	switch op.Op {
	case opDelegate:
		_, err = s.Delegate(validator, delegator, amount)
	case opUndelegate:
		_, err = s.Undelegate(validator, delegator, amount)
	default:
		return errors.Errorf("unknown op %q", op.Op)
	}
	return err
}

// Apply replays the script against s. A rejection is accepted only when the op expects that exact message.
// progress, if not nil, is called after every op.
func (sc *Script) Apply(ctx context.Context, s *staker.Staker, progress func()) (rejected int, err error) {
	for i := range sc.Ops {
		if err := ctx.Err(); err != nil {
			return rejected, err
		}
		op := &sc.Ops[i]
		err := op.apply(s)
		switch {
		case err == nil && op.Expect != "":
			return rejected, errors.Errorf("op #%d (%s): expected rejection %q", i, op.Op, op.Expect)
		case err != nil && reverts.IsRevertErr(err) && err.Error() == op.Expect:
			rejected++
		case err != nil:
			return rejected, errors.Wrapf(err, "op #%d (%s)", i, op.Op)
		}
		if progress != nil {
			progress()
		}
	}
	return rejected, nil
}
