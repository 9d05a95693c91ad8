// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/stakeledger/eventlog"
	"github.com/vechain/stakeledger/staker"
	"github.com/vechain/stakeledger/thor"
)

var commands = []cli.Command{
	{
		Name:      "apply",
		Usage:     "replay a YAML operation script against the ledger",
		ArgsUsage: "<script.yaml>",
		Flags:     []cli.Flag{noProgressFlag},
		Action:    applyAction,
	},
	{
		Name:   "validators",
		Usage:  "print the active validator set in rank order",
		Flags:  []cli.Flag{allFlag},
		Action: validatorsAction,
	},
	{
		Name:      "status",
		Usage:     "print a validator's total and status",
		ArgsUsage: "<validator>",
		Action:    statusAction,
	},
	{
		Name:      "delegation",
		Usage:     "print the delegations of a validator, or a single staker's delegation",
		ArgsUsage: "<validator> [staker]",
		Action:    delegationAction,
	},
	{
		Name:   "events",
		Usage:  "query the event log",
		Flags:  []cli.Flag{validatorFlag, stakerFlag, kindFlag, fromBlockFlag, toBlockFlag, descFlag, limitFlag, offsetFlag},
		Action: eventsAction,
	},
	{
		Name:   "verify",
		Usage:  "check the ledger's consistency",
		Action: verifyAction,
	},
	{
		Name:      "export",
		Usage:     "write a compressed snapshot of the ledger",
		ArgsUsage: "<file>",
		Action:    exportAction,
	},
	{
		Name:      "import",
		Usage:     "restore a snapshot into an empty data dir",
		ArgsUsage: "<file>",
		Action:    importAction,
	},
}

func applyAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("missing script path")
	}
	script, err := loadScript(ctx.Args().First())
	if err != nil {
		return err
	}

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	var (
		bar      *pb.ProgressBar
		progress func()
	)
	if !ctx.Bool(noProgressFlag.Name) {
		bar = pb.New64(int64(len(script.Ops))).SetMaxWidth(90).Start()
		defer func() { bar.NotPrint = true }()
		progress = func() { bar.Add64(1) }
	}

	follower := l.events.NewFollower(l.staker)
	followCtx, stopFollow := context.WithCancel(context.Background())
	defer stopFollow()

	var rejected int
	g, gctx := errgroup.WithContext(handleExitSignal())
	g.Go(func() error {
		return follower.Run(followCtx)
	})
	g.Go(func() error {
		defer stopFollow()
		var err error
		rejected, err = script.Apply(gctx, l.staker, progress)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if bar != nil {
		bar.Finish()
	}

	logger.Info("script applied",
		"ops", len(script.Ops),
		"rejected", rejected,
		"block", l.staker.Block(),
		"epoch", l.staker.Epoch(),
	)
	return nil
}

func validatorsAction(ctx *cli.Context) error {
	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	unit := l.staker.Config().Unit
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if !ctx.Bool(allFlag.Name) {
		for i, id := range l.staker.Validators() {
			status, err := l.staker.ValidatorStatus(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%d\t%v\t%s\n", i+1, id, formatAmount(status.TotalDelegated, unit))
		}
		return nil
	}
	return l.staker.IterateValidators(func(id thor.Address, status *staker.ValidatorStatus) bool {
		fmt.Fprintf(w, "%v\t%s\t%s\n", id, statusString(status.Status), formatAmount(status.TotalDelegated, unit))
		return true
	})
}

func statusAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("missing validator address")
	}
	id, err := parseAddress(ctx.Args().First())
	if err != nil {
		return err
	}
	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	status, err := l.staker.ValidatorStatus(id)
	if err != nil {
		return err
	}
	fmt.Printf("validator: %v\nstatus:    %s\ntotal:     %s\n",
		id, statusString(status.Status), formatAmount(status.TotalDelegated, l.staker.Config().Unit))
	return nil
}

func delegationAction(ctx *cli.Context) error {
	if ctx.NArg() < 1 || ctx.NArg() > 2 {
		return errors.New("usage: delegation <validator> [staker]")
	}
	validator, err := parseAddress(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	unit := l.staker.Config().Unit
	if ctx.NArg() == 2 {
		delegator, err := parseAddress(ctx.Args().Get(1))
		if err != nil {
			return err
		}
		amount, err := l.staker.ValidatorDelegation(validator, delegator)
		if err != nil {
			return err
		}
		epoch, err := l.staker.DelegationEpoch(validator, delegator)
		if err != nil {
			return err
		}
		fmt.Printf("amount: %s\nepoch:  %d\n", formatAmount(amount, unit), epoch)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	return l.staker.IterateDelegations(validator, func(delegator thor.Address, amount *uint256.Int) bool {
		fmt.Fprintf(w, "%v\t%s\n", delegator, formatAmount(amount, unit))
		return true
	})
}

func makeEventFilter(ctx *cli.Context) (*eventlog.Filter, error) {
	filter := &eventlog.Filter{
		Order: eventlog.ASC,
		Options: &eventlog.Options{
			Offset: ctx.Uint64(offsetFlag.Name),
			Limit:  ctx.Uint64(limitFlag.Name),
		},
	}
	if ctx.Bool(descFlag.Name) {
		filter.Order = eventlog.DESC
	}
	if s := ctx.String(validatorFlag.Name); s != "" {
		addr, err := parseAddress(s)
		if err != nil {
			return nil, err
		}
		filter.Validator = &addr
	}
	if s := ctx.String(stakerFlag.Name); s != "" {
		addr, err := parseAddress(s)
		if err != nil {
			return nil, err
		}
		filter.Staker = &addr
	}
	for _, s := range ctx.StringSlice(kindFlag.Name) {
		kind, ok := staker.ParseEventKind(s)
		if !ok {
			return nil, errors.Errorf("unknown event kind %q", s)
		}
		filter.Kinds = append(filter.Kinds, kind)
	}
	if ctx.IsSet(fromBlockFlag.Name) || ctx.IsSet(toBlockFlag.Name) {
		filter.Range = &eventlog.Range{From: ctx.Uint64(fromBlockFlag.Name), To: ctx.Uint64(toBlockFlag.Name)}
	}
	return filter, nil
}

func eventsAction(ctx *cli.Context) error {
	filter, err := makeEventFilter(ctx)
	if err != nil {
		return err
	}
	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return err
	}
	el, err := openEventLog(dataDir)
	if err != nil {
		return err
	}
	defer el.Close()

	var (
		events []*eventlog.Event
		total  uint64
	)
	g, gctx := errgroup.WithContext(handleExitSignal())
	g.Go(func() (err error) {
		events, err = el.Filter(gctx, filter)
		return
	})
	g.Go(func() (err error) {
		total, err = el.Count(gctx, filter)
		return
	})
	if err := g.Wait(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, ev := range events {
		switch ev.Kind {
		case staker.ValidatorAdded:
			fmt.Fprintf(w, "%d\t#%d\t%v\t%v\n", ev.Seq, ev.Block, ev.Kind, ev.Validator)
		case staker.Delegated:
			fmt.Fprintf(w, "%d\t#%d\t%v\t%v\t%v\t%s\tepoch %d\n", ev.Seq, ev.Block, ev.Kind, ev.Validator, ev.Staker, ev.Amount.Dec(), ev.Epoch)
		default:
			fmt.Fprintf(w, "%d\t#%d\t%v\t%v\t%v\t%s\n", ev.Seq, ev.Block, ev.Kind, ev.Validator, ev.Staker, ev.Amount.Dec())
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d of %d events\n", len(events), total)
	return nil
}

func verifyAction(ctx *cli.Context) error {
	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	if err := l.staker.CheckInvariants(); err != nil {
		return errors.Wrap(err, "ledger is inconsistent")
	}
	total, err := l.staker.TotalStaked()
	if err != nil {
		return err
	}
	staked, err := l.staker.StakedValidators()
	if err != nil {
		return err
	}
	count, err := l.staker.ValidatorCount()
	if err != nil {
		return err
	}
	fmt.Printf("ok: %d validators, %d staked, %d active, total %s\n",
		count, staked, len(l.staker.Validators()), formatAmount(total, l.staker.Config().Unit))
	return nil
}

func exportAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("missing snapshot path")
	}
	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	f, err := os.Create(ctx.Args().First())
	if err != nil {
		return errors.Wrap(err, "create snapshot file")
	}
	if err := l.staker.Export(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func importAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("missing snapshot path")
	}
	f, err := os.Open(ctx.Args().First())
	if err != nil {
		return errors.Wrap(err, "open snapshot file")
	}
	defer f.Close()

	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return err
	}
	db, err := openLedgerDB(dataDir)
	if err != nil {
		return err
	}
	l := &ledger{db: db}
	defer l.Close()

	if l.staker, err = staker.Import(db, f, ctx.GlobalInt(cacheSizeFlag.Name)); err != nil {
		return err
	}
	logger.Info("snapshot imported", "block", l.staker.Block(), "epoch", l.staker.Epoch())
	fmt.Printf("imported: block %d, %d active validators\n", l.staker.Block(), len(l.staker.Validators()))
	return nil
}
