// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// stakerctl maintains a stake-weighted validator ledger on local disk.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/stakeledger/metrics"
)

var (
	version       string
	gitCommit     string
	gitTag        string
	copyrightYear string

	flags = []cli.Flag{
		dataDirFlag,
		configFlag,
		unitFlag,
		maxValidatorsFlag,
		epochLengthFlag,
		cacheSizeFlag,
		verbosityFlag,
		enableMetricsFlag,
		metricsAddrFlag,
	}

	closeMetrics = func() {}
)

func before(ctx *cli.Context) error {
	initLogger(ctx)

	if ctx.GlobalBool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
		url, closeFunc, err := startMetricsServer(ctx.GlobalString(metricsAddrFlag.Name))
		if err != nil {
			return errors.Wrap(err, "unable to start metrics server")
		}
		logger.Info("metrics server started", "url", url)
		closeMetrics = closeFunc
	}
	return nil
}

func after(*cli.Context) error {
	closeMetrics()
	return nil
}

func main() {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	app := cli.App{
		Version:   fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta),
		Name:      "stakerctl",
		Usage:     "Stake-weighted validator ledger",
		Copyright: fmt.Sprintf("2025-%s VeChain Foundation <https://vechain.org/>", copyrightYear),
		Flags:     flags,
		Commands:  commands,
		Before:    before,
		After:     after,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
