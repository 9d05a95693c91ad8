// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/stakeledger/log"
	"github.com/vechain/stakeledger/staker"
)

func envVar(name string) string {
	return "STAKER_" + name
}

var (
	dataDirFlag = cli.StringFlag{
		Name:   "data-dir",
		Value:  defaultDataDir(),
		Usage:  "directory for the ledger and event databases",
		EnvVar: envVar("DATA_DIR"),
	}
	configFlag = cli.StringFlag{
		Name:   "config",
		Usage:  "path to a YAML ledger config file",
		EnvVar: envVar("CONFIG"),
	}
	unitFlag = cli.StringFlag{
		Name:   "unit",
		Usage:  "stake unit in base units (default 1e18)",
		EnvVar: envVar("UNIT"),
	}
	maxValidatorsFlag = cli.IntFlag{
		Name:   "max-validators",
		Value:  staker.DefaultMaxValidators,
		Usage:  "capacity of the active validator set",
		EnvVar: envVar("MAX_VALIDATORS"),
	}
	epochLengthFlag = cli.Uint64Flag{
		Name:   "epoch-length",
		Value:  staker.DefaultEpochLength,
		Usage:  "blocks per epoch",
		EnvVar: envVar("EPOCH_LENGTH"),
	}
	cacheSizeFlag = cli.IntFlag{
		Name:   "cache-size",
		Value:  staker.DefaultCacheSize,
		Usage:  "number of ledger records cached in memory",
		EnvVar: envVar("CACHE_SIZE"),
	}
	verbosityFlag = cli.IntFlag{
		Name:   "verbosity",
		Value:  log.LegacyLevelWarn,
		Usage:  "log verbosity (0-5)",
		EnvVar: envVar("VERBOSITY"),
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:   "enable-metrics",
		Usage:  "enables metrics collection",
		EnvVar: envVar("ENABLE_METRICS"),
	}
	metricsAddrFlag = cli.StringFlag{
		Name:   "metrics-addr",
		Value:  "localhost:2112",
		Usage:  "metrics service listening address",
		EnvVar: envVar("METRICS_ADDR"),
	}

	// command flags
	noProgressFlag = cli.BoolFlag{
		Name:  "no-progress",
		Usage: "do not print a progress bar",
	}
	validatorFlag = cli.StringFlag{
		Name:  "validator",
		Usage: "filter by validator address",
	}
	stakerFlag = cli.StringFlag{
		Name:  "staker",
		Usage: "filter by staker address",
	}
	kindFlag = cli.StringSliceFlag{
		Name:  "kind",
		Usage: "filter by event kind (ValidatorAdded|Delegated|Undelegated), repeatable",
	}
	fromBlockFlag = cli.Uint64Flag{
		Name:  "from",
		Usage: "first block of the range",
	}
	toBlockFlag = cli.Uint64Flag{
		Name:  "to",
		Usage: "last block of the range",
	}
	descFlag = cli.BoolFlag{
		Name:  "desc",
		Usage: "newest events first",
	}
	limitFlag = cli.Uint64Flag{
		Name:  "limit",
		Value: 100,
		Usage: "maximum number of events to print",
	}
	offsetFlag = cli.Uint64Flag{
		Name:  "offset",
		Usage: "number of events to skip",
	}
	allFlag = cli.BoolFlag{
		Name:  "all",
		Usage: "list all registered validators, not only the active set",
	}
)
