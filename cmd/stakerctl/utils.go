// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/holiman/uint256"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"github.com/vechain/stakeledger/eventlog"
	"github.com/vechain/stakeledger/log"
	"github.com/vechain/stakeledger/lvldb"
	"github.com/vechain/stakeledger/staker"
	"github.com/vechain/stakeledger/staker/validation"
	"github.com/vechain/stakeledger/thor"
)

var logger = log.WithContext("pkg", "stakerctl")

func initLogger(ctx *cli.Context) {
	lvl := log.FromVerbosity(ctx.GlobalInt(verbosityFlag.Name))
	log.SetDefault(log.NewTerminalHandler(os.Stderr, lvl, isatty.IsTerminal(os.Stderr.Fd())))
}

// fileConfig is the YAML form of staker.Config. Flags set on the command line take precedence.
type fileConfig struct {
	Unit          string `yaml:"unit"`
	MaxValidators int    `yaml:"max-validators"`
	EpochLength   uint64 `yaml:"epoch-length"`
	CacheSize     int    `yaml:"cache-size"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return &fc, nil
}

func makeConfig(ctx *cli.Context) (staker.Config, error) {
	cfg := staker.DefaultConfig()

	if path := ctx.GlobalString(configFlag.Name); path != "" {
		fc, err := loadFileConfig(path)
		if err != nil {
			return cfg, err
		}
		if fc.Unit != "" {
			unit, err := parseAmount(fc.Unit)
			if err != nil {
				return cfg, errors.Wrap(err, "config unit")
			}
			cfg.Unit = unit
		}
		if fc.MaxValidators != 0 {
			cfg.MaxValidators = fc.MaxValidators
		}
		if fc.EpochLength != 0 {
			cfg.EpochLength = fc.EpochLength
		}
		if fc.CacheSize != 0 {
			cfg.CacheSize = fc.CacheSize
		}
	}

	if ctx.GlobalIsSet(unitFlag.Name) {
		unit, err := parseAmount(ctx.GlobalString(unitFlag.Name))
		if err != nil {
			return cfg, errors.Wrap(err, "unit flag")
		}
		cfg.Unit = unit
	}
	if ctx.GlobalIsSet(maxValidatorsFlag.Name) {
		cfg.MaxValidators = ctx.GlobalInt(maxValidatorsFlag.Name)
	}
	if ctx.GlobalIsSet(epochLengthFlag.Name) {
		cfg.EpochLength = ctx.GlobalUint64(epochLengthFlag.Name)
	}
	if ctx.GlobalIsSet(cacheSizeFlag.Name) {
		cfg.CacheSize = ctx.GlobalInt(cacheSizeFlag.Name)
	}
	return cfg, cfg.Validate()
}

func makeDataDir(ctx *cli.Context) (string, error) {
	dataDir := ctx.GlobalString(dataDirFlag.Name)
	if dataDir == "" {
		return "", fmt.Errorf("unable to infer default data dir, use -%s to specify", dataDirFlag.Name)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return "", errors.Wrapf(err, "create data dir [%v]", dataDir)
	}
	return dataDir, nil
}

// ledger bundles the open databases of one data dir.
type ledger struct {
	db     *lvldb.LevelDB
	staker *staker.Staker
	events *eventlog.EventLog
}

func (l *ledger) Close() {
	if l.staker != nil {
		l.staker.Close()
	}
	if l.events != nil {
		if err := l.events.Close(); err != nil {
			logger.Warn("failed to close event log", "error", err)
		}
	}
	if l.db != nil {
		if err := l.db.Close(); err != nil {
			logger.Warn("failed to close ledger db", "error", err)
		}
	}
}

func openLedgerDB(dataDir string) (*lvldb.LevelDB, error) {
	path := filepath.Join(dataDir, "ledger")
	db, err := lvldb.New(path, lvldb.Options{
		CacheSize:              128,
		OpenFilesCacheCapacity: 64,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open ledger database [%v]", path)
	}
	return db, nil
}

func openEventLog(dataDir string) (*eventlog.EventLog, error) {
	path := filepath.Join(dataDir, "events.db")
	el, err := eventlog.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open event log [%v]", path)
	}
	return el, nil
}

// openLedger opens the staker ledger and its event log under the configured data dir.
func openLedger(ctx *cli.Context) (*ledger, error) {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return nil, err
	}
	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return nil, err
	}

	l := &ledger{}
	if l.db, err = openLedgerDB(dataDir); err != nil {
		return nil, err
	}
	if l.staker, err = staker.Open(l.db, cfg); err != nil {
		l.Close()
		return nil, err
	}
	if l.events, err = openEventLog(dataDir); err != nil {
		l.Close()
		return nil, err
	}
	logger.Debug("ledger opened", "dir", dataDir, "block", l.staker.Block(), "sqlite", l.events.DriverVersion())
	return l, nil
}

func parseAddress(s string) (thor.Address, error) {
	addr, err := thor.ParseAddress(s)
	if err != nil {
		return thor.Address{}, errors.Wrapf(err, "invalid address %q", s)
	}
	return *addr, nil
}

// parseAmount accepts a decimal or 0x-prefixed hex amount in base units.
func parseAmount(s string) (*uint256.Int, error) {
	if len(s) > 1 && (s[:2] == "0x" || s[:2] == "0X") {
		return uint256.FromHex(s)
	}
	return uint256.FromDecimal(s)
}

func formatAmount(amount, unit *uint256.Int) string {
	if amount == nil {
		return "0"
	}
	whole, rest := staker.ToUnits(amount, unit)
	if rest.IsZero() {
		return fmt.Sprintf("%s (%s units)", amount.Dec(), whole.Dec())
	}
	return fmt.Sprintf("%s (%s units + %s)", amount.Dec(), whole.Dec(), rest.Dec())
}

func statusString(status validation.Status) string {
	switch status {
	case validation.StatusActive:
		return "active"
	case validation.StatusInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)
		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}

// copy from go-ethereum
func defaultDataDir() string {
	if home := homeDir(); home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "org.vechain.stakeledger")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "org.vechain.stakeledger")
		}
		return filepath.Join(home, ".org.vechain.stakeledger")
	}
	return ""
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}
