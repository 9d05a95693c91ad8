// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package log adapts the go-ethereum slog based logger.
// Loggers created by WithContext resolve the root logger on every call, so package level
// loggers declared at init pick up the handler installed later by SetDefault.
package log

import (
	"io"
	"log/slog"

	ethlog "github.com/ethereum/go-ethereum/log"
)

// Legacy verbosity levels, as accepted by the --verbosity flag.
const (
	LegacyLevelCrit = iota
	LegacyLevelError
	LegacyLevelWarn
	LegacyLevelInfo
	LegacyLevelDebug
	LegacyLevelTrace
)

// Logger is the subset of the go-ethereum logger used across the module.
type Logger interface {
	With(ctx ...any) Logger
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Crit(msg string, ctx ...any)
}

type lazyLogger struct {
	ctx []any
}

func (l *lazyLogger) get() ethlog.Logger {
	return ethlog.Root().With(l.ctx...)
}

func (l *lazyLogger) With(ctx ...any) Logger {
	merged := make([]any, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	return &lazyLogger{ctx: append(merged, ctx...)}
}

func (l *lazyLogger) Trace(msg string, ctx ...any) { l.get().Trace(msg, ctx...) }
func (l *lazyLogger) Debug(msg string, ctx ...any) { l.get().Debug(msg, ctx...) }
func (l *lazyLogger) Info(msg string, ctx ...any)  { l.get().Info(msg, ctx...) }
func (l *lazyLogger) Warn(msg string, ctx ...any)  { l.get().Warn(msg, ctx...) }
func (l *lazyLogger) Error(msg string, ctx ...any) { l.get().Error(msg, ctx...) }
func (l *lazyLogger) Crit(msg string, ctx ...any)  { l.get().Crit(msg, ctx...) }

// WithContext returns a logger carrying the given key/value pairs.
func WithContext(ctx ...any) Logger {
	return &lazyLogger{ctx: ctx}
}

// Root returns the root logger.
func Root() Logger {
	return &lazyLogger{}
}

// SetDefault installs h as the handler of the root logger.
func SetDefault(h slog.Handler) {
	ethlog.SetDefault(ethlog.NewLogger(h))
}

// NewTerminalHandler returns a human readable handler filtering records below lvl.
func NewTerminalHandler(w io.Writer, lvl slog.Level, useColor bool) slog.Handler {
	return ethlog.NewTerminalHandlerWithLevel(w, lvl, useColor)
}

// DiscardHandler returns a no-op handler
func DiscardHandler() slog.Handler {
	return ethlog.DiscardHandler()
}

// FromVerbosity converts a legacy verbosity (0-5) into a slog level.
func FromVerbosity(verbosity int) slog.Level {
	if verbosity > LegacyLevelTrace {
		verbosity = LegacyLevelTrace
	}
	if verbosity < LegacyLevelCrit {
		verbosity = LegacyLevelCrit
	}
	return ethlog.FromLegacyLevel(verbosity)
}

func Debug(msg string, ctx ...any) { Root().Debug(msg, ctx...) }
func Info(msg string, ctx ...any)  { Root().Info(msg, ctx...) }
func Warn(msg string, ctx ...any)  { Root().Warn(msg, ctx...) }
func Error(msg string, ctx ...any) { Root().Error(msg, ctx...) }
