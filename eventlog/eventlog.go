// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventlog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/holiman/uint256"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/vechain/stakeledger/log"
	"github.com/vechain/stakeledger/staker"
	"github.com/vechain/stakeledger/thor"
)

var logger = log.WithContext("pkg", "eventlog")

// EventLog is a queryable sqlite store of ledger facts.
type EventLog struct {
	path          string
	db            *sql.DB
	driverVersion string
}

// New create or open event log at given path.
func New(path string) (eventLog *EventLog, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if eventLog == nil {
			db.Close()
		}
	}()
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(eventTableSchema); err != nil {
		return nil, errors.Wrap(err, "create schema")
	}

	driverVer, _, _ := sqlite3.Version()
	return &EventLog{
		path,
		db,
		driverVer,
	}, nil
}

// NewMem create an event log in ram.
func NewMem() (*EventLog, error) {
	return New(":memory:")
}

func (el *EventLog) Close() error {
	return el.db.Close()
}

func (el *EventLog) Path() string {
	return el.path
}

func (el *EventLog) DriverVersion() string {
	return el.driverVersion
}

// Insert stores events in one transaction, in the given order.
func (el *EventLog) Insert(ctx context.Context, events ...*staker.Event) (err error) {
	tx, err := el.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO event(kind, validator, staker, amount, epoch, blockNumber) VALUES(?,?,?,?,?,?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		amount := new(uint256.Int)
		if ev.Amount != nil {
			amount.Set(ev.Amount)
		}
		word := amount.Bytes32()
		if _, err = stmt.ExecContext(ctx,
			uint8(ev.Kind),
			ev.Validator.Bytes(),
			ev.Staker.Bytes(),
			word[:],
			ev.Epoch,
			ev.Block,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (el *EventLog) where(filter *Filter) (string, []any) {
	if filter == nil {
		return "", nil
	}
	var args []any
	stmt := " WHERE 1"
	if filter.Validator != nil {
		args = append(args, filter.Validator.Bytes())
		stmt += " AND validator = ?"
	}
	if filter.Staker != nil {
		args = append(args, filter.Staker.Bytes())
		stmt += " AND staker = ?"
	}
	if len(filter.Kinds) > 0 {
		marks := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			marks[i] = "?"
			args = append(args, uint8(k))
		}
		stmt += " AND kind IN (" + strings.Join(marks, ",") + ")"
	}
	if filter.Range != nil {
		args = append(args, filter.Range.From)
		stmt += " AND blockNumber >= ?"
		if filter.Range.To >= filter.Range.From {
			args = append(args, filter.Range.To)
			stmt += " AND blockNumber <= ?"
		}
	}
	return stmt, args
}

// Filter returns the events matching filter, oldest first unless DESC is requested.
func (el *EventLog) Filter(ctx context.Context, filter *Filter) ([]*Event, error) {
	where, args := el.where(filter)
	stmt := "SELECT seq, kind, validator, staker, amount, epoch, blockNumber FROM event" + where
	if filter != nil && filter.Order == DESC {
		stmt += " ORDER BY seq DESC"
	} else {
		stmt += " ORDER BY seq ASC"
	}
	if filter != nil && filter.Options != nil {
		stmt += " LIMIT ?, ?"
		args = append(args, filter.Options.Offset, filter.Options.Limit)
	}
	return el.queryEvents(ctx, stmt, args...)
}

// Count returns the number of events matching filter. Order and paging are ignored.
func (el *EventLog) Count(ctx context.Context, filter *Filter) (uint64, error) {
	where, args := el.where(filter)
	var n uint64
	if err := el.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM event"+where, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (el *EventLog) queryEvents(ctx context.Context, stmt string, args ...any) ([]*Event, error) {
	rows, err := el.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		var (
			seq         uint64
			kind        uint8
			validator   []byte
			stakerAddr  []byte
			amount      []byte
			epoch       uint64
			blockNumber uint64
		)
		if err := rows.Scan(&seq, &kind, &validator, &stakerAddr, &amount, &epoch, &blockNumber); err != nil {
			return nil, err
		}
		events = append(events, &Event{
			Seq: seq,
			Event: staker.Event{
				Kind:      staker.EventKind(kind),
				Validator: thor.BytesToAddress(validator),
				Staker:    thor.BytesToAddress(stakerAddr),
				Amount:    new(uint256.Int).SetBytes(amount),
				Epoch:     epoch,
				Block:     blockNumber,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
