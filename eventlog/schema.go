// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventlog

// amounts are stored as 32-byte big-endian blobs so they compare bytewise
const eventTableSchema = `
create table if not exists event (
	seq integer primary key autoincrement,
	kind integer not null,
	validator blob(20) not null,
	staker blob(20) not null,
	amount blob(32) not null,
	epoch integer not null,
	blockNumber integer not null
);

CREATE INDEX if not exists eventValidatorIndex on event(validator);
CREATE INDEX if not exists eventStakerIndex on event(staker);
CREATE INDEX if not exists eventBlockIndex on event(blockNumber);
`
