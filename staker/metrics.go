// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staker

import (
	"fmt"
	"math"
	"time"

	"github.com/vechain/stakeledger/metrics"
	"github.com/vechain/stakeledger/staker/reverts"
)

var (
	metricOperationCount    = metrics.LazyLoadCounterVec("operation_count", []string{"op", "result"})
	metricOperationDuration = metrics.LazyLoadHistogram("operation_duration_us", metrics.BucketMicros)
	metricActiveValidators  = metrics.LazyLoadGauge("active_validators")
	metricTotalStakedUnits  = metrics.LazyLoadGauge("total_staked_units")
	metricEpoch             = metrics.LazyLoadGauge("epoch")
	metricCacheHits         = metrics.LazyLoadGauge("cache_hits")
	metricCacheMisses       = metrics.LazyLoadGauge("cache_misses")
)

func observe(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case reverts.IsRevertErr(err):
		result = "rejected"
	case err != nil:
		result = "error"
	}
	metricOperationCount().AddWithLabel(1, map[string]string{"op": op, "result": result})
	metricOperationDuration().Observe(time.Since(start).Microseconds())
}

func (s *Staker) updateGauges() {
	metricActiveValidators().Set(int64(len(s.ranker.ActiveSet())))
	metricEpoch().Set(int64(s.epochs.Current()))

	if changed, hit, miss := s.sctx.CacheStats(); changed {
		logCacheStats(hit, miss)
		metricCacheHits().Set(hit)
		metricCacheMisses().Set(miss)
	}

	total, err := s.globalStatsService.TotalStaked()
	if err != nil {
		logger.Debug("failed to read total staked for metrics", "error", err)
		return
	}
	units := s.policy.Units(total)
	if units.IsUint64() && units.Uint64() <= math.MaxInt64 {
		metricTotalStakedUnits().Set(int64(units.Uint64()))
	} else {
		metricTotalStakedUnits().Set(math.MaxInt64)
	}
}

func logCacheStats(hit, miss int64) {
	lookups := hit + miss
	var str string
	if lookups > 0 {
		str = fmt.Sprintf("%.3f", float64(hit)/float64(lookups))
	} else {
		str = "n/a"
	}
	logger.Debug("storage cache stats", "lookups", lookups, "hitrate", str)
}
