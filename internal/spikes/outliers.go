package spikes

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mozilla/spikes/internal/spikes/anomaly"
	"github.com/mozilla/spikes/internal/spikes/differ"
	"github.com/mozilla/spikes/internal/spikes/esd"
	"github.com/mozilla/spikes/internal/spikes/series"
)

// OutlierResult lists the keys whose latest change stands out from the
// rest of the cohort. Infinite holds the keys that rose from zero; they are
// kept out of the test.
type OutlierResult struct {
	Outliers []string `json:"outliers"`
	Infinite []string `json:"infinite"`
}

// Outliers screens cohort with the configured differ.
func (a *Analyzer) Outliers(cohort series.Cohort) OutlierResult {
	return a.OutliersWith(cohort, a.outlierDiffer)
}

// OutliersWith computes fn for every key and runs the generalized ESD test
// over the finite deltas in key order. Keys without a delta are ignored.
// Outliers are listed in the order the test flagged them.
func (a *Analyzer) OutliersWith(cohort series.Cohort, fn differ.Func) OutlierResult {
	start := time.Now()
	defer func() {
		a.metrics.duration.WithLabelValues(kindOutlier).Observe(time.Since(start).Seconds())
	}()

	var (
		res    OutlierResult
		keys   []string
		deltas []float64
	)
	for _, k := range cohort.Keys() {
		d, ok := fn(cohort[k])
		a.metrics.evaluations.WithLabelValues(kindOutlier).Inc()
		switch {
		case !ok:
		case math.IsInf(d, 0):
			res.Infinite = append(res.Infinite, k)
		default:
			keys = append(keys, k)
			deltas = append(deltas, d)
		}
	}

	for _, i := range esd.Test(deltas, a.cfg.Outliers.Max, a.cfg.Outliers.Alpha, a.outlierMethod) {
		res.Outliers = append(res.Outliers, keys[i])
		direction := anomaly.VerdictUp
		if deltas[i] < 0 {
			direction = anomaly.VerdictDown
		}
		a.metrics.detected.WithLabelValues(kindOutlier, string(direction)).Inc()
	}

	a.logger.Debug("outliers screened",
		zap.Int("keys", len(cohort)),
		zap.Int("outliers", len(res.Outliers)),
		zap.Int("infinite", len(res.Infinite)),
	)
	return res
}
