// Package spikes runs the detectors over whole crash-count datasets: one
// series per channel and one cohort of signatures per channel.
package spikes

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mozilla/spikes/internal/spikes/anomaly"
	"github.com/mozilla/spikes/internal/spikes/differ"
	"github.com/mozilla/spikes/internal/spikes/robust"
	"github.com/mozilla/spikes/internal/spikes/series"
	"github.com/mozilla/spikes/internal/spikes/signature"
)

// Analyzer evaluates channels and signature cohorts with one configuration.
// It keeps no per-run state and is safe for concurrent use.
type Analyzer struct {
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics
	detector *anomaly.Detector
	skiplist *signature.Skiplist
	calOpts  anomaly.CalibrationOptions

	outlierMethod robust.Method
	outlierDiffer differ.Func
}

// New validates cfg and builds an Analyzer. Metrics are registered on reg
// when it is non-nil.
func New(cfg Config, logger *zap.Logger, reg prometheus.Registerer) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Validate already parsed these once.
	calMethod, _ := robust.ParseMethod(cfg.Calibration.Method)
	outMethod, _ := robust.ParseMethod(cfg.Outliers.Method)
	fn, _ := differ.ByName(cfg.Outliers.Differ, cfg.Outliers.NDays)
	skiplist, _ := signature.CompileSkiplist(cfg.Skiplist)

	return &Analyzer{
		cfg:     cfg,
		logger:  logger,
		metrics: newMetrics(reg),
		detector: anomaly.NewDetector(cfg.Signatures.Coeff, cfg.Signatures.WinMin, cfg.Signatures.WinMax,
			logger.Named("detector")),
		skiplist: skiplist,
		calOpts: anomaly.CalibrationOptions{
			MaxOutliers: cfg.Calibration.MaxOutliers,
			Alpha:       cfg.Calibration.Alpha,
			Method:      calMethod,
		},
		outlierMethod: outMethod,
		outlierDiffer: fn,
	}, nil
}

// Config returns the configuration the analyzer was built with.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// ChannelSpikes classifies the last point of every channel series.
func (a *Analyzer) ChannelSpikes(ctx context.Context, data map[string][]float64) (map[string]anomaly.Classification, error) {
	start := time.Now()
	defer func() {
		a.metrics.duration.WithLabelValues(kindChannel).Observe(time.Since(start).Seconds())
	}()

	out := make(map[string]anomaly.Classification, len(data))
	for channel, x := range data {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := anomaly.Classify(x, a.cfg.Channels.Coeff, a.cfg.Channels.Window)
		a.metrics.evaluations.WithLabelValues(kindChannel).Inc()
		if c.Verdict != anomaly.VerdictNone {
			a.metrics.detected.WithLabelValues(kindChannel, string(c.Verdict)).Inc()
			a.logger.Info("channel moved out of its normal range",
				zap.String("channel", channel),
				zap.String("verdict", string(c.Verdict)),
				zap.Float64("today", c.Today),
				zap.Float64("center", c.Center),
				zap.Float64("band", c.Band),
			)
		}
		out[channel] = c
	}
	return out, nil
}

// SpikingKeys runs the detector over every key of cohort against a single
// calibration built from that cohort. Spikes are ordered by decreasing
// diff, then today's count, then key.
func (a *Analyzer) SpikingKeys(ctx context.Context, cohort series.Cohort) ([]anomaly.Spike, error) {
	spikes, _, err := a.spikingKeys(ctx, cohort)
	return spikes, err
}

func (a *Analyzer) spikingKeys(ctx context.Context, cohort series.Cohort) ([]anomaly.Spike, string, error) {
	if err := cohort.Validate(); err != nil {
		return nil, "", fmt.Errorf("spiking keys: %w", err)
	}

	start := time.Now()
	cal := anomaly.NewCalibration(cohort, a.calOpts)
	keys := cohort.Keys()

	var (
		mu     sync.Mutex
		spikes []anomaly.Spike
	)
	err := a.fanOut(ctx, keys, func(key string) {
		s, ok := a.detector.Detect(key, cohort[key], cal)
		a.metrics.evaluations.WithLabelValues(kindSignature).Inc()
		if !ok {
			return
		}
		a.metrics.detected.WithLabelValues(kindSignature, string(anomaly.VerdictUp)).Inc()
		mu.Lock()
		spikes = append(spikes, s)
		mu.Unlock()
	})

	a.metrics.calibrations.Add(float64(cal.Len()))
	a.metrics.duration.WithLabelValues(kindSignature).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, cal.RunID, err
	}

	sortSpikes(spikes)
	a.logger.Debug("cohort evaluated",
		zap.String("run_id", cal.RunID),
		zap.Int("keys", len(keys)),
		zap.Int("spikes", len(spikes)),
		zap.Int("windows", cal.Len()),
	)
	return spikes, cal.RunID, nil
}

// fanOut calls fn for every key on at most cfg.Workers goroutines. It stops
// dispatching once ctx is done and then reports ctx.Err().
func (a *Analyzer) fanOut(ctx context.Context, keys []string, fn func(key string)) error {
	sem := make(chan struct{}, a.cfg.Workers)
	var wg sync.WaitGroup

dispatch:
	for _, k := range keys {
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(key)
		}(k)
	}

	wg.Wait()
	return ctx.Err()
}

func sortSpikes(spikes []anomaly.Spike) {
	sort.Slice(spikes, func(i, j int) bool {
		si, sj := spikes[i], spikes[j]
		if si.Diff != sj.Diff {
			return si.Diff > sj.Diff
		}
		li, lj := si.Numbers[len(si.Numbers)-1], sj.Numbers[len(sj.Numbers)-1]
		if li != lj {
			return li > lj
		}
		return si.Key > sj.Key
	})
}
