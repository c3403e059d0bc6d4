package spikes

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mozilla/spikes/internal/spikes/anomaly"
	"github.com/mozilla/spikes/internal/spikes/differ"
	"github.com/mozilla/spikes/internal/spikes/series"
	"github.com/mozilla/spikes/internal/spikes/signature"
)

// ChannelSignatures is the signature report of one channel.
type ChannelSignatures struct {
	RunID   string            `json:"run_id"`
	Spikes  []anomaly.Spike   `json:"spikes"`
	Groups  []signature.Group `json:"groups,omitempty"`
	Skipped []string          `json:"skipped,omitempty"`
}

// prepare applies the skiplist, address gathering and the top-n cut to the
// signature cohort of channel. Gathering sums series point by point, so the
// lengths are checked first.
func (a *Analyzer) prepare(channel string, cohort series.Cohort) (series.Cohort, []signature.Group, []string, error) {
	if err := cohort.Validate(); err != nil {
		return nil, nil, nil, err
	}
	kept, skipped := a.skiplist.Filter(channel, cohort)
	var groups []signature.Group
	if a.cfg.Signatures.Gather {
		kept, groups = signature.GatherCohort(kept)
	}
	return kept.Top(a.cfg.Signatures.Top), groups, skipped, nil
}

// Signatures finds the spiking signatures of every channel. Each channel is
// calibrated on its own cohort.
func (a *Analyzer) Signatures(ctx context.Context, cohorts map[string]series.Cohort) (map[string]ChannelSignatures, error) {
	out := make(map[string]ChannelSignatures, len(cohorts))
	for _, channel := range sortedChannels(cohorts) {
		cohort, groups, skipped, err := a.prepare(channel, cohorts[channel])
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", channel, err)
		}
		spikes, runID, err := a.spikingKeys(ctx, cohort)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", channel, err)
		}
		a.logger.Info("signatures evaluated",
			zap.String("channel", channel),
			zap.String("run_id", runID),
			zap.Int("signatures", len(cohort)),
			zap.Int("spikes", len(spikes)),
			zap.Int("groups", len(groups)),
			zap.Int("skipped", len(skipped)),
		)
		out[channel] = ChannelSignatures{
			RunID:   runID,
			Spikes:  spikes,
			Groups:  groups,
			Skipped: skipped,
		}
	}
	return out, nil
}

// Significant is a signature standing out on a spiking channel.
type Significant struct {
	Key     string    `json:"key"`
	Numbers []float64 `json:"numbers"`
	Percent string    `json:"percent"` // today versus yesterday
}

// StartupReport is the result of Startup.
type StartupReport struct {
	Channels    map[string]anomaly.Classification `json:"channels"`
	Significant map[string][]Significant          `json:"significant"`
}

// Startup classifies every channel and, for the channels going up, screens
// their signature cohort for day-over-day outliers. Significant signatures
// are ordered by decreasing count today, then key.
func (a *Analyzer) Startup(ctx context.Context, channels map[string][]float64, signatures map[string]series.Cohort) (StartupReport, error) {
	classified, err := a.ChannelSpikes(ctx, channels)
	if err != nil {
		return StartupReport{}, err
	}

	report := StartupReport{
		Channels:    classified,
		Significant: make(map[string][]Significant),
	}
	for _, channel := range sortedChannels(classified) {
		if classified[channel].Verdict != anomaly.VerdictUp {
			continue
		}
		if err := ctx.Err(); err != nil {
			return StartupReport{}, err
		}
		cohort, ok := signatures[channel]
		if !ok {
			a.logger.Warn("no signatures for spiking channel", zap.String("channel", channel))
			continue
		}
		cohort, _, _, err = a.prepare(channel, cohort)
		if err != nil {
			return StartupReport{}, fmt.Errorf("channel %s: %w", channel, err)
		}

		res := a.OutliersWith(cohort, differ.Diff)
		sig := make([]Significant, 0, len(res.Outliers))
		for _, k := range res.Outliers {
			x := cohort[k]
			sig = append(sig, Significant{
				Key:     k,
				Numbers: x,
				Percent: differ.Percent(x[len(x)-2], x[len(x)-1]),
			})
		}
		sort.Slice(sig, func(i, j int) bool {
			ti, tj := sig[i].Numbers[len(sig[i].Numbers)-1], sig[j].Numbers[len(sig[j].Numbers)-1]
			if ti != tj {
				return ti > tj
			}
			return sig[i].Key > sig[j].Key
		})
		if len(sig) > 0 {
			report.Significant[channel] = sig
		}
	}
	return report, nil
}

func sortedChannels[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
