// Package signature groups crash signatures that differ only by the
// addresses embedded in them, and filters signatures through per-channel
// skiplists.
package signature

import (
	"regexp"
	"sort"
	"strings"

	"github.com/mozilla/spikes/internal/spikes/series"
)

// Address matches a hexadecimal address inside a signature.
const Address = `0x[0-9a-fA-F]+`

var addressRe = regexp.MustCompile(Address)

// Pattern returns the grouping pattern of key: every literal part is quoted
// and every address is replaced by the Address regex, which is the form
// crash-stats search accepts. ok is false when key embeds no address.
func Pattern(key string) (pattern string, ok bool) {
	parts := addressRe.Split(key, -1)
	if len(parts) == 1 {
		return "", false
	}
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, Address), true
}

// Group is a set of keys merged under one pattern.
type Group struct {
	Pattern string   `json:"pattern"`
	Keys    []string `json:"keys"`
}

// groups returns the patterns shared by at least two keys, sorted by pattern.
func groups(keys []string) []Group {
	sort.Strings(keys)
	byPattern := make(map[string][]string)
	for _, k := range keys {
		if p, ok := Pattern(k); ok {
			byPattern[p] = append(byPattern[p], k)
		}
	}

	out := make([]Group, 0, len(byPattern))
	for p, ks := range byPattern {
		if len(ks) < 2 {
			continue
		}
		out = append(out, Group{Pattern: p, Keys: ks})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pattern < out[j].Pattern })
	return out
}

// Gather merges, in place, the keys of data that share a pattern: their
// counts are summed day by day under the pattern key and the original keys
// are removed. Keys alone on their pattern are left untouched. Merged keys
// embed no address, so gathering twice changes nothing.
func Gather(data map[string]series.Counts) []Group {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}

	gs := groups(keys)
	for _, g := range gs {
		merged := make(series.Counts)
		for _, k := range g.Keys {
			merged.Add(data[k])
			delete(data, k)
		}
		data[g.Pattern] = merged
	}
	return gs
}

// GatherCohort is Gather for series sharing one date axis. It returns a new
// cohort and leaves c untouched. c must pass series.Cohort.Validate.
func GatherCohort(c series.Cohort) (series.Cohort, []Group) {
	out := make(series.Cohort, len(c))
	for k, x := range c {
		out[k] = x
	}

	gs := groups(c.Keys())
	for _, g := range gs {
		merged := make([]float64, c.Len())
		for _, k := range g.Keys {
			for i, v := range c[k] {
				merged[i] += v
			}
			delete(out, k)
		}
		out[g.Pattern] = merged
	}
	return out, gs
}
