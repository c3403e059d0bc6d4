package signature

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/mozilla/spikes/internal/spikes/series"
)

// ErrBadPattern is returned when a skiplist entry is not a valid regex.
var ErrBadPattern = errors.New("invalid skiplist pattern")

// CommonChannel holds the patterns applied to every channel.
const CommonChannel = "common"

// Skiplist holds, per channel, the signature patterns to ignore. A pattern
// matches at the start of a signature.
type Skiplist struct {
	byChannel map[string][]*regexp.Regexp
}

// CompileSkiplist compiles channel -> patterns.
func CompileSkiplist(patterns map[string][]string) (*Skiplist, error) {
	s := &Skiplist{byChannel: make(map[string][]*regexp.Regexp, len(patterns))}
	for channel, pats := range patterns {
		for _, p := range pats {
			re, err := regexp.Compile(`^(?:` + p + `)`)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %q: %v", ErrBadPattern, channel, p, err)
			}
			s.byChannel[channel] = append(s.byChannel[channel], re)
		}
	}
	return s, nil
}

// Match reports whether key is skipped on channel.
func (s *Skiplist) Match(channel, key string) bool {
	if s == nil {
		return false
	}
	for _, name := range []string{channel, CommonChannel} {
		for _, re := range s.byChannel[name] {
			if re.MatchString(key) {
				return true
			}
		}
	}
	return false
}

// Filter returns the part of c that is not skipped on channel, and the
// skipped keys.
func (s *Skiplist) Filter(channel string, c series.Cohort) (series.Cohort, []string) {
	out := make(series.Cohort, len(c))
	var skipped []string
	for _, k := range c.Keys() {
		if s.Match(channel, k) {
			skipped = append(skipped, k)
			continue
		}
		out[k] = c[k]
	}
	return out, skipped
}
