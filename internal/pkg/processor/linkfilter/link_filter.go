package linkfilter

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
	"go.uber.org/zap"

	"dupebot/internal/pkg/logger"
)

// Skips links that contain any operator configured pattern, e.g. gif hosts
// whose links are meant to be reposted. Matching is case-insensitive and
// uses an Aho-Corasick automaton so the cost does not grow with the list.
type LinkFilter struct {
	matcher  *ahocorasick.Matcher
	patterns []string
}

// Creates a filter for the given patterns. Blank patterns are dropped; an
// empty list produces a filter that matches nothing.
func NewLinkFilter(patterns []string) *LinkFilter {
	var cleaned []string
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			cleaned = append(cleaned, p)
		}
	}

	filter := &LinkFilter{patterns: cleaned}
	if len(cleaned) > 0 {
		filter.matcher = ahocorasick.NewStringMatcher(cleaned)
	}

	logger.Log.Info("Initializing link filter", zap.Int("pattern_count", len(cleaned)))
	return filter
}

// Reports whether the link should be left out of duplicate checking, and
// which pattern caused it.
func (f *LinkFilter) Ignored(link string) (bool, string) {
	if f == nil || f.matcher == nil || link == "" {
		return false, ""
	}

	hits := f.matcher.MatchThreadSafe([]byte(strings.ToLower(link)))

	if len(hits) == 0 {
		return false, ""
	}
	return true, f.patterns[hits[0]]
}

// Number of active patterns.
func (f *LinkFilter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.patterns)
}
