package classify

import (
	"regexp"
	"strings"
)

// containsAny reports whether text matches any keyword. Phrases use plain
// substring search; short tokens (<=3 runes, e.g. "fda", "ai") require a
// word-boundary match so "ai" never matches "said"; longer single words fall
// back to substring search.
func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}

		if strings.Contains(k, " ") {
			if strings.Contains(text, k) {
				return true
			}
			continue
		}

		if len(k) <= 3 {
			re := wordBoundaryPattern(k)
			if re.MatchString(text) {
				return true
			}
			continue
		}

		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

var (
	patternCache = map[string]*regexp.Regexp{}
)

func wordBoundaryPattern(token string) *regexp.Regexp {
	if re, ok := patternCache[token]; ok {
		return re
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(token) + `\b`)
	patternCache[token] = re
	return re
}

// matchesDomain reports whether the item domain equals one of the rule
// domains or is a subdomain of one.
func matchesDomain(domain string, domains []string) bool {
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}
