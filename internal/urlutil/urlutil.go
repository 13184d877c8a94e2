package urlutil

import (
	"net/url"
	"strings"

	"github.com/me2resh/me2resh-daily/internal/logger"
)

// Tracking query parameters stripped during canonicalization. Matching is
// exact except for the utm_ prefix, which covers the whole utm_* family.
var trackingParams = map[string]bool{
	"fbclid":      true,
	"gclid":       true,
	"dclid":       true,
	"msclkid":     true,
	"igshid":      true,
	"mc_cid":      true,
	"mc_eid":      true,
	"ref":         true,
	"ref_src":     true,
	"cmpid":       true,
	"s_cid":       true,
	"sc_campaign": true,
	"sc_channel":  true,
}

// Canonicalize normalizes a URL for deduplication: forces https, drops
// tracking query parameters and trims a single trailing slash from non-root
// paths. Parsing failures are not fatal: the input is returned unchanged so a
// weird-but-working link is never lost at this stage.
func Canonicalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		logger.Warn("urlutil: cannot parse url, keeping as-is", "url", raw)
		return raw
	}

	u.Scheme = "https"

	if u.RawQuery != "" {
		q := u.Query()
		for param := range q {
			if trackingParams[param] || strings.HasPrefix(param, "utm_") {
				q.Del(param)
			}
		}
		u.RawQuery = q.Encode()
	}

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	u.Fragment = ""

	return u.String()
}

// Domain extracts the lowercased hostname without a www. prefix. Returns
// "unknown" when the URL has no usable host.
func Domain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "unknown"
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Allowlist restricts items to a curated set of hostnames. Hostname matching
// is exact and case-sensitive. A disabled allowlist passes everything.
type Allowlist struct {
	enabled bool
	hosts   map[string]bool
}

// NewAllowlist builds an allowlist from explicit hostnames.
func NewAllowlist(enabled bool, hosts []string) *Allowlist {
	set := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		if h = strings.TrimSpace(h); h != "" {
			set[h] = true
		}
	}
	return &Allowlist{enabled: enabled, hosts: set}
}

// Allowed reports whether the URL's hostname is on the allowlist.
func (a *Allowlist) Allowed(rawURL string) bool {
	if a == nil || !a.enabled {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return a.hosts[u.Hostname()]
}
