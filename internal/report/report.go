package report

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/me2resh/me2resh-daily/internal/classify"
	"github.com/me2resh/me2resh-daily/internal/feed"
)

// ScanResult is the versioned output of one run. Every section key from the
// fixed taxonomy is always present, defaulting to an empty sequence, so
// downstream consumers never branch on missing keys. RawFeed carries the full
// deduplicated candidate pool that fed classification.
type ScanResult struct {
	Version   int                          `json:"version"`
	Date      string                       `json:"date"`
	Timezone  string                       `json:"timezone"`
	Sections  map[string][]classify.Scored `json:"sections"`
	Alerts    []SecurityAlert              `json:"security_alerts"`
	RawFeed   []feed.Item                  `json:"raw_feed"`
	Generated time.Time                    `json:"generated_at"`
}

const resultVersion = 2

// SecurityAlert is the shaped record for the security section, with CVE and
// CVSS fields pulled out of the item text when present.
type SecurityAlert struct {
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	CVE      string  `json:"cve,omitempty"`
	CVSS     float64 `json:"cvss,omitempty"`
	Severity string  `json:"severity"`
}

var (
	cvePattern  = regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,}\b`)
	cvssPattern = regexp.MustCompile(`(?i)\bCVSS[ :]*v?\d?[ :]*([0-9]{1,2}(?:\.[0-9])?)\b`)
)

// Assemble stitches the balanced sections and the candidate inventory into
// one stamped report. Pure structural composition: missing taxonomy keys are
// defaulted, nothing is reordered.
func Assemble(date time.Time, tz *time.Location, sections map[string][]classify.Scored, rawFeed []feed.Item) ScanResult {
	complete := make(map[string][]classify.Scored, len(classify.Sections()))
	for _, name := range classify.Sections() {
		if items, ok := sections[name]; ok && items != nil {
			complete[name] = items
		} else {
			complete[name] = []classify.Scored{}
		}
	}

	return ScanResult{
		Version:   resultVersion,
		Date:      date.In(tz).Format("2006-01-02"),
		Timezone:  tz.String(),
		Sections:  complete,
		Alerts:    shapeAlerts(complete[classify.SectionSecurity]),
		RawFeed:   rawFeed,
		Generated: time.Now().UTC(),
	}
}

// shapeAlerts derives SecurityAlert records from the security section.
func shapeAlerts(items []classify.Scored) []SecurityAlert {
	alerts := make([]SecurityAlert, 0, len(items))
	for _, item := range items {
		text := item.Title + " " + item.Summary
		alert := SecurityAlert{
			Title:    item.Title,
			URL:      item.SourceURL,
			Severity: string(item.Severity),
		}
		if m := cvePattern.FindString(text); m != "" {
			alert.CVE = strings.ToUpper(m)
		}
		if m := cvssPattern.FindStringSubmatch(text); len(m) == 2 {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil && v <= 10 {
				alert.CVSS = v
			}
		}
		alerts = append(alerts, alert)
	}
	return alerts
}
