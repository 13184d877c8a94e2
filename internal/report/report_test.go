package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me2resh/me2resh-daily/internal/classify"
	"github.com/me2resh/me2resh-daily/internal/feed"
)

func TestAssembleCompleteness(t *testing.T) {
	// Every taxonomy key is present even when classification produced
	// nothing at all.
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	result := Assemble(time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC), london, nil, nil)

	assert.Equal(t, resultVersion, result.Version)
	assert.Equal(t, "2026-09-01", result.Date)
	assert.Equal(t, "Europe/London", result.Timezone)
	require.Len(t, result.Sections, len(classify.Sections()))
	for _, name := range classify.Sections() {
		section, ok := result.Sections[name]
		require.True(t, ok, "section %s missing", name)
		assert.NotNil(t, section)
	}
	assert.NotNil(t, result.Alerts)
}

func TestAssembleStampsDateInReportTimezone(t *testing.T) {
	// 23:30 UTC is already the next day in Tokyo.
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	result := Assemble(time.Date(2026, 9, 1, 23, 30, 0, 0, time.UTC), tokyo, nil, nil)
	assert.Equal(t, "2026-09-02", result.Date)
}

func TestAssemblePreservesSectionsAndRawFeed(t *testing.T) {
	sections := map[string][]classify.Scored{
		classify.SectionCloud: {
			{Item: feed.Item{Title: "lambda update", SourceURL: "https://aws.amazon.com/a"}, Category: classify.SectionCloud},
		},
	}
	raw := []feed.Item{
		{Title: "lambda update", SourceURL: "https://aws.amazon.com/a"},
		{Title: "not selected", SourceURL: "https://example.com/b"},
	}

	result := Assemble(time.Now(), time.UTC, sections, raw)

	require.Len(t, result.Sections[classify.SectionCloud], 1)
	assert.Equal(t, "lambda update", result.Sections[classify.SectionCloud][0].Title)
	assert.Len(t, result.RawFeed, 2)
}

func TestShapeAlertsExtractsCVEAndCVSS(t *testing.T) {
	items := []classify.Scored{
		{
			Item: feed.Item{
				Title:     "Critical flaw cve-2026-12345 under active exploitation",
				SourceURL: "https://nvd.nist.gov/vuln/detail/CVE-2026-12345",
				Summary:   "Rated CVSS 9.8, patch immediately.",
			},
			Category: classify.SectionSecurity,
			Severity: classify.SeverityHigh,
		},
		{
			Item: feed.Item{
				Title:     "Security advisory without identifiers",
				SourceURL: "https://example.com/advisory",
			},
			Category: classify.SectionSecurity,
			Severity: classify.SeverityMedium,
		},
	}

	alerts := shapeAlerts(items)
	require.Len(t, alerts, 2)

	assert.Equal(t, "CVE-2026-12345", alerts[0].CVE)
	assert.Equal(t, 9.8, alerts[0].CVSS)
	assert.Equal(t, "high", alerts[0].Severity)

	assert.Empty(t, alerts[1].CVE)
	assert.Zero(t, alerts[1].CVSS)
	assert.Equal(t, "medium", alerts[1].Severity)
}

func TestShapeAlertsRejectsOutOfRangeCVSS(t *testing.T) {
	alerts := shapeAlerts([]classify.Scored{
		{Item: feed.Item{Title: "Bogus score CVSS v2 77.7", SourceURL: "https://example.com/a"}},
	})
	require.Len(t, alerts, 1)
	assert.Zero(t, alerts[0].CVSS)
}
