package classify

import (
	"fmt"
	"sort"
)

// Fixed section taxonomy. Downstream consumers key off these names, so the
// set is closed: classification never invents a section.
const (
	SectionTopSignals = "top_signals"
	SectionSecurity   = "security_alerts"
	SectionRegulatory = "regulatory_compliance"
	SectionAI         = "ai_engineering"
	SectionCloud      = "cloud_platform"
	SectionHealth     = "healthcare_tech"
	SectionTrends     = "emerging_trends"
)

// Sections returns the taxonomy in report order.
func Sections() []string {
	return []string{
		SectionTopSignals,
		SectionSecurity,
		SectionRegulatory,
		SectionAI,
		SectionCloud,
		SectionHealth,
		SectionTrends,
	}
}

// Severity is the coarse urgency classification.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

// FallbackImpactTag is applied when no impact keyword matches; the impact set
// is never empty.
const FallbackImpactTag = "Platform"

// CategoryRule assigns a section to items matching its keywords or domains.
// Rules evaluate in slice order, first match wins, so order is a visible,
// testable contract (security patterns come before generic topics).
type CategoryRule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
	Domains  []string `yaml:"domains"`
}

// ScoringSignal contributes its signed weight to an item's score when any of
// its keywords or domains match.
type ScoringSignal struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Domains  []string `yaml:"domains"`
	Weight   int      `yaml:"weight"`
}

// Cluster groups categories under one proportional cap, e.g. health-related
// sections capped at 40% of the whole report.
type Cluster struct {
	Name        string   `yaml:"name"`
	Categories  []string `yaml:"categories"`
	MaxFraction float64  `yaml:"maxFraction"`
}

// HeadlineRules is the extra diversity enforcement for the most visible
// section.
type HeadlineRules struct {
	// DomainCap limits how many headline items may share one source domain.
	DomainCap int `yaml:"domainCap"`
	// MustRepresent names a category that gets at least one headline slot
	// whenever any qualifying candidate exists in the full item set.
	MustRepresent string `yaml:"mustRepresent"`
}

// Rules is the complete declarative classification table. Loaded from the
// YAML config; DefaultRules covers the common case.
type Rules struct {
	Categories          []CategoryRule      `yaml:"categories"`
	SeverityHigh        []string            `yaml:"severityHigh"`
	SeverityMedium      []string            `yaml:"severityMedium"`
	SeverityLow         []string            `yaml:"severityLow"`
	ImpactTags          map[string][]string `yaml:"impactTags"`
	Scoring             []ScoringSignal     `yaml:"scoring"`
	MaxItemsPerCategory int                 `yaml:"maxItemsPerCategory"`
	Clusters            []Cluster           `yaml:"clusters"`
	Headline            HeadlineRules       `yaml:"headline"`
}

// Validate rejects rule tables the classifier cannot run with. Called at
// startup: a broken table is fatal before any fetch begins.
func (r Rules) Validate() error {
	known := map[string]bool{}
	for _, s := range Sections() {
		known[s] = true
	}

	for _, rule := range r.Categories {
		if !known[rule.Category] {
			return fmt.Errorf("category rule references unknown section %q", rule.Category)
		}
		if rule.Category == SectionTopSignals {
			return fmt.Errorf("top_signals is filled by promotion, not by category rules")
		}
		if len(rule.Keywords) == 0 && len(rule.Domains) == 0 {
			return fmt.Errorf("category rule %q has no keywords and no domains", rule.Category)
		}
	}

	if r.MaxItemsPerCategory <= 0 {
		return fmt.Errorf("maxItemsPerCategory must be positive, got %d", r.MaxItemsPerCategory)
	}

	for _, c := range r.Clusters {
		if c.MaxFraction <= 0 || c.MaxFraction > 1 {
			return fmt.Errorf("cluster %q maxFraction must be in (0,1], got %v", c.Name, c.MaxFraction)
		}
		for _, cat := range c.Categories {
			if !known[cat] {
				return fmt.Errorf("cluster %q references unknown section %q", c.Name, cat)
			}
		}
	}

	if r.Headline.DomainCap <= 0 {
		return fmt.Errorf("headline domainCap must be positive, got %d", r.Headline.DomainCap)
	}
	if r.Headline.MustRepresent != "" && !known[r.Headline.MustRepresent] {
		return fmt.Errorf("headline mustRepresent references unknown section %q", r.Headline.MustRepresent)
	}

	return nil
}

// impactTagNames returns tag names sorted for deterministic evaluation.
func (r Rules) impactTagNames() []string {
	names := make([]string, 0, len(r.ImpactTags))
	for name := range r.ImpactTags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRules is the built-in table for a health-tech executive brief.
func DefaultRules() Rules {
	return Rules{
		Categories: []CategoryRule{
			{
				Category: SectionSecurity,
				Keywords: []string{
					"cve-", "vulnerability", "zero-day", "zero day", "exploit",
					"ransomware", "data breach", "security advisory", "patch now",
					"remote code execution", "cvss",
				},
				Domains: []string{"nvd.nist.gov", "cve.org", "msrc.microsoft.com"},
			},
			{
				Category: SectionRegulatory,
				Keywords: []string{
					"hipaa", "gdpr", "fda", "regulation", "compliance deadline",
					"dea", "cms", "enforcement", "final rule", "ruling", "legislation",
					"information blocking", "prior authorization",
				},
				Domains: []string{"fda.gov", "hhs.gov", "cms.gov", "ec.europa.eu"},
			},
			{
				Category: SectionHealth,
				Keywords: []string{
					"telehealth", "ehr", "clinical", "patient", "pharmacy",
					"prescription", "interoperability", "fhir", "hl7", "digital health",
					"hospital", "payer", "provider",
				},
				Domains: []string{"healthit.gov", "himss.org"},
			},
			{
				Category: SectionAI,
				Keywords: []string{
					"llm", "large language model", "gpt", "claude", "gemini",
					"machine learning", "artificial intelligence", "fine-tuning",
					"rag", "agentic", "model release", "inference",
				},
				Domains: []string{"openai.com", "anthropic.com", "deepmind.google"},
			},
			{
				Category: SectionCloud,
				Keywords: []string{
					"aws", "lambda", "kubernetes", "terraform", "serverless",
					"s3", "dynamodb", "eks", "azure", "gcp", "cloudformation",
					"deprecation", "end of support",
				},
				Domains: []string{"aws.amazon.com", "cloud.google.com", "azure.microsoft.com"},
			},
		},
		SeverityHigh: []string{
			"critical", "urgent", "actively exploited", "emergency", "breach",
			"outage", "deadline", "mandatory", "end of life", "zero-day", "zero day",
		},
		SeverityMedium: []string{
			"warning", "deprecat", "update required", "enforcement", "advisory",
			"price increase", "migration",
		},
		SeverityLow: []string{
			"announce", "preview", "beta", "general availability", "released",
		},
		ImpactTags: map[string][]string{
			"Security":   {"security", "vulnerability", "breach", "cve-", "ransomware", "exploit"},
			"Compliance": {"hipaa", "gdpr", "compliance", "regulation", "fda", "audit", "enforcement"},
			"Clinical":   {"clinical", "patient", "telehealth", "prescription", "pharmacy", "ehr"},
			"Cost":       {"pricing", "price", "cost", "billing", "license fee"},
			"Delivery":   {"deprecat", "end of support", "migration", "breaking change", "api change"},
		},
		Scoring: []ScoringSignal{
			{
				Name: "dated_change",
				Keywords: []string{
					"effective", "deadline", "must migrate", "ends on", "takes effect",
					"final rule", "enforcement begins", "end of support",
				},
				Weight: 3,
			},
			{
				Name: "primary_source",
				Domains: []string{
					"aws.amazon.com", "fda.gov", "hhs.gov", "cms.gov",
					"nvd.nist.gov", "openai.com", "anthropic.com", "msrc.microsoft.com",
				},
				Weight: 2,
			},
			{
				Name: "routine",
				Keywords: []string{
					"webinar", "sponsored", "newsletter", "roundup", "weekly recap",
					"podcast episode",
				},
				Weight: -2,
			},
			{
				Name: "noise",
				Keywords: []string{
					"giveaway", "we're hiring", "hiring now", "top 10 tips",
					"you won't believe",
				},
				Weight: -3,
			},
		},
		MaxItemsPerCategory: 5,
		Clusters: []Cluster{
			{
				Name:        "health",
				Categories:  []string{SectionHealth, SectionRegulatory},
				MaxFraction: 0.4,
			},
		},
		Headline: HeadlineRules{
			DomainCap:     2,
			MustRepresent: SectionSecurity,
		},
	}
}
