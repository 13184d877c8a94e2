package classify

import (
	"sort"
	"strings"
	"time"

	"github.com/me2resh/me2resh-daily/internal/feed"
	"github.com/me2resh/me2resh-daily/internal/logger"
	"github.com/me2resh/me2resh-daily/internal/metrics"
)

// Scored is a candidate item after classification. Category is always one of
// the fixed section taxonomy; Impact is never empty.
type Scored struct {
	feed.Item

	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Impact   []string `json:"impact"`
	Score    int      `json:"score"`

	// order is the discovery index, the final tie-break that keeps repeated
	// runs byte-identical when everything else compares equal.
	order int
}

// Classify assigns candidates to report sections and balances them under the
// diversity constraints. It is a pure function of (items, rules, now): no
// persistent state, identical inputs produce identical output.
//
// Steps: category assignment (first matching ordered rule, default
// emerging_trends), severity and impact tagging, additive scoring,
// per-category capping, cluster proportional capping with demotion and
// backfill, and headline promotion under the domain-concentration cap.
func Classify(items []feed.Item, rules Rules, now time.Time) map[string][]Scored {
	annotated := annotate(items, rules)

	selected, leftover := selectPerCategory(annotated, rules)
	enforceClusterCaps(selected, leftover, rules)
	promoteHeadline(selected, annotated, rules)

	total := 0
	for _, section := range selected {
		total += len(section)
	}
	metrics.Global.AddItemsSelected(total)
	logger.Info("classify: balancing done", "candidates", len(items), "selected", total)

	return selected
}

// annotate runs steps 1-3 on every well-formed item.
func annotate(items []feed.Item, rules Rules) []Scored {
	annotated := make([]Scored, 0, len(items))

	for i, item := range items {
		if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.SourceURL) == "" {
			logger.Debug("classify: malformed item dropped", "source", item.SourceName)
			metrics.Global.IncrementMalformedDropped()
			continue
		}

		text := strings.ToLower(item.Title + " " + item.Summary)

		annotated = append(annotated, Scored{
			Item:     item,
			Category: assignCategory(text, item.Domain, rules),
			Severity: assignSeverity(text, rules),
			Impact:   assignImpact(text, rules),
			Score:    scoreItem(text, item.Domain, rules),
			order:    i,
		})
	}

	return annotated
}

// assignCategory evaluates the ordered rule table, first match wins.
func assignCategory(text, domain string, rules Rules) string {
	for _, rule := range rules.Categories {
		if containsAny(text, rule.Keywords) || matchesDomain(domain, rule.Domains) {
			return rule.Category
		}
	}
	return SectionTrends
}

// assignSeverity scans the three ordered severity lists, first match wins.
func assignSeverity(text string, rules Rules) Severity {
	switch {
	case containsAny(text, rules.SeverityHigh):
		return SeverityHigh
	case containsAny(text, rules.SeverityMedium):
		return SeverityMedium
	case containsAny(text, rules.SeverityLow):
		return SeverityLow
	default:
		return SeverityLow
	}
}

// assignImpact collects every matching impact tag; impact is a set, not a
// single value, and falls back to Platform when nothing matches.
func assignImpact(text string, rules Rules) []string {
	var tags []string
	for _, name := range rules.impactTagNames() {
		if containsAny(text, rules.ImpactTags[name]) {
			tags = append(tags, name)
		}
	}
	if len(tags) == 0 {
		tags = []string{FallbackImpactTag}
	}
	return tags
}

// scoreItem sums the signed weights of every matching scoring signal.
func scoreItem(text, domain string, rules Rules) int {
	score := 0
	for _, signal := range rules.Scoring {
		if containsAny(text, signal.Keywords) || matchesDomain(domain, signal.Domains) {
			score += signal.Weight
		}
	}
	return score
}

// sortForSelection orders items by severity rank, then score descending, then
// recency descending, then discovery order. This is the section ordering and
// the selection key everywhere.
func sortForSelection(items []Scored) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if ra, rb := severityRank(a.Severity), severityRank(b.Severity); ra != rb {
			return ra < rb
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.order < b.order
	})
}

// selectPerCategory caps each category at MaxItemsPerCategory and keeps the
// runners-up per category for cluster-cap backfilling.
func selectPerCategory(annotated []Scored, rules Rules) (selected, leftover map[string][]Scored) {
	byCategory := map[string][]Scored{}
	for _, item := range annotated {
		byCategory[item.Category] = append(byCategory[item.Category], item)
	}

	selected = map[string][]Scored{}
	leftover = map[string][]Scored{}

	for _, category := range Sections() {
		group, ok := byCategory[category]
		if !ok {
			continue
		}
		sortForSelection(group)
		if len(group) > rules.MaxItemsPerCategory {
			selected[category] = group[:rules.MaxItemsPerCategory]
			leftover[category] = group[rules.MaxItemsPerCategory:]
		} else {
			selected[category] = group
		}
	}

	return selected, leftover
}

// enforceClusterCaps demotes the lowest-scoring items of any cluster that
// exceeds its proportional cap, backfilling the freed slots from the
// next-best runners-up outside the offending cluster. The limit is computed
// against the grand total selected before demotion, so a report made entirely
// of cluster items still shrinks to the capped count rather than emptying out.
func enforceClusterCaps(selected, leftover map[string][]Scored, rules Rules) {
	for _, cluster := range rules.Clusters {
		inCluster := map[string]bool{}
		for _, cat := range cluster.Categories {
			inCluster[cat] = true
		}

		total := 0
		clusterCount := 0
		for _, category := range Sections() {
			n := len(selected[category])
			total += n
			if inCluster[category] {
				clusterCount += n
			}
		}
		if total == 0 {
			continue
		}

		limit := int(cluster.MaxFraction * float64(total))
		if clusterCount <= limit {
			continue
		}

		excess := clusterCount - limit
		logger.Info("classify: cluster over cap, demoting",
			"cluster", cluster.Name, "count", clusterCount, "limit", limit)

		demoteFromCluster(selected, cluster.Categories, excess)
		backfillOutsideCluster(selected, leftover, inCluster, excess, rules)
	}
}

// demoteFromCluster removes the given number of items from the cluster's
// sections, lowest score first (score-ascending is the demotion tie-break).
func demoteFromCluster(selected map[string][]Scored, categories []string, excess int) {
	type ref struct {
		category string
		index    int
		item     Scored
	}

	var pool []ref
	for _, category := range categories {
		for i, item := range selected[category] {
			pool = append(pool, ref{category: category, index: i, item: item})
		}
	}

	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i].item, pool[j].item
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		if ra, rb := severityRank(a.Severity), severityRank(b.Severity); ra != rb {
			return ra > rb
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.Before(b.PublishedAt)
		}
		return a.order > b.order
	})

	if excess > len(pool) {
		excess = len(pool)
	}

	drop := map[string]map[int]bool{}
	for _, r := range pool[:excess] {
		if drop[r.category] == nil {
			drop[r.category] = map[int]bool{}
		}
		drop[r.category][r.index] = true
	}

	for category, indexes := range drop {
		kept := selected[category][:0:0]
		for i, item := range selected[category] {
			if !indexes[i] {
				kept = append(kept, item)
			}
		}
		selected[category] = kept
	}
}

// backfillOutsideCluster promotes up to freed runners-up from non-cluster
// categories, best first, respecting each category's own cap.
func backfillOutsideCluster(selected, leftover map[string][]Scored, inCluster map[string]bool, freed int, rules Rules) {
	var pool []Scored
	for _, category := range Sections() {
		if inCluster[category] {
			continue
		}
		pool = append(pool, leftover[category]...)
	}
	sortForSelection(pool)

	for _, item := range pool {
		if freed == 0 {
			break
		}
		if len(selected[item.Category]) >= rules.MaxItemsPerCategory {
			continue
		}
		selected[item.Category] = append(selected[item.Category], item)
		sortForSelection(selected[item.Category])
		removeFromLeftover(leftover, item)
		freed--
	}
}

func removeFromLeftover(leftover map[string][]Scored, item Scored) {
	group := leftover[item.Category]
	for i := range group {
		if group[i].order == item.order {
			leftover[item.Category] = append(group[:i:i], group[i+1:]...)
			return
		}
	}
}

// promoteHeadline fills top_signals from the highest-ranked selected items
// under the domain-concentration cap, then enforces the must-represent rule.
// Promoted items move out of their home sections. When the domain cap leaves
// slots that nothing qualifies for, they stay empty; the cap is never relaxed.
func promoteHeadline(selected map[string][]Scored, annotated []Scored, rules Rules) {
	var pool []Scored
	for _, category := range Sections() {
		if category == SectionTopSignals {
			continue
		}
		pool = append(pool, selected[category]...)
	}
	sortForSelection(pool)

	perDomain := map[string]int{}
	var headline []Scored
	for _, item := range pool {
		if len(headline) >= rules.MaxItemsPerCategory {
			break
		}
		if perDomain[item.Domain] >= rules.Headline.DomainCap {
			continue
		}
		headline = append(headline, item)
		perDomain[item.Domain]++
	}

	headline = ensureRepresentation(headline, annotated, perDomain, rules)

	promoted := map[int]bool{}
	for _, item := range headline {
		promoted[item.order] = true
	}
	for _, category := range Sections() {
		if category == SectionTopSignals {
			continue
		}
		kept := selected[category][:0:0]
		for _, item := range selected[category] {
			if !promoted[item.order] {
				kept = append(kept, item)
			}
		}
		if len(kept) > 0 {
			selected[category] = kept
		} else {
			delete(selected, category)
		}
	}

	if len(headline) > 0 {
		selected[SectionTopSignals] = headline
	}
}

// ensureRepresentation guarantees one slot for the must-represent category
// whenever any qualifying candidate exists in the full item set. The dominant
// domain is capped first, then the freed slot is filled from the best
// qualifying candidate; with no qualifying candidate the slot stays as-is.
func ensureRepresentation(headline []Scored, annotated []Scored, perDomain map[string]int, rules Rules) []Scored {
	required := rules.Headline.MustRepresent
	if required == "" {
		return headline
	}
	for _, item := range headline {
		if item.Category == required {
			return headline
		}
	}

	var qualifying []Scored
	for _, item := range annotated {
		if item.Category == required {
			qualifying = append(qualifying, item)
		}
	}
	if len(qualifying) == 0 {
		return headline
	}
	sortForSelection(qualifying)

	if len(headline) >= rules.MaxItemsPerCategory {
		// Evict the lowest-ranked headline item to free a slot.
		last := headline[len(headline)-1]
		headline = headline[:len(headline)-1]
		perDomain[last.Domain]--
	}

	for _, cand := range qualifying {
		if perDomain[cand.Domain] >= rules.Headline.DomainCap {
			continue
		}
		headline = append(headline, cand)
		perDomain[cand.Domain]++
		break
	}

	return headline
}
