package merge

import (
	"strings"
	"unicode"

	"github.com/me2resh/me2resh-daily/internal/feed"
	"github.com/me2resh/me2resh-daily/internal/logger"
	"github.com/me2resh/me2resh-daily/internal/metrics"
)

// Options controls duplicate detection.
type Options struct {
	// TitleDedup additionally treats items with identical normalized titles
	// as duplicates, on top of the canonical-URL match.
	TitleDedup bool
}

// Merge unions all per-source item sets into one candidate list. Two items
// are duplicates when their canonical URLs match, or, with TitleDedup, when
// their normalized titles match. Within a duplicate group the item with the
// earliest PublishedAt wins: a later rediscovery of the same story is noise.
// Items with equal timestamps keep the first-seen one, and survivors stay in
// discovery order.
func Merge(itemSets [][]feed.Item, opts Options) []feed.Item {
	byURL := map[string]int{}   // canonical URL -> index in merged
	byTitle := map[string]int{} // normalized title -> index in merged

	var merged []feed.Item
	duplicates := 0

	for _, set := range itemSets {
		for _, item := range set {
			if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.SourceURL) == "" {
				logger.Debug("merge: malformed item dropped", "source", item.SourceName)
				metrics.Global.IncrementMalformedDropped()
				continue
			}

			idx, dup := byURL[item.SourceURL]
			titleKey := ""
			if !dup && opts.TitleDedup {
				titleKey = NormalizeTitle(item.Title)
				idx, dup = byTitle[titleKey]
			}

			if dup {
				duplicates++
				if item.PublishedAt.Before(merged[idx].PublishedAt) {
					// Keep the slot (discovery order) but prefer the
					// earliest known publication of the story.
					merged[idx] = item
					byURL[item.SourceURL] = idx
					if opts.TitleDedup {
						byTitle[NormalizeTitle(item.Title)] = idx
					}
				}
				continue
			}

			merged = append(merged, item)
			byURL[item.SourceURL] = len(merged) - 1
			if opts.TitleDedup {
				if titleKey == "" {
					titleKey = NormalizeTitle(item.Title)
				}
				byTitle[titleKey] = len(merged) - 1
			}
		}
	}

	metrics.Global.AddDuplicatesRemoved(duplicates)
	logger.Info("merge: candidate set ready", "items", len(merged), "duplicates", duplicates)
	return merged
}

// NormalizeTitle lowercases, strips punctuation and collapses whitespace so
// near-identical headlines from different feeds compare equal.
func NormalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))

	var b []rune
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b = append(b, r)
		case unicode.IsSpace(r):
			b = append(b, ' ')
		default:
			b = append(b, ' ')
		}
	}

	return strings.Join(strings.Fields(string(b)), " ")
}
