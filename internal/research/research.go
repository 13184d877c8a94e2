package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/me2resh/me2resh-daily/internal/classify"
	"github.com/me2resh/me2resh-daily/internal/feed"
	"github.com/me2resh/me2resh-daily/internal/logger"
	"github.com/me2resh/me2resh-daily/internal/urlutil"
)

// Request is the structured input for one research call.
type Request struct {
	Date          time.Time
	Timezone      string
	LookbackHours int
}

// Citation is one typed reference from the research response. Published is
// optional; missing or unparseable dates fall back to the request date.
type Citation struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Source    string `json:"source"`
	Published string `json:"published,omitempty"`
}

// PartialReport is the validated shape of a research response: the same
// section taxonomy as the final report, every key defaulted to an empty list
// at the ingestion boundary.
type PartialReport struct {
	Sections map[string][]Citation `json:"sections"`
}

// Empty returns an all-empty partial report, the substitute used when the
// collaborator fails: the scan proceeds with feed-only results rather than
// aborting.
func Empty() PartialReport {
	sections := make(map[string][]Citation, len(classify.Sections()))
	for _, name := range classify.Sections() {
		sections[name] = []Citation{}
	}
	return PartialReport{Sections: sections}
}

// Client wraps the Gemini API as an opaque, possibly-unreliable data source.
type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create research client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Research asks the model for recent items per section and validates the
// response into a PartialReport. Any hard failure (API error, malformed
// response) surfaces as an error; the caller substitutes Empty().
func (c *Client) Research(ctx context.Context, req Request) (PartialReport, error) {
	model := c.client.GenerativeModel(c.model)
	model.ResponseMIMEType = "application/json"

	prompt := buildPrompt(req)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return PartialReport{}, fmt.Errorf("research call failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return PartialReport{}, fmt.Errorf("empty research response")
	}

	raw := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	return Parse(raw)
}

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a research assistant compiling a daily executive technology brief.\n")
	fmt.Fprintf(&b, "Date: %s (timezone %s). Only include items published within the last %d hours.\n\n",
		req.Date.Format("2006-01-02"), req.Timezone, req.LookbackHours)
	b.WriteString("Find notable items for each of these sections:\n")
	for _, name := range classify.Sections() {
		if name == classify.SectionTopSignals {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", name)
	}
	b.WriteString(`
Respond with JSON only, matching exactly this shape:
{"sections": {"<section>": [{"title": "...", "url": "...", "source": "...", "published": "2006-01-02T15:04:05Z"}]}}

Every url must be a real, direct link to the cited page. Omit sections with
nothing notable. Do not include commentary outside the JSON.`)
	return b.String()
}

// Parse validates raw model output into a PartialReport. Unknown section
// keys are discarded; missing keys are defaulted; citations without a title
// or URL are dropped.
func Parse(raw string) (PartialReport, error) {
	raw = stripFences(raw)

	var decoded PartialReport
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return PartialReport{}, fmt.Errorf("malformed research response: %w", err)
	}

	out := Empty()
	for _, name := range classify.Sections() {
		for _, cit := range decoded.Sections[name] {
			if strings.TrimSpace(cit.Title) == "" || strings.TrimSpace(cit.URL) == "" {
				continue
			}
			out.Sections[name] = append(out.Sections[name], cit)
		}
	}
	return out, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite the mime-type hint.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx >= 0 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(raw)
}

// Items flattens a partial report into candidate items with canonical URLs,
// ready for the merge barrier. Citations share the fetcher's output shape so
// the research adapter stays swappable with any other source.
func (p PartialReport) Items(fallback time.Time) []feed.Item {
	var items []feed.Item
	for _, name := range classify.Sections() {
		for _, cit := range p.Sections[name] {
			published := fallback
			if cit.Published != "" {
				if t, err := time.Parse(time.RFC3339, cit.Published); err == nil {
					published = t
				} else {
					logger.Debug("research: unparseable citation date kept as fresh",
						"published", cit.Published)
				}
			}

			source := cit.Source
			if source == "" {
				source = "research"
			}

			link := urlutil.Canonicalize(cit.URL)
			items = append(items, feed.Item{
				Title:       strings.TrimSpace(cit.Title),
				SourceName:  source,
				SourceURL:   link,
				PublishedAt: published,
				Domain:      urlutil.Domain(link),
			})
		}
	}
	return items
}
