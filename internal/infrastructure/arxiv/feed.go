package arxiv

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"trendsurf/internal/domain"
)

const iso8601 = "2006-01-02T15:04:05Z"

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID              string         `xml:"id"`
	Title           string         `xml:"title"`
	Summary         string         `xml:"summary"`
	Published       string         `xml:"published"`
	Updated         string         `xml:"updated"`
	Authors         []atomAuthor   `xml:"author"`
	Categories      []atomCategory `xml:"category"`
	PrimaryCategory *atomCategory  `xml:"primary_category"`
	Links           []atomLink     `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// ParseFeed decodes an Atom response from the export API into FeedPaper
// records in document order. Malformed timestamps on an entry degrade to nil
// instead of failing the page.
func ParseFeed(raw []byte) ([]domain.FeedPaper, error) {
	var feed atomFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	papers := make([]domain.FeedPaper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		title := strings.TrimSpace(entry.Title)
		summary := strings.TrimSpace(entry.Summary)

		var authors []string
		for _, author := range entry.Authors {
			if name := strings.TrimSpace(author.Name); name != "" {
				authors = append(authors, name)
			}
		}

		var categories []string
		for _, category := range entry.Categories {
			if category.Term != "" {
				categories = append(categories, category.Term)
			}
		}

		var primaryCategory string
		if entry.PrimaryCategory != nil {
			primaryCategory = entry.PrimaryCategory.Term
		}

		// PDF links are identified by media type, alternate links by rel;
		// the URL shape itself is not inspected.
		var pdfURL, htmlURL string
		for _, link := range entry.Links {
			if link.Href == "" {
				continue
			}
			if link.Rel == "alternate" {
				htmlURL = link.Href
			}
			if link.Type == "application/pdf" {
				pdfURL = link.Href
			}
		}

		papers = append(papers, domain.FeedPaper{
			SourceID:        sourceID(entry.ID),
			Title:           title,
			Summary:         summary,
			PublishedAt:     parseTimestamp(entry.Published),
			UpdatedAt:       parseTimestamp(entry.Updated),
			Authors:         authors,
			PDFURL:          pdfURL,
			HTMLURL:         htmlURL,
			PrimaryCategory: primaryCategory,
			Categories:      categories,
			Raw: map[string]string{
				"id":      entry.ID,
				"title":   title,
				"summary": summary,
			},
		})
	}

	return papers, nil
}

// BuildSearchQuery combines category and keyword groups into the feed's query
// syntax. Both groups empty defaults to "all:ai".
func BuildSearchQuery(filters domain.TopicFilters) string {
	var groups []string

	if len(filters.Categories) > 0 {
		terms := make([]string, 0, len(filters.Categories))
		for _, category := range filters.Categories {
			terms = append(terms, "cat:"+category)
		}
		groups = append(groups, strings.Join(terms, " OR "))
	}

	if len(filters.Keywords) > 0 {
		terms := make([]string, 0, len(filters.Keywords))
		for _, keyword := range filters.Keywords {
			terms = append(terms, "all:"+strings.ReplaceAll(keyword, " ", "+"))
		}
		groups = append(groups, strings.Join(terms, " OR "))
	}

	switch len(groups) {
	case 0:
		return "all:ai"
	case 1:
		return groups[0]
	}

	for i, group := range groups {
		groups[i] = "(" + group + ")"
	}
	return strings.Join(groups, " AND ")
}

// sourceID is the substring after the last "/" of the entry identifier URI.
func sourceID(id string) string {
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		return id[idx+1:]
	}
	return id
}

func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(iso8601, value)
	if err != nil {
		return nil
	}
	parsed = parsed.UTC()
	return &parsed
}
