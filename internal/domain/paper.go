package domain

import (
	"strings"
	"time"
)

// FeedPaper is one entry returned by the export API. Records are transient:
// they live for the duration of a crawl page and are handed to the paper
// repository for persistence.
type FeedPaper struct {
	SourceID        string
	Title           string
	Summary         string
	PublishedAt     *time.Time
	UpdatedAt       *time.Time
	Authors         []string
	PDFURL          string
	HTMLURL         string
	PrimaryCategory string
	Categories      []string
	Raw             map[string]string
}

// FetchedDocument carries downloaded binary content plus the cache-validator
// headers a caller needs for an optional conditional re-fetch.
type FetchedDocument struct {
	Content      []byte
	ContentType  string
	ETag         string
	LastModified string
}

// Section is one body division of a parsed document. A section is only kept
// when it has at least one non-empty paragraph.
type Section struct {
	Title      string
	Paragraphs []string
}

// Text joins the section paragraphs with newlines.
func (s Section) Text() string {
	return strings.Join(s.Paragraphs, "\n")
}

// ParsedDocument is structured full text extracted from a binary document.
type ParsedDocument struct {
	Title      string
	Abstract   string
	Body       []Section
	References []string
}

// ConcatenatedBody joins all section texts with blank-line separators, the
// form fed to embedding and summarisation.
func (d ParsedDocument) ConcatenatedBody() string {
	parts := make([]string, 0, len(d.Body))
	for _, section := range d.Body {
		if len(section.Paragraphs) > 0 {
			parts = append(parts, section.Text())
		}
	}
	return strings.Join(parts, "\n\n")
}

// TopicFilters narrows a crawl to category and keyword groups.
type TopicFilters struct {
	Categories []string `json:"categories"`
	Keywords   []string `json:"keywords"`
}

// Topic is a user-defined area of interest driving crawls and matching.
type Topic struct {
	ID          int64
	Name        string
	Description string
	Filters     TopicFilters
}

// TopicMatch scores one paper against one topic. (TopicID, PaperID) is the
// stable identity across recomputations; the score is always within [0, 1].
type TopicMatch struct {
	TopicID   int64
	PaperID   int64
	Score     float64
	Reason    string
	CreatedAt time.Time
}

// CompletionResult is the outcome of a single generation call.
type CompletionResult struct {
	Content          string
	Model            string
	Provider         string
	PromptTokens     *int
	CompletionTokens *int
}

// GenerationOptions tunes a single generation call. A nil Temperature falls
// back to the gateway default; Overrides may carry base_url and api_key.
type GenerationOptions struct {
	System      string
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration
	Overrides   map[string]string
}

// Analysis is the persisted result of one generation run over a paper.
type Analysis struct {
	PaperID    int64
	TLDR       string
	Provider   string
	GenModel   string
	EmbedModel string
	Tokens     int
	LatencyMS  int
	Status     string
	Error      string
}
