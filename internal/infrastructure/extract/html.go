package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"trendsurf/internal/domain"
	"trendsurf/internal/ports"
)

// HTMLExtractor recovers readable text from a paper's landing page, used
// when a feed entry carries no PDF link but has an alternate HTML link.
type HTMLExtractor struct{}

var _ ports.PageExtractor = (*HTMLExtractor)(nil)

// NewHTMLExtractor returns a stateless extractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// ExtractPage pulls the page title and paragraph texts into a single-section
// parsed document. Empty paragraphs are dropped.
func (e *HTMLExtractor) ExtractPage(content []byte) (domain.ParsedDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return domain.ParsedDocument{}, fmt.Errorf("parse page: %w", err)
	}

	parsed := domain.ParsedDocument{
		Title: normalizeWhitespace(doc.Find("title").First().Text()),
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, selection *goquery.Selection) {
		if text := normalizeWhitespace(selection.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		parsed.Body = []domain.Section{{Paragraphs: paragraphs}}
	}

	return parsed, nil
}

func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
