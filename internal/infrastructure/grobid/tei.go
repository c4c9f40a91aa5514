package grobid

import (
	"encoding/xml"
	"fmt"
	"strings"

	"trendsurf/internal/domain"
)

// teiText accumulates the character data of an element subtree.
type teiText struct {
	Value string `xml:",chardata"`
}

type teiDiv struct {
	Head       *teiText  `xml:"head"`
	Paragraphs []teiText `xml:"p"`
}

type teiDocument struct {
	Titles   []teiText `xml:"teiHeader>fileDesc>titleStmt>title"`
	Abstract struct {
		Divs       []teiDiv  `xml:"div"`
		Paragraphs []teiText `xml:"p"`
	} `xml:"teiHeader>profileDesc>abstract"`
	Body struct {
		Divs []teiDiv `xml:"div"`
	} `xml:"text>body"`
	References []teiText `xml:"text>back>div>listBibl>biblStruct"`
}

// ParseTEI converts TEI markup into a structured document. Divisions without
// a single non-empty paragraph are dropped; whitespace runs collapse to one
// space everywhere.
func ParseTEI(markup string) (domain.ParsedDocument, error) {
	var doc teiDocument
	if err := xml.Unmarshal([]byte(markup), &doc); err != nil {
		return domain.ParsedDocument{}, fmt.Errorf("decode tei: %w", err)
	}

	parsed := domain.ParsedDocument{}

	for _, title := range doc.Titles {
		if text := normalizeWhitespace(title.Value); text != "" {
			parsed.Title = text
			break
		}
	}

	var abstractParagraphs []string
	for _, div := range doc.Abstract.Divs {
		abstractParagraphs = append(abstractParagraphs, paragraphTexts(div.Paragraphs)...)
	}
	abstractParagraphs = append(abstractParagraphs, paragraphTexts(doc.Abstract.Paragraphs)...)
	parsed.Abstract = strings.Join(abstractParagraphs, "\n")

	for _, div := range doc.Body.Divs {
		paragraphs := paragraphTexts(div.Paragraphs)
		if len(paragraphs) == 0 {
			continue
		}
		section := domain.Section{Paragraphs: paragraphs}
		if div.Head != nil {
			section.Title = normalizeWhitespace(div.Head.Value)
		}
		parsed.Body = append(parsed.Body, section)
	}

	for _, ref := range doc.References {
		if text := normalizeWhitespace(ref.Value); text != "" {
			parsed.References = append(parsed.References, text)
		}
	}

	return parsed, nil
}

func paragraphTexts(nodes []teiText) []string {
	var texts []string
	for _, node := range nodes {
		if text := normalizeWhitespace(node.Value); text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}

func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
