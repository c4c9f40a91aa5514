package grobid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullTEI = `<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader>
    <fileDesc>
      <titleStmt><title level="a" type="main">  Attention   Is All
        You Need </title></titleStmt>
    </fileDesc>
    <profileDesc>
      <abstract>
        <div><p>First abstract paragraph.</p><p>Second abstract paragraph.</p></div>
      </abstract>
    </profileDesc>
  </teiHeader>
  <text>
    <body>
      <div><head>Introduction</head><p>Intro paragraph one.</p><p>Intro paragraph two.</p></div>
      <div><head>Empty Section</head><p>   </p></div>
      <div><p>Headless paragraph.</p></div>
    </body>
    <back>
      <div><listBibl>
        <biblStruct>Vaswani et al. 2017</biblStruct>
        <biblStruct>Devlin et al. 2019</biblStruct>
      </listBibl></div>
    </back>
  </text>
</TEI>`

func TestParseTEI(t *testing.T) {
	parsed, err := ParseTEI(fullTEI)
	require.NoError(t, err)

	assert.Equal(t, "Attention Is All You Need", parsed.Title)
	assert.Equal(t, "First abstract paragraph.\nSecond abstract paragraph.", parsed.Abstract)

	// The whitespace-only division is dropped.
	require.Len(t, parsed.Body, 2)
	assert.Equal(t, "Introduction", parsed.Body[0].Title)
	assert.Equal(t, []string{"Intro paragraph one.", "Intro paragraph two."}, parsed.Body[0].Paragraphs)
	assert.Empty(t, parsed.Body[1].Title)
	assert.Equal(t, []string{"Headless paragraph."}, parsed.Body[1].Paragraphs)

	assert.Equal(t, []string{"Vaswani et al. 2017", "Devlin et al. 2019"}, parsed.References)
}

func TestParseTEIConcatenatedBody(t *testing.T) {
	parsed, err := ParseTEI(fullTEI)
	require.NoError(t, err)

	want := "Intro paragraph one.\nIntro paragraph two.\n\nHeadless paragraph."
	assert.Equal(t, want, parsed.ConcatenatedBody())
}

func TestParseTEIEmptyDocument(t *testing.T) {
	parsed, err := ParseTEI(`<TEI xmlns="http://www.tei-c.org/ns/1.0"></TEI>`)
	require.NoError(t, err)
	assert.Empty(t, parsed.Title)
	assert.Empty(t, parsed.Abstract)
	assert.Empty(t, parsed.Body)
	assert.Empty(t, parsed.ConcatenatedBody())
}

func TestParseTEIInvalidMarkup(t *testing.T) {
	_, err := ParseTEI("<TEI><unclosed>")
	require.Error(t, err)
}
