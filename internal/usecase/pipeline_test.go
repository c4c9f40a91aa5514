package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendsurf/internal/config"
	"trendsurf/internal/domain"
)

type fakeSource struct {
	papers []domain.FeedPaper
	err    error
}

func (f *fakeSource) IterateTopic(_ context.Context, _ domain.TopicFilters, _ int) iter.Seq2[domain.FeedPaper, error] {
	return func(yield func(domain.FeedPaper, error) bool) {
		for _, paper := range f.papers {
			if !yield(paper, nil) {
				return
			}
		}
		if f.err != nil {
			yield(domain.FeedPaper{}, f.err)
		}
	}
}

type fakeDownloader struct {
	content map[string][]byte
}

func (f *fakeDownloader) Fetch(_ context.Context, url string) (domain.FetchedDocument, error) {
	content, ok := f.content[url]
	if !ok {
		return domain.FetchedDocument{}, errors.New("download failed")
	}
	return domain.FetchedDocument{Content: content}, nil
}

type fakeExtractor struct {
	docs map[string]domain.ParsedDocument
}

func (f *fakeExtractor) Extract(_ context.Context, doc []byte) (domain.ParsedDocument, error) {
	parsed, ok := f.docs[string(doc)]
	if !ok {
		return domain.ParsedDocument{}, errors.New("extraction failed")
	}
	return parsed, nil
}

type fakePages struct{}

func (fakePages) ExtractPage(content []byte) (domain.ParsedDocument, error) {
	return domain.ParsedDocument{
		Body: []domain.Section{{Paragraphs: []string{"page: " + string(content)}}},
	}, nil
}

type fakeEmbedder struct {
	failOn string
	calls  []string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts...)
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failOn != "" && text == f.failOn {
			return nil, errors.New("embedding backend down")
		}
		vectors[i] = []float32{float32(len(text)), 1}
	}
	return vectors, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

type fakeGenerator struct {
	err   error
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, provider, model, prompt string, _ domain.GenerationOptions) (domain.CompletionResult, error) {
	f.calls++
	if f.err != nil {
		return domain.CompletionResult{}, f.err
	}
	promptTokens, completionTokens := 10, 20
	return domain.CompletionResult{
		Content:          "tldr of: " + prompt[:min(20, len(prompt))],
		Model:            model,
		Provider:         provider,
		PromptTokens:     &promptTokens,
		CompletionTokens: &completionTokens,
	}, nil
}

func (f *fakeGenerator) ValidateChoice(_, _ string) error { return nil }

type fakeVectors struct {
	paperVectors map[int64][]float32
	topicVectors map[int64][]float32
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{paperVectors: map[int64][]float32{}, topicVectors: map[int64][]float32{}}
}

func (f *fakeVectors) EnsureCollections(context.Context) error { return nil }

func (f *fakeVectors) UpsertPaperVector(_ context.Context, paperID int64, vector []float32, _ string) error {
	f.paperVectors[paperID] = vector
	return nil
}

func (f *fakeVectors) UpsertTopicVector(_ context.Context, topicID int64, vector []float32, _ string) error {
	f.topicVectors[topicID] = vector
	return nil
}

type fakePaperRepo struct {
	nextID    int64
	papers    map[string]int64
	fulltexts map[int64]string
	analyses  []domain.Analysis
	failOn    string
}

func newFakePaperRepo() *fakePaperRepo {
	return &fakePaperRepo{papers: map[string]int64{}, fulltexts: map[int64]string{}}
}

func (f *fakePaperRepo) UpsertPaper(_ context.Context, _ string, paper domain.FeedPaper) (int64, error) {
	if f.failOn == paper.SourceID {
		return 0, errors.New("database unavailable")
	}
	if id, ok := f.papers[paper.SourceID]; ok {
		return id, nil
	}
	f.nextID++
	f.papers[paper.SourceID] = f.nextID
	return f.nextID, nil
}

func (f *fakePaperRepo) SaveFulltext(_ context.Context, paperID int64, content, _ string) error {
	f.fulltexts[paperID] = content
	return nil
}

func (f *fakePaperRepo) SaveAnalysis(_ context.Context, analysis domain.Analysis) error {
	f.analyses = append(f.analyses, analysis)
	return nil
}

type fakeTopicRepo struct {
	topics []domain.Topic
	err    error
}

func (f *fakeTopicRepo) ListTopics(context.Context) ([]domain.Topic, error) {
	return f.topics, f.err
}

type pipelineFixture struct {
	source    *fakeSource
	downloads *fakeDownloader
	extractor *fakeExtractor
	embedder  *fakeEmbedder
	generator *fakeGenerator
	vectors   *fakeVectors
	papers    *fakePaperRepo
	topics    *fakeTopicRepo
	matches   *fakeMatchRepo
}

func newPipelineFixture() *pipelineFixture {
	return &pipelineFixture{
		source:    &fakeSource{},
		downloads: &fakeDownloader{content: map[string][]byte{}},
		extractor: &fakeExtractor{docs: map[string]domain.ParsedDocument{}},
		embedder:  &fakeEmbedder{},
		generator: &fakeGenerator{},
		vectors:   newFakeVectors(),
		papers:    newFakePaperRepo(),
		topics:    &fakeTopicRepo{},
		matches:   newFakeMatchRepo(),
	}
}

func (f *pipelineFixture) pipeline(summary config.SummaryConfig) *Pipeline {
	return NewPipeline(PipelineDeps{
		Source:    f.source,
		Fetcher:   f.downloads,
		Extractor: f.extractor,
		Pages:     fakePages{},
		Embedder:  f.embedder,
		Generator: f.generator,
		Vectors:   f.vectors,
		Papers:    f.papers,
		Topics:    f.topics,
		Matcher:   NewMatcher(f.matches),
		Logger:    slog.New(slog.DiscardHandler),
	}, 10, summary)
}

func TestProcessTopicsHappyPath(t *testing.T) {
	f := newPipelineFixture()
	f.topics.topics = []domain.Topic{{ID: 1, Name: "LLM Agents", Description: "autonomous agents"}}
	f.source.papers = []domain.FeedPaper{
		{SourceID: "2401.00001v1", Title: "Paper One", Summary: "short abstract", PDFURL: "http://pdf/one"},
		{SourceID: "2401.00002v1", Title: "Paper Two", Summary: "only the feed abstract"},
	}
	f.downloads.content["http://pdf/one"] = []byte("pdf-one")
	f.extractor.docs["pdf-one"] = domain.ParsedDocument{
		Body: []domain.Section{{Paragraphs: []string{"extracted body text"}}},
	}

	pipeline := f.pipeline(config.SummaryConfig{Provider: "ollama", Model: "llama3"})
	require.NoError(t, pipeline.ProcessTopics(context.Background()))

	// Topic embedding covers name and description.
	assert.Contains(t, f.embedder.calls, "LLM Agents\nautonomous agents")
	assert.Len(t, f.vectors.topicVectors, 1)

	// Both papers persisted with text and vectors.
	require.Len(t, f.papers.papers, 2)
	paperOne := f.papers.papers["2401.00001v1"]
	paperTwo := f.papers.papers["2401.00002v1"]
	assert.Equal(t, "extracted body text", f.papers.fulltexts[paperOne])
	assert.Equal(t, "Paper Two\n\nonly the feed abstract", f.papers.fulltexts[paperTwo])
	assert.Len(t, f.vectors.paperVectors, 2)

	// One match per (topic, paper), scores within range.
	require.Len(t, f.matches.matches, 2)
	for _, match := range f.matches.matches {
		assert.GreaterOrEqual(t, match.Score, 0.0)
		assert.LessOrEqual(t, match.Score, 1.0)
		assert.NotEmpty(t, match.Reason)
	}

	// Summaries generated and recorded for both papers.
	require.Len(t, f.papers.analyses, 2)
	for _, analysis := range f.papers.analyses {
		assert.Equal(t, "ok", analysis.Status)
		assert.Equal(t, 30, analysis.Tokens)
		assert.Equal(t, "fake-embed", analysis.EmbedModel)
		assert.NotEmpty(t, analysis.TLDR)
	}
}

func TestProcessTopicsFallsBackToPage(t *testing.T) {
	f := newPipelineFixture()
	f.topics.topics = []domain.Topic{{ID: 1, Name: "Topic"}}
	f.source.papers = []domain.FeedPaper{
		{SourceID: "x1", Title: "HTML Only", HTMLURL: "http://page/one"},
	}
	f.downloads.content["http://page/one"] = []byte("landing page")

	pipeline := f.pipeline(config.SummaryConfig{})
	require.NoError(t, pipeline.ProcessTopics(context.Background()))

	paperID := f.papers.papers["x1"]
	assert.Equal(t, "page: landing page", f.papers.fulltexts[paperID])
}

func TestProcessTopicsIsolatesPaperFailures(t *testing.T) {
	f := newPipelineFixture()
	f.topics.topics = []domain.Topic{{ID: 1, Name: "Topic"}}
	f.source.papers = []domain.FeedPaper{
		{SourceID: "bad", Title: "Broken"},
		{SourceID: "good", Title: "Fine", Summary: "readable"},
	}
	f.papers.failOn = "bad"

	pipeline := f.pipeline(config.SummaryConfig{})
	require.NoError(t, pipeline.ProcessTopics(context.Background()))

	// The broken paper is skipped, the rest of the page still lands.
	assert.NotContains(t, f.papers.papers, "bad")
	assert.Contains(t, f.papers.papers, "good")
	assert.Len(t, f.matches.matches, 1)
}

func TestProcessTopicsIsolatesTopicFailures(t *testing.T) {
	f := newPipelineFixture()
	f.topics.topics = []domain.Topic{
		{ID: 1, Name: "broken-topic"},
		{ID: 2, Name: "working-topic"},
	}
	f.source.papers = []domain.FeedPaper{{SourceID: "p1", Title: "Paper", Summary: "text"}}
	f.embedder.failOn = "broken-topic"

	pipeline := f.pipeline(config.SummaryConfig{})
	require.NoError(t, pipeline.ProcessTopics(context.Background()))

	assert.NotContains(t, f.vectors.topicVectors, int64(1))
	assert.Contains(t, f.vectors.topicVectors, int64(2))
}

func TestProcessTopicsListFailureAborts(t *testing.T) {
	f := newPipelineFixture()
	f.topics.err = errors.New("connection refused")

	pipeline := f.pipeline(config.SummaryConfig{})
	require.Error(t, pipeline.ProcessTopics(context.Background()))
}

func TestSummarySkippedWhenUnconfigured(t *testing.T) {
	f := newPipelineFixture()
	f.topics.topics = []domain.Topic{{ID: 1, Name: "Topic"}}
	f.source.papers = []domain.FeedPaper{{SourceID: "p1", Title: "Paper", Summary: "text"}}

	pipeline := f.pipeline(config.SummaryConfig{})
	require.NoError(t, pipeline.ProcessTopics(context.Background()))

	assert.Zero(t, f.generator.calls)
	assert.Empty(t, f.papers.analyses)
}

func TestSummaryFailureRecordedNotPropagated(t *testing.T) {
	f := newPipelineFixture()
	f.topics.topics = []domain.Topic{{ID: 1, Name: "Topic"}}
	f.source.papers = []domain.FeedPaper{{SourceID: "p1", Title: "Paper", Summary: "text"}}
	f.generator.err = errors.New("model overloaded")

	pipeline := f.pipeline(config.SummaryConfig{Provider: "ollama", Model: "llama3"})
	require.NoError(t, pipeline.ProcessTopics(context.Background()))

	require.Len(t, f.papers.analyses, 1)
	assert.Equal(t, "error", f.papers.analyses[0].Status)
	assert.Contains(t, f.papers.analyses[0].Error, "model overloaded")
	assert.Empty(t, f.papers.analyses[0].TLDR)

	// The match still landed despite the failed summary.
	assert.Len(t, f.matches.matches, 1)
}

func TestFeedErrorStopsTopicOnly(t *testing.T) {
	f := newPipelineFixture()
	f.topics.topics = []domain.Topic{
		{ID: 1, Name: "first"},
		{ID: 2, Name: "second"},
	}
	f.source.papers = []domain.FeedPaper{{SourceID: "p1", Title: "Paper", Summary: "text"}}
	f.source.err = fmt.Errorf("feed returned 503")

	pipeline := f.pipeline(config.SummaryConfig{})
	require.NoError(t, pipeline.ProcessTopics(context.Background()))

	// Papers before the feed error are processed, and both topics run.
	assert.Contains(t, f.papers.papers, "p1")
	assert.Len(t, f.vectors.topicVectors, 2)
}
