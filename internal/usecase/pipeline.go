package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"trendsurf/internal/config"
	"trendsurf/internal/domain"
	"trendsurf/internal/ports"
)

const sourceArxiv = "arxiv"

const matchReason = "cosine similarity vs topic embedding"

// PipelineDeps bundles everything the ingestion pipeline touches.
type PipelineDeps struct {
	Source    ports.PaperSource
	Fetcher   ports.Downloader
	Extractor ports.Extractor
	Pages     ports.PageExtractor
	Embedder  ports.Embedder
	Generator ports.Generator
	Vectors   ports.VectorStore
	Papers    ports.PaperRepository
	Topics    ports.TopicRepository
	Matcher   *Matcher
	Logger    *slog.Logger
}

// Pipeline drives one ingestion run: crawl each topic's feed, persist and
// enrich every paper, score it against the topic.
type Pipeline struct {
	deps     PipelineDeps
	pageSize int
	summary  config.SummaryConfig
}

// NewPipeline wires the pipeline.
func NewPipeline(deps PipelineDeps, pageSize int, summary config.SummaryConfig) *Pipeline {
	return &Pipeline{deps: deps, pageSize: pageSize, summary: summary}
}

// ProcessTopics runs the full pipeline once. Failures are isolated: a broken
// paper or topic is logged and skipped, never aborting the run. The returned
// error reports only whether the topic list itself could be loaded.
func (p *Pipeline) ProcessTopics(ctx context.Context) error {
	topics, err := p.deps.Topics.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.processTopic(ctx, topic); err != nil {
			p.deps.Logger.Error("topic processing failed",
				slog.Int64("topic_id", topic.ID),
				slog.String("topic", topic.Name),
				slog.Any("error", err))
		}
	}
	return nil
}

func (p *Pipeline) processTopic(ctx context.Context, topic domain.Topic) error {
	topicVec, err := p.embedTopic(ctx, topic)
	if err != nil {
		return err
	}

	for paper, err := range p.deps.Source.IterateTopic(ctx, topic.Filters, p.pageSize) {
		if err != nil {
			return fmt.Errorf("crawl feed: %w", err)
		}
		if err := p.processPaper(ctx, topic, topicVec, paper); err != nil {
			p.deps.Logger.Warn("paper skipped",
				slog.Int64("topic_id", topic.ID),
				slog.String("source_id", paper.SourceID),
				slog.Any("error", err))
		}
	}
	return nil
}

func (p *Pipeline) embedTopic(ctx context.Context, topic domain.Topic) ([]float32, error) {
	text := topic.Name
	if topic.Description != "" {
		text += "\n" + topic.Description
	}

	vectors, err := p.deps.Embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed topic: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed topic: backend returned no vector")
	}

	if err := p.deps.Vectors.UpsertTopicVector(ctx, topic.ID, vectors[0], p.deps.Embedder.ModelName()); err != nil {
		return nil, fmt.Errorf("store topic vector: %w", err)
	}
	return vectors[0], nil
}

func (p *Pipeline) processPaper(ctx context.Context, topic domain.Topic, topicVec []float32, paper domain.FeedPaper) error {
	paperID, err := p.deps.Papers.UpsertPaper(ctx, sourceArxiv, paper)
	if err != nil {
		return fmt.Errorf("persist paper: %w", err)
	}

	text := p.resolveText(ctx, paper)

	checksum := sha256.Sum256([]byte(text))
	if err := p.deps.Papers.SaveFulltext(ctx, paperID, text, hex.EncodeToString(checksum[:])); err != nil {
		return fmt.Errorf("persist fulltext: %w", err)
	}

	vectors, err := p.deps.Embedder.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed paper: %w", err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("embed paper: backend returned no vector")
	}
	paperVec := vectors[0]

	if err := p.deps.Vectors.UpsertPaperVector(ctx, paperID, paperVec, p.deps.Embedder.ModelName()); err != nil {
		return fmt.Errorf("store paper vector: %w", err)
	}

	if err := p.deps.Matcher.Upsert(ctx, topic.ID, paperID, Score(topicVec, paperVec), matchReason); err != nil {
		return fmt.Errorf("persist match: %w", err)
	}

	p.summarize(ctx, paperID, paper, text)
	return nil
}

// resolveText extracts the richest text available for a paper: structured PDF
// full text first, then the HTML landing page, finally the feed title and
// abstract.
func (p *Pipeline) resolveText(ctx context.Context, paper domain.FeedPaper) string {
	if paper.PDFURL != "" {
		if doc, err := p.deps.Fetcher.Fetch(ctx, paper.PDFURL); err != nil {
			p.deps.Logger.Debug("pdf fetch failed",
				slog.String("source_id", paper.SourceID), slog.Any("error", err))
		} else if parsed, err := p.deps.Extractor.Extract(ctx, doc.Content); err != nil {
			p.deps.Logger.Debug("structure extraction failed",
				slog.String("source_id", paper.SourceID), slog.Any("error", err))
		} else if body := parsed.ConcatenatedBody(); body != "" {
			return body
		}
	}

	if paper.HTMLURL != "" {
		if doc, err := p.deps.Fetcher.Fetch(ctx, paper.HTMLURL); err != nil {
			p.deps.Logger.Debug("page fetch failed",
				slog.String("source_id", paper.SourceID), slog.Any("error", err))
		} else if parsed, err := p.deps.Pages.ExtractPage(doc.Content); err != nil {
			p.deps.Logger.Debug("page extraction failed",
				slog.String("source_id", paper.SourceID), slog.Any("error", err))
		} else if body := parsed.ConcatenatedBody(); body != "" {
			return body
		}
	}

	return strings.TrimSpace(paper.Title + "\n\n" + paper.Summary)
}

// summarize generates and stores a short analysis when a summary model is
// configured. Failures are recorded in the analyses table, not propagated.
func (p *Pipeline) summarize(ctx context.Context, paperID int64, paper domain.FeedPaper, text string) {
	if p.summary.Model == "" {
		return
	}

	prompt := fmt.Sprintf("Title: %s\n\n%s", paper.Title, text)
	started := time.Now()
	result, err := p.deps.Generator.Generate(ctx, p.summary.Provider, p.summary.Model, prompt, domain.GenerationOptions{
		System: p.summary.SystemPrompt,
	})
	latency := int(time.Since(started).Milliseconds())

	analysis := domain.Analysis{
		PaperID:    paperID,
		Provider:   p.summary.Provider,
		GenModel:   p.summary.Model,
		EmbedModel: p.deps.Embedder.ModelName(),
		LatencyMS:  latency,
		Status:     "ok",
	}
	if err != nil {
		analysis.Status = "error"
		analysis.Error = err.Error()
	} else {
		analysis.TLDR = result.Content
		analysis.GenModel = result.Model
		if result.PromptTokens != nil {
			analysis.Tokens += *result.PromptTokens
		}
		if result.CompletionTokens != nil {
			analysis.Tokens += *result.CompletionTokens
		}
	}

	if err := p.deps.Papers.SaveAnalysis(ctx, analysis); err != nil {
		p.deps.Logger.Warn("analysis not saved",
			slog.Int64("paper_id", paperID), slog.Any("error", err))
	}
}
