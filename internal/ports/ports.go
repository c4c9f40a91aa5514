package ports

import (
	"context"
	"iter"
	"time"

	"trendsurf/internal/domain"
)

// PaperSource pulls paper records for a topic from the upstream feed. The
// returned sequence is finite, lazily advancing and not restartable.
type PaperSource interface {
	IterateTopic(ctx context.Context, filters domain.TopicFilters, pageSize int) iter.Seq2[domain.FeedPaper, error]
}

// Downloader fetches binary documents (PDFs, landing pages) with retries.
type Downloader interface {
	Fetch(ctx context.Context, url string) (domain.FetchedDocument, error)
}

// Extractor sends a binary document to the structuring service and parses
// the returned markup.
type Extractor interface {
	Extract(ctx context.Context, doc []byte) (domain.ParsedDocument, error)
}

// PageExtractor recovers readable text from an HTML landing page, used when
// a feed entry carries no PDF link.
type PageExtractor interface {
	ExtractPage(content []byte) (domain.ParsedDocument, error)
}

// Embedder turns texts into vectors, positionally aligned with the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// Generator produces completions after enforcing the provider/model
// allowlist. ValidateChoice is the standalone policy check the request layer
// calls before accepting a user-chosen pair.
type Generator interface {
	Generate(ctx context.Context, provider, model, prompt string, opts domain.GenerationOptions) (domain.CompletionResult, error)
	ValidateChoice(provider, model string) error
}

// PaperRepository persists crawled papers and their derived artifacts.
type PaperRepository interface {
	UpsertPaper(ctx context.Context, source string, paper domain.FeedPaper) (int64, error)
	SaveFulltext(ctx context.Context, paperID int64, content, checksum string) error
	SaveAnalysis(ctx context.Context, analysis domain.Analysis) error
}

// TopicRepository exposes the user-defined topics driving each run.
type TopicRepository interface {
	ListTopics(ctx context.Context) ([]domain.Topic, error)
}

// MatchRepository upserts relevance scores keyed by (topic_id, paper_id).
// Conflict resolution across concurrent writers is delegated to the store's
// composite-key constraint.
type MatchRepository interface {
	UpsertMatch(ctx context.Context, match domain.TopicMatch) error
}

// JobRepository records the last outcome of a named scheduled run.
type JobRepository interface {
	RecordRun(ctx context.Context, name string, runAt time.Time, status string, runErr error) error
}

// VectorStore provisions and fills the external vector index.
type VectorStore interface {
	EnsureCollections(ctx context.Context) error
	UpsertPaperVector(ctx context.Context, paperID int64, vector []float32, modelName string) error
	UpsertTopicVector(ctx context.Context, topicID int64, vector []float32, modelName string) error
}

// Scheduler controls when the ingestion pipeline executes.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
