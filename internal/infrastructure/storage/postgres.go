package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"trendsurf/internal/domain"
	"trendsurf/internal/ports"
)

// Repository persists papers, topics, matches and job outcomes in Postgres.
type Repository struct {
	db *sql.DB
	sb squirrel.StatementBuilderType
}

var (
	_ ports.PaperRepository = (*Repository)(nil)
	_ ports.TopicRepository = (*Repository)(nil)
	_ ports.MatchRepository = (*Repository)(nil)
	_ ports.JobRepository   = (*Repository)(nil)
)

// NewRepository wires a sql.DB implementation.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// UpsertPaper inserts or refreshes the paper keyed by (source, source_id) and
// returns its database id.
func (r *Repository) UpsertPaper(ctx context.Context, source string, paper domain.FeedPaper) (int64, error) {
	meta, err := json.Marshal(paper.Raw)
	if err != nil {
		return 0, fmt.Errorf("marshal paper metadata: %w", err)
	}

	query := r.sb.Insert("papers").
		Columns("source", "source_id", "title", "authors", "abstract",
			"published_at", "updated_at_source", "url_pdf", "url_page",
			"primary_category", "meta_json").
		Values(source, paper.SourceID, paper.Title, pq.StringArray(paper.Authors), paper.Summary,
			paper.PublishedAt, paper.UpdatedAt, nullable(paper.PDFURL), nullable(paper.HTMLURL),
			nullable(paper.PrimaryCategory), meta).
		Suffix(`ON CONFLICT (source, source_id) DO UPDATE
			SET title = EXCLUDED.title,
			    abstract = EXCLUDED.abstract,
			    updated_at_source = EXCLUDED.updated_at_source,
			    url_pdf = EXCLUDED.url_pdf,
			    url_page = EXCLUDED.url_page,
			    updated_at = NOW()
			RETURNING id`)

	var id int64
	if err := query.RunWith(r.db).QueryRowContext(ctx).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert paper %s: %w", paper.SourceID, err)
	}
	return id, nil
}

// SaveFulltext upserts the extracted full text for one paper.
func (r *Repository) SaveFulltext(ctx context.Context, paperID int64, content, checksum string) error {
	query := r.sb.Insert("paper_fulltexts").
		Columns("paper_id", "content", "checksum").
		Values(paperID, content, checksum).
		Suffix(`ON CONFLICT (paper_id) DO UPDATE
			SET content = EXCLUDED.content,
			    checksum = EXCLUDED.checksum,
			    updated_at = NOW()`)

	if _, err := query.RunWith(r.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("save fulltext for paper %d: %w", paperID, err)
	}
	return nil
}

// SaveAnalysis records the outcome of one generation run.
func (r *Repository) SaveAnalysis(ctx context.Context, analysis domain.Analysis) error {
	query := r.sb.Insert("analyses").
		Columns("paper_id", "tldr", "provider", "gen_model", "embed_model",
			"tokens", "latency_ms", "status", "error").
		Values(analysis.PaperID, nullable(analysis.TLDR), nullable(analysis.Provider),
			nullable(analysis.GenModel), nullable(analysis.EmbedModel),
			analysis.Tokens, analysis.LatencyMS, nullable(analysis.Status), nullable(analysis.Error))

	if _, err := query.RunWith(r.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("save analysis for paper %d: %w", analysis.PaperID, err)
	}
	return nil
}

// ListTopics returns all topics with their crawl filters.
func (r *Repository) ListTopics(ctx context.Context) ([]domain.Topic, error) {
	query := r.sb.Select("id", "name", "description", "filters_json").
		From("topics").
		OrderBy("id")

	rows, err := query.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var topics []domain.Topic
	for rows.Next() {
		var (
			topic       domain.Topic
			description sql.NullString
			filters     []byte
		)
		if err := rows.Scan(&topic.ID, &topic.Name, &description, &filters); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topic.Description = description.String
		if len(filters) > 0 {
			if err := json.Unmarshal(filters, &topic.Filters); err != nil {
				return nil, fmt.Errorf("decode filters for topic %d: %w", topic.ID, err)
			}
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}

	return topics, nil
}

// UpsertMatch writes or overwrites the unique (topic_id, paper_id) row.
// Last-write-wins across concurrent writers comes from the composite-key
// constraint, not from any in-process lock.
func (r *Repository) UpsertMatch(ctx context.Context, match domain.TopicMatch) error {
	query := r.sb.Insert("topic_matches").
		Columns("topic_id", "paper_id", "score", "reason").
		Values(match.TopicID, match.PaperID, match.Score, nullable(match.Reason)).
		Suffix(`ON CONFLICT (topic_id, paper_id) DO UPDATE
			SET score = EXCLUDED.score,
			    reason = EXCLUDED.reason`)

	if _, err := query.RunWith(r.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("upsert match (%d, %d): %w", match.TopicID, match.PaperID, err)
	}
	return nil
}

// RecordRun upserts the last-run status of a named job.
func (r *Repository) RecordRun(ctx context.Context, name string, runAt time.Time, status string, runErr error) error {
	var lastError any
	if runErr != nil {
		lastError = runErr.Error()
	}

	query := r.sb.Insert("jobs").
		Columns("name", "last_run_at", "last_status", "last_error").
		Values(name, runAt, status, lastError).
		Suffix(`ON CONFLICT (name) DO UPDATE
			SET last_run_at = EXCLUDED.last_run_at,
			    last_status = EXCLUDED.last_status,
			    last_error = EXCLUDED.last_error,
			    updated_at = NOW()`)

	if _, err := query.RunWith(r.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("record run for job %s: %w", name, err)
	}
	return nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
