package usecase

import (
	"context"
	"math"
	"time"

	"trendsurf/internal/domain"
	"trendsurf/internal/ports"
)

// Matcher computes topic relevance scores and persists them.
type Matcher struct {
	matches ports.MatchRepository
}

// NewMatcher wires the match repository.
func NewMatcher(matches ports.MatchRepository) *Matcher {
	return &Matcher{matches: matches}
}

// Score maps cosine similarity between two embeddings into [0, 1]. Equal
// inputs score 1, opposed inputs 0; degenerate vectors land at the 0.5
// midpoint rather than erroring.
func Score(topicVec, paperVec []float32) float64 {
	return clamp((cosine(topicVec, paperVec)+1)/2, 0, 1)
}

// Upsert records a score for the (topic, paper) pair, clamping it before
// persistence so the store's range constraint can never trip.
func (m *Matcher) Upsert(ctx context.Context, topicID, paperID int64, score float64, reason string) error {
	return m.matches.UpsertMatch(ctx, domain.TopicMatch{
		TopicID:   topicID,
		PaperID:   paperID,
		Score:     clamp(score, 0, 1),
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	})
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
