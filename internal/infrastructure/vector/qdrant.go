package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trendsurf/internal/config"
	"trendsurf/internal/ports"
)

// Client is a thin REST client for the Qdrant collections and points API.
type Client struct {
	baseURL    string
	apiKey     string
	papers     string
	topics     string
	dimensions int
	client     *http.Client
}

var _ ports.VectorStore = (*Client)(nil)

// collectionProfile tunes one collection. Papers get more segments and a
// wider neighbor graph than topics, reflecting their larger cardinality.
type collectionProfile struct {
	segments    int
	m           int
	efConstruct int
	idField     string
}

// NewClient builds a client from configuration; the index URL is required.
func NewClient(cfg config.QdrantConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant url is not configured")
	}

	papers := cfg.PapersCollection
	if papers == "" {
		papers = "paper_vectors"
	}
	topics := cfg.TopicsCollection
	if topics == "" {
		topics = "topic_vectors"
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = 1536
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		papers:     papers,
		topics:     topics,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// EnsureCollections provisions the two required collections. Strictly
// additive: collections that already exist are left untouched even if their
// live configuration differs, so re-running on every startup is safe.
func (c *Client) EnsureCollections(ctx context.Context) error {
	existing, err := c.listCollections(ctx)
	if err != nil {
		return err
	}

	wanted := []struct {
		name    string
		profile collectionProfile
	}{
		{c.papers, collectionProfile{segments: 2, m: 32, efConstruct: 256, idField: "paper_id"}},
		{c.topics, collectionProfile{segments: 1, m: 24, efConstruct: 128, idField: "topic_id"}},
	}

	for _, collection := range wanted {
		if existing[collection.name] {
			continue
		}
		if err := c.createCollection(ctx, collection.name, collection.profile); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPaperVector writes one paper embedding with its payload.
func (c *Client) UpsertPaperVector(ctx context.Context, paperID int64, vector []float32, modelName string) error {
	return c.upsertPoint(ctx, c.papers, paperID, vector, map[string]any{
		"paper_id":   paperID,
		"model_name": modelName,
		"dim":        len(vector),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// UpsertTopicVector writes one topic embedding with its payload.
func (c *Client) UpsertTopicVector(ctx context.Context, topicID int64, vector []float32, modelName string) error {
	return c.upsertPoint(ctx, c.topics, topicID, vector, map[string]any{
		"topic_id":   topicID,
		"model_name": modelName,
		"dim":        len(vector),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *Client) listCollections(ctx context.Context) (map[string]bool, error) {
	var out struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections", nil, &out); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	existing := make(map[string]bool, len(out.Result.Collections))
	for _, collection := range out.Result.Collections {
		existing[collection.Name] = true
	}
	return existing, nil
}

func (c *Client) createCollection(ctx context.Context, name string, profile collectionProfile) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     c.dimensions,
			"distance": "Cosine",
		},
		"optimizers_config": map[string]any{
			"default_segment_number": profile.segments,
		},
		"hnsw_config": map[string]any{
			"m":            profile.m,
			"ef_construct": profile.efConstruct,
		},
		"on_disk_payload": true,
		"shard_number":    2,
	}
	if err := c.do(ctx, http.MethodPut, "/collections/"+name, body, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}

	fields := []struct {
		name   string
		schema string
	}{
		{profile.idField, "integer"},
		{"model_name", "keyword"},
		{"dim", "integer"},
		{"created_at", "datetime"},
	}
	for _, field := range fields {
		body := map[string]any{
			"field_name":   field.name,
			"field_schema": field.schema,
		}
		if err := c.do(ctx, http.MethodPut, "/collections/"+name+"/index", body, nil); err != nil {
			return fmt.Errorf("create payload index %s.%s: %w", name, field.name, err)
		}
	}
	return nil
}

func (c *Client) upsertPoint(ctx context.Context, collection string, id int64, vector []float32, payload map[string]any) error {
	body := map[string]any{
		"points": []map[string]any{
			{
				"id":      id,
				"vector":  vector,
				"payload": payload,
			},
		},
	}
	if err := c.do(ctx, http.MethodPut, "/collections/"+collection+"/points", body, nil); err != nil {
		return fmt.Errorf("upsert point into %s: %w", collection, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("qdrant error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
