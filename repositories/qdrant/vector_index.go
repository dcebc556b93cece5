// Package qdrant implements the vector index over the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/upb/rag-chatbot/models"
	"github.com/upb/rag-chatbot/repositories"
)

// Options configures the Qdrant index
type Options struct {
	URL        string
	APIKey     string
	Collection string
	// VectorSize used when creating the collection; 0 takes the first vector's length
	VectorSize int
	Timeout    time.Duration
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("qdrant http %d: %s", e.StatusCode, e.Body)
}

// VectorIndex stores points in a Qdrant collection configured for cosine distance
type VectorIndex struct {
	options Options
	client  *http.Client
	logger  *zap.Logger

	mu    sync.Mutex
	ready bool
}

// NewVectorIndex creates a Qdrant backed index. The collection is created lazily.
func NewVectorIndex(options Options, logger *zap.Logger) *VectorIndex {
	if options.Timeout == 0 {
		options.Timeout = 15 * time.Second
	}
	options.URL = strings.TrimRight(options.URL, "/")

	return &VectorIndex{
		options: options,
		client: &http.Client{
			Timeout:   options.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

var _ repositories.VectorIndex = (*VectorIndex)(nil)

// Name returns the collection name
func (v *VectorIndex) Name() string {
	return v.options.Collection
}

// Upsert writes points and waits for them to be applied
func (v *VectorIndex) Upsert(ctx context.Context, ids []string, metadatas []models.Metadata, documents []string, embeddings [][]float32) error {
	if err := repositories.CheckArity(ids, metadatas, documents, embeddings); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	if err := v.ensureCollection(ctx, len(embeddings[0])); err != nil {
		return err
	}

	points := make([]qdrantPoint, len(ids))
	for i, id := range ids {
		md := metadatas[i]
		if md == nil {
			md = models.Metadata{}
		}
		points[i] = qdrantPoint{
			ID:     pointID(id),
			Vector: embeddings[i],
			Payload: map[string]any{
				payloadID:       id,
				payloadDocument: documents[i],
				payloadMetadata: map[string]any(md),
			},
		}
	}

	var rsp qdrantEnvelope[json.RawMessage]
	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(v.options.Collection))
	if _, err := v.do(ctx, http.MethodPut, path, map[string]any{"points": points}, &rsp); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	if rsp.Status.Error != "" {
		return fmt.Errorf("failed to upsert points: %s", rsp.Status.Error)
	}

	v.logger.Debug("points upserted", zap.String("collection", v.options.Collection), zap.Int("count", len(ids)))
	return nil
}

// Query returns the k nearest points; distance is 1 - cosine score
func (v *VectorIndex) Query(ctx context.Context, embedding []float32, k int) ([]models.RetrievalMatch, error) {
	if k <= 0 {
		return []models.RetrievalMatch{}, nil
	}

	if err := v.ensureCollection(ctx, len(embedding)); err != nil {
		return nil, err
	}

	req := map[string]any{
		"vector":       embedding,
		"limit":        k,
		"with_payload": true,
		"with_vector":  false,
	}

	var rsp qdrantEnvelope[[]qdrantScoredPoint]
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(v.options.Collection))
	if _, err := v.do(ctx, http.MethodPost, path, req, &rsp); err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	matches := make([]models.RetrievalMatch, 0, len(rsp.Result))
	for _, point := range rsp.Result {
		id, _ := point.Payload[payloadID].(string)
		if id == "" {
			id = fmt.Sprint(point.ID)
		}
		text, _ := point.Payload[payloadDocument].(string)
		md, _ := point.Payload[payloadMetadata].(map[string]any)
		if md == nil {
			md = map[string]any{}
		}

		matches = append(matches, models.RetrievalMatch{
			ID:       id,
			Text:     text,
			Metadata: models.Metadata(md),
			Distance: scoreToDistance(point.Score),
		})
	}

	return matches, nil
}

// ensureCollection checks for the collection and creates it when Qdrant answers 404.
// Success is remembered; failures are retried on the next call.
func (v *VectorIndex) ensureCollection(ctx context.Context, dim int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.ready {
		return nil
	}

	path := fmt.Sprintf("/collections/%s", url.PathEscape(v.options.Collection))

	status, err := v.do(ctx, http.MethodGet, path, nil, nil)
	switch {
	case err == nil:
		v.ready = true
		return nil
	case status != http.StatusNotFound:
		return fmt.Errorf("failed to look up collection %q: %w", v.options.Collection, err)
	}

	size := v.options.VectorSize
	if size == 0 {
		size = dim
	}
	req := map[string]any{
		"vectors": map[string]any{
			"size":     size,
			"distance": "Cosine",
		},
	}

	status, err = v.do(ctx, http.MethodPut, path, req, nil)
	if err != nil && status != http.StatusConflict {
		return fmt.Errorf("failed to create collection %q: %w", v.options.Collection, err)
	}

	v.ready = true
	v.logger.Info("qdrant collection created",
		zap.String("collection", v.options.Collection),
		zap.Int("size", size))
	return nil
}

// do sends a JSON request and decodes the response. The status code is returned even
// on error so callers can branch on it.
func (v *VectorIndex) do(ctx context.Context, method string, path string, req any, rsp any) (int, error) {
	var buf io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return 0, err
		}
		buf = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, v.options.URL+path, buf)
	if err != nil {
		return 0, err
	}

	request.Header.Set("Content-Type", "application/json")
	if len(v.options.APIKey) > 0 {
		request.Header.Set("api-key", v.options.APIKey)
	}

	response, err := v.client.Do(request)
	if err != nil {
		return 0, err
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return response.StatusCode, err
	}

	if response.StatusCode >= 400 {
		return response.StatusCode, &StatusError{StatusCode: response.StatusCode, Body: string(payload)}
	}

	if rsp != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, rsp); err != nil {
			return response.StatusCode, fmt.Errorf("failed to decode qdrant response: %w", err)
		}
	}

	return response.StatusCode, nil
}

// scoreToDistance converts a cosine score to a distance clamped into [0, 2]
func scoreToDistance(score float64) float64 {
	return math.Min(2, math.Max(0, 1-score))
}

// pointID maps an arbitrary record id onto the UUID ids Qdrant accepts
func pointID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}
