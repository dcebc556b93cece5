// Package memory holds an in-process vector index used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/upb/rag-chatbot/models"
	"github.com/upb/rag-chatbot/repositories"
)

type record struct {
	text      string
	metadata  models.Metadata
	embedding []float32
}

// VectorIndex is a brute-force cosine index kept in memory
type VectorIndex struct {
	name    string
	logger  *zap.Logger
	records map[string]record
	mtx     sync.RWMutex
}

// NewVectorIndex creates an empty index for the named collection
func NewVectorIndex(name string, logger *zap.Logger) *VectorIndex {
	return &VectorIndex{
		name:    name,
		logger:  logger,
		records: map[string]record{},
	}
}

var _ repositories.VectorIndex = (*VectorIndex)(nil)

// Name returns the collection name
func (v *VectorIndex) Name() string {
	return v.name
}

// Len returns the number of stored records
func (v *VectorIndex) Len() int {
	v.mtx.RLock()
	defer v.mtx.RUnlock()
	return len(v.records)
}

// IDs returns the stored ids, sorted
func (v *VectorIndex) IDs() []string {
	v.mtx.RLock()
	defer v.mtx.RUnlock()

	ids := make([]string, 0, len(v.records))
	for id := range v.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Upsert stores copies of the given records, replacing existing ids
func (v *VectorIndex) Upsert(ctx context.Context, ids []string, metadatas []models.Metadata, documents []string, embeddings [][]float32) error {
	if err := repositories.CheckArity(ids, metadatas, documents, embeddings); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mtx.Lock()
	defer v.mtx.Unlock()

	for i, id := range ids {
		cpy := make([]float32, len(embeddings[i]))
		copy(cpy, embeddings[i])

		md := metadatas[i].Clone()
		if md == nil {
			md = models.Metadata{}
		}

		v.records[id] = record{
			text:      documents[i],
			metadata:  md,
			embedding: cpy,
		}
	}

	v.logger.Debug("embeddings upserted", zap.String("collection", v.name), zap.Int("count", len(ids)))
	return nil
}

// Query returns the k nearest records, ties broken by id
func (v *VectorIndex) Query(ctx context.Context, embedding []float32, k int) ([]models.RetrievalMatch, error) {
	if k <= 0 {
		return []models.RetrievalMatch{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.mtx.RLock()
	defer v.mtx.RUnlock()

	candidates := make([]models.RetrievalMatch, 0, len(v.records))
	for id, rec := range v.records {
		if len(rec.embedding) != len(embedding) {
			return nil, fmt.Errorf("failed to query collection %q: dimension %d does not match stored dimension %d",
				v.name, len(embedding), len(rec.embedding))
		}
		candidates = append(candidates, models.RetrievalMatch{
			ID:       id,
			Text:     rec.text,
			Metadata: rec.metadata.Clone(),
			Distance: CosineDistance(embedding, rec.embedding),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].ID < candidates[j].ID
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	return candidates, nil
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	d := 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
	// Clamp rounding drift into [0, 2]
	return math.Min(2, math.Max(0, d))
}
