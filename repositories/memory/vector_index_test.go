package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/rag-chatbot/models"
	"github.com/upb/rag-chatbot/services"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"scaled", []float32{2, 2}, []float32{1, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
		{"length mismatch", []float32{1}, []float32{1, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineDistance(tt.a, tt.b), 1e-9)
		})
	}
}

func TestVectorIndex_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	index := NewVectorIndex("rag_collection", zap.NewNop())

	err := index.Upsert(ctx,
		[]string{"near", "far", "mid"},
		[]models.Metadata{{"title": "A"}, {"title": "B"}, nil},
		[]string{"near text", "far text", "mid text"},
		[][]float32{{1, 0}, {-1, 0}, {1, 1}},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, index.Len())
	assert.Equal(t, "rag_collection", index.Name())

	matches, err := index.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "near", matches[0].ID)
	assert.Equal(t, "near text", matches[0].Text)
	assert.Equal(t, models.Metadata{"title": "A"}, matches[0].Metadata)
	assert.InDelta(t, 0, matches[0].Distance, 1e-9)
	assert.Equal(t, "mid", matches[1].ID)
	assert.Equal(t, models.Metadata{}, matches[1].Metadata)
	assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)
}

func TestVectorIndex_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	index := NewVectorIndex("c", zap.NewNop())

	require.NoError(t, index.Upsert(ctx, []string{"x"}, []models.Metadata{{"v": 1}}, []string{"old"}, [][]float32{{1, 0}}))
	require.NoError(t, index.Upsert(ctx, []string{"x"}, []models.Metadata{{"v": 2}}, []string{"new"}, [][]float32{{0, 1}}))

	assert.Equal(t, 1, index.Len())
	matches, err := index.Query(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new", matches[0].Text)
	assert.Equal(t, models.Metadata{"v": 2}, matches[0].Metadata)
	assert.InDelta(t, 0, matches[0].Distance, 1e-9)
}

func TestVectorIndex_StoresCopies(t *testing.T) {
	ctx := context.Background()
	index := NewVectorIndex("c", zap.NewNop())

	vec := []float32{1, 0}
	md := models.Metadata{"k": "v"}
	require.NoError(t, index.Upsert(ctx, []string{"x"}, []models.Metadata{md}, []string{"t"}, [][]float32{vec}))

	vec[0] = -1
	md["k"] = "changed"

	matches, err := index.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0, matches[0].Distance, 1e-9)
	assert.Equal(t, "v", matches[0].Metadata["k"])

	matches[0].Metadata["k"] = "mutated"
	again, err := index.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "v", again[0].Metadata["k"])
}

func TestVectorIndex_TiesBrokenByID(t *testing.T) {
	ctx := context.Background()
	index := NewVectorIndex("c", zap.NewNop())

	require.NoError(t, index.Upsert(ctx,
		[]string{"b", "a", "c"},
		[]models.Metadata{{}, {}, {}},
		[]string{"b", "a", "c"},
		[][]float32{{1, 0}, {1, 0}, {1, 0}},
	))

	for i := 0; i < 5; i++ {
		matches, err := index.Query(ctx, []float32{1, 0}, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, []string{matches[0].ID, matches[1].ID, matches[2].ID})
	}
}

func TestVectorIndex_EdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("empty collection", func(t *testing.T) {
		index := NewVectorIndex("c", zap.NewNop())
		matches, err := index.Query(ctx, []float32{1, 0}, 3)
		require.NoError(t, err)
		assert.NotNil(t, matches)
		assert.Empty(t, matches)
	})

	t.Run("non-positive k", func(t *testing.T) {
		index := NewVectorIndex("c", zap.NewNop())
		require.NoError(t, index.Upsert(ctx, []string{"x"}, []models.Metadata{{}}, []string{"t"}, [][]float32{{1}}))

		matches, err := index.Query(ctx, []float32{1}, 0)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("arity mismatch", func(t *testing.T) {
		index := NewVectorIndex("c", zap.NewNop())
		err := index.Upsert(ctx, []string{"x", "y"}, []models.Metadata{{}}, []string{"t", "u"}, [][]float32{{1}, {2}})
		require.Error(t, err)
		assert.True(t, services.IsArityMismatchError(err))
		assert.Zero(t, index.Len())
	})

	t.Run("empty upsert", func(t *testing.T) {
		index := NewVectorIndex("c", zap.NewNop())
		require.NoError(t, index.Upsert(ctx, nil, nil, nil, nil))
		assert.Zero(t, index.Len())
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		index := NewVectorIndex("c", zap.NewNop())
		require.NoError(t, index.Upsert(ctx, []string{"x"}, []models.Metadata{{}}, []string{"t"}, [][]float32{{1, 0}}))

		_, err := index.Query(ctx, []float32{1, 0, 0}, 1)
		require.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		index := NewVectorIndex("c", zap.NewNop())
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := index.Query(cctx, []float32{1}, 1)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestVectorIndex_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	index := NewVectorIndex("c", zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("id-%d", i)
			_ = index.Upsert(ctx, []string{id}, []models.Metadata{{}}, []string{id}, [][]float32{{float32(i), 1}})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = index.Query(ctx, []float32{1, 1}, 3)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, index.Len())
	assert.Len(t, index.IDs(), 10)
}
