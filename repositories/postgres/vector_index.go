package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/upb/rag-chatbot/models"
	"github.com/upb/rag-chatbot/repositories"
)

// VectorIndex stores embeddings in the rag_embeddings table and searches them with
// the pgvector cosine distance operator.
type VectorIndex struct {
	db     *DB
	txm    repositories.TransactionManager
	name   string
	logger *zap.Logger

	mu    sync.Mutex
	ready bool
}

// NewVectorIndex creates a pgvector backed index for the named collection
func NewVectorIndex(db *DB, name string, logger *zap.Logger) repositories.VectorIndex {
	return &VectorIndex{
		db:     db,
		txm:    NewTransactionManager(db, logger),
		name:   name,
		logger: logger,
	}
}

// Name returns the collection name
func (v *VectorIndex) Name() string {
	return v.name
}

// ensureCollection creates the collection row if it is absent. Success is remembered;
// failures are retried on the next call.
func (v *VectorIndex) ensureCollection(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.ready {
		return nil
	}

	query := `INSERT INTO rag_collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`
	if _, err := v.db.ExecContext(ctx, query, v.name); err != nil {
		return fmt.Errorf("failed to ensure collection %q: %w", v.name, err)
	}

	v.ready = true
	v.logger.Debug("collection ready", zap.String("collection", v.name))
	return nil
}

// Upsert writes all records in a single transaction
func (v *VectorIndex) Upsert(ctx context.Context, ids []string, metadatas []models.Metadata, documents []string, embeddings [][]float32) error {
	if err := repositories.CheckArity(ids, metadatas, documents, embeddings); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	if err := v.ensureCollection(ctx); err != nil {
		return err
	}

	query := `
		INSERT INTO rag_embeddings (collection, id, document, metadata, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		ON CONFLICT (collection, id) DO UPDATE SET
			document = EXCLUDED.document,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			updated_at = CURRENT_TIMESTAMP`

	err := v.txm.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		stmt, err := GetExecutor(txCtx, v.db).PrepareContext(txCtx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for i := range ids {
			if _, err := stmt.ExecContext(txCtx,
				v.name,
				ids[i],
				documents[i],
				metadatas[i],
				pgvector.NewVector(embeddings[i]),
			); err != nil {
				return fmt.Errorf("failed to upsert embedding %q: %w", ids[i], err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	v.logger.Debug("embeddings upserted", zap.String("collection", v.name), zap.Int("count", len(ids)))
	return nil
}

// Query returns the k nearest records by cosine distance
func (v *VectorIndex) Query(ctx context.Context, embedding []float32, k int) ([]models.RetrievalMatch, error) {
	if k <= 0 {
		return []models.RetrievalMatch{}, nil
	}

	if err := v.ensureCollection(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, document, metadata, embedding <=> $2 AS distance
		FROM rag_embeddings
		WHERE collection = $1
		ORDER BY distance, id
		LIMIT $3`

	rows, err := v.db.QueryContext(ctx, query, v.name, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	matches := []models.RetrievalMatch{}
	for rows.Next() {
		var m models.RetrievalMatch
		if err := rows.Scan(&m.ID, &m.Text, &m.Metadata, &m.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		if m.Metadata == nil {
			m.Metadata = models.Metadata{}
		}
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}

	return matches, nil
}
