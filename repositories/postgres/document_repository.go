package postgres

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/rag-chatbot/models"
	"github.com/upb/rag-chatbot/repositories"
	"github.com/upb/rag-chatbot/services"
)

// DocumentRepository implements the repositories.DocumentRepository interface
type DocumentRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *DB, logger *zap.Logger) repositories.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// FetchDocuments retrieves source documents ordered by id
func (r *DocumentRepository) FetchDocuments(ctx context.Context, limit int) ([]models.SourceDocument, error) {
	query := `
		SELECT id::text, COALESCE(title, ''), COALESCE(content, ''), metadata
		FROM documents
		ORDER BY id`

	args := []any{}
	if limit > 0 {
		query += "\n\t\tLIMIT $1"
		args = append(args, limit)
	}

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}
	defer rows.Close()

	docs := []models.SourceDocument{}
	for rows.Next() {
		var doc models.SourceDocument
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if doc.Metadata == nil {
			doc.Metadata = models.Metadata{}
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	r.logger.Debug("documents fetched", zap.Int("count", len(docs)), zap.Int("limit", limit))
	return docs, nil
}

// UpsertDocument inserts a document or replaces the one with the same id
func (r *DocumentRepository) UpsertDocument(ctx context.Context, doc *models.SourceDocument) error {
	if doc == nil || strings.TrimSpace(doc.ID) == "" {
		return services.NewInvalidRequest("document id is required")
	}

	query := `
		INSERT INTO documents (id, title, content, metadata, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			updated_at = CURRENT_TIMESTAMP`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		doc.ID,
		doc.Title,
		doc.Content,
		doc.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	r.logger.Debug("document upserted", zap.String("id", doc.ID))
	return nil
}
