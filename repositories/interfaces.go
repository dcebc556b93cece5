package repositories

import (
	"context"

	"github.com/upb/rag-chatbot/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// DocumentRepository reads the source documents that feed ingestion
type DocumentRepository interface {
	// FetchDocuments returns documents ordered by id. A positive limit caps the result.
	FetchDocuments(ctx context.Context, limit int) ([]models.SourceDocument, error)

	// UpsertDocument inserts or replaces a source document
	UpsertDocument(ctx context.Context, doc *models.SourceDocument) error
}

// VectorIndex is a named collection of embedded chunks searchable by cosine distance
type VectorIndex interface {
	// Name returns the collection name
	Name() string

	// Upsert inserts or replaces records by id. All four slices must have equal length.
	Upsert(ctx context.Context, ids []string, metadatas []models.Metadata, documents []string, embeddings [][]float32) error

	// Query returns at most k matches ordered by ascending distance
	Query(ctx context.Context, embedding []float32, k int) ([]models.RetrievalMatch, error)
}

// Repositories holds the repository instances used by the application
type Repositories struct {
	Documents   DocumentRepository
	VectorIndex VectorIndex
}
