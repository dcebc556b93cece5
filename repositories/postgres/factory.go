package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/upb/rag-chatbot/config"
	"github.com/upb/rag-chatbot/repositories"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory opens the database and creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	return NewRepositoryFactoryWithDB(db, logger), nil
}

// NewRepositoryFactoryWithDB creates a factory over an existing connection
func NewRepositoryFactoryWithDB(db *DB, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{db: db, logger: logger}
}

// InitSchema creates the tables the repositories rely on
func (f *RepositoryFactory) InitSchema(ctx context.Context, withVectors bool) error {
	return f.db.InitSchema(ctx, withVectors)
}

// NewRepositories creates the document repository and a pgvector index for the collection
func (f *RepositoryFactory) NewRepositories(collection string) *repositories.Repositories {
	return &repositories.Repositories{
		Documents:   NewDocumentRepository(f.db, f.logger),
		VectorIndex: NewVectorIndex(f.db, collection, f.logger),
	}
}

// GetTransactionManager returns a transaction manager
func (f *RepositoryFactory) GetTransactionManager() repositories.TransactionManager {
	return NewTransactionManager(f.db, f.logger)
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
