// Package ingestion turns source documents into embedded chunks in the vector index.
package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/rag-chatbot/internal/chunker"
	"github.com/upb/rag-chatbot/models"
	"github.com/upb/rag-chatbot/repositories"
	"github.com/upb/rag-chatbot/services"
	"github.com/upb/rag-chatbot/services/providers"
)

// IngestionService reads documents, chunks them and writes embedded batches
type IngestionService struct {
	documents repositories.DocumentRepository
	index     repositories.VectorIndex
	embedder  providers.Embedder
	chunker   *chunker.Chunker
	batchSize int
	logger    *zap.Logger
}

// NewIngestionService creates a new ingestion service. The batch size is capped by
// what the embedder accepts in one call.
func NewIngestionService(
	documents repositories.DocumentRepository,
	index repositories.VectorIndex,
	embedder providers.Embedder,
	splitter *chunker.Chunker,
	batchSize int,
	logger *zap.Logger,
) *IngestionService {
	if maxBatch := embedder.MaxBatch(); maxBatch > 0 && (batchSize <= 0 || batchSize > maxBatch) {
		batchSize = maxBatch
	}
	if batchSize <= 0 {
		batchSize = 64
	}

	return &IngestionService{
		documents: documents,
		index:     index,
		embedder:  embedder,
		chunker:   splitter,
		batchSize: batchSize,
		logger:    logger,
	}
}

// BatchSize returns the effective flush size
func (s *IngestionService) BatchSize() int {
	return s.batchSize
}

// batch accumulates chunks until a flush
type batch struct {
	ids       []string
	metadatas []models.Metadata
	texts     []string
}

func (b *batch) add(id string, md models.Metadata, text string) {
	b.ids = append(b.ids, id)
	b.metadatas = append(b.metadatas, md)
	b.texts = append(b.texts, text)
}

func (b *batch) len() int {
	return len(b.texts)
}

func (b *batch) reset() {
	b.ids = nil
	b.metadatas = nil
	b.texts = nil
}

// Run ingests up to limit documents (all when limit <= 0). On failure the summary
// of the work already flushed is returned alongside the error.
func (s *IngestionService) Run(ctx context.Context, limit int) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	docs, err := s.documents.FetchDocuments(ctx, limit)
	if err != nil {
		return summary, services.WrapInternal("failed to fetch documents", err)
	}

	s.logger.Info("starting ingestion",
		zap.Int("documents", len(docs)),
		zap.Int("batch_size", s.batchSize),
		zap.String("collection", s.index.Name()))

	buf := &batch{}
	for i := range docs {
		doc := &docs[i]
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Documents++

		chunks := s.ChunkDocument(doc)
		if len(chunks) == 0 {
			summary.Skipped++
			s.logger.Debug("skipping document without content", zap.String("document_id", doc.ID))
			continue
		}

		for _, c := range chunks {
			md := models.MergeReserved(models.ChunkMetadata(doc.ID, c.Index, doc.Title), doc.Metadata)
			buf.add(ChunkID(doc.ID, c.Index), md, c.Text)

			if buf.len() >= s.batchSize {
				if err := s.flush(ctx, buf, summary); err != nil {
					return summary, err
				}
			}
		}
	}

	if err := s.flush(ctx, buf, summary); err != nil {
		return summary, err
	}

	s.logger.Info("ingestion complete",
		zap.Int("documents", summary.Documents),
		zap.Int("skipped", summary.Skipped),
		zap.Int("chunks", summary.Chunks),
		zap.Int("batches", summary.Batches),
		zap.Duration("duration", time.Since(start)))

	return summary, nil
}

// ChunkDocument splits a document into ordered chunks. Documents with blank content
// produce none; title-only documents are not indexed.
func (s *IngestionService) ChunkDocument(doc *models.SourceDocument) []models.Chunk {
	if strings.TrimSpace(doc.Content) == "" {
		return nil
	}

	texts := s.chunker.Chunk(chunker.ComposeDocument(doc.Title, doc.Content))
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{
			Text:     text,
			Index:    i,
			ParentID: doc.ID,
		}
	}
	return chunks
}

// flush embeds the buffered texts in one call and upserts them in one call
func (s *IngestionService) flush(ctx context.Context, buf *batch, summary *Summary) error {
	if buf.len() == 0 {
		return nil
	}
	number := summary.Batches + 1

	embeddings, err := s.embedder.Embed(ctx, buf.texts)
	if err != nil {
		return fmt.Errorf("batch %d: %w", number, err)
	}

	if err := s.index.Upsert(ctx, buf.ids, buf.metadatas, buf.texts, embeddings); err != nil {
		if services.GetErrorType(err) == "" {
			err = services.WrapInternal("failed to upsert embeddings", err)
		}
		return fmt.Errorf("batch %d: %w", number, err)
	}

	summary.Batches = number
	summary.Chunks += buf.len()
	s.logger.Info("batch flushed",
		zap.Int("batch", number),
		zap.Int("chunks", buf.len()),
		zap.Int("total_chunks", summary.Chunks))

	buf.reset()
	return nil
}
