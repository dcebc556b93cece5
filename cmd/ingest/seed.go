package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/upb/rag-chatbot/models"
	"github.com/upb/rag-chatbot/repositories"
)

// seedDocument is one entry of a seed file
type seedDocument struct {
	ID       string         `yaml:"id"`
	Title    string         `yaml:"title"`
	Content  string         `yaml:"content"`
	Metadata map[string]any `yaml:"metadata"`
}

// loadSeedFile reads a YAML list of documents. Every entry needs an id.
func loadSeedFile(path string) ([]models.SourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return parseSeed(data)
}

func parseSeed(data []byte) ([]models.SourceDocument, error) {
	var entries []seedDocument
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	seen := make(map[string]int, len(entries))
	docs := make([]models.SourceDocument, 0, len(entries))
	for i, e := range entries {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, fmt.Errorf("seed entry %d: id is required", i)
		}
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("seed entry %d: duplicate id %q (first at entry %d)", i, id, prev)
		}
		seen[id] = i

		md := models.Metadata(e.Metadata)
		if md == nil {
			md = models.Metadata{}
		}
		docs = append(docs, models.SourceDocument{
			ID:       id,
			Title:    e.Title,
			Content:  e.Content,
			Metadata: md,
		})
	}

	return docs, nil
}

// seedDocuments upserts docs in one transaction; any failure rolls the whole file back
func seedDocuments(ctx context.Context, txm repositories.TransactionManager, repo repositories.DocumentRepository, docs []models.SourceDocument, logger *zap.Logger) (int, error) {
	err := txm.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		for i := range docs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := repo.UpsertDocument(ctx, &docs[i]); err != nil {
				return fmt.Errorf("document %q: %w", docs[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info("documents seeded", zap.Int("count", len(docs)))
	return len(docs), nil
}
