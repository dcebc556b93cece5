package repositories

import (
	"github.com/upb/rag-chatbot/models"
	"github.com/upb/rag-chatbot/services"
)

// CheckArity verifies the parallel slices passed to Upsert line up
func CheckArity(ids []string, metadatas []models.Metadata, documents []string, embeddings [][]float32) error {
	n := len(ids)
	if len(metadatas) != n || len(documents) != n || len(embeddings) != n {
		return services.NewArityMismatch(len(ids), len(metadatas), len(documents), len(embeddings))
	}
	return nil
}
