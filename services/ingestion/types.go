package ingestion

import (
	"fmt"

	"github.com/google/uuid"
)

// Summary reports what one ingestion run did
type Summary struct {
	Documents int `json:"documents"`
	Skipped   int `json:"skipped"`
	Chunks    int `json:"chunks"`
	Batches   int `json:"batches"`
}

// ChunkID derives the stable record id for chunk idx of a document. Re-running
// ingestion over the same documents yields the same ids.
func ChunkID(docID string, idx int) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(fmt.Sprintf("%s_%d", docID, idx))).String()
}
