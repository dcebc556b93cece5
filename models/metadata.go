package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Reserved metadata keys written by the ingestion pipeline for every chunk.
const (
	MetadataKeySourceDocID = "source_doc_id"
	MetadataKeyChunkIndex  = "chunk_index"
	MetadataKeyTitle       = "title"
)

// Metadata is an open-ended key/value map attached to documents and indexed records.
// Values are JSON scalars or nested maps.
type Metadata map[string]any

// Clone returns a shallow copy of the metadata. A nil receiver yields an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MergeReserved returns a new map holding every key of extra overlaid with every key of
// reserved. Keys present in both take the reserved value.
func MergeReserved(reserved, extra Metadata) Metadata {
	out := make(Metadata, len(reserved)+len(extra))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range reserved {
		out[k] = v
	}
	return out
}

// ChunkMetadata builds the reserved keys for one chunk of a source document.
func ChunkMetadata(docID string, chunkIndex int, title string) Metadata {
	return Metadata{
		MetadataKeySourceDocID: docID,
		MetadataKeyChunkIndex:  chunkIndex,
		MetadataKeyTitle:       title,
	}
}

// Value implements driver.Valuer so metadata can be written to JSONB columns.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner. NULL and non-object JSON values decode to an empty map.
func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata column type %T", src)
	}

	if len(raw) == 0 {
		*m = Metadata{}
		return nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		*m = Metadata{}
		return nil
	}
	*m = Metadata(obj)
	return nil
}
