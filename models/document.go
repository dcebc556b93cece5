package models

// SourceDocument is a row of the external documents table. The core only reads it.
type SourceDocument struct {
	ID       string   `json:"id" yaml:"id" db:"id"`
	Title    string   `json:"title" yaml:"title" db:"title"`
	Content  string   `json:"content" yaml:"content" db:"content"`
	Metadata Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty" db:"metadata"`
}

// TableName returns the table name for the SourceDocument model
func (SourceDocument) TableName() string {
	return "documents"
}

// Chunk is one window of a composed document. It exists only during ingestion.
type Chunk struct {
	Text     string
	Index    int
	ParentID string
}

// IndexedRecord is what the vector index stores for each chunk.
type IndexedRecord struct {
	ID        string    `json:"id"`
	Embedding []float32 `json:"embedding"`
	Text      string    `json:"text"`
	Metadata  Metadata  `json:"metadata"`
}
