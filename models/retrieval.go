package models

// NoAnswerText is returned when retrieval finds nothing to ground an answer on.
const NoAnswerText = "I don't know. No relevant information found in the knowledge base."

// RetrievalMatch is a nearest-neighbour hit. Lower distance means more similar.
type RetrievalMatch struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Distance float64  `json:"distance"`
}

// TraceEntry records the provenance of one context block.
type TraceEntry struct {
	ID       string   `json:"id"`
	Distance float64  `json:"distance"`
	Metadata Metadata `json:"metadata"`
}

// AnswerResult is the response of the answer pipeline.
type AnswerResult struct {
	Answer   string       `json:"answer"`
	Contexts []string     `json:"contexts"`
	Trace    []TraceEntry `json:"trace"`
}

// NewNoAnswerResult builds the fixed fallback answer with empty, non-nil contexts and trace.
func NewNoAnswerResult() *AnswerResult {
	return &AnswerResult{
		Answer:   NoAnswerText,
		Contexts: []string{},
		Trace:    []TraceEntry{},
	}
}

// TraceFromMatch converts a retrieval match into its trace entry.
func TraceFromMatch(m RetrievalMatch) TraceEntry {
	return TraceEntry{
		ID:       m.ID,
		Distance: m.Distance,
		Metadata: m.Metadata,
	}
}
