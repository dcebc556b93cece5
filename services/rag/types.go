package rag

import "time"

// AskRequest is a question against the knowledge base. TopK <= 0 uses the configured default.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty" validate:"omitempty,gte=0"`
}

// Options tunes retrieval and generation
type Options struct {
	TopK            int
	MaxContextItems int
	Provider        string
	Model           string
	MaxTokens       int
	Temperature     float64
	RequestTimeout  time.Duration
}

// DefaultOptions returns the defaults used when a field is left zero
func DefaultOptions() Options {
	return Options{
		TopK:            8,
		MaxContextItems: 6,
		Provider:        "openai",
		Model:           "gpt-4o-mini",
		MaxTokens:       512,
		Temperature:     0,
		RequestTimeout:  60 * time.Second,
	}
}
