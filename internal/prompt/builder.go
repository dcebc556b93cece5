// Package prompt renders retrieved context and builds the grounded prompt sent to the
// completion provider.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/upb/rag-chatbot/models"
)

const (
	// SystemMessage is sent as the system role ahead of the grounded prompt.
	SystemMessage = "You are a helpful assistant."

	header = "You are an assistant that answers user questions using only the provided context snippets. " +
		"If the answer is not contained in the context, say 'I don't know' or ask for clarification.\n\n"

	contextDelimiter = "\n\n---\n\n"

	citationInstruction = "Answer succinctly and cite the context numbers if used (e.g., [Context 1])."
)

// RenderContext formats one retrieved match as a context block. Metadata is rendered
// as JSON with sorted keys so the block is stable across runs.
func RenderContext(text string, md models.Metadata) string {
	return text + "\n\n[metadata: " + renderMetadata(md) + "]"
}

func renderMetadata(md models.Metadata) string {
	if md == nil {
		md = models.Metadata{}
	}
	b, err := json.Marshal(map[string]any(md))
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(md))
	}
	return string(b)
}

// Build assembles the user prompt from numbered context blocks and the question.
func Build(contexts []string, question string) string {
	blocks := make([]string, len(contexts))
	for i, c := range contexts {
		blocks[i] = fmt.Sprintf("Context %d:\n%s", i+1, c)
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(blocks, contextDelimiter))
	b.WriteString("\n\nUser Question: ")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(citationInstruction)
	return b.String()
}
