package prompt

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/upb/rag-chatbot/models"
)

func TestRenderContext(t *testing.T) {
	tests := []struct {
		name string
		text string
		md   models.Metadata
		want string
	}{
		{
			name: "sorted metadata keys",
			text: "Cats purr.",
			md:   models.Metadata{"title": "Cats", "chunk_index": 0, "source_doc_id": "d1"},
			want: "Cats purr.\n\n[metadata: {\"chunk_index\":0,\"source_doc_id\":\"d1\",\"title\":\"Cats\"}]",
		},
		{
			name: "nil metadata",
			text: "body",
			md:   nil,
			want: "body\n\n[metadata: {}]",
		},
		{
			name: "nested metadata",
			text: "x",
			md:   models.Metadata{"tags": map[string]any{"b": 2, "a": 1}},
			want: "x\n\n[metadata: {\"tags\":{\"a\":1,\"b\":2}}]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderContext(tt.text, tt.md))
		})
	}
}

func TestRenderContext_UnmarshalableMetadataFallsBack(t *testing.T) {
	out := RenderContext("x", models.Metadata{"bad": math.Inf(1)})
	assert.True(t, strings.HasPrefix(out, "x\n\n[metadata: map["))
}

func TestBuild(t *testing.T) {
	got := Build([]string{"first block", "second block"}, "Do cats purr?")

	want := "You are an assistant that answers user questions using only the provided context snippets. " +
		"If the answer is not contained in the context, say 'I don't know' or ask for clarification.\n\n" +
		"Context:\n" +
		"Context 1:\nfirst block" +
		"\n\n---\n\n" +
		"Context 2:\nsecond block" +
		"\n\nUser Question: Do cats purr?" +
		"\n\nAnswer succinctly and cite the context numbers if used (e.g., [Context 1])."

	assert.Equal(t, want, got)
}

func TestBuild_SingleContextHasNoDelimiter(t *testing.T) {
	got := Build([]string{"only"}, "q")

	assert.Contains(t, got, "Context 1:\nonly")
	assert.NotContains(t, got, "---")
	assert.NotContains(t, got, "Context 2:")
}
