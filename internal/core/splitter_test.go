package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextParagraphs(t *testing.T) {
	s := NewTextSplitter(10, 0)
	chunks := s.SplitText("aaaa bbbb\n\ncccc dddd\n\neeee")
	assert.Equal(t, []string{"aaaa bbbb", "cccc dddd", "eeee"}, chunks)
}

func TestSplitTextOverlap(t *testing.T) {
	s := NewTextSplitter(10, 4)
	chunks := s.SplitText("one two three four five")
	assert.Equal(t, []string{"one two", "two three", "four five"}, chunks)
}

func TestSplitTextFallsBackToCharacters(t *testing.T) {
	s := NewTextSplitter(5, 0)
	assert.Equal(t, []string{"abcde", "fghij"}, s.SplitText("abcdefghij"))
}

func TestSplitTextCountsRunes(t *testing.T) {
	s := NewTextSplitter(3, 0)
	assert.Equal(t, []string{"äöü", "éèê"}, s.SplitText("äöüéèê"))
}

func TestSplitTextWithoutText(t *testing.T) {
	s := NewTextSplitter(100, 5)
	assert.Empty(t, s.SplitText(""))
	assert.Empty(t, s.SplitText("   \n\n \t \n\n  "))
}

func TestSplitDocumentsKeepsMetadata(t *testing.T) {
	s := NewTextSplitter(10, 0)
	docs := []Document{
		{Content: "alpha beta\n\ngamma", Metadata: map[string]any{"source": "a.pdf", "page": 1}},
		{Content: "delta", Metadata: map[string]any{"source": "a.pdf", "page": 2}},
	}

	chunks := s.SplitDocuments(docs)
	require.Len(t, chunks, 3)
	assert.Equal(t, "alpha beta", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].Metadata["page"])
	assert.Equal(t, 0, chunks[0].Metadata["chunk"])
	assert.Equal(t, 1, chunks[1].Metadata["chunk"])
	assert.Equal(t, 2, chunks[2].Metadata["page"])
	assert.Equal(t, 1, docs[0].Metadata["page"], "source metadata is not modified")
	assert.NotContains(t, docs[0].Metadata, "chunk")
}

func TestNewTextSplitterClampsOverlap(t *testing.T) {
	s := NewTextSplitter(100, 150)
	assert.Equal(t, 50, s.ChunkOverlap)
}
