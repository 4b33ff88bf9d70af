package core

import (
	"strings"
	"unicode/utf8"

	"github.com/yaoapp/kun/log"
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// TextSplitter cuts documents into chunks of at most ChunkSize characters,
// consecutive chunks sharing up to ChunkOverlap characters. It splits on the
// coarsest separator present and only falls back to finer ones for pieces
// that are still too long.
type TextSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

func NewTextSplitter(chunkSize, chunkOverlap int) *TextSplitter {
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &TextSplitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap, Separators: defaultSeparators}
}

// SplitDocuments splits every document, copying its metadata onto each chunk.
func (s *TextSplitter) SplitDocuments(docs []Document) []Document {
	var out []Document
	for _, doc := range docs {
		for i, text := range s.SplitText(doc.Content) {
			meta := make(map[string]any, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			meta["chunk"] = i
			out = append(out, Document{Content: text, Metadata: meta})
		}
	}
	return out
}

func (s *TextSplitter) SplitText(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = defaultSeparators
	}
	return s.split(text, seps)
}

func (s *TextSplitter) split(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var finer []string
	for i, candidate := range seps {
		if candidate == "" {
			sep = candidate
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			finer = seps[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitOn(text, sep) {
		if length(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good, sep)...)
			good = nil
		}
		if len(finer) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, finer)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, sep)...)
	}
	return final
}

// merge packs pieces into chunks, carrying a tail of up to ChunkOverlap
// characters into the next chunk.
func (s *TextSplitter) merge(pieces []string, sep string) []string {
	sepLen := length(sep)
	var chunks, current []string
	total := 0

	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, piece := range pieces {
		n := length(piece)
		if total+n+joinLen() > s.ChunkSize {
			if total > s.ChunkSize {
				log.Warn("Created a chunk of size %d, which is longer than the specified %d", total, s.ChunkSize)
			}
			if len(current) > 0 {
				if chunk := strings.TrimSpace(strings.Join(current, sep)); chunk != "" {
					chunks = append(chunks, chunk)
				}
				for total > s.ChunkOverlap || (total+n+joinLen() > s.ChunkSize && total > 0) {
					drop := length(current[0])
					if len(current) > 1 {
						drop += sepLen
					}
					total -= drop
					current = current[1:]
				}
			}
		}
		current = append(current, piece)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}
	if chunk := strings.TrimSpace(strings.Join(current, sep)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func splitOn(text, sep string) []string {
	var parts []string
	if sep == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	for _, p := range strings.Split(text, sep) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
