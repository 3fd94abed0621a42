package parser

import "strings"

// Chunker splits text into fixed-size, overlapping windows counted in
// whitespace-delimited tokens, the same windowing shape the corpus uses
// for its header-based markdown chunker generalized to plain text: a
// constant window size with a constant overlap between consecutive
// windows.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker returns a Chunker with the given window size and overlap, both
// in tokens. overlap is clamped to size-1 so a stride of at least one
// token always makes forward progress.
func NewChunker(size, overlap int) *Chunker {
	if size < 1 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into token windows. A text with fewer tokens than the
// window size produces exactly one chunk containing everything.
func (c *Chunker) Chunk(text string) []Chunk {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	stride := c.size - c.overlap
	var out []Chunk
	for start := 0; start < len(tokens); start += stride {
		end := start + c.size
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, Chunk{
			Index:      len(out),
			Text:       strings.Join(tokens[start:end], " "),
			StartToken: start,
			EndToken:   end,
		})
		if end == len(tokens) {
			break
		}
	}
	return out
}
