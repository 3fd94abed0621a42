// Package parser extracts plain text from files and splits it into
// overlapping, token-counted chunks for embedding.
package parser

import (
	"context"
	"fmt"
	"strings"
)

// Chunk is one retrievable unit produced by a Chunker.
type Chunk struct {
	Index      int
	Text       string
	StartToken int
	EndToken   int
}

// FileInput is the input to an Extractor.
type FileInput struct {
	Path    string
	Content []byte
}

// Extractor pulls plain text content out of a file's raw bytes.
type Extractor interface {
	SupportedExtensions() []string
	Extract(ctx context.Context, file FileInput) (string, error)
}

// Facade dispatches extraction by file extension and chunks the result.
// Real format parsers (PDF, DOCX, Google Doc export) and the cloud-document
// fetcher are named collaborators behind this interface that this module
// does not implement.
type Facade struct {
	extractors map[string]Extractor
	chunker    *Chunker
	filter     *GibberishFilter
}

// NewFacade builds a Facade with the given chunk size/overlap (in tokens)
// and registers extractor for every extension it reports supporting.
func NewFacade(chunkSize, chunkOverlap int, extractors ...Extractor) *Facade {
	f := &Facade{
		extractors: make(map[string]Extractor),
		chunker:    NewChunker(chunkSize, chunkOverlap),
		filter:     NewGibberishFilter(),
	}
	for _, e := range extractors {
		for _, ext := range e.SupportedExtensions() {
			f.extractors[ext] = e
		}
	}
	return f
}

// ErrUnsupportedExtension is returned by ExtractAndChunk when no extractor
// is registered for the file's extension.
type ErrUnsupportedExtension struct {
	Extension string
}

func (e *ErrUnsupportedExtension) Error() string {
	return fmt.Sprintf("parser: no extractor registered for extension %q", e.Extension)
}

// ExtractAndChunk extracts plain text from file (by ext) and splits it
// into chunks, dropping any chunk the gibberish filter rejects.
func (f *Facade) ExtractAndChunk(ctx context.Context, file FileInput, ext string) ([]Chunk, error) {
	extractor, ok := f.extractors[ext]
	if !ok {
		return nil, &ErrUnsupportedExtension{Extension: ext}
	}
	text, err := extractor.Extract(ctx, file)
	if err != nil {
		return nil, err
	}
	chunks := f.chunker.Chunk(text)

	out := chunks[:0]
	for _, c := range chunks {
		if f.filter.IsGibberish(c.Text) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// PlainTextExtractor returns file content verbatim as UTF-8 text, the
// reference implementation for all plain-text extensions.
type PlainTextExtractor struct {
	Extensions []string
}

// NewPlainTextExtractor returns an extractor for the given extensions
// (e.g. ".txt", ".md", ".go").
func NewPlainTextExtractor(extensions ...string) *PlainTextExtractor {
	return &PlainTextExtractor{Extensions: extensions}
}

func (p *PlainTextExtractor) SupportedExtensions() []string { return p.Extensions }

func (p *PlainTextExtractor) Extract(_ context.Context, file FileInput) (string, error) {
	return strings.ToValidUTF8(string(file.Content), "�"), nil
}
