// Package chunker splits document text into overlapping windows, preferring the
// largest natural boundary that fits: paragraph, line, sentence, word, and only
// then a hard cut.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

// Defaults used by ingestion when config leaves them unset.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// separator levels, largest boundary first. A level may hold several
// alternatives (sentence terminators).
var defaultLevels = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? "},
	{" "},
}

// Span is a chunk's byte range in the source text.
type Span struct {
	Start int
	End   int
}

// Splitter is immutable after New and safe for concurrent use.
type Splitter struct {
	size    int
	overlap int
	levels  [][]string
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSeparators replaces the separator levels, largest boundary first.
// Empty levels are ignored; the hard rune cut always remains the last resort.
func WithSeparators(levels ...[]string) Option {
	return func(s *Splitter) {
		kept := make([][]string, 0, len(levels))
		for _, l := range levels {
			if len(l) > 0 {
				kept = append(kept, l)
			}
		}
		s.levels = kept
	}
}

// New validates size and overlap (in runes).
func New(size, overlap int, opts ...Option) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be less than chunk size %d",
			domain.ErrConfig, overlap, size)
	}
	s := &Splitter{size: size, overlap: overlap, levels: defaultLevels}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Size returns the maximum chunk length in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the maximum overlap in runes.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the chunk texts in order.
func (s *Splitter) Split(text string) []string {
	spans := s.Spans(text)
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = text[sp.Start:sp.End]
	}
	return out
}

// Spans returns the byte ranges of each chunk. Adjacent spans overlap by at most
// Overlap runes and each next span ends past the previous one.
func (s *Splitter) Spans(text string) []Span {
	if text == "" {
		return nil
	}
	segs := s.segment(text, Span{0, len(text)}, 0, nil)
	return s.merge(text, segs)
}

// ChunkDocument splits doc and attaches source metadata.
func (s *Splitter) ChunkDocument(doc domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyDocument, doc.SourceID)
	}
	texts := s.Split(doc.Text)
	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{Text: t, SourceID: doc.SourceID, SequenceIndex: i}
	}
	return chunks, nil
}

// segment breaks sp into contiguous pieces of at most size runes each.
func (s *Splitter) segment(text string, sp Span, level int, out []Span) []Span {
	if utf8.RuneCountInString(text[sp.Start:sp.End]) <= s.size {
		return append(out, sp)
	}
	if level >= len(s.levels) {
		return s.hardCut(text, sp, out)
	}

	pieces := splitKeep(text, sp, s.levels[level])
	if len(pieces) == 1 {
		return s.segment(text, sp, level+1, out)
	}
	for _, p := range pieces {
		out = s.segment(text, p, level+1, out)
	}
	return out
}

func (s *Splitter) hardCut(text string, sp Span, out []Span) []Span {
	start, n := sp.Start, 0
	for i := range text[sp.Start:sp.End] {
		if n == s.size {
			out = append(out, Span{start, sp.Start + i})
			start, n = sp.Start+i, 0
		}
		n++
	}
	return append(out, Span{start, sp.End})
}

// splitKeep splits sp after every occurrence of any separator, keeping the
// separator on the left piece.
func splitKeep(text string, sp Span, seps []string) []Span {
	var pieces []Span
	start := sp.Start
	for start < sp.End {
		cut := -1
		for _, sep := range seps {
			if i := strings.Index(text[start:sp.End], sep); i >= 0 {
				if end := start + i + len(sep); cut < 0 || end < cut {
					cut = end
				}
			}
		}
		if cut < 0 || cut >= sp.End {
			break
		}
		pieces = append(pieces, Span{start, cut})
		start = cut
	}
	if start < sp.End {
		pieces = append(pieces, Span{start, sp.End})
	}
	return pieces
}

// merge greedily packs segments into chunks and carries trailing whole segments
// of each chunk into the next one as overlap.
func (s *Splitter) merge(text string, segs []Span) []Span {
	runes := make([]int, len(segs))
	for i, sg := range segs {
		runes[i] = utf8.RuneCountInString(text[sg.Start:sg.End])
	}

	var chunks []Span
	first := 0
	for first < len(segs) {
		j, length := first, 0
		for j < len(segs) && length+runes[j] <= s.size {
			length += runes[j]
			j++
		}
		chunks = append(chunks, Span{segs[first].Start, segs[j-1].End})
		if j == len(segs) {
			break
		}

		k, carried := j, 0
		for k-1 > first && carried+runes[k-1] <= s.overlap && carried+runes[k-1]+runes[j] <= s.size {
			carried += runes[k-1]
			k--
		}
		first = k
	}
	return chunks
}
