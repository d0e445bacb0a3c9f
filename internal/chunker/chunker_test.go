package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

func mustNew(t *testing.T, size, overlap int) *Splitter {
	t.Helper()
	s, err := New(size, overlap)
	if err != nil {
		t.Fatalf("New(%d, %d): %v", size, overlap, err)
	}
	return s
}

// reconstruct strips the overlapping prefix of each chunk and concatenates.
func reconstruct(text string, spans []Span) string {
	if len(spans) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(text[spans[0].Start:spans[0].End])
	for i := 1; i < len(spans); i++ {
		b.WriteString(text[spans[i-1].End:spans[i].End])
	}
	return b.String()
}

func TestNew_InvalidOverlap(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
		{"zero size", 0, 0},
		{"negative overlap", 10, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.size, tt.overlap); !errors.Is(err, domain.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	s := mustNew(t, 100, 10)
	text := "  Short text, kept as is.\n"
	got := s.Split(text)
	if len(got) != 1 || got[0] != text {
		t.Fatalf("expected one unmodified chunk, got %q", got)
	}
}

func TestSplit_Empty(t *testing.T) {
	s := mustNew(t, 10, 2)
	if got := s.Split(""); len(got) != 0 {
		t.Errorf("expected no chunks, got %q", got)
	}
}

func TestSplit_SentenceBoundary(t *testing.T) {
	s := mustNew(t, 40, 5)
	got := s.Split("Alice is a backend engineer. She built ProjectX.")
	want := []string{"Alice is a backend engineer. ", "She built ProjectX."}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_PrefersParagraphs(t *testing.T) {
	s := mustNew(t, 30, 0)
	text := "First paragraph here.\n\nSecond paragraph here."
	got := s.Split(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %q", got)
	}
	if got[0] != "First paragraph here.\n\n" {
		t.Errorf("unexpected first chunk %q", got[0])
	}
}

func TestSplit_HardCut(t *testing.T) {
	s := mustNew(t, 4, 0)
	got := s.Split("abcdefghij")
	want := []string{"abcd", "efgh", "ij"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_OverlapCarriesWholeWords(t *testing.T) {
	s := mustNew(t, 12, 5)
	text := "one two three four five six"
	spans := s.Spans(text)
	if len(spans) < 2 {
		t.Fatalf("expected several chunks, got %d", len(spans))
	}
	sawOverlap := false
	for i := 1; i < len(spans); i++ {
		prev, cur := spans[i-1], spans[i]
		if cur.Start < prev.End {
			sawOverlap = true
			ov := text[cur.Start:prev.End]
			if utf8.RuneCountInString(ov) > 5 {
				t.Errorf("overlap %q exceeds 5 runes", ov)
			}
		}
	}
	if !sawOverlap {
		t.Error("expected at least one overlapping pair")
	}
}

func TestSpans_Reconstruction(t *testing.T) {
	texts := []string{
		"Alice is a backend engineer. She built ProjectX.",
		strings.Repeat("Go is fun! Is it? Yes. ", 20),
		"line one\nline two\n\nparagraph two has more words than fit in one chunk\n",
		strings.Repeat("ж", 57),
		"unbroken" + strings.Repeat("x", 90) + " tail",
	}
	configs := []struct{ size, overlap int }{{10, 0}, {10, 3}, {25, 8}, {40, 5}, {7, 6}}

	for _, text := range texts {
		for _, cfg := range configs {
			s := mustNew(t, cfg.size, cfg.overlap)
			spans := s.Spans(text)
			if got := reconstruct(text, spans); got != text {
				t.Fatalf("size=%d overlap=%d: reconstruction mismatch\n got %q\nwant %q",
					cfg.size, cfg.overlap, got, text)
			}
			for i, sp := range spans {
				if n := utf8.RuneCountInString(text[sp.Start:sp.End]); n > cfg.size {
					t.Errorf("size=%d: chunk %d has %d runes", cfg.size, i, n)
				}
				if i > 0 && sp.Start <= spans[i-1].Start {
					t.Errorf("size=%d overlap=%d: chunk %d reuses the whole previous chunk",
						cfg.size, cfg.overlap, i)
				}
			}
		}
	}
}

func TestSplit_Restartable(t *testing.T) {
	s := mustNew(t, 15, 4)
	text := strings.Repeat("word ", 30)
	a := s.Split(text)
	b := s.Split(text)
	if len(a) != len(b) {
		t.Fatalf("different chunk counts: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between calls", i)
		}
	}
}

func TestChunkDocument(t *testing.T) {
	s := mustNew(t, 40, 5)
	chunks, err := s.ChunkDocument(domain.Document{
		SourceID: "doc1",
		Text:     "Alice is a backend engineer. She built ProjectX.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].SourceID != "doc1" || chunks[1].SequenceIndex != 1 || chunks[1].ID() != "doc1_1" {
		t.Errorf("unexpected chunk metadata: %+v", chunks[1])
	}
}

func TestChunkDocument_Empty(t *testing.T) {
	s := mustNew(t, 40, 5)
	if _, err := s.ChunkDocument(domain.Document{SourceID: "blank", Text: " \n\t"}); !errors.Is(err, domain.ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestWithSeparators(t *testing.T) {
	s, err := New(4, 0, WithSeparators([]string{";"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := s.Split("aa;bb;cc")
	want := []string{"aa;", "bb;", "cc"}
	if len(got) != len(want) {
		t.Fatalf("Split = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}

	plain := mustNew(t, 4, 0).Split("aa;bb;cc")
	if len(plain) != 2 || plain[0] != "aa;b" {
		t.Errorf("default separators should hard cut, got %q", plain)
	}
}
