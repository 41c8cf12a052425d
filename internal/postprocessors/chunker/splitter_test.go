package chunker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// sampleText builds multi-paragraph text with unique words.
func sampleText(paragraphs, sentences int) string {
	var b strings.Builder
	for p := 0; p < paragraphs; p++ {
		if p > 0 {
			b.WriteString("\n\n")
		}
		for s := 0; s < sentences; s++ {
			if s > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "Paragraph%d sentence%d talks about topic%d.", p, s, p*sentences+s)
			if s%4 == 3 {
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		assert.Equal(t, DefaultChunkSize, p.chunkSize)
		assert.Equal(t, DefaultChunkOverlap, p.overlap)
		assert.Equal(t, DefaultSeparators, p.separators)
	})

	t.Run("custom values", func(t *testing.T) {
		p := New(WithChunkSize(500), WithOverlap(100), WithSeparators("\n", ""))
		assert.Equal(t, 500, p.chunkSize)
		assert.Equal(t, 100, p.overlap)
		assert.Equal(t, []string{"\n", ""}, p.separators)
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		p := New(WithChunkSize(100), WithOverlap(150))
		assert.Less(t, p.overlap, p.chunkSize)
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		p := New(WithChunkSize(0), WithOverlap(-1))
		assert.Equal(t, DefaultChunkSize, p.chunkSize)
		assert.Equal(t, DefaultChunkOverlap, p.overlap)
	})
}

func TestProcessor_Name(t *testing.T) {
	assert.Equal(t, "chunker", New().Name())
}

func TestSplit_EmptyText(t *testing.T) {
	p := New()
	assert.Empty(t, p.Split(""))
	assert.Empty(t, p.Split("  \n\n \t"))
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	p := New(WithChunkSize(100), WithOverlap(10))

	chunks := p.Split("  A short paragraph.  ")

	assert.Equal(t, []string{"A short paragraph."}, chunks)
}

func TestSplit_ChunksNeverExceedSize(t *testing.T) {
	text := sampleText(6, 12)

	for _, tc := range []struct{ size, overlap int }{
		{50, 0}, {50, 10}, {120, 30}, {300, 150}, {1000, 150}, {37, 36},
	} {
		t.Run(fmt.Sprintf("size=%d,overlap=%d", tc.size, tc.overlap), func(t *testing.T) {
			p := New(WithChunkSize(tc.size), WithOverlap(tc.overlap))

			chunks := p.Split(text)

			require.NotEmpty(t, chunks)
			for _, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), tc.size, "chunk %q", c)
				assert.NotEmpty(t, strings.TrimSpace(c))
			}
		})
	}
}

// TestSplit_ReconstructsText locates each chunk in order in the original text
// and checks that anything not covered by a chunk is whitespace.
func TestSplit_ReconstructsText(t *testing.T) {
	text := sampleText(5, 10)

	for _, tc := range []struct{ size, overlap int }{
		{40, 0}, {80, 20}, {200, 50}, {1000, 150},
	} {
		t.Run(fmt.Sprintf("size=%d,overlap=%d", tc.size, tc.overlap), func(t *testing.T) {
			p := New(WithChunkSize(tc.size), WithOverlap(tc.overlap))

			chunks := p.Split(text)

			prevStart, coveredEnd := 0, 0
			for _, c := range chunks {
				idx := strings.Index(text[prevStart:], c)
				require.GreaterOrEqual(t, idx, 0, "chunk not found in order: %q", c)
				start := prevStart + idx
				if start > coveredEnd {
					assert.Empty(t, strings.TrimSpace(text[coveredEnd:start]), "uncovered text before %q", c)
				}
				if end := start + len(c); end > coveredEnd {
					coveredEnd = end
				}
				prevStart = start
			}
			assert.Empty(t, strings.TrimSpace(text[coveredEnd:]))
		})
	}
}

func TestSplit_OverlapRepeatsTrailingWords(t *testing.T) {
	words := make([]string, 60)
	for i := range words {
		words[i] = fmt.Sprintf("w%02d", i)
	}
	text := strings.Join(words, " ")

	p := New(WithChunkSize(20), WithOverlap(8))
	chunks := p.Split(text)

	require.Greater(t, len(chunks), 2)
	for i := 1; i < len(chunks); i++ {
		first := strings.Fields(chunks[i])[0]
		assert.Contains(t, chunks[i-1], first, "chunk %d should start inside chunk %d", i, i-1)
	}
}

func TestSplit_NoOverlapRepeatsNothing(t *testing.T) {
	words := make([]string, 60)
	for i := range words {
		words[i] = fmt.Sprintf("w%02d", i)
	}
	text := strings.Join(words, " ")

	p := New(WithChunkSize(20), WithOverlap(0))
	chunks := p.Split(text)

	seen := map[string]int{}
	for _, c := range chunks {
		for _, w := range strings.Fields(c) {
			seen[w]++
		}
	}
	assert.Len(t, seen, 60)
	for w, n := range seen {
		assert.Equal(t, 1, n, "word %s repeated", w)
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("a", 30) + " " + strings.Repeat("b", 30)
	para2 := strings.Repeat("c", 30) + " " + strings.Repeat("d", 30)

	p := New(WithChunkSize(70), WithOverlap(0))
	chunks := p.Split(para1 + "\n\n" + para2)

	assert.Equal(t, []string{para1, para2}, chunks)
}

func TestSplit_HardCutWithoutSeparators(t *testing.T) {
	p := New(WithChunkSize(10), WithOverlap(0))

	chunks := p.Split(strings.Repeat("x", 25))

	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, chunks)
}

func TestSplit_CountsCharactersNotBytes(t *testing.T) {
	p := New(WithChunkSize(10), WithOverlap(0))

	chunks := p.Split(strings.Repeat("é", 20))

	require.Len(t, chunks, 2)
	assert.Equal(t, 10, utf8.RuneCountInString(chunks[0]))
}

func TestProcess_KeepsPagesSeparate(t *testing.T) {
	doc := &domain.SourceDocument{
		Source:   "docs/a.pdf",
		Filename: "a.pdf",
		Pages: []domain.Page{
			{Number: 0, Text: "first page text", Metadata: map[string]any{domain.MetaPageLabel: "1"}},
			{Number: 1, Text: "   "},
			{Number: 2, Text: "third page text"},
		},
	}

	chunks, err := New(WithChunkSize(100), WithOverlap(0)).Process(context.Background(), doc, nil)

	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first page text", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Metadata[domain.MetaPage])
	assert.Equal(t, "1", chunks[0].Metadata[domain.MetaPageLabel])
	assert.Equal(t, "third page text", chunks[1].Content)
	assert.Equal(t, 2, chunks[1].Metadata[domain.MetaPage])
}

func TestProcess_DoesNotShareMetadataMaps(t *testing.T) {
	pageMeta := map[string]any{domain.MetaPage: 0}
	doc := &domain.SourceDocument{Pages: []domain.Page{{Text: "one two three four", Metadata: pageMeta}}}

	chunks, err := New(WithChunkSize(8), WithOverlap(0)).Process(context.Background(), doc, nil)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	chunks[0].Metadata["x"] = 1
	assert.NotContains(t, chunks[1].Metadata, "x")
	assert.NotContains(t, pageMeta, "x")
}

func TestProcess_EmptyDocument(t *testing.T) {
	doc := &domain.SourceDocument{Pages: []domain.Page{{Text: ""}}}

	chunks, err := New().Process(context.Background(), doc, nil)

	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Process(ctx, &domain.SourceDocument{Pages: []domain.Page{{Text: "x"}}}, nil)

	assert.ErrorIs(t, err, context.Canceled)
}
