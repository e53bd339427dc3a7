package textsplit_test

// Coverage Notes:
// - Chunk boundaries are asserted via budget compliance and content
//   preservation, not exact byte offsets; the greedy packing is an
//   implementation detail.

import (
	"strings"
	"testing"

	"github.com/avern/wikiscribe/internal/textsplit"
)

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"below one ratio", "abc", 1},
		{"exact multiple", strings.Repeat("a", 35), 10},
		{"rounds up", strings.Repeat("a", 36), 11},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := textsplit.EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tt.text), got, tt.want)
			}
		})
	}
}

func TestSplitSmallTextSingleChunk(t *testing.T) {
	t.Parallel()

	text := "A short paragraph.\n\nAnother short paragraph."
	chunks := textsplit.Split(text, textsplit.DefaultMaxTokens)

	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("chunk = %q, want unchanged input", chunks[0])
	}
}

func TestSplitAtParagraphBoundaries(t *testing.T) {
	t.Parallel()

	// Budget of 100 tokens is 350 chars; each paragraph is 200 chars, so
	// exactly one paragraph fits per chunk.
	para := strings.Repeat("x", 200)
	text := strings.Join([]string{para, para, para}, "\n\n")

	chunks := textsplit.Split(text, 100)
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	for i, c := range chunks {
		if c != para {
			t.Errorf("chunk %d = %d chars, want one whole paragraph", i, len(c))
		}
	}
}

func TestSplitPacksGreedily(t *testing.T) {
	t.Parallel()

	// Budget 100 tokens = 350 chars; two 100-char paragraphs pack into one
	// chunk, the 300-char one forces a flush.
	small := strings.Repeat("a", 100)
	big := strings.Repeat("b", 300)
	text := strings.Join([]string{small, small, big}, "\n\n")

	chunks := textsplit.Split(text, 100)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if want := small + "\n\n" + small; chunks[0] != want {
		t.Errorf("chunk 0 = %d chars, want packed pair", len(chunks[0]))
	}
	if chunks[1] != big {
		t.Errorf("chunk 1 = %d chars, want the big paragraph", len(chunks[1]))
	}
}

func TestSplitFallsBackToSentences(t *testing.T) {
	t.Parallel()

	// One paragraph far over budget, made of short sentences: pass 2 must
	// split it at sentence boundaries, keeping terminators attached.
	sentence := "This is a sentence that fills some space in the paragraph."
	text := strings.TrimSpace(strings.Repeat(sentence+" ", 20))

	chunks := textsplit.Split(text, 50) // 175-char budget
	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want multiple sentence-bounded chunks", len(chunks))
	}
	for i, c := range chunks {
		if !strings.HasSuffix(c, ".") {
			t.Errorf("chunk %d does not end at a sentence boundary: %q", i, c)
		}
	}
}

func TestSplitOversizeSentenceKeptWhole(t *testing.T) {
	t.Parallel()

	// A single unbreakable run over budget is kept whole rather than cut.
	blob := strings.Repeat("z", 1000)
	chunks := textsplit.Split(blob, 50)

	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if chunks[0] != blob {
		t.Error("oversize unbreakable text was altered")
	}
}

func TestSplitPreservesContent(t *testing.T) {
	t.Parallel()

	var parts []string
	for i := 0; i < 30; i++ {
		parts = append(parts, "Some sentences live here. They carry meaning. More follows.")
	}
	text := strings.Join(parts, "\n\n")

	chunks := textsplit.Split(text, 50)

	// Normalize whitespace: splitting may rejoin sentences with single
	// spaces, but no words may be lost or reordered.
	normalize := func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	}
	if normalize(strings.Join(chunks, " ")) != normalize(text) {
		t.Error("split chunks do not reassemble to the original content")
	}
}

func TestSplitNonPositiveBudgetUsesDefault(t *testing.T) {
	t.Parallel()

	text := "tiny"
	chunks := textsplit.Split(text, 0)
	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("Split(text, 0) = %v, want single unchanged chunk", chunks)
	}
}
