package budget

import (
	stderrors "errors"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lcwen/tcm-pipeline-go/pkg/errors"
)

// fakeTokenizer treats every whitespace-separated word as one token.
type fakeTokenizer struct {
	vocab map[string]int
	words []string
}

func newFakeTokenizer() *fakeTokenizer {
	return &fakeTokenizer{vocab: map[string]int{}}
}

func (f *fakeTokenizer) Encode(text string) []int {
	fields := strings.Fields(text)
	tokens := make([]int, 0, len(fields))
	for _, w := range fields {
		id, ok := f.vocab[w]
		if !ok {
			id = len(f.words)
			f.vocab[w] = id
			f.words = append(f.words, w)
		}
		tokens = append(tokens, id)
	}
	return tokens
}

func (f *fakeTokenizer) Decode(tokens []int) string {
	parts := make([]string, 0, len(tokens))
	for _, id := range tokens {
		parts = append(parts, f.words[id])
	}
	return strings.Join(parts, " ")
}

func (f *fakeTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = prefix + strconv.Itoa(i)
	}
	return strings.Join(parts, " ")
}

// renderWithBase builds a template whose skeleton (empty context) always
// measures exactly baseTokens words, one of which is the term.
func renderWithBase(baseTokens int) TemplateFunc {
	padding := words("p", baseTokens-1)
	return func(contextParagraph, term string) (string, error) {
		return strings.TrimSpace(padding + " " + term + " " + contextParagraph), nil
	}
}

func TestFitReturnsShortContextUnchanged(t *testing.T) {
	b := NewBudgeter(newFakeTokenizer(), 20, zap.NewNop())

	// Double spacing survives because the fast path must not re-encode.
	context := "ka  kb kc"
	result, err := b.Fit(context, "term", renderWithBase(12))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Truncated {
		t.Fatalf("expected context to pass through untouched")
	}
	if result.Context != context {
		t.Fatalf("expected byte-identical context, got %q", result.Context)
	}
}

func TestFitTruncatesTailToAvailableTokens(t *testing.T) {
	tok := newFakeTokenizer()
	b := NewBudgeter(tok, 20, zap.NewNop())

	// Window 20, skeleton 12: exactly 8 tokens of context may survive.
	context := words("c", 15)
	result, err := b.Fit(context, "term", renderWithBase(12))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.Truncated {
		t.Fatalf("expected truncation for 15 tokens of context")
	}
	if got := tok.Count(result.Context); got != 8 {
		t.Fatalf("expected exactly 8 context tokens, got %d (%q)", got, result.Context)
	}
	if want := words("c", 8); result.Context != want {
		t.Fatalf("expected the head of the paragraph to survive, got %q", result.Context)
	}
	if result.BaseTokens != 12 || result.Available != 8 || result.ContextTokens != 15 {
		t.Fatalf("audit fields wrong: base %d available %d context %d",
			result.BaseTokens, result.Available, result.ContextTokens)
	}
}

func TestFitExactFitIsNotTruncated(t *testing.T) {
	b := NewBudgeter(newFakeTokenizer(), 20, zap.NewNop())

	context := words("c", 8)
	result, err := b.Fit(context, "term", renderWithBase(12))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Truncated {
		t.Fatalf("a context of exactly the available size must not be truncated")
	}
	if result.Context != context {
		t.Fatalf("expected context unchanged, got %q", result.Context)
	}
}

func TestFitFailsWhenSkeletonExceedsWindow(t *testing.T) {
	b := NewBudgeter(newFakeTokenizer(), 10, zap.NewNop())

	_, err := b.Fit(words("c", 3), "term", renderWithBase(15))
	if err == nil {
		t.Fatalf("expected prompt-too-long failure")
	}

	var tooLong *errors.PromptTooLongError
	if !stderrors.As(err, &tooLong) {
		t.Fatalf("expected *errors.PromptTooLongError, got %T", err)
	}
	if tooLong.BaseTokens != 15 || tooLong.MaxTokens != 10 {
		t.Fatalf("expected base 15 over window 10, got base %d window %d",
			tooLong.BaseTokens, tooLong.MaxTokens)
	}
}

func TestFitSkeletonFillingWindowExactlyEmptiesContext(t *testing.T) {
	tok := newFakeTokenizer()
	b := NewBudgeter(tok, 10, zap.NewNop())

	// Base equals the window: zero tokens remain for context, which is a
	// degenerate truncation rather than a failure.
	result, err := b.Fit(words("c", 4), "term", renderWithBase(10))
	if err != nil {
		t.Fatalf("expected no error when skeleton fits exactly, got %v", err)
	}
	if !result.Truncated {
		t.Fatalf("expected truncation to zero tokens")
	}
	if result.Context != "" {
		t.Fatalf("expected empty context, got %q", result.Context)
	}
}

func TestFitTruncatedPromptFitsWindow(t *testing.T) {
	tok := newFakeTokenizer()
	b := NewBudgeter(tok, 20, zap.NewNop())

	render := renderWithBase(12)
	result, err := b.Fit(words("c", 40), "term", render)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	full, err := render(result.Context, "term")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if got := tok.Count(full); got > 20 {
		t.Fatalf("full prompt still exceeds window after truncation: %d tokens", got)
	}
}
