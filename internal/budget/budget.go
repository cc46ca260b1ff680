package budget

import (
	"go.uber.org/zap"

	"github.com/lcwen/tcm-pipeline-go/pkg/errors"
)

// Tokenizer converts text to model tokens and back. Count must equal
// len(Encode) for the same text.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
	Count(text string) int
}

// TemplateFunc renders the full prompt for a context+term pair. The
// budgeter calls it with an empty context to measure the skeleton.
type TemplateFunc func(contextParagraph, term string) (string, error)

// FitResult carries the context paragraph after budgeting plus the token
// arithmetic behind the decision, for audit logging. Truncated is set
// when the paragraph had to be cut to fit the window.
type FitResult struct {
	Context       string
	BaseTokens    int
	ContextTokens int
	Available     int
	Truncated     bool
}

// Budgeter fits a context paragraph into the model window. The skeleton
// (template rendered with an empty context and the real term) is measured
// first; whatever the window has left is how many tokens of context may
// survive. Truncation always cuts from the tail, measured in tokens, not
// characters.
type Budgeter struct {
	tokenizer Tokenizer
	maxTokens int
	logger    *zap.Logger
}

func NewBudgeter(tokenizer Tokenizer, maxTokens int, logger *zap.Logger) *Budgeter {
	return &Budgeter{
		tokenizer: tokenizer,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Fit returns the context paragraph, cut down if the full prompt would
// overflow the window. A paragraph that already fits is returned
// byte-identical. When the skeleton alone is over budget no amount of
// truncation can help, so Fit fails with *errors.PromptTooLongError; an
// exactly-full window is not an error and yields an empty context.
func (b *Budgeter) Fit(contextParagraph, term string, render TemplateFunc) (FitResult, error) {
	basePrompt, err := render("", term)
	if err != nil {
		return FitResult{}, err
	}

	baseTokens := b.tokenizer.Count(basePrompt)
	available := b.maxTokens - baseTokens

	if available < 0 {
		b.logger.Error("Prompt skeleton alone exceeds the token window",
			zap.Int("base_tokens", baseTokens),
			zap.Int("max_tokens", b.maxTokens),
		)
		return FitResult{}, errors.NewPromptTooLongError(baseTokens, b.maxTokens)
	}

	contextTokens := b.tokenizer.Count(contextParagraph)
	if contextTokens <= available {
		return FitResult{
			Context:       contextParagraph,
			BaseTokens:    baseTokens,
			ContextTokens: contextTokens,
			Available:     available,
		}, nil
	}

	b.logger.Warn("Context too long, truncating",
		zap.Int("context_tokens", contextTokens),
		zap.Int("available_tokens", available),
	)

	tokens := b.tokenizer.Encode(contextParagraph)
	return FitResult{
		Context:       b.tokenizer.Decode(tokens[:available]),
		BaseTokens:    baseTokens,
		ContextTokens: contextTokens,
		Available:     available,
		Truncated:     true,
	}, nil
}

// MaxTokens reports the window the budgeter fits prompts into.
func (b *Budgeter) MaxTokens() int {
	return b.maxTokens
}
