package batch

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/lcwen/tcm-pipeline-go/internal/budget"
	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/lcwen/tcm-pipeline-go/internal/prompt"
	"github.com/lcwen/tcm-pipeline-go/internal/resolve"
	"github.com/lcwen/tcm-pipeline-go/internal/service/ai"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"github.com/lcwen/tcm-pipeline-go/pkg/errors"
	"go.uber.org/zap"
)

// Generator is the slice of the AI engine the driver needs.
type Generator interface {
	GenerateText(ctx context.Context, prompt string, preset ai.ModelPreset, opts *ai.GenerateOptions) (string, *ai.GenerateMetadata, error)
}

// RetryPolicy controls generation retries. Backoff grows linearly with
// the attempt number.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Status classifies how a file (or a whole run) went.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusWarning        Status = "warning"
	StatusPartialSuccess Status = "partial_success"
	StatusError          Status = "error"
)

// FileCounters tallies per-file events for summaries and status.
type FileCounters struct {
	Translated        int
	FallbackLevel1    int
	FallbackLevel2    int
	Truncated         int
	SkippedResolution int
	SkippedTooLong    int
	Failed            int
}

func (c FileCounters) status(attempted int) Status {
	if attempted > 0 && c.Translated == 0 {
		return StatusError
	}
	if c.FallbackLevel1+c.FallbackLevel2+c.Truncated+c.SkippedResolution+c.SkippedTooLong+c.Failed > 0 {
		return StatusWarning
	}
	return StatusSuccess
}

// FileResult is the outcome of running one task file through the driver.
type FileResult struct {
	Label    string
	Records  []domain.TranslationRecord
	Counters FileCounters
	Status   Status
}

// Driver runs translation tasks sequentially. Resolution and budgeting
// act as an admission filter: the generation call is never issued for a
// task already known to fail. All failures are task-scoped.
type Driver struct {
	resolver     *resolve.Resolver
	budgeter     *budget.Budgeter
	prompts      *prompt.PromptBuilder
	generator    Generator
	retry        RetryPolicy
	requestDelay time.Duration
	logger       *zap.Logger
}

func NewDriver(
	resolver *resolve.Resolver,
	budgeter *budget.Budgeter,
	prompts *prompt.PromptBuilder,
	generator Generator,
	retry RetryPolicy,
	requestDelay time.Duration,
	logger *zap.Logger,
) *Driver {
	return &Driver{
		resolver:     resolver,
		budgeter:     budgeter,
		prompts:      prompts,
		generator:    generator,
		retry:        retry,
		requestDelay: requestDelay,
		logger:       logger,
	}
}

// ProcessTasks translates every task in order. label names the source
// file in logs and summaries.
func (d *Driver) ProcessTasks(ctx context.Context, label string, tasks []domain.TranslationTask) FileResult {
	result := FileResult{Label: label}

	d.logger.Info("Processing task file",
		zap.String("file", label),
		zap.Int("tasks", len(tasks)),
	)

	for i, task := range tasks {
		d.logger.Info("Translating term",
			zap.Int("index", i+1),
			zap.Int("total", len(tasks)),
			zap.Int("volume", task.Volume),
			zap.String("section", task.Section),
			zap.String("term", util.TruncateString(task.Term, 20)),
		)

		resolution, err := d.resolver.Resolve(task.Volume, task.Section)
		if err != nil {
			result.Counters.SkippedResolution++
			continue
		}

		switch resolution.Level {
		case domain.FallbackSameVolume:
			result.Counters.FallbackLevel1++
		case domain.FallbackNearestVolume:
			result.Counters.FallbackLevel2++
		}

		fit, err := d.budgeter.Fit(resolution.Context, task.Term, d.renderDisease)
		if err != nil {
			var tooLong *errors.PromptTooLongError
			if stderrors.As(err, &tooLong) {
				d.logger.Warn("Prompt skeleton exceeds window, skipping task",
					zap.String("term", task.Term),
					zap.Int("base_tokens", tooLong.BaseTokens),
					zap.Int("max_tokens", tooLong.MaxTokens),
				)
				result.Counters.SkippedTooLong++
			} else {
				d.logger.Error("Prompt budgeting failed",
					zap.String("term", task.Term),
					zap.Error(err),
				)
				result.Counters.Failed++
			}
			continue
		}
		if fit.Truncated {
			result.Counters.Truncated++
		}

		promptText, err := d.prompts.BuildDiseaseTranslate(fit.Context, task.Term)
		if err != nil {
			d.logger.Error("Failed to build prompt",
				zap.String("term", task.Term),
				zap.Error(err),
			)
			result.Counters.Failed++
			continue
		}

		translation, _, err := GenerateWithRetry(ctx, d.generator, d.logger, d.retry, promptText, ai.PresetDisease, nil)
		if err != nil {
			d.logger.Error("Translation failed after retries",
				zap.String("term", task.Term),
				zap.Error(err),
			)
			result.Counters.Failed++
			continue
		}

		result.Records = append(result.Records, domain.TranslationRecord{
			Volume:        task.Volume,
			Section:       task.Section,
			Term:          task.Term,
			Translation:   translation,
			UsedFallback:  resolution.Level.IsFallback(),
			FallbackLevel: resolution.Level.String(),
			ActualVolume:  resolution.ActualVolume,
			ActualSection: resolution.ActualSection,
			Truncated:     fit.Truncated,
		})
		result.Counters.Translated++

		if d.requestDelay > 0 && i < len(tasks)-1 {
			time.Sleep(d.requestDelay)
		}
	}

	if result.Counters.FallbackLevel1 > 0 || result.Counters.FallbackLevel2 > 0 {
		d.logger.Warn(fmt.Sprintf("FALLBACK SUMMARY for %s: Level 1 (same volume): %d, Level 2 (different volume): %d",
			label, result.Counters.FallbackLevel1, result.Counters.FallbackLevel2))
	}

	result.Status = result.Counters.status(len(tasks))

	d.logger.Info("Task file finished",
		zap.String("file", label),
		zap.String("status", string(result.Status)),
		zap.Int("translated", result.Counters.Translated),
		zap.Int("skipped_resolution", result.Counters.SkippedResolution),
		zap.Int("skipped_too_long", result.Counters.SkippedTooLong),
		zap.Int("failed", result.Counters.Failed),
		zap.Int("truncated", result.Counters.Truncated),
	)

	return result
}

func (d *Driver) renderDisease(contextParagraph, term string) (string, error) {
	return d.prompts.BuildDiseaseTranslate(contextParagraph, term)
}

// RollUp reduces per-file statuses to a run status. Errors alongside
// usable output degrade to partial_success instead of error.
func RollUp(results []FileResult) Status {
	var errored, warned, succeeded int
	for _, r := range results {
		switch r.Status {
		case StatusError:
			errored++
		case StatusWarning:
			warned++
		case StatusSuccess:
			succeeded++
		}
	}

	switch {
	case errored == 0 && warned == 0:
		return StatusSuccess
	case errored == 0:
		return StatusWarning
	case succeeded+warned > 0:
		return StatusPartialSuccess
	default:
		return StatusError
	}
}

const circuitOpenDelay = 35 * time.Second

// GenerateWithRetry calls the generator, retrying recoverable failures
// with linear backoff. A circuit-open rejection waits out the breaker
// instead of backing off normally.
func GenerateWithRetry(
	ctx context.Context,
	g Generator,
	logger *zap.Logger,
	policy RetryPolicy,
	promptText string,
	preset ai.ModelPreset,
	opts *ai.GenerateOptions,
) (string, *ai.GenerateMetadata, error) {
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		text, meta, err := g.GenerateText(ctx, promptText, preset, opts)
		if err == nil {
			return text, meta, nil
		}

		lastErr = err
		if !isRecoverableError(err) || attempt == policy.MaxAttempts {
			break
		}

		sleep := policy.BaseDelay * time.Duration(attempt)
		errMsg := err.Error()
		if strings.Contains(errMsg, "Circuit OPEN") {
			sleep = circuitOpenDelay
		} else if strings.Contains(errMsg, "503") || strings.Contains(errMsg, "overloaded") {
			sleep = policy.BaseDelay * time.Duration(attempt+1)
		}

		logger.Warn("Retrying generation",
			zap.Int("attempt", attempt),
			zap.Duration("sleep", sleep),
			zap.Error(err),
		)

		time.Sleep(sleep)
	}

	return "", nil, lastErr
}

func isRecoverableError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	recoverable := []string{
		"503",
		"UNAVAILABLE",
		"model is overloaded",
		"Circuit OPEN",
		"timeout",
		"connection refused",
	}

	for _, key := range recoverable {
		if strings.Contains(msg, key) {
			return true
		}
	}

	return false
}
