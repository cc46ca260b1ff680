package ai

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lcwen/tcm-pipeline-go/internal/config"
	"github.com/lcwen/tcm-pipeline-go/internal/constants"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Engine routes generation requests to the local model and optionally
// falls back to Gemini when the local endpoint fails. A circuit breaker
// guards the whole path so a dead endpoint does not burn through a batch.
type Engine struct {
	local          *LocalProvider
	gemini         *GeminiProvider
	primary        TextProvider
	fallback       TextProvider
	logger         *zap.Logger
	enableFallback bool
	circuitBreaker *util.CircuitBreaker
}

func NewEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	local := NewLocalProvider(cfg.Model.BaseURL, cfg.Model.APIKey, cfg.Model.Name, logger)

	var gemini *GeminiProvider
	if cfg.Gemini.APIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.Gemini.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		gemini = NewGeminiProvider(client, cfg.Gemini.Model, logger)
	}

	engine := &Engine{
		local:          local,
		gemini:         gemini,
		primary:        local,
		logger:         logger,
		enableFallback: cfg.Gemini.EnableFallback && gemini != nil,
	}
	if engine.enableFallback {
		engine.fallback = gemini
	}

	engine.circuitBreaker = util.NewCircuitBreaker(
		constants.CircuitBreakerConfig.FailureThreshold,
		constants.CircuitBreakerConfig.ResetTimeout,
		constants.CircuitBreakerConfig.HealthCheckInterval,
		engine.healthCheckPing,
		logger,
	)

	logger.Info("AI engine initialized",
		zap.String("primary", engine.primary.Name()),
		zap.String("model", cfg.Model.Name),
		zap.Bool("fallback_enabled", engine.enableFallback),
	)

	return engine, nil
}

// GenerateText runs the prompt through the primary provider, falling back
// to the secondary when enabled. The returned text has code fences and
// surrounding whitespace stripped.
func (e *Engine) GenerateText(ctx context.Context, prompt string, preset ModelPreset, opts *GenerateOptions) (string, *GenerateMetadata, error) {
	if !e.circuitBreaker.CanExecute() {
		status := e.circuitBreaker.GetStatus()
		nextRetry := "unknown"
		if status.NextRetryTime != nil {
			nextRetry = status.NextRetryTime.Format("15:04:05")
		}
		e.logger.Warn("Circuit breaker OPEN, request blocked",
			zap.String("next_retry", nextRetry),
		)
		return "", nil, fmt.Errorf("Circuit OPEN: model service unavailable, next retry at %s", nextRetry)
	}

	result, err := e.primary.Generate(ctx, prompt, preset, opts)
	if err == nil {
		e.circuitBreaker.RecordSuccess()
		text, cleanErr := cleanText(result.Text)
		if cleanErr != nil {
			return "", nil, fmt.Errorf("%s returned unusable text: %w", e.primary.Name(), cleanErr)
		}
		return text, &GenerateMetadata{Provider: e.primary.Name(), Model: result.Model}, nil
	}

	e.logger.Warn("Primary provider failed",
		zap.String("provider", e.primary.Name()),
		zap.Error(err),
	)
	e.recordFailure(err)

	if !e.enableFallback || e.fallback == nil {
		return "", nil, fmt.Errorf("%s generation failed: %w", e.primary.Name(), err)
	}

	e.logger.Info("Attempting fallback provider",
		zap.String("provider", e.fallback.Name()),
	)

	fbResult, fbErr := e.fallback.Generate(ctx, prompt, preset, opts)
	if fbErr != nil {
		e.recordFailure(fbErr)
		return "", nil, fmt.Errorf("primary failed: %v, fallback failed: %w", err, fbErr)
	}

	e.circuitBreaker.RecordSuccess()
	text, cleanErr := cleanText(fbResult.Text)
	if cleanErr != nil {
		return "", nil, fmt.Errorf("%s returned unusable text: %w", e.fallback.Name(), cleanErr)
	}

	e.logger.Info("Fallback provider succeeded",
		zap.String("provider", e.fallback.Name()),
	)

	return text, &GenerateMetadata{Provider: e.fallback.Name(), Model: fbResult.Model, UsedFallback: true}, nil
}

// GetCircuitStatus exposes the breaker state for status commands.
func (e *Engine) GetCircuitStatus() util.CircuitBreakerStatus {
	return e.circuitBreaker.GetStatus()
}

// ResetCircuit manually closes the circuit breaker.
func (e *Engine) ResetCircuit() {
	e.circuitBreaker.Reset()
}

// recordFailure feeds the circuit breaker, but only for failures that
// indicate the service itself is unhealthy. Client-side mistakes (4xx
// other than 429) must not open the circuit.
func (e *Engine) recordFailure(err error) {
	if err == nil {
		return
	}

	if !e.isServiceFailure(err) {
		e.logger.Debug("Error not counted toward circuit breaker", zap.Error(err))
		return
	}

	timeout := time.Duration(0)
	if e.isRateLimitError(err) {
		timeout = constants.CircuitBreakerConfig.RateLimitTimeout
		e.logger.Warn("Rate limit detected, applying extended circuit timeout",
			zap.Duration("timeout", timeout),
		)
	}

	e.circuitBreaker.RecordFailure(timeout)
}

var (
	serverErrorRe = regexp.MustCompile(`\b(5\d{2})\b`)
	jsonCodeRe    = regexp.MustCompile(`"code":(\d{3})`)
	leadingCodeRe = regexp.MustCompile(`^(\d{3})\s`)
)

func (e *Engine) isServiceFailure(err error) bool {
	if err == nil {
		return false
	}

	if e.isRateLimitError(err) {
		return true
	}

	msg := err.Error()

	if serverErrorRe.MatchString(msg) {
		return true
	}

	if match := jsonCodeRe.FindStringSubmatch(msg); len(match) > 1 {
		return strings.HasPrefix(match[1], "5")
	}

	if match := leadingCodeRe.FindStringSubmatch(msg); len(match) > 1 {
		return strings.HasPrefix(match[1], "5")
	}

	lower := strings.ToLower(msg)
	return strings.Contains(lower, "timeout") || strings.Contains(lower, "etimedout")
}

func (e *Engine) isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "Rate limit") ||
		strings.Contains(strings.ToLower(msg), "quota")
}

// cleanText strips markdown code fences some models wrap around output.
func cleanText(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return "", fmt.Errorf("empty text after cleanup")
	}

	return text, nil
}

// healthCheckPing probes whichever provider answers first. Used by the
// circuit breaker while the circuit is OPEN.
func (e *Engine) healthCheckPing() bool {
	ctx, cancel := context.WithTimeout(context.Background(), constants.CircuitBreakerConfig.HealthCheckTimeout)
	defer cancel()

	if e.local != nil && e.local.Ping(ctx) {
		return true
	}
	if e.gemini != nil && e.gemini.Ping(ctx) {
		return true
	}

	return false
}
