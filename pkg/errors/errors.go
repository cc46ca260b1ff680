package errors

import "fmt"

// Error codes
const (
	CodePipelineError = "PIPELINE_ERROR"
	CodeAPIError      = "API_ERROR"
	CodeValidation    = "VALIDATION_ERROR"
	CodeCache         = "CACHE_ERROR"
	CodeService       = "SERVICE_ERROR"
	CodeResolution    = "RESOLUTION_FAILED"
	CodePromptTooLong = "PROMPT_TOO_LONG"
)

type PipelineError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func NewPipelineError(message, code string, statusCode int, context map[string]any) *PipelineError {
	return &PipelineError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Context:    context,
	}
}

func (e *PipelineError) WithCause(cause error) *PipelineError {
	e.Cause = cause
	return e
}

type APIError struct {
	*PipelineError
}

func NewAPIError(message string, statusCode int, context map[string]any) *APIError {
	return &APIError{
		PipelineError: &PipelineError{
			Message:    message,
			Code:       CodeAPIError,
			StatusCode: statusCode,
			Context:    context,
		},
	}
}

type ValidationError struct {
	*PipelineError
	Field string
	Value interface{}
}

func NewValidationError(message, field string, value interface{}) *ValidationError {
	return &ValidationError{
		PipelineError: &PipelineError{
			Message:    message,
			Code:       CodeValidation,
			StatusCode: 400,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

type CacheError struct {
	*PipelineError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		PipelineError: &PipelineError{
			Message:    message,
			Code:       CodeCache,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

type ServiceError struct {
	*PipelineError
	Service   string
	Operation string
}

func NewServiceError(message, service, operation string, cause error) *ServiceError {
	return &ServiceError{
		PipelineError: &PipelineError{
			Message:    message,
			Code:       CodeService,
			StatusCode: 500,
			Context: map[string]any{
				"service":   service,
				"operation": operation,
			},
			Cause: cause,
		},
		Service:   service,
		Operation: operation,
	}
}

// ResolutionError reports that no usable context paragraph exists for a
// task after all fallback levels were tried. It never aborts a batch;
// the task is recorded as skipped.
type ResolutionError struct {
	*PipelineError
	Volume  int
	Section string
}

func NewResolutionError(volume int, section string) *ResolutionError {
	return &ResolutionError{
		PipelineError: &PipelineError{
			Message: fmt.Sprintf("no usable context for volume %d section %q", volume, section),
			Code:    CodeResolution,
			Context: map[string]any{
				"volume":  volume,
				"section": section,
			},
		},
		Volume:  volume,
		Section: section,
	}
}

// PromptTooLongError reports that the prompt skeleton alone (template +
// term, with no context at all) exceeds the model window. Truncating the
// context cannot fix this, so the task is skipped.
type PromptTooLongError struct {
	*PipelineError
	BaseTokens int
	MaxTokens  int
}

func NewPromptTooLongError(baseTokens, maxTokens int) *PromptTooLongError {
	return &PromptTooLongError{
		PipelineError: &PipelineError{
			Message: fmt.Sprintf("prompt skeleton uses %d tokens, exceeds window of %d", baseTokens, maxTokens),
			Code:    CodePromptTooLong,
			Context: map[string]any{
				"base_tokens": baseTokens,
				"max_tokens":  maxTokens,
			},
		},
		BaseTokens: baseTokens,
		MaxTokens:  maxTokens,
	}
}
