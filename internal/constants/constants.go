package constants

import "time"

var TokenBudget = struct {
	ModelWindow      int
	MaxContextTokens int
	Encoding         string
}{
	ModelWindow:      4096,
	MaxContextTokens: 3800, // leaves headroom for the reply inside the model window
	Encoding:         "cl100k_base",
}

var RetryConfig = struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration
}{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	Jitter:      250 * time.Millisecond,
}

var CircuitBreakerConfig = struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	RateLimitTimeout    time.Duration
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}{
	FailureThreshold:    3,                // consecutive failures before the circuit opens
	ResetTimeout:        30 * time.Second, // default wait before a retry probe
	RateLimitTimeout:    1 * time.Hour,    // 429-specific timeout
	HealthCheckInterval: 10 * time.Minute,
	HealthCheckTimeout:  10 * time.Second,
}

var APIConfig = struct {
	PubChemBaseURL   string
	PubChemTimeout   time.Duration
	PubChemDelay     time.Duration
	NCBIBaseURL      string
	NCBITimeout      time.Duration
	NCBIDelay        time.Duration
	MaxRetryAttempts int
}{
	PubChemBaseURL:   "https://pubchem.ncbi.nlm.nih.gov/rest/pug",
	PubChemTimeout:   15 * time.Second,
	PubChemDelay:     500 * time.Millisecond, // PUG REST allows at most 5 req/s
	NCBIBaseURL:      "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
	NCBITimeout:      15 * time.Second,
	NCBIDelay:        340 * time.Millisecond, // e-utils allows 3 req/s without an API key
	MaxRetryAttempts: 3,
}

var CacheTTL = struct {
	AssaySummary time.Duration
	GeneSummary  time.Duration
}{
	AssaySummary: 30 * 24 * time.Hour,
	GeneSummary:  30 * 24 * time.Hour,
}

var RedisConfig = struct {
	ReadyTimeout time.Duration
}{
	ReadyTimeout: 5 * time.Second,
}
