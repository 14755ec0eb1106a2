package classifier

import (
	"time"

	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultMaxTokens        = 4096
	defaultTimeout          = 60 * time.Second
	defaultMaxRetries       = 3
	defaultBaseBackoff      = 1 * time.Second
	defaultRatePerMinute    = 50
	defaultBurst            = 5
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderHeuristic = "heuristic"
	ProviderDisabled  = "disabled"
)

// Config configures a classifier backend.
type Config struct {
	Provider           string
	APIKey             string `json:"-"`
	BaseURL            string
	Model              string
	Timeout            time.Duration
	MaxRetries         int
	RateLimitPerMinute int

	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

func (c Config) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return defaultMaxRetries
}

func (c Config) backoff() time.Duration {
	if c.BaseBackoff > 0 {
		return c.BaseBackoff
	}
	return defaultBaseBackoff
}

func (c Config) limiter() *rate.Limiter {
	perMinute := c.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = defaultRatePerMinute
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), defaultBurst)
}
