package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/contactimport/internal/mapping"
)

// OpenAIClassifier calls an OpenAI-compatible chat completions endpoint
// through langchaingo.
type OpenAIClassifier struct {
	llm   *openai.LLM
	retry retrier
}

// NewOpenAI creates an OpenAI classifier. The API key is required.
func NewOpenAI(cfg Config) (*OpenAIClassifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	llm, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithModel(model),
		openai.WithBaseURL(baseURL),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.timeout()}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return &OpenAIClassifier{llm: llm, retry: newRetrier(cfg)}, nil
}

// Name returns "openai".
func (o *OpenAIClassifier) Name() string { return ProviderOpenAI }

// Classify sends the system prompt and headers as a JSON-mode chat request.
func (o *OpenAIClassifier) Classify(ctx context.Context, req mapping.Request) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, req.UserMessage()),
	}
	return o.retry.do(ctx, func(ctx context.Context) (string, error) {
		resp, err := o.llm.GenerateContent(ctx, messages,
			llms.WithTemperature(0),
			llms.WithMaxTokens(defaultMaxTokens),
			llms.WithJSONMode(),
		)
		if err != nil {
			return "", classifyOpenAIError(ctx, err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
			return "", fmt.Errorf("empty response from API")
		}
		return resp.Choices[0].Content, nil
	})
}

var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// classifyOpenAIError marks transient failures retryable. langchaingo
// reports HTTP failures as text, so the status code is read from the message.
func classifyOpenAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	m := statusCodePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	code, _ := strconv.Atoi(m[1])
	if code == http.StatusTooManyRequests || code >= 500 {
		return &retryableError{err: err}
	}
	return err
}

var _ mapping.Classifier = (*OpenAIClassifier)(nil)
