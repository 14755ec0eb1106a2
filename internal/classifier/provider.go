package classifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
	"github.com/fyrsmithlabs/contactimport/internal/logging"
	"github.com/fyrsmithlabs/contactimport/internal/mapping"
)

// New creates the classifier named by cfg.Provider. Missing API keys and the
// disabled provider produce an Unavailable classifier rather than an error,
// so the rest of the system can start and report the condition per request.
func New(cfg Config, logger *logging.Logger) (mapping.Classifier, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx := context.Background()

	switch cfg.Provider {
	case "", ProviderDisabled:
		logger.Info(ctx, "classifier disabled")
		return &Unavailable{Reason: "classifier disabled"}, nil
	case ProviderHeuristic:
		return NewHeuristic(), nil
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}

	if cfg.APIKey == "" {
		logger.Warn(ctx, "classifier API key missing", zap.String("provider", cfg.Provider))
		return &Unavailable{Reason: cfg.Provider + " API key not configured"}, nil
	}

	var (
		c   mapping.Classifier
		err error
	)
	if cfg.Provider == ProviderAnthropic {
		c, err = NewAnthropic(cfg)
	} else {
		c, err = NewOpenAI(cfg)
	}
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "classifier configured",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		logging.RedactedString("api_key", cfg.APIKey),
	)
	return c, nil
}

// Unavailable is a classifier that always fails with
// contact.ErrClassifierUnavailable.
type Unavailable struct {
	Reason string
}

// Name returns "unavailable".
func (u *Unavailable) Name() string { return "unavailable" }

// Classify always fails.
func (u *Unavailable) Classify(context.Context, mapping.Request) (string, error) {
	return "", fmt.Errorf("%w: %s", contact.ErrClassifierUnavailable, u.Reason)
}

var _ mapping.Classifier = (*Unavailable)(nil)
