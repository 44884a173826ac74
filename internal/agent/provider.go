package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/museworks/muse/internal/models"
	"github.com/tmc/langchaingo/tools"
	"github.com/tmc/langchaingo/tools/duckduckgo"
	"go.uber.org/zap"
)

// Provider is the external reasoning capability: given the user's new input
// and the prior turns of the conversation, it produces the assistant's reply.
type Provider interface {
	Converse(ctx context.Context, input string, history []models.Message) (string, error)
}

// Credentials holds the per-family API keys the registry needs to construct
// providers. A missing key makes that family's models unusable; the rest of
// the registry still works.
type Credentials struct {
	GoogleAPIKey string
	GroqAPIKey   string
}

// Registry hands out a Provider per supported model id. Providers are built
// lazily on first request and cached; construction fails fast with a
// descriptive error when the family's credentials are missing.
type Registry struct {
	creds  Credentials
	logger *zap.Logger

	mu        sync.Mutex
	providers map[string]Provider
	tools     []tools.Tool
}

func NewRegistry(creds Credentials, logger *zap.Logger) *Registry {
	r := &Registry{
		creds:     creds,
		logger:    logger,
		providers: make(map[string]Provider),
	}

	// The search tool is shared by every provider. Chat still works
	// without it, so a construction failure only costs the capability.
	ddg, err := duckduckgo.New(5, "muse-agent/1.0")
	if err != nil {
		logger.Warn("web search tool unavailable", zap.Error(err))
	} else {
		r.tools = []tools.Tool{ddg}
	}
	return r
}

// Provider returns the cached or freshly built provider for the given model
// id. Unknown models and missing credentials are errors; no prefix matching,
// membership in the catalog is the only dispatch.
func (r *Registry) Provider(model string) (Provider, error) {
	info, ok := catalog[model]
	if !ok {
		return nil, fmt.Errorf("unsupported model: %s", model)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[model]; ok {
		return p, nil
	}

	var (
		p   Provider
		err error
	)
	switch info.family {
	case familyGoogle:
		p, err = newGoogleProvider(model, r.creds.GoogleAPIKey, r.tools, r.logger)
	case familyGroq:
		p, err = newGroqProvider(model, r.creds.GroqAPIKey, r.tools, r.logger)
	default:
		err = fmt.Errorf("no provider family registered for model: %s", model)
	}
	if err != nil {
		r.logger.Error("failed to build provider",
			zap.Error(err),
			zap.String("model", model))
		return nil, err
	}

	r.providers[model] = p
	r.logger.Info("provider initialized", zap.String("model", model))
	return p, nil
}
