package llm

import (
	"context"

	"github.com/foliolab/enrich/internal/apperrors"
	"github.com/foliolab/enrich/internal/logging"
)

// NoProviderName is Chain.Name's result when no Provider is
// configured, the signal stages use to take their no-LM degraded or
// fallback path instead of attempting (and failing) a call.
const NoProviderName = "none"

// Chain tries each Provider in order, falling through to the next on
// failure: OpenAI -> Claude -> Ollama in the default wiring.
type Chain struct {
	providers      []Provider
	enableFallback bool
	taskRouting    map[string]string
	log            *logging.Logger
}

func NewChain(enableFallback bool, providers ...Provider) *Chain {
	return &Chain{providers: providers, enableFallback: enableFallback, log: logging.New("LLM")}
}

// WithTaskRouting installs a task -> provider-name preference map. A
// request whose Task appears in the map tries the named provider
// first; the rest of the chain stays available as fallback.
func (c *Chain) WithTaskRouting(routing map[string]string) *Chain {
	c.taskRouting = routing
	return c
}

// orderFor returns the provider attempt order for a request,
// promoting the task's preferred provider to the front when one is
// configured and present.
func (c *Chain) orderFor(req Request) []Provider {
	preferred, ok := c.taskRouting[req.Task]
	if !ok || req.Task == "" {
		return c.providers
	}
	for i, p := range c.providers {
		if p.Name() == preferred {
			order := make([]Provider, 0, len(c.providers))
			order = append(order, p)
			order = append(order, c.providers[:i]...)
			order = append(order, c.providers[i+1:]...)
			return order
		}
	}
	return c.providers
}

func (c *Chain) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(c.providers) == 0 {
		return nil, apperrors.NewFatalError("llm", "no providers configured", nil)
	}
	providers := c.orderFor(req)
	var lastErr error
	for i, p := range providers {
		resp, err := p.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.log.Warnf("provider %s failed: %v", p.Name(), err)
		if !c.enableFallback {
			break
		}
		if i < len(providers)-1 {
			c.log.Infof("falling back to %s", providers[i+1].Name())
		}
	}
	return nil, apperrors.NewTransientDependencyError("llm", "all providers exhausted", lastErr)
}

// Name reports the chain's primary provider, used in job metadata
// before any fallback has taken effect.
func (c *Chain) Name() string {
	if len(c.providers) == 0 {
		return NoProviderName
	}
	return c.providers[0].Name()
}
