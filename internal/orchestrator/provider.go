package orchestrator

import "sync"

// Provider owns the process-wide orchestrator client lifecycle: one instance,
// constructed lazily on first use and closed exactly once at shutdown. The
// factory is an injection point; tests supply one returning a double.
type Provider struct {
	mu      sync.Mutex
	client  Service
	factory func() Service
}

// NewProvider creates a provider that builds the client with the given factory.
func NewProvider(factory func() Service) *Provider {
	return &Provider{factory: factory}
}

// Client returns the existing client or constructs and caches a new one.
// Concurrent first access never creates two instances.
func (p *Provider) Client() Service {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		p.client = p.factory()
	}
	return p.client
}

// Shutdown closes the underlying client. Safe to call when no client was ever
// constructed, and safe to call more than once.
func (p *Provider) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}
