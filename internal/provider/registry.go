package provider

import (
	"slices"
	"sort"
	"sync"

	"github.com/Iron-Ham/tandem/internal/pipeline"
)

// Registry maps pipeline names to the provider each pipeline is given.
// The orchestrator fills it once and uses it to compose plugin lists.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Provider)}
}

// Register assigns p to the named pipeline, replacing any earlier entry.
func (r *Registry) Register(pipelineName string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[pipelineName] = p
}

// Lookup returns the provider registered for the named pipeline.
func (r *Registry) Lookup(pipelineName string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.entries[pipelineName]
	return p, ok
}

// Inject returns a copy of plugins with the named pipeline's provider placed
// first. Without a registration the copy is returned unchanged, and the
// pipeline's consumers will fail to locate a provider.
func (r *Registry) Inject(pipelineName string, plugins []pipeline.Plugin) []pipeline.Plugin {
	p, ok := r.Lookup(pipelineName)
	if !ok {
		return slices.Clone(plugins)
	}
	out := make([]pipeline.Plugin, 0, len(plugins)+1)
	out = append(out, p)
	return append(out, plugins...)
}

// Pipelines returns the registered pipeline names in sorted order.
func (r *Registry) Pipelines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
