package provider

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/tandem/internal/pipeline"
)

// fakeServer is a minimal API implementation.
type fakeServer struct {
	mu   sync.Mutex
	urls *URLs
	sent []Message
}

func newFakeServer() *fakeServer {
	return &fakeServer{urls: &URLs{Local: []string{"http://localhost:5173/"}}}
}

func (f *fakeServer) ResolvedURLs() *URLs { return f.urls }

func (f *fakeServer) Send(msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

type plainPlugin string

func (p plainPlugin) Name() string { return string(p) }

// impostor has the right name and shape but is not a Capability.
type impostor struct{ api API }

func (i impostor) Name() string { return Name }
func (i impostor) API() API     { return i.api }

func TestLocate_FindsSingleWellFormedProvider(t *testing.T) {
	capability := New(newFakeServer())

	lists := map[string][]pipeline.Plugin{
		"only entry":   {capability},
		"first entry":  {capability, plainPlugin("a")},
		"last entry":   {plainPlugin("a"), plainPlugin("b"), capability},
		"after a nil":  {nil, capability},
		"after groups": {pipeline.Group{plainPlugin("x")}, capability},
	}

	for name, plugins := range lists {
		t.Run(name, func(t *testing.T) {
			got, ok := Locate(plugins)
			require.True(t, ok)
			assert.Same(t, capability, got)
		})
	}
}

func TestLocate_NotFound(t *testing.T) {
	var typedNil *Capability

	lists := map[string][]pipeline.Plugin{
		"empty list":        {},
		"nil list":          nil,
		"only nils":         {nil, typedNil},
		"unrelated plugins": {plainPlugin("a"), plainPlugin(Name + "-other")},
		"wrong name":        {&Capability{name: "other", api: newFakeServer()}},
	}

	for name, plugins := range lists {
		t.Run(name, func(t *testing.T) {
			got, ok := Locate(plugins)
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

func TestLocate_MissingPayload(t *testing.T) {
	var nilServer *fakeServer

	tests := map[string]pipeline.Plugin{
		"nil api":           New(nil),
		"typed nil api":     New(nilServer),
		"unresolved urls":   New(&fakeServer{}),
		"impostor with nil": impostor{},
	}

	for name, entry := range tests {
		t.Run(name, func(t *testing.T) {
			_, ok := Locate([]pipeline.Plugin{entry})
			assert.False(t, ok)
		})
	}
}

func TestLocate_AcceptsAnyWellFormedProvider(t *testing.T) {
	entry := impostor{api: newFakeServer()}

	got, ok := Locate([]pipeline.Plugin{entry})
	require.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestLocate_DoesNotRecurseIntoGroups(t *testing.T) {
	capability := New(newFakeServer())

	plugins := []pipeline.Plugin{
		pipeline.Group{capability},
		pipeline.Group{pipeline.Group{capability}},
	}

	_, ok := Locate(plugins)
	assert.False(t, ok, "a provider inside a nested group must not be found")
}

func TestLocate_DoesNotInspectDeferredEntries(t *testing.T) {
	capability := New(newFakeServer())

	plugins := []pipeline.Plugin{
		pipeline.Resolved(capability),
		pipeline.Defer(func() (pipeline.Plugin, error) { return capability, nil }),
	}

	_, ok := Locate(plugins)
	assert.False(t, ok, "a deferred provider must not be found")
}

func TestLocate_DoesNotModifyList(t *testing.T) {
	server := newFakeServer()
	capability := New(server)
	plugins := []pipeline.Plugin{plainPlugin("a"), nil, capability}
	before := append([]pipeline.Plugin(nil), plugins...)

	_, _ = Locate(plugins)

	assert.Equal(t, before, plugins)
	assert.Empty(t, server.sent)
}

func TestURLs_First(t *testing.T) {
	var nilURLs *URLs
	_, ok := nilURLs.First()
	assert.False(t, ok)

	_, ok = (&URLs{}).First()
	assert.False(t, ok)

	u, ok := (&URLs{Network: []string{"http://10.0.0.2:5173/"}}).First()
	assert.True(t, ok)
	assert.Equal(t, "http://10.0.0.2:5173/", u)

	u, ok = (&URLs{Local: []string{"http://localhost:5173/"}, Network: []string{"http://10.0.0.2:5173/"}}).First()
	assert.True(t, ok)
	assert.Equal(t, "http://localhost:5173/", u)
}

func TestURLs_LocalURL(t *testing.T) {
	var nilURLs *URLs
	_, ok := nilURLs.LocalURL()
	assert.False(t, ok)

	_, ok = (&URLs{Network: []string{"http://10.0.0.2:5173/"}}).LocalURL()
	assert.False(t, ok, "a network address is not a local url")

	u, ok := (&URLs{Local: []string{"http://localhost:5173/"}, Network: []string{"http://10.0.0.2:5173/"}}).LocalURL()
	assert.True(t, ok)
	assert.Equal(t, "http://localhost:5173/", u)
}

func TestRegistry(t *testing.T) {
	capability := New(newFakeServer())
	reg := NewRegistry()
	reg.Register("preload", capability)
	reg.Register("main", capability)

	assert.Equal(t, []string{"main", "preload"}, reg.Pipelines())

	got, ok := reg.Lookup("main")
	require.True(t, ok)
	assert.Same(t, capability, got)

	_, ok = reg.Lookup("renderer")
	assert.False(t, ok)
}

func TestRegistry_Inject(t *testing.T) {
	capability := New(newFakeServer())
	reg := NewRegistry()
	reg.Register("main", capability)

	own := []pipeline.Plugin{plainPlugin("controller")}

	injected := reg.Inject("main", own)
	require.Len(t, injected, 2)
	assert.Same(t, capability, injected[0])
	assert.Len(t, own, 1, "Inject must not modify its input")

	found, ok := Locate(injected)
	require.True(t, ok)
	assert.Same(t, capability, found)

	// A pipeline with no registration gets no provider.
	plain := reg.Inject("preload", own)
	_, ok = Locate(plain)
	assert.False(t, ok)
}
