package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/tandem/internal/config"
	tandemerrors "github.com/Iron-Ham/tandem/internal/errors"
	"github.com/Iron-Ham/tandem/internal/event"
	"github.com/Iron-Ham/tandem/internal/testutil"
	"github.com/Iron-Ham/tandem/internal/watch"
)

type namedPlugin string

func (n namedPlugin) Name() string { return string(n) }

type configFunc struct {
	name string
	fn   func(ctx context.Context, cfg *Config) error
}

func (c *configFunc) Name() string { return c.name }
func (c *configFunc) Config(ctx context.Context, cfg *Config) error {
	return c.fn(ctx, cfg)
}

type bundleRecorder struct {
	mu      sync.Mutex
	bundles []*Bundle
	closed  int
}

func (r *bundleRecorder) Name() string { return "recorder" }

func (r *bundleRecorder) WriteBundle(_ context.Context, b *Bundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles = append(r.bundles, b)
	return nil
}

func (r *bundleRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *bundleRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bundles)
}

type virtualModule struct {
	id       string
	contents string
	err      error
}

func (v *virtualModule) Name() string { return "virtual-" + v.id }

func (v *virtualModule) ResolveID(id, _ string) (string, bool) {
	return v.id, strings.HasSuffix(id, v.id)
}

func (v *virtualModule) Load(_ context.Context, id string) (string, bool, error) {
	if id != v.id {
		return "", false, nil
	}
	if v.err != nil {
		return "", false, v.err
	}
	return v.contents, true, nil
}

func mainConfig(root string, plugins ...Plugin) Config {
	return Config{
		Name:             "main",
		Mode:             config.ModeProduction,
		Root:             root,
		Entries:          []Entry{{Path: "src/index.ts"}},
		OutDir:           "dist",
		Platform:         PlatformNode,
		ExternalPackages: true,
		External:         []string{"electron"},
		Plugins:          plugins,
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"missing name", Config{Root: "/x", Entries: []Entry{{Path: "a.ts"}}}, "name"},
		{"missing root", Config{Name: "main", Entries: []Entry{{Path: "a.ts"}}}, "root"},
		{"missing entries", Config{Name: "main", Root: "/x"}, "entries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			var verr *tandemerrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, tandemerrors.ErrInvalidConfig)
		})
	}
}

func TestFlatten(t *testing.T) {
	var typedNil *bundleRecorder
	a, b, c, d := namedPlugin("a"), namedPlugin("b"), namedPlugin("c"), namedPlugin("d")

	plugins := []Plugin{
		nil,
		a,
		typedNil,
		Group{b, Group{c}},
		Resolved(Group{d}),
		Defer(func() (Plugin, error) { return nil, nil }),
	}

	got, err := Flatten(context.Background(), plugins)
	require.NoError(t, err)

	names := make([]string, 0, len(got))
	for _, p := range got {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
}

func TestFlatten_DeferredError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Flatten(context.Background(), []Plugin{
		Defer(func() (Plugin, error) { return nil, boom }),
	})
	assert.ErrorIs(t, err, boom)
}

func TestDeferred_AwaitRespectsContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	d := Defer(func() (Plugin, error) {
		<-block
		return namedPlugin("late"), nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsNil(t *testing.T) {
	var typedNil *virtualModule
	assert.True(t, IsNil(nil))
	assert.True(t, IsNil(typedNil))
	assert.False(t, IsNil(namedPlugin("x")))
	assert.False(t, IsNil(&virtualModule{}))
}

func TestOutName(t *testing.T) {
	tests := map[string]string{
		"src/exposed.ts":     "exposed",
		"virtual:browser.js": "browser",
		"src/index.ts":       "index",
		"main":               "main",
	}
	for in, want := range tests {
		assert.Equal(t, want, outName(in), in)
	}
}

func TestDefines(t *testing.T) {
	cfg := &Config{
		Mode: config.ModeDevelopment,
		Env: map[string]string{
			"VITE_DEV_SERVER_URL": "http://localhost:5173/",
			"bad-key":             "ignored",
		},
	}

	d := defines(cfg)
	assert.Equal(t, `"development"`, d["import.meta.env.MODE"])
	assert.Equal(t, "true", d["import.meta.env.DEV"])
	assert.Equal(t, "false", d["import.meta.env.PROD"])
	assert.Equal(t, `"http://localhost:5173/"`, d["import.meta.env.VITE_DEV_SERVER_URL"])
	_, ok := d["import.meta.env.bad-key"]
	assert.False(t, ok)
}

func TestBuild_Production(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"src/index.ts": "import { app } from 'electron';\nexport const url: string = import.meta.env.VITE_DEV_SERVER_URL;\napp.whenReady();\n",
	})
	rec := &bundleRecorder{}
	cfg := mainConfig(root, rec)
	cfg.OutExtension = map[string]string{".js": ".mjs"}
	cfg.Env = map[string]string{"VITE_DEV_SERVER_URL": "http://localhost:5173/"}

	p, err := New(cfg)
	require.NoError(t, err)

	session, err := p.Build(context.Background())
	require.NoError(t, err)

	assert.False(t, session.Watching())
	assert.Equal(t, 1, session.Generation())
	select {
	case <-session.Done():
	default:
		t.Fatal("non-watch session should be finished")
	}

	out := filepath.Join(root, "dist", "index.mjs")
	assert.Equal(t, []string{out}, session.Outputs())
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "http://localhost:5173/")
	assert.Contains(t, string(data), "electron")

	require.Equal(t, 1, rec.count())
	assert.Equal(t, "main", rec.bundles[0].Pipeline)
	assert.Equal(t, 1, rec.bundles[0].Generation)
	assert.Equal(t, 1, rec.closed)
}

func TestBuild_ConfigHookErrorStopsBeforeBuild(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"src/index.ts": "export {};\n"})
	cfgErr := tandemerrors.NewConfigurationError("provider missing", tandemerrors.ErrProviderNotFound)
	rec := &bundleRecorder{}
	hook := &configFunc{name: "fails", fn: func(context.Context, *Config) error { return cfgErr }}

	p, err := New(mainConfig(root, hook, rec))
	require.NoError(t, err)

	session, err := p.Build(context.Background())
	assert.Nil(t, session)
	assert.ErrorIs(t, err, tandemerrors.ErrProviderNotFound)
	assert.Equal(t, 0, rec.count())
	assert.NoDirExists(t, filepath.Join(root, "dist"))
}

func TestBuild_ConfigHookSeesRawPluginList(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"src/index.ts": "export {};\n"})

	var seen []Plugin
	hook := &configFunc{name: "inspect", fn: func(_ context.Context, cfg *Config) error {
		seen = cfg.Plugins
		return nil
	}}
	nested := Group{namedPlugin("inner")}

	p, err := New(mainConfig(root, nil, nested, hook))
	require.NoError(t, err)

	_, err = p.Build(context.Background())
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Nil(t, seen[0])
	assert.IsType(t, Group{}, seen[1])
}

func TestBuild_ConfigHookPatchesEnv(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"src/index.ts": "export const target = import.meta.env.TARGET;\n",
	})
	hook := &configFunc{name: "env", fn: func(_ context.Context, cfg *Config) error {
		cfg.SetEnv("TARGET", "patched-value")
		return nil
	}}

	p, err := New(mainConfig(root, hook))
	require.NoError(t, err)

	session, err := p.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "patched-value", session.Config().Env["TARGET"])

	data, err := os.ReadFile(filepath.Join(root, "dist", "index.js"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "patched-value")

	// The pipeline's own configuration is untouched, so the next Build
	// starts from the original Env.
	assert.Empty(t, p.cfg.Env)
}

func TestBuild_VirtualEntry(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"src/index.ts": "export const a = 1;\n"})
	vm := &virtualModule{id: "virtual:browser.js", contents: "export const fromVirtual = 'generated';\n"}

	cfg := mainConfig(root, vm)
	cfg.Entries = append(cfg.Entries, Entry{Path: "virtual:browser.js"})
	cfg.OutExtension = map[string]string{".js": ".mjs"}

	p, err := New(cfg)
	require.NoError(t, err)

	session, err := p.Build(context.Background())
	require.NoError(t, err)
	assert.Len(t, session.Outputs(), 2)

	data, err := os.ReadFile(filepath.Join(root, "dist", "browser.mjs"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "generated")
}

func TestBuild_LoadHookErrorFailsBuild(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"src/index.ts": "export const a = 1;\n"})
	vm := &virtualModule{id: "virtual:browser.js", err: errors.New("cannot read exports")}

	cfg := mainConfig(root, vm)
	cfg.Entries = []Entry{{Path: "virtual:browser.js"}}

	p, err := New(cfg)
	require.NoError(t, err)

	_, err = p.Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, tandemerrors.ErrBuildFailed)
	assert.Contains(t, err.Error(), "cannot read exports")
	assert.NoFileExists(t, filepath.Join(root, "dist", "browser.js"))
}

func TestBuild_SyntaxError(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"src/index.ts": "export const = ;\n"})
	bus := event.NewBus()
	var failed []event.Event
	bus.Subscribe(event.TypePipelineFailed, func(e event.Event) { failed = append(failed, e) })

	p, err := New(mainConfig(root), WithBus(bus))
	require.NoError(t, err)

	_, err = p.Build(context.Background())
	var buildErr *tandemerrors.BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "main", buildErr.Pipeline)
	assert.NotEmpty(t, buildErr.Messages)
	assert.Len(t, failed, 1)
}

func TestBuild_WatchRebuildsOnChange(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"src/index.ts": "export const v = 1;\n"})
	rec := &bundleRecorder{}
	enableWatch := &configFunc{name: "watch", fn: func(_ context.Context, cfg *Config) error {
		cfg.Watch = true
		return nil
	}}

	bus := event.NewBus()
	var mu sync.Mutex
	var rebuilt []int
	bus.Subscribe(event.TypePipelineRebuilt, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		rebuilt = append(rebuilt, e.(event.PipelineRebuiltEvent).Generation)
	})

	p, err := New(mainConfig(root, enableWatch, rec),
		WithBus(bus),
		WithWatchOptions(watch.Options{Debounce: 20 * time.Millisecond}),
	)
	require.NoError(t, err)

	session, err := p.Build(context.Background())
	require.NoError(t, err)
	defer func() { _ = session.Close() }()
	assert.True(t, session.Watching())

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "index.ts"), []byte("export const v = 2;\n"), 0644))

	ok := testutil.WaitFor(5*time.Second, func() bool { return session.Generation() >= 2 })
	require.True(t, ok, "session did not rebuild after a source change")
	assert.GreaterOrEqual(t, rec.count(), 2)

	// Writing dist/ must not cause a rebuild loop.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 2, session.Generation())

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	assert.Equal(t, 1, rec.closed)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, rebuilt)
}
