package pipeline

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/Iron-Ham/tandem/internal/config"
)

// Plugin is an entry in a pipeline's plugin list. Every hook a plugin
// implements is optional.
type Plugin interface {
	Name() string
}

// ConfigHook is called once with the mutable build configuration before the
// first build. Returning an error aborts the pipeline before anything is
// built or watched.
type ConfigHook interface {
	Plugin
	Config(ctx context.Context, cfg *Config) error
}

// ResolveHook claims module ids. The first hook that returns ok wins; the
// returned id is then passed to LoadHook implementations.
type ResolveHook interface {
	Plugin
	ResolveID(id, importer string) (resolved string, ok bool)
}

// LoadHook produces source text for ids claimed by a ResolveHook. The first
// hook that returns ok wins.
type LoadHook interface {
	Plugin
	Load(ctx context.Context, id string) (contents string, ok bool, err error)
}

// WriteBundleHook is called after every successful build has been written to
// disk. Hooks run in plugin order; an error stops the remaining hooks for
// that build.
type WriteBundleHook interface {
	Plugin
	WriteBundle(ctx context.Context, bundle *Bundle) error
}

// CloseHook is called when the pipeline's session ends.
type CloseHook interface {
	Plugin
	Close() error
}

// Platform selects the esbuild target environment.
type Platform string

const (
	PlatformNode    Platform = "node"
	PlatformBrowser Platform = "browser"
)

// Entry is one build entry point. Path is relative to the pipeline root or a
// virtual module id. OutName overrides the output file base name.
type Entry struct {
	Path    string
	OutName string
}

// Config describes one pipeline. Config hooks receive a pointer to the
// pipeline's copy and may modify Env and Watch.
type Config struct {
	// Name identifies the pipeline, e.g. "preload" or "main".
	Name string
	// Mode is config.ModeDevelopment or config.ModeProduction.
	Mode string
	// Root is the absolute package directory; entries resolve against it.
	Root    string
	Entries []Entry
	// OutDir is relative to Root.
	OutDir string
	// EmptyOutDir removes OutDir before the first build. It is ignored when
	// OutDir is not inside Root.
	EmptyOutDir bool
	Platform    Platform
	// OutExtension maps output extensions, e.g. ".js" to ".mjs".
	OutExtension map[string]string
	// External module ids are left as imports.
	External []string
	// ExternalPackages keeps every bare package import external.
	ExternalPackages bool
	// Sourcemap emits inline source maps.
	Sourcemap bool
	// Plugins is the raw plugin list; entries may be nil, *Deferred or Group.
	Plugins []Plugin
	// Env holds values exposed to bundled code as import.meta.env.KEY and
	// passed to any child process a plugin starts. Plugins add to it during
	// the config phase.
	Env map[string]string
	// Watch keeps the pipeline rebuilding on source changes after the first
	// build. Plugins may turn it on during the config phase.
	Watch bool
}

// IsDevelopment reports whether hot-reload behaviour should be active.
func (c *Config) IsDevelopment() bool {
	return c.Mode == config.ModeDevelopment
}

// SetEnv records a value in Env, allocating the map if needed.
func (c *Config) SetEnv(key, value string) {
	if c.Env == nil {
		c.Env = make(map[string]string)
	}
	c.Env[key] = value
}

// OutPath returns the absolute output directory.
func (c *Config) OutPath() string {
	return joinRoot(c.Root, c.OutDir)
}

func (c Config) clone() Config {
	c.Entries = slices.Clone(c.Entries)
	c.External = slices.Clone(c.External)
	c.Plugins = slices.Clone(c.Plugins)
	c.OutExtension = maps.Clone(c.OutExtension)
	c.Env = maps.Clone(c.Env)
	return c
}

// Bundle describes one successful build handed to WriteBundle hooks.
type Bundle struct {
	Pipeline string
	// Generation counts builds within a session, starting at 1.
	Generation int
	// Outputs are the absolute paths written.
	Outputs  []string
	Duration time.Duration
	// Config is the pipeline configuration after the config phase.
	Config *Config
}

// Group is a nested plugin list. The pipeline flattens groups recursively.
type Group []Plugin

// Name implements Plugin.
func (Group) Name() string { return "group" }

// Deferred is a plugin that becomes available asynchronously.
type Deferred struct {
	done   chan struct{}
	plugin Plugin
	err    error
}

// Defer starts fn in a goroutine and returns a list entry that resolves to
// its result.
func Defer(fn func() (Plugin, error)) *Deferred {
	d := &Deferred{done: make(chan struct{})}
	go func() {
		defer close(d.done)
		d.plugin, d.err = fn()
	}()
	return d
}

// Resolved returns a Deferred that is already resolved to p.
func Resolved(p Plugin) *Deferred {
	d := &Deferred{done: make(chan struct{}), plugin: p}
	close(d.done)
	return d
}

// Name implements Plugin.
func (d *Deferred) Name() string { return "deferred" }

// Await blocks until the plugin is available or ctx is done.
func (d *Deferred) Await(ctx context.Context) (Plugin, error) {
	select {
	case <-d.done:
		return d.plugin, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// IsNil reports whether p is nil or a typed nil pointer.
func IsNil(p Plugin) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Flatten expands groups recursively, awaits deferred entries and drops nil
// entries, preserving order.
func Flatten(ctx context.Context, plugins []Plugin) ([]Plugin, error) {
	out := make([]Plugin, 0, len(plugins))
	for _, p := range plugins {
		switch v := p.(type) {
		case Group:
			nested, err := Flatten(ctx, v)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		case *Deferred:
			if v == nil {
				continue
			}
			resolved, err := v.Await(ctx)
			if err != nil {
				return nil, fmt.Errorf("deferred plugin: %w", err)
			}
			nested, err := Flatten(ctx, []Plugin{resolved})
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		default:
			if IsNil(p) {
				continue
			}
			out = append(out, p)
		}
	}
	return out, nil
}
