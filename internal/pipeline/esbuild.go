package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/Iron-Ham/tandem/internal/config"
)

// virtualNamespace holds ids claimed by a ResolveHook.
const virtualNamespace = "virtual"

// buildOptions translates the pipeline configuration into esbuild options.
// Output is kept in memory; the pipeline writes it.
func buildOptions(ctx context.Context, cfg *Config, plugins []Plugin) api.BuildOptions {
	opts := api.BuildOptions{
		AbsWorkingDir:       cfg.Root,
		EntryPointsAdvanced: entryPoints(cfg),
		Bundle:              true,
		Outdir:              cfg.OutPath(),
		Format:              api.FormatESModule,
		Target:              api.ESNext,
		OutExtension:        cfg.OutExtension,
		External:            cfg.External,
		Define:              defines(cfg),
		Write:               false,
		LogLevel:            api.LogLevelSilent,
		Plugins:             hookPlugins(ctx, cfg, plugins),
	}

	switch cfg.Platform {
	case PlatformBrowser:
		opts.Platform = api.PlatformBrowser
	default:
		opts.Platform = api.PlatformNode
	}
	if cfg.ExternalPackages {
		opts.Packages = api.PackagesExternal
	}
	if cfg.Sourcemap {
		opts.Sourcemap = api.SourceMapInline
	}
	if !cfg.IsDevelopment() {
		opts.MinifySyntax = true
		opts.MinifyWhitespace = true
	}
	return opts
}

func entryPoints(cfg *Config) []api.EntryPoint {
	eps := make([]api.EntryPoint, 0, len(cfg.Entries))
	for _, e := range cfg.Entries {
		out := e.OutName
		if out == "" {
			out = outName(e.Path)
		}
		eps = append(eps, api.EntryPoint{InputPath: e.Path, OutputPath: out})
	}
	return eps
}

// outName derives an output base name from an entry path or virtual id:
// "src/exposed.ts" becomes "exposed", "virtual:browser.js" becomes "browser".
func outName(path string) string {
	if i := strings.LastIndex(path, ":"); i >= 0 {
		path = path[i+1:]
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// defines exposes Env as import.meta.env.KEY along with MODE, DEV and PROD.
func defines(cfg *Config) map[string]string {
	d := map[string]string{
		"import.meta.env.MODE": jsString(cfg.Mode),
		"import.meta.env.DEV":  boolString(cfg.Mode == config.ModeDevelopment),
		"import.meta.env.PROD": boolString(cfg.Mode == config.ModeProduction),
	}
	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !validIdentifier(k) {
			continue
		}
		d["import.meta.env."+k] = jsString(cfg.Env[k])
	}
	return d
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// hookPlugins adapts ResolveHook and LoadHook implementations into one
// esbuild plugin. Returns nil when no plugin implements either hook.
func hookPlugins(ctx context.Context, cfg *Config, plugins []Plugin) []api.Plugin {
	var resolvers []ResolveHook
	var loaders []LoadHook
	for _, p := range plugins {
		if r, ok := p.(ResolveHook); ok {
			resolvers = append(resolvers, r)
		}
		if l, ok := p.(LoadHook); ok {
			loaders = append(loaders, l)
		}
	}
	if len(resolvers) == 0 && len(loaders) == 0 {
		return nil
	}

	return []api.Plugin{{
		Name: "tandem:" + cfg.Name,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					for _, r := range resolvers {
						if id, ok := r.ResolveID(args.Path, args.Importer); ok {
							return api.OnResolveResult{
								Path:       id,
								Namespace:  virtualNamespace,
								PluginName: r.Name(),
							}, nil
						}
					}
					return api.OnResolveResult{}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: virtualNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					for _, l := range loaders {
						contents, ok, err := l.Load(ctx, args.Path)
						if err != nil {
							return api.OnLoadResult{PluginName: l.Name()}, err
						}
						if ok {
							return api.OnLoadResult{
								Contents:   &contents,
								Loader:     api.LoaderJS,
								ResolveDir: cfg.Root,
								PluginName: l.Name(),
							}, nil
						}
					}
					return api.OnLoadResult{}, nil
				})
		},
	}}
}

// Messages renders esbuild diagnostics as plain lines.
func Messages(msgs []api.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		text := m.Text
		if m.PluginName != "" {
			text = "[" + m.PluginName + "] " + text
		}
		if m.Location != nil {
			text = m.Location.File + ":" + strconv.Itoa(m.Location.Line) + ":" + strconv.Itoa(m.Location.Column) + ": " + text
		}
		out = append(out, text)
	}
	return out
}
