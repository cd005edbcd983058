package preview

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/sync/singleflight"

	"github.com/Iron-Ham/tandem/internal/config"
	tandemerrors "github.com/Iron-Ham/tandem/internal/errors"
	"github.com/Iron-Ham/tandem/internal/pipeline"
)

// bundleName is the pipeline name used in renderer build errors.
const bundleName = "renderer"

// moduleExtensions are bundled on request instead of served as files.
var moduleExtensions = map[string]bool{
	".ts":  true,
	".tsx": true,
	".mts": true,
	".js":  true,
	".jsx": true,
	".mjs": true,
}

// assetLoaders inline small assets imported from renderer code.
var assetLoaders = map[string]api.Loader{
	".png":   api.LoaderDataURL,
	".jpg":   api.LoaderDataURL,
	".jpeg":  api.LoaderDataURL,
	".gif":   api.LoaderDataURL,
	".svg":   api.LoaderDataURL,
	".webp":  api.LoaderDataURL,
	".woff":  api.LoaderDataURL,
	".woff2": api.LoaderDataURL,
}

func isModule(urlPath string) bool {
	return moduleExtensions[strings.ToLower(filepath.Ext(urlPath))]
}

// modules bundles renderer entry modules on demand and caches the result
// until the next invalidate.
type modules struct {
	root    string
	mode    string
	aliases map[string]string

	cache cmap.ConcurrentMap[string, []byte]
	group singleflight.Group
}

func newModules(root, mode string, aliases map[string]string) *modules {
	resolved := make(map[string]string, len(aliases))
	for spec, target := range aliases {
		if !filepath.IsAbs(target) {
			target = filepath.Join(root, target)
		}
		resolved[spec] = target
	}
	return &modules{
		root:    root,
		mode:    mode,
		aliases: resolved,
		cache:   cmap.New[[]byte](),
	}
}

// bundle returns the browser bundle for the module at file. Concurrent
// requests for the same file share one build.
func (m *modules) bundle(file string) ([]byte, error) {
	if code, ok := m.cache.Get(file); ok {
		return code, nil
	}
	v, err, _ := m.group.Do(file, func() (any, error) {
		code, err := m.build(file)
		if err != nil {
			return nil, err
		}
		m.cache.Set(file, code)
		return code, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// invalidate drops every cached bundle.
func (m *modules) invalidate() {
	m.cache.Clear()
}

func (m *modules) build(file string) ([]byte, error) {
	result := api.Build(api.BuildOptions{
		AbsWorkingDir: m.root,
		EntryPoints:   []string{file},
		Bundle:        true,
		Format:        api.FormatESModule,
		Platform:      api.PlatformBrowser,
		Target:        api.ESNext,
		Outdir:        filepath.Join(m.root, ".tandem"),
		Write:         false,
		Sourcemap:     api.SourceMapInline,
		JSX:           api.JSXAutomatic,
		Alias:         m.aliases,
		Loader:        assetLoaders,
		Define:        m.defines(),
		LogLevel:      api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, tandemerrors.NewBuildError(bundleName, pipeline.Messages(result.Errors))
	}

	var js, css []byte
	for _, out := range result.OutputFiles {
		switch filepath.Ext(out.Path) {
		case ".js":
			js = out.Contents
		case ".css":
			css = out.Contents
		}
	}
	if len(css) == 0 {
		return js, nil
	}
	return withStyles(js, css, file), nil
}

func (m *modules) defines() map[string]string {
	mode, _ := json.Marshal(m.mode)
	dev := "false"
	if m.mode == config.ModeDevelopment {
		dev = "true"
	}
	prod := "false"
	if m.mode == config.ModeProduction {
		prod = "true"
	}
	return map[string]string{
		"import.meta.env.MODE": string(mode),
		"import.meta.env.DEV":  dev,
		"import.meta.env.PROD": prod,
		"process.env.NODE_ENV": string(mode),
	}
}

// withStyles appends a snippet that installs the CSS imported by the module
// as a style element.
func withStyles(js, css []byte, file string) []byte {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	cssLiteral, _ := json.Marshal(string(css))
	idLiteral, _ := json.Marshal(filepath.Base(file))

	_, _ = buf.Write(js)
	_, _ = buf.WriteString("\n;(() => {\n")
	_, _ = buf.WriteString("  const id = " + string(idLiteral) + ";\n")
	_, _ = buf.WriteString("  let style = document.querySelector(`style[data-tandem-id=\"${id}\"]`);\n")
	_, _ = buf.WriteString("  if (!style) {\n")
	_, _ = buf.WriteString("    style = document.createElement('style');\n")
	_, _ = buf.WriteString("    style.setAttribute('data-tandem-id', id);\n")
	_, _ = buf.WriteString("    document.head.appendChild(style);\n")
	_, _ = buf.WriteString("  }\n")
	_, _ = buf.WriteString("  style.textContent = " + string(cssLiteral) + ";\n")
	_, _ = buf.WriteString("})();\n")

	return append([]byte(nil), buf.B...)
}
