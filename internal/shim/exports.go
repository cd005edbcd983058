package shim

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// metafile is the part of esbuild's metafile that lists output exports.
type metafile struct {
	Outputs map[string]struct {
		EntryPoint string   `json:"entryPoint"`
		Exports    []string `json:"exports"`
	} `json:"outputs"`
}

// ExportNames returns the runtime export names of the module at entry,
// sorted. The module is parsed and bundled in memory but never executed.
// Re-exports (`export * from`) are followed; type-only exports are not
// included. Bare package imports stay external, so dependencies do not need
// to be installed.
func ExportNames(ctx context.Context, entry string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(entry); err != nil {
		return nil, err
	}

	result := api.Build(api.BuildOptions{
		EntryPoints:   []string{entry},
		AbsWorkingDir: filepath.Dir(entry),
		Bundle:        true,
		Write:         false,
		Metafile:      true,
		Format:        api.FormatESModule,
		Platform:      api.PlatformNode,
		Packages:      api.PackagesExternal,
		Outdir:        filepath.Join(os.TempDir(), "tandem-shim"),
		LogLevel:      api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, &introspectionFailure{messages: result.Errors}
	}

	var meta metafile
	if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
		return nil, err
	}

	names := []string{}
	for _, out := range meta.Outputs {
		if out.EntryPoint == "" {
			continue
		}
		names = append(names, out.Exports...)
	}
	sort.Strings(names)
	return names, nil
}

type introspectionFailure struct {
	messages []api.Message
}

func (e *introspectionFailure) Error() string {
	parts := make([]string, 0, len(e.messages))
	for _, m := range e.messages {
		text := m.Text
		if m.Location != nil {
			text = m.Location.File + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "; ")
}
