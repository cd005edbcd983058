package shim

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tandemerrors "github.com/Iron-Ham/tandem/internal/errors"
	"github.com/Iron-Ham/tandem/internal/testutil"
)

func TestGlobalKey(t *testing.T) {
	tests := map[string]string{
		"default":   "ZGVmYXVsdA==",
		"foo":       "Zm9v",
		"versions":  "dmVyc2lvbnM=",
		"sha256sum": "c2hhMjU2c3Vt",
	}
	for name, want := range tests {
		assert.Equal(t, want, GlobalKey(name), name)
	}
	assert.Equal(t, GlobalKey("foo"), GlobalKey("foo"), "keys are deterministic")
}

func TestGenerate_DefaultAndNamed(t *testing.T) {
	out := Generate([]string{"default", "foo"})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "export default globalThis['ZGVmYXVsdA=='];", lines[0])
	assert.Equal(t, "export const foo = globalThis['Zm9v'];", lines[1])
	assert.Equal(t, 1, strings.Count(out, "export default"))
}

func TestGenerate_NonIdentifierNames(t *testing.T) {
	out := Generate([]string{"my-export", "class"})

	assert.Contains(t, out, "const __export0 = globalThis['"+GlobalKey("my-export")+"'];")
	assert.Contains(t, out, `export { __export0 as "my-export" };`)
	assert.Contains(t, out, `export { __export1 as "class" };`)
	assert.NotContains(t, out, "export const class")
}

func TestGenerate_Empty(t *testing.T) {
	assert.Empty(t, Generate(nil))
}

func TestExportNames(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"src/index.ts": `import { contextBridge } from 'electron';
export * from './versions';
export function foo() { return contextBridge; }
export type Hidden = string;
const api = { foo };
export default api;
`,
		"src/versions.ts": "export const versions = { node: '20' };\n",
	})

	names, err := ExportNames(context.Background(), filepath.Join(root, "src", "index.ts"))
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "foo", "versions"}, names)
}

func TestExportNames_Failures(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"src/broken.ts": "export const = ;\n",
	})

	_, err := ExportNames(context.Background(), filepath.Join(root, "src", "broken.ts"))
	assert.Error(t, err)

	_, err = ExportNames(context.Background(), filepath.Join(root, "src", "missing.ts"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ExportNames(ctx, filepath.Join(root, "src", "broken.ts"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerator_ResolveID(t *testing.T) {
	g := New("/work/packages/preload", "src/index.ts", "", nil)

	tests := []struct {
		id   string
		want bool
	}{
		{"virtual:browser.js", true},
		{"@app/preload/virtual:browser.js", true},
		{"./virtual:browser.js", true},
		{"virtual:browser.ts", false},
		{"browser.js", false},
	}
	for _, tt := range tests {
		resolved, ok := g.ResolveID(tt.id, "")
		assert.Equal(t, tt.want, ok, tt.id)
		if ok {
			assert.Equal(t, DefaultVirtualModule, resolved)
		}
	}
}

func TestGenerator_Load(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"src/index.ts": "export const foo = 1;\nexport default function api() {}\n",
	})
	g := New(root, "src/index.ts", "", nil)

	t.Run("other ids are not handled", func(t *testing.T) {
		out, ok, err := g.Load(context.Background(), "src/index.ts")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, out)
	})

	t.Run("virtual module", func(t *testing.T) {
		out, ok, err := g.Load(context.Background(), DefaultVirtualModule)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t,
			"export default globalThis['ZGVmYXVsdA=='];\nexport const foo = globalThis['Zm9v'];\n",
			out)
	})
}

func TestGenerator_LoadMalformedSource(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"src/index.ts": "export const foo = ;\n",
	})
	g := New(root, "src/index.ts", "", nil)

	out, ok, err := g.Load(context.Background(), DefaultVirtualModule)
	assert.False(t, ok)
	assert.Empty(t, out, "no partial module")

	var introErr *tandemerrors.SourceIntrospectionError
	require.ErrorAs(t, err, &introErr)
	assert.Equal(t, filepath.Join(root, "src", "index.ts"), introErr.Entry)
	assert.ErrorIs(t, err, tandemerrors.ErrExportResolution)
}

func TestGenerator_CustomVirtualID(t *testing.T) {
	g := New("/work", "src/index.ts", "virtual:preload.js", nil)
	assert.Equal(t, "virtual:preload.js", g.VirtualID())
	assert.Equal(t, PluginName, g.Name())

	_, ok := g.ResolveID("virtual:browser.js", "")
	assert.False(t, ok)
	_, ok = g.ResolveID("virtual:preload.js", "")
	assert.True(t, ok)
}
