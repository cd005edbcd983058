// Package shim generates a browser stand-in for the preload package.
//
// In the packaged app the preload script hands its exports to the renderer
// through the host's bridge, keyed by the base64 form of each export name.
// When the renderer runs in the preview server there is no host, so the
// renderer imports a virtual module instead. The Generator answers for that
// module id with one line per export of the preload source entry, each
// reading the value from globalThis under the same key.
//
//	// src/index.ts
//	export const versions = process.versions;
//	export default api;
//
//	// generated virtual:browser.js
//	export const versions = globalThis['dmVyc2lvbnM='];
//	export default globalThis['ZGVmYXVsdA=='];
package shim

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"

	tandemerrors "github.com/Iron-Ham/tandem/internal/errors"
	"github.com/Iron-Ham/tandem/internal/logging"
)

// PluginName identifies the generator in a plugin list.
const PluginName = "tandem:preload-browser-shim"

// DefaultVirtualModule is the module id the renderer imports.
const DefaultVirtualModule = "virtual:browser.js"

// Generator serves the virtual browser module for one preload package.
type Generator struct {
	virtualID   string
	root        string
	sourceEntry string
	logger      *logging.Logger
}

// New creates a Generator. sourceEntry is resolved against root; it is the
// module whose exports are mirrored. An empty virtualID uses
// DefaultVirtualModule.
func New(root, sourceEntry, virtualID string, logger *logging.Logger) *Generator {
	if virtualID == "" {
		virtualID = DefaultVirtualModule
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Generator{
		virtualID:   virtualID,
		root:        root,
		sourceEntry: sourceEntry,
		logger:      logger.WithComponent("shim"),
	}
}

// Name implements pipeline.Plugin.
func (g *Generator) Name() string {
	return PluginName
}

// VirtualID returns the module id the generator answers for.
func (g *Generator) VirtualID() string {
	return g.virtualID
}

// SourcePath returns the absolute path of the mirrored source entry.
func (g *Generator) SourcePath() string {
	if filepath.IsAbs(g.sourceEntry) {
		return g.sourceEntry
	}
	return filepath.Join(g.root, g.sourceEntry)
}

// ResolveID claims any id that ends with the virtual module id, so both
// "virtual:browser.js" and "@app/preload/virtual:browser.js" resolve.
func (g *Generator) ResolveID(id, _ string) (string, bool) {
	if strings.HasSuffix(id, g.virtualID) {
		return g.virtualID, true
	}
	return "", false
}

// Load generates the virtual module. Nothing is returned for other ids. If
// the export names cannot be determined the load fails with a
// SourceIntrospectionError and no partial module is produced.
func (g *Generator) Load(ctx context.Context, id string) (string, bool, error) {
	if id != g.virtualID {
		return "", false, nil
	}

	source, err := g.Module(ctx)
	if err != nil {
		g.logger.Error("failed to generate browser module", "entry", g.SourcePath(), "error", err)
		return "", false, err
	}
	return source, true, nil
}

// Module returns the generated source for the current source entry.
func (g *Generator) Module(ctx context.Context) (string, error) {
	entry := g.SourcePath()
	names, err := ExportNames(ctx, entry)
	if err != nil {
		return "", tandemerrors.NewSourceIntrospectionError("cannot list exports",
			tandemerrors.Join(tandemerrors.ErrExportResolution, err)).WithEntry(entry)
	}
	g.logger.Debug("generated browser module", "entry", entry, "exports", len(names))
	return Generate(names), nil
}

// GlobalKey returns the globalThis key for an export name: the standard
// base64 encoding of its UTF-8 bytes. The encoding only keeps names from
// colliding with ordinary globals; it is not a secret.
func GlobalKey(name string) string {
	return base64.StdEncoding.EncodeToString([]byte(name))
}
