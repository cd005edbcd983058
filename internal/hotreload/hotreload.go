// Package hotreload contains the pipeline plugins that react to rebuilds in
// development mode.
//
// Both controllers find the preview server during their pipeline's config
// phase and put the pipeline into watch mode. After every successful build
// the [HostController] restarts the application child and the
// [BridgeController] tells preview clients to reload. Outside development
// mode neither controller looks anything up, spawns, broadcasts or changes
// the pipeline configuration.
package hotreload

import (
	"github.com/Iron-Ham/tandem/internal/config"
	tandemerrors "github.com/Iron-Ham/tandem/internal/errors"
	"github.com/Iron-Ham/tandem/internal/pipeline"
	"github.com/Iron-Ham/tandem/internal/provider"
)

// locateServer finds the preview server in cfg's raw plugin list. A missing
// provider is a ConfigurationError naming the pipeline and the plugin that
// needed it.
func locateServer(cfg *pipeline.Config, plugin string) (provider.API, error) {
	p, ok := provider.Locate(cfg.Plugins)
	if !ok {
		return nil, tandemerrors.NewConfigurationError("renderer preview server not found", tandemerrors.ErrProviderNotFound).
			WithPipeline(cfg.Name).
			WithPlugin(plugin)
	}
	return p.API(), nil
}

func isDevelopment(mode string) bool {
	return mode == config.ModeDevelopment
}

// compile-time hook checks
var (
	_ pipeline.ConfigHook      = (*HostController)(nil)
	_ pipeline.WriteBundleHook = (*HostController)(nil)
	_ pipeline.CloseHook       = (*HostController)(nil)
	_ pipeline.ConfigHook      = (*BridgeController)(nil)
	_ pipeline.WriteBundleHook = (*BridgeController)(nil)
)
