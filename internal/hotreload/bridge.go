package hotreload

import (
	"context"
	"sync"

	"github.com/Iron-Ham/tandem/internal/logging"
	"github.com/Iron-Ham/tandem/internal/pipeline"
	"github.com/Iron-Ham/tandem/internal/provider"
)

// BridgePluginName identifies the bridge controller in plugin lists and
// errors.
const BridgePluginName = "tandem:preload-process-hot-reload"

// BridgeController asks preview clients for a full reload after every build
// of the bridge pipeline.
type BridgeController struct {
	mode   string
	logger *logging.Logger

	mu     sync.Mutex
	server provider.API
}

// NewBridgeController creates a BridgeController for mode.
func NewBridgeController(mode string, logger *logging.Logger) *BridgeController {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &BridgeController{
		mode:   mode,
		logger: logger.WithComponent("hotreload").With("plugin", BridgePluginName),
	}
}

// Name implements pipeline.Plugin.
func (b *BridgeController) Name() string {
	return BridgePluginName
}

// Config locates the preview server and turns on watch mode.
func (b *BridgeController) Config(_ context.Context, cfg *pipeline.Config) error {
	if !isDevelopment(b.mode) {
		return nil
	}

	api, err := locateServer(cfg, BridgePluginName)
	if err != nil {
		return err
	}
	cfg.Watch = true

	b.mu.Lock()
	b.server = api
	b.mu.Unlock()

	b.logger.Info("preview server located", "pipeline", cfg.Name)
	return nil
}

// WriteBundle broadcasts a full reload. It does nothing when the server was
// never located; that failure has already been reported by Config.
func (b *BridgeController) WriteBundle(_ context.Context, bundle *pipeline.Bundle) error {
	b.mu.Lock()
	server := b.server
	b.mu.Unlock()

	if server == nil {
		return nil
	}

	b.logger.Debug("requesting full reload", "generation", bundle.Generation)
	return server.Send(provider.Message{Type: provider.MessageFullReload})
}
