package hotreload

import (
	"context"
	"io"
	"os"
	"slices"
	"sort"
	"sync"
	"time"

	tandemerrors "github.com/Iron-Ham/tandem/internal/errors"
	"github.com/Iron-Ham/tandem/internal/logging"
	"github.com/Iron-Ham/tandem/internal/pipeline"
	"github.com/Iron-Ham/tandem/internal/supervisor"
)

// HostPluginName identifies the host controller in plugin lists and errors.
const HostPluginName = "tandem:main-process-hot-reload"

// closeTimeout bounds how long Close waits for the child to stop.
const closeTimeout = 10 * time.Second

// HostOptions configures a HostController.
type HostOptions struct {
	// Mode is the run mode; hot reload is only active in development.
	Mode string
	// Environment is exported to the child as NODE_ENV.
	Environment string
	// Command and Args start the packaged application.
	Command string
	Args    []string
	// Dir is the child's working directory. Empty uses the pipeline root.
	Dir string
	// EnvKey names the variable that carries the preview URL.
	EnvKey string
	// Nil streams are inherited.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// HostController restarts the application child after every build of the
// host pipeline. The child is owned by a supervisor, so a rebuild never
// leaves two children running and a replaced child's exit is never
// propagated.
type HostController struct {
	opts       HostOptions
	supervisor *supervisor.Supervisor
	logger     *logging.Logger

	mu  sync.Mutex
	url string
}

// NewHostController creates a HostController that starts children through
// sup. The supervisor's exit handler decides what happens when the current
// child exits on its own.
func NewHostController(opts HostOptions, sup *supervisor.Supervisor, logger *logging.Logger) *HostController {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if opts.Environment == "" {
		opts.Environment = opts.Mode
	}
	return &HostController{
		opts:       opts,
		supervisor: sup,
		logger:     logger.WithComponent("hotreload").With("plugin", HostPluginName),
	}
}

// Name implements pipeline.Plugin.
func (h *HostController) Name() string {
	return HostPluginName
}

// URL returns the preview URL exported to the child, empty until the config
// phase has run in development mode.
func (h *HostController) URL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.url
}

// Config locates the preview server, exports its first URL under EnvKey and
// turns on watch mode.
func (h *HostController) Config(_ context.Context, cfg *pipeline.Config) error {
	if !isDevelopment(h.opts.Mode) {
		return nil
	}

	api, err := locateServer(cfg, HostPluginName)
	if err != nil {
		return err
	}
	url, ok := api.ResolvedURLs().LocalURL()
	if !ok {
		return tandemerrors.NewConfigurationError("renderer preview server is not listening", tandemerrors.ErrNoResolvedURL).
			WithPipeline(cfg.Name).
			WithPlugin(HostPluginName)
	}

	cfg.SetEnv(h.opts.EnvKey, url)
	cfg.Watch = true

	h.mu.Lock()
	h.url = url
	h.mu.Unlock()

	h.logger.Info("preview server located", "pipeline", cfg.Name, "env_key", h.opts.EnvKey, "url", url)
	return nil
}

// WriteBundle replaces the running child with a fresh one.
func (h *HostController) WriteBundle(ctx context.Context, bundle *pipeline.Bundle) error {
	if !isDevelopment(h.opts.Mode) {
		return nil
	}

	spec := supervisor.Spec{
		Command: h.opts.Command,
		Args:    slices.Clone(h.opts.Args),
		Dir:     h.opts.Dir,
		Env:     h.childEnv(bundle.Config),
		Stdin:   h.opts.Stdin,
		Stdout:  h.opts.Stdout,
		Stderr:  h.opts.Stderr,
	}
	if spec.Dir == "" && bundle.Config != nil {
		spec.Dir = bundle.Config.Root
	}

	h.logger.Debug("restarting application", "generation", bundle.Generation)
	return h.supervisor.Replace(ctx, spec)
}

// Close stops the current child, if any.
func (h *HostController) Close() error {
	if !isDevelopment(h.opts.Mode) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return h.supervisor.Close(ctx)
}

// childEnv is tandem's environment plus the mode variables and the pipeline
// Env, which carries the preview URL. Later entries win.
func (h *HostController) childEnv(cfg *pipeline.Config) []string {
	env := os.Environ()
	env = append(env,
		"NODE_ENV="+h.opts.Environment,
		"MODE="+h.opts.Mode,
		"TANDEM_MODE="+h.opts.Mode,
	)
	if cfg == nil {
		return env
	}
	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+cfg.Env[k])
	}
	return env
}
