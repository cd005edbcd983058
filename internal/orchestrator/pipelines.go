package orchestrator

import (
	"context"
	"time"

	"github.com/Iron-Ham/tandem/internal/config"
	"github.com/Iron-Ham/tandem/internal/hotreload"
	"github.com/Iron-Ham/tandem/internal/pipeline"
	"github.com/Iron-Ham/tandem/internal/provider"
	"github.com/Iron-Ham/tandem/internal/shim"
	"github.com/Iron-Ham/tandem/internal/supervisor"
)

// electronModule is provided by the host runtime and never bundled.
const electronModule = "electron"

// preloadConfig builds the bridge pipeline: the configured entries plus the
// virtual browser module, written as .mjs so the host loads them as ESM.
func (o *Orchestrator) preloadConfig(mode string, plugins []pipeline.Plugin) pipeline.Config {
	pc := o.cfg.Preload
	entries := make([]pipeline.Entry, 0, len(pc.Entries)+1)
	for _, e := range pc.Entries {
		entries = append(entries, pipeline.Entry{Path: e})
	}
	entries = append(entries, pipeline.Entry{Path: pc.VirtualModule})

	return pipeline.Config{
		Name:             PipelinePreload,
		Mode:             mode,
		Root:             pc.Root,
		Entries:          entries,
		OutDir:           pc.OutDir,
		EmptyOutDir:      true,
		Platform:         pipeline.PlatformNode,
		OutExtension:     map[string]string{".js": ".mjs"},
		External:         []string{electronModule},
		ExternalPackages: true,
		Sourcemap:        true,
		Plugins:          plugins,
	}
}

// mainConfig builds the host pipeline.
func (o *Orchestrator) mainConfig(mode string, plugins []pipeline.Plugin) pipeline.Config {
	mc := o.cfg.Main
	return pipeline.Config{
		Name:             PipelineMain,
		Mode:             mode,
		Root:             mc.Root,
		Entries:          []pipeline.Entry{{Path: mc.Entry}},
		OutDir:           mc.OutDir,
		EmptyOutDir:      true,
		Platform:         pipeline.PlatformNode,
		External:         []string{electronModule},
		ExternalPackages: true,
		Sourcemap:        true,
		Plugins:          plugins,
	}
}

// preloadPlugins returns the bridge pipeline's own plugins: the shim
// generator for the virtual browser module and the reload controller.
func (o *Orchestrator) preloadPlugins(mode string) []pipeline.Plugin {
	pc := o.cfg.Preload
	return []pipeline.Plugin{
		shim.New(pc.Root, pc.SourceEntry, pc.VirtualModule, o.logger),
		hotreload.NewBridgeController(mode, o.logger),
	}
}

// mainPlugins returns the host pipeline's controller, which owns sup.
func (o *Orchestrator) mainPlugins(mode string, sup *supervisor.Supervisor) []pipeline.Plugin {
	mc := o.cfg.Main
	host := hotreload.NewHostController(hotreload.HostOptions{
		Mode:        mode,
		Environment: o.cfg.Environment,
		Command:     mc.Command,
		Args:        mc.Args,
		Dir:         mc.Root,
		EnvKey:      mc.EnvKey,
		Stdin:       o.stdin,
		Stdout:      o.stdout,
		Stderr:      o.stderr,
	}, sup, o.logger)
	return []pipeline.Plugin{host}
}

func (o *Orchestrator) newSupervisor(onExit supervisor.ExitHandler) *supervisor.Supervisor {
	return supervisor.New(PipelineMain, o.spawner,
		supervisor.WithStopTimeout(o.cfg.Main.StopTimeout()),
		supervisor.WithExitHandler(onExit),
		supervisor.WithLogger(o.logger),
		supervisor.WithBus(o.bus),
		supervisor.WithMetrics(o.metrics),
	)
}

func (o *Orchestrator) pipelineOptions() []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithLogger(o.logger),
		pipeline.WithBus(o.bus),
		pipeline.WithMetrics(o.metrics),
		pipeline.WithWatchOptions(o.watchOptions()),
	}
}

// Build runs the preload and then the main pipeline once in production
// mode. No preview server is started and no child is spawned.
func (o *Orchestrator) Build(ctx context.Context) error {
	const mode = config.ModeProduction
	start := time.Now()
	registry := provider.NewRegistry()

	sup := o.newSupervisor(nil)
	configs := []pipeline.Config{
		o.preloadConfig(mode, registry.Inject(PipelinePreload, o.preloadPlugins(mode))),
		o.mainConfig(mode, registry.Inject(PipelineMain, o.mainPlugins(mode, sup))),
	}

	for _, cfg := range configs {
		p, err := pipeline.New(cfg, o.pipelineOptions()...)
		if err != nil {
			return err
		}
		if _, err := p.Build(ctx); err != nil {
			return err
		}
	}

	o.logger.Info("build complete", "duration_ms", time.Since(start).Milliseconds())
	return nil
}
