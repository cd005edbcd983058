package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Modes understood by the pipelines. Hot-reload logic is only active in
// ModeDevelopment.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Config represents the complete tandem configuration
type Config struct {
	// Mode selects development (watch + hot reload) or production (single build).
	Mode string `mapstructure:"mode" yaml:"mode"`
	// Environment is passed to the host child as NODE_ENV.
	Environment string `mapstructure:"environment" yaml:"environment"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Preview PreviewConfig `mapstructure:"preview" yaml:"preview"`
	Preload PreloadConfig `mapstructure:"preload" yaml:"preload"`
	Main    MainConfig    `mapstructure:"main" yaml:"main"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where tandem.log is written. Empty logs to stderr.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// WatchConfig controls file watching for rebuilds
type WatchConfig struct {
	// DebounceMs collapses bursts of file events into one rebuild (default: 50)
	DebounceMs int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	// Ignore lists directory or file base names that never trigger a rebuild
	Ignore []string `mapstructure:"ignore" yaml:"ignore"`
}

// PreviewConfig controls the renderer preview server
type PreviewConfig struct {
	// Root is the renderer package directory; index.html is served from here
	Root string `mapstructure:"root" yaml:"root"`
	// Entry is the renderer script entry, relative to Root
	Entry string `mapstructure:"entry" yaml:"entry"`
	// Host is the listen host (default: "localhost")
	Host string `mapstructure:"host" yaml:"host"`
	// Port is the preferred listen port (default: 5173)
	Port int `mapstructure:"port" yaml:"port"`
	// StrictPort fails instead of trying the next port when Port is taken
	StrictPort bool `mapstructure:"strict_port" yaml:"strict_port"`
	// Aliases maps import specifiers to paths relative to Root, e.g. the
	// bridge package name to its generated browser module
	Aliases map[string]string `mapstructure:"aliases" yaml:"aliases"`
}

// PreloadConfig controls the bridge pipeline
type PreloadConfig struct {
	Root string `mapstructure:"root" yaml:"root"`
	// Entries are built as-is; VirtualModule is appended automatically
	Entries []string `mapstructure:"entries" yaml:"entries"`
	// SourceEntry is introspected for exported names by the shim generator
	SourceEntry string `mapstructure:"source_entry" yaml:"source_entry"`
	OutDir      string `mapstructure:"out_dir" yaml:"out_dir"`
	// VirtualModule is the module id the shim generator answers for
	VirtualModule string `mapstructure:"virtual_module" yaml:"virtual_module"`
}

// MainConfig controls the privileged host pipeline and its child process
type MainConfig struct {
	Root   string `mapstructure:"root" yaml:"root"`
	Entry  string `mapstructure:"entry" yaml:"entry"`
	OutDir string `mapstructure:"out_dir" yaml:"out_dir"`
	// Command and Args launch the packaged application; run from Root
	Command string   `mapstructure:"command" yaml:"command"`
	Args    []string `mapstructure:"args" yaml:"args"`
	// EnvKey names the variable that carries the preview URL to the child
	EnvKey string `mapstructure:"env_key" yaml:"env_key"`
	// StopTimeoutMs is how long a child may ignore its stop signal before it is killed
	StopTimeoutMs int `mapstructure:"stop_timeout_ms" yaml:"stop_timeout_ms"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Mode:        ModeDevelopment,
		Environment: ModeDevelopment,
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Watch: WatchConfig{
			DebounceMs: 50,
			Ignore:     []string{".git", "node_modules", "dist", ".tandem", ".DS_Store"},
		},
		Preview: PreviewConfig{
			Root:    "packages/renderer",
			Entry:   "src/main.tsx",
			Host:    "localhost",
			Port:    5173,
			Aliases: map[string]string{},
		},
		Preload: PreloadConfig{
			Root:          "packages/preload",
			Entries:       []string{"src/exposed.ts"},
			SourceEntry:   "src/index.ts",
			OutDir:        "dist",
			VirtualModule: "virtual:browser.js",
		},
		Main: MainConfig{
			Root:          "packages/main",
			Entry:         "src/index.ts",
			OutDir:        "dist",
			Command:       "electron",
			Args:          []string{"--inspect", "."},
			EnvKey:        "VITE_DEV_SERVER_URL",
			StopTimeoutMs: 3000,
		},
	}
}

// IsDevelopment reports whether hot-reload logic should be active.
func (c *Config) IsDevelopment() bool {
	return c.Mode == ModeDevelopment
}

// StopTimeout returns the child stop timeout as a time.Duration
func (c *MainConfig) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMs) * time.Millisecond
}

// Debounce returns the watch debounce as a time.Duration
func (c *WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Resolve makes every package root absolute relative to baseDir.
func (c *Config) Resolve(baseDir string) {
	c.Preview.Root = resolvePath(baseDir, c.Preview.Root)
	c.Preload.Root = resolvePath(baseDir, c.Preload.Root)
	c.Main.Root = resolvePath(baseDir, c.Main.Root)
	if c.Logging.Dir != "" {
		c.Logging.Dir = resolvePath(baseDir, c.Logging.Dir)
	}
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("mode", defaults.Mode)
	viper.SetDefault("environment", defaults.Environment)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
	viper.SetDefault("watch.ignore", defaults.Watch.Ignore)

	viper.SetDefault("preview.root", defaults.Preview.Root)
	viper.SetDefault("preview.entry", defaults.Preview.Entry)
	viper.SetDefault("preview.host", defaults.Preview.Host)
	viper.SetDefault("preview.port", defaults.Preview.Port)
	viper.SetDefault("preview.strict_port", defaults.Preview.StrictPort)
	viper.SetDefault("preview.aliases", defaults.Preview.Aliases)

	viper.SetDefault("preload.root", defaults.Preload.Root)
	viper.SetDefault("preload.entries", defaults.Preload.Entries)
	viper.SetDefault("preload.source_entry", defaults.Preload.SourceEntry)
	viper.SetDefault("preload.out_dir", defaults.Preload.OutDir)
	viper.SetDefault("preload.virtual_module", defaults.Preload.VirtualModule)

	viper.SetDefault("main.root", defaults.Main.Root)
	viper.SetDefault("main.entry", defaults.Main.Entry)
	viper.SetDefault("main.out_dir", defaults.Main.OutDir)
	viper.SetDefault("main.command", defaults.Main.Command)
	viper.SetDefault("main.args", defaults.Main.Args)
	viper.SetDefault("main.env_key", defaults.Main.EnvKey)
	viper.SetDefault("main.stop_timeout_ms", defaults.Main.StopTimeoutMs)
}

// Load unmarshals the current viper state into a Config and validates it.
func Load() (*Config, error) {
	cfg := Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return cfg, nil
}

// ConfigDir returns the user-level config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tandem")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tandem")
}
