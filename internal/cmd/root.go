package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/tandem/internal/cmd/config"
	appconfig "github.com/Iron-Ham/tandem/internal/config"
	"github.com/Iron-Ham/tandem/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "tandem",
	Short: "Coordinated dev builds for a three-package desktop app",
	Long: `Tandem runs the renderer preview server, the preload bridge pipeline and
the main host pipeline of a desktop application together.

In development it rebuilds each package on change: renderer clients reload
after a preload rebuild and the application is restarted after a main
rebuild.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is ./tandem.yaml)")
	flags.StringP("mode", "m", appconfig.ModeDevelopment, "build mode: development or production")
	flags.IntP("port", "p", 5173, "preferred preview server port")
	flags.String("log-level", "info", "log level: debug, info, warn or error")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("mode", flags.Lookup("mode"))
	_ = viper.BindPFlag("preview.port", flags.Lookup("port"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))

	rootCmd.AddCommand(devCmd)
	rootCmd.AddCommand(buildCmd)
	config.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	appconfig.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("tandem")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath(appconfig.ConfigDir())
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TANDEM")
	// e.g. TANDEM_PREVIEW_PORT for preview.port
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// loadConfig returns the validated configuration with package roots made
// absolute. Relative roots are taken from the directory of the config file,
// or the working directory when no file was read.
func loadConfig() (*appconfig.Config, error) {
	cfg, err := appconfig.Load()
	if err != nil {
		return nil, err
	}

	base, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		base = filepath.Dir(used)
	}
	cfg.Resolve(base)
	return cfg, nil
}

func newLogger(cfg *appconfig.Config) (*logging.Logger, error) {
	return logging.NewLoggerWithRotation(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   true,
	})
}
