// Package config provides CLI commands for inspecting tandem configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/Iron-Ham/tandem/internal/config"
	"github.com/Iron-Ham/tandem/internal/styles"
)

// FileName is the project config file looked up in the working directory.
const FileName = "tandem.yaml"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View tandem configuration",
	Long: `View tandem configuration.

Without arguments, displays the effective configuration.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration as YAML",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	RunE:  runConfigValidate,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

// Register adds the config command tree to parent.
func Register(parent *cobra.Command) {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configPathCmd)
	parent.AddCommand(configCmd)
}

// decode reads the effective configuration without validating it.
func decode() (*appconfig.Config, error) {
	cfg := appconfig.Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := decode()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	// Show where config is being read from
	if used := viper.ConfigFileUsed(); used != "" {
		_, _ = fmt.Fprintf(out, "# config file: %s\n", used)
	} else {
		_, _ = fmt.Fprintln(out, "# config file: (none - using defaults)")
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	return enc.Close()
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := decode()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errs := cfg.Validate()
	if len(errs) == 0 {
		_, _ = fmt.Fprintln(out, styles.Success("configuration is valid"))
		return nil
	}
	for _, e := range errs {
		_, _ = fmt.Fprintln(out, styles.Failure(e.Error()))
	}
	return appconfig.ValidationErrors(errs)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		_, _ = fmt.Fprintln(out, used)
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	path := filepath.Join(cwd, FileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		_, _ = fmt.Fprintf(out, "%s (not created)\n", path)
		return nil
	}
	_, _ = fmt.Fprintln(out, path)
	return nil
}
