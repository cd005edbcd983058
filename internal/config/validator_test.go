package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "preview.port",
		Value:   70000,
		Message: "must be between 0 and 65535",
	}

	expected := "preview.port: must be between 0 and 65535 (got: 70000)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "mode", Value: "x", Message: "is invalid"},
			{Field: "main.command", Value: "", Message: "is required"},
		}
		got := errs.Error()
		if !strings.HasPrefix(got, "2 validation errors:") {
			t.Errorf("Error() = %q", got)
		}
		if !strings.Contains(got, "2. main.command: is required") {
			t.Errorf("Error() = %q, missing second entry", got)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "staging" }, "mode"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
		{"debounce too large", func(c *Config) { c.Watch.DebounceMs = 10_000 }, "watch.debounce_ms"},
		{"port out of range", func(c *Config) { c.Preview.Port = 70000 }, "preview.port"},
		{"missing renderer entry", func(c *Config) { c.Preview.Entry = "" }, "preview.entry"},
		{"virtual module with slash", func(c *Config) { c.Preload.VirtualModule = "virtual/browser.js" }, "preload.virtual_module"},
		{"missing source entry", func(c *Config) { c.Preload.SourceEntry = "" }, "preload.source_entry"},
		{"missing command", func(c *Config) { c.Main.Command = "" }, "main.command"},
		{"env key with equals", func(c *Config) { c.Main.EnvKey = "A=B" }, "main.env_key"},
		{"zero stop timeout", func(c *Config) { c.Main.StopTimeoutMs = 0 }, "main.stop_timeout_ms"},
		{"absolute out dir", func(c *Config) { c.Main.OutDir = "/tmp/out" }, "main.out_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("Validate() returned %d errors, want 1: %v", len(errs), errs)
			}
			if errs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}
}

func TestValidate_ProductionMode(t *testing.T) {
	cfg := Default()
	cfg.Mode = ModeProduction

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("production config should be valid: %v", errs)
	}
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true in production mode")
	}
}
