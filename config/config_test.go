package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultIsValid tests that the defaults pass validation
func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.SignalsConfig.TTL != 4*time.Hour {
		t.Errorf("Expected signal TTL 4h, got %v", cfg.SignalsConfig.TTL)
	}
	if cfg.StrategyConfig.StrategicInterval != "4h" || cfg.StrategyConfig.TacticalInterval != "1h" || cfg.StrategyConfig.ExecutionInterval != "15m" {
		t.Errorf("Unexpected default intervals: %+v", cfg.StrategyConfig)
	}
}

// TestLoadFromMissingFile tests that a missing file falls back to defaults
func TestLoadFromMissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.ServerConfig.Port != Default().ServerConfig.Port {
		t.Errorf("Expected default port, got %d", cfg.ServerConfig.Port)
	}
}

// TestLoadFromFile tests that file values override defaults and keep the rest
func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"server": {"port": 9191}, "scanner": {"symbols": ["BTCUSDT"]}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.ServerConfig.Port != 9191 {
		t.Errorf("Expected port 9191, got %d", cfg.ServerConfig.Port)
	}
	if len(cfg.ScannerConfig.Symbols) != 1 || cfg.ScannerConfig.Symbols[0] != "BTCUSDT" {
		t.Errorf("Unexpected symbols %v", cfg.ScannerConfig.Symbols)
	}
	if cfg.ServerConfig.Host != "0.0.0.0" {
		t.Errorf("Expected default host to survive, got %q", cfg.ServerConfig.Host)
	}
}

// TestLoadFromBadJSON tests that a malformed file is an error
func TestLoadFromBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("Expected parse error")
	}
}

// TestEnvOverrides tests environment variables win over file and defaults
func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCANNER_SYMBOLS", " btcusdt, ethusdt ,,")
	t.Setenv("SCANNER_INTERVAL", "90s")
	t.Setenv("SIGNAL_STORE", "redis")
	t.Setenv("WEB_PORT", "7070")
	t.Setenv("STRATEGY_STRICT", "true")
	t.Setenv("SCANNER_WORKERS", "not-a-number")

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if got := strings.Join(cfg.ScannerConfig.Symbols, ","); got != "BTCUSDT,ETHUSDT" {
		t.Errorf("Expected BTCUSDT,ETHUSDT, got %s", got)
	}
	if cfg.ScannerConfig.ScanInterval != 90*time.Second {
		t.Errorf("Expected 90s interval, got %v", cfg.ScannerConfig.ScanInterval)
	}
	if cfg.SignalsConfig.Store != "redis" {
		t.Errorf("Expected redis store, got %s", cfg.SignalsConfig.Store)
	}
	if cfg.ServerConfig.Port != 7070 {
		t.Errorf("Expected port 7070, got %d", cfg.ServerConfig.Port)
	}
	if !cfg.StrategyConfig.StrictAlignment {
		t.Error("Expected strict alignment")
	}
	if cfg.ScannerConfig.WorkerCount != Default().ScannerConfig.WorkerCount {
		t.Errorf("Unparseable value should keep default, got %d", cfg.ScannerConfig.WorkerCount)
	}
}

// TestValidate tests each rejected setting
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short candle limit", func(c *Config) { c.StrategyConfig.CandleLimit = 10 }, "candle_limit"},
		{"stop bounds", func(c *Config) { c.RiskConfig.MinStopPercent = 12 }, "min_stop_percent"},
		{"unknown store", func(c *Config) { c.SignalsConfig.Store = "mongo" }, "signals.store"},
		{"auth without secret", func(c *Config) { c.AuthConfig.Enabled = true }, "jwt_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

// TestGenerateSampleConfig tests the sample file loads back cleanly
func TestGenerateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.json")
	if err := GenerateSampleConfig(path); err != nil {
		t.Fatalf("GenerateSampleConfig() error = %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom(sample) error = %v", err)
	}
	if len(cfg.ScannerConfig.Symbols) != 3 {
		t.Errorf("Expected 3 sample symbols, got %v", cfg.ScannerConfig.Symbols)
	}
	if cfg.SignalsConfig.TTL != 4*time.Hour {
		t.Errorf("Expected TTL to round trip, got %v", cfg.SignalsConfig.TTL)
	}
}
