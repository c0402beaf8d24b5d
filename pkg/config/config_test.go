package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfig tests configuration loading
func TestLoadConfig(t *testing.T) {
	// Set test environment variables
	os.Setenv("ENVIRONMENT", "test")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("PORT", "9090")
	os.Setenv("CACHE_ENABLED", "false")
	os.Setenv("CACHE_TTL_SECONDS", "60")
	os.Setenv("MAX_ATTRIBUTION_SAMPLES", "500")
	os.Setenv("DEPENDENCE_GRID_SIZE", "10")

	defer func() {
		os.Unsetenv("ENVIRONMENT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("PORT")
		os.Unsetenv("CACHE_ENABLED")
		os.Unsetenv("CACHE_TTL_SECONDS")
		os.Unsetenv("MAX_ATTRIBUTION_SAMPLES")
		os.Unsetenv("DEPENDENCE_GRID_SIZE")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Environment != "test" {
		t.Errorf("Expected environment 'test', got '%s'", cfg.Environment)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", cfg.LogLevel)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected port '9090', got '%s'", cfg.Port)
	}

	if cfg.CacheEnabled {
		t.Error("Expected CacheEnabled false")
	}

	if cfg.CacheTTLSeconds != 60 {
		t.Errorf("Expected CacheTTLSeconds 60, got %d", cfg.CacheTTLSeconds)
	}

	if cfg.MaxAttributionSample != 500 {
		t.Errorf("Expected MaxAttributionSample 500, got %d", cfg.MaxAttributionSample)
	}

	if cfg.DependenceGridSize != 10 {
		t.Errorf("Expected DependenceGridSize 10, got %d", cfg.DependenceGridSize)
	}
}

// TestLoadConfigDefaults tests default values
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Expected default environment 'development', got '%s'", cfg.Environment)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port '8080', got '%s'", cfg.Port)
	}

	if !cfg.CacheEnabled {
		t.Error("Expected default CacheEnabled true")
	}

	if cfg.CacheTTLSeconds != 3600 {
		t.Errorf("Expected default CacheTTLSeconds 3600, got %d", cfg.CacheTTLSeconds)
	}

	if cfg.MaxAttributionSample != 1000 {
		t.Errorf("Expected default MaxAttributionSample 1000, got %d", cfg.MaxAttributionSample)
	}

	if cfg.DependenceGridSize != 20 {
		t.Errorf("Expected default DependenceGridSize 20, got %d", cfg.DependenceGridSize)
	}

	if cfg.RandomSeed != 42 {
		t.Errorf("Expected default RandomSeed 42, got %d", cfg.RandomSeed)
	}
}

// TestLoadConfigFileOverlay tests YAML file overlay via CONFIG_FILE
func TestLoadConfigFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "cache_ttl_seconds: 120\ndependence_grid_size: 5\nmodels_dir: /tmp/artifacts\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	os.Setenv("CONFIG_FILE", path)
	defer os.Unsetenv("CONFIG_FILE")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.CacheTTLSeconds != 120 {
		t.Errorf("Expected CacheTTLSeconds 120, got %d", cfg.CacheTTLSeconds)
	}

	if cfg.DependenceGridSize != 5 {
		t.Errorf("Expected DependenceGridSize 5, got %d", cfg.DependenceGridSize)
	}

	if cfg.ModelsDir != "/tmp/artifacts" {
		t.Errorf("Expected ModelsDir '/tmp/artifacts', got '%s'", cfg.ModelsDir)
	}
}

// TestLoadConfigInvalid tests rejection of invalid values
func TestLoadConfigInvalid(t *testing.T) {
	os.Setenv("CACHE_TTL_SECONDS", "-5")
	defer os.Unsetenv("CACHE_TTL_SECONDS")

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error for negative cache TTL")
	}
}
