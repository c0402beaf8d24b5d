package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Environment          string `yaml:"environment"`
	LogLevel             string `yaml:"log_level"`
	Port                 string `yaml:"port"`
	DatasetPath          string `yaml:"dataset_path"`
	ModelsDir            string `yaml:"models_dir"`
	CacheEnabled         bool   `yaml:"cache_enabled"`
	CacheTTLSeconds      int    `yaml:"cache_ttl_seconds"`
	CacheDBPath          string `yaml:"cache_db_path"`
	MaxAttributionSample int    `yaml:"max_attribution_samples"`
	DependenceGridSize   int    `yaml:"dependence_grid_size"`
	RandomSeed           int64  `yaml:"random_seed"`
}

// LoadConfig loads configuration from environment variables, optionally
// overlaid by a YAML file named in CONFIG_FILE.
func LoadConfig() (*Config, error) {
	config := &Config{
		Environment:          getEnv("ENVIRONMENT", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		Port:                 getEnv("PORT", "8080"),
		DatasetPath:          getEnv("DATASET_PATH", ""),
		ModelsDir:            getEnv("MODELS_DIR", "models"),
		CacheEnabled:         getEnvAsBool("CACHE_ENABLED", true),
		CacheTTLSeconds:      getEnvAsInt("CACHE_TTL_SECONDS", 3600),
		CacheDBPath:          getEnv("CACHE_DB_PATH", ""),
		MaxAttributionSample: getEnvAsInt("MAX_ATTRIBUTION_SAMPLES", 1000),
		DependenceGridSize:   getEnvAsInt("DEPENDENCE_GRID_SIZE", 20),
		RandomSeed:           int64(getEnvAsInt("RANDOM_SEED", 42)),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.applyFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if config.CacheTTLSeconds <= 0 {
		return nil, fmt.Errorf("cache_ttl_seconds must be positive")
	}
	if config.MaxAttributionSample <= 0 {
		return nil, fmt.Errorf("max_attribution_samples must be positive")
	}
	if config.DependenceGridSize < 2 {
		return nil, fmt.Errorf("dependence_grid_size must be at least 2")
	}

	return config, nil
}

// applyFile overlays YAML values on top of the current configuration.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
