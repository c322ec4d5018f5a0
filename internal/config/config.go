// Copyright 2025 PeerNest AI Service Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	// ErrMissingRequiredField is returned when a required configuration field is missing
	ErrMissingRequiredField = errors.New("missing required configuration field")
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Fallback  FallbackConfig  `mapstructure:"fallback"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Audit     AuditConfig     `mapstructure:"audit"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxTextLength   int           `mapstructure:"max_text_length"`
	BulkConcurrency int           `mapstructure:"bulk_concurrency"`
	BulkMaxItems    int           `mapstructure:"bulk_max_items"`
}

// LLMConfig contains Groq API settings
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// FallbackConfig controls the keyword-based classifier
type FallbackConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// CacheConfig contains result cache settings
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	RedisURL   string        `mapstructure:"redis_url"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

// MonitorConfig contains metrics retention settings
type MonitorConfig struct {
	MaxRecords int `mapstructure:"max_records"`
}

// AuditConfig contains audit trail settings
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// RateLimitConfig contains per-client request throttling settings
type RateLimitConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	CategorizePerMinute int  `mapstructure:"categorize_per_minute"`
	BulkPerMinute       int  `mapstructure:"bulk_per_minute"`
	AdminPerMinute      int  `mapstructure:"admin_per_minute"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over config file values.
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := setConfigFile(v, opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("PEERNEST")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_text_length", 5000)
	v.SetDefault("server.bulk_concurrency", 5)
	v.SetDefault("server.bulk_max_items", 50)

	// Groq defaults
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama3-70b-8192")
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_retries", 3)

	// Fallback defaults
	v.SetDefault("fallback.enabled", true)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "300s")
	v.SetDefault("cache.max_entries", 1000)

	// Monitor defaults
	v.SetDefault("monitor.max_records", 1000)

	// Audit defaults
	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.db_path", "./audit.db")

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.categorize_per_minute", 30)
	v.SetDefault("rate_limit.bulk_per_minute", 10)
	v.SetDefault("rate_limit.admin_per_minute", 120)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// setConfigFile sets the configuration file path with fallback logic
func setConfigFile(v *viper.Viper, configPath string) error {
	// Check for CONFIG_PATH environment variable
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return nil
	}

	// Default fallback locations; a missing file is fine when env vars
	// carry the configuration.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	return nil
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"GROQ_API_KEY":  "llm.api_key",
		"GROQ_BASE_URL": "llm.base_url",
		"GROQ_MODEL":    "llm.model",
		"REDIS_URL":     "cache.redis_url",
		"AUDIT_DB_PATH": "audit.db_path",
		"PORT":          "server.port",
		"LOG_LEVEL":     "logging.level",
		"LOG_FORMAT":    "logging.format",
		"LOG_OUTPUT":    "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates the configuration for required fields and valid values
func validateConfig(config *Config) error {
	var errs []ValidationError

	if config.LLM.APIKey == "" {
		errs = append(errs, ValidationError{
			Field:   "llm.api_key",
			Message: "Groq API key is required. Set via config file or GROQ_API_KEY environment variable",
		})
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if config.Server.MaxTextLength <= 0 {
		errs = append(errs, ValidationError{
			Field:   "server.max_text_length",
			Message: "max_text_length must be greater than 0",
		})
	}

	if config.Server.BulkMaxItems <= 0 {
		errs = append(errs, ValidationError{
			Field:   "server.bulk_max_items",
			Message: "bulk_max_items must be greater than 0",
		})
	}

	if config.LLM.MaxTokens <= 0 {
		errs = append(errs, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be greater than 0",
		})
	}

	if config.LLM.Temperature < 0 || config.LLM.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if config.LLM.MaxRetries < 0 {
		errs = append(errs, ValidationError{
			Field:   "llm.max_retries",
			Message: "max_retries must be greater than or equal to 0",
		})
	}

	if config.Cache.TTL <= 0 {
		errs = append(errs, ValidationError{
			Field:   "cache.ttl",
			Message: "ttl must be greater than 0",
		})
	}

	if config.Monitor.MaxRecords <= 0 {
		errs = append(errs, ValidationError{
			Field:   "monitor.max_records",
			Message: "max_records must be greater than 0",
		})
	}

	if config.RateLimit.Enabled {
		if config.RateLimit.CategorizePerMinute <= 0 || config.RateLimit.BulkPerMinute <= 0 || config.RateLimit.AdminPerMinute <= 0 {
			errs = append(errs, ValidationError{
				Field:   "rate_limit",
				Message: "per-minute limits must be greater than 0 when rate limiting is enabled",
			})
		}
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if config.Audit.Enabled {
		if config.Audit.DBPath == "" {
			errs = append(errs, ValidationError{
				Field:   "audit.db_path",
				Message: "audit database path is required when audit is enabled",
			})
		} else if err := validateDirectoryExists(filepath.Dir(config.Audit.DBPath)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "audit.db_path",
				Message: fmt.Sprintf("audit database directory does not exist: %s", filepath.Dir(config.Audit.DBPath)),
			})
		}
	}

	if len(errs) > 0 {
		messages := make([]string, 0, len(errs))
		for _, err := range errs {
			messages = append(messages, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(messages, "\n"))
	}

	return nil
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.LLM.APIKey != "" {
		masked.LLM.APIKey = maskValue(masked.LLM.APIKey)
	}
	if masked.Cache.RedisURL != "" {
		masked.Cache.RedisURL = maskValue(masked.Cache.RedisURL)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateDirectoryExists checks if a directory exists
func validateDirectoryExists(path string) error {
	if path == "" || path == "." {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}

// WatchConfig enables configuration hot-reloading. On every file change the
// config is reloaded, revalidated, and passed to callback. Without a config
// file there is nothing to watch and the call is a no-op.
func WatchConfig(configPath string, logger *zap.Logger, callback func(*Config)) error {
	v := viper.New()

	if err := setConfigFile(v, configPath); err != nil {
		return err
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.Debug("No config file found, hot reload disabled")
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("Config file changed", zap.String("file", e.Name))

		config, err := LoadWithOptions(LoadOptions{
			ConfigPath:       configPath,
			ValidateRequired: true,
		})
		if err != nil {
			logger.Warn("Failed to reload config, keeping previous values", zap.Error(err))
			return
		}

		callback(config)
	})
	v.WatchConfig()

	logger.Info("Watching config file for changes", zap.String("file", v.ConfigFileUsed()))
	return nil
}
