// Package config loads layered service configuration with koanf:
// struct defaults, then an optional YAML file, then environment
// variables with the COLORPREF_ prefix.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/colorpref/colorpref/internal/logging"
	"github.com/colorpref/colorpref/internal/pipeline"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/colorpref/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces the service's environment variables, e.g.
// COLORPREF_SERVER_PORT -> server.port.
const envPrefix = "COLORPREF_"

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig         `koanf:"server" validate:"required"`
	Model    pipeline.ModelConfig `koanf:"model"`
	Training pipeline.TrainConfig `koanf:"training"`
	Storage  StorageConfig        `koanf:"storage" validate:"required"`
	Logging  logging.Config       `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig configures model persistence.
type StorageConfig struct {
	// Path is the BadgerDB directory for persisted models.
	Path string `koanf:"path" validate:"required"`

	// ModelID keys the active model in the store.
	ModelID string `koanf:"model_id" validate:"required"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Timeout:     60 * time.Second,
			CORSOrigins: []string{"*"},
		},
		Model:    pipeline.DefaultModelConfig(),
		Training: pipeline.DefaultTrainConfig(),
		Storage: StorageConfig{
			Path:    "/data/colorpref",
			ModelID: "color-preference-v1",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, an optional config file
// and environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration, including the nested pipeline
// hyperparameters.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// envTransform maps COLORPREF_SERVER_PORT to server.port. A single
// underscore separates the section from the key; keys themselves keep
// their underscores (COLORPREF_TRAINING_BATCH_SIZE ->
// training.batch_size).
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
