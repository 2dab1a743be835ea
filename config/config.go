// Package config loads process-level configuration for the braid CLI and
// server. Values resolve in three layers: compiled defaults, then a YAML
// file, then BRAID_* environment variables, each overriding the one before.
// Library embedders configure components directly through functional options
// and never need this package.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root of the braid configuration file.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
	Run    RunConfig    `yaml:"run"`
	Model  ModelConfig  `yaml:"model"`
	Task   TaskConfig   `yaml:"task"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// StoreConfig selects the event log backend.
type StoreConfig struct {
	// Path is the SQLite event log file. Empty keeps runs in memory.
	Path string `yaml:"path"`
}

// RunConfig bounds run execution.
type RunConfig struct {
	// MaxModelCalls is the per-run model call budget. 0 disables the budget.
	MaxModelCalls int `yaml:"maxModelCalls"`
}

// ModelConfig selects the model the serve command registers its task with.
type ModelConfig struct {
	// Provider is "openai", "anthropic" or "mock".
	Provider string `yaml:"provider"`
	// Name overrides the provider's default model.
	Name string `yaml:"name"`
}

// TaskConfig describes the task the serve command registers.
type TaskConfig struct {
	Name         string `yaml:"name"`
	Instructions string `yaml:"instructions"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
		Run:    RunConfig{MaxModelCalls: 100},
		Model:  ModelConfig{Provider: "mock"},
		Task: TaskConfig{
			Name:         "assistant",
			Instructions: "You are a helpful assistant.",
		},
	}
}

// Load resolves the configuration: defaults, then the YAML file at path (a
// missing file at the default path is fine; an explicit path must exist),
// then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && path == DefaultPath:
		// No file, defaults apply.
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// DefaultPath is where Load looks when no --config flag is given.
const DefaultPath = "braid.yaml"

func (c *Config) applyEnv() {
	c.Server.Addr = Getenv("BRAID_ADDR", c.Server.Addr)
	c.Log.Level = Getenv("BRAID_LOG_LEVEL", c.Log.Level)
	c.Log.Format = Getenv("BRAID_LOG_FORMAT", c.Log.Format)
	c.Store.Path = Getenv("BRAID_DB_PATH", c.Store.Path)
	c.Model.Provider = Getenv("BRAID_MODEL_PROVIDER", c.Model.Provider)
	c.Model.Name = Getenv("BRAID_MODEL_NAME", c.Model.Name)
	c.Task.Name = Getenv("BRAID_TASK_NAME", c.Task.Name)
	c.Task.Instructions = Getenv("BRAID_TASK_INSTRUCTIONS", c.Task.Instructions)

	if v := os.Getenv("BRAID_MAX_MODEL_CALLS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Run.MaxModelCalls = n
		}
	}
}

// Getenv returns the environment value of key, or fallback when unset or
// empty.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadDotEnv loads KEY=VALUE pairs from a .env style file into the process
// environment without overriding variables already set. Missing files are
// ignored.
func LoadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, value)
	}
}
