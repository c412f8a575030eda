package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the user's configuration
type Config struct {
	Engine   EngineConfig `yaml:"engine"`
	LogLevel string       `yaml:"log_level,omitempty"`
	// Context paths pre-loaded into the file context registry at startup
	Context []string `yaml:"context,omitempty"`
}

// EngineConfig describes how to reach the assistant engine CLI
type EngineConfig struct {
	// Command is the engine invocation; the prompt is delivered on stdin
	Command []string `yaml:"command"`
	// RevertCommand undoes one applied edit batch; the revert token is appended
	RevertCommand []string `yaml:"revert_command,omitempty"`
	// SummaryCommand prints a repository summary to stdout
	SummaryCommand []string `yaml:"summary_command,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Command:        []string{"otto-engine", "--stream"},
			RevertCommand:  []string{"git", "revert", "--no-edit"},
			SummaryCommand: []string{"git", "ls-files"},
		},
		LogLevel: "info",
	}
}

// globalConfigDir returns the global config directory path (~/.otto)
func globalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".otto"), nil
}

func globalConfigPath() (string, error) {
	dir, err := globalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// projectConfigPath returns the project-level config path (.otto/config.yaml in cwd)
func projectConfigPath() string {
	return filepath.Join(".otto", "config.yaml")
}

// LogDir returns the directory log files are written to. Prefers the project
// .otto directory when it exists, otherwise ~/.otto.
func LogDir() string {
	if fi, err := os.Stat(".otto"); err == nil && fi.IsDir() {
		return filepath.Join(".otto", "logs")
	}
	if dir, err := globalConfigDir(); err == nil {
		return filepath.Join(dir, "logs")
	}
	return filepath.Join(".otto", "logs")
}

// Load reads the config from disk, checking project config first, then global.
// A missing config is not an error; the defaults are returned.
func Load() (*Config, error) {
	if data, err := os.ReadFile(projectConfigPath()); err == nil {
		return parse(data)
	}

	globalPath, err := globalConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(globalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	return parse(data)
}

func parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if len(cfg.Engine.Command) == 0 {
		cfg.Engine.Command = DefaultConfig().Engine.Command
	}
	return cfg, nil
}

// Save writes the config to the project-level location (.otto/config.yaml)
func Save(cfg *Config) error {
	if err := os.MkdirAll(".otto", 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(projectConfigPath(), data, 0644)
}
