// Package config loads the environment this module needs to wire the
// agent loop, provider, and tool collaborators together. It is a thin
// host-side concern, not part of the core: internal/agentloop and
// internal/provider never import it directly (spec §1 scopes config
// loading out of the core), they receive already-resolved values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is everything cmd/octo needs to construct a Loop: provider
// credentials, the working directory and context paths tools operate
// under, and the optional code-intel server.
type Config struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	MaxTokens int   `yaml:"max_tokens"`

	CodeIntelURL string `yaml:"codeintel_url"`
	TeamBaseDir  string `yaml:"team_base_dir"`
	ContextPaths []string `yaml:"context_paths"`
}

// Load reads an optional YAML file at path (ignored if empty or absent)
// then applies environment variable overrides, which always win.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OCTO_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("OCTO_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("OCTO_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("OCTO_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv("OCTO_CODEINTEL_URL"); v != "" {
		cfg.CodeIntelURL = v
	}
	if v := os.Getenv("OCTO_TEAM_BASE_DIR"); v != "" {
		cfg.TeamBaseDir = v
	}
	if v := os.Getenv("OCTO_CONTEXT_PATHS"); v != "" {
		cfg.ContextPaths = strings.Split(v, ",")
	}
}
