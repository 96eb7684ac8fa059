// Package config resolves the agent's Anthropic credentials and thinking
// budget per SPEC_FULL.md §6/§10: a settings-file env object takes
// precedence over process environment (itself optionally primed by a
// workspace .env file and an XDG credentials file) which takes precedence
// over hard-coded defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// MinThinkingBudget is the floor MAX_THINKING_TOKENS is clamped to.
const MinThinkingBudget = 1024

const (
	defaultModel   = "claude-sonnet-4-5-20250929"
	defaultBaseURL = "https://api.anthropic.com/v1"
)

// AgentConfig is the resolved, immutable configuration the agent core is
// constructed from (§3's AgentConfig data-model entry).
type AgentConfig struct {
	AuthToken      string `env:"ANTHROPIC_AUTH_TOKEN"`
	BaseURL        string `env:"ANTHROPIC_BASE_URL" envDefault:"https://api.anthropic.com/v1"`
	Model          string `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-5-20250929"`
	MaxThinking    int    `env:"MAX_THINKING_TOKENS" envDefault:"1024"`
	Workdir        string `env:"-"`
}

// settingsFile is the shape of <home>/.claude/settings.json that Load cares
// about: everything outside the top-level "env" object is ignored.
type settingsFile struct {
	Env map[string]string `json:"env"`
}

// Load implements the three-tier precedence: settings-file env object,
// then process environment (after an optional .env/XDG-credentials prime),
// then defaults. Malformed settings files are reported once via log and
// otherwise ignored, per §6/§7's ConfigurationError policy.
func Load(workdir string, log *zap.SugaredLogger) (*AgentConfig, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	// Lowest-precedence prime: workspace .env, then XDG credentials file.
	// godotenv.Load never overrides variables already set in the process
	// environment, matching the "neither override" requirement in §6.
	if workdir != "" {
		_ = godotenv.Load(filepath.Join(workdir, ".env"))
	}
	if dir, err := CredentialsDir(); err == nil {
		_ = godotenv.Load(filepath.Join(dir, "credentials"))
	}

	// Highest-precedence: the settings-file env object is applied on top of
	// whatever the process environment now holds, so its values win ties.
	applySettingsFileEnv(log)

	cfg := &AgentConfig{Workdir: workdir}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment config: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxThinking < MinThinkingBudget {
		cfg.MaxThinking = MinThinkingBudget
	}

	if cfg.AuthToken == "" {
		token, err := promptForToken()
		if err != nil {
			return nil, err
		}
		cfg.AuthToken = token
	}

	return cfg, nil
}

// applySettingsFileEnv reads <home>/.claude/settings.json and sets its env
// object's keys into the process environment, overwriting anything already
// set there so the settings file wins per §6's precedence order.
func applySettingsFileEnv(log *zap.SugaredLogger) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	path := filepath.Join(home, ".claude", "settings.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return // absence is not an error
	}

	var sf settingsFile
	if err := json.Unmarshal(data, &sf); err != nil {
		log.Warnw("malformed settings file, ignoring", "path", path, "error", err)
		return
	}
	for k, v := range sf.Env {
		os.Setenv(k, v)
	}
}

// CredentialsDir returns the XDG-compliant config directory holding the
// optional "credentials" env file: $XDG_CONFIG_HOME/pilot if set, else
// ~/.config/pilot.
func CredentialsDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" && filepath.IsAbs(dir) {
		return filepath.Join(dir, "pilot"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "pilot"), nil
}

// promptForToken interactively asks for ANTHROPIC_AUTH_TOKEN when no tier of
// the precedence chain supplied one, and persists it to the credentials file
// so subsequent runs skip the prompt.
func promptForToken() (string, error) {
	fmt.Print("Enter your Anthropic API key: ")
	var key string
	if _, err := fmt.Scanln(&key); err != nil {
		return "", fmt.Errorf("read API key: %w", err)
	}
	if key == "" {
		return "", fmt.Errorf("ANTHROPIC_AUTH_TOKEN is required")
	}

	if dir, err := CredentialsDir(); err == nil {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			credPath := filepath.Join(dir, "credentials")
			if f, err := os.OpenFile(credPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err == nil {
				fmt.Fprintf(f, "ANTHROPIC_AUTH_TOKEN=%s\n", key)
				f.Close()
				fmt.Printf("API key saved to %s\n", credPath)
			}
		}
	}

	return key, nil
}
