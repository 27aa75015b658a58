/*
 * Copyright 2025 the NannyAI Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads and persists the application configuration. API
// keys never touch the config file: they live in the OS keyring, seeded
// from environment variables on first use.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/elabbarw/nannyai/pkg/logger"
	"github.com/elabbarw/nannyai/pkg/models"
)

const keyringService = "nannyai"

var (
	errUnknownProvider = errors.New("unknown vision provider")
	errBadInterval     = errors.New("screenshot interval must be positive")

	// ErrNoAPIKey is returned when neither the keyring nor the
	// environment holds a key for the requested provider.
	ErrNoAPIKey = errors.New("no API key configured")
)

// ModelSettings lists the models offered for a provider and the one in use.
type ModelSettings struct {
	AvailableModels []string `json:"available_models"`
	SelectedModel   string   `json:"selected_model"`
}

// EmailSettings configures the guardian alert mailer.
type EmailSettings struct {
	SMTPServer     string `json:"smtp_server"`
	SMTPPort       int    `json:"smtp_port"`
	SenderEmail    string `json:"sender_email"`
	SenderPassword string `json:"sender_password"`
	ParentEmail    string `json:"parent_email"`
}

// Config is the application configuration persisted alongside the data
// directory. Secrets are deliberately absent from this struct.
type Config struct {
	MonitoringEnabled   bool                     `json:"monitoring_enabled"`
	ScreenshotInterval  models.Duration          `json:"screenshot_interval"`
	VisionProvider      string                   `json:"vision_provider"`
	ModelSettings       map[string]ModelSettings `json:"model_settings"`
	EmailSettings       EmailSettings            `json:"email_settings"`
	ContentThresholds   map[string]float64       `json:"content_thresholds"`
	MonitoredCategories []string                 `json:"monitored_categories"`
	StopGracePeriod     models.Duration          `json:"stop_grace_period,omitempty"`
	Logging             *logger.Config           `json:"logging,omitempty"`
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		ScreenshotInterval: models.Duration(30 * time.Second),
		VisionProvider:     "openai",
		ModelSettings: map[string]ModelSettings{
			"openai": {
				AvailableModels: []string{"gpt-4o", "gpt-4o-mini"},
				SelectedModel:   "gpt-4o-mini",
			},
			"gemini": {
				AvailableModels: []string{"gemini-1.5-flash-8b", "gemini-1.5-flash-002", "gemini-1.5-pro-002"},
				SelectedModel:   "gemini-1.5-flash-8b",
			},
		},
		EmailSettings: EmailSettings{
			SMTPServer: "smtp.gmail.com",
			SMTPPort:   587,
		},
		ContentThresholds:   models.DefaultThresholds(),
		MonitoredCategories: models.DefaultCategories(),
	}
}

// Load reads the config file, overlaying it on the defaults. A missing
// file is not an error; it yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the fields that would otherwise fail deep inside the
// scheduler or analyzer.
func (c *Config) Validate() error {
	switch c.VisionProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("%w: %q", errUnknownProvider, c.VisionProvider)
	}

	if c.ScreenshotInterval.Duration() <= 0 {
		return errBadInterval
	}

	return nil
}

// Save writes the config file, creating the parent directory if needed.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SelectedModel returns the configured model for a provider, or empty
// when the provider is unknown.
func (c *Config) SelectedModel(provider string) string {
	return c.ModelSettings[provider].SelectedModel
}

// APIKey fetches a provider's key from the OS keyring, falling back to
// the <PROVIDER>_API_KEY environment variable. A key found only in the
// environment is copied into the keyring best-effort so later runs do
// not depend on it.
func APIKey(provider string) (string, error) {
	key, err := keyring.Get(keyringService, provider+"_api_key")
	if err == nil && key != "" {
		return key, nil
	}

	if envKey := os.Getenv(strings.ToUpper(provider) + "_API_KEY"); envKey != "" {
		_ = SetAPIKey(provider, envKey)

		return envKey, nil
	}

	return "", fmt.Errorf("%w: %s", ErrNoAPIKey, provider)
}

// SetAPIKey stores a provider's API key in the keyring. An empty key
// removes the stored entry.
func SetAPIKey(provider, key string) error {
	account := provider + "_api_key"

	if key == "" {
		if err := keyring.Delete(keyringService, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to delete API key: %w", err)
		}

		return nil
	}

	if err := keyring.Set(keyringService, account, key); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}

	return nil
}
