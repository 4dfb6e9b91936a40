// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/jeranaias/mentesa/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete mentesa configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Conversation database
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Generation API
	LLM LLMConfig `toml:"llm" json:"llm"`

	// Session manager tunables
	Session SessionConfig `toml:"session" json:"session"`

	// Topic keyword lists
	Topics TopicsConfig `toml:"topics" json:"topics"`

	// Logging
	Log LogConfig `toml:"log" json:"log"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	// Path of the database file. Empty means ~/.mentesa/mentesa.db.
	Path string `toml:"path" json:"path"`
}

// LLMConfig selects and configures the reply generator.
type LLMConfig struct {
	// Provider is "gemini", "openai" or "ollama"
	Provider string `toml:"provider" json:"provider"`

	// Model name; empty selects the provider default
	Model string `toml:"model" json:"model"`

	// APIKey for gemini and openai
	APIKey string `toml:"api_key" json:"api_key,omitempty"`

	// BaseURL overrides the endpoint (openai-compatible servers, ollama)
	BaseURL string `toml:"base_url" json:"base_url,omitempty"`

	Temperature     float64 `toml:"temperature" json:"temperature"`
	MaxOutputTokens int     `toml:"max_output_tokens" json:"max_output_tokens"`
}

// SessionConfig tunes the conversation session manager.
type SessionConfig struct {
	HistoryWindow     int `toml:"history_window" json:"history_window"`
	SettleDelayMs     int `toml:"settle_delay_ms" json:"settle_delay_ms"`
	TitlePreviewRunes int `toml:"title_preview_runes" json:"title_preview_runes"`
}

// SettleDelay returns SettleDelayMs as a duration.
func (s SessionConfig) SettleDelay() time.Duration {
	return time.Duration(s.SettleDelayMs) * time.Millisecond
}

// TopicsConfig points at an optional topic list file.
type TopicsConfig struct {
	// File replaces the built-in lists when set
	File string `toml:"file" json:"file"`

	// Watch reloads File when it changes
	Watch bool `toml:"watch" json:"watch"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `toml:"level" json:"level"`

	// File receives log output; empty means stderr
	File string `toml:"file" json:"file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		LLM: LLMConfig{
			Provider:        "gemini",
			Model:           "gemini-2.0-flash",
			Temperature:     0.7,
			MaxOutputTokens: 1024,
		},

		Session: SessionConfig{
			HistoryWindow:     20,
			SettleDelayMs:     300,
			TitlePreviewRunes: 30,
		},

		Topics: TopicsConfig{
			Watch: true,
		},

		Log: LogConfig{
			Level: "warn",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the mentesa configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".mentesa"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DatabasePath returns Storage.Path, or the default database location.
func (c *Config) DatabasePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mentesa.db"), nil
}

// restrictPermissions narrows a config file to 0600; it may hold an API key.
func restrictPermissions(path string) {
	info, err := os.Stat(path)
	if err != nil || info.Mode().Perm() == 0o600 {
		return
	}
	if err := os.Chmod(path, 0o600); err != nil {
		log.Warn("config file is readable by others", "path", path, "mode", fmt.Sprintf("%o", info.Mode().Perm()), "err", err)
	}
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil && loadErr == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	cfg = Default()
	cfg, err = finish(cfg)
	if err != nil {
		return nil, err
	}
	// Defaults are usable even when a file failed to load.
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	restrictPermissions(path)

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	restrictPermissions(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// finish applies env overrides and defaults, then validates.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills zero values that have a default.
func (c *Config) SetDefaults() {
	def := Default()

	if c.Version == "" {
		c.Version = def.Version
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = def.LLM.Provider
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.MaxOutputTokens == 0 {
		c.LLM.MaxOutputTokens = def.LLM.MaxOutputTokens
	}
	if c.Session.HistoryWindow == 0 {
		c.Session.HistoryWindow = def.Session.HistoryWindow
	}
	if c.Session.SettleDelayMs == 0 {
		c.Session.SettleDelayMs = def.Session.SettleDelayMs
	}
	if c.Session.TitlePreviewRunes == 0 {
		c.Session.TitlePreviewRunes = def.Session.TitlePreviewRunes
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# mentesa configuration file")
	fmt.Fprintln(&buf, "# Generated by mentesa - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validProviders = map[string]bool{"gemini": true, "openai": true, "ollama": true}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if !validProviders[strings.ToLower(c.LLM.Provider)] {
		errs = append(errs, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: gemini, openai, ollama", c.LLM.Provider),
		})
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "llm.temperature",
			Message: fmt.Sprintf("must be between 0 and 2, got %v", c.LLM.Temperature),
		})
	}
	if c.LLM.MaxOutputTokens < 0 {
		errs = append(errs, ValidationError{
			Field:   "llm.max_output_tokens",
			Message: "must not be negative",
		})
	}
	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "llm.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.LLM.BaseURL),
			})
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, ValidationError{
				Field:   "llm.base_url",
				Message: fmt.Sprintf("unsupported scheme '%s', must be http or https", u.Scheme),
			})
		}
	}

	if c.Session.HistoryWindow < 1 || c.Session.HistoryWindow > 200 {
		errs = append(errs, ValidationError{
			Field:   "session.history_window",
			Message: fmt.Sprintf("must be between 1 and 200, got %d", c.Session.HistoryWindow),
		})
	}
	if c.Session.SettleDelayMs < 0 || c.Session.SettleDelayMs > 10000 {
		errs = append(errs, ValidationError{
			Field:   "session.settle_delay_ms",
			Message: fmt.Sprintf("must be between 0 and 10000, got %d", c.Session.SettleDelayMs),
		})
	}
	if c.Session.TitlePreviewRunes < 1 || c.Session.TitlePreviewRunes > 200 {
		errs = append(errs, ValidationError{
			Field:   "session.title_preview_runes",
			Message: fmt.Sprintf("must be between 1 and 200, got %d", c.Session.TitlePreviewRunes),
		})
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error, fatal", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported variables:
//   - MENTESA_PROVIDER: overrides llm.provider
//   - MENTESA_MODEL: overrides llm.model
//   - MENTESA_BASE_URL: overrides llm.base_url
//   - GEMINI_API_KEY / OPENAI_API_KEY: llm.api_key for that provider
//   - MENTESA_API_KEY: overrides llm.api_key for any provider
//   - MENTESA_DB: overrides storage.path
//   - MENTESA_TOPICS: overrides topics.file
//   - MENTESA_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if provider := os.Getenv("MENTESA_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if model := os.Getenv("MENTESA_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if baseURL := os.Getenv("MENTESA_BASE_URL"); baseURL != "" {
		c.LLM.BaseURL = baseURL
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "gemini", "":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	}
	if key := os.Getenv("MENTESA_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}

	if path := os.Getenv("MENTESA_DB"); path != "" {
		c.Storage.Path = path
	}
	if file := os.Getenv("MENTESA_TOPICS"); file != "" {
		c.Topics.File = file
	}
	if level := os.Getenv("MENTESA_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "llm.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "llm.model").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks dotted key segments down the struct tree.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}

		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(strVal == "1" || lower == "true" || lower == "yes")
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"storage.path",
		"llm.provider",
		"llm.model",
		"llm.api_key",
		"llm.base_url",
		"llm.temperature",
		"llm.max_output_tokens",
		"session.history_window",
		"session.settle_delay_ms",
		"session.title_preview_runes",
		"topics.file",
		"topics.watch",
		"log.level",
		"log.file",
	}
}

// IsSecretKey reports whether key holds a credential that must be redacted.
func IsSecretKey(key string) bool {
	return strings.EqualFold(key, "llm.api_key")
}

// String returns a JSON rendering with the API key redacted.
func (c *Config) String() string {
	safe := *c
	if safe.LLM.APIKey != "" {
		safe.LLM.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
