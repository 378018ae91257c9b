// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete parley configuration.
type Config struct {
	// LogPath is where the log goes. Empty means ~/.parley/parley.log.
	LogPath string `toml:"log_path" json:"log_path"`

	Service ServiceConfig `toml:"service" json:"service"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	UI      UIConfig      `toml:"ui" json:"ui"`
}

// ServiceConfig describes the completion endpoint.
type ServiceConfig struct {
	// BaseURL is scheme and host, e.g. http://127.0.0.1:8080
	BaseURL string `toml:"base_url" json:"base_url"`
	// Path is appended to BaseURL.
	Path string `toml:"path" json:"path"`
	// APIKey is sent as a bearer token when set.
	APIKey string `toml:"api_key" json:"api_key"`
	// Model is sent with each request when set.
	Model string `toml:"model" json:"model"`
	// Temperature is sent when set. Range 0-2.
	Temperature *float64 `toml:"temperature,omitempty" json:"temperature,omitempty"`
	// MaxTokens is sent when positive.
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`
	// HistoryWindow is how many trailing messages go upstream. 1 sends only
	// the message just typed.
	HistoryWindow int `toml:"history_window" json:"history_window"`
	// RequestsPerMinute throttles outgoing requests. 0 disables.
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute"`
}

// StorageConfig selects where conversations live.
type StorageConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `toml:"backend" json:"backend"`
	// Path overrides the backend's default location.
	Path string `toml:"path" json:"path"`
	// Watch reloads the ledger when another process changes the file.
	Watch bool `toml:"watch" json:"watch"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Render is "markdown", "code" or "plain".
	Render string `toml:"render" json:"render"`
	// Theme is a glamour style name or "auto".
	Theme string `toml:"theme" json:"theme"`
	// WordWrap is the render width. 0 follows the terminal.
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
	// Greeting replaces the built-in empty-conversation notice.
	Greeting string `toml:"greeting" json:"greeting"`
	// Sidebar shows the conversation list in the TUI.
	Sidebar bool `toml:"sidebar" json:"sidebar"`
}

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL:       "http://127.0.0.1:8080",
			Path:          "/v1/chat/completions",
			HistoryWindow: 1,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			Watch:   true,
		},
		UI: UIConfig{
			Render:  "markdown",
			Theme:   "auto",
			Sidebar: true,
		},
	}
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	d := Default()
	if cfg.Service.BaseURL == "" {
		cfg.Service.BaseURL = d.Service.BaseURL
	}
	if cfg.Service.Path == "" {
		cfg.Service.Path = d.Service.Path
	}
	if cfg.Service.HistoryWindow == 0 {
		cfg.Service.HistoryWindow = d.Service.HistoryWindow
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = d.Storage.Backend
	}
	if cfg.UI.Render == "" {
		cfg.UI.Render = d.UI.Render
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = d.UI.Theme
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the parley directory, ~/.parley unless PARLEY_HOME is
// set.
func ConfigDir() (string, error) {
	if dir := os.Getenv("PARLEY_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

func inConfigDir(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	return inConfigDir("config.toml")
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	return inConfigDir("config.json")
}

// LogFile returns the log path, resolving the default.
func (c *Config) LogFile() (string, error) {
	if c.LogPath != "" {
		return c.LogPath, nil
	}
	return inConfigDir("parley.log")
}

// HistoryFile returns where the line-mode REPL keeps its history.
func HistoryFile() (string, error) {
	return inConfigDir("history")
}

// StoragePath returns the storage location, resolving the backend default.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	if c.Storage.Backend == BackendSQLite {
		return inConfigDir("conversations.db")
	}
	return inConfigDir("conversations.json")
}

// ensureSecurePermissions tightens a config file to 0600.
// SECURITY: the file may hold an API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.parley/config.toml, or config.json when there is no TOML
// file, or the defaults. A .env file in the working directory is read first
// and environment overrides are applied last.
func Load() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return nil, err
	}
	if fileExists(tomlPath) {
		return LoadFromPath(tomlPath)
	}

	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return nil, err
	}
	if fileExists(jsonPath) {
		return LoadFromPath(jsonPath)
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads a TOML or JSON file (by extension) with defaults,
// environment overrides and validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	var err error
	if strings.HasSuffix(path, ".json") {
		err = LoadJSON(cfg, path)
	} else {
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %v\n", path, undecoded)
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadDotEnv reads KEY=value pairs from path into the environment. Variables
// already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to ~/.parley/config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path.
// SECURITY: 0600, the file may hold an API key.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# parley configuration file\n")
	buf.WriteString("# Generated by parley - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	// RELIABILITY: atomic write so a crash never leaves half a config
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg to path as JSON.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid setting.
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
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether field failed validation.
func (e ValidateErrors) Has(field string) bool {
	for _, err := range e {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Validate returns ValidateErrors listing every invalid setting, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Service
	if u, err := url.Parse(c.Service.BaseURL); err != nil || u.Host == "" {
		add("service.base_url", "invalid URL '%s'", c.Service.BaseURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("service.base_url", "scheme must be http or https, got '%s'", u.Scheme)
	}
	if !strings.HasPrefix(c.Service.Path, "/") {
		add("service.path", "must start with '/', got '%s'", c.Service.Path)
	}
	if t := c.Service.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("service.temperature", "must be between 0 and 2, got %g", *t)
	}
	if c.Service.MaxTokens < 0 {
		add("service.max_tokens", "must not be negative, got %d", c.Service.MaxTokens)
	}
	if c.Service.HistoryWindow < 1 {
		add("service.history_window", "must be at least 1, got %d", c.Service.HistoryWindow)
	}
	if c.Service.RequestsPerMinute < 0 {
		add("service.requests_per_minute", "must not be negative, got %d", c.Service.RequestsPerMinute)
	}

	// Storage
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		add("storage.backend", "invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend)
	}

	// UI
	switch c.UI.Render {
	case "markdown", "code", "plain":
	default:
		add("ui.render", "invalid mode '%s', must be one of: markdown, code, plain", c.UI.Render)
	}
	if c.UI.WordWrap < 0 || c.UI.WordWrap > 1000 {
		add("ui.word_wrap", "must be between 0 and 1000, got %d", c.UI.WordWrap)
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
// Supported environment variables:
//   - PARLEY_BASE_URL: overrides service.base_url
//   - PARLEY_API_KEY: overrides service.api_key
//   - PARLEY_MODEL: overrides service.model
//   - PARLEY_HISTORY_WINDOW: overrides service.history_window
//   - PARLEY_STORAGE_BACKEND: overrides storage.backend
//   - PARLEY_STORAGE_PATH: overrides storage.path
//   - PARLEY_LOG_PATH: overrides log_path
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PARLEY_BASE_URL"); v != "" {
		c.Service.BaseURL = v
	}
	if v := os.Getenv("PARLEY_API_KEY"); v != "" {
		c.Service.APIKey = v
	}
	if v := os.Getenv("PARLEY_MODEL"); v != "" {
		c.Service.Model = v
	}
	if v := os.Getenv("PARLEY_HISTORY_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Service.HistoryWindow = n
		}
	}
	if v := os.Getenv("PARLEY_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("PARLEY_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("PARLEY_LOG_PATH"); v != "" {
		c.LogPath = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by key, e.g. "service.model".
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return nil, nil
		}
		return field.Elem().Interface(), nil
	}
	return field.Interface(), nil
}

// Set assigns a value by key. String values are converted to the field's
// type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks the TOML key path.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tomlName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tomlName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	return name
}

// setFieldValue sets field from value, converting strings.
func setFieldValue(field reflect.Value, value any) error {
	if field.Kind() == reflect.Ptr {
		elem := reflect.New(field.Type().Elem())
		if err := setFieldValue(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(n)
			return nil
		case reflect.Float64:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(f)
			return nil
		case reflect.Bool:
			b, err := strconv.ParseBool(s)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(b)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("nil value")
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

// Keys returns every settable key in dot notation, sorted.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := prefix + tomlName(f)
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, name+".")
				continue
			}
			keys = append(keys, name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	sort.Strings(keys)
	return keys
}

// String renders the config as TOML with the API key masked.
func (c *Config) String() string {
	masked := *c
	if masked.Service.APIKey != "" {
		masked.Service.APIKey = "****"
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(masked); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return buf.String()
}
