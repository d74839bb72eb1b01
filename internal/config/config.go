// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/crewplan/internal/pipeline"
	"github.com/jeranaias/crewplan/internal/provider"
	"github.com/jeranaias/crewplan/internal/telemetry"
	"github.com/jeranaias/crewplan/internal/util"
)

// ErrMissingCredential is returned by RequireCredential when no API key is set.
var ErrMissingCredential = errors.New("no OpenRouter API key configured")

// Environment variables read by ApplyEnvOverrides.
const (
	EnvAPIKey         = "OPENROUTER_API_KEY"
	EnvModel          = "CREWPLAN_MODEL"
	EnvBaseURL        = "CREWPLAN_BASE_URL"
	EnvTimeout        = "CREWPLAN_TIMEOUT"
	EnvRatePerMillion = "CREWPLAN_RATE_PER_MILLION"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete crewplan configuration.
type Config struct {
	Provider ProviderConfig `toml:"provider" yaml:"provider" json:"provider"`
	Cost     CostConfig     `toml:"cost" yaml:"cost" json:"cost"`
	Report   ReportConfig   `toml:"report" yaml:"report" json:"report"`
}

// ProviderConfig configures the OpenRouter generation provider.
type ProviderConfig struct {
	APIKey      string  `toml:"api_key" yaml:"api_key" json:"api_key"`
	BaseURL     string  `toml:"base_url" yaml:"base_url" json:"base_url"`
	Model       string  `toml:"model" yaml:"model" json:"model"`
	Temperature float64 `toml:"temperature" yaml:"temperature" json:"temperature"`
	// TimeoutSecs bounds every provider call.
	TimeoutSecs int `toml:"timeout_secs" yaml:"timeout_secs" json:"timeout_secs"`
	// MaxRetries applies to transient failures only. 0 disables retries.
	MaxRetries int `toml:"max_retries" yaml:"max_retries" json:"max_retries"`
	// RequestsPerMinute enables client-side rate limiting when > 0.
	RequestsPerMinute int `toml:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
}

// CostConfig configures usage estimation.
type CostConfig struct {
	CharsPerUnit   int     `toml:"chars_per_unit" yaml:"chars_per_unit" json:"chars_per_unit"`
	RatePerMillion float64 `toml:"rate_per_million" yaml:"rate_per_million" json:"rate_per_million"`
}

// ReportConfig configures usage summaries and report export.
type ReportConfig struct {
	InlineWindow int    `toml:"inline_window" yaml:"inline_window" json:"inline_window"`
	ExportWindow int    `toml:"export_window" yaml:"export_window" json:"export_window"`
	OutputDir    string `toml:"output_dir" yaml:"output_dir" json:"output_dir"`
	Format       string `toml:"format" yaml:"format" json:"format"`
	Theme        string `toml:"theme" yaml:"theme" json:"theme"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with the built-in defaults.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL:     provider.DefaultOpenRouterURL,
			Model:       provider.DefaultModel,
			Temperature: provider.DefaultTemperature,
			TimeoutSecs: int(pipeline.DefaultCallTimeout / time.Second),
		},
		Cost: CostConfig{
			CharsPerUnit:   telemetry.DefaultCharsPerUnit,
			RatePerMillion: telemetry.DefaultRatePerMillion,
		},
		Report: ReportConfig{
			InlineWindow: telemetry.DefaultInlineWindow,
			ExportWindow: telemetry.DefaultExportWindow,
			OutputDir:    ".",
			Format:       "markdown",
			Theme:        "light",
		},
	}
}

// fillDefaults fills zero values a partial config file left unset.
func fillDefaults(cfg *Config) {
	d := Default()

	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = d.Provider.BaseURL
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = d.Provider.Model
	}
	if cfg.Provider.TimeoutSecs == 0 {
		cfg.Provider.TimeoutSecs = d.Provider.TimeoutSecs
	}
	if cfg.Cost.CharsPerUnit == 0 {
		cfg.Cost.CharsPerUnit = d.Cost.CharsPerUnit
	}
	if cfg.Report.InlineWindow == 0 {
		cfg.Report.InlineWindow = d.Report.InlineWindow
	}
	if cfg.Report.ExportWindow == 0 {
		cfg.Report.ExportWindow = d.Report.ExportWindow
	}
	if cfg.Report.OutputDir == "" {
		cfg.Report.OutputDir = d.Report.OutputDir
	}
	if cfg.Report.Format == "" {
		cfg.Report.Format = d.Report.Format
	}
	if cfg.Report.Theme == "" {
		cfg.Report.Theme = d.Report.Theme
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the crewplan configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".crewplan"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Variables already set are never replaced,
// and missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads ~/.crewplan/config.toml, falling back to config.yaml, then
// config.json, then the built-in defaults. Environment overrides are
// applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathYAML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads a TOML, YAML or JSON config file, selected by
// extension, then applies environment overrides and validates the result.
func LoadFromPath(path string) (*Config, error) {
	// Keys absent from the file keep their defaults.
	cfg := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := LoadYAML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load YAML config from %s: %w", path, err)
		}
	default:
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg and fills missing values.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func LoadTOML(cfg *Config, path string) error {
	warnInsecurePermissions(path)

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	fillDefaults(cfg)
	return nil
}

// LoadYAML decodes a YAML file into cfg and fills missing values. Unknown
// keys are rejected, as for TOML.
func LoadYAML(cfg *Config, path string) error {
	warnInsecurePermissions(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON decodes a JSON file into cfg and fills missing values.
func LoadJSON(cfg *Config, path string) error {
	warnInsecurePermissions(path)

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

// warnInsecurePermissions logs when a config file holding an API key is
// readable by other users.
func warnInsecurePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		log.Printf("config: %s has permissions %o, expected 0600", path, mode)
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to ~/.crewplan/config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# crewplan configuration file\n")
	buf.WriteString("# OPENROUTER_API_KEY in the environment or .env overrides provider.api_key\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with 0600 permissions.
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

// SaveYAML writes cfg as YAML with 0600 permissions.
func SaveYAML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# crewplan configuration file\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var (
	validFormats = map[string]bool{"markdown": true, "md": true, "html": true, "htm": true, "json": true}
	validThemes  = map[string]bool{"light": true, "dark": true}
)

// Validate checks every field and returns ValidationErrors listing all
// problems, or nil.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Provider
	if u, err := url.Parse(c.Provider.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("provider.base_url", "invalid URL %q, must be http(s)://host", c.Provider.BaseURL)
	}
	if strings.TrimSpace(c.Provider.Model) == "" {
		add("provider.model", "must not be empty")
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		add("provider.temperature", "%.2f out of range [0, 2]", c.Provider.Temperature)
	}
	if c.Provider.TimeoutSecs <= 0 || c.Provider.TimeoutSecs > 3600 {
		add("provider.timeout_secs", "%d out of range [1, 3600]", c.Provider.TimeoutSecs)
	}
	if c.Provider.MaxRetries < 0 || c.Provider.MaxRetries > 10 {
		add("provider.max_retries", "%d out of range [0, 10]", c.Provider.MaxRetries)
	}
	if c.Provider.RequestsPerMinute < 0 {
		add("provider.requests_per_minute", "must not be negative")
	}

	// Cost
	if c.Cost.CharsPerUnit <= 0 {
		add("cost.chars_per_unit", "must be positive")
	}
	if c.Cost.RatePerMillion < 0 {
		add("cost.rate_per_million", "must not be negative")
	}

	// Report
	if c.Report.InlineWindow <= 0 {
		add("report.inline_window", "must be positive")
	}
	if c.Report.ExportWindow <= 0 {
		add("report.export_window", "must be positive")
	}
	if !validFormats[strings.ToLower(c.Report.Format)] {
		add("report.format", "invalid format '%s', must be one of: markdown, html, json", c.Report.Format)
	}
	if !validThemes[strings.ToLower(c.Report.Theme)] {
		add("report.theme", "invalid theme '%s', must be one of: light, dark", c.Report.Theme)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - OPENROUTER_API_KEY: overrides provider.api_key
//   - CREWPLAN_MODEL: overrides provider.model
//   - CREWPLAN_BASE_URL: overrides provider.base_url
//   - CREWPLAN_TIMEOUT: seconds, or a duration such as "90s"
//   - CREWPLAN_RATE_PER_MILLION: overrides cost.rate_per_million
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.Provider.APIKey = key
	}
	if model := os.Getenv(EnvModel); model != "" {
		c.Provider.Model = model
	}
	if base := os.Getenv(EnvBaseURL); base != "" {
		c.Provider.BaseURL = base
	}
	if timeout := os.Getenv(EnvTimeout); timeout != "" {
		if secs, ok := parseTimeoutSecs(timeout); ok {
			c.Provider.TimeoutSecs = secs
		} else {
			log.Printf("config: ignoring invalid %s=%q", EnvTimeout, timeout)
		}
	}
	if rate := os.Getenv(EnvRatePerMillion); rate != "" {
		if v, err := strconv.ParseFloat(rate, 64); err == nil {
			c.Cost.RatePerMillion = v
		} else {
			log.Printf("config: ignoring invalid %s=%q", EnvRatePerMillion, rate)
		}
	}
}

func parseTimeoutSecs(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if d, err := time.ParseDuration(s); err == nil {
		return int(d.Round(time.Second) / time.Second), true
	}
	return 0, false
}

// =============================================================================
// DERIVED SETTINGS
// =============================================================================

// RequireCredential returns a ConfigurationError when no API key is set.
func (c *Config) RequireCredential() error {
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		return &pipeline.ConfigurationError{
			Reason: fmt.Sprintf("set %s or provider.api_key", EnvAPIKey),
			Err:    ErrMissingCredential,
		}
	}
	return nil
}

// CallTimeout is the per-call provider deadline.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSecs) * time.Second
}

// Estimator builds the cost estimator described by the [cost] section.
func (c *Config) Estimator() telemetry.CostEstimator {
	return telemetry.NewCostEstimatorWithRate(c.Cost.CharsPerUnit, c.Cost.RatePerMillion)
}

// =============================================================================
// GET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by its TOML key path, e.g. "provider.model".
func (c *Config) Get(key string) (any, error) {
	parts := strings.Split(strings.TrimSpace(key), ".")
	if len(parts) == 0 || parts[0] == "" {
		return nil, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if strings.EqualFold(tag, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Keys lists every leaf key in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		prefix := section.Tag.Get("toml")
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, prefix+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the config as JSON with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Provider.APIKey != "" {
		safe.Provider.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
