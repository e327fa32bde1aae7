/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"talkflow/internal/diagram"
	applog "talkflow/internal/log"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type GeneralConfig struct {
	DefaultMode string `yaml:"default_mode"` // "mindmap" | "flowchart" | "outline"
	Theme       string `yaml:"theme"`        // "system" | "light" | "dark"
	// LabelFont is a TTF or OTF file used for node labels in exports;
	// empty keeps the built-in bitmap face.
	LabelFont string `yaml:"label_font"`
}

type StorageConfig struct {
	// DBPath is the session database; empty means sessions.db next to the config file.
	DBPath   string `yaml:"db_path"`
	Autosave bool   `yaml:"autosave"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	TimeoutMs      int      `yaml:"timeout_ms"`
}

type FeedConfig struct {
	MinSentenceLen int `yaml:"min_sentence_len"`
	DebounceMs     int `yaml:"debounce_ms"`
}

type HistoryConfig struct {
	MaxDepth   int `yaml:"max_depth"`
	CoalesceMs int `yaml:"coalesce_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int                  `yaml:"config_version"`
	General       GeneralConfig        `yaml:"general"`
	Layout        diagram.LayoutParams `yaml:"layout"`
	Storage       StorageConfig        `yaml:"storage"`
	Server        ServerConfig         `yaml:"server"`
	Feed          FeedConfig           `yaml:"feed"`
	History       HistoryConfig        `yaml:"history"`
	Logging       LoggingConfig        `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{DefaultMode: diagram.Mindmap.String(), Theme: "system"},
		Layout:        diagram.DefaultLayoutParams(),
		Storage:       StorageConfig{Autosave: true},
		Server:        ServerConfig{Addr: "127.0.0.1:8750", AllowedOrigins: []string{"http://localhost:*"}, TimeoutMs: 15000},
		Feed:          FeedConfig{MinSentenceLen: 3, DebounceMs: 150},
		History:       HistoryConfig{MaxDepth: 100, CoalesceMs: 0},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile     = "TALKFLOW_CONFIG"
	EnvDefaultMode    = "TALKFLOW_DEFAULT_MODE"
	EnvLabelFont      = "TALKFLOW_LABEL_FONT"
	EnvDBPath         = "TALKFLOW_DB_PATH"
	EnvAutosave       = "TALKFLOW_AUTOSAVE"
	EnvServerAddr     = "TALKFLOW_SERVER_ADDR"
	EnvAllowedOrigins = "TALKFLOW_ALLOWED_ORIGINS" // comma separated
	EnvMinSentenceLen = "TALKFLOW_MIN_SENTENCE_LEN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "TALKFLOW_LOG_LEVEL"
	EnvLogFormat = "TALKFLOW_LOG_FORMAT"
	EnvLogSource = "TALKFLOW_LOG_SOURCE"
	EnvLogFile   = "TALKFLOW_LOG_FILE"
)

// ConfigPath returns the per-user config file path. TALKFLOW_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "TalkFlow")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "TalkFlow")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "talkflow")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "talkflow")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// A file that exists but does not parse is reported; the defaults are still returned.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	var parseErr error
	if data, err := os.ReadFile(path); err == nil {
		fileCfg := AppConfig{Layout: cfg.Layout}
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		} else {
			parseErr = fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, parseErr
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if v := strings.TrimSpace(src.General.DefaultMode); v != "" {
		dst.General.DefaultMode = strings.ToLower(v)
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	if v := strings.TrimSpace(src.General.LabelFont); v != "" {
		dst.General.LabelFont = v
	}
	// the file was decoded over the default layout, so it is complete
	dst.Layout = src.Layout
	if v := strings.TrimSpace(src.Storage.DBPath); v != "" {
		dst.Storage.DBPath = v
	}
	dst.Storage.Autosave = src.Storage.Autosave
	if v := strings.TrimSpace(src.Server.Addr); v != "" {
		dst.Server.Addr = v
	}
	if len(src.Server.AllowedOrigins) > 0 {
		dst.Server.AllowedOrigins = src.Server.AllowedOrigins
	}
	if src.Server.TimeoutMs > 0 {
		dst.Server.TimeoutMs = src.Server.TimeoutMs
	}
	if src.Feed.MinSentenceLen > 0 {
		dst.Feed.MinSentenceLen = src.Feed.MinSentenceLen
	}
	if src.Feed.DebounceMs > 0 {
		dst.Feed.DebounceMs = src.Feed.DebounceMs
	}
	if src.History.MaxDepth > 0 {
		dst.History.MaxDepth = src.History.MaxDepth
	}
	if src.History.CoalesceMs > 0 {
		dst.History.CoalesceMs = src.History.CoalesceMs
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvDefaultMode)); v != "" {
		cfg.General.DefaultMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLabelFont)); v != "" {
		cfg.General.LabelFont = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDBPath)); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAutosave)); v != "" {
		cfg.Storage.Autosave = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAllowedOrigins)); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}
	if v := strings.TrimSpace(os.Getenv(EnvMinSentenceLen)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Feed.MinSentenceLen = n
		}
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	var env string
	switch key {
	case "general.default_mode":
		env = EnvDefaultMode
	case "general.label_font":
		env = EnvLabelFont
	case "storage.db_path":
		env = EnvDBPath
	case "storage.autosave":
		env = EnvAutosave
	case "server.addr":
		env = EnvServerAddr
	case "server.allowed_origins":
		env = EnvAllowedOrigins
	case "feed.min_sentence_len":
		env = EnvMinSentenceLen
	case "logging.level":
		env = EnvLogLevel
	case "logging.format":
		env = EnvLogFormat
	case "logging.source":
		env = EnvLogSource
	case "logging.file":
		env = EnvLogFile
	default:
		return "", false
	}
	if os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// ViewMode parses the configured default mode.
func (g GeneralConfig) ViewMode() (diagram.ViewMode, error) {
	return diagram.ParseViewMode(g.DefaultMode)
}

// Path resolves the session database location.
func (s StorageConfig) Path() (string, error) {
	if s.DBPath != "" {
		return s.DBPath, nil
	}
	cfgPath, err := ConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(cfgPath), "sessions.db"), nil
}

// Options converts the logging section for applog.Init.
func (l LoggingConfig) Options() applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}

// EffectiveTimeout returns the server timeout as a duration string.
func (s ServerConfig) EffectiveTimeout() string {
	if s.TimeoutMs <= 0 {
		return fmt.Sprintf("%dms", Defaults().Server.TimeoutMs)
	}
	return fmt.Sprintf("%dms", s.TimeoutMs)
}
