// Package config loads the dashboard configuration.
//
// Values are layered with koanf: struct defaults first, then an optional
// YAML file, then GEORETAIL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "GEORETAIL_"

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "GEORETAIL_CONFIG"

// DefaultConfigPaths are searched in order when GEORETAIL_CONFIG is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/georetail/config.yaml",
}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Data      DataConfig      `koanf:"data"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Map       MapConfig       `koanf:"map"`
	Auth      AuthConfig      `koanf:"auth"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Host        string   `koanf:"host"`
	Port        int      `koanf:"port"`
	CORSOrigins []string `koanf:"cors_origins"`
}

type DataConfig struct {
	CSVPath       string        `koanf:"csv_path"`
	DBPath        string        `koanf:"db_path"` // ":memory:" keeps the snapshot in process
	WatchInterval time.Duration `koanf:"watch_interval"`
}

type DashboardConfig struct {
	PageTitle string        `koanf:"page_title"`
	Title     string        `koanf:"title"`
	TopN      int           `koanf:"top_n"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
}

type MapConfig struct {
	Tiles       string  `koanf:"tiles"`
	Zoom        int     `koanf:"zoom"`
	MarkerColor string  `koanf:"marker_color"`
	FillOpacity float64 `koanf:"fill_opacity"`
	Width       int     `koanf:"width"`
	Height      int     `koanf:"height"`
}

type AuthConfig struct {
	JWTSecret     string        `koanf:"jwt_secret"`
	TokenTTL      time.Duration `koanf:"token_ttl"`
	AdminUser     string        `koanf:"admin_user"`
	AdminPassword string        `koanf:"admin_password"`
}

type WebhookConfig struct {
	DiscordURL string `koanf:"discord_url"`
	DigestHour int    `koanf:"digest_hour"` // -1 disables the daily digest
}

type LogConfig struct {
	Dir    string `koanf:"dir"`
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Data: DataConfig{
			CSVPath:       "data/cities_final_ranked.csv",
			DBPath:        ":memory:",
			WatchInterval: 30 * time.Second,
		},
		Dashboard: DashboardConfig{
			PageTitle: "GeoRetail AI Dashboard",
			Title:     "GeoRetail AI: Retail Expansion Hotspots",
			TopN:      10,
			CacheTTL:  10 * time.Minute,
		},
		Map: MapConfig{
			Tiles:       "cartodbpositron",
			Zoom:        2,
			MarkerColor: "crimson",
			FillOpacity: 0.8,
			Width:       700,
			Height:      450,
		},
		Auth: AuthConfig{
			JWTSecret:     "change-me",
			TokenTTL:      24 * time.Hour,
			AdminUser:     "admin",
			AdminPassword: "admin123!",
		},
		Webhook: WebhookConfig{
			DigestHour: -1,
		},
		Log: LogConfig{
			Dir:    "./logs",
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads defaults, the config file (if any) and the environment.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit config file path; empty skips the file.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Env values arrive as plain strings
	if v, ok := k.Get("server.cors_origins").(string); ok {
		if err := k.Set("server.cors_origins", splitList(v)); err != nil {
			return nil, fmt.Errorf("failed to set server.cors_origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if strings.TrimSpace(c.Data.CSVPath) == "" {
		errs = append(errs, errors.New("data.csv_path is required"))
	}
	if c.Data.DBPath == "" {
		errs = append(errs, errors.New("data.db_path is required"))
	}
	if c.Dashboard.TopN < 1 {
		errs = append(errs, fmt.Errorf("dashboard.top_n must be positive, got %d", c.Dashboard.TopN))
	}
	if c.Map.FillOpacity < 0 || c.Map.FillOpacity > 1 {
		errs = append(errs, fmt.Errorf("map.fill_opacity must be within [0, 1], got %g", c.Map.FillOpacity))
	}
	if c.Webhook.DigestHour < -1 || c.Webhook.DigestHour > 23 {
		errs = append(errs, fmt.Errorf("webhook.digest_hour must be -1 or 0-23, got %d", c.Webhook.DigestHour))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// envTransform maps GEORETAIL_DATA_CSV_PATH to data.csv_path.
// Only the first underscore separates the section from the key.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "config" {
		return ""
	}
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
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

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
