package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type NotificationsConfig struct {
	Enabled bool   `json:"enabled"`
	Desktop bool   `json:"desktop"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

type MirrorConfig struct {
	Enabled   bool   `json:"enabled"`
	Port      int    `json:"port"`
	Host      string `json:"host"`
	JWTSecret string `json:"jwtSecret"`
	TokenTTL  string `json:"tokenTTL"` // e.g. "24h"
}

type DemoConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	CaptureInterval string `json:"captureInterval"`
	StringAnalysis  bool   `json:"stringAnalysis"`
}

type Config struct {
	ServerURL         string              `json:"serverURL"`
	Token             string              `json:"token"`
	RequestTimeout    string              `json:"requestTimeout"`
	StatusInterval    string              `json:"statusInterval"`
	SynthesisInterval string              `json:"synthesisInterval"`
	UptimeInterval    string              `json:"uptimeInterval"`
	Locale            string              `json:"locale"`
	LogDir            string              `json:"logDir"`
	LogLevel          string              `json:"logLevel"`
	Notifications     NotificationsConfig `json:"notifications"`
	Mirror            MirrorConfig        `json:"mirror"`
	Demo              DemoConfig          `json:"demo"`
}

func Defaults() Config {
	return Config{
		ServerURL:         "http://localhost:8000",
		RequestTimeout:    "5s",
		StatusInterval:    "1s",
		SynthesisInterval: "15s",
		UptimeInterval:    "1s",
		Locale:            "en",
		LogDir:            filepath.Join(baseDir(), "logs"),
		LogLevel:          "info",
		Notifications:     NotificationsConfig{Desktop: true},
		Mirror: MirrorConfig{
			Port:     8787,
			Host:     "127.0.0.1",
			TokenTTL: "24h",
		},
		Demo: DemoConfig{
			Port:            8000,
			Host:            "127.0.0.1",
			CaptureInterval: "3s",
		},
	}
}

func baseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nexus-console")
}

func DefaultPath() string {
	return filepath.Join(baseDir(), "config.json")
}

func DBPath() string {
	return filepath.Join(baseDir(), "journal.db")
}

// Load reads path over Defaults, then applies .env and environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// LoadDotenv loads a .env file from the working directory if present.
// Variables already set in the environment win.
func LoadDotenv() {
	_ = godotenv.Load()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("NEXUS_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("NEXUS_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("NEXUS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("NEXUS_MIRROR_SECRET"); v != "" {
		cfg.Mirror.JWTSecret = v
	}
}

// Duration parses s, returning def when s is empty, invalid or not positive.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (c Config) StatusEvery() time.Duration    { return Duration(c.StatusInterval, time.Second) }
func (c Config) SynthesisEvery() time.Duration { return Duration(c.SynthesisInterval, 15*time.Second) }
func (c Config) UptimeEvery() time.Duration    { return Duration(c.UptimeInterval, time.Second) }
func (c Config) Timeout() time.Duration        { return Duration(c.RequestTimeout, 5*time.Second) }

// EnsureMirrorSecret generates a signing secret for the mirror when it is
// enabled without one, and writes it back to path. Other keys in the file
// are preserved.
func EnsureMirrorSecret(path string, cfg *Config) error {
	if !cfg.Mirror.Enabled || cfg.Mirror.JWTSecret != "" {
		return nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	cfg.Mirror.JWTSecret = hex.EncodeToString(b)

	doc := map[string]any{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err == nil {
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	mirror, _ := doc["mirror"].(map[string]any)
	if mirror == nil {
		mirror = map[string]any{}
	}
	mirror["jwtSecret"] = cfg.Mirror.JWTSecret
	doc["mirror"] = mirror

	updated, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	updated = append(updated, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, updated, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
