package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds joblint configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	DBPath      string `json:"db_path"`
	LogLevel    string `json:"log_level"`
	LogJSON     bool   `json:"log_json"`
	FailOn      string `json:"fail_on"`
	Registry    bool   `json:"registry"`
	Refresh     string `json:"refresh"`
	Concurrency int    `json:"concurrency"`
	NoColor     bool   `json:"no_color"`
}

func defaultConfig() Config {
	return Config{
		DBPath:   filepath.Join(joblintDir(), "joblint.db"),
		LogLevel: "warn",
		Refresh:  "@every 5m",
	}
}

func joblintDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".joblint"
	}
	return filepath.Join(home, ".joblint")
}

func settingsPath() string {
	return filepath.Join(joblintDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("JOBLINT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("JOBLINT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("JOBLINT_LOG_JSON"); v != "" {
		cfg.LogJSON = truthy(v)
	}
	if v := os.Getenv("JOBLINT_FAIL_ON"); v != "" {
		cfg.FailOn = v
	}
	if v := os.Getenv("JOBLINT_REGISTRY"); v != "" {
		cfg.Registry = truthy(v)
	}
	if v := os.Getenv("JOBLINT_REFRESH"); v != "" {
		cfg.Refresh = v
	}
	if v := os.Getenv("JOBLINT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Concurrency = n
		}
	}
	// NO_COLOR is honoured as well, see https://no-color.org.
	if v := os.Getenv("JOBLINT_NO_COLOR"); v != "" {
		cfg.NoColor = truthy(v)
	} else if os.Getenv("NO_COLOR") != "" {
		cfg.NoColor = true
	}

	return cfg
}

func truthy(v string) bool {
	return v == "true" || v == "1"
}

// writeConfig stores cfg as settings.json, creating the joblint directory.
func writeConfig(cfg Config) (string, error) {
	if err := os.MkdirAll(joblintDir(), 0o700); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", err
	}
	path := settingsPath()
	return path, os.WriteFile(path, data, 0o644)
}
