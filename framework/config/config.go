package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the central typed configuration struct.
type Config struct {
	App     AppConfig
	Builder BuilderConfig
	Log     LogConfig
}

type AppConfig struct {
	Name  string
	Env   string // local | production | testing
	Debug bool
}

// BuilderConfig holds the lifecycle defaults and the manifests merged at boot.
type BuilderConfig struct {
	New       bool
	Clone     bool
	Manifests []string
}

// Options returns the lifecycle defaults in the form Builder.MergeConfig takes.
func (c BuilderConfig) Options() map[string]any {
	return map[string]any{"new": c.New, "clone": c.Clone}
}

type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // console | json
}

// Load reads .env (if present) and populates a Config from environment variables.
// Call once at bootstrap: cfg := config.Load()
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	appEnv := env("APP_ENV", "local")
	format := "json"
	if appEnv == "local" || appEnv == "testing" {
		format = "console"
	}

	return &Config{
		App: AppConfig{
			Name:  env("APP_NAME", "GoBuilder"),
			Env:   appEnv,
			Debug: GetBool("APP_DEBUG", true),
		},
		Builder: BuilderConfig{
			New:       GetBool("BUILDER_NEW", false),
			Clone:     GetBool("BUILDER_CLONE", false),
			Manifests: GetList("BUILDER_MANIFESTS", nil),
		},
		Log: LogConfig{
			Level:  env("LOG_LEVEL", "info"),
			Format: env("LOG_FORMAT", format),
		},
	}
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetBool returns a bool env value, falling back on anything strconv.ParseBool rejects.
func GetBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// GetList splits a comma separated env value, dropping blank items.
//
//	BUILDER_MANIFESTS=config/app.yaml, config/http.yaml
func GetList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
