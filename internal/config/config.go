package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Chat    ChatConfig
	Storage StorageConfig
	Admin   AdminConfig
	Resume  ResumeConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type ChatConfig struct {
	MockMode     bool
	OpenAIAPIKey string
	Model        string
	BaseURL      string
}

type StorageConfig struct {
	DataDir string
}

type AdminConfig struct {
	Username      string
	Password      string
	SessionSecret string
}

type ResumeConfig struct {
	Path string
}

type LogConfig struct {
	Level  string
	Format string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Chat: ChatConfig{
			MockMode: true,
			Model:    "gpt-3.5-turbo",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Admin: AdminConfig{
			Username: "admin",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".folio")
}

// Load reads configuration from an optional .env file and FOLIO_*
// environment variables, env taking precedence over the file.
//
// Live chat mode requires an OpenAI API key; admin features require a
// password and session secret.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadFromEnv(os.Getenv)
}

func loadFromEnv(getenv func(string) string) (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg, getenv)

	if !cfg.Chat.MockMode && cfg.Chat.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("missing required config: OpenAI API key. " +
			"Set FOLIO_OPENAI_API_KEY or enable mock mode with FOLIO_CHAT_MOCK=true")
	}
	if cfg.Admin.Password == "" {
		return Config{}, fmt.Errorf("missing required config: admin password. Set FOLIO_ADMIN_PASSWORD")
	}
	if cfg.Admin.SessionSecret == "" {
		return Config{}, fmt.Errorf("missing required config: session secret. Set FOLIO_SESSION_SECRET")
	}

	return cfg, nil
}

// SlogLevel maps the configured level name to a slog.Level, defaulting
// to info on anything unrecognized.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SlogHandler builds the configured handler: "json" for machine-read
// logs, text otherwise.
func (c Config) SlogHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.ToLower(c.Log.Format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
