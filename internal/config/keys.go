package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "FOLIO_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "FOLIO_CHAT_MOCK", typ: kBool,
		apply: func(cfg *Config, v any) { cfg.Chat.MockMode = v.(bool) },
	},
	{
		env: "FOLIO_OPENAI_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Chat.OpenAIAPIKey = v.(string) },
	},
	{
		env: "FOLIO_OPENAI_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Chat.Model = v.(string) },
	},
	{
		env: "FOLIO_OPENAI_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Chat.BaseURL = v.(string) },
	},
	{
		env: "FOLIO_STORAGE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "FOLIO_ADMIN_USERNAME", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Admin.Username = v.(string) },
	},
	{
		env: "FOLIO_ADMIN_PASSWORD", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Admin.Password = v.(string) },
	},
	{
		env: "FOLIO_SESSION_SECRET", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Admin.SessionSecret = v.(string) },
	},
	{
		env: "FOLIO_RESUME_PATH", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Resume.Path = v.(string) },
	},
	{
		env: "FOLIO_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
	{
		env: "FOLIO_LOG_FORMAT", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	for _, s := range specs {
		raw := getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
