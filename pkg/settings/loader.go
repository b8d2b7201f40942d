package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Loader reads an optional JSON settings file, then environment overrides.
// Tests can override Lookup and ReadFile.
type Loader struct {
	Path     string
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
}

func (l Loader) Load() (Settings, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}
	cfg := Default()

	path := l.Path
	if path == "" {
		if v, ok := l.Lookup("SNOWDEMO_CONFIG"); ok {
			path = strings.TrimSpace(v)
		}
	}
	if path != "" {
		b, err := l.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("settings: read %s: %w", path, err)
		}
		if err = sonic.Unmarshal(b, &cfg); err != nil {
			return Settings{}, fmt.Errorf("settings: decode %s: %w", path, err)
		}
	}

	overrideString(l.Lookup, "SNOWDEMO_TURING_KEY", &cfg.Basic.TuringKey)
	overrideString(l.Lookup, "SNOWDEMO_VOICE_API_KEY", &cfg.Basic.VoiceAPIKey)
	overrideString(l.Lookup, "SNOWDEMO_VOICE_SECRET", &cfg.Basic.VoiceSecret)
	overrideString(l.Lookup, "SNOWDEMO_WEATHER_API_KEY", &cfg.Weather.APIKey)
	overrideString(l.Lookup, "SNOWDEMO_REDIS_HOST", &cfg.Redis.Host)
	overrideString(l.Lookup, "SNOWDEMO_LOG_LEVEL", &cfg.Log.Level)
	overrideString(l.Lookup, "SNOWDEMO_LOG_LOCATION", &cfg.Log.Location)
	overrideString(l.Lookup, "SNOWDEMO_PIN_URL", &cfg.Demo.PinURL)
	if err := overrideInt(l.Lookup, "SNOWDEMO_REDIS_PORT", &cfg.Redis.Port); err != nil {
		return Settings{}, err
	}
	if err := overrideFloat(l.Lookup, "SNOWDEMO_SENSITIVITY", &cfg.Demo.Sensitivity); err != nil {
		return Settings{}, err
	}
	if err := overrideDuration(l.Lookup, "SNOWDEMO_POLL_EVERY", &cfg.Demo.PollEvery.Duration); err != nil {
		return Settings{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("settings: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func overrideFloat(lookup func(string) (string, bool), key string, target *float64) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("settings: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("settings: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}
