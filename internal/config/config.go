// Package config loads application settings from STORYFORGE_-prefixed
// environment variables (optionally seeded from a .env file by the CLI) and
// generation presets from a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const envPrefix = "STORYFORGE_"

// Settings holds every runtime setting. Zero-config defaults aim for
// price-performance on the primary model with a higher-quality fallback.
type Settings struct {
	GeminiAPIKey            string
	GeminiTextModel         string
	GeminiTextFallbackModel string
	GeminiTextTimeout       time.Duration
	ImagenModel             string
	ImagenTimeout           time.Duration
	DataDir                 string
	ListenAddr              string
}

// Load reads settings from the environment. Only the API key is required;
// everything else has a default.
func Load() (*Settings, error) {
	s := &Settings{
		GeminiAPIKey:            getenv("GEMINI_API_KEY", ""),
		GeminiTextModel:         getenv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiTextFallbackModel: getenv("GEMINI_TEXT_FALLBACK_MODEL", "gemini-2.5-pro"),
		GeminiTextTimeout:       getenvDuration("GEMINI_TEXT_TIMEOUT_S", 180*time.Second),
		ImagenModel:             getenv("IMAGEN_MODEL", "gemini-2.5-flash-image"),
		ImagenTimeout:           getenvDuration("IMAGEN_TIMEOUT_S", 45*time.Second),
		DataDir:                 getenv("DATA_DIR", "data"),
		ListenAddr:              getenv("LISTEN_ADDR", ":8080"),
	}
	if s.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%sGEMINI_API_KEY is not configured", envPrefix)
	}
	return s, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

// getenvDuration reads a duration given in whole seconds, matching how the
// *_TIMEOUT_S variables have always been expressed.
func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs * float64(time.Second))
}
