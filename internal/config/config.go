// Package config loads runtime configuration from the environment.
// Entrypoints load a .env file first (godotenv), so every knob works both
// as a real environment variable and as a .env entry.
package config

import (
	"strconv"

	"github.com/alnah/go-scribe/internal/plan"
)

// Environment variable names.
const (
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvFFmpegPath      = "SCRIBE_FFMPEG_PATH"
	EnvDiarizeURL      = "SCRIBE_DIARIZE_URL"
	EnvDiarizeAPIKey   = "SCRIBE_DIARIZE_API_KEY"
	EnvSizeCeilingMB   = "SCRIBE_SIZE_CEILING_MB"
	EnvSafetyFactor    = "SCRIBE_SAFETY_FACTOR"
	EnvMinChunkSeconds = "SCRIBE_MIN_CHUNK_SECONDS"
	EnvPort            = "SCRIBE_PORT"
	EnvJWTSecret       = "SCRIBE_JWT_SECRET"
	EnvDBPath          = "SCRIBE_DB_PATH"
)

// Config holds all runtime settings.
type Config struct {
	// OpenAIAPIKey authenticates transcription and translation calls.
	OpenAIAPIKey string

	// FFmpegPath overrides PATH resolution of the ffmpeg binary.
	FFmpegPath string

	// DiarizeURL enables the optional diarization capability when set.
	DiarizeURL    string
	DiarizeAPIKey string

	// Chunk planning knobs; they track the upstream API's current limits.
	SizeCeilingMB   float64
	SafetyFactor    float64
	MinChunkSeconds float64

	// Web service settings.
	Port      string
	JWTSecret string
	DBPath    string
}

// Load reads configuration using the given environment getter.
// The getter is injected so tests never touch the process environment.
func Load(getenv func(string) string) Config {
	return Config{
		OpenAIAPIKey:    getenv(EnvOpenAIAPIKey),
		FFmpegPath:      getenv(EnvFFmpegPath),
		DiarizeURL:      getenv(EnvDiarizeURL),
		DiarizeAPIKey:   getenv(EnvDiarizeAPIKey),
		SizeCeilingMB:   floatOr(getenv(EnvSizeCeilingMB), plan.DefaultSizeCeilingMB),
		SafetyFactor:    floatOr(getenv(EnvSafetyFactor), plan.DefaultSafetyFactor),
		MinChunkSeconds: floatOr(getenv(EnvMinChunkSeconds), plan.DefaultMinChunkSeconds),
		Port:            stringOr(getenv(EnvPort), "8080"),
		JWTSecret:       getenv(EnvJWTSecret),
		DBPath:          getenv(EnvDBPath),
	}
}

// Planner returns the chunk planning parameters from this configuration.
func (c Config) Planner() plan.Params {
	return plan.Params{
		SizeCeilingMB:   c.SizeCeilingMB,
		SafetyFactor:    c.SafetyFactor,
		MinChunkSeconds: c.MinChunkSeconds,
	}
}

// floatOr parses a float value, falling back on empty or invalid input.
func floatOr(value string, fallback float64) float64 {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// stringOr falls back on empty input.
func stringOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
