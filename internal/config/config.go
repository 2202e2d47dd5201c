// Package config loads the server configuration from the environment. A .env
// file is honored in development; real deployments set the variables directly.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/almawell/alma/adapters/llm"
	"github.com/almawell/alma/adapters/tts"
)

// Config carries everything main needs to wire the server. The session core
// never reads the environment; values flow in through here.
type Config struct {
	Port      string
	JWTSecret string
	JWTTTL    time.Duration

	Language    string
	VoiceGender string

	MongoURI      string
	MongoDatabase string

	Gemini     llm.GeminiConfig
	ElevenLabs tts.ElevenLabsConfig
}

// Load reads the configuration, honoring a local .env file when present
func Load(logger *zap.Logger) Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	return Config{
		Port:          envOr("PORT", "8080"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTTTL:        envDuration("JWT_TTL", 7*24*time.Hour),
		Language:      envOr("LANGUAGE", "es-ES"),
		VoiceGender:   envOr("VOICE_GENDER", "female"),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: envOr("MONGODB_DATABASE", "alma"),
		Gemini: llm.GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  os.Getenv("GEMINI_MODEL"),
		},
		ElevenLabs: tts.NewElevenLabsConfigFromEnv(),
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
