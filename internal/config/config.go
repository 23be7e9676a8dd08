// Package config loads process configuration from the environment via
// envconfig, the same library the rest of the pack reaches for instead of
// hand-rolled os.Getenv plumbing.
package config

import "github.com/kelseyhightower/envconfig"

// Config is the full set of environment-driven settings for the server.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	QuestionProviderBaseURL string `envconfig:"QUESTION_PROVIDER_BASE_URL" default:"https://opentdb.com"`
	QuestionProviderTimeout int    `envconfig:"QUESTION_PROVIDER_TIMEOUT_MS" default:"4000"`

	// MongoURI and RedisURL are optional: unset means the archive and
	// telemetry side channels run in no-op mode, never blocking gameplay.
	MongoURI    string `envconfig:"MONGO_URI" default:""`
	MongoDBName string `envconfig:"MONGO_DB_NAME" default:"buzzer"`
	RedisURL    string `envconfig:"REDIS_URL" default:""`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Load reads the Config from the process environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}
