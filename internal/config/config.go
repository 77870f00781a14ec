package config

// Config holds all application configuration, parsed from environment
// variables via github.com/caarlos0/env.
type Config struct {
	// Server
	Port        int    `env:"PORT" envDefault:"3000"`
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Token signing
	SecretKey string `env:"HUMANPROOF_SECRET" envDefault:"dev-secret-change-in-production"`

	// Session store. Empty REDIS_URL selects the in-memory store.
	RedisURL         string `env:"REDIS_URL"`
	RetentionHours   int    `env:"SESSION_RETENTION_HOURS" envDefault:"24"`
	RateLimitPerMin  int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`

	// External classifier. Empty CLASSIFIER_URL disables it and every
	// session scores through the fallback algorithm.
	ClassifierURL       string `env:"CLASSIFIER_URL"`
	ClassifierTimeoutMs int    `env:"CLASSIFIER_TIMEOUT_MS" envDefault:"800"`

	// Challenges
	ChallengesEnabled    bool  `env:"CHALLENGES_ENABLED" envDefault:"true"`
	PointerTimeLimitMs   int64 `env:"POINTER_TIME_LIMIT_MS" envDefault:"15000"`
	ClickTimeLimitMs     int64 `env:"CLICK_TIME_LIMIT_MS" envDefault:"20000"`
	TypingTimeLimitMs    int64 `env:"TYPING_TIME_LIMIT_MS" envDefault:"30000"`
}
