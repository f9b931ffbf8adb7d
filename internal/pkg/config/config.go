package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Mongo MongoConfig
	Redis RedisConfig
	Auth  AuthConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=identity"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// AuthConfig holds the signing secrets and every policy constant of the
// identity core. Secrets have no defaults and are never logged.
type AuthConfig struct {
	AccessTokenSecret  string `env:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string `env:"REFRESH_TOKEN_SECRET"`

	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL,      default=15m"`
	RememberMeTokenTTL time.Duration `env:"REMEMBER_ME_TOKEN_TTL, default=720h"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL,     default=168h"`

	OTPLength int           `env:"OTP_LENGTH, default=6"`
	OTPTTL    time.Duration `env:"OTP_TTL,    default=5m"`
	// ResetWindow bounds how long after OTP verification a reset is allowed.
	ResetWindow time.Duration `env:"RESET_WINDOW, default=10m"`
	// ForgotTokenTTL is the tracked expiry of the reset token, independent
	// of the token's own signature expiry.
	ForgotTokenTTL time.Duration `env:"FORGOT_TOKEN_TTL, default=15m"`
	InviteTokenTTL time.Duration `env:"INVITE_TOKEN_TTL, default=24h"`

	LoginAttemptLimit int           `env:"LOGIN_ATTEMPT_LIMIT, default=5"`
	OTPResendCooldown time.Duration `env:"OTP_RESEND_COOLDOWN, default=60s"`

	PasswordMinLength int `env:"PASSWORD_MIN_LENGTH, default=8"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
