package app

import (
	"fmt"
	"time"

	"github.com/citysafe/planning-backend/internal/platform/envutil"
	"github.com/citysafe/planning-backend/internal/services"
)

type Config struct {
	Mode string
	Port string

	RedisAddr       string
	SummaryCacheTTL time.Duration

	AnnexDir string

	Auth services.AuthConfig
}

// CheckAuthSecret rejects an unset JWT signing key outside development, so a
// production instance can never mint tokens signed with an empty secret.
func (c Config) CheckAuthSecret() error {
	if len(c.Auth.JWTSecret) > 0 {
		return nil
	}
	if c.Mode == "production" {
		return fmt.Errorf("JWT_SECRET is required in production mode")
	}
	return nil
}

func LoadConfig() Config {
	return Config{
		Mode: envutil.Str("APP_MODE", "development"),
		Port: envutil.Str("PORT", "8080"),

		RedisAddr:       envutil.Str("REDIS_ADDR", ""),
		SummaryCacheTTL: envutil.Dur("SUMMARY_CACHE_TTL_SECONDS", 5*time.Minute),

		AnnexDir: envutil.Str("ANNEX_DIR", "./data/annexes"),

		Auth: services.AuthConfig{
			JWTSecret:       []byte(envutil.Str("JWT_SECRET", "")),
			AccessTokenTTL:  envutil.Dur("ACCESS_TOKEN_TTL_SECONDS", 15*time.Minute),
			RefreshTokenTTL: envutil.Dur("REFRESH_TOKEN_TTL_SECONDS", 30*24*time.Hour),
			InviteTokenTTL:  envutil.Dur("INVITE_TOKEN_TTL_SECONDS", 7*24*time.Hour),
			RecoveryTTL:     envutil.Dur("RECOVERY_TOKEN_TTL_SECONDS", 2*time.Hour),
			FrontOfficeURL:  envutil.Str("FRONT_OFFICE_URL", "http://localhost:3000"),
		},
	}
}
