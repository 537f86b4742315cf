package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const minSigningKeyLen = 32

type Config struct {
	Port                    string        `mapstructure:"PORT"`
	Env                     string        `mapstructure:"ENV"`
	AuthMode                string        `mapstructure:"AUTH_MODE"`
	DatabaseURL             string        `mapstructure:"DATABASE_URL"`
	DBMaxConns              int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns              int32         `mapstructure:"DB_MIN_CONNS"`
	JWTSigningKey           string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer               string        `mapstructure:"JWT_ISSUER"`
	TokenTTL                time.Duration `mapstructure:"TOKEN_TTL"`
	DevUserID               string        `mapstructure:"DEV_USER_ID"`
	CORSOrigins             []string      `mapstructure:"CORS_ORIGINS"`
	CertificateValidityDays int           `mapstructure:"CERTIFICATE_VALIDITY_DAYS"`
	CertRegistryTable       string        `mapstructure:"CERT_REGISTRY_TABLE"`
	AWSRegion               string        `mapstructure:"AWS_REGION"`
	AWSEndpointURL          string        `mapstructure:"AWS_ENDPOINT_URL"`
	Timezone                string        `mapstructure:"TIMEZONE"`
}

// DefaultDevUserID is the seeded administrator used by the development
// auth middleware.
const DefaultDevUserID = "00000000-0000-0000-0000-000000000001"

var keys = []string{
	"PORT", "ENV", "AUTH_MODE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"JWT_SIGNING_KEY", "JWT_ISSUER", "TOKEN_TTL", "DEV_USER_ID", "CORS_ORIGINS",
	"CERTIFICATE_VALIDITY_DAYS", "CERT_REGISTRY_TABLE", "AWS_REGION", "AWS_ENDPOINT_URL", "TIMEZONE",
}

// Load reads configuration from the environment, after loading envFiles (or
// ".env" when none are given) into the process environment. Missing files
// are ignored; variables already set win over file values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("JWT_ISSUER", "occhealth")
	v.SetDefault("TOKEN_TTL", "12h")
	v.SetDefault("DEV_USER_ID", DefaultDevUserID)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("CERTIFICATE_VALIDITY_DAYS", 365)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("TIMEZONE", "UTC")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.ResolvedAuthMode() == "development" {
		log.Warn().
			Str("dev_user_id", cfg.DevUserID).
			Msg("development auth is active: every request acts as the seeded admin; set ENV=production and JWT_SIGNING_KEY before deploying")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ResolvedAuthMode returns AUTH_MODE when set, otherwise "development" under
// ENV=development and "jwt" everywhere else.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "jwt"
}

// Location resolves TIMEZONE; "today" in reports and certificate dates use it.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// RegistryEnabled reports whether certificates are published to DynamoDB.
func (c *Config) RegistryEnabled() bool {
	return c.CertRegistryTable != ""
}

// Validate rejects configurations that are unsafe or cannot work.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	switch mode {
	case "development":
		if !c.IsDev() {
			return fmt.Errorf("AUTH_MODE=development is only allowed with ENV=development (current ENV=%q)", c.Env)
		}
	case "jwt":
		if c.JWTSigningKey == "" {
			return fmt.Errorf("JWT_SIGNING_KEY is required when AUTH_MODE is \"jwt\"")
		}
		if len(c.JWTSigningKey) < minSigningKeyLen {
			return fmt.Errorf("JWT_SIGNING_KEY must be at least %d bytes, got %d", minSigningKeyLen, len(c.JWTSigningKey))
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"jwt\", got %q", mode)
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.CertificateValidityDays <= 0 {
		return fmt.Errorf("CERTIFICATE_VALIDITY_DAYS must be positive, got %d", c.CertificateValidityDays)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE %q is not a valid IANA zone: %w", c.Timezone, err)
	}
	if c.RegistryEnabled() && c.AWSRegion == "" {
		return fmt.Errorf("AWS_REGION is required when CERT_REGISTRY_TABLE is set")
	}
	return nil
}
