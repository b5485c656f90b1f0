// Package config loads server configuration from the environment, optionally
// seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"arogyarakshak/core/storage"
)

// Config is the server configuration.
type Config struct {
	ListenAddr              string        `env:"AROGYA_LISTEN_ADDR"               envDefault:":8080"`
	DataDir                 string        `env:"AROGYA_DATA_DIR"                  envDefault:"./data"`
	SnapshotEvery           int           `env:"AROGYA_SNAPSHOT_EVERY"            envDefault:"50"`
	DEK                     string        `env:"AROGYA_DEK"`
	JWTSecret               string        `env:"AROGYA_JWT_SECRET"`
	JWTIssuer               string        `env:"AROGYA_JWT_ISSUER"                envDefault:"arogya-rakshak"`
	RateLimitPerMin         int           `env:"AROGYA_RATE_LIMIT_PER_MIN"        envDefault:"600"`
	EnableHTTPS             bool          `env:"AROGYA_ENABLE_HTTPS"`
	TLSCertPath             string        `env:"AROGYA_TLS_CERT_PATH"`
	TLSKeyPath              string        `env:"AROGYA_TLS_KEY_PATH"`
	ReadTimeout             time.Duration `env:"AROGYA_READ_TIMEOUT"              envDefault:"10s"`
	WriteTimeout            time.Duration `env:"AROGYA_WRITE_TIMEOUT"             envDefault:"10s"`
	ShutdownTimeout         time.Duration `env:"AROGYA_SHUTDOWN_TIMEOUT"          envDefault:"15s"`
	OTPTTL                  time.Duration `env:"AROGYA_OTP_TTL"                   envDefault:"5m"`
	ExposeOTP               bool          `env:"AROGYA_EXPOSE_OTP"`
	PreAuthAutoApproveLimit float64       `env:"AROGYA_PREAUTH_AUTO_APPROVE_LIMIT" envDefault:"50000"`
	ChainID                 string        `env:"AROGYA_CHAIN_ID"                  envDefault:"arogya-rakshak-dev"`
	NodeOrg                 string        `env:"AROGYA_NODE_ORG"                  envDefault:"system:node"`
	GenesisFile             string        `env:"AROGYA_GENESIS_FILE"`
	LogFile                 string        `env:"AROGYA_LOG_FILE"`
}

// Load reads the given .env files (missing files are skipped, existing
// variables win) and parses the environment.
func Load(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// FromMap parses configuration from vars instead of the process environment.
func FromMap(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks combinations the struct tags cannot express.
func (c Config) Validate() error {
	if c.DEK != "" {
		if _, err := storage.DecodeDEK(c.DEK); err != nil {
			return fmt.Errorf("AROGYA_DEK: %w", err)
		}
	}
	if c.EnableHTTPS && (c.TLSCertPath == "" || c.TLSKeyPath == "") {
		return errors.New("AROGYA_ENABLE_HTTPS requires AROGYA_TLS_CERT_PATH and AROGYA_TLS_KEY_PATH")
	}
	if c.RateLimitPerMin < 0 {
		return errors.New("AROGYA_RATE_LIMIT_PER_MIN must not be negative")
	}
	if c.OTPTTL <= 0 {
		return errors.New("AROGYA_OTP_TTL must be positive")
	}
	if c.PreAuthAutoApproveLimit < 0 {
		return errors.New("AROGYA_PREAUTH_AUTO_APPROVE_LIMIT must not be negative")
	}
	return nil
}

func (c Config) KeysDir() string { return filepath.Join(c.DataDir, "keys") }

func (c Config) ValidationAuditLog() string {
	return filepath.Join(c.DataDir, "validation_audit.log")
}
