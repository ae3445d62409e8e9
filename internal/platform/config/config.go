// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings.

Settings are resolved in three layers, each overriding the previous:

 1. Compiled-in defaults.
 2. A YAML configuration file (optional; path from PASSPORT_CONFIG or flag).
 3. OS environment variables (via 'caarlos0/env') for the secrets and
    deployment-specific knobs that must never live in a file checked into
    version control.

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, SMS, Registry) via
    constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/taibuivan/yomira-passport/internal/platform/sec"
)

// # Configuration Schema

// Config holds all runtime configuration for the passport server.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Security   SecurityConfig   `yaml:"security"`
	Sms        SmsConfig        `yaml:"sms"`
	SmsGateway SmsGatewayConfig `yaml:"sms_gateway"`
	Login      LoginConfig      `yaml:"login"`
	Password   PasswordConfig   `yaml:"password"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	Zookeeper  ZookeeperConfig  `yaml:"zookeeper"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          string `yaml:"port"           env:"SERVER_PORT"`
	Host          string `yaml:"host"           env:"SERVER_HOST"`
	Environment   string `yaml:"environment"    env:"ENVIRONMENT"`
	Debug         bool   `yaml:"debug"          env:"DEBUG"`
	MigrationPath string `yaml:"migration_path" env:"MIGRATION_PATH"`
}

// DatabaseConfig holds the relational store settings.
type DatabaseConfig struct {
	// DSN is a libpq-compatible connection string or postgres:// URL.
	DSN string `yaml:"dsn" env:"DB_DSN"`
}

// RedisConfig holds the cache settings.
type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL"`
}

// SecurityConfig holds token issuance parameters.
type SecurityConfig struct {
	JWTSecret              string `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer              string `yaml:"jwt_issuer" env:"JWT_ISSUER"`
	AccessTokenTTLSeconds  int    `yaml:"access_token_ttl_seconds"`
	RefreshTokenTTLSeconds int    `yaml:"refresh_token_ttl_seconds"`
}

// AccessTTL returns the access token lifetime as a duration.
func (c SecurityConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLSeconds) * time.Second
}

// RefreshTTL returns the refresh token lifetime as a duration.
func (c SecurityConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLSeconds) * time.Second
}

// SmsConfig holds the one-time-code lifecycle parameters.
type SmsConfig struct {
	CodeLength          int `yaml:"code_len"`
	CodeTTLSeconds      int `yaml:"code_ttl_seconds"`
	SendIntervalSeconds int `yaml:"send_interval_seconds"`
	MaxRetryCount       int `yaml:"max_retry_count"`
	RetryTTLSeconds     int `yaml:"retry_ttl_seconds"`
	LockSeconds         int `yaml:"lock_seconds"`
}

// CodeTTL returns the code lifetime as a duration.
func (c SmsConfig) CodeTTL() time.Duration {
	return time.Duration(c.CodeTTLSeconds) * time.Second
}

// SendInterval returns the cross-scene cooldown as a duration.
func (c SmsConfig) SendInterval() time.Duration {
	return time.Duration(c.SendIntervalSeconds) * time.Second
}

// RetryTTL returns the failed-attempt counter window as a duration.
func (c SmsConfig) RetryTTL() time.Duration {
	return time.Duration(c.RetryTTLSeconds) * time.Second
}

// LockDuration returns the scene lockout as a duration.
func (c SmsConfig) LockDuration() time.Duration {
	return time.Duration(c.LockSeconds) * time.Second
}

// SmsGatewayConfig holds the delivery collaborator settings.
type SmsGatewayConfig struct {
	Addr     string `yaml:"addr"      env:"SMS_GATEWAY_ADDR"`
	PoolSize int    `yaml:"pool_size"`
}

// LoginConfig holds the login-attempt limiter parameters.
type LoginConfig struct {
	MaxFailedAttempts           int `yaml:"max_failed_attempts"`
	FailedAttemptsWindowSeconds int `yaml:"failed_attempts_window_seconds"`
	LockDurationSeconds         int `yaml:"lock_duration_seconds"`
	MaxSessionsPerUser          int `yaml:"max_sessions_per_user"`
}

// AttemptsWindow returns the sliding failure window as a duration.
func (c LoginConfig) AttemptsWindow() time.Duration {
	return time.Duration(c.FailedAttemptsWindowSeconds) * time.Second
}

// LockDuration returns the account lock as a duration.
func (c LoginConfig) LockDuration() time.Duration {
	return time.Duration(c.LockDurationSeconds) * time.Second
}

// PasswordConfig holds the password complexity rules.
type PasswordConfig struct {
	MinLength          int  `yaml:"min_length"`
	MaxLength          int  `yaml:"max_length"`
	RequireUppercase   bool `yaml:"require_uppercase"`
	RequireLowercase   bool `yaml:"require_lowercase"`
	RequireDigit       bool `yaml:"require_digit"`
	RequireSpecialChar bool `yaml:"require_special_char"`
}

// Policy converts the section into the security-layer policy type.
func (c PasswordConfig) Policy() sec.PasswordPolicy {
	return sec.PasswordPolicy{
		MinLength:        c.MinLength,
		MaxLength:        c.MaxLength,
		RequireUppercase: c.RequireUppercase,
		RequireLowercase: c.RequireLowercase,
		RequireDigit:     c.RequireDigit,
		RequireSpecial:   c.RequireSpecialChar,
	}
}

// SweeperConfig holds the expired-session sweeper settings.
type SweeperConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
}

// Interval returns the sweep period as a duration.
func (c SweeperConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// ZookeeperConfig holds the coordination-service settings.
type ZookeeperConfig struct {
	Hosts            []string `yaml:"hosts"              env:"ZK_HOSTS" envSeparator:","`
	SessionTimeoutMs int      `yaml:"session_timeout_ms"`
	Enabled          bool     `yaml:"enabled"            env:"ZK_ENABLED"`
	RootPath         string   `yaml:"root_path"          env:"ZK_ROOT_PATH"`
	ServiceName      string   `yaml:"service_name"       env:"ZK_SERVICE_NAME"`
	RegisterSelf     bool     `yaml:"register_self"      env:"ZK_REGISTER_SELF"`
	Weight           int      `yaml:"weight"             env:"ZK_WEIGHT"`
}

// SessionTimeout returns the coordination session timeout as a duration.
func (c ZookeeperConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMs) * time.Millisecond
}

// # Configuration Loading

// defaults returns the compiled-in baseline configuration.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8080",
			Host:          "0.0.0.0",
			Environment:   "development",
			MigrationPath: "./migrations",
		},
		Security: SecurityConfig{
			JWTIssuer:              "passport.yomira.app",
			AccessTokenTTLSeconds:  900,     // 15m
			RefreshTokenTTLSeconds: 2592000, // 30d
		},
		Sms: SmsConfig{
			CodeLength:          6,
			CodeTTLSeconds:      300,
			SendIntervalSeconds: 60,
			MaxRetryCount:       5,
			RetryTTLSeconds:     600,
			LockSeconds:         1800,
		},
		SmsGateway: SmsGatewayConfig{
			PoolSize: 4,
		},
		Login: LoginConfig{
			MaxFailedAttempts:           5,
			FailedAttemptsWindowSeconds: 900,
			LockDurationSeconds:         1800,
			MaxSessionsPerUser:          10,
		},
		Password: PasswordConfig{
			MinLength:          8,
			MaxLength:          64,
			RequireUppercase:   true,
			RequireLowercase:   true,
			RequireDigit:       true,
			RequireSpecialChar: true,
		},
		Sweeper: SweeperConfig{
			IntervalMinutes: 60,
		},
		Zookeeper: ZookeeperConfig{
			SessionTimeoutMs: 10000,
			RootPath:         "/services",
			ServiceName:      "passport",
			Weight:           1,
		},
	}
}

/*
Load resolves the effective configuration.

Description: Starts from defaults, merges the YAML file at path (skipped
when path is empty or the file does not exist), then applies environment
variable overrides and validates the result.

Parameters:
  - path: string (YAML file location; "" to skip)

Returns:
  - *Config: Validated, immutable configuration
  - error: Parse or validation failures
*/
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Fall through to env-only configuration.
		case err != nil:
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
			}
		}
	}

	// Environment variables win over the file for secrets and per-host knobs.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects configurations that would produce an insecure or
// non-functional service.
func (c *Config) validate() error {
	if len(c.Security.JWTSecret) < sec.MinSecretLength {
		return fmt.Errorf("config: security.jwt_secret must be at least %d bytes", sec.MinSecretLength)
	}
	if c.Security.AccessTokenTTLSeconds <= 0 || c.Security.RefreshTokenTTLSeconds <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	if c.Sms.CodeLength < 4 || c.Sms.CodeLength > 8 {
		return errors.New("config: sms.code_len must be between 4 and 8")
	}
	if c.Sms.CodeTTLSeconds <= 0 {
		return errors.New("config: sms.code_ttl_seconds must be positive")
	}
	if c.Login.MaxFailedAttempts <= 0 {
		return errors.New("config: login.max_failed_attempts must be positive")
	}
	if c.SmsGateway.PoolSize <= 0 {
		return errors.New("config: sms_gateway.pool_size must be positive")
	}
	if c.Zookeeper.Enabled && len(c.Zookeeper.Hosts) == 0 {
		return errors.New("config: zookeeper.hosts must not be empty when enabled")
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
