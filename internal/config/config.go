// Package config provides application configuration management with support for command-line flags,
// environment variables, .env files and an optional YAML config file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverMySQL  = "mysql"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Data      DataConfig
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Search    SearchConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json", "text" or empty for environment based selection
}

// DataConfig holds on-disk storage configuration.
type DataConfig struct {
	BasePath string
}

// DatabaseConfig selects and configures the persistence backend.
type DatabaseConfig struct {
	Driver string // sqlite (default), badger or mysql
	DSN    string // Required for mysql, ignored otherwise
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Name           string
	Port           string        // Server port (default: 8000)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	AllowedOrigins []string      // CORS origins (default: *)
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key for access tokens (32 bytes)
	AccessTokenKey []byte
	// Session durations
	AccessTokenDuration  time.Duration // e.g., 15m
	RefreshTokenDuration time.Duration // e.g., 720h (30 days)
}

// RateLimitConfig controls the per-IP limiter on auth endpoints.
type RateLimitConfig struct {
	AuthPerMinute int
	AuthBurst     int
}

// SearchConfig controls the full-text rock index.
type SearchConfig struct {
	Enabled bool
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. YAML config file.
// 5. Default values (lowest priority).
//
// args are the command-line arguments without the program name.
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("rock-of-ages", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, text)")
	dataPath := fs.String("data-path", "", "Base path for on-disk data")
	dbDriver := fs.String("db-driver", "", "Database driver (sqlite, badger, mysql)")
	dbDSN := fs.String("db-dsn", "", "Database DSN (mysql only)")
	serverName := fs.String("server-name", "", "Name for the server")

	// Auth flags
	accessTokenDuration := fs.String("access-token-duration", "", "Access token lifetime (e.g., 15m)")
	refreshTokenDuration := fs.String("refresh-token-duration", "", "Refresh token lifetime (e.g., 720h)")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8000)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	allowedOrigins := fs.String("allowed-origins", "", "Comma separated CORS origins (default: *)")
	searchEnabled := fs.String("search", "", "Enable the full-text rock index (default: true)")

	envFile := fs.String("env-file", ".env", "Path to .env file")
	configFile := fs.String("config", "", "Path to YAML config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	file, err := loadConfigFile(getConfigValue(*configFile, "CONFIG_FILE", ""))
	if err != nil {
		return nil, err
	}
	l := loader{file: file.values()}

	cfg := &Config{
		App: AppConfig{
			Environment: l.value(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  l.value(*logLevel, "LOG_LEVEL", "info"),
			Format: l.value(*logFormat, "LOG_FORMAT", ""),
		},
		Data: DataConfig{
			BasePath: l.value(*dataPath, "DATA_PATH", ""),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(l.value(*dbDriver, "DB_DRIVER", DriverSQLite)),
			DSN:    l.value(*dbDSN, "DATABASE_DSN", ""),
		},
		Server: ServerConfig{
			Name:           l.value(*serverName, "SERVER_NAME", "Rock of Ages API"),
			Port:           l.value(*serverPort, "SERVER_PORT", "8000"),
			AllowedOrigins: splitList(l.value(*allowedOrigins, "ALLOWED_ORIGINS", "*")),
		},
		Auth: AuthConfig{
			AccessTokenKey: nil, // Set by auth.LoadOrGenerateKey in the auth key provider
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute: l.intValue("", "AUTH_RATE_PER_MINUTE", 20),
			AuthBurst:     l.intValue("", "AUTH_RATE_BURST", 10),
		},
		Search: SearchConfig{
			Enabled: l.boolValue(*searchEnabled, "SEARCH_ENABLED", true),
		},
	}

	durations := []struct {
		flagValue string
		envKey    string
		def       string
		dest      *time.Duration
	}{
		{*accessTokenDuration, "ACCESS_TOKEN_DURATION", "15m", &cfg.Auth.AccessTokenDuration},
		{*refreshTokenDuration, "REFRESH_TOKEN_DURATION", "720h", &cfg.Auth.RefreshTokenDuration},
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
	}
	for _, d := range durations {
		raw := l.value(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.dest = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch strings.ToLower(c.Logger.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logger.Format)
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverBadger:
	case DriverMySQL:
		if c.Database.DSN == "" {
			return errors.New("DATABASE_DSN is required for the mysql driver")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite, badger, or mysql)", c.Database.Driver)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	return nil
}

// IsProduction reports whether the app runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
// Defaults to ~/RockOfAges/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "RockOfAges", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// loader resolves values with the config file as the layer just above defaults.
type loader struct {
	file map[string]string
}

func (l loader) value(flagValue, envKey, defaultValue string) string {
	if v := l.file[envKey]; v != "" {
		defaultValue = v
	}
	return getConfigValue(flagValue, envKey, defaultValue)
}

func (l loader) boolValue(flagValue, envKey string, defaultValue bool) bool {
	return parseBool(l.value(flagValue, envKey, ""), defaultValue)
}

func (l loader) intValue(flagValue, envKey string, defaultValue int) int {
	strValue := l.value(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}

	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	return defaultValue
}

// parseBool accepts "true", "1", "yes" (case-insensitive) as true; any other
// non-empty value is false.
func parseBool(strValue string, defaultValue bool) bool {
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real environment variables win over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
