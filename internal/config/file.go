package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML config file layout.
//
//	env: production
//	log:
//	  level: info
//	database:
//	  driver: sqlite
//	server:
//	  port: "8000"
//	  allowed_origins: ["https://rocks.example.com"]
type fileConfig struct {
	Env      string `yaml:"env"`
	DataPath string `yaml:"data_path"`
	Log      struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Server struct {
		Name           string   `yaml:"name"`
		Port           string   `yaml:"port"`
		ReadTimeout    string   `yaml:"read_timeout"`
		WriteTimeout   string   `yaml:"write_timeout"`
		IdleTimeout    string   `yaml:"idle_timeout"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Auth struct {
		AccessTokenDuration  string `yaml:"access_token_duration"`
		RefreshTokenDuration string `yaml:"refresh_token_duration"`
	} `yaml:"auth"`
	RateLimit struct {
		AuthPerMinute int `yaml:"auth_per_minute"`
		AuthBurst     int `yaml:"auth_burst"`
	} `yaml:"rate_limit"`
	Search struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"search"`
}

// loadConfigFile reads a YAML config file. An empty path or a missing file
// yields an empty config.
func loadConfigFile(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}

	expanded, err := expandPath(path, "")
	if err != nil {
		return nil, fmt.Errorf("config file path: %w", err)
	}

	data, err := os.ReadFile(expanded) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", expanded, err)
	}
	return cfg, nil
}

// values flattens the file into the environment variable names used by LoadConfig.
func (f *fileConfig) values() map[string]string {
	v := map[string]string{
		"ENV":                    f.Env,
		"DATA_PATH":              f.DataPath,
		"LOG_LEVEL":              f.Log.Level,
		"LOG_FORMAT":             f.Log.Format,
		"DB_DRIVER":              f.Database.Driver,
		"DATABASE_DSN":           f.Database.DSN,
		"SERVER_NAME":            f.Server.Name,
		"SERVER_PORT":            f.Server.Port,
		"SERVER_READ_TIMEOUT":    f.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":   f.Server.WriteTimeout,
		"SERVER_IDLE_TIMEOUT":    f.Server.IdleTimeout,
		"ALLOWED_ORIGINS":        strings.Join(f.Server.AllowedOrigins, ","),
		"ACCESS_TOKEN_DURATION":  f.Auth.AccessTokenDuration,
		"REFRESH_TOKEN_DURATION": f.Auth.RefreshTokenDuration,
	}
	if f.RateLimit.AuthPerMinute > 0 {
		v["AUTH_RATE_PER_MINUTE"] = strconv.Itoa(f.RateLimit.AuthPerMinute)
	}
	if f.RateLimit.AuthBurst > 0 {
		v["AUTH_RATE_BURST"] = strconv.Itoa(f.RateLimit.AuthBurst)
	}
	if f.Search.Enabled != nil {
		v["SEARCH_ENABLED"] = strconv.FormatBool(*f.Search.Enabled)
	}
	return v
}
