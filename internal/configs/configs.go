/*
Package configs is responsible for loading and parsing the application's configuration settings.

Settings are read from environment variables. When MATCHUP_CONFIG names a YAML file, its
top-level keys (spelled like the environment variables) supply values for anything the
environment leaves unset. Development defaults keep a local checkout runnable with no setup.
*/
package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DevTokenSigningKey is the signing key used when none is configured in development.
	DevTokenSigningKey = "your_secret_key"

	// DefaultRequestTimeout bounds every network call made by the client.
	DefaultRequestTimeout = 15 * time.Second

	// MemorySessionStore selects a non-persistent session store.
	MemorySessionStore = ":memory:"
)

// AppConfig contains all configuration parameters for the client and the reference backend.
type AppConfig struct {
	// General Settings
	Environment string

	// Client Settings
	APIBaseURL              string
	WSURL                   string
	RequestTimeout          time.Duration
	SessionStorePath        string
	AllowPlaintextPasswords bool

	// Security Settings
	TokenSigningKey string
	Admin           AdminIdentity

	// Reference Backend Settings
	Port           int
	AllowedOrigins []string
	DatabaseDSN    string
	SeedLocations  bool
}

// AdminIdentity is the privileged identity that logs in without contacting the backend.
type AdminIdentity struct {
	Name     string
	Email    string
	Secret   string
	NickName string
}

// IsDevelopment reports whether the configuration targets a development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// source resolves a setting from the environment first and the YAML file second.
// An empty environment variable counts as unset.
type source struct {
	file map[string]string
}

func (s source) get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

// loadFile reads the flat YAML file named by MATCHUP_CONFIG, if any.
func loadFile() (map[string]string, error) {
	path := os.Getenv("MATCHUP_CONFIG")
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read MATCHUP_CONFIG file %s: %w", path, err)
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse MATCHUP_CONFIG file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				items = append(items, fmt.Sprint(item))
			}
			values[strings.ToUpper(key)] = strings.Join(items, ",")
		case nil:
		default:
			values[strings.ToUpper(key)] = fmt.Sprint(v)
		}
	}

	return values, nil
}

// LoadConfig reads and validates the configuration.
func LoadConfig() (*AppConfig, error) {
	fileValues, err := loadFile()
	if err != nil {
		return nil, err
	}
	src := source{file: fileValues}

	cfg := &AppConfig{}

	// --- General Settings ---
	cfg.Environment = src.get("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// --- Client Settings ---
	cfg.APIBaseURL = strings.TrimRight(src.get("API_BASE_URL"), "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:9095"
	}
	if !strings.HasPrefix(cfg.APIBaseURL, "http://") && !strings.HasPrefix(cfg.APIBaseURL, "https://") {
		return nil, fmt.Errorf("API_BASE_URL must be an http(s) URL, got %q", cfg.APIBaseURL)
	}

	cfg.WSURL = src.get("WS_URL")
	if cfg.WSURL == "" {
		cfg.WSURL = "ws" + strings.TrimPrefix(cfg.APIBaseURL, "http") + "/ws"
	}
	if !strings.HasPrefix(cfg.WSURL, "ws://") && !strings.HasPrefix(cfg.WSURL, "wss://") {
		return nil, fmt.Errorf("WS_URL must be a ws(s) URL, got %q", cfg.WSURL)
	}

	cfg.RequestTimeout = DefaultRequestTimeout
	if timeoutStr := src.get("REQUEST_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REQUEST_TIMEOUT environment variable: %w", err)
		}
		cfg.RequestTimeout = timeout
	}
	if cfg.RequestTimeout < time.Second || cfg.RequestTimeout > time.Minute {
		return nil, fmt.Errorf("REQUEST_TIMEOUT %s is outside the allowed range (1s-60s)", cfg.RequestTimeout)
	}

	cfg.SessionStorePath = src.get("SESSION_STORE_PATH")
	if cfg.SessionStorePath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			cfg.SessionStorePath = MemorySessionStore
		} else {
			cfg.SessionStorePath = filepath.Join(dir, "matchup", "session.db")
		}
	}

	cfg.AllowPlaintextPasswords = true
	if v := src.get("ALLOW_PLAINTEXT_PASSWORDS"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ALLOW_PLAINTEXT_PASSWORDS environment variable: %w", err)
		}
		cfg.AllowPlaintextPasswords = allow
	}

	// --- Security Settings ---
	cfg.TokenSigningKey = src.get("TOKEN_SIGNING_KEY")
	if cfg.TokenSigningKey == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("TOKEN_SIGNING_KEY environment variable is required in %s environment for security", cfg.Environment)
		}
		cfg.TokenSigningKey = DevTokenSigningKey
	}

	cfg.Admin = AdminIdentity{
		Name:     valueOr(src.get("ADMIN_NAME"), "sudo"),
		Email:    valueOr(src.get("ADMIN_EMAIL"), "sudo@localhost"),
		Secret:   src.get("ADMIN_SECRET"),
		NickName: valueOr(src.get("ADMIN_NICKNAME"), "sudoman"),
	}
	if cfg.Admin.Secret == "" && cfg.IsDevelopment() {
		cfg.Admin.Secret = "supersecret"
	}

	// --- Reference Backend Settings ---
	portStr := src.get("PORT")
	if portStr == "" {
		portStr = "9095"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	cfg.AllowedOrigins = []string{}
	if originsStr := src.get("ALLOWED_ORIGINS"); originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	cfg.DatabaseDSN = src.get("DATABASE_URL")

	cfg.SeedLocations = cfg.IsDevelopment()
	if v := src.get("SEED_LOCATIONS"); v != "" {
		seed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SEED_LOCATIONS environment variable: %w", err)
		}
		cfg.SeedLocations = seed
	}

	return cfg, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
