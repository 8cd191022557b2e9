package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var ErrConfiguration = errors.New("configuration error")

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// DefaultDatabaseURL is used outside production when DATABASE_URL is unset.
	DefaultDatabaseURL = "sqlite:///./tasks.db"

	MinTimeout = 100 * time.Millisecond
)

type Config struct {
	Environment        string
	Port               string
	DatabaseURL        string
	AnthropicAPIKey    string
	AnthropicModel     string
	AnthropicBaseURL   string
	AdminToken         string
	PrioritizerTimeout time.Duration
	ShutdownTimeout    time.Duration
	AllowedOrigins     []string
}

func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Load reads configuration from the environment, layered over the dotenv file
// for the current environment when one exists.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit dotenv path. A missing explicit file is an
// error; a missing default file is not.
func LoadFile(path string) (Config, error) {
	cfg, err := read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDatabaseURL resolves only the database location. Commands that never
// talk to the ranking service use it so they do not need its credentials.
func LoadDatabaseURL(path string) (string, error) {
	cfg, err := read(path)
	if err != nil {
		return "", err
	}
	if cfg.DatabaseURL == "" {
		return "", fmt.Errorf("%w: missing DATABASE_URL", ErrConfiguration)
	}
	return cfg.DatabaseURL, nil
}

func read(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = ".env"
		if strings.EqualFold(os.Getenv("ENVIRONMENT"), EnvProduction) {
			path = ".env.production"
		}
	}

	if err := readDotenv(v, path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: read %s: %w", ErrConfiguration, path, err)
		}
	}

	cfg := Config{
		Environment:      strings.ToLower(v.GetString("environment")),
		Port:             v.GetString("port"),
		DatabaseURL:      v.GetString("database_url"),
		AnthropicAPIKey:  v.GetString("anthropic_api_key"),
		AnthropicModel:   v.GetString("anthropic_model"),
		AnthropicBaseURL: v.GetString("anthropic_base_url"),
		AdminToken:       v.GetString("admin_token"),
		AllowedOrigins:   splitList(v.GetString("cors_allowed_origins")),
	}

	var err error
	if cfg.PrioritizerTimeout, err = duration(v, "prioritizer_timeout"); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = duration(v, "shutdown_timeout"); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" && !cfg.IsProduction() {
		cfg.DatabaseURL = DefaultDatabaseURL
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("port", "8080")
	v.SetDefault("anthropic_model", "")
	v.SetDefault("anthropic_base_url", "")
	v.SetDefault("prioritizer_timeout", "30s")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("cors_allowed_origins", "*")
}

func readDotenv(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")
	return v.ReadInConfig()
}

func (c Config) validate() error {
	var missing []string
	if c.AnthropicAPIKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if c.AdminToken == "" {
		missing = append(missing, "ADMIN_TOKEN")
	}
	if c.IsProduction() && c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}

	if c.PrioritizerTimeout < MinTimeout {
		return fmt.Errorf("%w: PRIORITIZER_TIMEOUT must be at least %s", ErrConfiguration, MinTimeout)
	}
	if c.ShutdownTimeout < MinTimeout {
		return fmt.Errorf("%w: SHUTDOWN_TIMEOUT must be at least %s", ErrConfiguration, MinTimeout)
	}
	return nil
}

// duration reads key as a Go duration ("30s", "1m"). A bare integer means
// seconds.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrConfiguration, strings.ToUpper(key), err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RedactURL hides the password in a database URL so it can be logged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
