package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/glimpse/internal/generate"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

var httpURLRe = regexp.MustCompile(`^https?://`)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Inbox     InboxConfig       `yaml:"inbox"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Generator GeneratorConfig   `yaml:"generator"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Inbox.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Generator.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" env:"GLIMPSE_LOG_LEVEL"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" env:"GLIMPSE_HTTP_PORT"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// InboxConfig holds the path of the directory the capture agent writes to.
type InboxConfig struct {
	Path string `yaml:"path" env:"GLIMPSE_INBOX_PATH"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"GLIMPSE_SQLITE_PATH"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" env:"GLIMPSE_AUTH_MODE"`
	Token string `yaml:"token" env:"GLIMPSE_AUTH_TOKEN"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// GeneratorConfig configures the OpenAI-compatible text generation endpoint.
// An empty APIKey is allowed; asking questions then fails with a missing
// credential error while retrieval keeps working.
type GeneratorConfig struct {
	BaseURL           string        `yaml:"base_url" env:"GLIMPSE_GENERATOR_BASE_URL"`
	Model             string        `yaml:"model" env:"GLIMPSE_GENERATOR_MODEL"`
	APIKey            string        `yaml:"api_key" env:"GLIMPSE_GENERATOR_API_KEY"`
	Timeout           time.Duration `yaml:"timeout" env:"GLIMPSE_GENERATOR_TIMEOUT"`
	MaxRetries        int           `yaml:"max_retries" env:"GLIMPSE_GENERATOR_MAX_RETRIES"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"GLIMPSE_GENERATOR_RPM"`
	SystemPrompt      string        `yaml:"system_prompt" env:"GLIMPSE_GENERATOR_SYSTEM_PROMPT"`
}

// Validate validates the generator configuration.
func (c *GeneratorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.Match(httpURLRe)),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.RequestsPerMinute, validation.Min(0)),
	)
}

// ClientConfig converts the section into a generate.Config.
func (c *GeneratorConfig) ClientConfig() generate.Config {
	return generate.Config{
		BaseURL:           c.BaseURL,
		APIKey:            c.APIKey,
		Model:             c.Model,
		Timeout:           c.Timeout,
		MaxRetries:        c.MaxRetries,
		RequestsPerMinute: c.RequestsPerMinute,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Inbox: InboxConfig{
			Path: "./inbox",
		},
		SQLite: SQLiteConfig{
			Path: "./glimpse.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Generator: GeneratorConfig{
			BaseURL:    "https://api.openai.com",
			Model:      "gpt-4o-mini",
			Timeout:    60 * time.Second,
			MaxRetries: 2,
		},
	}
}
