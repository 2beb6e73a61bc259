package internal

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/skyboj/obsidian-ai-blogger/internal/bot"
	"github.com/skyboj/obsidian-ai-blogger/internal/publish"
	"github.com/skyboj/obsidian-ai-blogger/internal/ratelimit"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// BotRequiredEnv lists the environment variables the bot cannot start without.
var BotRequiredEnv = []string{"TELEGRAM_BOT_TOKEN", "OPENAI_API_KEY", "ADMIN_TELEGRAM_ID"}

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Bot         BotConfig         `yaml:"bot"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	AI          AIConfig          `yaml:"ai"`
	Images      ImagesConfig      `yaml:"images"`
	Content     ContentConfig     `yaml:"content"`
	RateLimit   RateLimitConfig   `yaml:"rate_limiting"`
	Publish     PublishConfig     `yaml:"publish"`
	Telegraph   TelegraphConfig   `yaml:"telegraph"`
	SQLite      SQLiteConfig      `yaml:"sqlite"`
	Auth        AuthConfig        `yaml:"auth"`
	Commands    []bot.Command     `yaml:"commands"`
	MetricsPath string            `yaml:"metrics_path"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.AI, &c.Images, &c.Content, &c.RateLimit, &c.Publish, &c.SQLite,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if c.App.HTTP.Enabled() && !c.Auth.AuthEnabled() && !c.App.HTTP.Loopback() {
		return fmt.Errorf("http: host %q is reachable from other machines; set auth.mode to %q or bind to 127.0.0.1",
			c.App.HTTP.Host, AuthModeToken)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration. Port 0 disables the server.
// An empty host listens on every interface.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Loopback reports whether the server only accepts local connections.
func (c *HTTPConfig) Loopback() bool {
	if c.Host == "localhost" {
		return true
	}
	ip := net.ParseIP(c.Host)
	return ip != nil && ip.IsLoopback()
}

// Enabled reports whether the HTTP server should run.
func (c *HTTPConfig) Enabled() bool { return c.Port > 0 }

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
	)
}

// BotConfig names the bot in greetings and status output.
type BotConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// TelegramConfig holds the bot transport settings.
type TelegramConfig struct {
	Token       string  `yaml:"token"`
	AdminIDs    IDList  `yaml:"admin_ids"`
	PollTimeout int     `yaml:"poll_timeout"`
	SendRate    float64 `yaml:"send_rate"`
}

// IDList is a list of Telegram user ids. In YAML it is either a sequence or
// a comma separated string, so it can be filled from ADMIN_TELEGRAM_ID.
type IDList []int64

// UnmarshalYAML accepts both forms.
func (l *IDList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var ids []int64
		if err := node.Decode(&ids); err != nil {
			return err
		}
		*l = ids
		return nil
	}
	ids, err := ParseIDs(node.Value)
	if err != nil {
		return err
	}
	*l = ids
	return nil
}

// ParseIDs parses a comma separated id list. Blank entries are skipped.
func ParseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AIConfig configures the text generation providers.
type AIConfig struct {
	DefaultProvider string           `yaml:"default_provider"`
	MaxRetries      int              `yaml:"max_retries"`
	OpenAI          AIProviderConfig `yaml:"openai"`
	Gemini          AIProviderConfig `yaml:"gemini"`
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultProvider, validation.Required, validation.In("openai", "gemini")),
		validation.Field(&c.MaxRetries, validation.Min(0)),
		validation.Field(&c.OpenAI),
		validation.Field(&c.Gemini),
	)
}

// AIProviderConfig holds the settings of one AI backend.
type AIProviderConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Validate validates the provider settings.
func (c AIProviderConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxTokens, validation.Min(0)),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
	)
}

// ImagesConfig configures the stock photo providers.
type ImagesConfig struct {
	DefaultProvider string         `yaml:"default_provider"`
	MaxRetries      int            `yaml:"max_retries"`
	Unsplash        UnsplashConfig `yaml:"unsplash"`
	Pexels          PexelsConfig   `yaml:"pexels"`
}

// Validate validates the image configuration.
func (c *ImagesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultProvider, validation.In("unsplash", "pexels")),
		validation.Field(&c.MaxRetries, validation.Min(0)),
	)
}

// UnsplashConfig holds the Unsplash credentials.
type UnsplashConfig struct {
	AccessKey string        `yaml:"access_key"`
	PerPage   int           `yaml:"per_page"`
	Timeout   time.Duration `yaml:"timeout"`
}

// PexelsConfig holds the Pexels credentials.
type PexelsConfig struct {
	APIKey  string        `yaml:"api_key"`
	PerPage int           `yaml:"per_page"`
	Timeout time.Duration `yaml:"timeout"`
}

// ContentConfig locates drafts, prompt templates and the blog checkout.
type ContentConfig struct {
	OutputDir       string `yaml:"output_dir"`
	PromptsDir      string `yaml:"prompts_dir"`
	DefaultTemplate string `yaml:"default_template"`
	BlogDir         string `yaml:"blog_dir"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.OutputDir, validation.Required),
		validation.Field(&c.PromptsDir, validation.Required),
	)
}

// RateLimitConfig holds the per-user request thresholds.
type RateLimitConfig struct {
	BurstLimit      int           `yaml:"burst_limit"`
	BurstWindow     time.Duration `yaml:"burst_window"`
	RapidInterval   time.Duration `yaml:"rapid_interval"`
	RequestsPerHour int           `yaml:"requests_per_hour"`
	RequestsPerDay  int           `yaml:"requests_per_day"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Validate validates the thresholds.
func (c *RateLimitConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BurstLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.RequestsPerHour, validation.Required, validation.Min(1)),
		validation.Field(&c.RequestsPerDay, validation.Required, validation.Min(1)),
	)
}

// Limiter converts the section into limiter settings.
func (c *RateLimitConfig) Limiter() ratelimit.Config {
	return ratelimit.Config{
		BurstLimit:      c.BurstLimit,
		BurstWindow:     c.BurstWindow,
		RapidInterval:   c.RapidInterval,
		RequestsPerHour: c.RequestsPerHour,
		RequestsPerDay:  c.RequestsPerDay,
		CleanupInterval: c.CleanupInterval,
	}
}

// PublishConfig lists the external build and deploy steps.
type PublishConfig struct {
	Timeout time.Duration        `yaml:"timeout"`
	Steps   []publish.StepConfig `yaml:"steps"`
}

// Validate checks that every step names a command.
func (c *PublishConfig) Validate() error {
	for i, s := range c.Steps {
		if err := validation.ValidateStruct(&s,
			validation.Field(&s.Name, validation.Required),
			validation.Field(&s.Command, validation.Required),
		); err != nil {
			return fmt.Errorf("publish: step %d: %w", i, err)
		}
	}
	return nil
}

// TelegraphConfig configures draft previews.
type TelegraphConfig struct {
	Enabled    bool          `yaml:"enabled"`
	StateDir   string        `yaml:"state_dir"`
	ShortName  string        `yaml:"short_name"`
	AuthorName string        `yaml:"author_name"`
	AuthorURL  string        `yaml:"author_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
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

// MissingEnv returns the names from required that getenv reports empty.
func MissingEnv(getenv func(string) string, required []string) []string {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(getenv(name)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// RequireEnv fails with one error naming every absent variable.
func RequireEnv(getenv func(string) string, required []string) error {
	missing := MissingEnv(getenv, required)
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	rl := ratelimit.DefaultConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 8080,
			},
		},
		Bot: BotConfig{
			Name: "Obsidian AI Blogger",
		},
		Telegram: TelegramConfig{
			PollTimeout: 60,
			SendRate:    25,
		},
		AI: AIConfig{
			DefaultProvider: "openai",
			MaxRetries:      2,
			OpenAI:          AIProviderConfig{Model: "gpt-4o-mini", MaxTokens: 4000, Temperature: 0.7},
			Gemini:          AIProviderConfig{Model: "gemini-2.0-flash", MaxTokens: 4000, Temperature: 0.7},
		},
		Images: ImagesConfig{
			DefaultProvider: "unsplash",
			MaxRetries:      2,
		},
		Content: ContentConfig{
			OutputDir:       "./content",
			PromptsDir:      "./prompts",
			DefaultTemplate: "article",
		},
		RateLimit: RateLimitConfig{
			BurstLimit:      rl.BurstLimit,
			BurstWindow:     rl.BurstWindow,
			RapidInterval:   rl.RapidInterval,
			RequestsPerHour: rl.RequestsPerHour,
			RequestsPerDay:  rl.RequestsPerDay,
			CleanupInterval: rl.CleanupInterval,
		},
		Publish: PublishConfig{
			Timeout: publish.DefaultTimeout,
		},
		Telegraph: TelegraphConfig{
			StateDir:  "./data",
			ShortName: "blogger",
		},
		SQLite: SQLiteConfig{
			Path: "./blogger.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Commands: []bot.Command{
			{Command: "generate", Description: "Generate an article"},
			{Command: "drafts", Description: "List drafts"},
			{Command: "publish", Description: "Publish marked drafts"},
			{Command: "status", Description: "Provider status"},
			{Command: "help", Description: "Help"},
		},
		MetricsPath: "/metrics",
	}
}
