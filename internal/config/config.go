package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Console transport modes.
const (
	ModeOff   = "off"
	ModeStdio = "stdio"
	ModeHTTP  = "http"
)

// Config defines server configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Olympiad  OlympiadConfig  `yaml:"olympiad"`
	Store     StoreConfig     `yaml:"store"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	MCP       MCPConfig       `yaml:"mcp"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type TelegramConfig struct {
	Token   string `yaml:"token" env:"OLYMPIAD_TELEGRAM_TOKEN"`
	APIBase string `yaml:"api_base" env:"OLYMPIAD_TELEGRAM_API_BASE"`
}

type OlympiadConfig struct {
	// SecretHash is the bcrypt hash of the registration password.
	SecretHash        string        `yaml:"secret_hash" env:"OLYMPIAD_SECRET_HASH"`
	Window            time.Duration `yaml:"window" env:"OLYMPIAD_WINDOW"`
	Start             time.Time     `yaml:"start" env:"OLYMPIAD_START"`
	End               time.Time     `yaml:"end" env:"OLYMPIAD_END"`
	TasksPath         string        `yaml:"tasks_path" env:"OLYMPIAD_TASKS_PATH"`
	TasksCaption      string        `yaml:"tasks_caption" env:"OLYMPIAD_TASKS_CAPTION"`
	SolutionsDir      string        `yaml:"solutions_dir" env:"OLYMPIAD_SOLUTIONS_DIR"`
	AllowedExtensions []string      `yaml:"allowed_extensions" env:"OLYMPIAD_ALLOWED_EXTENSIONS" envSeparator:","`
	Organizers        []string      `yaml:"organizers" env:"OLYMPIAD_ORGANIZERS" envSeparator:","`
}

type StoreConfig struct {
	Backend        string `yaml:"backend" env:"OLYMPIAD_STORE_BACKEND"`
	StatePath      string `yaml:"state_path" env:"OLYMPIAD_STATE_PATH"`
	OrganizersPath string `yaml:"organizers_path" env:"OLYMPIAD_ORGANIZERS_PATH"`
}

type DBConfig struct {
	Path string `yaml:"path" env:"OLYMPIAD_DB_PATH"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"OLYMPIAD_LOG_LEVEL"`
}

type MCPConfig struct {
	Mode           string        `yaml:"mode" env:"OLYMPIAD_MCP_MODE"`
	Host           string        `yaml:"host" env:"OLYMPIAD_MCP_HOST"`
	Port           int           `yaml:"port" env:"OLYMPIAD_MCP_PORT"`
	OrganizerID    string        `yaml:"organizer_id" env:"OLYMPIAD_MCP_ORGANIZER_ID"`
	SessionTimeout time.Duration `yaml:"session_timeout" env:"OLYMPIAD_MCP_SESSION_TIMEOUT"`
}

type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint" env:"OLYMPIAD_OTEL_ENDPOINT"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Telegram: TelegramConfig{
			APIBase: "https://api.telegram.org",
		},
		Olympiad: OlympiadConfig{
			Window:            60 * time.Minute,
			TasksPath:         "tasks.pdf",
			TasksCaption:      "Olympiad tasks",
			SolutionsDir:      "solutions",
			AllowedExtensions: []string{".pdf"},
		},
		Store: StoreConfig{
			Backend:        BackendFile,
			StatePath:      "users.txt",
			OrganizersPath: "admins.txt",
		},
		DB: DBConfig{
			Path: "olympiad.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		MCP: MCPConfig{
			Mode:           ModeOff,
			Host:           "127.0.0.1",
			Port:           8080,
			SessionTimeout: 30 * time.Minute,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file named by
// OLYMPIAD_CONFIG_PATH and OLYMPIAD_* environment variables, in that order.
// Only the shape of the result is validated; see RequireBot.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("OLYMPIAD_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.MCP.Mode = strings.ToLower(strings.TrimSpace(c.MCP.Mode))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	for i, ext := range c.Olympiad.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Olympiad.AllowedExtensions[i] = ext
	}
	for i, id := range c.Olympiad.Organizers {
		c.Olympiad.Organizers[i] = strings.TrimSpace(id)
	}
}

// Validate reports every structural problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.Olympiad.Window <= 0 {
		errs = append(errs, fmt.Errorf("olympiad.window must be positive, got %s", c.Olympiad.Window))
	}
	if !c.Olympiad.Start.IsZero() && !c.Olympiad.End.IsZero() && c.Olympiad.End.Before(c.Olympiad.Start) {
		errs = append(errs, fmt.Errorf("olympiad.end %s is before olympiad.start %s", c.Olympiad.End.Format(time.RFC3339), c.Olympiad.Start.Format(time.RFC3339)))
	}
	if len(c.Olympiad.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("olympiad.allowed_extensions must not be empty"))
	}
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.StatePath == "" || c.Store.OrganizersPath == "" {
			errs = append(errs, errors.New("store.state_path and store.organizers_path are required for the file backend"))
		}
	case BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Store.Backend))
	}
	if c.DB.Path == "" {
		errs = append(errs, errors.New("db.path is required"))
	}
	switch c.MCP.Mode {
	case ModeOff, ModeHTTP:
	case ModeStdio:
		if c.MCP.OrganizerID == "" {
			errs = append(errs, errors.New("mcp.organizer_id is required in stdio mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("mcp.mode must be off, stdio or http, got %q", c.MCP.Mode))
	}
	if c.MCP.Mode == ModeHTTP && (c.MCP.Port <= 0 || c.MCP.Port > 65535) {
		errs = append(errs, fmt.Errorf("mcp.port out of range: %d", c.MCP.Port))
	}
	return errors.Join(errs...)
}

// RequireBot checks the settings needed to run the bot itself.
func (c Config) RequireBot() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("OLYMPIAD_TELEGRAM_TOKEN is required"))
	}
	if c.Olympiad.SecretHash == "" {
		errs = append(errs, errors.New("OLYMPIAD_SECRET_HASH is required; create one with `server hash-secret`"))
	}
	return errors.Join(errs...)
}
