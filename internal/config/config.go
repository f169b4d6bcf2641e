package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

// DatabaseDriver selects the store backing the service.
type DatabaseDriver string

const (
	DriverMemory DatabaseDriver = "memory"
	DriverSQLite DatabaseDriver = "sqlite"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Seed     SeedConfig     `toml:"seed"`
	Logging  LoggingConfig  `toml:"logging"`
	Tasks    TasksConfig    `toml:"tasks"`
}

type DatabaseConfig struct {
	Driver DatabaseDriver `toml:"driver"`
	// Path is used by the sqlite driver; ":memory:" keeps the database in process.
	Path string `toml:"path"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type SeedConfig struct {
	Demo bool `toml:"demo"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// TasksConfig holds defaults applied to newly created records.
type TasksConfig struct {
	DefaultPriority string `toml:"default_priority"`
	DefaultRole     string `toml:"default_role"`
}

// MemoryPath selects the in-process sqlite database.
const MemoryPath = ":memory:"

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Driver: DriverMemory,
			Path:   dbPath,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Seed: SeedConfig{
			Demo: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: false,
				Dir:     ".tally/log",
			},
		},
		Tasks: TasksConfig{
			DefaultPriority: "medium",
			DefaultRole:     "developer",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch DatabaseDriver(strings.TrimSpace(strings.ToLower(string(c.Database.Driver)))) {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("invalid database.driver: %q", c.Database.Driver)
	}

	if strings.TrimSpace(c.Server.HTTPBind) == "" {
		return errors.New("server.http_bind is required")
	}
	api := strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/")
	mcp := strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/")
	if api != "" && api == mcp {
		return fmt.Errorf("server.api_endpoint and server.mcp_endpoint must differ: %q", c.Server.APIEndpoint)
	}

	if _, err := log.ParseLevel(strings.TrimSpace(strings.ToLower(c.Logging.Level))); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when logging.dev_file.enabled is true")
	}

	switch strings.TrimSpace(strings.ToLower(c.Tasks.DefaultPriority)) {
	case "", "low", "medium", "high", "critical":
	default:
		return fmt.Errorf("invalid tasks.default_priority: %q", c.Tasks.DefaultPriority)
	}
	switch strings.TrimSpace(strings.ToLower(c.Tasks.DefaultRole)) {
	case "", "admin", "project-manager", "developer", "viewer":
	default:
		return fmt.Errorf("invalid tasks.default_role: %q", c.Tasks.DefaultRole)
	}

	return nil
}

// UsesMemory reports whether the configured store keeps state only in process.
func (c Config) UsesMemory() bool {
	driver := DatabaseDriver(strings.TrimSpace(strings.ToLower(string(c.Database.Driver))))
	return driver == DriverMemory || strings.TrimSpace(c.Database.Path) == MemoryPath
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
