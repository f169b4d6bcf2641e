package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/tally.db")
	if cfg.Database.Path != "/tmp/tally.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Fatalf("unexpected driver %q", cfg.Database.Driver)
	}
	if !cfg.UsesMemory() {
		t.Fatal("expected default config to keep state in memory")
	}
	if cfg.Server.APIEndpoint != "/api/v1" || cfg.Server.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected endpoints %#v", cfg.Server)
	}
	if !cfg.Seed.Demo {
		t.Fatal("expected demo seed enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/tally.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
driver = "sqlite"
path = "/custom/tally.db"

[server]
http_bind = "0.0.0.0:9090"

[seed]
demo = false

[logging]
level = "debug"

[logging.dev_file]
enabled = true
dir = "/tmp/tally-logs"

[tasks]
default_priority = "high"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.Path != "/custom/tally.db" {
		t.Fatalf("unexpected database config %#v", cfg.Database)
	}
	if cfg.UsesMemory() {
		t.Fatal("expected file-backed sqlite config")
	}
	if cfg.Server.HTTPBind != "0.0.0.0:9090" {
		t.Fatalf("unexpected bind %q", cfg.Server.HTTPBind)
	}
	if cfg.Server.APIEndpoint != "/api/v1" {
		t.Fatalf("expected untouched api endpoint default, got %q", cfg.Server.APIEndpoint)
	}
	if cfg.Seed.Demo {
		t.Fatal("expected demo seed disabled from config override")
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.DevFile.Enabled || cfg.Logging.DevFile.Dir != "/tmp/tally-logs" {
		t.Fatalf("unexpected logging config %#v", cfg.Logging)
	}
	if cfg.Tasks.DefaultPriority != "high" || cfg.Tasks.DefaultRole != "developer" {
		t.Fatalf("unexpected tasks config %#v", cfg.Tasks)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "driver",
			content: "[database]\ndriver = \"postgres\"\n",
			wantErr: "database.driver",
		},
		{
			name:    "sqlite without path",
			content: "[database]\ndriver = \"sqlite\"\npath = \"\"\n",
			wantErr: "database.path",
		},
		{
			name:    "endpoint collision",
			content: "[server]\napi_endpoint = \"/x\"\nmcp_endpoint = \"x/\"\n",
			wantErr: "must differ",
		},
		{
			name:    "log level",
			content: "[logging]\nlevel = \"loud\"\n",
			wantErr: "logging.level",
		},
		{
			name:    "dev file without dir",
			content: "[logging.dev_file]\nenabled = true\ndir = \"\"\n",
			wantErr: "logging.dev_file.dir",
		},
		{
			name:    "priority",
			content: "[tasks]\ndefault_priority = \"urgent\"\n",
			wantErr: "tasks.default_priority",
		},
		{
			name:    "malformed toml",
			content: "[database\n",
			wantErr: "decode toml",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			_, err := Load(path, Default("/tmp/default.db"))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Load() error = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestUsesMemoryForSQLiteMemoryPath(t *testing.T) {
	cfg := Default(MemoryPath)
	cfg.Database.Driver = DriverSQLite
	if !cfg.UsesMemory() {
		t.Fatal("expected :memory: sqlite path to count as in-process")
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}
