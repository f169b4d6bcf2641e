package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	serveradapter "github.com/evanschultz/tally/internal/adapters/server"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/config"
)

// execute runs the command tree without fang so output stays unstyled.
func execute(t *testing.T, env map[string]string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	opts := newCLIOptions(&stdout, &stderr, func(key string) string { return env[key] })
	opts.now = func() time.Time { return time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC) }
	root := newRootCommand(opts)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// isolatedArgs points config at a missing file inside a temp dir.
func isolatedArgs(t *testing.T, args ...string) []string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	return append(args, "--config", cfgPath, "--quiet")
}

func TestRunPathsCommand(t *testing.T) {
	env := map[string]string{"TALLY_DB_PATH": "/tmp/override.db"}
	out, _, err := execute(t, env, "paths", "--app", "tally-test", "--dev=false")
	if err != nil {
		t.Fatalf("paths error = %v", err)
	}
	for _, want := range []string{"app: tally-test", "dev_mode: false", "config: ", "db: /tmp/override.db", "log_dir: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got %q", want, out)
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if _, _, err := execute(t, nil, "bogus"); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestReportRendersDemoProject(t *testing.T) {
	out, _, err := execute(t, nil, isolatedArgs(t, "report", "--style", "ascii")...)
	if err != nil {
		t.Fatalf("report error = %v", err)
	}
	for _, want := range []string{"Plataforma E-Commerce", "20%", "Fase 1: Planificación", "100%", "t10", "Carlos Rodríguez"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in report, got:\n%s", want, out)
		}
	}
}

func TestReportUnknownProject(t *testing.T) {
	_, _, err := execute(t, nil, isolatedArgs(t, "report", "missing")...)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestTasksCommandListsOwnStatus(t *testing.T) {
	out, _, err := execute(t, nil, isolatedArgs(t, "tasks", "--user", "5")...)
	if err != nil {
		t.Fatalf("tasks error = %v", err)
	}
	for _, want := range []string{"Laura Sánchez", "t5", "t6", "t7", "t10", "paused", "4 tasks"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in tasks output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "t3 ") {
		t.Fatalf("unexpected task t3 for user 5:\n%s", out)
	}
}

func TestStatusCommandPersistsInSQLiteFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tally.db")
	if _, _, err := execute(t, nil, isolatedArgs(t, "seed", "--db", dbPath)...); err != nil {
		t.Fatalf("seed error = %v", err)
	}
	out, _, err := execute(t, nil, isolatedArgs(t, "status", "t3", "4", "completed", "--db", dbPath)...)
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "task t3: in-progress -> completed (2/2 assignees completed)") {
		t.Fatalf("unexpected status output %q", out)
	}
	report, _, err := execute(t, nil, isolatedArgs(t, "report", "p1", "--style", "ascii", "--db", dbPath)...)
	if err != nil {
		t.Fatalf("report error = %v", err)
	}
	if !strings.Contains(report, "30%") || !strings.Contains(report, "50%") {
		t.Fatalf("expected rolled-up progress in report, got:\n%s", report)
	}
}

func TestStatusCommandRejectsUnknownStatus(t *testing.T) {
	_, _, err := execute(t, nil, isolatedArgs(t, "status", "t3", "4", "finished")...)
	if err == nil {
		t.Fatal("expected invalid status error")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	snapPath := filepath.Join(tmp, "out", "snapshot.json")
	if _, _, err := execute(t, nil, isolatedArgs(t, "export", "--out", snapPath)...); err != nil {
		t.Fatalf("export error = %v", err)
	}
	content, err := os.ReadFile(snapPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if snap.Version != app.SnapshotVersion || len(snap.Tasks) != 10 {
		t.Fatalf("unexpected snapshot version=%q tasks=%d", snap.Version, len(snap.Tasks))
	}

	cfgPath := filepath.Join(tmp, "config.toml")
	cfgContent := "[seed]\ndemo = false\n"
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	dbPath := filepath.Join(tmp, "imported.db")
	out, _, err := execute(t, nil, "import", "--in", snapPath, "--db", dbPath, "--config", cfgPath, "--quiet")
	if err != nil {
		t.Fatalf("import error = %v", err)
	}
	if !strings.Contains(out, "imported 10 tasks") {
		t.Fatalf("unexpected import output %q", out)
	}
	tasks, _, err := execute(t, nil, "tasks", "--user", "4", "--db", dbPath, "--config", cfgPath, "--quiet")
	if err != nil {
		t.Fatalf("tasks error = %v", err)
	}
	if !strings.Contains(tasks, "t8") {
		t.Fatalf("expected imported task t8, got:\n%s", tasks)
	}
}

func TestImportRequiresInFlag(t *testing.T) {
	if _, _, err := execute(t, nil, isolatedArgs(t, "import")...); err == nil {
		t.Fatal("expected missing --in error")
	}
}

func TestServeCommandUsesConfigAndFlags(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.toml")
	cfgContent := "[server]\nhttp_bind = \"127.0.0.1:7000\"\napi_endpoint = \"/api/v2\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	prev := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = prev })
	var (
		gotCfg      serveradapter.Config
		gotProgress int
	)
	serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
		gotCfg = cfg
		if deps.Tracker == nil {
			t.Fatal("expected tracker dependency")
		}
		project, err := deps.Tracker.GetProject(ctx, "p1")
		if err != nil {
			return err
		}
		gotProgress = project.Progress
		return nil
	}

	if _, _, err := execute(t, nil, "serve", "--http", "127.0.0.1:9999", "--config", cfgPath, "--quiet"); err != nil {
		t.Fatalf("serve error = %v", err)
	}
	if gotCfg.HTTPBind != "127.0.0.1:9999" || gotCfg.APIEndpoint != "/api/v2" || gotCfg.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected serve config %#v", gotCfg)
	}
	if gotProgress != 20 {
		t.Fatalf("expected seeded project progress 20, got %d", gotProgress)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "logging level", content: "[logging]\nlevel = \"verbose\"\n"},
		{name: "driver", content: "[database]\ndriver = \"postgres\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfgPath := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(cfgPath, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, _, err := execute(t, nil, "report", "--config", cfgPath); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}

func TestOpenStoreSelectsDriver(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{name: "memory", cfg: config.DatabaseConfig{Driver: config.DriverMemory}, want: "*memory.Repository"},
		{name: "sqlite in memory", cfg: config.DatabaseConfig{Driver: config.DriverSQLite, Path: config.MemoryPath}, want: "*sqlite.Repository"},
		{name: "sqlite file", cfg: config.DatabaseConfig{Driver: "SQLite", Path: filepath.Join(t.TempDir(), "x.db")}, want: "*sqlite.Repository"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, err := openStore(tc.cfg)
			if err != nil {
				t.Fatalf("openStore() error = %v", err)
			}
			t.Cleanup(func() { _ = st.Close() })
			if got := fmt.Sprintf("%T", st); got != tc.want {
				t.Fatalf("openStore() type = %s, want %s", got, tc.want)
			}
		})
	}
	if _, err := openStore(config.DatabaseConfig{Driver: "postgres"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestDevModeWritesLogfmtFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	logger, err := newRuntimeLogger(&console, "tally", true, config.LoggingConfig{
		Level:   "debug",
		DevFile: config.DevFileConfig{Enabled: true, Dir: dir},
	}, func() time.Time { return time.Date(2026, 2, 22, 0, 0, 0, 0, time.UTC) })
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	want := filepath.Join(dir, "tally-20260222.log")
	if logger.DevLogPath() != want {
		t.Fatalf("DevLogPath() = %q, want %q", logger.DevLogPath(), want)
	}
	logger.Info("task status set", "task_id", "t3")
	logger.SetConsoleEnabled(false)
	logger.Warn("console muted")
	if logger.RequestLogger() == nil {
		t.Fatal("expected file sink as request logger while console is muted")
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, fragment := range []string{"level=info", "task_id=t3", "level=warn"} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("expected %q in dev log, got %q", fragment, string(content))
		}
	}
	if !strings.Contains(console.String(), "task status set") || strings.Contains(console.String(), "console muted") {
		t.Fatalf("unexpected console output %q", console.String())
	}
}

func TestRuntimeLoggerWithoutDevFile(t *testing.T) {
	logger, err := newRuntimeLogger(nil, "tally", false, config.LoggingConfig{Level: "info"}, nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	if logger.DevLogPath() != "" {
		t.Fatalf("expected no dev log path, got %q", logger.DevLogPath())
	}
	logger.SetConsoleEnabled(false)
	if logger.RequestLogger() != nil {
		t.Fatal("expected no request logger with console muted and no file sink")
	}
	if _, err := newRuntimeLogger(nil, "tally", false, config.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Fatal("expected invalid level error")
	}
}

func TestDevLogFilePathResolvesAgainstWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "cmd", "tally")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	t.Chdir(nested)
	got, err := devLogFilePath(".tally/log", "tally dev", time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	normalize := func(p string) string {
		return strings.TrimPrefix(filepath.Clean(p), "/private")
	}
	want := filepath.Join(root, ".tally", "log", "tally-dev-20260222.log")
	if normalize(got) != normalize(want) {
		t.Fatalf("devLogFilePath() = %q, want %q", got, want)
	}
}

func TestSanitizeLogFileStem(t *testing.T) {
	cases := map[string]string{
		"":          "tally",
		" / ":       "tally",
		"tally:dev": "tally-dev",
		"a/b c":     "a-b-c",
	}
	for in, want := range cases {
		if got := sanitizeLogFileStem(in); got != want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", in, got, want)
		}
	}
}
