// Command tally runs the project tracker: an HTTP+MCP server plus local
// reporting and snapshot commands over the same service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/evanschultz/tally/internal/adapters/storage/memory"
	"github.com/evanschultz/tally/internal/adapters/storage/sqlite"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/config"
	"github.com/evanschultz/tally/internal/domain"
	"github.com/evanschultz/tally/internal/platform"
	"github.com/evanschultz/tally/internal/seed"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}

// run executes the command tree with fang's help, version, and error rendering.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(newCLIOptions(stdout, stderr, os.Getenv))
	root.SetArgs(args)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// cliOptions holds root flags plus the process environment seen by every command.
type cliOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	quiet      bool

	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	now    func() time.Time
}

func newCLIOptions(stdout, stderr io.Writer, getenv func(string) string) *cliOptions {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	return &cliOptions{stdout: stdout, stderr: stderr, getenv: getenv, now: time.Now}
}

func newRootCommand(opts *cliOptions) *cobra.Command {
	appName := strings.TrimSpace(opts.getenv("TALLY_APP_NAME"))
	if appName == "" {
		appName = "tally"
	}
	root := &cobra.Command{
		Use:           "tally",
		Short:         "Track projects whose tasks are shared by several assignees",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.stdout)
	root.SetErr(opts.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to a sqlite database file (selects the sqlite driver)")
	flags.StringVar(&opts.appName, "app", appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", version == "dev" || platform.DevModeFromEnv(opts.getenv), "use dev mode paths (<app>-dev)")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "mute console logging")

	root.AddCommand(
		pathsCommand(opts),
		serveCommand(opts),
		seedCommand(opts),
		reportCommand(opts),
		tasksCommand(opts),
		statusCommand(opts),
		exportCommand(opts),
		importCommand(opts),
	)
	return root
}

// paths resolves platform paths with env overrides applied.
func (o *cliOptions) paths() (platform.Paths, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
		Getenv:  o.getenv,
	})
	if err != nil {
		return platform.Paths{}, err
	}
	return platform.WithEnvOverrides(paths, o.getenv), nil
}

// session is one command's resolved config, logger, store, and service.
type session struct {
	cfg    config.Config
	paths  platform.Paths
	logger *runtimeLogger
	svc    *app.Service
	store  store
}

// store is the repository plus its lifecycle.
type store interface {
	app.Repository
	Close() error
}

type sessionOptions struct {
	// autoSeed loads the demo dataset into an empty store when config enables it.
	autoSeed bool
}

// open resolves config and opens the store and service for one command.
func (o *cliOptions) open(ctx context.Context, command string, so sessionOptions) (*session, error) {
	paths, err := o.paths()
	if err != nil {
		return nil, err
	}
	configPath := strings.TrimSpace(o.configPath)
	if configPath == "" {
		configPath = paths.ConfigPath
	}
	dbPath := strings.TrimSpace(o.dbPath)
	dbOverridden := dbPath != "" || strings.TrimSpace(o.getenv(platform.EnvDBPath)) != ""
	if dbPath == "" {
		dbPath = paths.DBPath
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(o.stderr, o.appName, o.devMode, cfg.Logging, o.now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if o.quiet {
		logger.SetConsoleEnabled(false)
	}
	logger.Info("startup configuration resolved", "app", o.appName, "dev_mode", o.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", dbPath)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	st, err := openStore(cfg.Database)
	if err != nil {
		logger.Error("store open failed", "driver", cfg.Database.Driver, "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, err
	}
	logger.Info("store ready", "driver", cfg.Database.Driver, "db_path", cfg.Database.Path, "in_memory", cfg.UsesMemory())

	svc := app.NewService(st, uuid.NewString, nil, app.ServiceConfig{
		DefaultPriority: domain.Priority(strings.ToLower(strings.TrimSpace(cfg.Tasks.DefaultPriority))),
		DefaultRole:     domain.Role(strings.ToLower(strings.TrimSpace(cfg.Tasks.DefaultRole))),
	})
	s := &session{cfg: cfg, paths: paths, logger: logger, svc: svc, store: st}
	if so.autoSeed && cfg.Seed.Demo {
		if err := s.seedIfEmpty(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// openStore picks the repository for the configured driver. The sqlite driver
// with a ":memory:" path opens a private in-process database.
func openStore(cfg config.DatabaseConfig) (store, error) {
	driver := config.DatabaseDriver(strings.ToLower(strings.TrimSpace(string(cfg.Driver))))
	path := strings.TrimSpace(cfg.Path)
	switch {
	case driver == config.DriverMemory || driver == "":
		return memory.New(), nil
	case driver == config.DriverSQLite && path == config.MemoryPath:
		repo, err := sqlite.OpenInMemory()
		if err != nil {
			return nil, fmt.Errorf("open in-memory sqlite repository: %w", err)
		}
		return repo, nil
	case driver == config.DriverSQLite:
		repo, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

func (s *session) seedIfEmpty(ctx context.Context) error {
	users, err := s.svc.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("inspect store before seeding: %w", err)
	}
	if len(users) > 0 {
		s.logger.Debug("demo seed skipped", "users", len(users))
		return nil
	}
	if err := seed.Load(ctx, s.svc); err != nil {
		s.logger.Error("demo seed failed", "err", err)
		return fmt.Errorf("seed demo dataset: %w", err)
	}
	s.logger.Info("demo dataset loaded")
	return nil
}

// Close releases the store and the dev log sink.
func (s *session) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("store close failed", "err", err)
			errs = append(errs, err)
		}
	}
	if err := s.logger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close runtime log sink: %w", err))
	}
	return errors.Join(errs...)
}

// withSession wraps a command body with session setup, flow logging, and teardown.
func withSession(opts *cliOptions, name string, so sessionOptions, body func(*cobra.Command, []string, *session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		s, err := opts.open(ctx, name, so)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := s.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		s.logger.Info("command flow start", "command", name)
		if err := body(cmd, args, s); err != nil {
			s.logger.Error("command flow failed", "command", name, "err", err)
			return fmt.Errorf("run %s command: %w", name, err)
		}
		s.logger.Info("command flow complete", "command", name)
		return nil
	}
}
