package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	serveradapter "github.com/evanschultz/tally/internal/adapters/server"
	servercommon "github.com/evanschultz/tally/internal/adapters/server/common"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
	"github.com/evanschultz/tally/internal/seed"
	"github.com/spf13/cobra"
)

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func pathsCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and database paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.paths()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

func serveCommand(opts *cliOptions) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and the MCP endpoint",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint (default from config)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint (default from config)")
	cmd.RunE = withSession(opts, "serve", sessionOptions{autoSeed: true}, func(cmd *cobra.Command, _ []string, s *session) error {
		cfg := serveradapter.Config{
			HTTPBind:      firstNonEmpty(httpBind, s.cfg.Server.HTTPBind),
			APIEndpoint:   firstNonEmpty(apiEndpoint, s.cfg.Server.APIEndpoint),
			MCPEndpoint:   firstNonEmpty(mcpEndpoint, s.cfg.Server.MCPEndpoint),
			ServerName:    opts.appName,
			ServerVersion: version,
		}
		return serveCommandRunner(cmd.Context(), cfg, serveradapter.Dependencies{
			Tracker: servercommon.NewAppServiceAdapter(s.svc),
			Logger:  s.logger.RequestLogger(),
		})
	})
	return cmd
}

func seedCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo dataset into the configured store",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withSession(opts, "seed", sessionOptions{}, func(cmd *cobra.Command, _ []string, s *session) error {
		snap, err := seed.Demo()
		if err != nil {
			return err
		}
		if err := s.svc.ImportSnapshot(cmd.Context(), snap); err != nil {
			return fmt.Errorf("import demo dataset: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d projects, %d milestones, %d tasks\n",
			len(snap.Users), len(snap.Projects), len(snap.Milestones), len(snap.Tasks))
		return nil
	})
	return cmd
}

func statusCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <task-id> <user-id> <status>",
		Short: "Set one assignee's status on a task",
		Long: "Set one assignee's status on a task. The task status and the milestone and\n" +
			"project progress are re-derived. Status is one of: " + joinValues(domain.UserTaskStatuses()) + ".",
		Args: cobra.ExactArgs(3),
	}
	cmd.RunE = withSession(opts, "status", sessionOptions{autoSeed: true}, func(cmd *cobra.Command, args []string, s *session) error {
		ctx := cmd.Context()
		before, err := s.svc.GetTask(ctx, args[0])
		if err != nil {
			return err
		}
		task, err := s.svc.SetUserTaskStatus(ctx, args[0], args[1], domain.UserTaskStatus(args[2]))
		if err != nil {
			return err
		}
		summary := domain.SummarizeCompletions(task)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "task %s: %s -> %s (%d/%d assignees completed)\n",
			task.ID, before.Status, task.Status, summary.Completed, summary.Total)
		return nil
	})
	return cmd
}

func exportCommand(opts *cliOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of every entity",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.RunE = withSession(opts, "export", sessionOptions{autoSeed: true}, func(cmd *cobra.Command, _ []string, s *session) error {
		snap, err := s.svc.ExportSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("export snapshot: %w", err)
		}
		encoded, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("encode snapshot json: %w", err)
		}
		encoded = append(encoded, '\n')

		if outPath == "-" {
			if _, err := cmd.OutOrStdout().Write(encoded); err != nil {
				return fmt.Errorf("write snapshot to stdout: %w", err)
			}
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return fmt.Errorf("create export output dir: %w", err)
		}
		if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
			return fmt.Errorf("write export file: %w", err)
		}
		return nil
	})
	return cmd
}

func importCommand(opts *cliOptions) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a JSON snapshot, re-deriving statuses and progress",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	_ = cmd.MarkFlagRequired("in")
	cmd.RunE = withSession(opts, "import", sessionOptions{}, func(cmd *cobra.Command, _ []string, s *session) error {
		content, err := os.ReadFile(inPath)
		if err != nil {
			return fmt.Errorf("read import file: %w", err)
		}
		var snap app.Snapshot
		if err := json.Unmarshal(content, &snap); err != nil {
			return fmt.Errorf("decode snapshot json: %w", err)
		}
		if err := s.svc.ImportSnapshot(cmd.Context(), snap); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d tasks\n", len(snap.Tasks))
		return nil
	})
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func joinValues[T ~string](values []T) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return strings.Join(out, ", ")
}
