package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
	"github.com/spf13/cobra"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))

	statusColors = map[string]lipgloss.Color{
		string(domain.TaskCompleted):  lipgloss.Color("42"),
		string(domain.TaskInProgress): lipgloss.Color("214"),
		string(domain.TaskBlocked):    lipgloss.Color("203"),
		string(domain.UserPaused):     lipgloss.Color("203"),
	}
)

func reportCommand(opts *cliOptions) *cobra.Command {
	var (
		markdownStyle string
		width         int
	)
	cmd := &cobra.Command{
		Use:   "report [project-id]",
		Short: "Render project progress with milestones and tasks",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().StringVar(&markdownStyle, "style", "dark", "glamour style for project descriptions (dark, light, notty, ascii)")
	cmd.Flags().IntVar(&width, "width", 80, "wrap width for project descriptions")
	cmd.RunE = withSession(opts, "report", sessionOptions{autoSeed: true}, func(cmd *cobra.Command, args []string, s *session) error {
		ctx := cmd.Context()
		projectIDs, err := reportProjectIDs(ctx, s.svc, args)
		if err != nil {
			return err
		}
		md, err := newDescriptionRenderer(markdownStyle, width)
		if err != nil {
			return err
		}
		users, err := userNames(ctx, s.svc)
		if err != nil {
			return err
		}
		for i, id := range projectIDs {
			tree, err := s.svc.ProjectTree(ctx, id)
			if err != nil {
				return err
			}
			if i > 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout())
			}
			if err := renderProjectReport(cmd.OutOrStdout(), tree, users, md); err != nil {
				return err
			}
		}
		return nil
	})
	return cmd
}

func tasksCommand(opts *cliOptions) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the tasks assigned to one user with their own status",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&userID, "user", "", "assignee user id")
	_ = cmd.MarkFlagRequired("user")
	cmd.RunE = withSession(opts, "tasks", sessionOptions{autoSeed: true}, func(cmd *cobra.Command, _ []string, s *session) error {
		ctx := cmd.Context()
		user, err := s.svc.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		tasks, err := s.svc.TasksAssignedToUser(ctx, user.ID)
		if err != nil {
			return err
		}
		stats, err := s.svc.UserTaskStats(ctx, user.ID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, titleStyle.Render(user.Name)+" "+mutedStyle.Render("("+string(user.Role)+")"))
		rows := make([][]string, 0, len(tasks))
		for _, t := range tasks {
			own := domain.UserPending
			if c, ok := t.CompletionFor(user.ID); ok {
				own = c.Status
			}
			rows = append(rows, []string{t.ID, t.Title, string(t.Status), string(own), string(t.Priority), formatDate(t.EndDate)})
		}
		_, _ = fmt.Fprintln(out, renderTable([]string{"ID", "Task", "Status", "Mine", "Priority", "Due"}, rows, 2, 3))
		_, _ = fmt.Fprintf(out, "%d tasks: %d completed, %d in progress, %d pending\n",
			stats.Total, stats.ByStatus[domain.TaskCompleted], stats.ByStatus[domain.TaskInProgress], stats.ByStatus[domain.TaskPending])
		return nil
	})
	return cmd
}

func reportProjectIDs(ctx context.Context, svc *app.Service, args []string) ([]string, error) {
	if len(args) == 1 {
		return []string{args[0]}, nil
	}
	projects, err := svc.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func userNames(ctx context.Context, svc *app.Service) (map[string]string, error) {
	users, err := svc.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

// descriptionRenderer renders project descriptions as terminal markdown.
type descriptionRenderer struct {
	renderer *glamour.TermRenderer
}

func newDescriptionRenderer(style string, width int) (*descriptionRenderer, error) {
	if width < 24 {
		width = 24
	}
	style = strings.TrimSpace(style)
	if style == "" {
		style = "dark"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("configure markdown renderer: %w", err)
	}
	return &descriptionRenderer{renderer: renderer}, nil
}

func (r *descriptionRenderer) render(markdown string) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

func renderProjectReport(w io.Writer, tree app.ProjectTree, users map[string]string, md *descriptionRenderer) error {
	p := tree.Project
	var b strings.Builder
	b.WriteString(titleStyle.Render(p.Name))
	b.WriteString(" ")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("[%s] %s -> %s", p.Status, formatDate(p.StartDate), formatDate(p.EndDate))))
	b.WriteString("\n")
	b.WriteString(progressBar(p.Progress, 30))
	b.WriteString("\n")
	if desc := md.render(p.Description); desc != "" {
		b.WriteString(desc)
		b.WriteString("\n")
	}

	milestoneRows := make([][]string, 0, len(tree.Milestones))
	taskRows := make([][]string, 0)
	for _, mt := range tree.Milestones {
		m := mt.Milestone
		done := 0
		for _, t := range mt.Tasks {
			if t.Status == domain.TaskCompleted {
				done++
			}
			summary := domain.SummarizeCompletions(t)
			taskRows = append(taskRows, []string{
				m.Title,
				t.ID,
				t.Title,
				string(t.Status),
				fmt.Sprintf("%d/%d", summary.Completed, summary.Total),
				assigneeNames(t.AssignedTo, users),
			})
		}
		milestoneRows = append(milestoneRows, []string{
			m.Title,
			string(m.Status),
			strconv.Itoa(m.Progress) + "%",
			fmt.Sprintf("%d/%d", done, len(mt.Tasks)),
		})
	}
	b.WriteString(renderTable([]string{"Milestone", "Status", "Progress", "Tasks"}, milestoneRows, 1))
	b.WriteString("\n")
	b.WriteString(renderTable([]string{"Milestone", "ID", "Task", "Status", "Done", "Assignees"}, taskRows, 3))
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// renderTable draws rows with a styled header; statusCols are tinted by value.
func renderTable(headers []string, rows [][]string, statusCols ...int) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if slices.Contains(statusCols, col) && row >= 0 && row < len(rows) {
				if color, ok := statusColors[rows[row][col]]; ok {
					return cellStyle.Foreground(color)
				}
			}
			return cellStyle
		})
	return t.String()
}

func progressBar(percent, width int) string {
	percent = max(0, min(100, percent))
	filled := percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return borderStyle.Render(bar) + " " + strconv.Itoa(percent) + "%"
}

func assigneeNames(ids []string, users map[string]string) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := users[id]; ok {
			names = append(names, name)
			continue
		}
		names = append(names, id)
	}
	return strings.Join(names, ", ")
}

func formatDate(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Format(time.DateOnly)
}
