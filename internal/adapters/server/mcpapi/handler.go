// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/evanschultz/tally/internal/adapters/server/common"
	"github.com/evanschultz/tally/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the tracker tools.
func NewHandler(cfg Config, tracker common.TrackerService) (*Handler, error) {
	if tracker == nil {
		return nil, fmt.Errorf("tracker service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerStatusTools(mcpSrv, tracker)
	registerTaskTools(mcpSrv, tracker)
	registerQueryTools(mcpSrv, tracker)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "tally"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// newTool builds one tool that also accepts the caller identity arguments.
func newTool(name string, opts ...mcp.ToolOption) mcp.Tool {
	opts = append(opts,
		mcp.WithString("actor_id", mcp.Description("Caller user identifier")),
		mcp.WithString("actor_role", mcp.Description("Caller role"), mcp.Enum(roleNames()...)),
	)
	return mcp.NewTool(name, opts...)
}

// actorFromRequest resolves the caller from tool arguments.
func actorFromRequest(req mcp.CallToolRequest) common.Actor {
	return common.Actor{
		ID:   strings.TrimSpace(req.GetString("actor_id", "")),
		Role: strings.TrimSpace(req.GetString("actor_role", "")),
	}
}

// registerStatusTools registers per-assignee status and completion tools.
func registerStatusTools(srv *mcpserver.MCPServer, tracker common.TrackerService) {
	srv.AddTool(
		newTool(
			"tally.set_user_task_status",
			mcp.WithDescription("Set one assignee's own status on a task and return the task with its derived status."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("Assignee identifier")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Assignee status"), mcp.Enum(userStatusNames()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			userID, err := req.RequireString("user_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := tracker.SetUserTaskStatus(ctx, actorFromRequest(req), common.SetUserTaskStatusRequest{
				TaskID: taskID,
				UserID: userID,
				Status: status,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("set_user_task_status", task)
		},
	)

	srv.AddTool(
		newTool(
			"tally.set_user_task_completion",
			mcp.WithDescription("Mark one assignee's part of a task completed or reopen it."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("Assignee identifier")),
			mcp.WithBoolean("completed", mcp.Required(), mcp.Description("Whether the assignee finished their part")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			userID, err := req.RequireString("user_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			completed, err := req.RequireBool("completed")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := tracker.SetUserTaskCompletion(ctx, actorFromRequest(req), common.SetUserTaskCompletionRequest{
				TaskID:    taskID,
				UserID:    userID,
				Completed: completed,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("set_user_task_completion", task)
		},
	)
}

// registerTaskTools registers task create/update/delete/get tools.
func registerTaskTools(srv *mcpserver.MCPServer, tracker common.TrackerService) {
	srv.AddTool(
		newTool(
			"tally.create_task",
			mcp.WithDescription("Create a task inside a milestone."),
			mcp.WithString("milestone_id", mcp.Required(), mcp.Description("Milestone identifier")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
			mcp.WithString("description", mcp.Required(), mcp.Description("Task description")),
			mcp.WithString("status", mcp.Description("Stored status for a task with no assignees; assigned tasks start pending"), mcp.Enum(taskStatusNames()...)),
			mcp.WithString("priority", mcp.Description("Priority"), mcp.Enum(priorityNames()...)),
			mcp.WithArray("assigned_to", mcp.Description("Assignee user ids"), mcp.WithStringItems()),
			mcp.WithString("start_date", mcp.Description("Start date (YYYY-MM-DD or RFC3339)")),
			mcp.WithString("end_date", mcp.Description("End date (YYYY-MM-DD or RFC3339)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			milestoneID, err := req.RequireString("milestone_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			description, err := req.RequireString("description")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := tracker.CreateTask(ctx, actorFromRequest(req), common.CreateTaskRequest{
				MilestoneID: milestoneID,
				Title:       title,
				Description: description,
				Status:      req.GetString("status", ""),
				Priority:    req.GetString("priority", ""),
				AssignedTo:  req.GetStringSlice("assigned_to", nil),
				StartDate:   req.GetString("start_date", ""),
				EndDate:     req.GetString("end_date", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_task", task)
		},
	)

	srv.AddTool(
		newTool(
			"tally.update_task",
			mcp.WithDescription("Patch a task. Omitted fields are unchanged; a status that differs from the current one is applied to every assignee."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("title", mcp.Description("Task title")),
			mcp.WithString("description", mcp.Description("Task description")),
			mcp.WithString("status", mcp.Description("Status applied to every assignee when it changes"), mcp.Enum(taskStatusNames()...)),
			mcp.WithString("priority", mcp.Description("Priority"), mcp.Enum(priorityNames()...)),
			mcp.WithArray("assigned_to", mcp.Description("Replacement assignee list"), mcp.WithStringItems()),
			mcp.WithString("start_date", mcp.Description("Start date (YYYY-MM-DD or RFC3339)")),
			mcp.WithString("end_date", mcp.Description("End date (YYYY-MM-DD or RFC3339)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			args := req.GetArguments()
			update := common.UpdateTaskRequest{
				TaskID:      taskID,
				Title:       optionalString(req, args, "title"),
				Description: optionalString(req, args, "description"),
				Status:      optionalString(req, args, "status"),
				Priority:    optionalString(req, args, "priority"),
				StartDate:   optionalString(req, args, "start_date"),
				EndDate:     optionalString(req, args, "end_date"),
			}
			if _, ok := args["assigned_to"]; ok {
				assignees := req.GetStringSlice("assigned_to", []string{})
				update.AssignedTo = &assignees
			}
			task, err := tracker.UpdateTask(ctx, actorFromRequest(req), update)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_task", task)
		},
	)

	srv.AddTool(
		newTool(
			"tally.delete_task",
			mcp.WithDescription("Delete a task and recompute milestone and project progress."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := tracker.DeleteTask(ctx, actorFromRequest(req), taskID); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_task", map[string]any{"deleted": taskID})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tally.get_task",
			mcp.WithDescription("Return one task with its per-assignee completion summary."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := tracker.GetTask(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			summary, err := tracker.TaskCompletionSummary(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_task", map[string]any{
				"task":    task,
				"summary": summary,
			})
		},
	)
}

// registerQueryTools registers user and project read tools.
func registerQueryTools(srv *mcpserver.MCPServer, tracker common.TrackerService) {
	srv.AddTool(
		mcp.NewTool(
			"tally.list_user_tasks",
			mcp.WithDescription("List every task assigned to one user."),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("User identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			userID, err := req.RequireString("user_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			tasks, err := tracker.TasksAssignedToUser(ctx, userID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_user_tasks", map[string]any{"tasks": tasks})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tally.list_user_projects",
			mcp.WithDescription("List projects one user is a member of."),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("User identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			userID, err := req.RequireString("user_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			projects, err := tracker.ProjectsForUser(ctx, userID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_user_projects", map[string]any{"projects": projects})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tally.project_tree",
			mcp.WithDescription("Return a project with members, ordered milestones, and their tasks."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			tree, err := tracker.ProjectTree(ctx, projectID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("project_tree", tree)
		},
	)
}

// optionalString returns a pointer when key is present in the raw arguments.
func optionalString(req mcp.CallToolRequest, args map[string]any, key string) *string {
	if _, ok := args[key]; !ok {
		return nil
	}
	value := req.GetString(key, "")
	return &value
}

// jsonResult encodes one structured tool result.
func jsonResult(operation string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", operation, err)
	}
	return result, nil
}

// toolResultFromError maps adapter errors into prefixed tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrForbidden):
		return mcp.NewToolResultError("forbidden: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

func roleNames() []string {
	return stringsOf(domain.Roles())
}

func userStatusNames() []string {
	return stringsOf(domain.UserTaskStatuses())
}

func taskStatusNames() []string {
	return stringsOf(domain.TaskStatuses())
}

func priorityNames() []string {
	return stringsOf(domain.Priorities())
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}
