package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/evanschultz/tally/internal/adapters/server/common"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// stubTracker overrides the tracker methods exercised by MCP tool tests.
type stubTracker struct {
	common.TrackerService
	task        domain.Task
	tree        app.ProjectTree
	err         error
	lastActor   common.Actor
	lastStatus  common.SetUserTaskStatusRequest
	lastCreate  common.CreateTaskRequest
	lastUpdate  common.UpdateTaskRequest
	lastProject string
}

// SetUserTaskStatus records the request and returns the configured task.
func (s *stubTracker) SetUserTaskStatus(_ context.Context, actor common.Actor, req common.SetUserTaskStatusRequest) (domain.Task, error) {
	s.lastActor = actor
	s.lastStatus = req
	if s.err != nil {
		return domain.Task{}, s.err
	}
	return s.task, nil
}

// CreateTask records the request and returns the configured task.
func (s *stubTracker) CreateTask(_ context.Context, actor common.Actor, req common.CreateTaskRequest) (domain.Task, error) {
	s.lastActor = actor
	s.lastCreate = req
	if s.err != nil {
		return domain.Task{}, s.err
	}
	return s.task, nil
}

// UpdateTask records the request and returns the configured task.
func (s *stubTracker) UpdateTask(_ context.Context, actor common.Actor, req common.UpdateTaskRequest) (domain.Task, error) {
	s.lastActor = actor
	s.lastUpdate = req
	if s.err != nil {
		return domain.Task{}, s.err
	}
	return s.task, nil
}

// ProjectTree records the requested project and returns the configured tree.
func (s *stubTracker) ProjectTree(_ context.Context, projectID string) (app.ProjectTree, error) {
	s.lastProject = projectID
	if s.err != nil {
		return app.ProjectTree{}, s.err
	}
	return s.tree, nil
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC request and decodes the response.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "tally-test",
				"version": "1.0.0",
			},
		},
	}
}

// callToolResultText decodes the first textual content block from a CallToolResult.
func callToolResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatalf("result = nil, want non-nil")
	}
	if len(result.Content) == 0 {
		t.Fatalf("result content is empty")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] has unexpected type %T", result.Content[0])
	}
	return text.Text
}

// newTestServer starts one MCP handler over the stub tracker and initializes it.
func newTestServer(t *testing.T, tracker common.TrackerService) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, tracker)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubTracker{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersTrackerTools verifies the full tool list is exposed.
func TestHandlerRegistersTrackerTools(t *testing.T) {
	server := newTestServer(t, &stubTracker{})
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, want := range []string{
		"tally.set_user_task_status",
		"tally.set_user_task_completion",
		"tally.create_task",
		"tally.update_task",
		"tally.delete_task",
		"tally.get_task",
		"tally.list_user_tasks",
		"tally.list_user_projects",
		"tally.project_tree",
	} {
		if !slices.Contains(toolNames, want) {
			t.Fatalf("tool list missing %s: %#v", want, toolNames)
		}
	}
}

// TestHandlerSetUserTaskStatusToolCall verifies argument and actor mapping.
func TestHandlerSetUserTaskStatusToolCall(t *testing.T) {
	tracker := &stubTracker{task: domain.Task{ID: "t3", Status: domain.TaskCompleted}}
	server := newTestServer(t, tracker)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tally.set_user_task_status", map[string]any{
		"task_id":    "t3",
		"user_id":    "u4",
		"status":     "completed",
		"actor_id":   "u4",
		"actor_role": "developer",
	}))
	structured := toolResultStructured(t, callResp.Result)
	if structured["status"] != "completed" {
		t.Fatalf("status = %#v, want completed", structured["status"])
	}
	if tracker.lastStatus != (common.SetUserTaskStatusRequest{TaskID: "t3", UserID: "u4", Status: "completed"}) {
		t.Fatalf("unexpected request %#v", tracker.lastStatus)
	}
	if tracker.lastActor != (common.Actor{ID: "u4", Role: "developer"}) {
		t.Fatalf("unexpected actor %#v", tracker.lastActor)
	}
}

// TestHandlerCreateTaskToolCall verifies array arguments reach the service.
func TestHandlerCreateTaskToolCall(t *testing.T) {
	tracker := &stubTracker{task: domain.Task{ID: "t11"}}
	server := newTestServer(t, tracker)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tally.create_task", map[string]any{
		"milestone_id": "m2",
		"title":        "Pasarela de pago",
		"description":  "Integrar Stripe",
		"assigned_to":  []string{"u3", "u4"},
		"priority":     "high",
		"actor_id":     "u2",
		"actor_role":   "project-manager",
	}))
	if structured := toolResultStructured(t, callResp.Result); structured["id"] != "t11" {
		t.Fatalf("id = %#v, want t11", structured["id"])
	}
	if !slices.Equal(tracker.lastCreate.AssignedTo, []string{"u3", "u4"}) {
		t.Fatalf("assigned_to = %#v", tracker.lastCreate.AssignedTo)
	}
	if tracker.lastCreate.Priority != "high" || tracker.lastCreate.MilestoneID != "m2" {
		t.Fatalf("unexpected create request %#v", tracker.lastCreate)
	}
}

// TestHandlerUpdateTaskToolCallPresence verifies omitted fields stay nil and explicit ones are set.
func TestHandlerUpdateTaskToolCallPresence(t *testing.T) {
	tracker := &stubTracker{task: domain.Task{ID: "t1"}}
	server := newTestServer(t, tracker)

	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tally.update_task", map[string]any{
		"task_id":     "t1",
		"title":       "Nuevo",
		"assigned_to": []string{},
	}))
	if tracker.lastUpdate.Title == nil || *tracker.lastUpdate.Title != "Nuevo" {
		t.Fatalf("title = %#v, want Nuevo", tracker.lastUpdate.Title)
	}
	if tracker.lastUpdate.Description != nil || tracker.lastUpdate.Status != nil {
		t.Fatalf("expected omitted fields to stay nil, got %#v", tracker.lastUpdate)
	}
	if tracker.lastUpdate.AssignedTo == nil || len(*tracker.lastUpdate.AssignedTo) != 0 {
		t.Fatalf("expected explicit empty assignee list, got %#v", tracker.lastUpdate.AssignedTo)
	}
}

// TestHandlerProjectTreeToolErrors verifies service errors surface as prefixed tool errors.
func TestHandlerProjectTreeToolErrors(t *testing.T) {
	tracker := &stubTracker{err: errors.Join(common.ErrNotFound, errors.New("project p9"))}
	server := newTestServer(t, tracker)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tally.project_tree", map[string]any{
		"project_id": "p9",
	}))
	if isError, _ := callResp.Result["isError"].(bool); !isError {
		t.Fatalf("expected isError result, got %#v", callResp.Result)
	}
	if text := toolResultText(t, callResp.Result); !strings.HasPrefix(text, "not_found:") {
		t.Fatalf("text = %q, want not_found prefix", text)
	}
	if tracker.lastProject != "p9" {
		t.Fatalf("project_id = %q, want p9", tracker.lastProject)
	}
}

// TestNewHandlerRequiresTracker verifies constructor validation.
func TestNewHandlerRequiresTracker(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("expected error for nil tracker")
	}
}

// TestNormalizeConfig verifies deterministic defaults.
func TestNormalizeConfig(t *testing.T) {
	cases := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "defaults",
			in:   Config{},
			want: Config{ServerName: "tally", ServerVersion: "dev", EndpointPath: "/mcp"},
		},
		{
			name: "trims and prefixes",
			in:   Config{ServerName: " t ", ServerVersion: " 1.0 ", EndpointPath: "tools/mcp/"},
			want: Config{ServerName: "t", ServerVersion: "1.0", EndpointPath: "/tools/mcp"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeConfig(tc.in); got != tc.want {
				t.Fatalf("normalizeConfig() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

// TestHandlerServeHTTPUnavailable verifies nil handler guards.
func TestHandlerServeHTTPUnavailable(t *testing.T) {
	cases := []struct {
		name    string
		handler *Handler
	}{
		{name: "nil receiver", handler: nil},
		{name: "missing inner http handler", handler: &Handler{}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(`{}`))
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
			}
			if !strings.Contains(rec.Body.String(), "mcp handler unavailable") {
				t.Fatalf("body = %q, want mcp handler unavailable", rec.Body.String())
			}
		})
	}
}

// TestToolResultFromErrorMapping verifies deterministic error-to-tool-result mapping.
func TestToolResultFromErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantPrefix string
	}{
		{name: "nil error", err: nil, wantPrefix: "unknown error"},
		{name: "invalid", err: errors.Join(common.ErrInvalidRequest, errors.New("bad status")), wantPrefix: "invalid_request:"},
		{name: "not found", err: errors.Join(common.ErrNotFound, errors.New("task")), wantPrefix: "not_found:"},
		{name: "forbidden", err: common.ErrForbidden, wantPrefix: "forbidden:"},
		{name: "conflict", err: common.ErrConflict, wantPrefix: "conflict:"},
		{name: "other", err: errors.New("boom"), wantPrefix: "internal_error:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := toolResultFromError(tc.err)
			if !result.IsError {
				t.Fatalf("IsError = false, want true")
			}
			if text := callToolResultText(t, result); !strings.HasPrefix(text, tc.wantPrefix) {
				t.Fatalf("text = %q, want prefix %q", text, tc.wantPrefix)
			}
		})
	}
}
