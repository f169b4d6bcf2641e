package domain

// DeriveTaskStatus computes the aggregate task status from per-assignee records.
// Rules are evaluated in order and the first match wins:
//
//	every record completed  -> completed
//	every record paused     -> blocked
//	any record in-progress  -> in-progress
//	otherwise               -> pending
//
// An empty slice derives to pending.
func DeriveTaskStatus(completions []Completion) TaskStatus {
	if len(completions) == 0 {
		return TaskPending
	}
	allCompleted, allPaused, anyInProgress := true, true, false
	for _, c := range completions {
		if c.Status != UserCompleted {
			allCompleted = false
		}
		if c.Status != UserPaused {
			allPaused = false
		}
		if c.Status == UserInProgress {
			anyInProgress = true
		}
	}
	switch {
	case allCompleted:
		return TaskCompleted
	case allPaused:
		return TaskBlocked
	case anyInProgress:
		return TaskInProgress
	default:
		return TaskPending
	}
}

// Progress returns round(100*completed/total) with halves rounded up, or 0 when
// total is 0. The result is clamped to [0, 100].
func Progress(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return (200*completed + total) / (2 * total)
}

// TasksProgress is the completed share of tasks as a percentage.
func TasksProgress(tasks []Task) int {
	completed := 0
	for _, t := range tasks {
		if t.Status == TaskCompleted {
			completed++
		}
	}
	return Progress(completed, len(tasks))
}

// CompletionSummary counts assignee states on one task.
type CompletionSummary struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`
	Paused     int `json:"paused"`
	Pending    int `json:"pending"`
	Percent    int `json:"percent"`
}

// SummarizeCompletions counts per-assignee states. Tasks with assignees but no
// records yet count every assignee as pending.
func SummarizeCompletions(t Task) CompletionSummary {
	var out CompletionSummary
	if t.Completions == nil {
		out.Total = len(t.AssignedTo)
		out.Pending = out.Total
		return out
	}
	for _, c := range t.Completions {
		out.Total++
		switch c.Status {
		case UserCompleted:
			out.Completed++
		case UserInProgress:
			out.InProgress++
		case UserPaused:
			out.Paused++
		default:
			out.Pending++
		}
	}
	out.Percent = Progress(out.Completed, out.Total)
	return out
}
