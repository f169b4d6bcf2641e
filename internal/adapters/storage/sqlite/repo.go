package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// dsnPragmas are applied by the driver on every new connection.
const dsnPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Repository represents repository data used by this package.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	return open(path + "?" + dsnPragmas)
}

// OpenInMemory opens a private in-process database. Every call gets its own
// shared-cache name so separate repositories never see each other's rows.
func OpenInMemory() (*Repository, error) {
	return open(fmt.Sprintf("file:tally-%s?mode=memory&cache=shared&%s", uuid.NewString(), dsnPragmas))
}

func open(dsn string) (*Repository, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps the in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			avatar TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			start_date TEXT,
			end_date TEXT,
			estimated_hours INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			created_by TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		// user_id is a weak reference; deleting a user leaves memberships in place.
		`CREATE TABLE IF NOT EXISTS project_members (
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			can_edit INTEGER NOT NULL DEFAULT 0,
			can_delete INTEGER NOT NULL DEFAULT 0,
			can_assign_tasks INTEGER NOT NULL DEFAULT 0,
			joined_at TEXT NOT NULL,
			PRIMARY KEY(project_id, user_id),
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS milestones (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			start_date TEXT,
			end_date TEXT,
			progress INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			position INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			milestone_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			assigned_to_json TEXT NOT NULL DEFAULT '[]',
			start_date TEXT,
			end_date TEXT,
			created_by TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE,
			FOREIGN KEY(milestone_id) REFERENCES milestones(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS task_completions (
			task_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			status TEXT NOT NULL,
			is_completed INTEGER NOT NULL DEFAULT 0,
			completed_at TEXT,
			PRIMARY KEY(task_id, user_id),
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_members_user ON project_members(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_milestones_project_position ON milestones(project_id, position);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_milestone_position ON tasks(milestone_id, position);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// CreateUser creates user.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(id, name, email, avatar, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.Avatar, string(u.Role), ts(u.CreatedAt))
	return err
}

// UpdateUser updates state for the requested operation.
func (r *Repository) UpdateUser(ctx context.Context, u domain.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, avatar = ?, role = ?
		WHERE id = ?
	`, u.Name, u.Email, u.Avatar, string(u.Role), u.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetUser returns user.
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, avatar, role, created_at FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

// ListUsers lists users.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, avatar, role, created_at FROM users ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteUser deletes user.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CreateProject creates project.
func (r *Repository) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects(id, name, description, start_date, end_date, estimated_hours, status, progress, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Description, nullableDate(p.StartDate), nullableDate(p.EndDate), p.EstimatedHours, string(p.Status), p.Progress, p.CreatedBy, ts(p.CreatedAt), ts(p.UpdatedAt))
	return err
}

// UpdateProject updates state for the requested operation.
func (r *Repository) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, description = ?, start_date = ?, end_date = ?, estimated_hours = ?, status = ?, progress = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.Description, nullableDate(p.StartDate), nullableDate(p.EndDate), p.EstimatedHours, string(p.Status), p.Progress, ts(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetProject returns project.
func (r *Repository) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, start_date, end_date, estimated_hours, status, progress, created_by, created_at, updated_at
		FROM projects WHERE id = ?
	`, id)
	return scanProject(row)
}

// ListProjects lists projects.
func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, start_date, end_date, estimated_hours, status, progress, created_by, created_at, updated_at
		FROM projects ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertProjectMember upserts project member.
func (r *Repository) UpsertProjectMember(ctx context.Context, m domain.ProjectMember) error {
	return upsertMember(ctx, r.db, m)
}

// DeleteProjectMember deletes project member.
func (r *Repository) DeleteProjectMember(ctx context.Context, projectID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ListProjectMembers lists project members.
func (r *Repository) ListProjectMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	return r.listMembers(ctx, `project_id = ?`, projectID)
}

// ListUserMemberships lists user memberships.
func (r *Repository) ListUserMemberships(ctx context.Context, userID string) ([]domain.ProjectMember, error) {
	return r.listMembers(ctx, `user_id = ?`, userID)
}

func (r *Repository) listMembers(ctx context.Context, where string, arg string) ([]domain.ProjectMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT project_id, user_id, role, can_edit, can_delete, can_assign_tasks, joined_at
		FROM project_members WHERE `+where+` ORDER BY rowid ASC
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.ProjectMember{}
	for rows.Next() {
		var (
			m         domain.ProjectMember
			role      string
			joinedRaw string
		)
		if err := rows.Scan(&m.ProjectID, &m.UserID, &role, &m.CanEdit, &m.CanDelete, &m.CanAssignTasks, &joinedRaw); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		m.JoinedAt = parseTS(joinedRaw)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateMilestone creates milestone.
func (r *Repository) CreateMilestone(ctx context.Context, m domain.Milestone) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO milestones(id, project_id, title, description, start_date, end_date, progress, status, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ProjectID, m.Title, m.Description, nullableDate(m.StartDate), nullableDate(m.EndDate), m.Progress, string(m.Status), m.Position, ts(m.CreatedAt))
	return err
}

// UpdateMilestone updates state for the requested operation.
func (r *Repository) UpdateMilestone(ctx context.Context, m domain.Milestone) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE milestones
		SET title = ?, description = ?, start_date = ?, end_date = ?, progress = ?, status = ?, position = ?
		WHERE id = ?
	`, m.Title, m.Description, nullableDate(m.StartDate), nullableDate(m.EndDate), m.Progress, string(m.Status), m.Position, m.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetMilestone returns milestone.
func (r *Repository) GetMilestone(ctx context.Context, id string) (domain.Milestone, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, description, start_date, end_date, progress, status, position, created_at
		FROM milestones WHERE id = ?
	`, id)
	return scanMilestone(row)
}

// ListMilestones lists milestones by position.
func (r *Repository) ListMilestones(ctx context.Context, projectID string) ([]domain.Milestone, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, title, description, start_date, end_date, progress, status, position, created_at
		FROM milestones WHERE project_id = ? ORDER BY position ASC, rowid ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetTask returns task.
func (r *Repository) GetTask(ctx context.Context, id string) (domain.Task, error) {
	tasks, err := listTasks(ctx, r.db, `id = ?`, `rowid ASC`, id)
	if err != nil {
		return domain.Task{}, err
	}
	if len(tasks) == 0 {
		return domain.Task{}, app.ErrNotFound
	}
	return tasks[0], nil
}

// ListTasks lists tasks of one milestone by position.
func (r *Repository) ListTasks(ctx context.Context, milestoneID string) ([]domain.Task, error) {
	return listTasks(ctx, r.db, `milestone_id = ?`, `position ASC, rowid ASC`, milestoneID)
}

// ListProjectTasks lists every task of a project in insertion order.
func (r *Repository) ListProjectTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	return listTasks(ctx, r.db, `project_id = ?`, `rowid ASC`, projectID)
}

// CommitTaskChange applies a task write and its rollup in one transaction.
func (r *Repository) CommitTaskChange(ctx context.Context, change app.TaskChange) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if change.Task != nil {
		if err = upsertTask(ctx, tx, *change.Task); err != nil {
			return err
		}
	}
	if change.DeleteTaskID != "" {
		if _, err = tx.ExecContext(ctx, `DELETE FROM task_completions WHERE task_id = ?`, change.DeleteTaskID); err != nil {
			return err
		}
		var res sql.Result
		if res, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, change.DeleteTaskID); err != nil {
			return err
		}
		if err = translateNoRows(res); err != nil {
			return err
		}
	}
	var res sql.Result
	if res, err = tx.ExecContext(ctx, `UPDATE milestones SET progress = ? WHERE id = ?`, change.MilestoneProgress, change.MilestoneID); err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	if res, err = tx.ExecContext(ctx, `UPDATE projects SET progress = ? WHERE id = ?`, change.ProjectProgress, change.ProjectID); err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// ImportBatch upserts every row of batch in one transaction.
func (r *Repository) ImportBatch(ctx context.Context, batch app.ImportBatch) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, u := range batch.Users {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO users(id, name, email, avatar, role, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, email = excluded.email, avatar = excluded.avatar,
				role = excluded.role, created_at = excluded.created_at
		`, u.ID, u.Name, u.Email, u.Avatar, string(u.Role), ts(u.CreatedAt)); err != nil {
			return fmt.Errorf("import user %q: %w", u.ID, err)
		}
	}
	for _, p := range batch.Projects {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO projects(id, name, description, start_date, end_date, estimated_hours, status, progress, created_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, description = excluded.description,
				start_date = excluded.start_date, end_date = excluded.end_date,
				estimated_hours = excluded.estimated_hours, status = excluded.status,
				progress = excluded.progress, created_by = excluded.created_by,
				created_at = excluded.created_at, updated_at = excluded.updated_at
		`, p.ID, p.Name, p.Description, nullableDate(p.StartDate), nullableDate(p.EndDate), p.EstimatedHours, string(p.Status), p.Progress, p.CreatedBy, ts(p.CreatedAt), ts(p.UpdatedAt)); err != nil {
			return fmt.Errorf("import project %q: %w", p.ID, err)
		}
	}
	for _, m := range batch.Members {
		if err = upsertMember(ctx, tx, m); err != nil {
			return fmt.Errorf("import member %q/%q: %w", m.ProjectID, m.UserID, err)
		}
	}
	for _, m := range batch.Milestones {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO milestones(id, project_id, title, description, start_date, end_date, progress, status, position, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				project_id = excluded.project_id, title = excluded.title, description = excluded.description,
				start_date = excluded.start_date, end_date = excluded.end_date, progress = excluded.progress,
				status = excluded.status, position = excluded.position, created_at = excluded.created_at
		`, m.ID, m.ProjectID, m.Title, m.Description, nullableDate(m.StartDate), nullableDate(m.EndDate), m.Progress, string(m.Status), m.Position, ts(m.CreatedAt)); err != nil {
			return fmt.Errorf("import milestone %q: %w", m.ID, err)
		}
	}
	for _, t := range batch.Tasks {
		if err = upsertTask(ctx, tx, t); err != nil {
			return fmt.Errorf("import task %q: %w", t.ID, err)
		}
	}
	err = tx.Commit()
	return err
}

func upsertMember(ctx context.Context, q queryer, m domain.ProjectMember) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO project_members(project_id, user_id, role, can_edit, can_delete, can_assign_tasks, joined_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, user_id) DO UPDATE SET
			role = excluded.role, can_edit = excluded.can_edit, can_delete = excluded.can_delete,
			can_assign_tasks = excluded.can_assign_tasks, joined_at = excluded.joined_at
	`, m.ProjectID, m.UserID, string(m.Role), m.CanEdit, m.CanDelete, m.CanAssignTasks, ts(m.JoinedAt))
	return err
}

// upsertTask writes the task row and replaces its completion rows.
func upsertTask(ctx context.Context, q queryer, t domain.Task) error {
	assignedJSON, err := json.Marshal(nonNilStrings(t.AssignedTo))
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO tasks(id, project_id, milestone_id, position, title, description, status, priority, assigned_to_json, start_date, end_date, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id, milestone_id = excluded.milestone_id, position = excluded.position,
			title = excluded.title, description = excluded.description, status = excluded.status,
			priority = excluded.priority, assigned_to_json = excluded.assigned_to_json,
			start_date = excluded.start_date, end_date = excluded.end_date, created_by = excluded.created_by,
			created_at = excluded.created_at, updated_at = excluded.updated_at
	`,
		t.ID,
		t.ProjectID,
		t.MilestoneID,
		t.Position,
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		string(assignedJSON),
		nullableDate(t.StartDate),
		nullableDate(t.EndDate),
		t.CreatedBy,
		ts(t.CreatedAt),
		ts(t.UpdatedAt),
	); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM task_completions WHERE task_id = ?`, t.ID); err != nil {
		return err
	}
	for i, c := range t.Completions {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO task_completions(task_id, user_id, ordinal, status, is_completed, completed_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, t.ID, c.UserID, i, string(c.Status), c.IsCompleted, nullableTS(c.CompletedAt)); err != nil {
			return err
		}
	}
	return nil
}

// listTasks loads task rows and then their completions. Rows are fully drained
// before the second query so a single connection is enough.
func listTasks(ctx context.Context, q queryer, where, orderBy string, args ...any) ([]domain.Task, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, project_id, milestone_id, position, title, description, status, priority, assigned_to_json, start_date, end_date, created_by, created_at, updated_at
		FROM tasks WHERE `+where+` ORDER BY `+orderBy, args...)
	if err != nil {
		return nil, err
	}
	out := []domain.Task{}
	byID := map[string]int{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		byID[t.ID] = len(out)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	crows, err := q.QueryContext(ctx, `
		SELECT task_id, user_id, status, is_completed, completed_at
		FROM task_completions
		WHERE task_id IN (SELECT id FROM tasks WHERE `+where+`)
		ORDER BY task_id ASC, ordinal ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var (
			taskID       string
			c            domain.Completion
			status       string
			completedRaw sql.NullString
		)
		if err := crows.Scan(&taskID, &c.UserID, &status, &c.IsCompleted, &completedRaw); err != nil {
			return nil, err
		}
		c.Status = domain.UserTaskStatus(status)
		c.CompletedAt = parseNullTS(completedRaw)
		idx, ok := byID[taskID]
		if !ok {
			continue
		}
		out[idx].Completions = append(out[idx].Completions, c)
	}
	return out, crows.Err()
}

func scanUser(s scanner) (domain.User, error) {
	var (
		u          domain.User
		role       string
		createdRaw string
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Avatar, &role, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, app.ErrNotFound
		}
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.CreatedAt = parseTS(createdRaw)
	return u, nil
}

func scanProject(s scanner) (domain.Project, error) {
	var (
		p          domain.Project
		startRaw   sql.NullString
		endRaw     sql.NullString
		status     string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &startRaw, &endRaw, &p.EstimatedHours, &status, &p.Progress, &p.CreatedBy, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Project{}, app.ErrNotFound
		}
		return domain.Project{}, err
	}
	p.StartDate = parseDate(startRaw)
	p.EndDate = parseDate(endRaw)
	p.Status = domain.ProjectStatus(status)
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updatedRaw)
	return p, nil
}

func scanMilestone(s scanner) (domain.Milestone, error) {
	var (
		m          domain.Milestone
		startRaw   sql.NullString
		endRaw     sql.NullString
		status     string
		createdRaw string
	)
	if err := s.Scan(&m.ID, &m.ProjectID, &m.Title, &m.Description, &startRaw, &endRaw, &m.Progress, &status, &m.Position, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Milestone{}, app.ErrNotFound
		}
		return domain.Milestone{}, err
	}
	m.StartDate = parseDate(startRaw)
	m.EndDate = parseDate(endRaw)
	m.Status = domain.MilestoneStatus(status)
	m.CreatedAt = parseTS(createdRaw)
	return m, nil
}

func scanTask(s scanner) (domain.Task, error) {
	var (
		t           domain.Task
		status      string
		priority    string
		assignedRaw string
		startRaw    sql.NullString
		endRaw      sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := s.Scan(
		&t.ID,
		&t.ProjectID,
		&t.MilestoneID,
		&t.Position,
		&t.Title,
		&t.Description,
		&status,
		&priority,
		&assignedRaw,
		&startRaw,
		&endRaw,
		&t.CreatedBy,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, err
	}
	t.Status = domain.TaskStatus(status)
	t.Priority = domain.Priority(priority)
	t.StartDate = parseDate(startRaw)
	t.EndDate = parseDate(endRaw)
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	if strings.TrimSpace(assignedRaw) == "" {
		assignedRaw = "[]"
	}
	if err := json.Unmarshal([]byte(assignedRaw), &t.AssignedTo); err != nil {
		return domain.Task{}, fmt.Errorf("decode assigned_to_json: %w", err)
	}
	return t, nil
}

func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return ts(t)
}

func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

func parseDate(v sql.NullString) time.Time {
	if ts := parseNullTS(v); ts != nil {
		return *ts
	}
	return time.Time{}
}
