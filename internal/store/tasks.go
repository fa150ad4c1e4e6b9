package store

import (
	"database/sql"
	"fmt"
	"time"

	"redraft/internal/core"
)

const taskColumns = `
	id, task_id, article_id, type, status, progress, current_step, error,
	created_at, started_at, completed_at`

func scanTask(row interface{ Scan(...any) error }) (*core.Task, error) {
	var t core.Task
	var status string
	var started, completed sql.NullTime

	err := row.Scan(
		&t.ID, &t.TaskID, &t.ArticleID, &t.Type, &status, &t.Progress,
		&t.CurrentStep, &t.Error, &t.CreatedAt, &started, &completed,
	)
	if err != nil {
		return nil, err
	}
	t.Status = core.TaskStatus(status)
	if started.Valid {
		t.StartedAt = &started.Time
	}
	if completed.Valid {
		t.CompletedAt = &completed.Time
	}
	return &t, nil
}

// CreateTask inserts a pending task for an article.
func (s *Store) CreateTask(taskID string, articleID int64, taskType string) (*core.Task, error) {
	if taskID == "" {
		return nil, core.E(core.KindValidation, "task_id is required")
	}
	now := time.Now().UTC()
	res, err := s.db.Exec(`
	INSERT INTO tasks (task_id, article_id, type, status, progress, current_step, error, created_at)
	VALUES (?, ?, ?, ?, 0, '', '', ?)`,
		taskID, articleID, taskType, string(core.TaskPending), now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.Ef(core.KindDuplicateKey, "task_id %q already exists", taskID)
		}
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &core.Task{
		ID:        id,
		TaskID:    taskID,
		ArticleID: articleID,
		Type:      taskType,
		Status:    core.TaskPending,
		CreatedAt: now,
	}, nil
}

// GetTask loads one task by its external task_id.
func (s *Store) GetTask(taskID string) (*core.Task, error) {
	row := s.db.QueryRow("SELECT"+taskColumns+" FROM tasks WHERE task_id = ?", taskID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, core.Ef(core.KindNotFound, "task %q not found", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return t, nil
}

// SetTaskStatus moves a task to a new status, recording started/completed
// timestamps and the failure reason when given.
func (s *Store) SetTaskStatus(taskID string, status core.TaskStatus, errMsg string) error {
	now := time.Now().UTC()
	var res sql.Result
	var err error
	switch status {
	case core.TaskRunning:
		res, err = s.db.Exec(
			"UPDATE tasks SET status = ?, started_at = ? WHERE task_id = ?",
			string(status), now, taskID)
	case core.TaskCompleted, core.TaskFailed, core.TaskCancelled:
		res, err = s.db.Exec(
			"UPDATE tasks SET status = ?, error = ?, completed_at = ? WHERE task_id = ?",
			string(status), errMsg, now, taskID)
	default:
		res, err = s.db.Exec(
			"UPDATE tasks SET status = ?, error = ? WHERE task_id = ?",
			string(status), errMsg, taskID)
	}
	if err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.Ef(core.KindNotFound, "task %q not found", taskID)
	}
	return nil
}

// SetTaskProgress records progress and the current step. Progress never moves
// backwards; a smaller value than the stored one is ignored.
func (s *Store) SetTaskProgress(taskID string, progress float64, currentStep string) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	res, err := s.db.Exec(`
	UPDATE tasks SET progress = MAX(progress, ?), current_step = ?
	WHERE task_id = ?`, progress, currentStep, taskID)
	if err != nil {
		return fmt.Errorf("set task progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.Ef(core.KindNotFound, "task %q not found", taskID)
	}
	return nil
}

// ListActiveTasks returns pending and running tasks oldest first.
func (s *Store) ListActiveTasks() ([]core.Task, error) {
	rows, err := s.db.Query("SELECT"+taskColumns+
		" FROM tasks WHERE status IN (?, ?) ORDER BY created_at ASC, id ASC",
		string(core.TaskPending), string(core.TaskRunning))
	if err != nil {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}
	defer rows.Close()

	var tasks []core.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
