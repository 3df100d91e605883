package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campusops/timetable-api/internal/models"
)

// TaskRepository manages persistence for scheduling tasks.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs a TaskRepository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new scheduling task in PROCESSING state.
func (r *TaskRepository) Create(ctx context.Context, task *models.SchedulingTask) error {
	const query = `INSERT INTO scheduling_tasks (id, semester_id, department_id, strategy, status, request, estimated_seconds, created_by, created_at)
		VALUES (:id, :semester_id, :department_id, :strategy, :status, :request, :estimated_seconds, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create scheduling task: %w", err)
	}
	return nil
}

// FindByID fetches a scheduling task by id.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.SchedulingTask, error) {
	const query = `SELECT id, semester_id, department_id, strategy, status, request, result, failure_reason, estimated_seconds, created_by, created_at, finished_at
		FROM scheduling_tasks WHERE id = $1`
	var task models.SchedulingTask
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListIDs returns the ids of all scheduling tasks, newest first.
func (r *TaskRepository) ListIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM scheduling_tasks ORDER BY created_at DESC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list scheduling tasks: %w", err)
	}
	return ids, nil
}

// ListProcessing returns tasks still in PROCESSING state, oldest first.
func (r *TaskRepository) ListProcessing(ctx context.Context) ([]models.SchedulingTask, error) {
	const query = `SELECT id, semester_id, department_id, strategy, status, request, result, failure_reason, estimated_seconds, created_by, created_at, finished_at
		FROM scheduling_tasks WHERE status = $1 ORDER BY created_at ASC`
	var tasks []models.SchedulingTask
	if err := r.db.SelectContext(ctx, &tasks, query, models.TaskStatusProcessing); err != nil {
		return nil, fmt.Errorf("list processing tasks: %w", err)
	}
	return tasks, nil
}

// MarkCompleted transitions a PROCESSING task to COMPLETED with its result.
// Tasks already in a terminal state are never overwritten; attempting to do
// so returns sql.ErrNoRows.
func (r *TaskRepository) MarkCompleted(ctx context.Context, id string, result models.TaskResult, finishedAt time.Time) error {
	const query = `UPDATE scheduling_tasks SET status = $2, result = $3, finished_at = $4
		WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, models.TaskStatusCompleted, result, finishedAt, models.TaskStatusProcessing)
	if err != nil {
		return fmt.Errorf("complete scheduling task: %w", err)
	}
	return requireRow(res)
}

// MarkFailed transitions a PROCESSING task to FAILED with a reason.
func (r *TaskRepository) MarkFailed(ctx context.Context, id string, reason string, finishedAt time.Time) error {
	const query = `UPDATE scheduling_tasks SET status = $2, failure_reason = $3, finished_at = $4
		WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, models.TaskStatusFailed, reason, finishedAt, models.TaskStatusProcessing)
	if err != nil {
		return fmt.Errorf("fail scheduling task: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
