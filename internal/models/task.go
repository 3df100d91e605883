package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TaskStatus captures the scheduling task lifecycle. Transitions are
// monotonic: once a task leaves PROCESSING it never re-enters it.
type TaskStatus string

const (
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Strategy selects the solver's search-depth/quality tradeoff.
type Strategy string

const (
	StrategyOptimal  Strategy = "OPTIMAL"
	StrategyBalanced Strategy = "BALANCED"
	StrategyQuick    Strategy = "QUICK"
)

// Valid reports whether the strategy is one of the supported modes.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyOptimal, StrategyBalanced, StrategyQuick:
		return true
	}
	return false
}

// SchedulingTask is the lifecycle record for one asynchronous scheduling job.
// The registry is the sole writer of Status, Result and FailureReason.
type SchedulingTask struct {
	ID               string         `db:"id" json:"task_id"`
	SemesterID       string         `db:"semester_id" json:"semester_id"`
	DepartmentID     string         `db:"department_id" json:"department_id"`
	Strategy         Strategy       `db:"strategy" json:"strategy"`
	Status           TaskStatus     `db:"status" json:"status"`
	Request          types.JSONText `db:"request" json:"-"`
	Result           *TaskResult    `db:"result" json:"result,omitempty"`
	FailureReason    *string        `db:"failure_reason" json:"failure_reason,omitempty"`
	EstimatedSeconds int            `db:"estimated_seconds" json:"estimated_seconds"`
	CreatedBy        string         `db:"created_by" json:"created_by"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	FinishedAt       *time.Time     `db:"finished_at" json:"finished_at,omitempty"`
}

// SessionBlock is one weekly meeting of a unit: a contiguous period range on
// one day of the week.
type SessionBlock struct {
	DayOfWeek   int `json:"day_of_week"`
	PeriodStart int `json:"period_start"`
	PeriodEnd   int `json:"period_end"`
}

// Assignment fixes one course-scheduling unit to rooms, periods and weeks.
type Assignment struct {
	CourseID  string         `json:"course_id"`
	TeacherID string         `json:"teacher_id,omitempty"`
	ClassIDs  []string       `json:"class_ids,omitempty"`
	Headcount int            `json:"headcount,omitempty"`
	RoomID    string         `json:"room_id"`
	Sessions  []SessionBlock `json:"sessions"`
	Weeks     []int          `json:"weeks"`
}

// HolidayWarning flags a generated session whose expanded calendar date lands
// on a public holiday. Warnings never fail a task.
type HolidayWarning struct {
	CourseID  string    `json:"course_id"`
	Date      time.Time `json:"date"`
	Holiday   string    `json:"holiday"`
	DayOfWeek int       `json:"day_of_week"`
	Week      int       `json:"week"`
}

// TaskResult is present only on COMPLETED tasks: every unit in scope received
// a hard-constraint-satisfying assignment.
type TaskResult struct {
	Assignments     []Assignment     `json:"assignments"`
	Score           float64          `json:"score"`
	Iterations      int              `json:"iterations"`
	HolidayWarnings []HolidayWarning `json:"holiday_warnings,omitempty"`
}

// Value marshals the result to JSON for persistence.
func (r TaskResult) Value() (driver.Value, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal task result: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the result struct.
func (r *TaskResult) Scan(value interface{}) error {
	if value == nil {
		*r = TaskResult{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for TaskResult", value)
	}
	if len(data) == 0 {
		*r = TaskResult{}
		return nil
	}
	if err := json.Unmarshal(data, r); err != nil {
		return fmt.Errorf("unmarshal task result: %w", err)
	}
	return nil
}
