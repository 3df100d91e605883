package dto

import (
	"time"

	"github.com/campusops/timetable-api/internal/models"
)

// SchedulingConstraints are independent toggles; each one enables a scoring
// term or a hard rule in the solver.
type SchedulingConstraints struct {
	RespectTeacherPreferences bool `json:"respect_teacher_time_preferences"`
	OptimizeRoomUtilization   bool `json:"room_utilization_optimization"`
	AvoidStudentConflicts     bool `json:"student_conflict_avoidance"`
	PreferConsecutiveSessions bool `json:"consecutive_courses_preferred"`
	MatchSpecializedRooms     bool `json:"specialization_room_matching"`
	StrictHolidayAvoidance    bool `json:"strict_holiday_avoidance"`
}

// CourseTypePriority assigns one course type its scheduling weight.
type CourseTypePriority struct {
	CourseTypeID string `json:"course_type_id"`
	Priority     int    `json:"priority"`
}

// PrioritySettings weights course types during the solve. Each course type
// may appear once, with a priority in [1,10]; higher is scheduled earlier.
type PrioritySettings struct {
	CourseTypePriorities []CourseTypePriority `json:"course_type_priorities"`
}

// PreferredSlot is one ordered time-preference entry.
type PreferredSlot struct {
	DayOfWeek   int `json:"day_of_week"`
	PeriodStart int `json:"period_start"`
	PeriodEnd   int `json:"period_end"`
	Priority    int `json:"priority"`
}

// TimePreferences tune the soft-constraint score.
type TimePreferences struct {
	AvoidEvening       bool            `json:"avoid_evening_courses"`
	BalanceWeekdayLoad bool            `json:"balance_weekday_courses"`
	PreferredSlots     []PreferredSlot `json:"preferred_slots"`
}

// CourseUnit is one timetable-able demand unit. Exactly one of ClassIDs
// (required-course mode) or Headcount (elective mode) must be set; the
// validator resolves the union before the solver ever sees it.
type CourseUnit struct {
	CourseID    string   `json:"course_id"`
	ClassIDs    []string `json:"class_ids,omitempty"`
	Headcount   *int     `json:"headcount,omitempty"`
	TeacherID   string   `json:"teacher_id,omitempty"`
	WeeklyHours int      `json:"weekly_hours"`
	CourseType  string   `json:"course_type"`
	IsOddWeek   *bool    `json:"is_odd_week,omitempty"`
	StartWeek   int      `json:"start_week"`
	EndWeek     int      `json:"end_week"`
}

// SchedulingScope selects what gets scheduled. An empty course list is
// invalid: there is no "schedule everything" fallback.
type SchedulingScope struct {
	SpecificCourses    []CourseUnit `json:"specific_courses"`
	AllowedBuildingIDs []string     `json:"allowed_building_ids,omitempty"`
}

// SchedulingRequest is one scheduling job specification.
type SchedulingRequest struct {
	SemesterID        string                `json:"semester_id" validate:"required"`
	DepartmentID      string                `json:"department_id" validate:"required"`
	SemesterStartDate string                `json:"semester_start_date" validate:"required"`
	Strategy          models.Strategy       `json:"strategy"`
	Constraints       SchedulingConstraints `json:"constraints"`
	PrioritySettings  PrioritySettings      `json:"priority_settings"`
	TimePreferences   TimePreferences       `json:"time_preferences"`
	Scope             SchedulingScope       `json:"scope" validate:"required"`
}

// SemesterStart parses the semester start date (YYYY-MM-DD).
func (r SchedulingRequest) SemesterStart() (time.Time, error) {
	return time.Parse("2006-01-02", r.SemesterStartDate)
}

// SchedulingTaskResponse acknowledges a submitted job.
type SchedulingTaskResponse struct {
	TaskID           string            `json:"task_id"`
	Status           models.TaskStatus `json:"status"`
	EstimatedSeconds int               `json:"estimated_seconds"`
	CreatedAt        time.Time         `json:"created_at"`
}

// TaskStatusResponse is the polled status payload.
type TaskStatusResponse struct {
	TaskID           string             `json:"task_id"`
	Status           models.TaskStatus  `json:"status"`
	EstimatedSeconds int                `json:"estimated_seconds,omitempty"`
	Result           *models.TaskResult `json:"result,omitempty"`
	FailureReason    *string            `json:"failure_reason,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	FinishedAt       *time.Time         `json:"finished_at,omitempty"`
}

// CandidateSlot is one slot the advisory holiday check expands to dates.
type CandidateSlot struct {
	CourseID  string `json:"course_id,omitempty"`
	DayOfWeek int    `json:"day_of_week" validate:"required,min=1,max=7"`
	Weeks     []int  `json:"weeks" validate:"required,min=1,dive,min=1"`
}

// HolidayCheckRequest asks which candidate slots collide with holidays.
type HolidayCheckRequest struct {
	SemesterStartDate string          `json:"semester_start_date" validate:"required"`
	Slots             []CandidateSlot `json:"slots" validate:"required,min=1,dive"`
}

// HolidayCheckResponse lists the advisory conflicts.
type HolidayCheckResponse struct {
	Conflicts []models.HolidayWarning `json:"conflicts"`
}
