package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campusops/timetable-api/internal/dto"
	"github.com/campusops/timetable-api/internal/models"
	"github.com/campusops/timetable-api/internal/solver"
	"github.com/campusops/timetable-api/pkg/config"
	appErrors "github.com/campusops/timetable-api/pkg/errors"
	"github.com/campusops/timetable-api/pkg/jobs"
)

type taskStore interface {
	Create(ctx context.Context, task *models.SchedulingTask) error
	FindByID(ctx context.Context, id string) (*models.SchedulingTask, error)
	ListIDs(ctx context.Context) ([]string, error)
	ListProcessing(ctx context.Context) ([]models.SchedulingTask, error)
	MarkCompleted(ctx context.Context, id string, result models.TaskResult, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id string, reason string, finishedAt time.Time) error
}

type roomStore interface {
	ListEligible(ctx context.Context, buildingIDs []string) ([]models.Room, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// SchedulingServiceConfig governs submission retries, solver budgets and
// status caching.
type SchedulingServiceConfig struct {
	Solver                 config.SolverConfig
	EnqueueRetries         int
	RetryDelay             time.Duration
	ResultCacheTTL         time.Duration
	StrictHolidayAvoidance bool
}

// SchedulingService is the task registry and the sole writer of task state:
// it validates requests, creates tasks, runs solves on queue workers and
// serves status to polling clients.
type SchedulingService struct {
	tasks     taskStore
	rooms     roomStore
	calendar  *CalendarService
	queue     jobDispatcher
	cache     *redis.Client
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SchedulingServiceConfig

	mu     sync.Mutex
	scopes map[string]*sync.Mutex
}

// NewSchedulingService wires the scheduling pipeline.
func NewSchedulingService(
	tasks taskStore,
	rooms roomStore,
	calendar *CalendarService,
	queue jobDispatcher,
	cache *redis.Client,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulingServiceConfig,
) *SchedulingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EnqueueRetries <= 0 {
		cfg.EnqueueRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.ResultCacheTTL <= 0 {
		cfg.ResultCacheTTL = time.Hour
	}
	return &SchedulingService{
		tasks:     tasks,
		rooms:     rooms,
		calendar:  calendar,
		queue:     queue,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		scopes:    make(map[string]*sync.Mutex),
	}
}

// Submit validates the request, registers a PROCESSING task and enqueues the
// solve. It never blocks on solving.
func (s *SchedulingService) Submit(ctx context.Context, req dto.SchedulingRequest, submittedBy string) (*dto.SchedulingTaskResponse, error) {
	// The accumulating validator runs before the tag validator so callers
	// always get the full violation list, not just the first bad field.
	if violations := (requestValidator{}).Validate(req); len(violations) > 0 {
		vErr := &models.ValidationError{Violations: violations}
		return nil, appErrors.Wrap(vErr, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, vErr.Error())
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheduling payload")
	}

	if req.Strategy == "" {
		req.Strategy = models.StrategyOptimal
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode scheduling request")
	}

	now := time.Now().UTC()
	task := &models.SchedulingTask{
		ID:               uuid.NewString(),
		SemesterID:       req.SemesterID,
		DepartmentID:     req.DepartmentID,
		Strategy:         req.Strategy,
		Status:           models.TaskStatusProcessing,
		Request:          types.JSONText(raw),
		EstimatedSeconds: estimateSeconds(req.Strategy, len(req.Scope.SpecificCourses)),
		CreatedBy:        submittedBy,
		CreatedAt:        now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create scheduling task")
	}

	if err := s.enqueueWithRetry(ctx, jobs.Job{ID: task.ID, Type: "schedule"}); err != nil {
		reason := "scheduler queue unavailable"
		if markErr := s.tasks.MarkFailed(ctx, task.ID, reason, time.Now().UTC()); markErr != nil {
			s.logger.Error("failed to mark task failed after enqueue error", zap.String("task_id", task.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, "scheduling queue unavailable, try again later")
	}

	if s.metrics != nil {
		s.metrics.TaskSubmitted(string(req.Strategy))
	}
	return &dto.SchedulingTaskResponse{
		TaskID:           task.ID,
		Status:           task.Status,
		EstimatedSeconds: task.EstimatedSeconds,
		CreatedAt:        task.CreatedAt,
	}, nil
}

// ListTasks returns the ids of all known tasks.
func (s *SchedulingService) ListTasks(ctx context.Context) ([]string, error) {
	ids, err := s.tasks.ListIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scheduling tasks")
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// GetStatus returns the current task status. Unknown ids yield NOT_FOUND,
// never an empty task. Terminal payloads are cached so repeated polls are
// cheap and byte-identical.
func (s *SchedulingService) GetStatus(ctx context.Context, id string) (*dto.TaskStatusResponse, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "task id is required")
	}

	cacheKey := taskStatusKey(id)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached dto.TaskStatusResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scheduling task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduling task")
	}

	resp := &dto.TaskStatusResponse{
		TaskID:     task.ID,
		Status:     task.Status,
		CreatedAt:  task.CreatedAt,
		FinishedAt: task.FinishedAt,
	}
	switch task.Status {
	case models.TaskStatusProcessing:
		resp.EstimatedSeconds = task.EstimatedSeconds
	case models.TaskStatusCompleted:
		resp.Result = task.Result
	case models.TaskStatusFailed:
		resp.FailureReason = task.FailureReason
	}

	if task.Status.Terminal() && s.cache != nil {
		if raw, err := json.Marshal(resp); err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.cfg.ResultCacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache task status", zap.String("task_id", id), zap.Error(err))
			}
		}
	}
	return resp, nil
}

// Process is the queue handler: it runs one solve to a terminal task state.
// A returned error means the job should be retried (infrastructure trouble);
// scheduling failures are terminal task state, not errors.
func (s *SchedulingService) Process(ctx context.Context, job jobs.Job) error {
	task, err := s.tasks.FindByID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("queued task no longer exists", zap.String("task_id", job.ID))
			return nil
		}
		return fmt.Errorf("load task %s: %w", job.ID, err)
	}
	if task.Status.Terminal() {
		return nil
	}

	var req dto.SchedulingRequest
	if err := json.Unmarshal(task.Request, &req); err != nil {
		return s.failTask(ctx, task, fmt.Sprintf("stored request is unreadable: %v", err))
	}

	// One solve per (semester, department) at a time, so concurrent tasks for
	// the same scope cannot double-book against each other.
	lock := s.scopeLock(req.SemesterID + "|" + req.DepartmentID)
	lock.Lock()
	defer lock.Unlock()

	return s.solve(ctx, task, req)
}

func (s *SchedulingService) solve(ctx context.Context, task *models.SchedulingTask, req dto.SchedulingRequest) error {
	semesterStart, err := req.SemesterStart()
	if err != nil {
		return s.failTask(ctx, task, "semester start date is invalid")
	}

	rooms, err := s.rooms.ListEligible(ctx, req.Scope.AllowedBuildingIDs)
	if err != nil {
		return fmt.Errorf("load eligible rooms: %w", err)
	}
	if len(rooms) == 0 {
		return s.failTask(ctx, task, "no eligible rooms in the requested building scope")
	}

	problem := s.buildProblem(req, rooms)

	strict := req.Constraints.StrictHolidayAvoidance || s.cfg.StrictHolidayAvoidance
	if strict && s.calendar != nil {
		blocked, err := s.calendar.BlockedDays(ctx, semesterStart, problem.DaysPerWeek, maxEndWeek(req))
		if err != nil {
			return fmt.Errorf("load holiday calendar: %w", err)
		}
		problem.Constraints.StrictHolidays = true
		problem.Holidays = blocked
	}

	engine := s.engineFor(task.Strategy)
	started := time.Now()
	solution, err := engine.Solve(problem)
	elapsed := time.Since(started)

	if err != nil {
		var infeasible *solver.InfeasibleError
		if errors.As(err, &infeasible) {
			s.observeSolve(task.Strategy, "failed", elapsed)
			return s.failTask(ctx, task, infeasible.Error())
		}
		return fmt.Errorf("solve task %s: %w", task.ID, err)
	}

	assignments := toAssignments(problem, solution)

	var warnings []models.HolidayWarning
	if s.calendar != nil {
		warnings, err = s.calendar.ResultWarnings(ctx, semesterStart, assignments)
		if err != nil {
			// Holiday warnings are advisory; a calendar outage must not fail
			// an otherwise complete solve.
			s.logger.Warn("holiday warning pass failed", zap.String("task_id", task.ID), zap.Error(err))
			warnings = nil
		}
	}

	result := models.TaskResult{
		Assignments:     assignments,
		Score:           solution.Score,
		Iterations:      solution.Iterations,
		HolidayWarnings: warnings,
	}
	if err := s.tasks.MarkCompleted(ctx, task.ID, result, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("task already terminal, dropping solve result", zap.String("task_id", task.ID))
			return nil
		}
		return fmt.Errorf("persist result for task %s: %w", task.ID, err)
	}

	s.observeSolve(task.Strategy, "completed", elapsed)
	if s.metrics != nil {
		s.metrics.TaskFinished(string(task.Strategy), "completed")
	}
	s.logger.Info("scheduling task completed",
		zap.String("task_id", task.ID),
		zap.String("strategy", string(task.Strategy)),
		zap.Float64("score", solution.Score),
		zap.Int("iterations", solution.Iterations),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// RecoverPendingTasks re-enqueues tasks left in PROCESSING by a previous
// process, e.g. after a restart.
// AbandonTask marks a task FAILED once the queue has given up retrying it,
// so pollers are not left watching a PROCESSING task no worker will revisit.
func (s *SchedulingService) AbandonTask(ctx context.Context, taskID string, cause error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("failed to load abandoned task", zap.String("task_id", taskID), zap.Error(err))
		}
		return
	}
	if task.Status.Terminal() {
		return
	}
	reason := "scheduling aborted after repeated worker failures"
	if cause != nil {
		reason = fmt.Sprintf("%s: %v", reason, cause)
	}
	if err := s.failTask(ctx, task, reason); err != nil {
		s.logger.Error("failed to mark abandoned task", zap.String("task_id", taskID), zap.Error(err))
	}
}

func (s *SchedulingService) RecoverPendingTasks(ctx context.Context) {
	pending, err := s.tasks.ListProcessing(ctx)
	if err != nil {
		s.logger.Error("failed to list pending tasks for recovery", zap.Error(err))
		return
	}
	for _, task := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: task.ID, Type: "schedule"}); err != nil {
			s.logger.Error("failed to requeue pending task", zap.String("task_id", task.ID), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		s.logger.Sugar().Infow("requeued pending scheduling tasks", "count", len(pending))
	}
}

func (s *SchedulingService) failTask(ctx context.Context, task *models.SchedulingTask, reason string) error {
	if err := s.tasks.MarkFailed(ctx, task.ID, reason, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("mark task %s failed: %w", task.ID, err)
	}
	if s.metrics != nil {
		s.metrics.TaskFinished(string(task.Strategy), "failed")
	}
	s.logger.Info("scheduling task failed", zap.String("task_id", task.ID), zap.String("reason", reason))
	return nil
}

func (s *SchedulingService) enqueueWithRetry(ctx context.Context, job jobs.Job) error {
	var err error
	for attempt := 0; attempt <= s.cfg.EnqueueRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(s.cfg.RetryDelay * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err = s.queue.Enqueue(job); err == nil {
			return nil
		}
		s.logger.Warn("enqueue failed", zap.String("task_id", job.ID), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return err
}

func (s *SchedulingService) scopeLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.scopes[key]
	if !ok {
		lock = &sync.Mutex{}
		s.scopes[key] = lock
	}
	return lock
}

func (s *SchedulingService) observeSolve(strategy models.Strategy, outcome string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveSolve(string(strategy), outcome, elapsed)
}

func (s *SchedulingService) engineFor(strategy models.Strategy) solver.Engine {
	switch strategy {
	case models.StrategyQuick:
		return solver.Quick{}
	case models.StrategyBalanced:
		return solver.Balanced{Budget: solver.Budget{
			MaxIterations: s.cfg.Solver.BalancedIterations,
			TargetScore:   s.cfg.Solver.BalancedScoreTarget,
		}}
	default:
		return solver.Optimal{Budget: solver.Budget{
			MaxIterations: s.cfg.Solver.OptimalIterations,
		}}
	}
}

func (s *SchedulingService) buildProblem(req dto.SchedulingRequest, rooms []models.Room) *solver.Problem {
	priorities := make(map[string]int, len(req.PrioritySettings.CourseTypePriorities))
	for _, p := range req.PrioritySettings.CourseTypePriorities {
		priorities[p.CourseTypeID] = p.Priority
	}

	units := make([]solver.Unit, 0, len(req.Scope.SpecificCourses))
	for _, cu := range req.Scope.SpecificCourses {
		var enrollment solver.Enrollment
		if len(cu.ClassIDs) > 0 {
			enrollment = solver.CohortEnrollment{ClassIDs: cu.ClassIDs}
		} else if cu.Headcount != nil {
			enrollment = solver.ElectiveEnrollment{Headcount: *cu.Headcount}
		}
		priority := priorities[cu.CourseType]
		if priority == 0 {
			priority = 5
		}
		units = append(units, solver.Unit{
			CourseID:    cu.CourseID,
			TeacherID:   cu.TeacherID,
			Enrollment:  enrollment,
			WeeklyHours: cu.WeeklyHours,
			CourseType:  cu.CourseType,
			Priority:    priority,
			Weeks:       expandWeeks(cu.StartWeek, cu.EndWeek, cu.IsOddWeek),
		})
	}

	solverRooms := make([]solver.Room, 0, len(rooms))
	for _, r := range rooms {
		solverRooms = append(solverRooms, solver.Room{
			ID:         r.ID,
			BuildingID: r.BuildingID,
			Name:       r.Name,
			Capacity:   r.Capacity,
			RoomType:   r.RoomType,
		})
	}

	var preferred []solver.PreferredSlot
	if req.Constraints.RespectTeacherPreferences {
		for _, slot := range req.TimePreferences.PreferredSlots {
			preferred = append(preferred, solver.PreferredSlot{
				Day:         slot.DayOfWeek,
				PeriodStart: slot.PeriodStart,
				PeriodEnd:   slot.PeriodEnd,
				Priority:    slot.Priority,
			})
		}
	}

	return &solver.Problem{
		Units:         units,
		Rooms:         solverRooms,
		DaysPerWeek:   s.cfg.Solver.DaysPerWeek,
		PeriodsPerDay: s.cfg.Solver.PeriodsPerDay,
		EveningStart:  s.cfg.Solver.EveningStartPeriod,
		Constraints: solver.Constraints{
			AvoidStudentConflicts:   req.Constraints.AvoidStudentConflicts,
			MatchSpecializedRooms:   req.Constraints.MatchSpecializedRooms,
			OptimizeRoomUtilization: req.Constraints.OptimizeRoomUtilization,
			PreferConsecutive:       req.Constraints.PreferConsecutiveSessions,
			AvoidEvening:            req.TimePreferences.AvoidEvening,
			BalanceWeekdays:         req.TimePreferences.BalanceWeekdayLoad,
		},
		Preferred: preferred,
	}
}

// expandWeeks lists the applicable week numbers for a unit: the inclusive
// range filtered by odd/even parity when one is requested.
func expandWeeks(start, end int, isOdd *bool) []int {
	var weeks []int
	for week := start; week <= end; week++ {
		if isOdd != nil {
			if *isOdd && week%2 == 0 {
				continue
			}
			if !*isOdd && week%2 == 1 {
				continue
			}
		}
		weeks = append(weeks, week)
	}
	return weeks
}

func maxEndWeek(req dto.SchedulingRequest) int {
	max := 0
	for _, cu := range req.Scope.SpecificCourses {
		if cu.EndWeek > max {
			max = cu.EndWeek
		}
	}
	return max
}

func toAssignments(p *solver.Problem, sol *solver.Solution) []models.Assignment {
	assignments := make([]models.Assignment, 0, len(sol.Placements))
	for _, pl := range sol.Placements {
		u := p.Units[pl.UnitIndex]
		sessions := make([]models.SessionBlock, 0, len(pl.Sessions))
		for _, sess := range pl.Sessions {
			sessions = append(sessions, models.SessionBlock{
				DayOfWeek:   sess.Day,
				PeriodStart: sess.PeriodStart,
				PeriodEnd:   sess.PeriodEnd,
			})
		}
		assignments = append(assignments, models.Assignment{
			CourseID:  u.CourseID,
			TeacherID: u.TeacherID,
			ClassIDs:  u.Cohorts(),
			Headcount: u.Seats(),
			RoomID:    pl.RoomID,
			Sessions:  sessions,
			Weeks:     pl.Weeks,
		})
	}
	return assignments
}

// estimateSeconds is a coarse runtime hint surfaced to polling clients.
func estimateSeconds(strategy models.Strategy, unitCount int) int {
	base := 2 + unitCount
	multiplier := 8
	switch strategy {
	case models.StrategyQuick:
		multiplier = 1
	case models.StrategyBalanced:
		multiplier = 3
	}
	seconds := base * multiplier
	if seconds > 600 {
		seconds = 600
	}
	return seconds
}

func taskStatusKey(id string) string {
	return "task_status:" + id
}
