package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusops/timetable-api/internal/dto"
	"github.com/campusops/timetable-api/internal/models"
	"github.com/campusops/timetable-api/pkg/config"
	appErrors "github.com/campusops/timetable-api/pkg/errors"
	"github.com/campusops/timetable-api/pkg/jobs"
)

type fakeTaskStore struct {
	tasks     map[string]*models.SchedulingTask
	createErr error
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[string]*models.SchedulingTask)}
}

func (f *fakeTaskStore) Create(ctx context.Context, task *models.SchedulingTask) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *task
	f.tasks[task.ID] = &cp
	return nil
}

func (f *fakeTaskStore) FindByID(ctx context.Context, id string) (*models.SchedulingTask, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *task
	return &cp, nil
}

func (f *fakeTaskStore) ListIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.tasks))
	for id := range f.tasks {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeTaskStore) ListProcessing(ctx context.Context) ([]models.SchedulingTask, error) {
	var pending []models.SchedulingTask
	for _, task := range f.tasks {
		if task.Status == models.TaskStatusProcessing {
			pending = append(pending, *task)
		}
	}
	return pending, nil
}

func (f *fakeTaskStore) MarkCompleted(ctx context.Context, id string, result models.TaskResult, finishedAt time.Time) error {
	task, ok := f.tasks[id]
	if !ok || task.Status != models.TaskStatusProcessing {
		return sql.ErrNoRows
	}
	task.Status = models.TaskStatusCompleted
	task.Result = &result
	task.FinishedAt = &finishedAt
	return nil
}

func (f *fakeTaskStore) MarkFailed(ctx context.Context, id string, reason string, finishedAt time.Time) error {
	task, ok := f.tasks[id]
	if !ok || task.Status != models.TaskStatusProcessing {
		return sql.ErrNoRows
	}
	task.Status = models.TaskStatusFailed
	task.FailureReason = &reason
	task.FinishedAt = &finishedAt
	return nil
}

type fakeRoomStore struct {
	rooms []models.Room
	err   error
}

func (f *fakeRoomStore) ListEligible(ctx context.Context, buildingIDs []string) ([]models.Room, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(buildingIDs) == 0 {
		return f.rooms, nil
	}
	allowed := make(map[string]bool, len(buildingIDs))
	for _, id := range buildingIDs {
		allowed[id] = true
	}
	var filtered []models.Room
	for _, room := range f.rooms {
		if allowed[room.BuildingID] {
			filtered = append(filtered, room)
		}
	}
	return filtered, nil
}

type fakeQueue struct {
	jobs     []jobs.Job
	failures int
}

func (f *fakeQueue) Enqueue(job jobs.Job) error {
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("buffer full")
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeHolidayStore struct {
	holidays []models.Holiday
}

func (f *fakeHolidayStore) ListBetween(ctx context.Context, from, to time.Time) ([]models.Holiday, error) {
	var inRange []models.Holiday
	for _, h := range f.holidays {
		if !h.Date.Before(from) && !h.Date.After(to) {
			inRange = append(inRange, h)
		}
	}
	return inRange, nil
}

func testSolverConfig() config.SolverConfig {
	return config.SolverConfig{
		PeriodsPerDay:       8,
		DaysPerWeek:         5,
		WeeksPerSemester:    20,
		EveningStartPeriod:  7,
		OptimalIterations:   5000,
		BalancedIterations:  500,
		BalancedScoreTarget: 90,
	}
}

func newTestSchedulingService(store *fakeTaskStore, rooms *fakeRoomStore, queue *fakeQueue, holidays *fakeHolidayStore) *SchedulingService {
	if holidays == nil {
		holidays = &fakeHolidayStore{}
	}
	calendar := NewCalendarService(holidays, nil, time.Hour, zap.NewNop())
	return NewSchedulingService(
		store, rooms, calendar, queue, nil, nil, nil, zap.NewNop(),
		SchedulingServiceConfig{
			Solver:         testSolverConfig(),
			EnqueueRetries: 2,
			RetryDelay:     time.Millisecond,
			ResultCacheTTL: time.Hour,
		},
	)
}

func submittableRequest() dto.SchedulingRequest {
	return dto.SchedulingRequest{
		SemesterID:        "sem-2026-fall",
		DepartmentID:      "dep-cs",
		SemesterStartDate: "2026-09-07",
		Strategy:          models.StrategyQuick,
		Constraints: dto.SchedulingConstraints{
			AvoidStudentConflicts: true,
		},
		Scope: dto.SchedulingScope{
			SpecificCourses: []dto.CourseUnit{
				{CourseID: "CS101", ClassIDs: []string{"cls-1"}, TeacherID: "t-1", WeeklyHours: 2, StartWeek: 1, EndWeek: 16},
				{CourseID: "CS102", ClassIDs: []string{"cls-2"}, TeacherID: "t-2", WeeklyHours: 3, StartWeek: 1, EndWeek: 16},
			},
		},
	}
}

func testRooms() []models.Room {
	return []models.Room{
		{ID: "r-1", BuildingID: "b-1", Name: "A101", Capacity: 50},
		{ID: "r-2", BuildingID: "b-1", Name: "A102", Capacity: 40},
	}
}

func TestSubmitCreatesTaskAndEnqueues(t *testing.T) {
	store := newFakeTaskStore()
	queue := &fakeQueue{}
	svc := newTestSchedulingService(store, &fakeRoomStore{rooms: testRooms()}, queue, nil)

	resp, err := svc.Submit(context.Background(), submittableRequest(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.NotEmpty(t, resp.TaskID)
	assert.Equal(t, models.TaskStatusProcessing, resp.Status)
	assert.Greater(t, resp.EstimatedSeconds, 0)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, resp.TaskID, queue.jobs[0].ID)

	stored, err := store.FindByID(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusProcessing, stored.Status)
	assert.Equal(t, "user-1", stored.CreatedBy)
}

func TestSubmitReportsAllViolations(t *testing.T) {
	store := newFakeTaskStore()
	svc := newTestSchedulingService(store, &fakeRoomStore{}, &fakeQueue{}, nil)

	req := submittableRequest()
	req.SemesterID = ""
	req.Scope.SpecificCourses[0].WeeklyHours = 0

	_, err := svc.Submit(context.Background(), req, "user-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.GreaterOrEqual(t, len(vErr.Violations), 2)
	assert.Empty(t, store.tasks, "invalid requests must never create tasks")
}

func TestSubmitEnqueueRetryExhaustionFailsTask(t *testing.T) {
	store := newFakeTaskStore()
	queue := &fakeQueue{failures: 10}
	svc := newTestSchedulingService(store, &fakeRoomStore{rooms: testRooms()}, queue, nil)

	_, err := svc.Submit(context.Background(), submittableRequest(), "user-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrTransient.Code, appErr.Code)

	require.Len(t, store.tasks, 1)
	for _, task := range store.tasks {
		assert.Equal(t, models.TaskStatusFailed, task.Status)
		require.NotNil(t, task.FailureReason)
		assert.Contains(t, *task.FailureReason, "queue")
	}
}

func TestSubmitEnqueueRecoversWithinRetryBudget(t *testing.T) {
	store := newFakeTaskStore()
	queue := &fakeQueue{failures: 1}
	svc := newTestSchedulingService(store, &fakeRoomStore{rooms: testRooms()}, queue, nil)

	resp, err := svc.Submit(context.Background(), submittableRequest(), "user-1")
	require.NoError(t, err)
	assert.Len(t, queue.jobs, 1)
	assert.Equal(t, models.TaskStatusProcessing, store.tasks[resp.TaskID].Status)
}

func TestProcessCompletesTask(t *testing.T) {
	store := newFakeTaskStore()
	queue := &fakeQueue{}
	svc := newTestSchedulingService(store, &fakeRoomStore{rooms: testRooms()}, queue, nil)

	resp, err := svc.Submit(context.Background(), submittableRequest(), "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Process(context.Background(), queue.jobs[0]))

	task, err := store.FindByID(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	require.NotNil(t, task.Result)
	assert.Len(t, task.Result.Assignments, 2)
	assert.Greater(t, task.Result.Score, 0.0)
	require.NotNil(t, task.FinishedAt)
}

func TestProcessMarksInfeasibleTaskFailed(t *testing.T) {
	store := newFakeTaskStore()
	queue := &fakeQueue{}
	// A 150-seat elective cannot fit any room: terminal failure, not retry.
	svc := newTestSchedulingService(store, &fakeRoomStore{rooms: testRooms()}, queue, nil)

	req := submittableRequest()
	req.Scope.SpecificCourses = []dto.CourseUnit{
		{CourseID: "MEGA500", Headcount: intPtr(150), WeeklyHours: 2, StartWeek: 1, EndWeek: 16},
	}

	resp, err := svc.Submit(context.Background(), req, "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Process(context.Background(), queue.jobs[0]))

	task, err := store.FindByID(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
	require.NotNil(t, task.FailureReason)
	assert.Contains(t, *task.FailureReason, "MEGA500")
}

func TestProcessSkipsTerminalTask(t *testing.T) {
	store := newFakeTaskStore()
	queue := &fakeQueue{}
	svc := newTestSchedulingService(store, &fakeRoomStore{rooms: testRooms()}, queue, nil)

	resp, err := svc.Submit(context.Background(), submittableRequest(), "user-1")
	require.NoError(t, err)
	require.NoError(t, svc.Process(context.Background(), queue.jobs[0]))

	before := *store.tasks[resp.TaskID]
	require.NoError(t, svc.Process(context.Background(), queue.jobs[0]))
	after := *store.tasks[resp.TaskID]

	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.FinishedAt, after.FinishedAt)
}

func TestProcessReturnsErrorOnRoomLookupFailure(t *testing.T) {
	store := newFakeTaskStore()
	queue := &fakeQueue{}
	rooms := &fakeRoomStore{rooms: testRooms()}
	svc := newTestSchedulingService(store, rooms, queue, nil)

	resp, err := svc.Submit(context.Background(), submittableRequest(), "user-1")
	require.NoError(t, err)

	rooms.err = errors.New("connection refused")
	require.Error(t, svc.Process(context.Background(), queue.jobs[0]), "infrastructure errors must surface for retry")
	assert.Equal(t, models.TaskStatusProcessing, store.tasks[resp.TaskID].Status)
}

func TestProcessFailsTaskOnEmptyRoomScope(t *testing.T) {
	store := newFakeTaskStore()
	queue := &fakeQueue{}
	svc := newTestSchedulingService(store, &fakeRoomStore{rooms: testRooms()}, queue, nil)

	req := submittableRequest()
	req.Scope.AllowedBuildingIDs = []string{"b-unknown"}

	resp, err := svc.Submit(context.Background(), req, "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Process(context.Background(), queue.jobs[0]))
	task := store.tasks[resp.TaskID]
	assert.Equal(t, models.TaskStatusFailed, task.Status)
	require.NotNil(t, task.FailureReason)
	assert.Contains(t, *task.FailureReason, "no eligible rooms")
}

func TestProcessAttachesHolidayWarnings(t *testing.T) {
	store := newFakeTaskStore()
	queue := &fakeQueue{}
	// 2026-09-07 is a Monday; a holiday in week 1 must surface as an
	// advisory warning on any assignment landing on that date.
	holidays := &fakeHolidayStore{holidays: []models.Holiday{
		{ID: "h-1", Name: "Founders Day", Date: time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)},
		{ID: "h-2", Name: "Founders Day", Date: time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)},
		{ID: "h-3", Name: "Founders Day", Date: time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC)},
		{ID: "h-4", Name: "Founders Day", Date: time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)},
		{ID: "h-5", Name: "Founders Day", Date: time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC)},
	}}
	svc := newTestSchedulingService(store, &fakeRoomStore{rooms: testRooms()}, queue, holidays)

	req := submittableRequest()
	req.Scope.SpecificCourses = req.Scope.SpecificCourses[:1]

	resp, err := svc.Submit(context.Background(), req, "user-1")
	require.NoError(t, err)
	require.NoError(t, svc.Process(context.Background(), queue.jobs[0]))

	task := store.tasks[resp.TaskID]
	require.Equal(t, models.TaskStatusCompleted, task.Status)
	require.NotNil(t, task.Result)
	assert.NotEmpty(t, task.Result.HolidayWarnings, "a whole blocked teaching week must produce warnings")
}

func TestGetStatusUnknownTask(t *testing.T) {
	svc := newTestSchedulingService(newFakeTaskStore(), &fakeRoomStore{}, &fakeQueue{}, nil)

	_, err := svc.GetStatus(context.Background(), "missing-id")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestGetStatusLifecycle(t *testing.T) {
	store := newFakeTaskStore()
	queue := &fakeQueue{}
	svc := newTestSchedulingService(store, &fakeRoomStore{rooms: testRooms()}, queue, nil)

	resp, err := svc.Submit(context.Background(), submittableRequest(), "user-1")
	require.NoError(t, err)

	status, err := svc.GetStatus(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusProcessing, status.Status)
	assert.Greater(t, status.EstimatedSeconds, 0)
	assert.Nil(t, status.Result)

	require.NoError(t, svc.Process(context.Background(), queue.jobs[0]))

	first, err := svc.GetStatus(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, first.Status)
	require.NotNil(t, first.Result)

	second, err := svc.GetStatus(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, first, second, "polling a terminal task must not change its payload")
}

func TestListTasksNeverNil(t *testing.T) {
	svc := newTestSchedulingService(newFakeTaskStore(), &fakeRoomStore{}, &fakeQueue{}, nil)

	ids, err := svc.ListTasks(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestRecoverPendingTasksRequeues(t *testing.T) {
	store := newFakeTaskStore()
	queue := &fakeQueue{}
	svc := newTestSchedulingService(store, &fakeRoomStore{rooms: testRooms()}, queue, nil)

	resp, err := svc.Submit(context.Background(), submittableRequest(), "user-1")
	require.NoError(t, err)

	// Simulate a restart: the queue lost its buffer but the row survived.
	queue.jobs = nil
	svc.RecoverPendingTasks(context.Background())

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, resp.TaskID, queue.jobs[0].ID)
}

func TestAbandonTaskMarksFailed(t *testing.T) {
	store := newFakeTaskStore()
	store.tasks["task-1"] = &models.SchedulingTask{
		ID:       "task-1",
		Status:   models.TaskStatusProcessing,
		Strategy: models.StrategyQuick,
	}
	svc := newTestSchedulingService(store, &fakeRoomStore{}, &fakeQueue{}, nil)

	svc.AbandonTask(context.Background(), "task-1", errors.New("worker crashed"))

	task := store.tasks["task-1"]
	require.Equal(t, models.TaskStatusFailed, task.Status)
	require.NotNil(t, task.FailureReason)
	assert.Contains(t, *task.FailureReason, "repeated worker failures")
	assert.Contains(t, *task.FailureReason, "worker crashed")
}

func TestAbandonTaskLeavesTerminalTaskAlone(t *testing.T) {
	store := newFakeTaskStore()
	store.tasks["task-1"] = &models.SchedulingTask{
		ID:     "task-1",
		Status: models.TaskStatusCompleted,
	}
	svc := newTestSchedulingService(store, &fakeRoomStore{}, &fakeQueue{}, nil)

	svc.AbandonTask(context.Background(), "task-1", errors.New("late failure"))

	assert.Equal(t, models.TaskStatusCompleted, store.tasks["task-1"].Status)
}

func TestEstimateSecondsScalesWithStrategy(t *testing.T) {
	quick := estimateSeconds(models.StrategyQuick, 10)
	balanced := estimateSeconds(models.StrategyBalanced, 10)
	optimal := estimateSeconds(models.StrategyOptimal, 10)

	assert.Less(t, quick, balanced)
	assert.Less(t, balanced, optimal)
	assert.LessOrEqual(t, estimateSeconds(models.StrategyOptimal, 100000), 600)
}
