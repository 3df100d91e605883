package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusops/timetable-api/internal/dto"
	"github.com/campusops/timetable-api/internal/models"
	"github.com/campusops/timetable-api/internal/solver"
)

func newTestCalendar(holidays ...models.Holiday) *CalendarService {
	return NewCalendarService(&fakeHolidayStore{holidays: holidays}, nil, time.Hour, zap.NewNop())
}

func TestSlotDateAnchorsToMonday(t *testing.T) {
	// Semester declared to start Wednesday 2026-09-09: week 1 day 1 is still
	// the Monday of that week.
	start := time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), SlotDate(start, 1, 1))
	assert.Equal(t, time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC), SlotDate(start, 5, 1))
	assert.Equal(t, time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC), SlotDate(start, 1, 2))
	assert.Equal(t, time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC), SlotDate(start, 7, 1))
}

func TestSlotDateSundayStart(t *testing.T) {
	// A Sunday start belongs to the week that began the previous Monday.
	start := time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), SlotDate(start, 1, 1))
}

func TestCheckConflictsFlagsHolidaySlots(t *testing.T) {
	start := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC) // Monday
	svc := newTestCalendar(
		models.Holiday{ID: "h-1", Name: "National Day", Date: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)}, // Tuesday, week 2
	)

	warnings, err := svc.CheckConflicts(context.Background(), start, []dto.CandidateSlot{
		{CourseID: "CS101", DayOfWeek: 2, Weeks: []int{1, 2, 3}},
		{CourseID: "CS102", DayOfWeek: 3, Weeks: []int{1, 2, 3}},
	})
	require.NoError(t, err)

	require.Len(t, warnings, 1)
	assert.Equal(t, "CS101", warnings[0].CourseID)
	assert.Equal(t, "National Day", warnings[0].Holiday)
	assert.Equal(t, 2, warnings[0].DayOfWeek)
	assert.Equal(t, 2, warnings[0].Week)
	assert.Equal(t, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), warnings[0].Date)
}

func TestCheckConflictsEmptySlots(t *testing.T) {
	svc := newTestCalendar()
	warnings, err := svc.CheckConflicts(context.Background(), time.Now(), nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestResultWarningsExpandsAssignments(t *testing.T) {
	start := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	svc := newTestCalendar(
		models.Holiday{ID: "h-1", Name: "Spring Festival", Date: time.Date(2026, 9, 21, 0, 0, 0, 0, time.UTC)}, // Monday, week 3
	)

	warnings, err := svc.ResultWarnings(context.Background(), start, []models.Assignment{
		{
			CourseID: "CS101",
			RoomID:   "r-1",
			Sessions: []models.SessionBlock{{DayOfWeek: 1, PeriodStart: 1, PeriodEnd: 2}},
			Weeks:    []int{1, 3, 5},
		},
	})
	require.NoError(t, err)

	require.Len(t, warnings, 1)
	assert.Equal(t, 3, warnings[0].Week)
	assert.Equal(t, "Spring Festival", warnings[0].Holiday)
}

func TestBlockedDaysCoversHorizon(t *testing.T) {
	start := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	svc := newTestCalendar(
		models.Holiday{ID: "h-1", Name: "Holiday A", Date: time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)}, // Thursday, week 1
		models.Holiday{ID: "h-2", Name: "Holiday B", Date: time.Date(2026, 9, 16, 0, 0, 0, 0, time.UTC)}, // Wednesday, week 2
	)

	blocked, err := svc.BlockedDays(context.Background(), start, 5, 2)
	require.NoError(t, err)

	assert.True(t, blocked[solver.DayWeek{Day: 4, Week: 1}])
	assert.True(t, blocked[solver.DayWeek{Day: 3, Week: 2}])
	assert.Len(t, blocked, 2)
}

func TestHolidaysRejectsInvertedRange(t *testing.T) {
	svc := newTestCalendar()
	from := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.Holidays(context.Background(), from, from.AddDate(0, 0, -1))
	require.Error(t, err)
}
