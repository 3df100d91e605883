package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campusops/timetable-api/internal/dto"
	"github.com/campusops/timetable-api/internal/models"
	"github.com/campusops/timetable-api/internal/solver"
	appErrors "github.com/campusops/timetable-api/pkg/errors"
)

type holidayStore interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]models.Holiday, error)
}

// CalendarService expands candidate slots to concrete dates and intersects
// them with the legal-holiday calendar. It backs both the pre-submission
// advisory endpoint and the post-solve warning pass.
type CalendarService struct {
	repo   holidayStore
	cache  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCalendarService constructs the service. The Redis client is optional;
// without it every lookup goes straight to the repository.
func NewCalendarService(repo holidayStore, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &CalendarService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// semesterAnchor returns the Monday of the semester-start week; week 1 day 1
// maps onto it.
func semesterAnchor(start time.Time) time.Time {
	weekday := int(start.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return start.AddDate(0, 0, -(weekday - 1))
}

// SlotDate resolves (day_of_week, week) to the concrete calendar date.
func SlotDate(semesterStart time.Time, day, week int) time.Time {
	return semesterAnchor(semesterStart).AddDate(0, 0, (week-1)*7+(day-1))
}

// CheckConflicts returns a warning for every candidate slot whose expanded
// date lands on a holiday.
func (s *CalendarService) CheckConflicts(ctx context.Context, semesterStart time.Time, slots []dto.CandidateSlot) ([]models.HolidayWarning, error) {
	maxWeek := 0
	for _, slot := range slots {
		for _, week := range slot.Weeks {
			if week > maxWeek {
				maxWeek = week
			}
		}
	}
	if maxWeek == 0 {
		return nil, nil
	}

	holidays, err := s.holidaysByDate(ctx, semesterStart, maxWeek)
	if err != nil {
		return nil, err
	}

	var warnings []models.HolidayWarning
	for _, slot := range slots {
		for _, week := range slot.Weeks {
			date := SlotDate(semesterStart, slot.DayOfWeek, week)
			if holiday, ok := holidays[dateKey(date)]; ok {
				warnings = append(warnings, models.HolidayWarning{
					CourseID:  slot.CourseID,
					Date:      date,
					Holiday:   holiday.Name,
					DayOfWeek: slot.DayOfWeek,
					Week:      week,
				})
			}
		}
	}
	return warnings, nil
}

// ResultWarnings runs the holiday pass over a completed assignment set.
func (s *CalendarService) ResultWarnings(ctx context.Context, semesterStart time.Time, assignments []models.Assignment) ([]models.HolidayWarning, error) {
	var slots []dto.CandidateSlot
	for _, a := range assignments {
		for _, sess := range a.Sessions {
			slots = append(slots, dto.CandidateSlot{CourseID: a.CourseID, DayOfWeek: sess.DayOfWeek, Weeks: a.Weeks})
		}
	}
	return s.CheckConflicts(ctx, semesterStart, slots)
}

// BlockedDays marks every (day, week) pair inside the semester horizon that
// falls on a holiday; the solver consults it in strict-avoidance mode.
func (s *CalendarService) BlockedDays(ctx context.Context, semesterStart time.Time, daysPerWeek, maxWeek int) (map[solver.DayWeek]bool, error) {
	holidays, err := s.holidaysByDate(ctx, semesterStart, maxWeek)
	if err != nil {
		return nil, err
	}
	blocked := make(map[solver.DayWeek]bool)
	for week := 1; week <= maxWeek; week++ {
		for day := 1; day <= daysPerWeek; day++ {
			if _, ok := holidays[dateKey(SlotDate(semesterStart, day, week))]; ok {
				blocked[solver.DayWeek{Day: day, Week: week}] = true
			}
		}
	}
	return blocked, nil
}

// Holidays lists calendar entries for the given window.
func (s *CalendarService) Holidays(ctx context.Context, from, to time.Time) ([]models.Holiday, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not precede from")
	}
	return s.load(ctx, from, to)
}

func (s *CalendarService) holidaysByDate(ctx context.Context, semesterStart time.Time, maxWeek int) (map[string]models.Holiday, error) {
	from := semesterAnchor(semesterStart)
	to := from.AddDate(0, 0, maxWeek*7)
	list, err := s.load(ctx, from, to)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]models.Holiday, len(list))
	for _, h := range list {
		byDate[dateKey(h.Date)] = h
	}
	return byDate, nil
}

func (s *CalendarService) load(ctx context.Context, from, to time.Time) ([]models.Holiday, error) {
	cacheKey := fmt.Sprintf("holidays:%s:%s", dateKey(from), dateKey(to))
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []models.Holiday
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	list, err := s.repo.ListBetween(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holiday calendar")
	}

	if s.cache != nil {
		if raw, err := json.Marshal(list); err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.ttl).Err(); err != nil {
				s.logger.Warn("failed to cache holiday calendar", zap.Error(err))
			}
		}
	}
	return list, nil
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
