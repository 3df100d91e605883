package service

import (
	"fmt"

	"github.com/campusops/timetable-api/internal/dto"
	"github.com/campusops/timetable-api/internal/models"
)

// requestValidator performs the cross-field checks struct tags cannot
// express. It accumulates every violation instead of stopping at the first,
// so the caller can display all of them at once; this is part of the
// submission contract, not an implementation nicety.
type requestValidator struct{}

func (requestValidator) Validate(req dto.SchedulingRequest) []models.FieldViolation {
	var violations []models.FieldViolation
	add := func(field, message string) {
		violations = append(violations, models.FieldViolation{Field: field, Message: message})
	}

	if req.SemesterID == "" {
		add("semester_id", "is required")
	}
	if req.DepartmentID == "" {
		add("department_id", "is required")
	}
	if req.SemesterStartDate == "" {
		add("semester_start_date", "is required")
	} else if _, err := req.SemesterStart(); err != nil {
		add("semester_start_date", "must be a YYYY-MM-DD date")
	}
	if req.Strategy != "" && !req.Strategy.Valid() {
		add("strategy", "must be one of OPTIMAL, BALANCED, QUICK")
	}

	if len(req.Scope.SpecificCourses) == 0 {
		add("scope.specific_courses", "must not be empty; an explicit course scope is mandatory")
	}
	for i, unit := range req.Scope.SpecificCourses {
		field := fmt.Sprintf("scope.specific_courses[%d]", i)
		if unit.CourseID == "" {
			add(field+".course_id", "is required")
		}

		hasCohorts := len(unit.ClassIDs) > 0
		hasHeadcount := unit.Headcount != nil
		switch {
		case hasCohorts && hasHeadcount:
			add(field, "class_ids and headcount are mutually exclusive; set exactly one")
		case !hasCohorts && !hasHeadcount:
			add(field, "exactly one of class_ids or headcount must be set")
		case hasHeadcount && *unit.Headcount <= 0:
			add(field+".headcount", "must be greater than zero")
		}

		if unit.WeeklyHours <= 0 {
			add(field+".weekly_hours", "must be greater than zero")
		}
		if unit.StartWeek < 1 {
			add(field+".start_week", "must be at least 1")
		}
		if unit.EndWeek < 1 {
			add(field+".end_week", "must be at least 1")
		}
		if unit.StartWeek >= 1 && unit.EndWeek >= 1 && unit.StartWeek > unit.EndWeek {
			add(field+".start_week", "must not exceed end_week")
		}
		if unit.StartWeek >= 1 && unit.StartWeek <= unit.EndWeek && len(expandWeeks(unit.StartWeek, unit.EndWeek, unit.IsOddWeek)) == 0 {
			add(field+".is_odd_week", "week parity excludes every week in the range")
		}
	}

	seen := make(map[string]bool, len(req.PrioritySettings.CourseTypePriorities))
	for i, priority := range req.PrioritySettings.CourseTypePriorities {
		field := fmt.Sprintf("priority_settings.course_type_priorities[%d]", i)
		if priority.CourseTypeID == "" {
			add(field+".course_type_id", "is required")
		} else if seen[priority.CourseTypeID] {
			add(field+".course_type_id", fmt.Sprintf("duplicate course type %q", priority.CourseTypeID))
		} else {
			seen[priority.CourseTypeID] = true
		}
		if priority.Priority < 1 || priority.Priority > 10 {
			add(field+".priority", "must be between 1 and 10")
		}
	}

	for i, slot := range req.TimePreferences.PreferredSlots {
		field := fmt.Sprintf("time_preferences.preferred_slots[%d]", i)
		if slot.DayOfWeek < 1 || slot.DayOfWeek > 7 {
			add(field+".day_of_week", "must be between 1 and 7")
		}
		if slot.PeriodStart < 1 {
			add(field+".period_start", "must be at least 1")
		}
		if slot.PeriodStart > slot.PeriodEnd {
			add(field+".period_start", "must not exceed period_end")
		}
		if slot.Priority < 1 || slot.Priority > 10 {
			add(field+".priority", "must be between 1 and 10")
		}
	}

	return violations
}
