// Package solver assigns course-scheduling units to rooms, periods and weeks
// under hard no-double-booking constraints while maximizing a weighted
// soft-constraint score. Three engines share the same constraint semantics
// and differ only in search budget: Quick (greedy first-fit), Balanced
// (greedy plus bounded improvement) and Optimal (backtracking search).
package solver

import (
	"fmt"
	"strings"
)

// Enrollment is the tagged union over the two unit modes: a required course
// taught to named class cohorts, or an elective sized by headcount.
type Enrollment interface {
	enrollment()
}

// CohortEnrollment is required-course mode: the named cohorts attend and must
// never be double-booked against each other.
type CohortEnrollment struct {
	ClassIDs []string
}

func (CohortEnrollment) enrollment() {}

// ElectiveEnrollment is elective mode: seats are reserved by expected
// headcount and no cohort conflict applies.
type ElectiveEnrollment struct {
	Headcount int
}

func (ElectiveEnrollment) enrollment() {}

// Unit is the smallest thing the solver assigns time and a room to: one
// course's weekly session block for one cohort set or headcount.
type Unit struct {
	CourseID    string
	TeacherID   string
	Enrollment  Enrollment
	WeeklyHours int
	CourseType  string
	Priority    int
	Weeks       []int
}

// Seats returns the seat demand, zero when unknown (cohort mode).
func (u Unit) Seats() int {
	if e, ok := u.Enrollment.(ElectiveEnrollment); ok {
		return e.Headcount
	}
	return 0
}

// Cohorts returns the attending class ids, nil in elective mode.
func (u Unit) Cohorts() []string {
	if e, ok := u.Enrollment.(CohortEnrollment); ok {
		return e.ClassIDs
	}
	return nil
}

// Room is one bookable teaching space.
type Room struct {
	ID         string
	BuildingID string
	Name       string
	Capacity   int
	RoomType   string
}

// Constraints are the request's toggles, resolved into solver behaviour.
type Constraints struct {
	AvoidStudentConflicts   bool
	MatchSpecializedRooms   bool
	OptimizeRoomUtilization bool
	PreferConsecutive       bool
	AvoidEvening            bool
	BalanceWeekdays         bool
	StrictHolidays          bool
}

// PreferredSlot earns a bonus proportional to its priority when a session
// lands inside it.
type PreferredSlot struct {
	Day         int
	PeriodStart int
	PeriodEnd   int
	Priority    int
}

// DayWeek addresses one concrete teaching date within the semester.
type DayWeek struct {
	Day  int
	Week int
}

// Problem is one self-contained solve. Nothing in it is shared between
// concurrent solves.
type Problem struct {
	Units         []Unit
	Rooms         []Room
	DaysPerWeek   int
	PeriodsPerDay int
	EveningStart  int
	Constraints   Constraints
	Preferred     []PreferredSlot
	// Holidays marks (day, week) pairs falling on public holidays; consulted
	// only when StrictHolidays is set.
	Holidays map[DayWeek]bool
}

// Session is one weekly meeting: a contiguous period range on one day.
type Session struct {
	Day         int
	PeriodStart int
	PeriodEnd   int
}

// Placement fixes one unit to a room, its weekly sessions and its weeks.
type Placement struct {
	UnitIndex int
	RoomID    string
	Sessions  []Session
	Weeks     []int
}

// Solution is a complete hard-constraint-satisfying assignment.
type Solution struct {
	Placements []Placement
	Score      float64
	Iterations int
}

// Budget bounds a search without changing constraint semantics.
type Budget struct {
	MaxIterations int
	TargetScore   float64
}

// Engine is the strategy abstraction: same constraint checker, different
// search depth.
type Engine interface {
	Solve(p *Problem) (*Solution, error)
}

// InfeasibleError reports the units for which no hard-constraint-satisfying
// placement exists. Partial results are never returned as solutions.
type InfeasibleError struct {
	Units []string
}

// Error implements the error interface.
func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("no feasible assignment for course(s): %s", strings.Join(e.Units, ", "))
}
