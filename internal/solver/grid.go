package solver

import "sort"

type occKey struct {
	day    int
	period int
	week   int
}

// occupancy is the shared hard-constraint checker: rooms, teachers and class
// cohorts each own a set of occupied (day, period, week) triples. All three
// engines place and remove through it, so no assignment that violates a hard
// constraint visible at decision time can ever be emitted.
type occupancy struct {
	p        *Problem
	rooms    map[string]map[occKey]bool
	teachers map[string]map[occKey]bool
	cohorts  map[string]map[occKey]bool
	dayLoad  map[int]int
}

func newOccupancy(p *Problem) *occupancy {
	return &occupancy{
		p:        p,
		rooms:    make(map[string]map[occKey]bool),
		teachers: make(map[string]map[occKey]bool),
		cohorts:  make(map[string]map[occKey]bool),
		dayLoad:  make(map[int]int),
	}
}

// candidate is one potential placement shape for a unit: a room plus the
// weekly sessions it would occupy.
type candidate struct {
	room     Room
	sessions []Session
}

func (o *occupancy) keys(u Unit, sessions []Session) []occKey {
	var ks []occKey
	for _, sess := range sessions {
		for period := sess.PeriodStart; period <= sess.PeriodEnd; period++ {
			for _, week := range u.Weeks {
				ks = append(ks, occKey{day: sess.Day, period: period, week: week})
			}
		}
	}
	return ks
}

func (o *occupancy) canPlace(u Unit, c candidate) bool {
	if o.p.Constraints.StrictHolidays {
		for _, sess := range c.sessions {
			for _, week := range u.Weeks {
				if o.p.Holidays[DayWeek{Day: sess.Day, Week: week}] {
					return false
				}
			}
		}
	}
	for _, k := range o.keys(u, c.sessions) {
		if o.rooms[c.room.ID][k] {
			return false
		}
		if u.TeacherID != "" && o.teachers[u.TeacherID][k] {
			return false
		}
		if o.p.Constraints.AvoidStudentConflicts {
			for _, classID := range u.Cohorts() {
				if o.cohorts[classID][k] {
					return false
				}
			}
		}
	}
	return true
}

func (o *occupancy) place(u Unit, c candidate) {
	for _, k := range o.keys(u, c.sessions) {
		markOccupied(o.rooms, c.room.ID, k)
		if u.TeacherID != "" {
			markOccupied(o.teachers, u.TeacherID, k)
		}
		for _, classID := range u.Cohorts() {
			markOccupied(o.cohorts, classID, k)
		}
	}
	for _, sess := range c.sessions {
		o.dayLoad[sess.Day] += sess.PeriodEnd - sess.PeriodStart + 1
	}
}

func (o *occupancy) remove(u Unit, c candidate) {
	for _, k := range o.keys(u, c.sessions) {
		delete(o.rooms[c.room.ID], k)
		if u.TeacherID != "" {
			delete(o.teachers[u.TeacherID], k)
		}
		for _, classID := range u.Cohorts() {
			delete(o.cohorts[classID], k)
		}
	}
	for _, sess := range c.sessions {
		o.dayLoad[sess.Day] -= sess.PeriodEnd - sess.PeriodStart + 1
	}
}

func markOccupied(m map[string]map[occKey]bool, owner string, k occKey) {
	if m[owner] == nil {
		m[owner] = make(map[occKey]bool)
	}
	m[owner][k] = true
}

// roomEligible applies the structural room filters: capacity always, room
// type only when specialization matching is enabled. A unit without a course
// type accepts any room.
func (p *Problem) roomEligible(u Unit, r Room) bool {
	if seats := u.Seats(); seats > 0 && r.Capacity < seats {
		return false
	}
	if p.Constraints.MatchSpecializedRooms && u.CourseType != "" && r.RoomType != u.CourseType {
		return false
	}
	return true
}

// candidates enumerates the placement shapes for a unit: one contiguous block
// of WeeklyHours periods on a single day, for multi-hour units a spread of
// single-period sessions at the same period across consecutive days, and for
// units whose hours exceed one day an even split into blocks on consecutive
// days.
func (p *Problem) candidates(u Unit) []candidate {
	hours := u.WeeklyHours
	if hours <= 0 || hours > p.PeriodsPerDay*p.DaysPerWeek {
		return nil
	}

	var shapes [][]Session
	if hours <= p.PeriodsPerDay {
		for day := 1; day <= p.DaysPerWeek; day++ {
			for start := 1; start+hours-1 <= p.PeriodsPerDay; start++ {
				shapes = append(shapes, []Session{{Day: day, PeriodStart: start, PeriodEnd: start + hours - 1}})
			}
		}
	}
	if hours > 1 && hours <= p.DaysPerWeek {
		for firstDay := 1; firstDay+hours-1 <= p.DaysPerWeek; firstDay++ {
			for period := 1; period <= p.PeriodsPerDay; period++ {
				sessions := make([]Session, 0, hours)
				for i := 0; i < hours; i++ {
					sessions = append(sessions, Session{Day: firstDay + i, PeriodStart: period, PeriodEnd: period})
				}
				shapes = append(shapes, sessions)
			}
		}
	}
	if hours > p.PeriodsPerDay {
		shapes = append(shapes, p.splitShapes(hours)...)
	}

	var result []candidate
	for _, room := range p.Rooms {
		if !p.roomEligible(u, room) {
			continue
		}
		for _, sessions := range shapes {
			result = append(result, candidate{room: room, sessions: sessions})
		}
	}
	return result
}

// splitShapes covers units that cannot fit in a single day: the hours are
// divided as evenly as possible into the fewest blocks that fit a day, placed
// on consecutive days with a shared starting period.
func (p *Problem) splitShapes(hours int) [][]Session {
	blocks := (hours + p.PeriodsPerDay - 1) / p.PeriodsPerDay
	lens := make([]int, blocks)
	for i := range lens {
		lens[i] = hours / blocks
	}
	for i := 0; i < hours%blocks; i++ {
		lens[i]++
	}
	longest := lens[0]

	var shapes [][]Session
	for firstDay := 1; firstDay+blocks-1 <= p.DaysPerWeek; firstDay++ {
		for start := 1; start+longest-1 <= p.PeriodsPerDay; start++ {
			sessions := make([]Session, 0, blocks)
			for i, length := range lens {
				sessions = append(sessions, Session{Day: firstDay + i, PeriodStart: start, PeriodEnd: start + length - 1})
			}
			shapes = append(shapes, sessions)
		}
	}
	return shapes
}

// rankedCandidates orders candidates by descending placement score so greedy
// and backtracking both try the most promising shape first. Ordering is
// deterministic for identical inputs.
func rankedCandidates(p *Problem, u Unit, occ *occupancy) []candidate {
	cands := p.candidates(u)
	scores := make([]float64, len(cands))
	for i, c := range cands {
		scores[i] = candidateScore(p, u, c, occ)
	}
	order := make([]int, len(cands))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	ranked := make([]candidate, len(cands))
	for i, idx := range order {
		ranked[i] = cands[idx]
	}
	return ranked
}

// unitOrder sorts units by descending course-type priority, then weekly
// hours, so contested resources go to high-priority demand first.
func unitOrder(p *Problem) []int {
	order := make([]int, len(p.Units))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ua, ub := p.Units[order[a]], p.Units[order[b]]
		if ua.Priority != ub.Priority {
			return ua.Priority > ub.Priority
		}
		if ua.WeeklyHours != ub.WeeklyHours {
			return ua.WeeklyHours > ub.WeeklyHours
		}
		return ua.CourseID < ub.CourseID
	})
	return order
}
