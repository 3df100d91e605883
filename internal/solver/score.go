package solver

import "math"

const (
	baseUnitScore = 10.0
	maxUnitScore  = 20.0
)

// candidateScore rates a single placement in isolation plus the current
// day-load balance; it drives candidate ordering and solution scoring.
func candidateScore(p *Problem, u Unit, c candidate, occ *occupancy) float64 {
	score := baseUnitScore

	for _, sess := range c.sessions {
		score += preferredBonus(p, sess)
		if p.Constraints.AvoidEvening {
			for period := sess.PeriodStart; period <= sess.PeriodEnd; period++ {
				if p.EveningStart > 0 && period >= p.EveningStart {
					score -= 2
				}
			}
		}
		if occ != nil {
			weight := 0.1
			if p.Constraints.BalanceWeekdays {
				weight = 0.5
			}
			score -= weight * float64(occ.dayLoad[sess.Day])
		}
	}

	if p.Constraints.PreferConsecutive && u.WeeklyHours > 1 && len(c.sessions) == 1 {
		score += 3
	}

	if p.Constraints.OptimizeRoomUtilization {
		if seats := u.Seats(); seats > 0 && c.room.Capacity > 0 {
			waste := float64(c.room.Capacity-seats) / float64(c.room.Capacity)
			score -= 3 * waste
		}
	}

	return score
}

// preferredBonus returns the best matching preferred-slot bonus for a
// session. A session matches when it lies fully inside the preferred range on
// the same day; the bonus is proportional to the slot's priority level.
func preferredBonus(p *Problem, sess Session) float64 {
	best := 0.0
	for _, slot := range p.Preferred {
		if slot.Day != sess.Day {
			continue
		}
		if sess.PeriodStart >= slot.PeriodStart && sess.PeriodEnd <= slot.PeriodEnd {
			if bonus := float64(slot.Priority); bonus > best {
				best = bonus
			}
		}
	}
	return best
}

// solutionScore aggregates per-unit scores and a global weekday-balance
// penalty into a 0-100 scale.
func solutionScore(p *Problem, placements []Placement, occ *occupancy) float64 {
	if len(placements) == 0 {
		return 0
	}
	total := 0.0
	for _, pl := range placements {
		u := p.Units[pl.UnitIndex]
		c := candidate{room: roomByID(p, pl.RoomID), sessions: pl.Sessions}
		unitScore := candidateScore(p, u, c, nil)
		total += clamp(unitScore, 0, maxUnitScore)
	}
	score := total / (maxUnitScore * float64(len(placements))) * 100

	score -= balancePenalty(p, occ)
	return clamp(score, 0, 100)
}

// balancePenalty measures how unevenly assigned hours spread across days.
func balancePenalty(p *Problem, occ *occupancy) float64 {
	if occ == nil || p.DaysPerWeek == 0 {
		return 0
	}
	total := 0
	for day := 1; day <= p.DaysPerWeek; day++ {
		total += occ.dayLoad[day]
	}
	mean := float64(total) / float64(p.DaysPerWeek)
	deviation := 0.0
	for day := 1; day <= p.DaysPerWeek; day++ {
		deviation += math.Abs(float64(occ.dayLoad[day]) - mean)
	}
	deviation /= float64(p.DaysPerWeek)

	weight := 0.5
	if p.Constraints.BalanceWeekdays {
		weight = 2
	}
	return deviation * weight
}

func roomByID(p *Problem, id string) Room {
	for _, r := range p.Rooms {
		if r.ID == id {
			return r
		}
	}
	return Room{ID: id}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
