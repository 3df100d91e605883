package solver

// Optimal explores placements with backtracking, keeping the best-scoring
// complete assignment found within its iteration budget. It accepts longer
// runtimes for a higher-quality solution but never relaxes a hard constraint.
type Optimal struct {
	Budget Budget
}

// Solve implements Engine.
func (o Optimal) Solve(p *Problem) (*Solution, error) {
	maxIterations := o.Budget.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 100000
	}

	search := &backtracker{
		p:             p,
		occ:           newOccupancy(p),
		order:         unitOrder(p),
		maxIterations: maxIterations,
		blocked:       make(map[string]bool),
	}
	search.placements = make([]Placement, 0, len(p.Units))
	search.run(0)

	if search.best == nil {
		blocked := make([]string, 0, len(search.blocked))
		for _, unitIdx := range search.order {
			if search.blocked[p.Units[unitIdx].CourseID] {
				blocked = append(blocked, p.Units[unitIdx].CourseID)
			}
		}
		if len(blocked) == 0 {
			// Budget ran out before any complete assignment; report the
			// frontier unit the search never got past.
			blocked = append(blocked, p.Units[search.order[search.deepest]].CourseID)
		}
		return nil, &InfeasibleError{Units: blocked}
	}

	search.best.Iterations = search.iterations
	return search.best, nil
}

type backtracker struct {
	p             *Problem
	occ           *occupancy
	order         []int
	placements    []Placement
	best          *Solution
	iterations    int
	maxIterations int
	deepest       int
	blocked       map[string]bool
}

func (s *backtracker) run(depth int) {
	if s.iterations >= s.maxIterations {
		return
	}
	if depth > s.deepest {
		s.deepest = depth
	}
	if depth == len(s.order) {
		score := solutionScore(s.p, s.placements, s.occ)
		if s.best == nil || score > s.best.Score {
			copied := make([]Placement, len(s.placements))
			copy(copied, s.placements)
			s.best = &Solution{Placements: copied, Score: score}
		}
		return
	}

	unitIdx := s.order[depth]
	u := s.p.Units[unitIdx]
	feasible := false
	for _, c := range rankedCandidates(s.p, u, s.occ) {
		s.iterations++
		if s.iterations >= s.maxIterations && s.best != nil {
			return
		}
		if !s.occ.canPlace(u, c) {
			continue
		}
		feasible = true
		s.occ.place(u, c)
		s.placements = append(s.placements, Placement{
			UnitIndex: unitIdx,
			RoomID:    c.room.ID,
			Sessions:  c.sessions,
			Weeks:     u.Weeks,
		})
		s.run(depth + 1)
		s.placements = s.placements[:len(s.placements)-1]
		s.occ.remove(u, c)
	}
	if !feasible && depth >= s.deepest {
		s.blocked[u.CourseID] = true
	}
}
