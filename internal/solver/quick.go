package solver

// Quick is the greedy engine: single pass in priority order, first feasible
// candidate wins, no backtracking. Bounded by the candidate space, so it
// always terminates fast.
type Quick struct{}

// Solve implements Engine.
func (Quick) Solve(p *Problem) (*Solution, error) {
	occ := newOccupancy(p)
	placements, iterations, blocked := greedyPass(p, occ)
	if len(blocked) > 0 {
		return nil, &InfeasibleError{Units: blocked}
	}
	return &Solution{
		Placements: placements,
		Score:      solutionScore(p, placements, occ),
		Iterations: iterations,
	}, nil
}

// greedyPass places every unit it can, returning the placements, the number
// of candidates probed and the course ids it could not place. Shared by the
// Balanced engine as its starting point.
func greedyPass(p *Problem, occ *occupancy) ([]Placement, int, []string) {
	order := unitOrder(p)
	placements := make([]Placement, 0, len(p.Units))
	iterations := 0
	var blocked []string

	for _, unitIdx := range order {
		u := p.Units[unitIdx]
		placed := false
		for _, c := range rankedCandidates(p, u, occ) {
			iterations++
			if !occ.canPlace(u, c) {
				continue
			}
			occ.place(u, c)
			placements = append(placements, Placement{
				UnitIndex: unitIdx,
				RoomID:    c.room.ID,
				Sessions:  c.sessions,
				Weeks:     u.Weeks,
			})
			placed = true
			break
		}
		if !placed {
			blocked = append(blocked, u.CourseID)
		}
	}
	return placements, iterations, blocked
}
