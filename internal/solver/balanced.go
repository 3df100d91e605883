package solver

// Balanced runs the greedy pass and then spends a bounded iteration budget on
// hill-climbing single-unit moves, exiting early once the score clears the
// configured target.
type Balanced struct {
	Budget Budget
}

// Solve implements Engine.
func (b Balanced) Solve(p *Problem) (*Solution, error) {
	occ := newOccupancy(p)
	placements, iterations, blocked := greedyPass(p, occ)
	if len(blocked) > 0 {
		return nil, &InfeasibleError{Units: blocked}
	}

	maxIterations := b.Budget.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 1000
	}

	score := solutionScore(p, placements, occ)
	for iterations < maxIterations && score < b.Budget.TargetScore {
		improved := false
		for i := range placements {
			moved, probes := b.improveUnit(p, occ, placements, i, &score)
			iterations += probes
			if moved {
				improved = true
			}
			if iterations >= maxIterations {
				break
			}
		}
		if !improved {
			break
		}
	}

	return &Solution{Placements: placements, Score: score, Iterations: iterations}, nil
}

// improveUnit tries to move one placed unit to a better candidate. The move
// is kept only when the whole-solution score improves.
func (b Balanced) improveUnit(p *Problem, occ *occupancy, placements []Placement, i int, score *float64) (bool, int) {
	current := placements[i]
	u := p.Units[current.UnitIndex]
	currentCand := candidate{room: roomByID(p, current.RoomID), sessions: current.Sessions}

	occ.remove(u, currentCand)
	probes := 0
	for _, c := range rankedCandidates(p, u, occ) {
		probes++
		if sameCandidate(c, currentCand) || !occ.canPlace(u, c) {
			continue
		}
		occ.place(u, c)
		placements[i] = Placement{UnitIndex: current.UnitIndex, RoomID: c.room.ID, Sessions: c.sessions, Weeks: u.Weeks}
		if next := solutionScore(p, placements, occ); next > *score {
			*score = next
			return true, probes
		}
		occ.remove(u, c)
	}

	occ.place(u, currentCand)
	placements[i] = current
	return false, probes
}

func sameCandidate(a, b candidate) bool {
	if a.room.ID != b.room.ID || len(a.sessions) != len(b.sessions) {
		return false
	}
	for i := range a.sessions {
		if a.sessions[i] != b.sessions[i] {
			return false
		}
	}
	return true
}
