package game

// IsReachable holds when both pawns still have a path to their goal rows.
func IsReachable(s *State) bool {
	return CanReachGoal(s, Red) && CanReachGoal(s, Blue)
}

// CanReachGoal runs a breadth-first search from p's pawn over open cell
// edges. Pawns never block each other here, so jumps do not matter.
func CanReachGoal(s *State, p Player) bool {
	if !p.Valid() {
		return false
	}
	var visited [Size][Size]bool
	start := s.PosOf(p)
	goal := p.GoalRow()

	queue := []Pos{start}
	visited[start.Col][start.Row] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.Row == goal {
			return true
		}
		for _, d := range steps {
			if blocked(s, cur, d) {
				continue
			}
			next := cur.add(d)
			if visited[next.Col][next.Row] {
				continue
			}
			visited[next.Col][next.Row] = true
			queue = append(queue, next)
		}
	}
	return false
}
