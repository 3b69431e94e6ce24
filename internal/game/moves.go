package game

import "slices"

type step struct{ dc, dr int }

var (
	up    = step{0, -1}
	down  = step{0, 1}
	left  = step{-1, 0}
	right = step{1, 0}
)

// order matters: clients render the cached list as-is.
var steps = [4]step{up, down, left, right}

func (d step) sides() [2]step {
	if d.dc == 0 {
		return [2]step{left, right}
	}
	return [2]step{up, down}
}

func (p Pos) add(d step) Pos { return Pos{Col: p.Col + d.dc, Row: p.Row + d.dr} }

func placed(p Player) bool { return p == Red || p == Blue }

// blocked reports whether a wall or the board edge sits between pos and
// its neighbour in direction d.
func blocked(s *State, pos Pos, d step) bool {
	next := pos.add(d)
	if !next.inBoard() {
		return true
	}
	switch d {
	case up, down:
		// horizontal wall row sits between pos.Row and next.Row
		r := min(pos.Row, next.Row)
		for c := pos.Col - 1; c <= pos.Col; c++ {
			if c >= 0 && c < WallSize && placed(s.HorizontalWalls[c][r]) {
				return true
			}
		}
	default:
		c := min(pos.Col, next.Col)
		for r := pos.Row - 1; r <= pos.Row; r++ {
			if r >= 0 && r < WallSize && placed(s.VerticalWalls[c][r]) {
				return true
			}
		}
	}
	return false
}

// LegalMoves computes the destinations open to p from its current cell,
// including straight jumps over an adjacent opponent and the diagonal
// side-steps used when the straight jump is blocked.
func LegalMoves(s *State, p Player) []Pos {
	if !p.Valid() {
		return nil
	}
	from := s.PosOf(p)
	opp := s.PosOf(p.Opponent())

	moves := make([]Pos, 0, 5)
	for _, d := range steps {
		if blocked(s, from, d) {
			continue
		}
		next := from.add(d)
		if next != opp {
			moves = append(moves, next)
			continue
		}
		if !blocked(s, opp, d) {
			moves = append(moves, opp.add(d))
			continue
		}
		for _, side := range d.sides() {
			if !blocked(s, opp, side) {
				moves = append(moves, opp.add(side))
			}
		}
	}
	return moves
}

// ApplyMove moves p's pawn to (col,row) if that cell is in p's cached legal
// moves. On success the turn passes to the opponent, unless the move wins.
func ApplyMove(s *State, p Player, col, row int) error {
	if !p.Valid() {
		return ErrInvalidPlayer
	}
	if s.Finished() {
		return ErrGameOver
	}
	if s.ActivePlayer != p {
		return ErrNotYourTurn
	}
	to := Pos{Col: col, Row: row}
	if !slices.Contains(s.CachedMoves(p), to) {
		return ErrIllegalMove
	}

	s.setPos(p, to)
	if to.Row == p.GoalRow() {
		if p == Red {
			s.Status = RedWon
		} else {
			s.Status = BluWon
		}
	}
	s.endTurn()
	return nil
}
