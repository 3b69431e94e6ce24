package game

// clampWall pulls a wall coordinate that sits on the board boundary one
// cell inward, so previews near the edge resolve to a real lattice point.
func clampWall(v int) int {
	switch v {
	case -1:
		return 0
	case Size - 1:
		return WallSize - 1
	}
	return v
}

func (s *State) grid(dir Direction) *WallGrid {
	if dir == Horizontal {
		return &s.HorizontalWalls
	}
	return &s.VerticalWalls
}

// CanPlaceWall checks every placement rule without mutating s.
func CanPlaceWall(s *State, p Player, col, row int, dir Direction) error {
	_, _, err := checkWall(s, p, col, row, dir)
	return err
}

func checkWall(s *State, p Player, col, row int, dir Direction) (int, int, error) {
	if !p.Valid() {
		return 0, 0, ErrInvalidPlayer
	}
	if !dir.Valid() {
		return 0, 0, ErrWallOutOfBounds
	}
	if s.Finished() {
		return 0, 0, ErrGameOver
	}
	if s.WallsLeft(p) <= 0 {
		return 0, 0, ErrNoWallsLeft
	}
	col, row = clampWall(col), clampWall(row)
	if col < 0 || col >= WallSize || row < 0 || row >= WallSize {
		return 0, 0, ErrWallOutOfBounds
	}
	if overlaps(s, col, row, dir) {
		return 0, 0, ErrWallOverlap
	}

	g := s.grid(dir)
	g[col][row] = p
	ok := IsReachable(s)
	g[col][row] = Empty
	if !ok {
		return 0, 0, ErrWallBlocksPath
	}
	return col, row, nil
}

// overlaps rejects the same segment, a crossing wall at the same lattice
// point, and same-direction walls touching end to end.
func overlaps(s *State, col, row int, dir Direction) bool {
	if placed(s.HorizontalWalls[col][row]) || placed(s.VerticalWalls[col][row]) {
		return true
	}
	g := s.grid(dir)
	if dir == Horizontal {
		return (col > 0 && placed(g[col-1][row])) ||
			(col < WallSize-1 && placed(g[col+1][row]))
	}
	return (row > 0 && placed(g[col][row-1])) ||
		(row < WallSize-1 && placed(g[col][row+1]))
}

// PlaceWall commits a wall for p. A rejected placement leaves s untouched.
func PlaceWall(s *State, p Player, col, row int, dir Direction) error {
	if !p.Valid() {
		return ErrInvalidPlayer
	}
	if s.Finished() {
		return ErrGameOver
	}
	if s.ActivePlayer != p {
		return ErrNotYourTurn
	}
	col, row, err := checkWall(s, p, col, row, dir)
	if err != nil {
		return err
	}
	s.grid(dir)[col][row] = p
	s.useWall(p)
	s.endTurn()
	return nil
}
