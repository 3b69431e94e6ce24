// Package game holds the Quoridor board model and its rules engine.
// Everything here is pure: no I/O, no goroutines, no clocks.
package game

import "slices"

const (
	Size           = 9
	WallSize       = Size - 1
	WallsPerPlayer = 10
)

type Player string

const (
	Empty Player = "EMPTY"
	Red   Player = "RED"
	Blue  Player = "BLUE"
)

// Opponent returns the other seat; Empty has no opponent.
func (p Player) Opponent() Player {
	switch p {
	case Red:
		return Blue
	case Blue:
		return Red
	}
	return Empty
}

func (p Player) Valid() bool { return p == Red || p == Blue }

// GoalRow is the row a pawn must reach to win.
func (p Player) GoalRow() int {
	if p == Red {
		return 0
	}
	return Size - 1
}

type Status string

const (
	Playing Status = "PLAYING"
	RedWon  Status = "RED_WON"
	BluWon  Status = "BLU_WON"
)

type Direction string

const (
	Horizontal Direction = "HORIZONTAL"
	Vertical   Direction = "VERTICAL"
)

func (d Direction) Valid() bool { return d == Horizontal || d == Vertical }

type Pos struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

func (p Pos) inBoard() bool {
	return p.Col >= 0 && p.Col < Size && p.Row >= 0 && p.Row < Size
}

// WallGrid is indexed [col][row].
type WallGrid [WallSize][WallSize]Player

// State is the whole board. It is owned by exactly one room and replaced
// wholesale on restart.
type State struct {
	RedPos          Pos      `json:"redPos"`
	BluPos          Pos      `json:"bluPos"`
	RedWallsLeft    int      `json:"redWallsLeft"`
	BluWallsLeft    int      `json:"bluWallsLeft"`
	HorizontalWalls WallGrid `json:"horizontalWalls"`
	VerticalWalls   WallGrid `json:"verticalWalls"`
	ValidMovesRed   []Pos    `json:"validMovesRed"`
	ValidMovesBlu   []Pos    `json:"validMovesBlu"`
	Status          Status   `json:"status"`
	ActivePlayer    Player   `json:"activePlayer"`
}

func NewState() *State {
	s := &State{
		RedPos:       Pos{Col: Size / 2, Row: Size - 1},
		BluPos:       Pos{Col: Size / 2, Row: 0},
		RedWallsLeft: WallsPerPlayer,
		BluWallsLeft: WallsPerPlayer,
		Status:       Playing,
		ActivePlayer: Red,
	}
	for c := 0; c < WallSize; c++ {
		for r := 0; r < WallSize; r++ {
			s.HorizontalWalls[c][r] = Empty
			s.VerticalWalls[c][r] = Empty
		}
	}
	s.refreshMoves()
	return s
}

// Clone returns a deep copy; the wall grids are arrays and copy by value.
func (s *State) Clone() *State {
	cp := *s
	cp.ValidMovesRed = slices.Clone(s.ValidMovesRed)
	cp.ValidMovesBlu = slices.Clone(s.ValidMovesBlu)
	return &cp
}

func (s *State) PosOf(p Player) Pos {
	if p == Red {
		return s.RedPos
	}
	return s.BluPos
}

func (s *State) setPos(p Player, pos Pos) {
	if p == Red {
		s.RedPos = pos
	} else {
		s.BluPos = pos
	}
}

func (s *State) WallsLeft(p Player) int {
	if p == Red {
		return s.RedWallsLeft
	}
	return s.BluWallsLeft
}

func (s *State) useWall(p Player) {
	if p == Red {
		s.RedWallsLeft--
	} else {
		s.BluWallsLeft--
	}
}

// CachedMoves returns the legal destinations stored on the state.
func (s *State) CachedMoves(p Player) []Pos {
	if p == Red {
		return s.ValidMovesRed
	}
	return s.ValidMovesBlu
}

func (s *State) Finished() bool { return s.Status != Playing }

func (s *State) refreshMoves() {
	s.ValidMovesRed = LegalMoves(s, Red)
	s.ValidMovesBlu = LegalMoves(s, Blue)
}

func (s *State) endTurn() {
	s.ActivePlayer = s.ActivePlayer.Opponent()
	s.refreshMoves()
}
