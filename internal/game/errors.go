package game

import "errors"

var (
	ErrGameOver        = errors.New("game is over")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrInvalidPlayer   = errors.New("invalid player")
	ErrIllegalMove     = errors.New("illegal move")
	ErrNoWallsLeft     = errors.New("no walls left")
	ErrWallOutOfBounds = errors.New("wall out of bounds")
	ErrWallOverlap     = errors.New("wall overlaps another wall")
	ErrWallBlocksPath  = errors.New("wall blocks a player from the goal")
)

var reasons = map[error]string{
	ErrGameOver:        "game_over",
	ErrNotYourTurn:     "not_your_turn",
	ErrInvalidPlayer:   "invalid_player",
	ErrIllegalMove:     "illegal_move",
	ErrNoWallsLeft:     "no_walls_left",
	ErrWallOutOfBounds: "wall_out_of_bounds",
	ErrWallOverlap:     "wall_overlap",
	ErrWallBlocksPath:  "wall_blocks_path",
}

// Reason maps a rules error to the code sent to clients. Unknown errors
// map to "rejected".
func Reason(err error) string {
	for e, code := range reasons {
		if errors.Is(err, e) {
			return code
		}
	}
	return "rejected"
}
