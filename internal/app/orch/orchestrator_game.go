package orch

import (
	"context"

	"github.com/dkeye/Quoridor/internal/core"
	"github.com/dkeye/Quoridor/internal/domain"
	"github.com/dkeye/Quoridor/internal/game"
	"github.com/rs/zerolog/log"
)

type MoveKind string

const (
	MovePawn MoveKind = "move"
	MoveWall MoveKind = "wall"
)

type MoveRequest struct {
	Kind      MoveKind
	Col       int
	Row       int
	Direction game.Direction
}

// SubmitMove runs a pawn move or wall placement for the caller's color
// and broadcasts the new board. Rejections leave the room untouched.
func (o *Orchestrator) SubmitMove(ctx context.Context, cid core.ConnID, req MoveRequest) error {
	sid, room, err := o.bound(cid)
	if err != nil {
		return err
	}
	return o.do(ctx, room, func(_ context.Context, r *domain.Room) (effect, func(), error) {
		color := r.ColorOf(sid)
		if !color.Valid() {
			return keep, nil, ErrNotPlayer
		}
		r.EnsureGame()

		var err error
		switch req.Kind {
		case MovePawn:
			err = game.ApplyMove(r.GameState, color, req.Col, req.Row)
		case MoveWall:
			err = game.PlaceWall(r.GameState, color, req.Col, req.Row, req.Direction)
		default:
			err = ErrBadMove
		}
		if err != nil {
			return keep, nil, err
		}
		return save, func() {
			o.emitRoom(room, EventStateUpdate, r.GameState)
			log.Debug().Str("module", "orch").Str("room", string(room)).Str("color", string(color)).
				Str("kind", string(req.Kind)).Int("col", req.Col).Int("row", req.Row).
				Str("status", string(r.GameState.Status)).Msg("move applied")
		}, nil
	})
}
