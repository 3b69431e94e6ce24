package signal

import (
	"context"

	"github.com/dkeye/Quoridor/internal/app/orch"
	"github.com/dkeye/Quoridor/internal/core"
	"github.com/dkeye/Quoridor/internal/game"
	"github.com/goccy/go-json"
)

type movePayload struct {
	Kind      string `json:"kind" validate:"required,oneof=move wall"`
	Col       int    `json:"col" validate:"min=-1,max=8"`
	Row       int    `json:"row" validate:"min=-1,max=8"`
	Direction string `json:"direction" validate:"omitempty,oneof=HORIZONTAL VERTICAL"`
}

func (ctl *SignalWSController) handleSubmitMove(ctx context.Context, cid core.ConnID, conn *WsSignalConn, data json.RawMessage) {
	var p movePayload
	if err := decode(data, &p); err != nil {
		ctl.badPayload(conn, "submit-move", err)
		return
	}
	req := orch.MoveRequest{
		Kind:      orch.MoveKind(p.Kind),
		Col:       p.Col,
		Row:       p.Row,
		Direction: game.Direction(p.Direction),
	}
	ctl.Orch.Report(cid, ctl.Orch.SubmitMove(ctx, cid, req))
}
