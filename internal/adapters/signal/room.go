package signal

import (
	"context"

	"github.com/dkeye/Quoridor/internal/core"
	"github.com/dkeye/Quoridor/internal/game"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

type joinPayload struct {
	Room string `json:"room" validate:"required,max=32"`
}

func (p *joinPayload) setScalar(s string) { p.Room = s }

type colorPayload struct {
	Color string `json:"color" validate:"required,oneof=RED BLUE"`
}

func (p *colorPayload) setScalar(s string) { p.Color = s }

func (ctl *SignalWSController) handleJoin(ctx context.Context, cid core.ConnID, conn *WsSignalConn, data json.RawMessage) {
	var p joinPayload
	if err := decode(data, &p); err != nil {
		ctl.badPayload(conn, "join-room", err)
		return
	}
	log.Info().Str("module", "signal").Str("cid", string(cid)).Str("room_id", p.Room).Msg("join")
	ctl.Orch.Report(cid, ctl.Orch.JoinRoom(ctx, cid, p.Room))
}

func (ctl *SignalWSController) handleRefresh(ctx context.Context, cid core.ConnID) {
	ctl.Orch.Report(cid, ctl.Orch.RefreshState(ctx, cid))
}

func (ctl *SignalWSController) handleRestart(ctx context.Context, cid core.ConnID) {
	log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("restart")
	ctl.Orch.Report(cid, ctl.Orch.RestartGame(ctx, cid))
}

func (ctl *SignalWSController) handlePickColor(ctx context.Context, cid core.ConnID, conn *WsSignalConn, data json.RawMessage) {
	var p colorPayload
	if err := decode(data, &p); err != nil {
		ctl.badPayload(conn, "pick-color", err)
		return
	}
	ctl.Orch.Report(cid, ctl.Orch.PickColor(ctx, cid, game.Player(p.Color)))
}
