package signal

import (
	"context"

	"github.com/dkeye/Quoridor/internal/core"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

type renamePayload struct {
	Name string `json:"name" validate:"required,max=64"`
}

func (p *renamePayload) setScalar(s string) { p.Name = s }

type chatPayload struct {
	Msg string `json:"msg" validate:"required,max=2000"`
}

func (p *chatPayload) setScalar(s string) { p.Msg = s }

func (ctl *SignalWSController) handleRename(ctx context.Context, cid core.ConnID, conn *WsSignalConn, data json.RawMessage) {
	var p renamePayload
	if err := decode(data, &p); err != nil {
		ctl.badPayload(conn, "rename", err)
		return
	}
	log.Info().Str("module", "signal").Str("cid", string(cid)).Str("name", p.Name).Msg("rename")
	ctl.Orch.Report(cid, ctl.Orch.Rename(ctx, cid, p.Name))
}

func (ctl *SignalWSController) handleChat(ctx context.Context, cid core.ConnID, conn *WsSignalConn, data json.RawMessage) {
	var p chatPayload
	if err := decode(data, &p); err != nil {
		ctl.badPayload(conn, "chat-message", err)
		return
	}
	ctl.Orch.Report(cid, ctl.Orch.ChatMessage(ctx, cid, p.Msg))
}
