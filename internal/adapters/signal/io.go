package signal

import (
	"bytes"
	"context"
	"time"

	"github.com/dkeye/Quoridor/internal/app/orch"
	"github.com/dkeye/Quoridor/internal/core"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cid core.ConnID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("readPump closing")
		c.Close()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
		defer cancel()
		if err := ctl.Orch.Disconnect(dctx, cid); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("disconnect")
		}
	}()

	pongWait := ctl.PingPeriod * 10 / 9
	if ctl.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.ReadLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			ctl.handleSignal(ctx, cid, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, cid core.ConnID, c *WsSignalConn, data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendJSON(c, orch.EventError, orch.ErrorEvent{Code: "bad_json"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	switch env.Type {
	case "join-room":
		ctl.handleJoin(ctx, cid, c, env.Data)
	case "refresh-state":
		ctl.handleRefresh(ctx, cid)
	case "restart-game":
		ctl.handleRestart(ctx, cid)
	case "pick-color":
		ctl.handlePickColor(ctx, cid, c, env.Data)
	case "submit-move", "submit-state":
		ctl.handleSubmitMove(ctx, cid, c, env.Data)
	case "rename":
		ctl.handleRename(ctx, cid, c, env.Data)
	case "chat-message":
		ctl.handleChat(ctx, cid, c, env.Data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendJSON(c, orch.EventError, orch.ErrorEvent{Code: "unknown_event"})
	}
}

// scalar is implemented by payloads that clients may also send as a bare
// JSON string, e.g. "join-room" with just the room id.
type scalar interface {
	setScalar(string)
}

func decode[T any](raw json.RawMessage, dst *T) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		if s, ok := any(dst).(scalar); ok {
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			s.setScalar(v)
			return validate.Struct(dst)
		}
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, event string, v any) {
	b, err := core.Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) badPayload(c *WsSignalConn, event string, err error) {
	log.Warn().Err(err).Str("module", "signal").Str("type", event).Msg("bad payload")
	ctl.sendJSON(c, orch.EventError, orch.ErrorEvent{Code: "bad_payload"})
}
