package signal

import "github.com/dkeye/Quoridor/internal/app/orch"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, orch.EventPong, nil)
}
