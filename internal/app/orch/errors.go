package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Quoridor/internal/core"
	"github.com/dkeye/Quoridor/internal/domain"
	"github.com/dkeye/Quoridor/internal/game"
	"github.com/rs/zerolog/log"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotInRoom        = errors.New("connection not in a room")
	ErrUnknownConn      = errors.New("unknown connection")
	ErrNotPlayer        = errors.New("session holds no color")
	ErrRateLimited      = errors.New("rate limited")
	ErrBadMove          = errors.New("bad move kind")
	ErrClosed           = errors.New("orchestrator closed")
)

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// Reason maps a rejection to the code sent in a rejected event.
func Reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrColorTaken):
		return "color_taken"
	case errors.Is(err, domain.ErrInvalidColor):
		return "invalid_color"
	case errors.Is(err, domain.ErrNotInRoom), errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, domain.ErrUsernameEmpty):
		return "invalid_name"
	case errors.Is(err, domain.ErrChatEmpty):
		return "empty_message"
	case errors.Is(err, ErrNotPlayer):
		return "not_player"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrBadMove):
		return "bad_move"
	}
	return game.Reason(err)
}

// Report turns the error of an operation started by cid into the event
// that connection should see.
func (o *Orchestrator) Report(cid core.ConnID, err error) {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, ErrClosed),
		errors.Is(err, ErrUnknownConn):
		return
	case errors.Is(err, ErrRoomNotFound):
		o.emitTo(cid, EventRedirect, Redirect{Redirect: true, URL: "/"})
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		log.Error().Err(err).Str("module", "orch").Str("cid", string(cid)).Msg("store unavailable")
		o.emitTo(cid, EventError, ErrorEvent{Code: "store_unavailable"})
	default:
		log.Debug().Err(err).Str("module", "orch").Str("cid", string(cid)).Msg("rejected")
		o.emitTo(cid, EventRejected, Rejected{Reason: Reason(err)})
	}
}
