package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Quoridor/internal/core"
	"github.com/dkeye/Quoridor/internal/domain"
	"github.com/rs/zerolog/log"
)

// Rename stores a new display name for the caller's session and announces
// it in every room the session is in.
func (o *Orchestrator) Rename(ctx context.Context, cid core.ConnID, name string) error {
	m, ok := o.Registry.Conn(cid)
	if !ok {
		return ErrUnknownConn
	}
	clean, err := o.Registry.Rename(ctx, m.SID, name)
	if errors.Is(err, domain.ErrUsernameEmpty) {
		return err
	}
	if err != nil {
		return storeErr(err)
	}

	rooms := make(map[domain.RoomID]struct{})
	for _, c := range o.Registry.ConnsOfSession(m.SID) {
		if c.RoomID == "" {
			o.emitTo(c.CID, EventNameUpdated, NameUpdated{Name: clean})
			continue
		}
		rooms[c.RoomID] = struct{}{}
	}
	for room := range rooms {
		err := o.do(ctx, room, func(_ context.Context, r *domain.Room) (effect, func(), error) {
			color := r.ColorOf(m.SID)
			return keep, func() {
				o.emitRoom(room, EventNameUpdated, NameUpdated{Name: clean, Color: seat(color)})
				if color.Valid() {
					o.emitRoom(room, EventPlayerChanged, PlayerChanged{Color: color, Name: clean})
				}
			}, nil
		})
		if err != nil && !errors.Is(err, ErrRoomNotFound) {
			return err
		}
	}
	log.Info().Str("module", "orch").Str("sid", string(m.SID)).Str("name", clean).Msg("renamed")
	return nil
}

// ChatMessage appends to the room's chat history and broadcasts it.
func (o *Orchestrator) ChatMessage(ctx context.Context, cid core.ConnID, text string) error {
	sid, room, err := o.bound(cid)
	if err != nil {
		return err
	}
	if !o.Limiter.Allow(sid) {
		return ErrRateLimited
	}
	msg, err := domain.NewChatMessage(o.Registry.User(ctx, sid).Username, text)
	if err != nil {
		return err
	}
	return o.do(ctx, room, func(ctx context.Context, r *domain.Room) (effect, func(), error) {
		if !r.Has(sid) {
			return keep, nil, ErrNotInRoom
		}
		if err := o.chats.Append(ctx, room, msg, o.opts.ChatTTL, o.opts.ChatHistory); err != nil {
			return keep, nil, storeErr(err)
		}
		return keep, func() { o.emitRoom(room, EventChatMessage, msg) }, nil
	})
}
