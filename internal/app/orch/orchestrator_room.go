package orch

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/dkeye/Quoridor/internal/core"
	"github.com/dkeye/Quoridor/internal/domain"
	"github.com/dkeye/Quoridor/internal/game"
	"github.com/rs/zerolog/log"
)

const roomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomRoomID() (domain.RoomID, error) {
	b := make([]byte, domain.RoomIDLen)
	n := big.NewInt(int64(len(roomAlphabet)))
	for i := range b {
		k, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		b[i] = roomAlphabet[k.Int64()]
	}
	return domain.RoomID(b), nil
}

// CreateRoom writes a fresh room under a random id, drawing a new id on
// every collision until one is free or ctx ends.
func (o *Orchestrator) CreateRoom(ctx context.Context) (domain.RoomID, error) {
	for {
		id, err := o.newID()
		if err != nil {
			return "", err
		}
		created, err := o.rooms.Create(ctx, domain.NewRoom(id), o.opts.RoomTTL)
		if err != nil {
			return "", storeErr(err)
		}
		if created {
			log.Info().Str("module", "orch").Str("room", string(id)).Msg("room created")
			return id, nil
		}
		log.Warn().Str("module", "orch").Str("room", string(id)).Msg("room id collision")
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
}

func (o *Orchestrator) RoomExists(ctx context.Context, raw string) (domain.RoomID, bool, error) {
	id := domain.NormalizeRoomID(raw)
	if !id.Valid() {
		return id, false, nil
	}
	ok, err := o.rooms.Exists(ctx, id)
	if err != nil {
		return id, false, storeErr(err)
	}
	return id, ok, nil
}

func (o *Orchestrator) bound(cid core.ConnID) (domain.SessionID, domain.RoomID, error) {
	m, ok := o.Registry.Conn(cid)
	if !ok {
		return "", "", ErrUnknownConn
	}
	if m.RoomID == "" {
		return m.SID, "", ErrNotInRoom
	}
	return m.SID, m.RoomID, nil
}

// JoinRoom puts the connection into room raw. Joining keeps any color the
// session already holds. The caller receives chat history, the board,
// current seats and its own identity.
func (o *Orchestrator) JoinRoom(ctx context.Context, cid core.ConnID, raw string) error {
	id := domain.NormalizeRoomID(raw)
	if !id.Valid() {
		return ErrRoomNotFound
	}
	m, ok := o.Registry.Conn(cid)
	if !ok {
		return ErrUnknownConn
	}
	if m.RoomID != "" && m.RoomID != id {
		o.Registry.UpdateRoom(cid, "")
		if err := o.leave(ctx, m.SID, m.RoomID); err != nil && !errors.Is(err, ErrRoomNotFound) {
			return err
		}
	}
	user := o.Registry.User(ctx, m.SID)

	return o.do(ctx, id, func(ctx context.Context, r *domain.Room) (effect, func(), error) {
		r.Join(m.SID)
		r.EnsureGame()
		history, err := o.chats.Recent(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("room", string(id)).Msg("load chat history")
		}
		if history == nil {
			history = []domain.ChatMessage{}
		}
		seats := o.seats(ctx, r)
		return save, func() {
			o.Registry.UpdateRoom(cid, id)
			o.emitTo(cid, EventChatRecent, history)
			o.emitTo(cid, EventStateUpdate, r.GameState)
			for _, s := range seats {
				o.emitTo(cid, EventPlayerChanged, s)
			}
			o.emitTo(cid, EventWhoAmI, WhoAmI{Name: user.Username, Room: id, Color: seat(r.ColorOf(m.SID))})
			log.Info().Str("module", "orch").Str("cid", string(cid)).Str("sid", string(m.SID)).Str("room", string(id)).Msg("joined room")
		}, nil
	})
}

func (o *Orchestrator) seats(ctx context.Context, r *domain.Room) []PlayerChanged {
	var out []PlayerChanged
	for _, color := range []game.Player{game.Red, game.Blue} {
		if sid, ok := r.HolderOf(color); ok {
			out = append(out, PlayerChanged{Color: color, Name: o.Registry.User(ctx, sid).Username})
		}
	}
	return out
}

// Disconnect forgets the connection and removes its session from the room
// once no other connection of that session remains there. The room and
// its chat are deleted when nobody is left.
func (o *Orchestrator) Disconnect(ctx context.Context, cid core.ConnID) error {
	m, ok := o.Registry.Unbind(cid)
	if !ok {
		return nil
	}
	if len(o.Registry.ConnsOfSession(m.SID)) == 0 {
		o.Limiter.Forget(m.SID)
	}
	if m.RoomID == "" {
		return nil
	}
	err := o.leave(ctx, m.SID, m.RoomID)
	if errors.Is(err, ErrRoomNotFound) {
		return nil
	}
	return err
}

func (o *Orchestrator) leave(ctx context.Context, sid domain.SessionID, room domain.RoomID) error {
	return o.do(ctx, room, func(ctx context.Context, r *domain.Room) (effect, func(), error) {
		if len(o.Registry.MembersOfRoom(room)) == 0 {
			return drop, nil, nil
		}
		if o.Registry.SessionInRoom(sid, room) {
			return keep, nil, nil
		}
		color, ok := r.Leave(sid)
		if !ok {
			return keep, nil, nil
		}
		return save, func() {
			if color.Valid() {
				o.emitRoom(room, EventPlayerRemoved, PlayerRemoved{Color: color})
			}
			log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room)).Msg("left room")
		}, nil
	})
}

// RefreshState sends the board to the caller, creating it on first use.
func (o *Orchestrator) RefreshState(ctx context.Context, cid core.ConnID) error {
	_, room, err := o.bound(cid)
	if err != nil {
		return err
	}
	return o.do(ctx, room, func(_ context.Context, r *domain.Room) (effect, func(), error) {
		eff := keep
		if r.EnsureGame() {
			eff = save
		}
		return eff, func() { o.emitTo(cid, EventStateUpdate, r.GameState) }, nil
	})
}

// RestartGame replaces the board. Only a color holder may restart.
func (o *Orchestrator) RestartGame(ctx context.Context, cid core.ConnID) error {
	sid, room, err := o.bound(cid)
	if err != nil {
		return err
	}
	return o.do(ctx, room, func(_ context.Context, r *domain.Room) (effect, func(), error) {
		if !r.ColorOf(sid).Valid() {
			return keep, nil, ErrNotPlayer
		}
		r.RestartGame()
		return save, func() {
			o.emitRoom(room, EventStateUpdate, r.GameState)
			log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room)).Msg("game restarted")
		}, nil
	})
}

// PickColor seats the session on color. A color held by another session
// is left untouched and the caller gets domain.ErrColorTaken.
func (o *Orchestrator) PickColor(ctx context.Context, cid core.ConnID, color game.Player) error {
	sid, room, err := o.bound(cid)
	if err != nil {
		return err
	}
	name := o.Registry.User(ctx, sid).Username
	return o.do(ctx, room, func(_ context.Context, r *domain.Room) (effect, func(), error) {
		prev, err := r.PickColor(sid, color)
		if err != nil {
			return keep, nil, err
		}
		if prev == color {
			return keep, func() { o.emitTo(cid, EventBecomePlayer, BecomePlayer{Color: color}) }, nil
		}
		return save, func() {
			if prev.Valid() {
				o.emitRoom(room, EventPlayerRemoved, PlayerRemoved{Color: prev})
			}
			o.emitRoom(room, EventPlayerChanged, PlayerChanged{Color: color, Name: name})
			o.emitSession(sid, room, EventBecomePlayer, BecomePlayer{Color: color})
		}, nil
	})
}
