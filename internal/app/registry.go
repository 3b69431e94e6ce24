package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Quoridor/internal/core"
	"github.com/dkeye/Quoridor/internal/domain"
	"github.com/rs/zerolog/log"
)

type connEntry struct {
	SID    domain.SessionID
	RoomID domain.RoomID
	Signal core.SignalConnection
	Cancel context.CancelFunc
}

// Member is a snapshot of one live connection.
type Member struct {
	CID    core.ConnID
	SID    domain.SessionID
	RoomID domain.RoomID
	Signal core.SignalConnection
}

// Registry tracks live connections, the transport room each one sits in,
// and cached display names.
type Registry struct {
	mu         sync.RWMutex
	conns      map[core.ConnID]*connEntry
	users      map[domain.SessionID]*domain.User
	sessions   core.SessionStore
	sessionTTL time.Duration
}

func NewRegistry(sessions core.SessionStore, sessionTTL time.Duration) *Registry {
	return &Registry{
		conns:      make(map[core.ConnID]*connEntry),
		users:      make(map[domain.SessionID]*domain.User),
		sessions:   sessions,
		sessionTTL: sessionTTL,
	}
}

// User returns the cached user, loading the stored name on first use.
// A store failure falls back to the default name.
func (r *Registry) User(ctx context.Context, sid domain.SessionID) domain.User {
	r.mu.RLock()
	u, ok := r.users[sid]
	r.mu.RUnlock()
	if ok {
		return *u
	}

	u = domain.NewUser(sid)
	if r.sessions != nil {
		name, err := r.sessions.Name(ctx, sid)
		switch {
		case err == nil:
			u.Username = name
		case !errors.Is(err, core.ErrNotFound):
			log.Warn().Err(err).Str("module", "app.registry").Str("sid", string(sid)).Msg("load username")
			return *u
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.users[sid]; ok {
		return *cached
	}
	r.users[sid] = u
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("username", u.Username).Msg("loaded user")
	return *u
}

// Rename stores the cleaned name and updates the cache.
func (r *Registry) Rename(ctx context.Context, sid domain.SessionID, name string) (string, error) {
	clean, err := domain.CleanUsername(name)
	if err != nil {
		return "", err
	}
	if r.sessions != nil {
		if err := r.sessions.SetName(ctx, sid, clean, r.sessionTTL); err != nil {
			return "", err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[sid]
	if !ok {
		u = domain.NewUser(sid)
		r.users[sid] = u
	}
	u.Username = clean
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("username", clean).Msg("updated username")
	return clean, nil
}

func (r *Registry) BindSignal(cid core.ConnID, sid domain.SessionID, sig core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[cid] = &connEntry{SID: sid, Signal: sig, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Str("sid", string(sid)).Msg("bound signal")
}

// Unbind forgets the connection and returns what it was bound to.
func (r *Registry) Unbind(cid core.ConnID) (Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok {
		return Member{}, false
	}
	delete(r.conns, cid)
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Str("room", string(e.RoomID)).Msg("unbind connection")
	return Member{CID: cid, SID: e.SID, RoomID: e.RoomID, Signal: e.Signal}, true
}

func (r *Registry) Conn(cid core.ConnID) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok {
		return Member{}, false
	}
	return Member{CID: cid, SID: e.SID, RoomID: e.RoomID, Signal: e.Signal}, true
}

func (r *Registry) UpdateRoom(cid core.ConnID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok {
		return false
	}
	e.RoomID = room
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Str("room", string(room)).Msg("updated room")
	return true
}

func (r *Registry) MembersOfRoom(room domain.RoomID) []Member {
	return r.filter(func(e *connEntry) bool { return e.RoomID == room })
}

func (r *Registry) ConnsOfSession(sid domain.SessionID) []Member {
	return r.filter(func(e *connEntry) bool { return e.SID == sid })
}

func (r *Registry) All() []Member {
	return r.filter(func(*connEntry) bool { return true })
}

// SessionInRoom reports whether any connection of sid is still in room.
func (r *Registry) SessionInRoom(sid domain.SessionID, room domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.conns {
		if e.SID == sid && e.RoomID == room {
			return true
		}
	}
	return false
}

func (r *Registry) filter(keep func(*connEntry) bool) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Member, 0, len(r.conns))
	for cid, e := range r.conns {
		if keep(e) {
			out = append(out, Member{CID: cid, SID: e.SID, RoomID: e.RoomID, Signal: e.Signal})
		}
	}
	return out
}

func (r *Registry) Cancel(cid core.ConnID) bool {
	r.mu.RLock()
	e, ok := r.conns[cid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Msg("canceled connection")
	return true
}
