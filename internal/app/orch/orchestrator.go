// Package orch serializes every room mutation through one worker goroutine
// per room and fans the resulting events out to live connections.
package orch

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Quoridor/internal/app"
	"github.com/dkeye/Quoridor/internal/core"
	"github.com/dkeye/Quoridor/internal/domain"
	"github.com/rs/zerolog/log"
)

type Options struct {
	RoomTTL     time.Duration
	ChatTTL     time.Duration
	ChatHistory int
	// RoomIdle is how long a room worker waits for a command before it
	// drops its cached copy and exits.
	RoomIdle time.Duration
}

func DefaultOptions() Options {
	return Options{
		RoomTTL:     30 * time.Minute,
		ChatTTL:     10 * time.Minute,
		ChatHistory: 100,
		RoomIdle:    2 * time.Minute,
	}
}

type Deps struct {
	Registry *app.Registry
	Rooms    core.RoomStore
	Chats    core.ChatStore
	Policy   app.Policy
	Limiter  *app.RateLimiter
}

type Orchestrator struct {
	Registry *app.Registry
	Policy   app.Policy
	Limiter  *app.RateLimiter

	rooms core.RoomStore
	chats core.ChatStore
	opts  Options
	newID func() (domain.RoomID, error)

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	workers map[domain.RoomID]*worker
	closed  bool
	wg      sync.WaitGroup
}

func New(ctx context.Context, d Deps, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.RoomTTL <= 0 {
		opts.RoomTTL = def.RoomTTL
	}
	if opts.ChatTTL <= 0 {
		opts.ChatTTL = def.ChatTTL
	}
	if opts.RoomIdle <= 0 {
		opts.RoomIdle = def.RoomIdle
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Orchestrator{
		Registry: d.Registry,
		Policy:   d.Policy,
		Limiter:  d.Limiter,
		rooms:    d.Rooms,
		chats:    d.Chats,
		opts:     opts,
		newID:    randomRoomID,
		ctx:      ctx,
		cancel:   cancel,
		workers:  make(map[domain.RoomID]*worker),
	}
}

// Close stops all room workers and closes every live connection.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
	for _, m := range o.Registry.All() {
		m.Signal.Close()
	}
	log.Info().Str("module", "orch").Msg("orchestrator closed")
}

// Kick drops a connection; its read loop then runs Disconnect.
func (o *Orchestrator) Kick(cid core.ConnID) {
	m, ok := o.Registry.Conn(cid)
	if !ok {
		return
	}
	o.Registry.Cancel(cid)
	m.Signal.Close()
	log.Warn().Str("module", "orch").Str("cid", string(cid)).Str("sid", string(m.SID)).Msg("kicked connection")
}

func (o *Orchestrator) emit(targets []app.Member, event string, data any) {
	if len(targets) == 0 {
		return
	}
	frame, err := core.Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode event")
		return
	}
	for _, m := range targets {
		if err := m.Signal.TrySend(frame); err != nil {
			o.onBackpressure(m, err)
		}
	}
	log.Debug().Str("module", "orch").Str("event", event).Int("targets", len(targets)).Msg("emitted")
}

func (o *Orchestrator) onBackpressure(m app.Member, err error) {
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(m, err) {
	case app.KickMember:
		o.Kick(m.CID)
	case app.DropFrame, app.NoAction:
	}
}

func (o *Orchestrator) emitTo(cid core.ConnID, event string, data any) {
	if m, ok := o.Registry.Conn(cid); ok {
		o.emit([]app.Member{m}, event, data)
	}
}

func (o *Orchestrator) emitRoom(room domain.RoomID, event string, data any) {
	o.emit(o.Registry.MembersOfRoom(room), event, data)
}

// emitSession reaches every connection of sid that sits in room.
func (o *Orchestrator) emitSession(sid domain.SessionID, room domain.RoomID, event string, data any) {
	var targets []app.Member
	for _, m := range o.Registry.ConnsOfSession(sid) {
		if m.RoomID == room {
			targets = append(targets, m)
		}
	}
	o.emit(targets, event, data)
}
