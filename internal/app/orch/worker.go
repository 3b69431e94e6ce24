package orch

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Quoridor/internal/core"
	"github.com/dkeye/Quoridor/internal/domain"
	"github.com/rs/zerolog/log"
)

type effect int

const (
	keep effect = iota // discard the working copy
	save               // conditional refresh of room:{id}
	drop               // delete the room and its chat
)

// mutation runs on the room worker against a private copy of the room.
// The returned emit runs only after the effect reached the store.
type mutation func(ctx context.Context, room *domain.Room) (effect, func(), error)

type command struct {
	ctx   context.Context
	fn    mutation
	reply chan error
}

type worker struct {
	id   domain.RoomID
	o    *Orchestrator
	cmds chan command
	done chan struct{}
	room *domain.Room
}

func (o *Orchestrator) workerFor(id domain.RoomID) (*worker, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrClosed
	}
	if w, ok := o.workers[id]; ok {
		return w, nil
	}
	w := &worker{
		id:   id,
		o:    o,
		cmds: make(chan command),
		done: make(chan struct{}),
	}
	o.workers[id] = w
	o.wg.Add(1)
	go w.run()
	log.Debug().Str("module", "orch.worker").Str("room", string(id)).Msg("worker started")
	return w, nil
}

func (o *Orchestrator) retire(w *worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.workers[w.id] == w {
		delete(o.workers, w.id)
	}
	close(w.done)
	log.Debug().Str("module", "orch.worker").Str("room", string(w.id)).Msg("worker retired")
}

func (o *Orchestrator) workerCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.workers)
}

// do hands fn to the worker of room id and waits for the result. A worker
// that retires while we wait to hand over is replaced.
func (o *Orchestrator) do(ctx context.Context, id domain.RoomID, fn mutation) error {
	cmd := command{ctx: ctx, fn: fn, reply: make(chan error, 1)}
	for {
		w, err := o.workerFor(id)
		if err != nil {
			return err
		}
		select {
		case w.cmds <- cmd:
			select {
			case err := <-cmd.reply:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-w.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *worker) run() {
	defer w.o.wg.Done()
	idle := time.NewTimer(w.o.opts.RoomIdle)
	defer idle.Stop()
	for {
		select {
		case cmd := <-w.cmds:
			cmd.reply <- w.exec(cmd)
			idle.Reset(w.o.opts.RoomIdle)
		case <-idle.C:
			w.o.retire(w)
			return
		case <-w.o.ctx.Done():
			w.o.retire(w)
			return
		}
	}
}

func (w *worker) exec(cmd command) error {
	ctx := cmd.ctx
	if w.room == nil {
		room, err := w.o.rooms.Get(ctx, w.id)
		if errors.Is(err, core.ErrNotFound) {
			return ErrRoomNotFound
		}
		if err != nil {
			return storeErr(err)
		}
		w.room = room
	}

	work := w.room.Clone()
	eff, emit, err := cmd.fn(ctx, work)
	if err != nil {
		return err
	}

	switch eff {
	case save:
		ok, err := w.o.rooms.Refresh(ctx, work, w.o.opts.RoomTTL)
		if err != nil {
			return storeErr(err)
		}
		if !ok {
			w.room = nil
			return ErrRoomNotFound
		}
		w.room = work
	case drop:
		if err := w.o.rooms.Delete(ctx, w.id); err != nil {
			return storeErr(err)
		}
		if err := w.o.chats.DeleteChat(ctx, w.id); err != nil {
			log.Warn().Err(err).Str("module", "orch.worker").Str("room", string(w.id)).Msg("delete chat")
		}
		w.room = nil
		log.Info().Str("module", "orch.worker").Str("room", string(w.id)).Msg("room deleted")
	case keep:
	}

	if emit != nil {
		emit()
	}
	return nil
}
