package core

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Quoridor/internal/domain"
)

// Frame is one encoded outbound event.
type Frame []byte

// ConnID identifies a single real-time connection. One session may own
// several of them (tabs, reconnects).
type ConnID string

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
	ErrNotFound     = errors.New("not found")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// RoomStore persists Room records under room:{id}.
type RoomStore interface {
	// Create writes the room only if the key is absent.
	Create(ctx context.Context, room *domain.Room, ttl time.Duration) (bool, error)
	// Get returns ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	// Refresh overwrites the room only if the key still exists, so a
	// deleted room is never resurrected.
	Refresh(ctx context.Context, room *domain.Room, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, id domain.RoomID) (bool, error)
	Delete(ctx context.Context, id domain.RoomID) error
}

// ChatStore keeps a bounded, expiring chat history per room under chat:{id}.
type ChatStore interface {
	Append(ctx context.Context, id domain.RoomID, msg domain.ChatMessage, ttl time.Duration, max int) error
	Recent(ctx context.Context, id domain.RoomID) ([]domain.ChatMessage, error)
	DeleteChat(ctx context.Context, id domain.RoomID) error
}

// SessionStore backs display names under session:{sid}.
type SessionStore interface {
	// Name returns ErrNotFound when no name was stored.
	Name(ctx context.Context, sid domain.SessionID) (string, error)
	SetName(ctx context.Context, sid domain.SessionID, name string, ttl time.Duration) error
}

// Store is everything the server keeps in the shared store.
type Store interface {
	RoomStore
	ChatStore
	SessionStore
	Close() error
}
