package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Quoridor/internal/core"
	"github.com/dkeye/Quoridor/internal/domain"
	"github.com/goccy/go-json"
)

type memEntry struct {
	value    []byte
	list     []string
	deadline time.Time
}

// Memory is a single-process stand-in for Redis with the same
// conditional-write and expiry semantics.
type Memory struct {
	mu   sync.Mutex
	data map[string]*memEntry
	now  func() time.Time
}

func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{data: make(map[string]*memEntry), now: now}
}

func (m *Memory) Close() error { return nil }

// live returns the entry for key, dropping it if it has expired.
// Callers hold m.mu.
func (m *Memory) live(key string) (*memEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return nil, false
	}
	if !e.deadline.IsZero() && !m.now().Before(e.deadline) {
		delete(m.data, key)
		return nil, false
	}
	return e, true
}

func (m *Memory) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *Memory) Create(_ context.Context, room *domain.Room, ttl time.Duration) (bool, error) {
	b, err := encodeRoom(room)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := roomKey(room.RoomID)
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.data[key] = &memEntry{value: b, deadline: m.deadline(ttl)}
	return true, nil
}

func (m *Memory) Get(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	m.mu.Lock()
	e, ok := m.live(roomKey(id))
	var b []byte
	if ok {
		b = e.value
	}
	m.mu.Unlock()
	if !ok {
		return nil, core.ErrNotFound
	}
	return decodeRoom(id, b)
}

func (m *Memory) Refresh(_ context.Context, room *domain.Room, ttl time.Duration) (bool, error) {
	b, err := encodeRoom(room)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(roomKey(room.RoomID))
	if !ok {
		return false, nil
	}
	e.value = b
	e.deadline = m.deadline(ttl)
	return true, nil
}

func (m *Memory) Exists(_ context.Context, id domain.RoomID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(roomKey(id))
	return ok, nil
}

func (m *Memory) Delete(_ context.Context, id domain.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, roomKey(id))
	return nil
}

func (m *Memory) Append(_ context.Context, id domain.RoomID, msg domain.ChatMessage, ttl time.Duration, max int) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode chat: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := chatKey(id)
	e, ok := m.live(key)
	if !ok {
		e = &memEntry{}
		m.data[key] = e
	}
	e.list = append(e.list, string(b))
	if max > 0 && len(e.list) > max {
		e.list = append([]string(nil), e.list[len(e.list)-max:]...)
	}
	e.deadline = m.deadline(ttl)
	return nil
}

func (m *Memory) Recent(_ context.Context, id domain.RoomID) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	e, ok := m.live(chatKey(id))
	var raw []string
	if ok {
		raw = append(raw, e.list...)
	}
	m.mu.Unlock()
	return decodeChat(raw), nil
}

func (m *Memory) DeleteChat(_ context.Context, id domain.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, chatKey(id))
	return nil
}

func (m *Memory) Name(_ context.Context, sid domain.SessionID) (string, error) {
	m.mu.Lock()
	e, ok := m.live(sessionKey(sid))
	var b []byte
	if ok {
		b = e.value
	}
	m.mu.Unlock()
	if !ok {
		return "", core.ErrNotFound
	}
	var rec sessionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return "", fmt.Errorf("decode session %s: %w", sid, err)
	}
	return rec.Name, nil
}

func (m *Memory) SetName(_ context.Context, sid domain.SessionID, name string, ttl time.Duration) error {
	b, err := json.Marshal(sessionRecord{Name: name})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionKey(sid)] = &memEntry{value: b, deadline: m.deadline(ttl)}
	return nil
}

var (
	_ core.Store = (*Memory)(nil)
	_ core.Store = (*Redis)(nil)
)
