// Package store persists rooms, chat history and session names in the
// shared key-value store.
package store

import (
	"fmt"

	"github.com/dkeye/Quoridor/internal/domain"
	"github.com/dkeye/Quoridor/internal/game"
	"github.com/goccy/go-json"
)

func roomKey(id domain.RoomID) string       { return "room:" + string(id) }
func chatKey(id domain.RoomID) string       { return "chat:" + string(id) }
func sessionKey(sid domain.SessionID) string { return "session:" + string(sid) }

type sessionRecord struct {
	Name string `json:"name"`
}

func encodeRoom(room *domain.Room) ([]byte, error) {
	b, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("encode room %s: %w", room.RoomID, err)
	}
	return b, nil
}

func decodeRoom(id domain.RoomID, b []byte) (*domain.Room, error) {
	room := domain.NewRoom(id)
	if err := json.Unmarshal(b, room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", id, err)
	}
	if room.Connections == nil {
		room.Connections = make(map[domain.SessionID]game.Player)
	}
	return room, nil
}

func decodeChat(raw []string) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(raw))
	for _, s := range raw {
		var m domain.ChatMessage
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}
