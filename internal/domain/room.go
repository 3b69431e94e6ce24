package domain

import (
	"errors"
	"maps"
	"strings"

	"github.com/dkeye/Quoridor/internal/game"
)

const RoomIDLen = 5

var (
	ErrNotInRoom    = errors.New("session not in room")
	ErrColorTaken   = errors.New("color already taken")
	ErrInvalidColor = errors.New("invalid color")
)

type RoomID string

// NormalizeRoomID lowercases and trims user input.
func NormalizeRoomID(raw string) RoomID {
	return RoomID(strings.ToLower(strings.TrimSpace(raw)))
}

func (id RoomID) Valid() bool {
	if len(id) != RoomIDLen {
		return false
	}
	for _, c := range id {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Room is the persisted record of one game room. A key in Connections
// means the session is joined; the value is the color it controls, or
// game.Empty.
type Room struct {
	RoomID      RoomID                    `json:"roomId"`
	Connections map[SessionID]game.Player `json:"connections"`
	GameState   *game.State               `json:"gameState,omitempty"`
	RoomName    string                    `json:"roomName"`
	Password    string                    `json:"password"`
}

func NewRoom(id RoomID) *Room {
	return &Room{
		RoomID:      id,
		Connections: make(map[SessionID]game.Player),
	}
}

func (r *Room) Clone() *Room {
	cp := *r
	cp.Connections = maps.Clone(r.Connections)
	if cp.Connections == nil {
		cp.Connections = make(map[SessionID]game.Player)
	}
	if r.GameState != nil {
		cp.GameState = r.GameState.Clone()
	}
	return &cp
}

// Join adds sid without a color. Joining again keeps the existing color.
func (r *Room) Join(sid SessionID) bool {
	if r.Connections == nil {
		r.Connections = make(map[SessionID]game.Player)
	}
	if _, ok := r.Connections[sid]; ok {
		return false
	}
	r.Connections[sid] = game.Empty
	return true
}

func (r *Room) Has(sid SessionID) bool {
	_, ok := r.Connections[sid]
	return ok
}

// Leave removes sid and returns the color it held.
func (r *Room) Leave(sid SessionID) (game.Player, bool) {
	color, ok := r.Connections[sid]
	if !ok {
		return game.Empty, false
	}
	delete(r.Connections, sid)
	return color, true
}

func (r *Room) ColorOf(sid SessionID) game.Player {
	if c := r.Connections[sid]; c.Valid() {
		return c
	}
	return game.Empty
}

func (r *Room) HolderOf(color game.Player) (SessionID, bool) {
	for sid, c := range r.Connections {
		if c == color {
			return sid, true
		}
	}
	return "", false
}

// PickColor gives color to sid and returns the color sid held before.
func (r *Room) PickColor(sid SessionID, color game.Player) (game.Player, error) {
	if !color.Valid() {
		return game.Empty, ErrInvalidColor
	}
	if !r.Has(sid) {
		return game.Empty, ErrNotInRoom
	}
	prev := r.ColorOf(sid)
	if prev == color {
		return prev, nil
	}
	if _, taken := r.HolderOf(color); taken {
		return prev, ErrColorTaken
	}
	r.Connections[sid] = color
	return prev, nil
}

func (r *Room) Empty() bool { return len(r.Connections) == 0 }

// EnsureGame creates the board on first access.
func (r *Room) EnsureGame() bool {
	if r.GameState != nil {
		return false
	}
	r.GameState = game.NewState()
	return true
}

func (r *Room) RestartGame() {
	r.GameState = game.NewState()
}
