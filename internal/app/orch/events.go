package orch

import (
	"github.com/dkeye/Quoridor/internal/domain"
	"github.com/dkeye/Quoridor/internal/game"
)

const (
	EventStateUpdate   = "state-update"
	EventRedirect      = "redirect"
	EventPlayerChanged = "player-changed"
	EventPlayerRemoved = "player-removed"
	EventBecomePlayer  = "become-player"
	EventChatRecent    = "chat-recent"
	EventChatMessage   = "chat-message"
	EventNameUpdated   = "name-updated"
	EventWhoAmI        = "whoami"
	EventRejected      = "rejected"
	EventError         = "error"
	EventPong          = "pong"
)

type PlayerChanged struct {
	Color game.Player `json:"color"`
	Name  string      `json:"name"`
}

type PlayerRemoved struct {
	Color game.Player `json:"color"`
}

type BecomePlayer struct {
	Color game.Player `json:"color"`
}

type NameUpdated struct {
	Name  string      `json:"name"`
	Color game.Player `json:"color,omitempty"`
}

type WhoAmI struct {
	Name  string        `json:"name"`
	Room  domain.RoomID `json:"room,omitempty"`
	Color game.Player   `json:"color,omitempty"`
}

type Redirect struct {
	Redirect bool   `json:"redirect"`
	URL      string `json:"url"`
}

type Rejected struct {
	Reason string `json:"reason"`
}

type ErrorEvent struct {
	Code string `json:"code"`
}

// seat hides the empty color from payloads.
func seat(p game.Player) game.Player {
	if p.Valid() {
		return p
	}
	return ""
}
