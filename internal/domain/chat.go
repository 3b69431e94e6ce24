package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const MaxChatLen = 500

var ErrChatEmpty = errors.New("chat message empty")

type ChatMessage struct {
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

func NewChatMessage(name, text string) (ChatMessage, error) {
	msg := strings.TrimSpace(text)
	if msg == "" {
		return ChatMessage{}, ErrChatEmpty
	}
	if utf8.RuneCountInString(msg) > MaxChatLen {
		msg = string([]rune(msg)[:MaxChatLen])
	}
	return ChatMessage{Name: name, Msg: msg}, nil
}
