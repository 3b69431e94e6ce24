// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxUsernameLen  = 24
	DefaultUsername = "Anonymous"
)

var ErrUsernameEmpty = errors.New("username empty")

// SessionID is the stable identity of one browser, carried by the session
// cookie and unchanged across reconnects.
type SessionID string

type User struct {
	ID       SessionID `json:"id"`
	Username string    `json:"username"`
}

func NewUser(id SessionID) *User {
	return &User{ID: id, Username: DefaultUsername}
}

// SetUsername trims the name and cuts it to MaxUsernameLen runes.
func (u *User) SetUsername(username string) error {
	name, err := CleanUsername(username)
	if err != nil {
		return err
	}
	u.Username = name
	return nil
}

func CleanUsername(username string) (string, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return "", ErrUsernameEmpty
	}
	if utf8.RuneCountInString(name) > MaxUsernameLen {
		name = strings.TrimSpace(string([]rune(name)[:MaxUsernameLen]))
	}
	return name, nil
}
