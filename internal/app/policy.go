package app

import (
	"errors"

	"github.com/dkeye/Quoridor/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a connection whose TrySend failed.
type Policy interface {
	OnBackPressure(member Member, err error) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(_ Member, err error) BackpressureAction {
	if errors.Is(err, core.ErrBackpressure) {
		return KickMember
	}
	return NoAction
}
