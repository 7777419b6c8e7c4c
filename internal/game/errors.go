// internal/game/errors.go
package game

import "errors"

var (
	errGameAlreadyStarted = errors.New("game already started")
	errNotEnoughSeats     = errors.New("need at least two seats to start")
)
