// internal/room/errors.go
package room

import "errors"

var (
	ErrRoomFull       = errors.New("room already has the maximum number of players")
	ErrGameInProgress = errors.New("game already started, new players cannot join")
)
