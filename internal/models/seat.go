// internal/models/seat.go
package models

import "github.com/google/uuid"

// SeatConnection is the connection status of a seat. A transient disconnect
// keeps the seat in the session; only an explicit leave marks it Left.
type SeatConnection string

const (
	SeatConnected    SeatConnection = "connected"
	SeatDisconnected SeatConnection = "disconnected"
	SeatLeft         SeatConnection = "left"
)

// Seat is a player's fixed slot in turn order for one session. Seats are
// never removed from the seat list mid-game; leaving marks the seat Left so
// that seat indexes stay stable for the scheduler.
type Seat struct {
	UserID     uuid.UUID      `json:"userId"`
	Username   string         `json:"username"`
	Index      int            `json:"index"`
	Connection SeatConnection `json:"connection"`
	SkipNext   bool           `json:"skipNext"`
}
