// internal/models/room.go
package models

import "github.com/google/uuid"

// Room is the persisted room-directory record. The directory is advisory:
// the in-memory engine state is authoritative over Started, and the record
// is reconciled against it, never the other way around.
type Room struct {
	ID         uuid.UUID `json:"id"`
	HostUserID uuid.UUID `json:"host_user_id"`
	Name       string    `json:"name"`
	Started    bool      `json:"started"`

	// Version guards roster/flag writes against concurrent persistence
	// races; see database.SetRoomStarted.
	Version int `json:"-"`
}
