// internal/room/store.go
package room

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store manages active rooms in memory.
type Store struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*Room
}

// NewStore initializes an empty Store.
func NewStore() *Store {
	return &Store{
		rooms: make(map[uuid.UUID]*Room),
	}
}

// AddRoom registers a room. Configure the room's OnEmpty callback before
// adding so an abandoned room cleans itself up.
func (s *Store) AddRoom(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[r.ID]; exists {
		logrus.WithField("room", r.ID).Warn("room already registered")
		return
	}
	s.rooms[r.ID] = r
}

// DeleteRoom removes a room by ID, typically via OnEmpty.
func (s *Store) DeleteRoom(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

// GetRoom looks up a room by ID.
func (s *Store) GetRoom(id uuid.UUID) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// GetRooms returns a snapshot copy of the registry for listing.
func (s *Store) GetRooms() map[uuid.UUID]*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]*Room, len(s.rooms))
	for k, v := range s.rooms {
		out[k] = v
	}
	return out
}
