// internal/game/store.go
package game

import (
	"sync"

	"github.com/google/uuid"
)

// GameStore is the process-wide registry of live sessions.
type GameStore struct {
	mu    sync.Mutex
	games map[uuid.UUID]*FortunoGame
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[uuid.UUID]*FortunoGame),
	}
}

func (s *GameStore) AddGame(game *FortunoGame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = game
}

func (s *GameStore) GetGame(id uuid.UUID) (*FortunoGame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, exists := s.games[id]
	return g, exists
}

func (s *GameStore) DeleteGame(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}

// GetGameByRoomID returns the session attached to a room, or nil if none.
func (s *GameStore) GetGameByRoomID(roomID uuid.UUID) *FortunoGame {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.games {
		if g.RoomID == roomID {
			return g
		}
	}
	return nil
}
