// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"

	"github.com/fortuno-game/fortuno/internal/models"
)

// SyncState is the full per-player view of a session, sent on reconnect so a
// client can rebuild its table from scratch. Other players' hands are
// obfuscated to counts; only the requester's own cards cross the wire.
type SyncState struct {
	GameID           uuid.UUID       `json:"gameId"`
	RoomID           uuid.UUID       `json:"roomId"`
	State            SessionState    `json:"state"`
	Players          []PlayerSummary `json:"players"`
	Hand             []models.Card   `json:"hand"`
	DiscardTop       *models.Card    `json:"discardTop,omitempty"`
	DeckCount        int             `json:"deckCount"`
	CurrentSeatIndex int             `json:"currentSeatIndex"`
	Direction        int             `json:"direction"`
	Pending          *PendingAction  `json:"pending,omitempty"`
	Callout          *CalloutWindow  `json:"callout,omitempty"`
}

// snapshotFor builds the view for one seat. Pure read, assumes lock is held.
func (g *FortunoGame) snapshotFor(userID uuid.UUID) SyncState {
	players := make([]PlayerSummary, 0, len(g.Seats))
	for i, s := range g.Seats {
		players = append(players, PlayerSummary{
			UserID:     s.UserID,
			Username:   s.Username,
			HandSize:   len(g.Hands[s.UserID]),
			Connection: s.Connection,
			IsCurrent:  g.State == StateInProgress && i == g.CurrentSeatIndex,
		})
	}

	hand := make([]models.Card, len(g.Hands[userID]))
	copy(hand, g.Hands[userID])

	return SyncState{
		GameID:           g.ID,
		RoomID:           g.RoomID,
		State:            g.State,
		Players:          players,
		Hand:             hand,
		DiscardTop:       g.discardTop(),
		DeckCount:        len(g.Deck),
		CurrentSeatIndex: g.CurrentSeatIndex,
		Direction:        g.Direction,
		Pending:          g.Pending,
		Callout:          g.Callout,
	}
}
