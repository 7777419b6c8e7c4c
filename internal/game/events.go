// internal/game/events.go
package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/fortuno-game/fortuno/internal/models"
)

// GameEventType is an enum-like type for outbound game events.
type GameEventType string

const (
	EventGameStarted        GameEventType = "gameStarted"
	EventHandDealt          GameEventType = "handDealt"            // unicast
	EventUpdateHandDiscard  GameEventType = "updateHandAndDiscard" // unicast
	EventTurnChanged        GameEventType = "turnChanged"
	EventTurnSkipped        GameEventType = "turnSkipped"
	EventDiceRolled         GameEventType = "diceRolled"
	EventShowCalloutControl GameEventType = "showCalloutControl"
	EventHideCalloutControl GameEventType = "hideCalloutControl"
	EventCalloutResolved    GameEventType = "calloutResolved"
	EventActionBlocked      GameEventType = "actionBlocked" // unicast
	EventAuthError          GameEventType = "authError"     // unicast
	EventGameWon            GameEventType = "gameWon"
	EventUpdatePlayers      GameEventType = "updatePlayers"
	EventSyncState          GameEventType = "syncState" // unicast, reconnect only
)

// Callout outcomes carried by calloutResolved events.
const (
	CalloutOutcomeSatisfied = "satisfied"
	CalloutOutcomePenalized = "penalized"

	// A winning play with no prior satisfied callout is announced as missed
	// and converted into a penalty draw.
	CalloutOutcomeMissed = "missed"
)

// EventUser identifies a player inside an event payload.
type EventUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username,omitempty"`
}

// PlayerSummary is the per-seat roster entry broadcast with updatePlayers.
type PlayerSummary struct {
	UserID     uuid.UUID             `json:"userId"`
	Username   string                `json:"username"`
	HandSize   int                   `json:"handSize"`
	Connection models.SeatConnection `json:"connection"`
	IsCurrent  bool                  `json:"isCurrent"`
}

// GameEvent is the single outbound message shape handed to the realtime
// channel. Every event is produced while the engine lock is held, from a
// state snapshot taken after the mutation that caused it.
type GameEvent struct {
	Type GameEventType `json:"type"`
	User *EventUser    `json:"user,omitempty"`

	Hand       []models.Card `json:"hand,omitempty"`
	DiscardTop *models.Card  `json:"discardTop,omitempty"`

	Dice     int        `json:"dice,omitempty"`
	Outcome  string     `json:"outcome,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`

	Players []PlayerSummary `json:"players,omitempty"`
	State   *SyncState      `json:"state,omitempty"`

	Payload map[string]interface{} `json:"payload,omitempty"`
}

// fireEvent broadcasts an event to every connected seat.
// Assumes lock is held.
func (g *FortunoGame) fireEvent(ev GameEvent) {
	if g.BroadcastFn != nil {
		g.BroadcastFn(ev)
	}
}

// fireEventToSeat sends an event to a single seat's delivery address.
// Assumes lock is held.
func (g *FortunoGame) fireEventToSeat(userID uuid.UUID, ev GameEvent) {
	if g.BroadcastToSeatFn != nil {
		g.BroadcastToSeatFn(userID, ev)
	}
}

// discardTop returns a copy of the discard top, or nil when empty.
// Assumes lock is held.
func (g *FortunoGame) discardTop() *models.Card {
	if len(g.DiscardPile) == 0 {
		return nil
	}
	top := g.DiscardPile[len(g.DiscardPile)-1]
	return &top
}

// fireHandUpdate unicasts a seat's current hand plus the discard top.
// Assumes lock is held.
func (g *FortunoGame) fireHandUpdate(userID uuid.UUID) {
	hand := make([]models.Card, len(g.Hands[userID]))
	copy(hand, g.Hands[userID])
	g.fireEventToSeat(userID, GameEvent{
		Type:       EventUpdateHandDiscard,
		Hand:       hand,
		DiscardTop: g.discardTop(),
	})
}

// firePlayersUpdate broadcasts the roster with hand sizes.
// Assumes lock is held.
func (g *FortunoGame) firePlayersUpdate() {
	summaries := make([]PlayerSummary, 0, len(g.Seats))
	for i, s := range g.Seats {
		summaries = append(summaries, PlayerSummary{
			UserID:     s.UserID,
			Username:   s.Username,
			HandSize:   len(g.Hands[s.UserID]),
			Connection: s.Connection,
			IsCurrent:  i == g.CurrentSeatIndex && g.State == StateInProgress,
		})
	}
	g.fireEvent(GameEvent{Type: EventUpdatePlayers, Players: summaries})
}

// rejectBlocked unicasts an actionBlocked reply for an illegal intent.
// No state is mutated on this path. Assumes lock is held.
func (g *FortunoGame) rejectBlocked(userID uuid.UUID, reason string) {
	g.log.WithField("user", userID).Debugf("intent blocked: %s", reason)
	g.fireEventToSeat(userID, GameEvent{Type: EventActionBlocked, Reason: reason})
}

// rejectAuth unicasts an authError reply for an unidentified or unseated
// sender. Assumes lock is held.
func (g *FortunoGame) rejectAuth(userID uuid.UUID, reason string) {
	g.log.WithField("user", userID).Warnf("identity rejected: %s", reason)
	g.fireEventToSeat(userID, GameEvent{Type: EventAuthError, Reason: reason})
}
