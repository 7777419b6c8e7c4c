// internal/game/game.go
package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fortuno-game/fortuno/internal/models"
)

// SessionState is the lifecycle state of one game session.
type SessionState string

const (
	StateWaitingForStart SessionState = "waiting_for_start"
	StateInProgress      SessionState = "in_progress"
	StateEndedWon        SessionState = "ended_won"
	StateEndedForfeited  SessionState = "ended_forfeited"
)

// PendingKind names the table-wide locks a Wild play can impose.
type PendingKind string

const (
	// PendingDice holds the rolled dice value until a diceAnimationFinished
	// intent arrives from any connected seat.
	PendingDice PendingKind = "dice"

	// PendingDiscardChoice waits for the Wild actor to pick a hand card
	// (dice effect 4) via discardCard.
	PendingDiscardChoice PendingKind = "discard_choice"
)

// PendingAction is a table-wide lock: while set, every intent except the
// designated resolution intent is rejected with no state change.
type PendingAction struct {
	Kind      PendingKind `json:"kind"`
	Actor     uuid.UUID   `json:"actor"`
	DiceValue int         `json:"diceValue,omitempty"`
}

// CalloutOutcome is the resolution state of a callout window.
type CalloutOutcome string

const (
	CalloutPending   CalloutOutcome = "pending"
	CalloutSatisfied CalloutOutcome = "satisfied"
	CalloutPenalized CalloutOutcome = "penalized"
)

// CalloutWindow is the timed last-card ritual for one seat. The click path
// and the deadline timer race; seq plus the Outcome check under the game
// lock guarantee exactly one resolution.
type CalloutWindow struct {
	Holder   uuid.UUID      `json:"holder"`
	Deadline time.Time      `json:"deadline"`
	Outcome  CalloutOutcome `json:"outcome"`

	seq   int
	timer *time.Timer
}

// OnGameEndFunc receives the finished game's room and winner (uuid.Nil for a
// forfeited session with no winner).
type OnGameEndFunc func(roomID uuid.UUID, winner uuid.UUID)

// JournalFunc receives one accepted intent for the out-of-process action
// journal. Implementations must not block; the engine calls it under lock.
type JournalFunc func(actor uuid.UUID, kind string, payload map[string]interface{})

// FortunoGame holds the entire authoritative state for a single room's game
// session in memory. All mutation is serialized by Mu: inbound intents are
// handled with the lock held by the transport layer, and timer callbacks
// re-acquire it before touching anything, so intents for one room are
// processed strictly one at a time.
type FortunoGame struct {
	ID     uuid.UUID
	RoomID uuid.UUID

	Seats       []*models.Seat
	Deck        []models.Card
	DiscardPile []models.Card
	Hands       map[uuid.UUID][]models.Card

	CurrentSeatIndex int
	Direction        int // +1 or -1

	Pending *PendingAction
	Callout *CalloutWindow

	State SessionState

	HandSize         int
	PenaltyDrawCount int
	CalloutWindowDur time.Duration
	GraceDur         time.Duration

	Mu sync.Mutex

	// BroadcastFn sends an event to all connected seats; BroadcastToSeatFn
	// to a single one. Both are called with the game lock held and must
	// hand the event off without blocking.
	BroadcastFn       func(ev GameEvent)
	BroadcastToSeatFn func(userID uuid.UUID, ev GameEvent)

	// OnGameEnd is invoked once when the session ends, for registry and
	// room-directory cleanup.
	OnGameEnd OnGameEndFunc

	// JournalFn, when set, receives every accepted intent.
	JournalFn JournalFunc

	rng *rand.Rand
	log *logrus.Entry

	calloutSeq       int
	calloutSatisfied map[uuid.UUID]bool
	deferredCallout  map[uuid.UUID]bool
	graceTimer       *time.Timer
	ended            bool
}

// NewFortunoGame builds an empty session for a room. The rng is injectable
// for reproducible shuffles and dice in tests.
func NewFortunoGame(roomID uuid.UUID, rng *rand.Rand, logger *logrus.Logger) *FortunoGame {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = logrus.New()
	}
	id, _ := uuid.NewRandom()
	return &FortunoGame{
		ID:               id,
		RoomID:           roomID,
		Hands:            make(map[uuid.UUID][]models.Card),
		Direction:        1,
		State:            StateWaitingForStart,
		HandSize:         8,
		PenaltyDrawCount: 2,
		CalloutWindowDur: 5 * time.Second,
		GraceDur:         30 * time.Second,
		rng:              rng,
		log:              logger.WithField("game", id),
		calloutSatisfied: make(map[uuid.UUID]bool),
		deferredCallout:  make(map[uuid.UUID]bool),
	}
}

// AddSeat registers an identity in the next free seat. Duplicate identities
// are collapsed at mutation time: re-adding an existing user is a no-op.
// Only valid before the session starts.
func (g *FortunoGame) AddSeat(userID uuid.UUID, username string) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.State != StateWaitingForStart {
		g.log.WithField("user", userID).Warn("seat add rejected: session already started")
		return
	}
	if g.seatByUser(userID) != nil {
		return
	}
	g.Seats = append(g.Seats, &models.Seat{
		UserID:     userID,
		Username:   username,
		Index:      len(g.Seats),
		Connection: models.SeatConnected,
	})
}

// Start deals the opening hands and flips the session to InProgress.
// Requires at least two seats.
func (g *FortunoGame) Start() error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.startLocked()
}

func (g *FortunoGame) startLocked() error {
	if g.State != StateWaitingForStart {
		return errGameAlreadyStarted
	}
	if len(g.Seats) < 2 {
		return errNotEnoughSeats
	}

	deck := ShuffleDeck(GenerateDeck(), g.rng)
	order := make([]uuid.UUID, len(g.Seats))
	for i, s := range g.Seats {
		order[i] = s.UserID
	}
	hands, deck, err := DealHands(deck, order, g.HandSize)
	if err != nil {
		return err
	}
	first, deck := SelectInitialDiscard(deck, g.rng)

	g.Hands = hands
	g.Deck = deck
	g.DiscardPile = []models.Card{first}
	g.CurrentSeatIndex = 0
	g.Direction = 1
	g.State = StateInProgress

	g.log.Infof("session started with %d seats", len(g.Seats))
	g.journal(uuid.Nil, "game_start", map[string]interface{}{"seats": len(g.Seats)})

	g.fireEvent(GameEvent{Type: EventGameStarted})
	for _, s := range g.Seats {
		hand := make([]models.Card, len(g.Hands[s.UserID]))
		copy(hand, g.Hands[s.UserID])
		g.fireEventToSeat(s.UserID, GameEvent{
			Type:       EventHandDealt,
			Hand:       hand,
			DiscardTop: g.discardTop(),
		})
	}
	g.firePlayersUpdate()
	g.fireEvent(GameEvent{Type: EventTurnChanged, User: g.eventUser(g.Seats[g.CurrentSeatIndex].UserID)})
	return nil
}

// HandleIntent routes one inbound intent. The caller (websocket read loop or
// test) must hold g.Mu; timer-driven resolutions acquire the lock themselves
// and funnel into the same mutation paths.
func (g *FortunoGame) HandleIntent(userID uuid.UUID, intent models.GameIntent) {
	if g.ended {
		g.log.WithFields(logrus.Fields{"user": userID, "intent": intent.Type}).Debug("intent after session end, ignoring")
		return
	}
	seat := g.seatByUser(userID)
	if seat == nil {
		g.rejectAuth(userID, "not seated in this room")
		return
	}
	if seat.Connection == models.SeatLeft && intent.Type != models.IntentLeave {
		g.rejectAuth(userID, "seat has left the session")
		return
	}

	switch intent.Type {
	case models.IntentPlayCard:
		g.handlePlayCard(seat, intent.Card, intent.ChosenColor)
	case models.IntentDrawCard:
		g.handleDrawCard(seat)
	case models.IntentDiscardCard:
		g.handleDiscardChoice(seat, intent.Index)
	case models.IntentDiceAnimationFinished:
		g.handleDiceFinished(seat)
	case models.IntentCalloutClicked:
		g.handleCalloutClicked(seat)
	case models.IntentLeave:
		g.handleLeave(seat, intent.Explicit)
	default:
		g.rejectBlocked(userID, "unknown intent type")
	}
}

// seatByUser finds a seat by stable identity. Assumes lock is held.
func (g *FortunoGame) seatByUser(userID uuid.UUID) *models.Seat {
	for _, s := range g.Seats {
		if s.UserID == userID {
			return s
		}
	}
	return nil
}

func (g *FortunoGame) eventUser(userID uuid.UUID) *EventUser {
	u := &EventUser{ID: userID}
	if s := g.seatByUser(userID); s != nil {
		u.Username = s.Username
	}
	return u
}

// currentSeat returns the acting seat. Assumes lock is held and the session
// is in progress.
func (g *FortunoGame) currentSeat() *models.Seat {
	return g.Seats[g.CurrentSeatIndex]
}

// drawToHand moves up to n cards from the deck head into a hand. A short
// deck fulfills partially and never errors. Returns how many cards moved.
// Assumes lock is held.
func (g *FortunoGame) drawToHand(userID uuid.UUID, n int) int {
	if n > len(g.Deck) {
		g.log.WithField("user", userID).Warnf("deck short: drawing %d of %d requested", len(g.Deck), n)
		n = len(g.Deck)
	}
	if n == 0 {
		return 0
	}
	g.Hands[userID] = append(g.Hands[userID], g.Deck[:n]...)
	g.Deck = g.Deck[n:]
	g.afterHandMutation(userID)
	g.fireHandUpdate(userID)
	return n
}

// journal hands an accepted intent to the action journal, if wired.
// Assumes lock is held.
func (g *FortunoGame) journal(actor uuid.UUID, kind string, payload map[string]interface{}) {
	if g.JournalFn != nil {
		g.JournalFn(actor, kind, payload)
	}
}
