// internal/game/game_test.go
package game

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuno-game/fortuno/internal/models"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent               // Events sent to everyone
	playerEvents map[uuid.UUID][]GameEvent // Events sent to specific players
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[uuid.UUID][]GameEvent),
	}
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = []GameEvent{}
	mb.playerEvents = make(map[uuid.UUID][]GameEvent)
}

// lastEventOfType returns the most recent broadcast event of the given type,
// or nil if none was sent.
func (mb *mockBroadcaster) lastEventOfType(t GameEventType) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := len(mb.allEvents) - 1; i >= 0; i-- {
		if mb.allEvents[i].Type == t {
			ev := mb.allEvents[i]
			return &ev
		}
	}
	return nil
}

func (mb *mockBroadcaster) countEventsOfType(t GameEventType) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	n := 0
	for _, ev := range mb.allEvents {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// lastPlayerEventOfType returns the most recent unicast event of the given
// type for one player, or nil if none was sent.
func (mb *mockBroadcaster) lastPlayerEventOfType(playerID uuid.UUID, t GameEventType) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	events := mb.playerEvents[playerID]
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == t {
			ev := events[i]
			return &ev
		}
	}
	return nil
}

// setupTestGame builds a started session with numPlayers seats, a seeded rng
// and the mock broadcaster wired in. The callout window is set far in the
// future so timers stay inert unless a test arms a short one deliberately.
func setupTestGame(t *testing.T, numPlayers int) (*FortunoGame, []uuid.UUID, *mockBroadcaster) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	g := NewFortunoGame(uuid.New(), rand.New(rand.NewSource(42)), logger)
	g.CalloutWindowDur = time.Hour

	ids := make([]uuid.UUID, numPlayers)
	for i := 0; i < numPlayers; i++ {
		ids[i] = uuid.New()
		g.AddSeat(ids[i], fmt.Sprintf("player%d", i))
	}

	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToSeatFn = mb.broadcastToPlayerFn

	require.NoError(t, g.Start())
	mb.clear()
	return g, ids, mb
}

// totalCards sums every zone: deck, discard pile and all hands.
func totalCards(g *FortunoGame) int {
	n := len(g.Deck) + len(g.DiscardPile)
	for _, hand := range g.Hands {
		n += len(hand)
	}
	return n
}

// giveHand replaces a player's hand for a deterministic scenario, pushing the
// displaced cards back onto the deck so the card count stays invariant.
func giveHand(g *FortunoGame, userID uuid.UUID, cards ...models.Card) {
	g.Deck = append(g.Deck, g.Hands[userID]...)
	g.Deck = g.Deck[len(cards):]
	g.Hands[userID] = cards
}

// setTop replaces the discard top in place.
func setTop(g *FortunoGame, card models.Card) {
	g.DiscardPile[len(g.DiscardPile)-1] = card
}

func playIntent(card models.Card, chosen models.Color) models.GameIntent {
	return models.GameIntent{Type: models.IntentPlayCard, Card: &card, ChosenColor: chosen}
}

func TestStartRequiresTwoSeats(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	g := NewFortunoGame(uuid.New(), rand.New(rand.NewSource(1)), logger)
	g.AddSeat(uuid.New(), "loner")

	assert.Error(t, g.Start())
	assert.Equal(t, StateWaitingForStart, g.State)
}

func TestStartRejectsDoubleStart(t *testing.T) {
	g, _, _ := setupTestGame(t, 2)
	assert.Error(t, g.Start())
	assert.Equal(t, StateInProgress, g.State)
}

func TestStartDealsHandsAndInitialDiscard(t *testing.T) {
	g, ids, _ := setupTestGame(t, 3)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	assert.Equal(t, StateInProgress, g.State)
	assert.Equal(t, 0, g.CurrentSeatIndex)
	assert.Equal(t, 1, g.Direction)
	for _, id := range ids {
		assert.Len(t, g.Hands[id], g.HandSize)
	}
	require.Len(t, g.DiscardPile, 1)
	assert.True(t, g.DiscardPile[0].IsNumber(), "initial discard must be a plain numbered card")
	assert.Equal(t, DeckSize, totalCards(g))
}

func TestAddSeatAfterStartIsNoop(t *testing.T) {
	g, _, _ := setupTestGame(t, 2)
	g.AddSeat(uuid.New(), "latecomer")

	g.Mu.Lock()
	defer g.Mu.Unlock()
	assert.Len(t, g.Seats, 2)
}

func TestAddSeatDuplicateIdentityIsNoop(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	g := NewFortunoGame(uuid.New(), rand.New(rand.NewSource(1)), logger)

	id := uuid.New()
	g.AddSeat(id, "alice")
	g.AddSeat(id, "alice again")

	g.Mu.Lock()
	defer g.Mu.Unlock()
	require.Len(t, g.Seats, 1)
	assert.Equal(t, "alice", g.Seats[0].Username)
}

func TestNumberCardPlayAdvancesTurn(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	setTop(g, models.Card{Rank: "3", Color: models.ColorRed})
	giveHand(g, ids[0],
		models.Card{Rank: "7", Color: models.ColorRed},
		models.Card{Rank: "2", Color: models.ColorBlue},
		models.Card{Rank: "9", Color: models.ColorGreen},
	)

	g.HandleIntent(ids[0], playIntent(models.Card{Rank: "7", Color: models.ColorRed}, ""))

	assert.Len(t, g.Hands[ids[0]], 2)
	assert.Equal(t, models.Card{Rank: "7", Color: models.ColorRed}, *g.discardTop())
	assert.Equal(t, 1, g.CurrentSeatIndex, "turn should pass to the next seat")
	assert.Equal(t, DeckSize, totalCards(g))

	turn := mb.lastEventOfType(EventTurnChanged)
	require.NotNil(t, turn)
	assert.Equal(t, ids[1], turn.User.ID)
}

func TestPlayMatchingRankOnDifferentColor(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	setTop(g, models.Card{Rank: "5", Color: models.ColorYellow})
	giveHand(g, ids[0],
		models.Card{Rank: "5", Color: models.ColorPurple},
		models.Card{Rank: "1", Color: models.ColorGreen},
	)

	g.HandleIntent(ids[0], playIntent(models.Card{Rank: "5", Color: models.ColorPurple}, ""))
	assert.Equal(t, models.Card{Rank: "5", Color: models.ColorPurple}, *g.discardTop())
}

func TestPlayRejectedOutOfTurn(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	before := len(g.Hands[ids[1]])
	top := *g.discardTop()

	g.HandleIntent(ids[1], playIntent(models.Card{Rank: top.Rank, Color: top.Color}, ""))

	assert.Len(t, g.Hands[ids[1]], before)
	assert.Equal(t, 0, g.CurrentSeatIndex)
	blocked := mb.lastPlayerEventOfType(ids[1], EventActionBlocked)
	require.NotNil(t, blocked)
	assert.Equal(t, "not your turn", blocked.Reason)
}

func TestPlayRejectedCardNotInHand(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	setTop(g, models.Card{Rank: "3", Color: models.ColorRed})
	giveHand(g, ids[0], models.Card{Rank: "4", Color: models.ColorBlue})

	g.HandleIntent(ids[0], playIntent(models.Card{Rank: "9", Color: models.ColorRed}, ""))

	assert.Len(t, g.Hands[ids[0]], 1)
	blocked := mb.lastPlayerEventOfType(ids[0], EventActionBlocked)
	require.NotNil(t, blocked)
	assert.Equal(t, "card is not in your hand", blocked.Reason)
}

func TestPlayRejectedIllegalCard(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	setTop(g, models.Card{Rank: "3", Color: models.ColorRed})
	giveHand(g, ids[0],
		models.Card{Rank: "4", Color: models.ColorBlue},
		models.Card{Rank: "8", Color: models.ColorGreen},
	)

	g.HandleIntent(ids[0], playIntent(models.Card{Rank: "4", Color: models.ColorBlue}, ""))

	assert.Len(t, g.Hands[ids[0]], 2)
	assert.Equal(t, 0, g.CurrentSeatIndex)
	blocked := mb.lastPlayerEventOfType(ids[0], EventActionBlocked)
	require.NotNil(t, blocked)
	assert.Equal(t, "card does not match the discard top", blocked.Reason)
}

func TestBlackCardRequiresChosenColor(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	giveHand(g, ids[0],
		models.Card{Rank: models.RankPlusThree, Color: models.ColorBlack},
		models.Card{Rank: "4", Color: models.ColorBlue},
	)

	g.HandleIntent(ids[0], playIntent(models.Card{Rank: models.RankPlusThree, Color: models.ColorBlack}, ""))

	assert.Len(t, g.Hands[ids[0]], 2)
	blocked := mb.lastPlayerEventOfType(ids[0], EventActionBlocked)
	require.NotNil(t, blocked)
	assert.Equal(t, "black card needs a chosen color", blocked.Reason)
}

func TestPlusThreePenalizesNextSeat(t *testing.T) {
	g, ids, mb := setupTestGame(t, 3)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	giveHand(g, ids[0],
		models.Card{Rank: models.RankPlusThree, Color: models.ColorBlack},
		models.Card{Rank: "4", Color: models.ColorBlue},
	)
	before := len(g.Hands[ids[1]])

	g.HandleIntent(ids[0], playIntent(models.Card{Rank: models.RankPlusThree, Color: models.ColorBlack}, models.ColorGreen))

	top := g.discardTop()
	assert.Equal(t, models.ColorBlack, top.Color)
	assert.Equal(t, models.ColorGreen, top.ChosenColor)
	assert.Len(t, g.Hands[ids[1]], before+3)
	assert.Equal(t, 1, g.CurrentSeatIndex, "the penalized seat plays immediately")
	assert.Equal(t, DeckSize, totalCards(g))

	turn := mb.lastEventOfType(EventTurnChanged)
	require.NotNil(t, turn)
	assert.Equal(t, ids[1], turn.User.ID)
}

func TestPenaltyDrawJournalNamesActorAndTarget(t *testing.T) {
	g, ids, _ := setupTestGame(t, 3)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	type record struct {
		actor   uuid.UUID
		kind    string
		payload map[string]interface{}
	}
	var records []record
	g.JournalFn = func(actor uuid.UUID, kind string, payload map[string]interface{}) {
		records = append(records, record{actor, kind, payload})
	}

	giveHand(g, ids[0],
		models.Card{Rank: models.RankPlusThree, Color: models.ColorBlack},
		models.Card{Rank: "4", Color: models.ColorBlue},
	)

	g.HandleIntent(ids[0], playIntent(models.Card{Rank: models.RankPlusThree, Color: models.ColorBlack}, models.ColorGreen))

	var penalty *record
	for i := range records {
		if records[i].kind == "penalty_draw" {
			penalty = &records[i]
		}
	}
	require.NotNil(t, penalty)
	assert.Equal(t, ids[0], penalty.actor, "the seat that played the card owns the record")
	assert.Equal(t, ids[1].String(), penalty.payload["target"])
	assert.Equal(t, 3, penalty.payload["drawn"])
}

func TestPlusFivePenalizesNextSeat(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	giveHand(g, ids[0],
		models.Card{Rank: models.RankPlusFive, Color: models.ColorBlack},
		models.Card{Rank: "4", Color: models.ColorBlue},
	)
	before := len(g.Hands[ids[1]])

	g.HandleIntent(ids[0], playIntent(models.Card{Rank: models.RankPlusFive, Color: models.ColorBlack}, models.ColorRed))

	assert.Len(t, g.Hands[ids[1]], before+5)
	assert.Equal(t, 1, g.CurrentSeatIndex)
	assert.Equal(t, DeckSize, totalCards(g))
}

func TestPlayOnStampedBlackTopFollowsChosenColor(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	setTop(g, models.Card{Rank: models.RankPlusThree, Color: models.ColorBlack, ChosenColor: models.ColorGreen})
	giveHand(g, ids[0],
		models.Card{Rank: "2", Color: models.ColorGreen},
		models.Card{Rank: "2", Color: models.ColorRed},
	)

	g.HandleIntent(ids[0], playIntent(models.Card{Rank: "2", Color: models.ColorRed}, ""))
	blocked := mb.lastPlayerEventOfType(ids[0], EventActionBlocked)
	require.NotNil(t, blocked)
	assert.Equal(t, "card does not match the discard top", blocked.Reason)

	g.HandleIntent(ids[0], playIntent(models.Card{Rank: "2", Color: models.ColorGreen}, ""))
	assert.Equal(t, models.Card{Rank: "2", Color: models.ColorGreen}, *g.discardTop())
	assert.Equal(t, 1, g.CurrentSeatIndex)
}

func TestDrawCardAdvancesTurn(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	handBefore := len(g.Hands[ids[0]])
	deckBefore := len(g.Deck)

	g.HandleIntent(ids[0], models.GameIntent{Type: models.IntentDrawCard})

	assert.Len(t, g.Hands[ids[0]], handBefore+1)
	assert.Len(t, g.Deck, deckBefore-1)
	assert.Equal(t, 1, g.CurrentSeatIndex)
	assert.Equal(t, DeckSize, totalCards(g))

	turn := mb.lastEventOfType(EventTurnChanged)
	require.NotNil(t, turn)
	assert.Equal(t, ids[1], turn.User.ID)
}

func TestDrawCardRejectedOutOfTurn(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	g.HandleIntent(ids[1], models.GameIntent{Type: models.IntentDrawCard})

	assert.Equal(t, 0, g.CurrentSeatIndex)
	blocked := mb.lastPlayerEventOfType(ids[1], EventActionBlocked)
	require.NotNil(t, blocked)
}

func TestDrawOnEmptyDeckIsNoop(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	g.DiscardPile = append(g.DiscardPile, g.Deck...)
	g.Deck = nil
	handBefore := len(g.Hands[ids[0]])

	g.HandleIntent(ids[0], models.GameIntent{Type: models.IntentDrawCard})

	assert.Len(t, g.Hands[ids[0]], handBefore)
	assert.Equal(t, 1, g.CurrentSeatIndex, "the turn still passes")
	assert.Equal(t, DeckSize, totalCards(g))
}

func TestUnseatedUserGetsAuthError(t *testing.T) {
	g, _, mb := setupTestGame(t, 2)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	stranger := uuid.New()
	g.HandleIntent(stranger, models.GameIntent{Type: models.IntentDrawCard})

	authErr := mb.lastPlayerEventOfType(stranger, EventAuthError)
	require.NotNil(t, authErr)
	assert.Equal(t, 0, g.CurrentSeatIndex)
}

func TestUnknownIntentTypeIsBlocked(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	g.HandleIntent(ids[0], models.GameIntent{Type: "teleport"})

	blocked := mb.lastPlayerEventOfType(ids[0], EventActionBlocked)
	require.NotNil(t, blocked)
	assert.Equal(t, "unknown intent type", blocked.Reason)
}

func TestCardConservationAcrossMixedPlay(t *testing.T) {
	g, ids, _ := setupTestGame(t, 3)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	giveHand(g, ids[0],
		models.Card{Rank: models.RankPlusThree, Color: models.ColorBlack},
		models.Card{Rank: "4", Color: models.ColorBlue},
	)
	g.HandleIntent(ids[0], playIntent(models.Card{Rank: models.RankPlusThree, Color: models.ColorBlack}, models.ColorBlue))
	assert.Equal(t, DeckSize, totalCards(g))

	g.HandleIntent(ids[1], models.GameIntent{Type: models.IntentDrawCard})
	assert.Equal(t, DeckSize, totalCards(g))

	g.HandleIntent(ids[2], models.GameIntent{Type: models.IntentDrawCard})
	assert.Equal(t, DeckSize, totalCards(g))
}
