// internal/game/deck.go
package game

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/fortuno-game/fortuno/internal/models"
)

// Deck composition constants. The total card count is invariant for a
// session's whole life; every draw, discard and penalty only moves cards
// between the deck, the discard pile and the hands.
const (
	copiesPerColoredCard = 2
	blackDrawCopies      = 2 // +3 and +5 each
	wildCopies           = 8
)

// DeckSize is the fixed number of cards in a full FortUno deck.
// 5 colors x (9 numbers + skip + reverse) x 2 copies, plus the black cards.
const DeckSize = 5*(9+2)*copiesPerColoredCard + 2*blackDrawCopies + wildCopies

// GenerateDeck builds the full fixed-composition deck in deterministic
// order. Pure function, no I/O; shuffling is a separate step.
func GenerateDeck() []models.Card {
	deck := make([]models.Card, 0, DeckSize)
	for _, color := range models.PlayableColors {
		for _, rank := range models.NumberRanks {
			for i := 0; i < copiesPerColoredCard; i++ {
				deck = append(deck, models.Card{Rank: rank, Color: color})
			}
		}
		for _, rank := range []models.Rank{models.RankSkip, models.RankReverse} {
			for i := 0; i < copiesPerColoredCard; i++ {
				deck = append(deck, models.Card{Rank: rank, Color: color})
			}
		}
	}
	for i := 0; i < blackDrawCopies; i++ {
		deck = append(deck,
			models.Card{Rank: models.RankPlusThree, Color: models.ColorBlack},
			models.Card{Rank: models.RankPlusFive, Color: models.ColorBlack},
		)
	}
	for i := 0; i < wildCopies; i++ {
		deck = append(deck, models.Card{Rank: models.RankWild, Color: models.ColorBlack})
	}
	return deck
}

// ShuffleDeck returns a Fisher-Yates shuffled copy of the deck. The rng is
// injected so tests can replay a known order.
func ShuffleDeck(deck []models.Card, rng *rand.Rand) []models.Card {
	out := make([]models.Card, len(deck))
	copy(out, deck)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// DealHands slices handSize cards off the deck head for each seat, in seat
// order. Returns the per-identity hands and the remaining deck.
func DealHands(deck []models.Card, seats []uuid.UUID, handSize int) (map[uuid.UUID][]models.Card, []models.Card, error) {
	if len(deck) < handSize*len(seats) {
		return nil, nil, fmt.Errorf("deck has %d cards, need %d to deal %d seats", len(deck), handSize*len(seats), len(seats))
	}
	hands := make(map[uuid.UUID][]models.Card, len(seats))
	rest := make([]models.Card, len(deck))
	copy(rest, deck)
	for _, userID := range seats {
		hand := make([]models.Card, handSize)
		copy(hand, rest[:handSize])
		hands[userID] = hand
		rest = rest[handSize:]
	}
	return hands, rest, nil
}

// SelectInitialDiscard pops cards off the deck head until a plain numbered
// card comes up; black and special cards are pushed back to the tail. If a
// full pass finds nothing playable the deck is reshuffled once and the next
// head card is accepted as-is, so the loop always terminates.
func SelectInitialDiscard(deck []models.Card, rng *rand.Rand) (models.Card, []models.Card) {
	rest := make([]models.Card, len(deck))
	copy(rest, deck)
	for i := 0; i < len(rest); i++ {
		head := rest[0]
		rest = rest[1:]
		if head.IsNumber() {
			return head, rest
		}
		rest = append(rest, head)
	}
	rest = ShuffleDeck(rest, rng)
	head := rest[0]
	return head, rest[1:]
}
