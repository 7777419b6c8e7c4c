// internal/game/play.go
package game

import (
	"github.com/google/uuid"

	"github.com/fortuno-game/fortuno/internal/models"
)

// isLegalPlay checks a candidate card against the discard top. Black cards
// are playable on anything; otherwise the candidate must match the top's
// effective color, or its printed rank when the top is not a stamped black.
func isLegalPlay(card, top models.Card) bool {
	if card.IsBlack() {
		return true
	}
	if card.Color == top.EffectiveColor() {
		return true
	}
	return !top.IsBlack() && card.Rank == top.Rank
}

// validChosenColor reports whether a stamped color pick is one of the five
// playable colors.
func validChosenColor(c models.Color) bool {
	for _, pc := range models.PlayableColors {
		if c == pc {
			return true
		}
	}
	return false
}

// handlePlayCard validates and applies one card play.
// Assumes lock is held.
func (g *FortunoGame) handlePlayCard(seat *models.Seat, card *models.Card, chosen models.Color) {
	if g.State != StateInProgress {
		g.rejectBlocked(seat.UserID, "game is not in progress")
		return
	}
	if g.Pending != nil {
		g.rejectBlocked(seat.UserID, "a pending action blocks the table")
		return
	}
	if seat.Index != g.CurrentSeatIndex {
		g.rejectBlocked(seat.UserID, "not your turn")
		return
	}
	if card == nil {
		g.rejectBlocked(seat.UserID, "no card supplied")
		return
	}

	handIdx := -1
	for i, c := range g.Hands[seat.UserID] {
		if c.Same(*card) {
			handIdx = i
			break
		}
	}
	if handIdx == -1 {
		g.rejectBlocked(seat.UserID, "card is not in your hand")
		return
	}

	top := g.DiscardPile[len(g.DiscardPile)-1]
	if !isLegalPlay(*card, top) {
		g.rejectBlocked(seat.UserID, "card does not match the discard top")
		return
	}
	if card.IsBlack() && !validChosenColor(chosen) {
		g.rejectBlocked(seat.UserID, "black card needs a chosen color")
		return
	}

	// Accepted: remove from hand, stamp and discard.
	hand := g.Hands[seat.UserID]
	g.Hands[seat.UserID] = append(hand[:handIdx], hand[handIdx+1:]...)

	played := *card
	played.ChosenColor = ""
	if played.IsBlack() {
		played.ChosenColor = chosen
	}
	g.DiscardPile = append(g.DiscardPile, played)

	g.journal(seat.UserID, "play_card", map[string]interface{}{
		"rank": string(played.Rank), "color": string(played.Color), "chosen": string(played.ChosenColor),
	})

	switch played.Rank {
	case models.RankSkip:
		g.applySkip()
	case models.RankReverse:
		g.applyReverse()
	case models.RankPlusThree:
		g.applyDrawPenaltyCard(seat.UserID, 3)
	case models.RankPlusFive:
		g.applyDrawPenaltyCard(seat.UserID, 5)
	case models.RankWild:
		g.beginDiceRoll(seat.UserID)
	default:
		g.advanceTurn()
	}

	g.fireHandUpdate(seat.UserID)
	g.firePlayersUpdate()
	g.checkWin(seat.UserID)
	if g.ended {
		return
	}
	g.afterHandMutation(seat.UserID)
}

// applyDrawPenaltyCard resolves a +3/+5: the seat after the actor in the
// current direction receives n cards from the deck head (fewer when the
// deck is short), and the turn jumps straight to that seat. The penalized
// seat's own turn follows immediately; it is not additionally skipped.
// Assumes lock is held.
func (g *FortunoGame) applyDrawPenaltyCard(actor uuid.UUID, n int) {
	targetIdx := g.nextSeatIndex(g.CurrentSeatIndex)
	target := g.Seats[targetIdx].UserID
	drawn := g.drawToHand(target, n)
	g.journal(actor, "penalty_draw", map[string]interface{}{
		"target": target.String(), "drawn": drawn,
	})
	g.CurrentSeatIndex = targetIdx
	g.fireEvent(GameEvent{Type: EventTurnChanged, User: g.eventUser(target)})
}

// handleDrawCard lets the acting seat take one card from the deck head and
// pass the turn. An empty deck makes the draw a no-op, never an error.
// Assumes lock is held.
func (g *FortunoGame) handleDrawCard(seat *models.Seat) {
	if g.State != StateInProgress {
		g.rejectBlocked(seat.UserID, "game is not in progress")
		return
	}
	if g.Pending != nil {
		g.rejectBlocked(seat.UserID, "a pending action blocks the table")
		return
	}
	if seat.Index != g.CurrentSeatIndex {
		g.rejectBlocked(seat.UserID, "not your turn")
		return
	}
	drawn := g.drawToHand(seat.UserID, 1)
	g.journal(seat.UserID, "draw_card", map[string]interface{}{"drawn": drawn})
	g.advanceTurn()
	g.firePlayersUpdate()
}

// checkWin runs after every accepted play; it only acts when the play
// emptied the actor's hand. Winning requires the callout for that hand to
// have resolved Satisfied strictly before the emptying play; otherwise the
// play counts as a missed callout: two penalty cards, turn order untouched,
// game continues.
// Assumes lock is held.
func (g *FortunoGame) checkWin(userID uuid.UUID) {
	if len(g.Hands[userID]) != 0 {
		return
	}
	if g.calloutSatisfied[userID] {
		g.endWithWinner(userID)
		return
	}
	g.log.WithField("user", userID).Info("hand emptied without a satisfied callout, penalizing")
	g.fireEvent(GameEvent{
		Type:    EventCalloutResolved,
		User:    g.eventUser(userID),
		Outcome: CalloutOutcomeMissed,
	})
	g.drawToHand(userID, g.PenaltyDrawCount)
	g.firePlayersUpdate()
}
