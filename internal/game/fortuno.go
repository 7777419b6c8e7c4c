// internal/game/fortuno.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fortuno-game/fortuno/internal/models"
)

// The two FortUno sub-mechanics live here: the wild-card dice effect and the
// last-card callout. They share a name in the rules but are independent
// state machines, kept in separate slots (Pending vs Callout).

// beginDiceRoll rolls the dice server-side and parks the table behind a
// PendingDice lock. The value is broadcast immediately; its effect applies
// only once a diceAnimationFinished intent arrives from any connected seat.
// Assumes lock is held.
func (g *FortunoGame) beginDiceRoll(actor uuid.UUID) {
	value := g.rng.Intn(6) + 1
	g.Pending = &PendingAction{Kind: PendingDice, Actor: actor, DiceValue: value}
	g.journal(actor, "dice_rolled", map[string]interface{}{"value": value})
	g.fireEvent(GameEvent{Type: EventDiceRolled, User: g.eventUser(actor), Dice: value})
}

// handleDiceFinished applies the held dice effect. The intent may come from
// any connected seat, not just the actor; late or duplicate arrivals are
// stale and silently ignored.
// Assumes lock is held.
func (g *FortunoGame) handleDiceFinished(from *models.Seat) {
	if g.Pending == nil || g.Pending.Kind != PendingDice {
		g.log.WithField("user", from.UserID).Debug("stale diceAnimationFinished, ignoring")
		return
	}
	actor := g.Pending.Actor
	value := g.Pending.DiceValue
	g.journal(actor, "dice_effect", map[string]interface{}{"value": value})

	switch value {
	case 1:
		g.Pending = nil
		g.drawToHand(actor, 1)
		g.advanceTurn()
	case 2:
		g.Pending = nil
		g.drawToHand(actor, 3)
		g.advanceTurn()
	case 3:
		g.Pending = nil
		g.rotateHands()
		g.advanceTurn()
	case 4:
		if len(g.Hands[actor]) == 0 {
			// Nothing to choose from; the choice step collapses.
			g.Pending = nil
			g.advanceTurn()
			break
		}
		g.Pending = &PendingAction{Kind: PendingDiscardChoice, Actor: actor}
	case 5:
		g.Pending = nil
		g.advanceTurn()
		g.currentSeat().SkipNext = true
	case 6:
		g.Pending = nil
		g.reclaimWild(actor)
		g.advanceTurn()
	}

	g.firePlayersUpdate()
	if g.Pending == nil {
		g.flushDeferredCallouts()
	}
}

// rotateHands reassigns every seated player's hand to the next seat in
// turn-direction order: one cyclic permutation, so applying it seat-count
// times restores the original assignment.
// Assumes lock is held.
func (g *FortunoGame) rotateHands() {
	order := []int{}
	idx := g.CurrentSeatIndex
	for {
		order = append(order, idx)
		idx = g.nextSeatIndex(idx)
		if idx == g.CurrentSeatIndex {
			break
		}
	}
	rotated := make(map[uuid.UUID][]models.Card, len(order))
	for k, seatIdx := range order {
		next := order[(k+1)%len(order)]
		rotated[g.Seats[next].UserID] = g.Hands[g.Seats[seatIdx].UserID]
	}
	for userID, hand := range rotated {
		g.Hands[userID] = hand
	}
	for _, seatIdx := range order {
		userID := g.Seats[seatIdx].UserID
		g.afterHandMutation(userID)
		g.fireHandUpdate(userID)
	}
}

// reclaimWild pulls the played Wild off the discard top, strips its stamped
// color, and returns it to the actor's hand.
// Assumes lock is held.
func (g *FortunoGame) reclaimWild(actor uuid.UUID) {
	if len(g.DiscardPile) == 0 {
		return
	}
	top := g.DiscardPile[len(g.DiscardPile)-1]
	if top.Rank != models.RankWild {
		g.log.Warn("dice effect 6 with no wild on discard top")
		return
	}
	g.DiscardPile = g.DiscardPile[:len(g.DiscardPile)-1]
	top.ChosenColor = ""
	g.Hands[actor] = append(g.Hands[actor], top)
	g.afterHandMutation(actor)
	g.fireHandUpdate(actor)
}

// handleDiscardChoice resolves dice effect 4: the Wild actor picks a hand
// card by index and it is slid under the pile, inserted at the tail so the
// legality-relevant top is unaffected, before the turn advances.
// A discardCard with no matching pending phase is stale and ignored.
// Assumes lock is held.
func (g *FortunoGame) handleDiscardChoice(seat *models.Seat, index *int) {
	if g.Pending == nil || g.Pending.Kind != PendingDiscardChoice {
		g.log.WithField("user", seat.UserID).Debug("stale discardCard, ignoring")
		return
	}
	if g.Pending.Actor != seat.UserID {
		g.rejectBlocked(seat.UserID, "another seat must choose the discard")
		return
	}
	hand := g.Hands[seat.UserID]
	if index == nil || *index < 0 || *index >= len(hand) {
		g.rejectBlocked(seat.UserID, "invalid hand index")
		return
	}

	chosen := hand[*index]
	g.Hands[seat.UserID] = append(hand[:*index], hand[*index+1:]...)
	g.DiscardPile = append([]models.Card{chosen}, g.DiscardPile...)
	g.Pending = nil

	g.journal(seat.UserID, "discard_choice", map[string]interface{}{"index": *index})
	g.fireHandUpdate(seat.UserID)
	g.advanceTurn()
	g.firePlayersUpdate()
	// The choice can empty the hand; it answers to the same win/callout
	// evaluation as a play.
	g.checkWin(seat.UserID)
	if g.ended {
		return
	}
	g.afterHandMutation(seat.UserID)
	g.flushDeferredCallouts()
}

// afterHandMutation re-evaluates the callout rules for one seat's new hand
// size. It opens a window when the hand just reached exactly one card,
// defers the opening while a pending action blocks the table, and retires
// satisfied-callout credit as soon as the hand grows past one again.
// Assumes lock is held.
func (g *FortunoGame) afterHandMutation(userID uuid.UUID) {
	size := len(g.Hands[userID])
	if size == 1 {
		if g.Callout != nil && g.Callout.Holder == userID && g.Callout.Outcome == CalloutPending {
			return
		}
		if g.Pending != nil || g.Callout != nil {
			g.deferredCallout[userID] = true
			return
		}
		g.openCallout(userID)
		return
	}

	delete(g.deferredCallout, userID)
	if size > 1 {
		delete(g.calloutSatisfied, userID)
	}
	if g.Callout != nil && g.Callout.Holder == userID && g.Callout.Outcome == CalloutPending {
		// The window's hand no longer exists (penalty draw, rotation...);
		// retire it without penalty.
		g.cancelCallout()
	}
}

// openCallout starts the 5-second last-card window for a seat.
// Assumes lock is held; callers guarantee no other window or pending action
// is active.
func (g *FortunoGame) openCallout(holder uuid.UUID) {
	g.calloutSeq++
	seq := g.calloutSeq
	w := &CalloutWindow{
		Holder:   holder,
		Deadline: time.Now().Add(g.CalloutWindowDur),
		Outcome:  CalloutPending,
		seq:      seq,
	}
	w.timer = time.AfterFunc(g.CalloutWindowDur, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		g.resolveCallout(seq, uuid.Nil)
	})
	g.Callout = w

	g.log.WithField("holder", holder).Debug("callout window opened")
	deadline := w.Deadline
	g.fireEvent(GameEvent{
		Type:     EventShowCalloutControl,
		User:     g.eventUser(holder),
		Deadline: &deadline,
	})
}

// handleCalloutClicked funnels a click into the same resolution logic the
// deadline timer uses. Clicks with no open window are stale and ignored.
// Assumes lock is held.
func (g *FortunoGame) handleCalloutClicked(seat *models.Seat) {
	if g.Callout == nil {
		g.log.WithField("user", seat.UserID).Debug("stale calloutClicked, ignoring")
		return
	}
	g.resolveCallout(g.Callout.seq, seat.UserID)
}

// resolveCallout is the single resolution path for a callout window, shared
// by the click and timer branches. The seq and Outcome guards make the
// click/timeout race settle exactly once: whichever arrives second finds
// the window already resolved (or replaced) and returns without effect.
// by == uuid.Nil marks the deadline-timer branch.
// Assumes lock is held.
func (g *FortunoGame) resolveCallout(seq int, by uuid.UUID) {
	w := g.Callout
	if w == nil || w.seq != seq || w.Outcome != CalloutPending {
		return
	}
	w.timer.Stop()

	if by == w.Holder {
		w.Outcome = CalloutSatisfied
		g.calloutSatisfied[w.Holder] = true
	} else {
		w.Outcome = CalloutPenalized
	}
	g.Callout = nil

	outcome := CalloutOutcomeSatisfied
	if w.Outcome == CalloutPenalized {
		outcome = CalloutOutcomePenalized
	}
	g.log.WithFields(logrus.Fields{"holder": w.Holder, "outcome": outcome}).Info("callout resolved")
	g.journal(w.Holder, "callout_resolved", map[string]interface{}{"outcome": outcome})

	g.fireEvent(GameEvent{Type: EventHideCalloutControl})
	g.fireEvent(GameEvent{Type: EventCalloutResolved, User: g.eventUser(w.Holder), Outcome: outcome})

	if w.Outcome == CalloutPenalized {
		g.drawToHand(w.Holder, g.PenaltyDrawCount)
	}
	g.firePlayersUpdate()
	g.flushDeferredCallouts()
}

// cancelCallout retires a pending window without an outcome, e.g. when the
// holder's hand changed away from one card before anyone reacted.
// Assumes lock is held.
func (g *FortunoGame) cancelCallout() {
	if g.Callout == nil {
		return
	}
	g.Callout.timer.Stop()
	g.log.WithField("holder", g.Callout.Holder).Debug("callout window cancelled")
	g.Callout = nil
	g.fireEvent(GameEvent{Type: EventHideCalloutControl})
	g.flushDeferredCallouts()
}

// flushDeferredCallouts opens the next deferred window once no pending
// action or open window stands in the way. One window at a time: further
// seats stay deferred until this one resolves.
// Assumes lock is held.
func (g *FortunoGame) flushDeferredCallouts() {
	if g.Pending != nil || g.Callout != nil || g.ended {
		return
	}
	for _, s := range g.Seats {
		if !g.deferredCallout[s.UserID] {
			continue
		}
		delete(g.deferredCallout, s.UserID)
		if len(g.Hands[s.UserID]) == 1 {
			g.openCallout(s.UserID)
			return
		}
	}
}
