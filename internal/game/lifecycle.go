// internal/game/lifecycle.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fortuno-game/fortuno/internal/models"
)

// Seat lifecycle. A dropped connection never vacates a seat: the seat flips
// to Disconnected, keeps its hand and its place in turn order, and the same
// identity can reattach at any time. Only an explicit leave intent retires
// a seat, and even then the seat index survives so the turn ring stays
// stable.

// HandleDisconnect marks a seat's transport as gone. Called by the websocket
// layer on read-loop exit; acquires the lock itself.
func (g *FortunoGame) HandleDisconnect(userID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	seat := g.seatByUser(userID)
	if seat == nil || seat.Connection != models.SeatConnected || g.ended {
		return
	}
	seat.Connection = models.SeatDisconnected
	g.log.WithField("user", userID).Info("seat disconnected")
	g.firePlayersUpdate()

	if g.State == StateInProgress && g.connectedCount() == 0 {
		g.startGraceTimer()
	}
}

// HandleReconnect reattaches an identity to its seat and unicasts a full
// state snapshot. Reconnecting is read-only: no game state beyond the
// connection flag changes, so a duplicate reconnect is harmless.
// Acquires the lock itself.
func (g *FortunoGame) HandleReconnect(userID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	seat := g.seatByUser(userID)
	if seat == nil || seat.Connection == models.SeatLeft {
		g.rejectAuth(userID, "no seat to reconnect to")
		return
	}
	if seat.Connection == models.SeatDisconnected {
		seat.Connection = models.SeatConnected
		g.log.WithField("user", userID).Info("seat reconnected")
	}
	if g.graceTimer != nil && g.connectedCount() > 0 {
		g.graceTimer.Stop()
		g.graceTimer = nil
	}

	state := g.snapshotFor(userID)
	g.fireEventToSeat(userID, GameEvent{Type: EventSyncState, State: &state})
	g.firePlayersUpdate()
}

// handleLeave retires a seat. An explicit leave returns the hand to the
// bottom of the deck so every card stays accounted for; a non-explicit
// leave is just a disconnect dressed as an intent.
// Assumes lock is held.
func (g *FortunoGame) handleLeave(seat *models.Seat, explicit bool) {
	if !explicit {
		if seat.Connection == models.SeatConnected {
			seat.Connection = models.SeatDisconnected
			g.firePlayersUpdate()
			if g.State == StateInProgress && g.connectedCount() == 0 {
				g.startGraceTimer()
			}
		}
		return
	}
	if seat.Connection == models.SeatLeft {
		return
	}

	wasCurrent := g.State == StateInProgress && g.currentSeat() == seat
	seat.Connection = models.SeatLeft
	seat.SkipNext = false
	g.Deck = append(g.Deck, g.Hands[seat.UserID]...)
	g.Hands[seat.UserID] = nil

	delete(g.deferredCallout, seat.UserID)
	delete(g.calloutSatisfied, seat.UserID)
	if g.Callout != nil && g.Callout.Holder == seat.UserID {
		g.cancelCallout()
	}
	if g.Pending != nil && g.Pending.Actor == seat.UserID {
		// The pending effect has no actor left to resolve it; drop it.
		g.Pending = nil
		g.flushDeferredCallouts()
	}

	g.journal(seat.UserID, "leave", nil)
	g.log.WithField("user", seat.UserID).Info("seat left the session")
	g.firePlayersUpdate()

	if g.State != StateInProgress {
		return
	}
	switch g.seatedCount() {
	case 0:
		g.endForfeit()
		return
	case 1:
		for _, s := range g.Seats {
			if s.Connection != models.SeatLeft {
				g.endWithWinner(s.UserID)
				return
			}
		}
	}
	if wasCurrent {
		g.advanceTurn()
	}
}

// connectedCount returns seats with a live transport. Assumes lock is held.
func (g *FortunoGame) connectedCount() int {
	n := 0
	for _, s := range g.Seats {
		if s.Connection == models.SeatConnected {
			n++
		}
	}
	return n
}

// startGraceTimer arms the abandoned-table teardown. If every seat is still
// gone when it fires, the session forfeits. Assumes lock is held.
func (g *FortunoGame) startGraceTimer() {
	if g.graceTimer != nil {
		return
	}
	g.log.Warnf("all seats disconnected, forfeiting in %s", g.GraceDur)
	g.graceTimer = time.AfterFunc(g.GraceDur, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		g.graceTimer = nil
		if g.ended || g.connectedCount() > 0 {
			return
		}
		g.endForfeit()
	})
}

// endWithWinner closes the session with a winner. Assumes lock is held.
func (g *FortunoGame) endWithWinner(winner uuid.UUID) {
	if g.ended {
		return
	}
	g.ended = true
	g.State = StateEndedWon
	g.stopTimers()
	g.Pending = nil

	g.log.WithFields(logrus.Fields{"winner": winner}).Info("game won")
	g.journal(winner, "game_won", nil)
	g.fireEvent(GameEvent{Type: EventGameWon, User: g.eventUser(winner)})
	if g.OnGameEnd != nil {
		g.OnGameEnd(g.RoomID, winner)
	}
}

// endForfeit closes the session with no winner. Assumes lock is held.
func (g *FortunoGame) endForfeit() {
	if g.ended {
		return
	}
	g.ended = true
	g.State = StateEndedForfeited
	g.stopTimers()
	g.Pending = nil

	g.log.Info("game forfeited")
	g.journal(uuid.Nil, "game_forfeited", nil)
	g.fireEvent(GameEvent{Type: EventGameWon, Reason: "forfeited"})
	if g.OnGameEnd != nil {
		g.OnGameEnd(g.RoomID, uuid.Nil)
	}
}

// stopTimers cancels every armed timer. Assumes lock is held.
func (g *FortunoGame) stopTimers() {
	if g.Callout != nil {
		g.Callout.timer.Stop()
		g.Callout = nil
	}
	if g.graceTimer != nil {
		g.graceTimer.Stop()
		g.graceTimer = nil
	}
}
