// internal/game/turns.go
package game

import (
	"github.com/fortuno-game/fortuno/internal/models"
)

// seatedCount returns how many seats have not permanently left. Disconnected
// seats still count: a transient drop never costs anyone their place in the
// rotation.
// Assumes lock is held.
func (g *FortunoGame) seatedCount() int {
	n := 0
	for _, s := range g.Seats {
		if s.Connection != models.SeatLeft {
			n++
		}
	}
	return n
}

// nextSeatIndex walks one step from the given index in the current
// direction, skipping seats that have left. Seat indexes are stable for the
// session's life, so removal can never scramble whose turn is next.
// Assumes lock is held and at least one seat is still seated.
func (g *FortunoGame) nextSeatIndex(from int) int {
	n := len(g.Seats)
	idx := from
	for {
		idx = (idx + g.Direction + n) % n
		if g.Seats[idx].Connection != models.SeatLeft {
			return idx
		}
	}
}

// advanceTurn moves the acting seat one step, consuming any pending skip
// flags along the way: a seat that comes up with skipNext set is passed
// over, its flag cleared, and a turnSkipped event emitted.
// Assumes lock is held.
func (g *FortunoGame) advanceTurn() {
	idx := g.nextSeatIndex(g.CurrentSeatIndex)
	for g.Seats[idx].SkipNext {
		g.Seats[idx].SkipNext = false
		skipped := g.Seats[idx].UserID
		idx = g.nextSeatIndex(idx)
		g.fireEvent(GameEvent{
			Type: EventTurnSkipped,
			Payload: map[string]interface{}{
				"skipped": skipped.String(),
				"current": g.Seats[idx].UserID.String(),
			},
		})
	}
	g.CurrentSeatIndex = idx
	g.fireEvent(GameEvent{Type: EventTurnChanged, User: g.eventUser(g.Seats[idx].UserID)})
}

// applySkip advances twice: the immediate next seat loses its turn. The
// announced current seat is the next candidate; a pending skip flag on it
// makes advanceTurn emit a further turnSkipped, same as its own loop does.
// Assumes lock is held.
func (g *FortunoGame) applySkip() {
	skippedIdx := g.nextSeatIndex(g.CurrentSeatIndex)
	g.fireEvent(GameEvent{
		Type: EventTurnSkipped,
		Payload: map[string]interface{}{
			"skipped": g.Seats[skippedIdx].UserID.String(),
			"current": g.Seats[g.nextSeatIndex(skippedIdx)].UserID.String(),
		},
	})
	g.CurrentSeatIndex = skippedIdx
	g.advanceTurn()
}

// applyReverse flips the direction and advances. With exactly two seated
// players a reverse has no directional effect, so it degenerates to a skip.
// Assumes lock is held.
func (g *FortunoGame) applyReverse() {
	if g.seatedCount() == 2 {
		g.applySkip()
		return
	}
	g.Direction = -g.Direction
	g.advanceTurn()
}
