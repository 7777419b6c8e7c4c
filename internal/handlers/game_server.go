// internal/handlers/game_server.go
package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fortuno-game/fortuno/internal/cache"
	"github.com/fortuno-game/fortuno/internal/database"
	"github.com/fortuno-game/fortuno/internal/game"
	"github.com/fortuno-game/fortuno/internal/room"
)

// GameServer owns the in-memory registries and the plumbing between games
// and their websocket connections.
type GameServer struct {
	RoomStore *room.Store
	GameStore *game.GameStore
	Log       *logrus.Logger

	// mu guards conns: gameID -> userID -> live seat connection.
	mu    sync.Mutex
	conns map[uuid.UUID]map[uuid.UUID]*seatConn

	// journalCh decouples the game lock from Redis round trips while
	// keeping journal records in acceptance order.
	journalCh chan cache.ActionRecord
}

func NewGameServer(logger *logrus.Logger) *GameServer {
	if logger == nil {
		logger = logrus.New()
	}
	gs := &GameServer{
		RoomStore: room.NewStore(),
		GameStore: game.NewGameStore(),
		Log:       logger,
		conns:     make(map[uuid.UUID]map[uuid.UUID]*seatConn),
		journalCh: make(chan cache.ActionRecord, 256),
	}
	go gs.journalPump()
	return gs
}

// journalPump drains accepted intents to the Redis action journal. A single
// consumer preserves per-game ordering.
func (gs *GameServer) journalPump() {
	for rec := range gs.journalCh {
		if cache.Rdb == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := cache.PublishAction(ctx, rec); err != nil {
			gs.Log.WithError(err).Warn("failed to publish action journal record")
		}
		cancel()
	}
}

// StartGameFromRoom builds a session from the room's join order, wires the
// delivery and journal callbacks, and starts it. Returns nil when the room
// cannot seat a legal game.
func (gs *GameServer) StartGameFromRoom(ctx context.Context, r *room.Room) *game.FortunoGame {
	seatOrder := r.SeatOrder()
	if len(seatOrder) < 2 {
		gs.Log.WithField("room", r.ID).Warn("cannot start game with fewer than two players")
		return nil
	}

	g := game.NewFortunoGame(r.ID, nil, gs.Log)
	for _, userID := range seatOrder {
		username := "Guest"
		if database.DB != nil {
			if u, err := database.GetUserByID(ctx, userID); err == nil {
				username = u.Username
			}
		}
		g.AddSeat(userID, username)
	}

	g.BroadcastFn = gs.broadcastFunc(g.ID)
	g.BroadcastToSeatFn = gs.broadcastToSeatFunc(g.ID)
	g.JournalFn = gs.journalFunc(g)
	g.OnGameEnd = gs.onGameEnd(g)

	gs.GameStore.AddGame(g)
	if err := g.Start(); err != nil {
		gs.Log.WithError(err).WithField("room", r.ID).Error("failed to start game")
		gs.GameStore.DeleteGame(g.ID)
		return nil
	}

	go func() {
		dbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if database.DB != nil {
			if err := database.SetRoomStarted(dbCtx, r.ID, true); err != nil {
				gs.Log.WithError(err).Warn("failed to persist room started flag")
			}
		}
		if cache.Rdb != nil {
			if err := cache.MarkRoomStarted(dbCtx, r.ID, true); err != nil {
				gs.Log.WithError(err).Warn("failed to cache room started flag")
			}
		}
	}()

	r.MarkStarted(g.ID)
	return g
}

// journalFunc captures a per-game action counter. The engine invokes it
// under the game lock, so the counter needs no further synchronization.
func (gs *GameServer) journalFunc(g *game.FortunoGame) game.JournalFunc {
	index := 0
	return func(actor uuid.UUID, kind string, payload map[string]interface{}) {
		index++
		rec := cache.ActionRecord{
			GameID:      g.ID,
			RoomID:      g.RoomID,
			ActionIndex: index,
			ActorUserID: actor,
			ActionType:  kind,
			Payload:     payload,
			Timestamp:   time.Now().UnixMilli(),
		}
		select {
		case gs.journalCh <- rec:
		default:
			gs.Log.WithField("game", g.ID).Warn("journal queue full, dropping record")
		}
	}
}

// onGameEnd returns the session teardown: the room flips back to waiting,
// the persisted flags reset, and the game leaves the registry. The engine
// calls this under the game lock, so anything slow moves to a goroutine.
func (gs *GameServer) onGameEnd(g *game.FortunoGame) game.OnGameEndFunc {
	return func(roomID uuid.UUID, winner uuid.UUID) {
		go func() {
			if r, ok := gs.RoomStore.GetRoom(roomID); ok {
				r.Mu.Lock()
				r.Started = false
				r.GameID = uuid.Nil
				for id := range r.ReadyStates {
					r.ReadyStates[id] = false
				}
				r.Mu.Unlock()

				result := map[string]interface{}{
					"type":   "room_game_ended",
					"winner": "",
				}
				if winner != uuid.Nil {
					result["winner"] = winner.String()
				}
				r.Broadcast(result)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if database.DB != nil {
				if err := database.SetRoomStarted(ctx, roomID, false); err != nil {
					gs.Log.WithError(err).Warn("failed to reset room started flag")
				}
			}
			if cache.Rdb != nil {
				if err := cache.MarkRoomStarted(ctx, roomID, false); err != nil {
					gs.Log.WithError(err).Warn("failed to reset cached room flag")
				}
			}

			gs.dropGameConns(g.ID)
			gs.GameStore.DeleteGame(g.ID)
		}()
	}
}
