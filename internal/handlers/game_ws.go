// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fortuno-game/fortuno/internal/game"
	"github.com/fortuno-game/fortuno/internal/models"
)

// GameMessage is one inbound websocket frame during the game phase.
type GameMessage struct {
	Type        string       `json:"type"`
	Card        *models.Card `json:"card,omitempty"`
	ChosenColor string       `json:"chosenColor,omitempty"`
	Index       *int         `json:"index,omitempty"`
	Explicit    bool         `json:"explicit,omitempty"`
}

// seatConn is one seat's live websocket attachment. Events are queued on
// out and written by a single pump goroutine, so delivery order matches the
// order the engine emitted them in.
type seatConn struct {
	userID uuid.UUID
	ws     *websocket.Conn
	out    chan []byte
	cancel func()
}

// enqueue hands a marshaled event to the write pump without blocking.
func (sc *seatConn) enqueue(data []byte, log *logrus.Logger) {
	select {
	case sc.out <- data:
	default:
		log.WithField("user", sc.userID).Warn("game outchan full, dropping event")
	}
}

// GameWSHandler upgrades the connection for one game, authenticates the
// user, attaches the seat, and runs the read loop until the socket dies.
func GameWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameIDStr := strings.TrimPrefix(r.URL.Path, "/game/ws/")
		if idx := strings.Index(gameIDStr, "/"); idx != -1 {
			gameIDStr = gameIDStr[:idx]
		}
		gameID, err := uuid.Parse(gameIDStr)
		if err != nil {
			http.Error(w, "invalid game_id", http.StatusBadRequest)
			return
		}

		g, ok := gs.GameStore.GetGame(gameID)
		if !ok {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error for game %s: %v", gameID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler exit")

		if c.Subprotocol() != "game" {
			c.Close(BadSubprotocolError, "client must speak the game subprotocol")
			return
		}

		userID, err := EnsureEphemeralUser(w, r)
		if err != nil {
			logger.Warnf("auth failed for game %s: %v", gameID, err)
			c.Close(websocket.StatusPolicyViolation, "authentication failed")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sc := &seatConn{
			userID: userID,
			ws:     c,
			out:    make(chan []byte, 64),
			cancel: cancel,
		}
		gs.attachGameConn(gameID, sc)
		go gameWritePump(ctx, sc, logger)

		logger.WithFields(logrus.Fields{"user": userID, "game": gameID, "remote": r.RemoteAddr}).
			Info("game websocket connected")

		// Reattaches the seat and replays a private state snapshot. Also
		// rejects identities with no seat in this game.
		g.HandleReconnect(userID)

		readGameMessages(ctx, c, g, userID, logger)

		gs.detachGameConn(gameID, userID, sc)
		g.HandleDisconnect(userID)
		logger.WithFields(logrus.Fields{"user": userID, "game": gameID}).Info("game websocket closed")
	}
}

// readGameMessages translates frames into intents and feeds them to the
// engine with the game lock held, one frame at a time.
func readGameMessages(ctx context.Context, c *websocket.Conn, g *game.FortunoGame, userID uuid.UUID, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				strings.Contains(err.Error(), "context canceled") {
				return
			}
			logger.Warnf("game ws read error for user %s: %v", userID, err)
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg GameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("invalid json from user %s: %v", userID, err)
			continue
		}

		if msg.Type == "ping" {
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_ = c.Write(writeCtx, websocket.MessageText, []byte(`{"type":"pong"}`))
			cancel()
			continue
		}

		intent := models.GameIntent{
			Type:        msg.Type,
			Card:        msg.Card,
			ChosenColor: models.Color(msg.ChosenColor),
			Index:       msg.Index,
			Explicit:    msg.Explicit,
		}

		g.Mu.Lock()
		g.HandleIntent(userID, intent)
		g.Mu.Unlock()
	}
}

// gameWritePump drains one seat's event queue to its websocket.
func gameWritePump(ctx context.Context, sc *seatConn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-sc.out:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := sc.ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("game ws write failed for user %s: %v", sc.userID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := sc.ws.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("game ws ping failed for user %s: %v", sc.userID, err)
				return
			}
		}
	}
}

// attachGameConn registers a seat's connection, replacing any stale one.
func (gs *GameServer) attachGameConn(gameID uuid.UUID, sc *seatConn) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.conns[gameID] == nil {
		gs.conns[gameID] = make(map[uuid.UUID]*seatConn)
	}
	// Broadcasts may race a detach, so queues are never closed; cancelling
	// the pump's context is the only teardown signal.
	if old, ok := gs.conns[gameID][sc.userID]; ok && old != sc && old.cancel != nil {
		old.cancel()
	}
	gs.conns[gameID][sc.userID] = sc
}

// detachGameConn removes a seat's connection if it is still the live one.
func (gs *GameServer) detachGameConn(gameID, userID uuid.UUID, sc *seatConn) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if cur, ok := gs.conns[gameID][userID]; ok && cur == sc {
		delete(gs.conns[gameID], userID)
	}
}

// dropGameConns tears down every connection registered for a game.
func (gs *GameServer) dropGameConns(gameID uuid.UUID) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	for _, sc := range gs.conns[gameID] {
		if sc.cancel != nil {
			sc.cancel()
		}
	}
	delete(gs.conns, gameID)
}

// broadcastFunc marshals once and enqueues to every seat's write pump. The
// engine calls this with the game lock held; enqueueing never blocks, and
// per-seat queues preserve emit order.
func (gs *GameServer) broadcastFunc(gameID uuid.UUID) func(ev game.GameEvent) {
	return func(ev game.GameEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			gs.Log.Errorf("failed to marshal broadcast event %s: %v", ev.Type, err)
			return
		}
		gs.mu.Lock()
		targets := make([]*seatConn, 0, len(gs.conns[gameID]))
		for _, sc := range gs.conns[gameID] {
			targets = append(targets, sc)
		}
		gs.mu.Unlock()
		for _, sc := range targets {
			sc.enqueue(data, gs.Log)
		}
	}
}

// broadcastToSeatFunc is the unicast counterpart of broadcastFunc.
func (gs *GameServer) broadcastToSeatFunc(gameID uuid.UUID) func(userID uuid.UUID, ev game.GameEvent) {
	return func(userID uuid.UUID, ev game.GameEvent) {
		gs.mu.Lock()
		sc, ok := gs.conns[gameID][userID]
		gs.mu.Unlock()
		if !ok {
			return
		}
		data, err := json.Marshal(ev)
		if err != nil {
			gs.Log.Errorf("failed to marshal private event %s: %v", ev.Type, err)
			return
		}
		sc.enqueue(data, gs.Log)
	}
}
