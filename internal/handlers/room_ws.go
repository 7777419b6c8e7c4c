// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fortuno-game/fortuno/internal/database"
	"github.com/fortuno-game/fortuno/internal/room"
)

// RoomWSHandler runs the waiting-area websocket: roster, ready states,
// chat, and the host's start command.
func RoomWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomIDStr := strings.TrimPrefix(r.URL.Path, "/room/ws/")
		if idx := strings.Index(roomIDStr, "/"); idx != -1 {
			roomIDStr = roomIDStr[:idx]
		}
		roomID, err := uuid.Parse(roomIDStr)
		if err != nil {
			http.Error(w, "invalid room_id", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"room"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler exit")

		if c.Subprotocol() != "room" {
			c.Close(BadSubprotocolError, "client must speak the room subprotocol")
			return
		}

		userID, err := EnsureEphemeralUser(w, r)
		if err != nil {
			logger.Warnf("auth failed for room %s: %v", roomID, err)
			c.Close(websocket.StatusPolicyViolation, "authentication failed")
			return
		}

		rm, exists := gs.RoomStore.GetRoom(roomID)
		if !exists {
			c.Close(InvalidRoomIDError, "room does not exist")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		conn := &room.Connection{
			UserID:  userID,
			Cancel:  cancel,
			OutChan: make(chan map[string]interface{}, 16),
			IsHost:  rm.HostUserID == userID,
		}
		conn.Username = "Guest_" + userID.String()[:4]
		if database.DB != nil {
			if u, err := database.GetUserByID(ctx, userID); err == nil {
				conn.Username = u.Username
			}
		}

		if err := rm.AddConnection(userID, conn); err != nil {
			c.Close(websocket.StatusPolicyViolation, err.Error())
			cancel()
			return
		}
		go func() {
			dbCtx, dbCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer dbCancel()
			if database.DB != nil {
				if err := database.InsertParticipant(dbCtx, roomID, userID); err != nil {
					logger.WithError(err).Warn("failed to persist room participant")
				}
			}
		}()

		logger.WithFields(logrus.Fields{"user": userID, "room": roomID, "remote": r.RemoteAddr}).
			Info("room websocket connected")

		go roomWritePump(ctx, c, conn, logger)
		readRoomMessages(ctx, c, rm, conn, gs, logger)

		rm.DropConnection(userID)
		logger.WithFields(logrus.Fields{"user": userID, "room": roomID}).Info("room websocket closed")
	}
}

// readRoomMessages dispatches waiting-area commands until the socket dies.
func readRoomMessages(ctx context.Context, c *websocket.Conn, rm *room.Room, conn *room.Connection, gs *GameServer, logger *logrus.Logger) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway &&
				!strings.Contains(err.Error(), "context canceled") {
				logger.Warnf("room ws read error for user %s: %v", conn.UserID, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var packet map[string]interface{}
		if err := json.Unmarshal(data, &packet); err != nil {
			conn.WriteError("invalid JSON format")
			continue
		}

		action, _ := packet["type"].(string)
		switch action {
		case "ready":
			rm.SetReady(conn.UserID, true)
		case "unready":
			rm.SetReady(conn.UserID, false)
		case "chat":
			if msg, _ := packet["msg"].(string); msg != "" {
				rm.BroadcastChat(conn.UserID, msg)
			}
		case "leave_room":
			rm.RemoveUser(conn.UserID)
			go func() {
				dbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if database.DB != nil {
					if err := database.RemoveParticipant(dbCtx, rm.ID, conn.UserID); err != nil {
						logger.WithError(err).Warn("failed to remove room participant")
					}
				}
			}()
			return
		case "start_game":
			if !conn.IsHost {
				conn.WriteError("only the host can start the game")
				continue
			}
			rm.Mu.Lock()
			started := rm.Started
			rm.Mu.Unlock()
			if started {
				conn.WriteError("game already in progress")
				continue
			}
			if g := gs.StartGameFromRoom(ctx, rm); g == nil {
				conn.WriteError("cannot start: need at least two players")
			}
		default:
			conn.WriteError(fmt.Sprintf("unknown action type: %s", action))
		}
	}
}

// roomWritePump drains the room connection's queue to the websocket.
func roomWritePump(ctx context.Context, c *websocket.Conn, conn *room.Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("failed to marshal room msg for user %s: %v", conn.UserID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("room ws write failed for user %s: %v", conn.UserID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("room ws ping failed for user %s: %v", conn.UserID, err)
				return
			}
		}
	}
}
