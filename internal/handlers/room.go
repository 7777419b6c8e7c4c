// internal/handlers/room.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fortuno-game/fortuno/internal/auth"
	"github.com/fortuno-game/fortuno/internal/cache"
	"github.com/fortuno-game/fortuno/internal/database"
	"github.com/fortuno-game/fortuno/internal/models"
	"github.com/fortuno-game/fortuno/internal/room"
)

// authenticatedUser extracts the caller's identity from the auth cookie.
func authenticatedUser(r *http.Request) (uuid.UUID, bool) {
	cookie := r.Header.Get("Cookie")
	if !strings.Contains(cookie, "auth_token=") {
		return uuid.Nil, false
	}
	userIDStr, err := auth.AuthenticateJWT(extractCookieToken(cookie, "auth_token"))
	if err != nil {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

// CreateRoomHandler makes a new room, registers it in memory, and writes
// the advisory directory row.
func CreateRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticatedUser(r)
		if !ok {
			http.Error(w, "missing or invalid auth_token", http.StatusUnauthorized)
			return
		}

		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			http.Error(w, "bad room request payload", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			req.Name = "FortUno room"
		}

		rm := room.NewRoom(userID, req.Name)
		rm.OnEmpty = func(roomID uuid.UUID) {
			gs.RoomStore.DeleteRoom(roomID)
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if database.DB != nil {
					if err := database.DeleteRoom(ctx, roomID); err != nil {
						logrus.WithError(err).Warn("failed to delete room row")
					}
				}
			}()
		}
		gs.RoomStore.AddRoom(rm)

		if database.DB != nil {
			record := &models.Room{ID: rm.ID, HostUserID: userID, Name: rm.Name}
			if err := database.InsertRoom(r.Context(), record); err != nil {
				logrus.WithError(err).Warn("failed to persist room row")
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rm)
	}
}

// ListRoomsHandler returns the open rooms from the in-memory registry.
func ListRoomsHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authenticatedUser(r); !ok {
			http.Error(w, "missing or invalid auth_token", http.StatusUnauthorized)
			return
		}

		type roomSummary struct {
			ID      uuid.UUID `json:"id"`
			Name    string    `json:"name"`
			Players int       `json:"players"`
			Started bool      `json:"started"`
		}
		live := gs.RoomStore.GetRooms()
		out := []roomSummary{}
		for _, rm := range live {
			rm.Mu.Lock()
			out = append(out, roomSummary{
				ID:      rm.ID,
				Name:    rm.Name,
				Players: len(rm.Order),
				Started: rm.Started,
			})
			rm.Mu.Unlock()
		}

		// Directory rows without a live room are leftovers from a restart;
		// surface them so clients can tell their room is gone for good.
		if database.DB != nil {
			if rows, err := database.GetOpenRooms(r.Context()); err == nil {
				for _, rec := range rows {
					if _, ok := live[rec.ID]; ok {
						continue
					}
					players := 0
					if ids, err := database.GetParticipants(r.Context(), rec.ID); err == nil {
						players = len(ids)
					}
					out = append(out, roomSummary{
						ID:      rec.ID,
						Name:    rec.Name,
						Players: players,
						Started: rec.Started,
					})
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

// RoomStartedHandler answers whether a room's game is running: the live
// registry first, then the Redis flag, then the database directory.
func RoomStartedHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomIDStr := strings.TrimPrefix(r.URL.Path, "/room/started/")
		roomID, err := uuid.Parse(roomIDStr)
		if err != nil {
			http.Error(w, "invalid room_id", http.StatusBadRequest)
			return
		}

		started := gs.GameStore.GetGameByRoomID(roomID) != nil
		if !started && cache.Rdb != nil {
			if cached, err := cache.RoomStarted(r.Context(), roomID); err == nil && cached {
				started = true
			}
		}
		if !started && database.DB != nil {
			if rec, err := database.GetRoom(r.Context(), roomID); err == nil {
				started = rec.Started
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"started": started})
	}
}
