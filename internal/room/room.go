// internal/room/room.go
package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Room is the waiting area in front of a game session: who has joined, who
// is connected, who is ready. Seat order at game start follows join order,
// which Order preserves. Once the game starts the room stays around as the
// address players reconnect through.
type Room struct {
	ID         uuid.UUID `json:"id"`
	HostUserID uuid.UUID `json:"hostUserId"`
	Name       string    `json:"name"`

	// Users maps userID -> joined. Order keeps join order for seating.
	Users map[uuid.UUID]bool `json:"-"`
	Order []uuid.UUID        `json:"-"`

	Connections map[uuid.UUID]*Connection `json:"-"`
	ReadyStates map[uuid.UUID]bool        `json:"-"`

	GameID  uuid.UUID `json:"gameId,omitempty"`
	Started bool      `json:"started"`

	// OnEmpty fires after the last connection drops, for registry cleanup.
	OnEmpty func(roomID uuid.UUID) `json:"-"`

	Mu sync.Mutex
}

// Connection is one user's live presence in the room.
type Connection struct {
	UserID   uuid.UUID
	Username string
	Cancel   func()
	OutChan  chan map[string]interface{}
	IsHost   bool
}

// Write hands a message to the connection's write pump without blocking.
// Dropped messages are logged; the room never stalls on a slow client.
func (c *Connection) Write(msg map[string]interface{}) {
	select {
	case c.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		logrus.WithFields(logrus.Fields{"user": c.UserID, "msgType": msgType}).
			Warn("room connection outchan full, dropping message")
	}
}

// WriteError sends an error object to this connection only.
func (c *Connection) WriteError(msg string) {
	c.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}

// NewRoom creates an open room hosted by hostID.
func NewRoom(hostID uuid.UUID, name string) *Room {
	id, _ := uuid.NewRandom()
	return &Room{
		ID:          id,
		HostUserID:  hostID,
		Name:        name,
		Users:       make(map[uuid.UUID]bool),
		Connections: make(map[uuid.UUID]*Connection),
		ReadyStates: make(map[uuid.UUID]bool),
	}
}

// MaxSeats bounds how many identities a room admits.
const MaxSeats = 4

// AddConnection attaches a user's websocket presence. Re-joining replaces
// the old connection; a brand-new identity claims the next place in join
// order. Acquires the lock.
func (r *Room) AddConnection(userID uuid.UUID, conn *Connection) error {
	r.Mu.Lock()

	if _, exists := r.Users[userID]; !exists {
		if r.Started {
			r.Mu.Unlock()
			return ErrGameInProgress
		}
		if len(r.Order) >= MaxSeats {
			r.Mu.Unlock()
			return ErrRoomFull
		}
		r.Users[userID] = true
		r.Order = append(r.Order, userID)
	} else if old, ok := r.Connections[userID]; ok && old != conn && old.Cancel != nil {
		// Queues are never closed; a broadcast racing a replacement would
		// otherwise hit a closed channel. Cancelling stops the old pump.
		old.Cancel()
	}

	r.Connections[userID] = conn
	if _, ok := r.ReadyStates[userID]; !ok {
		r.ReadyStates[userID] = false
	}

	statePayload := r.statePayloadLocked(userID)
	joinPayload := r.rosterPayloadLocked()
	r.Mu.Unlock()

	conn.Write(statePayload)
	r.Broadcast(joinPayload)
	return nil
}

// DropConnection detaches a user's transport but keeps their place in the
// room, so a reconnect lands back in the same seat. Acquires the lock.
func (r *Room) DropConnection(userID uuid.UUID) {
	r.Mu.Lock()
	conn, ok := r.Connections[userID]
	if !ok {
		r.Mu.Unlock()
		return
	}
	delete(r.Connections, userID)
	if conn.Cancel != nil {
		conn.Cancel()
	}

	// A started room survives total disconnection so players can come back
	// through it; the game's own grace timer decides its fate.
	empty := len(r.Connections) == 0 && !r.Started
	onEmpty := r.OnEmpty
	rosterPayload := r.rosterPayloadLocked()
	r.Mu.Unlock()

	r.Broadcast(rosterPayload)
	if empty && onEmpty != nil {
		onEmpty(r.ID)
	}
}

// RemoveUser takes a user out of the room entirely, surrendering their
// place in join order. Only meaningful before the game starts. Acquires
// the lock.
func (r *Room) RemoveUser(userID uuid.UUID) {
	r.Mu.Lock()
	if r.Started {
		r.Mu.Unlock()
		return
	}
	if conn, ok := r.Connections[userID]; ok {
		delete(r.Connections, userID)
		if conn.Cancel != nil {
			conn.Cancel()
		}
	}
	delete(r.Users, userID)
	delete(r.ReadyStates, userID)
	for i, id := range r.Order {
		if id == userID {
			r.Order = append(r.Order[:i], r.Order[i+1:]...)
			break
		}
	}

	empty := len(r.Connections) == 0
	onEmpty := r.OnEmpty
	rosterPayload := r.rosterPayloadLocked()
	r.Mu.Unlock()

	r.Broadcast(rosterPayload)
	if empty && onEmpty != nil {
		onEmpty(r.ID)
	}
}

// SetReady flips one user's ready flag and reports whether every joined
// user is now ready. Acquires the lock.
func (r *Room) SetReady(userID uuid.UUID, ready bool) bool {
	r.Mu.Lock()
	if _, ok := r.Users[userID]; !ok {
		r.Mu.Unlock()
		return false
	}
	r.ReadyStates[userID] = ready
	allReady := r.allReadyLocked()
	conn := r.Connections[userID]
	username := ""
	if conn != nil {
		username = conn.Username
	}
	r.Mu.Unlock()

	r.Broadcast(map[string]interface{}{
		"type":     "ready_update",
		"user_id":  userID.String(),
		"username": username,
		"is_ready": ready,
	})
	return allReady
}

// allReadyLocked requires at least two joined users. Assumes lock is held.
func (r *Room) allReadyLocked() bool {
	if len(r.Order) < 2 {
		return false
	}
	for _, id := range r.Order {
		if !r.ReadyStates[id] {
			return false
		}
	}
	return true
}

// Broadcast fans a message out to every live connection.
func (r *Room) Broadcast(msg map[string]interface{}) {
	r.Mu.Lock()
	conns := make([]*Connection, 0, len(r.Connections))
	for _, c := range r.Connections {
		conns = append(conns, c)
	}
	r.Mu.Unlock()

	for _, c := range conns {
		c.Write(msg)
	}
}

// BroadcastChat relays a chat line with the sender's identity attached.
func (r *Room) BroadcastChat(userID uuid.UUID, msg string) {
	r.Mu.Lock()
	conn, ok := r.Connections[userID]
	r.Mu.Unlock()
	if !ok {
		return
	}
	r.Broadcast(map[string]interface{}{
		"type":     "chat",
		"user_id":  userID.String(),
		"username": conn.Username,
		"msg":      msg,
		"ts":       time.Now().Unix(),
	})
}

// SeatOrder returns the join-ordered identities for game seating.
func (r *Room) SeatOrder() []uuid.UUID {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	out := make([]uuid.UUID, len(r.Order))
	copy(out, r.Order)
	return out
}

// MarkStarted pins the room to a running game. Acquires the lock.
func (r *Room) MarkStarted(gameID uuid.UUID) {
	r.Mu.Lock()
	r.Started = true
	r.GameID = gameID
	r.Mu.Unlock()

	r.Broadcast(map[string]interface{}{
		"type":    "room_game_started",
		"game_id": gameID.String(),
	})
}

// rosterPayloadLocked builds the shared roster view. Assumes lock is held.
func (r *Room) rosterPayloadLocked() map[string]interface{} {
	users := []map[string]interface{}{}
	for _, id := range r.Order {
		entry := map[string]interface{}{
			"id":        id.String(),
			"is_host":   id == r.HostUserID,
			"is_ready":  r.ReadyStates[id],
			"connected": false,
		}
		if conn, ok := r.Connections[id]; ok {
			entry["username"] = conn.Username
			entry["connected"] = true
		}
		users = append(users, entry)
	}
	return map[string]interface{}{
		"type":  "room_update",
		"users": users,
	}
}

// statePayloadLocked builds the private full-state message sent to a user
// on join. Assumes lock is held.
func (r *Room) statePayloadLocked(userID uuid.UUID) map[string]interface{} {
	gameIDStr := ""
	if r.GameID != uuid.Nil {
		gameIDStr = r.GameID.String()
	}
	return map[string]interface{}{
		"type":         "room_state",
		"room_id":      r.ID.String(),
		"room_name":    r.Name,
		"host_id":      r.HostUserID.String(),
		"your_id":      userID.String(),
		"your_is_host": userID == r.HostUserID,
		"started":      r.Started,
		"game_id":      gameIDStr,
		"room_status":  r.rosterPayloadLocked(),
	}
}
