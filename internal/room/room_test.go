// internal/room/room_test.go
package room

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(userID uuid.UUID, username string) *Connection {
	return &Connection{
		UserID:   userID,
		Username: username,
		OutChan:  make(chan map[string]interface{}, 16),
	}
}

// drain empties a connection's queue and returns everything it held.
func drain(c *Connection) []map[string]interface{} {
	var msgs []map[string]interface{}
	for {
		select {
		case msg := <-c.OutChan:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func lastOfType(msgs []map[string]interface{}, t string) map[string]interface{} {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i]["type"] == t {
			return msgs[i]
		}
	}
	return nil
}

func TestAddConnectionPreservesJoinOrder(t *testing.T) {
	host := uuid.New()
	r := NewRoom(host, "test room")

	ids := []uuid.UUID{host, uuid.New(), uuid.New()}
	for i, id := range ids {
		require.NoError(t, r.AddConnection(id, newTestConn(id, "u")), "join %d", i)
	}

	assert.Equal(t, ids, r.SeatOrder())
}

func TestAddConnectionSendsRoomState(t *testing.T) {
	host := uuid.New()
	r := NewRoom(host, "test room")

	conn := newTestConn(host, "host")
	require.NoError(t, r.AddConnection(host, conn))

	msgs := drain(conn)
	state := lastOfType(msgs, "room_state")
	require.NotNil(t, state)
	assert.Equal(t, r.ID.String(), state["room_id"])
	assert.Equal(t, true, state["your_is_host"])
	assert.NotNil(t, lastOfType(msgs, "room_update"))
}

func TestAddConnectionEnforcesMaxSeats(t *testing.T) {
	r := NewRoom(uuid.New(), "full house")

	for i := 0; i < MaxSeats; i++ {
		id := uuid.New()
		require.NoError(t, r.AddConnection(id, newTestConn(id, "u")))
	}

	extra := uuid.New()
	err := r.AddConnection(extra, newTestConn(extra, "late"))
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Len(t, r.SeatOrder(), MaxSeats)
}

func TestAddConnectionRejectsNewIdentityAfterStart(t *testing.T) {
	host := uuid.New()
	r := NewRoom(host, "started")
	require.NoError(t, r.AddConnection(host, newTestConn(host, "host")))
	other := uuid.New()
	require.NoError(t, r.AddConnection(other, newTestConn(other, "other")))

	r.MarkStarted(uuid.New())

	stranger := uuid.New()
	err := r.AddConnection(stranger, newTestConn(stranger, "stranger"))
	assert.ErrorIs(t, err, ErrGameInProgress)

	// A known identity can still reattach for reconnection.
	assert.NoError(t, r.AddConnection(other, newTestConn(other, "other")))
}

func TestRejoinReplacesConnection(t *testing.T) {
	host := uuid.New()
	r := NewRoom(host, "rejoin")

	cancelled := false
	first := newTestConn(host, "host")
	first.Cancel = func() { cancelled = true }
	require.NoError(t, r.AddConnection(host, first))

	second := newTestConn(host, "host")
	require.NoError(t, r.AddConnection(host, second))

	assert.True(t, cancelled, "the stale pump is cancelled")
	assert.Len(t, r.SeatOrder(), 1, "no duplicate seat for the same identity")

	r.Mu.Lock()
	assert.Same(t, second, r.Connections[host])
	r.Mu.Unlock()
}

func TestDropConnectionKeepsPlace(t *testing.T) {
	host := uuid.New()
	r := NewRoom(host, "drop")
	require.NoError(t, r.AddConnection(host, newTestConn(host, "host")))
	other := uuid.New()
	require.NoError(t, r.AddConnection(other, newTestConn(other, "other")))

	r.DropConnection(other)

	assert.Equal(t, []uuid.UUID{host, other}, r.SeatOrder())
	r.Mu.Lock()
	_, connected := r.Connections[other]
	r.Mu.Unlock()
	assert.False(t, connected)
}

func TestDropLastConnectionFiresOnEmpty(t *testing.T) {
	host := uuid.New()
	r := NewRoom(host, "empty")

	var emptied []uuid.UUID
	r.OnEmpty = func(id uuid.UUID) { emptied = append(emptied, id) }

	require.NoError(t, r.AddConnection(host, newTestConn(host, "host")))
	r.DropConnection(host)

	require.Len(t, emptied, 1)
	assert.Equal(t, r.ID, emptied[0])
}

func TestStartedRoomSurvivesTotalDisconnection(t *testing.T) {
	host := uuid.New()
	r := NewRoom(host, "resilient")
	r.OnEmpty = func(uuid.UUID) {
		t.Fatal("a started room must not be torn down on disconnect")
	}

	require.NoError(t, r.AddConnection(host, newTestConn(host, "host")))
	other := uuid.New()
	require.NoError(t, r.AddConnection(other, newTestConn(other, "other")))
	r.MarkStarted(uuid.New())

	r.DropConnection(host)
	r.DropConnection(other)
}

func TestRemoveUserSurrendersSeat(t *testing.T) {
	host := uuid.New()
	r := NewRoom(host, "leave")
	require.NoError(t, r.AddConnection(host, newTestConn(host, "host")))
	a, b := uuid.New(), uuid.New()
	require.NoError(t, r.AddConnection(a, newTestConn(a, "a")))
	require.NoError(t, r.AddConnection(b, newTestConn(b, "b")))

	r.RemoveUser(a)

	assert.Equal(t, []uuid.UUID{host, b}, r.SeatOrder())
	r.Mu.Lock()
	_, joined := r.Users[a]
	r.Mu.Unlock()
	assert.False(t, joined)
}

func TestRemoveUserNoopAfterStart(t *testing.T) {
	host := uuid.New()
	r := NewRoom(host, "locked in")
	require.NoError(t, r.AddConnection(host, newTestConn(host, "host")))
	other := uuid.New()
	require.NoError(t, r.AddConnection(other, newTestConn(other, "other")))
	r.MarkStarted(uuid.New())

	r.RemoveUser(other)

	assert.Equal(t, []uuid.UUID{host, other}, r.SeatOrder())
}

func TestSetReadyReportsAllReady(t *testing.T) {
	host := uuid.New()
	r := NewRoom(host, "ready check")
	require.NoError(t, r.AddConnection(host, newTestConn(host, "host")))

	assert.False(t, r.SetReady(host, true), "one player alone is never all-ready")

	other := uuid.New()
	require.NoError(t, r.AddConnection(other, newTestConn(other, "other")))
	assert.False(t, r.SetReady(host, true))
	assert.True(t, r.SetReady(other, true))

	assert.False(t, r.SetReady(other, false), "unready flips it back")
	assert.False(t, r.SetReady(uuid.New(), true), "unknown users are ignored")
}

func TestBroadcastReachesEveryConnection(t *testing.T) {
	host := uuid.New()
	r := NewRoom(host, "fanout")
	hostConn := newTestConn(host, "host")
	require.NoError(t, r.AddConnection(host, hostConn))
	other := uuid.New()
	otherConn := newTestConn(other, "other")
	require.NoError(t, r.AddConnection(other, otherConn))

	drain(hostConn)
	drain(otherConn)

	r.Broadcast(map[string]interface{}{"type": "chat", "msg": "hi"})

	assert.NotNil(t, lastOfType(drain(hostConn), "chat"))
	assert.NotNil(t, lastOfType(drain(otherConn), "chat"))
}

func TestWriteDropsWhenQueueFull(t *testing.T) {
	c := &Connection{UserID: uuid.New(), OutChan: make(chan map[string]interface{}, 1)}
	c.Write(map[string]interface{}{"type": "a"})
	c.Write(map[string]interface{}{"type": "b"})

	msgs := drain(c)
	require.Len(t, msgs, 1, "the full queue drops instead of blocking")
	assert.Equal(t, "a", msgs[0]["type"])
}

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore()
	r := NewRoom(uuid.New(), "stored")
	s.AddRoom(r)

	got, ok := s.GetRoom(r.ID)
	require.True(t, ok)
	assert.Same(t, r, got)
	assert.Len(t, s.GetRooms(), 1)

	s.DeleteRoom(r.ID)
	_, ok = s.GetRoom(r.ID)
	assert.False(t, ok)
	assert.Empty(t, s.GetRooms())
}
