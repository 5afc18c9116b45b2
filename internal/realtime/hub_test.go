package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishRecorder struct {
	events   []string
	payloads [][]byte
}

func (p *publishRecorder) PublishSessionEvent(_ uuid.UUID, event string, payload []byte) error {
	p.events = append(p.events, event)
	p.payloads = append(p.payloads, payload)
	return nil
}

// subscribeRecorder captures the per-room handler so tests can simulate
// frames arriving from a sibling instance.
type subscribeRecorder struct {
	handlers map[uuid.UUID]func(event string, payload []byte)
	cancels  map[uuid.UUID]int
}

func newSubscribeRecorder() *subscribeRecorder {
	return &subscribeRecorder{
		handlers: make(map[uuid.UUID]func(event string, payload []byte)),
		cancels:  make(map[uuid.UUID]int),
	}
}

func (s *subscribeRecorder) SubscribeSession(sessionID uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	s.handlers[sessionID] = handler
	return func() { s.cancels[sessionID]++ }, nil
}

func testClient(sessionID, userID uuid.UUID, queue int) *Client {
	return &Client{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		UserID:    userID,
		send:      make(chan Frame, queue),
		done:      make(chan struct{}),
	}
}

func drainOne(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case f := <-c.send:
		return f
	default:
		t.Fatal("expected a queued frame")
		return Frame{}
	}
}

func closed(c *Client) bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func TestBroadcastReachesEveryConnection(t *testing.T) {
	pub := &publishRecorder{}
	hub := NewHub(nil, pub, nil)
	sessionID := uuid.New()
	a := testClient(sessionID, uuid.New(), 4)
	b := testClient(sessionID, uuid.New(), 4)
	other := testClient(uuid.New(), uuid.New(), 4)
	hub.register(a)
	hub.register(b)
	hub.register(other)

	hub.Broadcast(sessionID, "chat_message", map[string]string{"content": "hi"})

	for _, c := range []*Client{a, b} {
		f := drainOne(t, c)
		assert.Equal(t, "chat_message", f.Type)
		var data map[string]string
		require.NoError(t, json.Unmarshal(f.Data, &data))
		assert.Equal(t, "hi", data["content"])
	}
	assert.Empty(t, other.send, "other rooms stay quiet")
	assert.Equal(t, []string{"chat_message"}, pub.events, "event crosses instances")
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	sessionID := uuid.New()
	sender := uuid.New()
	mine := testClient(sessionID, sender, 4)
	peer := testClient(sessionID, uuid.New(), 4)
	hub.register(mine)
	hub.register(peer)

	hub.BroadcastExcept(sessionID, sender, "offer", map[string]string{"sdp": "v=0"})

	assert.Empty(t, mine.send)
	f := drainOne(t, peer)
	assert.Equal(t, "offer", f.Type)
}

func TestSendToUserHitsAllOfTheirConnections(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	sessionID := uuid.New()
	userID := uuid.New()
	laptop := testClient(sessionID, userID, 4)
	phone := testClient(sessionID, userID, 4)
	bystander := testClient(sessionID, uuid.New(), 4)
	hub.register(laptop)
	hub.register(phone)
	hub.register(bystander)

	hub.SendToUser(sessionID, userID, "answer", map[string]string{"sdp": "v=0"})

	drainOne(t, laptop)
	drainOne(t, phone)
	assert.Empty(t, bystander.send)
}

func TestSlowConsumerIsDisconnected(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	sessionID := uuid.New()
	slow := testClient(sessionID, uuid.New(), 1)
	hub.register(slow)

	hub.Broadcast(sessionID, "tick", 1)
	assert.False(t, closed(slow))
	hub.Broadcast(sessionID, "tick", 2)
	assert.True(t, closed(slow), "a full queue drops the connection")
}

func TestDisconnectUserAndCloseRoom(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	sessionID := uuid.New()
	banned := uuid.New()
	target := testClient(sessionID, banned, 4)
	peer := testClient(sessionID, uuid.New(), 4)
	hub.register(target)
	hub.register(peer)

	hub.DisconnectUser(sessionID, banned)
	assert.True(t, closed(target))
	assert.False(t, closed(peer))

	hub.CloseRoom(sessionID)
	assert.True(t, closed(peer))
}

func TestCloseRoomClosesSiblingInstances(t *testing.T) {
	pub := &publishRecorder{}
	sub := newSubscribeRecorder()
	local := NewHub(nil, pub, nil)
	sibling := NewHub(nil, nil, sub)
	sessionID := uuid.New()

	here := testClient(sessionID, uuid.New(), 4)
	there := testClient(sessionID, uuid.New(), 4)
	local.register(here)
	sibling.register(there)

	local.CloseRoom(sessionID)
	assert.True(t, closed(here))
	require.Equal(t, []string{ctrlCloseRoom}, pub.events, "close crosses instances as a control frame")

	// Feed the published frame into the sibling as the bridge would.
	sub.handlers[sessionID](pub.events[0], pub.payloads[0])
	assert.True(t, closed(there))
	assert.Empty(t, there.send, "control frames are consumed, not delivered")
}

func TestDisconnectUserClosesSiblingConnections(t *testing.T) {
	pub := &publishRecorder{}
	sub := newSubscribeRecorder()
	local := NewHub(nil, pub, nil)
	sibling := NewHub(nil, nil, sub)
	sessionID := uuid.New()
	banned := uuid.New()

	here := testClient(sessionID, banned, 4)
	there := testClient(sessionID, banned, 4)
	bystander := testClient(sessionID, uuid.New(), 4)
	local.register(here)
	sibling.register(there)
	sibling.register(bystander)

	local.DisconnectUser(sessionID, banned)
	assert.True(t, closed(here))
	require.Equal(t, []string{ctrlDisconnectUser}, pub.events)

	sub.handlers[sessionID](pub.events[0], pub.payloads[0])
	assert.True(t, closed(there), "sibling drops the banned user's sockets")
	assert.False(t, closed(bystander))
	assert.Empty(t, bystander.send)
}

func TestRoomSubscriptionLifecycle(t *testing.T) {
	sub := newSubscribeRecorder()
	hub := NewHub(nil, nil, sub)
	sessionID := uuid.New()
	a := testClient(sessionID, uuid.New(), 4)
	b := testClient(sessionID, uuid.New(), 4)

	hub.register(a)
	require.Contains(t, sub.handlers, sessionID, "first connection opens the subscription")
	hub.register(b)

	// A frame from a sibling instance reaches local connections.
	sub.handlers[sessionID]("poll_started", []byte(`{"poll_id":"p1"}`))
	f := drainOne(t, a)
	assert.Equal(t, "poll_started", f.Type)
	drainOne(t, b)

	hub.unregister(a)
	assert.Zero(t, sub.cancels[sessionID])
	hub.unregister(b)
	assert.Equal(t, 1, sub.cancels[sessionID], "last connection tears the subscription down")
	assert.Zero(t, hub.ConnectionCount(sessionID))
}

func TestConnectionCount(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	sessionID := uuid.New()
	assert.Zero(t, hub.ConnectionCount(sessionID))

	c := testClient(sessionID, uuid.New(), 4)
	hub.register(c)
	assert.Equal(t, 1, hub.ConnectionCount(sessionID))
	hub.unregister(c)
	assert.Zero(t, hub.ConnectionCount(sessionID))
}
