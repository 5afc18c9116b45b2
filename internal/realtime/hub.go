package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Heartbeat timing in seconds.
const (
	PingInterval = 30
	PongWait     = 60
)

// sendQueueSize bounds each connection's outbound queue. A consumer that
// cannot drain it gets disconnected rather than stalling the room.
const sendQueueSize = 256

// Control events ride the same per-session channel as room broadcasts but
// are consumed by the receiving hub instead of delivered to clients. They
// let a room close or a ban reach connections on sibling instances.
const (
	ctrlCloseRoom      = "_ctrl.close_room"
	ctrlDisconnectUser = "_ctrl.disconnect_user"
)

// Publisher pushes room events to other instances.
type Publisher interface {
	PublishSessionEvent(sessionID uuid.UUID, event string, payload []byte) error
}

// Subscriber listens for room events from other instances. Implementations
// must not deliver this instance's own frames back.
type Subscriber interface {
	SubscribeSession(sessionID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains session_id -> set of connections and fans events out. Local
// delivery is immediate; a Redis publish carries the event to sibling
// instances.
type Hub struct {
	rooms  map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func()
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
}

// NewHub creates a websocket hub. pub and sub may be nil for single-instance
// deployments.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// register adds a client to its session room, opening the cross-instance
// subscription on the room's first connection.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.SessionID] == nil {
		h.rooms[c.SessionID] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.SubscribeSession(c.SessionID, func(event string, payload []byte) {
				h.handleRemote(c.SessionID, event, payload)
			})
			if err != nil {
				h.logger.Error("session subscribe failed",
					zap.String("session_id", c.SessionID.String()), zap.Error(err))
			} else {
				h.subs[c.SessionID] = cancel
			}
		}
	}
	h.rooms[c.SessionID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("connection registered",
		zap.String("conn_id", c.ID),
		zap.String("session_id", c.SessionID.String()))
}

// unregister removes a client, tearing the subscription down with the last
// connection.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.SessionID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.SessionID)
			if cancel, ok := h.subs[c.SessionID]; ok {
				cancel()
				delete(h.subs, c.SessionID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("connection unregistered",
		zap.String("conn_id", c.ID),
		zap.String("session_id", c.SessionID.String()))
}

// Broadcast delivers an event to every connection in the room, here and on
// sibling instances.
func (h *Hub) Broadcast(sessionID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("broadcast marshal failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.deliverLocal(sessionID, event, json.RawMessage(data))
	if h.pub != nil {
		if err := h.pub.PublishSessionEvent(sessionID, event, data); err != nil {
			h.logger.Warn("cross-instance publish failed",
				zap.String("session_id", sessionID.String()), zap.Error(err))
		}
	}
}

// BroadcastExcept delivers to every local connection in the room except the
// given user's. Used for signaling offers, which the sender must not receive
// back.
func (h *Hub) BroadcastExcept(sessionID, exceptUserID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := Frame{Type: event, Data: data}
	h.mu.RLock()
	clients := h.snapshot(sessionID)
	h.mu.RUnlock()
	for _, c := range clients {
		if c.UserID == exceptUserID {
			continue
		}
		h.enqueue(c, msg)
	}
}

// SendToUser delivers to every connection the user holds in the room.
func (h *Hub) SendToUser(sessionID, userID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := Frame{Type: event, Data: data}
	h.mu.RLock()
	clients := h.snapshot(sessionID)
	h.mu.RUnlock()
	for _, c := range clients {
		if c.UserID == userID {
			h.enqueue(c, msg)
		}
	}
}

// SendToConn delivers to a single connection, bypassing fan-out.
func (h *Hub) SendToConn(sessionID uuid.UUID, connID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	c := h.rooms[sessionID][connID]
	h.mu.RUnlock()
	if c != nil {
		h.enqueue(c, Frame{Type: event, Data: data})
	}
}

// DisconnectUser force-closes all of a user's connections in the room, on
// this instance and on siblings.
func (h *Hub) DisconnectUser(sessionID, userID uuid.UUID) {
	h.disconnectLocal(sessionID, userID)
	h.publishControl(sessionID, ctrlDisconnectUser, map[string]interface{}{"user_id": userID})
}

// CloseRoom drops every connection in the room, cluster wide. Called after
// the session end broadcast has been queued; Redis preserves publish order
// per channel, so siblings deliver session_ended before the close lands.
func (h *Hub) CloseRoom(sessionID uuid.UUID) {
	h.closeLocal(sessionID)
	h.publishControl(sessionID, ctrlCloseRoom, nil)
}

func (h *Hub) disconnectLocal(sessionID, userID uuid.UUID) {
	h.mu.RLock()
	clients := h.snapshot(sessionID)
	h.mu.RUnlock()
	for _, c := range clients {
		if c.UserID == userID {
			c.close()
		}
	}
}

func (h *Hub) closeLocal(sessionID uuid.UUID) {
	h.mu.RLock()
	clients := h.snapshot(sessionID)
	h.mu.RUnlock()
	for _, c := range clients {
		c.close()
	}
}

// handleRemote consumes a frame from a sibling instance: control frames act
// on local connections, everything else is delivered as a room event.
func (h *Hub) handleRemote(sessionID uuid.UUID, event string, payload []byte) {
	switch event {
	case ctrlCloseRoom:
		h.closeLocal(sessionID)
	case ctrlDisconnectUser:
		var p struct {
			UserID uuid.UUID `json:"user_id"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			h.logger.Warn("malformed control frame",
				zap.String("session_id", sessionID.String()), zap.Error(err))
			return
		}
		h.disconnectLocal(sessionID, p.UserID)
	default:
		h.deliverLocal(sessionID, event, json.RawMessage(payload))
	}
}

func (h *Hub) publishControl(sessionID uuid.UUID, event string, payload interface{}) {
	if h.pub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.pub.PublishSessionEvent(sessionID, event, data); err != nil {
		h.logger.Warn("control publish failed",
			zap.String("session_id", sessionID.String()),
			zap.String("event", event), zap.Error(err))
	}
}

// ConnectionCount returns the number of local connections in the room.
func (h *Hub) ConnectionCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

func (h *Hub) deliverLocal(sessionID uuid.UUID, event string, data json.RawMessage) {
	msg := Frame{Type: event, Data: data}
	h.mu.RLock()
	clients := h.snapshot(sessionID)
	h.mu.RUnlock()
	for _, c := range clients {
		h.enqueue(c, msg)
	}
}

// snapshot copies the room's client set; callers iterate without the lock.
// Must be called with mu held.
func (h *Hub) snapshot(sessionID uuid.UUID) []*Client {
	m := h.rooms[sessionID]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// enqueue queues a frame, disconnecting the client when its queue is full.
func (h *Hub) enqueue(c *Client, msg Frame) {
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("slow consumer disconnected",
			zap.String("conn_id", c.ID),
			zap.String("session_id", c.SessionID.String()))
		c.close()
	}
}
