package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/coursehive/live-backend/internal/auth"
	"github.com/coursehive/live-backend/internal/models"
	"github.com/coursehive/live-backend/internal/polls"
	"github.com/coursehive/live-backend/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin allow-list belongs in the edge proxy
	},
}

// Frame is the websocket message envelope, both directions.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// PresenceService is the presence surface the client loop drives.
type PresenceService interface {
	Join(ctx context.Context, sessionID, userID uuid.UUID, password string) (*models.Participant, bool, error)
	Leave(ctx context.Context, sessionID, userID uuid.UUID) error
}

// ChatService posts room messages.
type ChatService interface {
	Send(ctx context.Context, sessionID, userID uuid.UUID, content string, msgType models.MessageType, replyTo *uuid.UUID) (*models.ChatMessage, error)
}

// QAService handles audience questions.
type QAService interface {
	Ask(ctx context.Context, sessionID, userID uuid.UUID, text string, anonymous bool) (*models.Question, error)
	Upvote(ctx context.Context, sessionID, userID, questionID uuid.UUID) (int, error)
}

// PollService records ballots.
type PollService interface {
	Vote(ctx context.Context, sessionID, userID, pollID uuid.UUID, optionIDs []uuid.UUID) (*polls.VoteResult, error)
}

// SignalRelay forwards WebRTC negotiation frames.
type SignalRelay interface {
	Route(ctx context.Context, sessionID uuid.UUID, env signaling.Envelope) error
}

// Services bundles what the client loop dispatches into.
type Services struct {
	Presence  PresenceService
	Chat      ChatService
	Questions QAService
	Polls     PollService
	Signaling SignalRelay
}

// Client is a single websocket connection bound to one session room.
type Client struct {
	ID        string
	SessionID uuid.UUID
	UserID    uuid.UUID
	Role      string

	hub      *Hub
	services Services
	conn     *websocket.Conn
	send     chan Frame
	done     chan struct{}
	joined   bool
	logger   *zap.Logger
}

// ServeWs upgrades the connection and runs the client loop. Authentication
// is a JWT in the query string since browsers cannot set headers on
// websocket dials.
func ServeWs(hub *Hub, services Services, jwtService *auth.JWTService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionIDStr := c.Query("session_id")
		token := c.Query("token")
		if sessionIDStr == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and token required"})
			return
		}
		sessionID, err := uuid.Parse(sessionIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_id"})
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			UserID:    claims.UserID,
			Role:      claims.Role,
			hub:       hub,
			services:  services,
			conn:      conn,
			send:      make(chan Frame, sendQueueSize),
			done:      make(chan struct{}),
			logger:    logger,
		}
		hub.register(client)
		go client.writePump()
		client.readPump()
	}
}

// close signals the write pump to shut the connection down. Safe to call
// more than once.
func (c *Client) close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

// readPump reads frames sequentially, which preserves per-sender ordering
// for everything downstream, signaling included.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
		_ = c.conn.Close()
		if c.joined {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.services.Presence.Leave(ctx, c.SessionID, c.UserID); err != nil {
				c.logger.Debug("implicit leave skipped",
					zap.String("session_id", c.SessionID.String()),
					zap.String("user_id", c.UserID.String()),
					zap.Error(err))
			}
		}
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg Frame
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch msg.Type {
	case "join":
		var data struct {
			Password string `json:"password"`
		}
		_ = json.Unmarshal(msg.Data, &data)
		if _, _, err := c.services.Presence.Join(ctx, c.SessionID, c.UserID, data.Password); err != nil {
			c.sendError(err)
			return
		}
		c.joined = true

	case "leave":
		if err := c.services.Presence.Leave(ctx, c.SessionID, c.UserID); err != nil {
			c.sendError(err)
			return
		}
		c.joined = false

	case "chat_message":
		var data struct {
			Content   string     `json:"content"`
			Type      string     `json:"type"`
			ReplyToID *uuid.UUID `json:"reply_to_id"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(err)
			return
		}
		if _, err := c.services.Chat.Send(ctx, c.SessionID, c.UserID, data.Content,
			models.MessageType(data.Type), data.ReplyToID); err != nil {
			c.sendError(err)
		}

	case "ask_question":
		var data struct {
			Text      string `json:"text"`
			Anonymous bool   `json:"anonymous"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(err)
			return
		}
		if _, err := c.services.Questions.Ask(ctx, c.SessionID, c.UserID, data.Text, data.Anonymous); err != nil {
			c.sendError(err)
		}

	case "upvote_question":
		var data struct {
			QuestionID uuid.UUID `json:"question_id"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(err)
			return
		}
		if _, err := c.services.Questions.Upvote(ctx, c.SessionID, c.UserID, data.QuestionID); err != nil {
			c.sendError(err)
		}

	case "vote_poll":
		var data struct {
			PollID    uuid.UUID   `json:"poll_id"`
			OptionIDs []uuid.UUID `json:"option_ids"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(err)
			return
		}
		if _, err := c.services.Polls.Vote(ctx, c.SessionID, c.UserID, data.PollID, data.OptionIDs); err != nil {
			c.sendError(err)
		}

	case signaling.TypeOffer, signaling.TypeAnswer, signaling.TypeICECandidate:
		var data struct {
			TargetID *uuid.UUID      `json:"target_id"`
			Payload  json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(err)
			return
		}
		env := signaling.Envelope{
			Type:     msg.Type,
			SenderID: c.UserID,
			TargetID: data.TargetID,
			Payload:  data.Payload,
		}
		if err := c.services.Signaling.Route(ctx, c.SessionID, env); err != nil {
			c.sendError(err)
		}

	default:
		// Unknown frames are dropped, not fatal.
		c.logger.Debug("unknown frame type", zap.String("type", msg.Type))
	}
}

// sendError delivers an error frame to this connection only.
func (c *Client) sendError(err error) {
	data, merr := json.Marshal(map[string]string{"message": err.Error()})
	if merr != nil {
		return
	}
	select {
	case c.send <- Frame{Type: "error", Data: data}:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
