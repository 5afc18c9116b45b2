package signaling

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Message kinds the relay understands.
const (
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
)

var (
	ErrUnknownType   = errors.New("unknown signaling message type")
	ErrMissingTarget = errors.New("answer requires a target")
	ErrNotJoined     = errors.New("sender is not a joined participant")
	ErrEmptyPayload  = errors.New("signaling payload is empty")
)

// Envelope is a signaling frame in flight. The payload is opaque SDP or ICE
// data; the relay never inspects it.
type Envelope struct {
	Type     string          `json:"type"`
	SenderID uuid.UUID       `json:"sender_id"`
	TargetID *uuid.UUID      `json:"target_id,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// Sender delivers frames to room connections.
type Sender interface {
	SendToUser(sessionID, userID uuid.UUID, event string, payload interface{})
	BroadcastExcept(sessionID, exceptUserID uuid.UUID, event string, payload interface{})
}

// Membership gates relaying on room presence.
type Membership interface {
	IsJoined(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
}

// Relay routes WebRTC negotiation frames between participants. Offers fan
// out to the room, answers go back to one peer, candidates go wherever the
// sender aims them. Delivery order per sender is preserved by the caller
// reading frames sequentially.
type Relay struct {
	sender     Sender
	membership Membership
	logger     *zap.Logger
}

// NewRelay creates a signaling relay.
func NewRelay(sender Sender, membership Membership, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{sender: sender, membership: membership, logger: logger}
}

// Route forwards one frame according to its type.
func (r *Relay) Route(ctx context.Context, sessionID uuid.UUID, env Envelope) error {
	if len(env.Payload) == 0 {
		return ErrEmptyPayload
	}
	joined, err := r.membership.IsJoined(ctx, sessionID, env.SenderID)
	if err != nil {
		return err
	}
	if !joined {
		return ErrNotJoined
	}

	switch env.Type {
	case TypeOffer:
		r.sender.BroadcastExcept(sessionID, env.SenderID, TypeOffer, env)
	case TypeAnswer:
		if env.TargetID == nil {
			return ErrMissingTarget
		}
		r.sender.SendToUser(sessionID, *env.TargetID, TypeAnswer, env)
	case TypeICECandidate:
		if env.TargetID != nil {
			r.sender.SendToUser(sessionID, *env.TargetID, TypeICECandidate, env)
		} else {
			r.sender.BroadcastExcept(sessionID, env.SenderID, TypeICECandidate, env)
		}
	default:
		return ErrUnknownType
	}

	r.logger.Debug("signaling frame relayed",
		zap.String("session_id", sessionID.String()),
		zap.String("type", env.Type),
		zap.String("sender_id", env.SenderID.String()))
	return nil
}
