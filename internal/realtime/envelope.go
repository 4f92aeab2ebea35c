package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType tags every frame exchanged over a realtime connection.
type MessageType string

// Inbound message types.
const (
	MessageAuth        MessageType = "auth"
	MessageJoinArena   MessageType = "join_arena"
	MessageArenaChat   MessageType = "arena_chat"
	MessageUpdateScore MessageType = "update_score"
	MessageLeaveArena  MessageType = "leave_arena"
	MessagePing        MessageType = "ping"
)

// Outbound message types.
const (
	MessageAuthSuccess     MessageType = "auth_success"
	MessageAuthError       MessageType = "auth_error"
	MessageArenaState      MessageType = "arena_state"
	MessageSpectatorJoined MessageType = "spectator_joined"
	MessageSpectatorLeft   MessageType = "spectator_left"
	MessageScoreUpdate     MessageType = "score_update"
	MessageArenaCompleted  MessageType = "arena_completed"
	MessageUserStatus      MessageType = "user_status"
	MessageNotification    MessageType = "notification"
	MessagePong            MessageType = "pong"
	MessageError           MessageType = "error"
)

// InboundEnvelope is the raw client frame; the payload stays undecoded until
// the type is known.
type InboundEnvelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Envelope is an outbound frame. Every envelope carries the server timestamp
// at which it was produced.
type Envelope struct {
	Type    MessageType `json:"type"`
	TS      time.Time   `json:"ts"`
	Payload any         `json:"payload,omitempty"`
}

// NewEnvelope stamps an outbound envelope with the current server time.
func NewEnvelope(msgType MessageType, payload any) Envelope {
	return Envelope{
		Type:    msgType,
		TS:      time.Now().UTC(),
		Payload: payload,
	}
}

// AuthPayload must be the first frame a client sends.
type AuthPayload struct {
	Token string `json:"token"`
}

// JoinArenaPayload subscribes the sender to an arena as a spectator.
type JoinArenaPayload struct {
	ArenaID uuid.UUID `json:"arena_id"`
}

// ChatPayload posts a chat line into an arena.
type ChatPayload struct {
	ArenaID uuid.UUID `json:"arena_id"`
	Message string    `json:"message"`
}

// UpdateScorePayload reports a player's score. The reporter relays for the
// whole arena, so the target player is named explicitly.
type UpdateScorePayload struct {
	ArenaID  uuid.UUID `json:"arena_id"`
	PlayerID uuid.UUID `json:"player_id"`
	Score    int64     `json:"score"`
	Moves    int       `json:"moves"`
}

// LeaveArenaPayload unsubscribes the sender from an arena.
type LeaveArenaPayload struct {
	ArenaID uuid.UUID `json:"arena_id"`
}

// AuthSuccessPayload acknowledges a successful first-frame authentication.
type AuthSuccessPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

// ErrorPayload is sent only to the offending connection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UserStatusPayload announces a presence change to everyone.
type UserStatusPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"`
}
