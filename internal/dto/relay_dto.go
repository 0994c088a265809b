package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Relay frame event names.
const (
	RelayEventJoinRoom    = "join-room"
	RelayEventLeaveRoom   = "leave-room"
	RelayEventSendMessage = "send-message"
	RelayEventJoined      = "joined"
	RelayEventLeft        = "left"
	RelayEventNewMessage  = "new-message"
	RelayEventError       = "error"
)

// RelayClientFrame is a frame sent by a websocket client.
type RelayClientFrame struct {
	Event   string          `json:"event"`
	RoomID  string          `json:"roomId"`
	Message json.RawMessage `json:"message,omitempty"`
}

// RelayServerFrame is a frame pushed to websocket clients.
type RelayServerFrame struct {
	Event    string      `json:"event"`
	RoomID   string      `json:"roomId,omitempty"`
	SenderID *uuid.UUID  `json:"senderId,omitempty"`
	Message  interface{} `json:"message,omitempty"`
	SentAt   *time.Time  `json:"sentAt,omitempty"`
	Error    string      `json:"error,omitempty"`
}
