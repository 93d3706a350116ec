package app

import (
	"time"

	"meetpoint/internal/domain"
)

// Server-emitted event names. Each event type is dispatched from exactly one
// place, so a connection can never end up with two bindings for the same event.
const (
	EvtConnected              = "connected"
	EvtRoomUsers              = "room-users"
	EvtRoomUsersUpdated       = "room-users-updated"
	EvtUserJoined             = "user-joined"
	EvtUserLeft               = "user-left"
	EvtPromotedToAdmin        = "promoted-to-admin"
	EvtRemovedFromRoom        = "removed-from-room"
	EvtChatMessage            = "chat-message"
	EvtUserAudioToggle        = "user-audio-toggle"
	EvtUserVideoToggle        = "user-video-toggle"
	EvtUserScreenShareStart   = "user-screen-share-start"
	EvtUserScreenShareStop    = "user-screen-share-stop"
	EvtPermissionsUpdated     = "permissions-updated"
	EvtUserPermissionsChanged = "user-permissions-changed"
	EvtOffer                  = "offer"
	EvtAnswer                 = "answer"
	EvtICECandidate           = "ice-candidate"
	EvtError                  = "error"
)

// Sink delivers one named event to one connection. Implementations must not
// block; a full outbound buffer is reported as an error and the event dropped.
type Sink interface {
	Emit(event string, data any) error
}

// MemberView is one entry of a membership snapshot. The wire protocol keys
// members by conn id, under the historical field name userId.
type MemberView struct {
	UserID      domain.ConnID      `json:"userId"`
	UserName    string             `json:"userName"`
	IsAdmin     bool               `json:"isAdmin"`
	Permissions domain.Permissions `json:"permissions"`
}

type ChatEvent struct {
	Sender    string        `json:"sender"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
	SenderID  domain.ConnID `json:"senderId"`
}

type PresenceEvent struct {
	UserID    domain.ConnID `json:"userId"`
	UserName  string        `json:"userName"`
	IsEnabled *bool         `json:"isEnabled,omitempty"`
}

type UserJoinedEvent struct {
	UserID   domain.ConnID `json:"userId"`
	UserName string        `json:"userName"`
	IsAdmin  bool          `json:"isAdmin"`
}

type UserLeftEvent struct {
	UserID   domain.ConnID `json:"userId"`
	UserName string        `json:"userName"`
}

type PermissionsChangedEvent struct {
	UserID      domain.ConnID      `json:"userId"`
	Permissions domain.Permissions `json:"permissions"`
}

type RemovedFromRoomEvent struct {
	Message string `json:"message"`
}

type ConnectedEvent struct {
	ConnID domain.ConnID `json:"connId"`
}
