// Package store is the client side of the external meeting store
// collaborator: durable participant and chat records live there, not in the
// coordinator. Every call is best-effort from the coordinator's viewpoint.
package store

import (
	"context"
	"time"
)

// MeetingStore is the collaborator contract. Both appends are fire-and-forget
// for callers: the coordinator invokes them off the real-time path with a
// bounded timeout and only logs failures.
type MeetingStore interface {
	AppendParticipant(ctx context.Context, roomID, userID, name string, joinedAt time.Time) error
	AppendChatMessage(ctx context.Context, roomID, sender, message string, sentAt time.Time) error
}

// Nop satisfies MeetingStore when no store is configured.
type Nop struct{}

func (Nop) AppendParticipant(context.Context, string, string, string, time.Time) error { return nil }
func (Nop) AppendChatMessage(context.Context, string, string, string, time.Time) error { return nil }
