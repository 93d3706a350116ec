package domain

// RoomID is issued by the meeting API that scheduled the session;
// the coordinator treats it as an opaque, stable key.
type RoomID string
