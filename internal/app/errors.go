package app

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotAdmin     = errors.New("only the room admin may do that")
	ErrNotMember    = errors.New("target is not in the room")
	ErrUnknownConn  = errors.New("unknown connection")

	// errRoomClosed is returned by Room.join when the aggregate was emptied
	// and detached from the table between lookup and lock acquisition.
	errRoomClosed = errors.New("room closed")
)
