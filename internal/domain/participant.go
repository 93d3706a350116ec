// Package domain contains entities without logic, just meta-data.
package domain

import "errors"

const MaxDisplayNameLen = 36

var (
	ErrNameEmpty   = errors.New("display name empty")
	ErrNameTooLong = errors.New("display name too long")
)

// ConnID is the identifier of one live connection. It doubles as the relay
// address on the wire, but it is not the user's identity.
type ConnID string

// UserID is the external account identifier, when the client has one.
type UserID string

// Permissions is the capability set of one participant inside a room.
type Permissions struct {
	CanSpeak       bool `json:"canSpeak"`
	CanVideo       bool `json:"canVideo"`
	CanScreenShare bool `json:"canScreenShare"`
}

// DefaultPermissions is what every participant starts a room with.
func DefaultPermissions() Permissions {
	return Permissions{CanSpeak: true, CanVideo: true, CanScreenShare: true}
}

// Participant is one connected client. Immutable once created: an identity
// change installs a fresh value, so a shared pointer is always safe to read
// without holding whichever lock the writer held.
type Participant struct {
	ConnID ConnID `json:"connId"`
	UserID UserID `json:"userId,omitempty"`
	Name   string `json:"userName"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewParticipant(connID ConnID, userID UserID, name string) (*Participant, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &Participant{ConnID: connID, UserID: userID, Name: name}, nil
}

func ValidateName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrNameTooLong
	}
	return nil
}
