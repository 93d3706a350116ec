package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"meetpoint/internal/domain"
)

type connEntry struct {
	participant *domain.Participant
	roomID      domain.RoomID
	sink        Sink
}

// Registry maps live connections to participant identities and their current
// room binding. It is the only source of truth for relay addressing: once a
// connection is removed, it becomes an automatic no-op destination.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ConnID]*connEntry)}
}

// Register binds a connection to an identity and its outbound sink.
// A duplicate register for the same conn id is a re-bind, not an error.
func (r *Registry) Register(p *domain.Participant, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[p.ConnID] = &connEntry{participant: p, sink: sink}
	log.Info().Str("module", "app.registry").Str("conn", string(p.ConnID)).Msg("connection registered")
}

// Lookup resolves a conn id to its identity and sink.
func (r *Registry) Lookup(id domain.ConnID) (*domain.Participant, Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return nil, nil, false
	}
	return e.participant, e.sink, true
}

// Rename installs a fresh identity for the connection and returns it. The
// previous Participant value is never mutated, so anyone still holding the
// old pointer keeps a consistent view.
func (r *Registry) Rename(id domain.ConnID, userID domain.UserID, name string) (*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return nil, ErrUnknownConn
	}
	if userID == "" {
		userID = e.participant.UserID
	}
	p, err := domain.NewParticipant(id, userID, name)
	if err != nil {
		return nil, err
	}
	e.participant = p
	return p, nil
}

// RoomOf returns the room the connection currently occupies, if any.
func (r *Registry) RoomOf(id domain.ConnID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.roomID == "" {
		return "", false
	}
	return e.roomID, true
}

// BindRoom records which room the connection occupies.
func (r *Registry) BindRoom(id domain.ConnID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.roomID = roomID
	}
}

// ClearRoom drops the room binding but keeps the connection registered.
func (r *Registry) ClearRoom(id domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.roomID = ""
	}
}

// Remove unbinds the connection. Safe to call redundantly; a second call
// cannot resurrect stale state.
func (r *Registry) Remove(id domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("connection removed")
}
