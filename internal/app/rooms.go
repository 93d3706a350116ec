package app

import (
	"sync"

	"meetpoint/internal/domain"
)

// RoomTable is the process-wide room id -> Room mapping. A room exists in the
// table only while it has members: it is created lazily on first join and
// detached the instant its last member leaves.
type RoomTable struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRoomTable() *RoomTable {
	return &RoomTable{rooms: make(map[domain.RoomID]*Room)}
}

func (t *RoomTable) Get(id domain.RoomID) (*Room, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rooms[id]
	return r, ok
}

func (t *RoomTable) GetOrCreate(id domain.RoomID) *Room {
	t.mu.RLock()
	r, ok := t.rooms[id]
	t.mu.RUnlock()
	if ok {
		return r
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok = t.rooms[id]; ok {
		return r
	}
	r = newRoom(id)
	t.rooms[id] = r
	return r
}

// detach removes an emptied room. The pointer check keeps a stale deletion
// from clobbering a fresh aggregate created under the same id in the interim.
func (t *RoomTable) detach(id domain.RoomID, r *Room) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.rooms[id]; ok && cur == r {
		delete(t.rooms, id)
	}
}

type RoomInfo struct {
	ID          domain.RoomID `json:"roomId"`
	MemberCount int           `json:"memberCount"`
}

func (t *RoomTable) List() []RoomInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]RoomInfo, 0, len(t.rooms))
	for id, r := range t.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: r.MemberCount()})
	}
	return out
}
