package app

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"meetpoint/internal/domain"
)

type member struct {
	p     *domain.Participant
	sink  Sink
	perms domain.Permissions
	seq   uint64
}

// Room is a threadsafe in-memory membership aggregate. All mutations and the
// snapshot broadcasts they produce happen under one mutex, so every member
// observes snapshots in mutation order. A Room never closes adapter-owned
// connections.
type Room struct {
	id domain.RoomID

	mu      sync.Mutex
	members map[domain.ConnID]*member
	admin   domain.ConnID
	nextSeq uint64
	closed  bool
}

func newRoom(id domain.RoomID) *Room {
	return &Room{id: id, members: make(map[domain.ConnID]*member)}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Admin returns the current admin conn id, if the room has members.
func (r *Room) Admin() (domain.ConnID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.admin, r.admin != ""
}

func (r *Room) IsMember(id domain.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[id]
	return ok
}

// Snapshot returns the membership view in join order.
func (r *Room) Snapshot() []MemberView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// join adds the participant with default permissions; the first joiner
// becomes admin. The new member gets the full snapshot, everyone else a
// user-joined notice, and the whole room an updated snapshot.
func (r *Room) join(p *domain.Participant, sink Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errRoomClosed
	}

	m, rejoined := r.members[p.ConnID]
	if rejoined {
		// Same connection joining its own room again: re-bind the identity
		// (a rename installs a fresh Participant) and keep the seat.
		m.p = p
		m.sink = sink
	} else {
		m = &member{p: p, sink: sink, perms: domain.DefaultPermissions(), seq: r.nextSeq}
		r.nextSeq++
		r.members[p.ConnID] = m
	}
	if r.admin == "" {
		r.admin = p.ConnID
	}

	if !rejoined {
		joined := UserJoinedEvent{UserID: p.ConnID, UserName: p.Name, IsAdmin: r.admin == p.ConnID}
		for id, other := range r.members {
			if id != p.ConnID {
				r.emit(other, EvtUserJoined, joined)
			}
		}
	}

	snap := r.snapshotLocked()
	r.emit(m, EvtRoomUsers, snap)
	for _, mm := range r.members {
		r.emit(mm, EvtRoomUsersUpdated, snap)
	}

	log.Info().Str("module", "app.room").Str("room", string(r.id)).
		Str("conn", string(p.ConnID)).Bool("admin", r.admin == p.ConnID).
		Int("members", len(r.members)).Msg("member joined")
	return nil
}

type leaveResult struct {
	removed  bool
	name     string
	empty    bool
	promoted domain.ConnID
}

// leave removes the member. Removing an id that is not a member is a no-op,
// which makes an eviction idempotent with the target's later disconnect.
func (r *Room) leave(id domain.ConnID) leaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

func (r *Room) removeLocked(id domain.ConnID) leaveResult {
	m, ok := r.members[id]
	if !ok {
		return leaveResult{}
	}
	delete(r.members, id)
	res := leaveResult{removed: true, name: m.p.Name}

	if r.admin == id {
		r.admin = ""
		if next := r.earliestLocked(); next != nil {
			r.admin = next.p.ConnID
			res.promoted = r.admin
			r.emit(next, EvtPromotedToAdmin, struct{}{})
			log.Info().Str("module", "app.room").Str("room", string(r.id)).
				Str("conn", string(r.admin)).Msg("promoted to admin")
		}
	}

	if len(r.members) == 0 {
		r.closed = true
		res.empty = true
	} else {
		snap := r.snapshotLocked()
		for _, mm := range r.members {
			r.emit(mm, EvtRoomUsersUpdated, snap)
		}
	}

	left := UserLeftEvent{UserID: id, UserName: m.p.Name}
	for _, mm := range r.members {
		r.emit(mm, EvtUserLeft, left)
	}

	log.Info().Str("module", "app.room").Str("room", string(r.id)).
		Str("conn", string(id)).Int("members", len(r.members)).Msg("member left")
	return res
}

// evict is the admin-authorized removal path. The target is notified before
// its departure runs the normal leave semantics.
func (r *Room) evict(adminID, targetID domain.ConnID) (leaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return leaveResult{}, ErrRoomNotFound
	}
	if r.admin != adminID {
		return leaveResult{}, ErrNotAdmin
	}
	t, ok := r.members[targetID]
	if !ok {
		return leaveResult{}, ErrNotMember
	}
	r.emit(t, EvtRemovedFromRoom, RemovedFromRoomEvent{
		Message: "You have been removed from the meeting by the admin",
	})
	return r.removeLocked(targetID), nil
}

// setPermissions overwrites the target's capability set. The target gets the
// new set directly so it can apply it locally; the room gets a change notice.
// On any failure nothing is mutated and nothing is broadcast.
func (r *Room) setPermissions(adminID, targetID domain.ConnID, perms domain.Permissions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	if r.admin != adminID {
		return ErrNotAdmin
	}
	t, ok := r.members[targetID]
	if !ok {
		return ErrNotMember
	}
	t.perms = perms
	r.emit(t, EvtPermissionsUpdated, perms)
	changed := PermissionsChangedEvent{UserID: targetID, Permissions: perms}
	for _, mm := range r.members {
		r.emit(mm, EvtUserPermissionsChanged, changed)
	}
	return nil
}

// broadcastOthers fans an event out to every member except from.
func (r *Room) broadcastOthers(from domain.ConnID, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, mm := range r.members {
		if id != from {
			r.emit(mm, event, data)
		}
	}
}

func (r *Room) snapshotLocked() []MemberView {
	ms := lo.Values(r.members)
	sort.Slice(ms, func(i, j int) bool { return ms[i].seq < ms[j].seq })
	return lo.Map(ms, func(m *member, _ int) MemberView {
		return MemberView{
			UserID:      m.p.ConnID,
			UserName:    m.p.Name,
			IsAdmin:     m.p.ConnID == r.admin,
			Permissions: m.perms,
		}
	})
}

func (r *Room) earliestLocked() *member {
	var first *member
	for _, m := range r.members {
		if first == nil || m.seq < first.seq {
			first = m
		}
	}
	return first
}

func (r *Room) emit(to *member, event string, data any) {
	if err := to.sink.Emit(event, data); err != nil {
		log.Warn().Err(err).Str("module", "app.room").Str("room", string(r.id)).
			Str("conn", string(to.p.ConnID)).Str("event", event).Msg("event dropped")
	}
}
