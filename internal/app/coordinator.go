package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"meetpoint/internal/domain"
	"meetpoint/internal/store"
)

// SignalKind names the handshake messages the relay forwards. The relay never
// inspects the payload body.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
)

type ToggleKind string

const (
	ToggleAudio ToggleKind = "audio"
	ToggleVideo ToggleKind = "video"
)

// Coordinator owns all shared session state and exposes it only through these
// operations; transports never touch the registry or room table directly.
type Coordinator struct {
	registry     *Registry
	rooms        *RoomTable
	store        store.MeetingStore
	storeTimeout time.Duration
}

func NewCoordinator(reg *Registry, rooms *RoomTable, st store.MeetingStore, storeTimeout time.Duration) *Coordinator {
	return &Coordinator{
		registry:     reg,
		rooms:        rooms,
		store:        st,
		storeTimeout: storeTimeout,
	}
}

// Connect registers a new live connection and tells the client its conn id,
// which doubles as its relay address for the session.
func (c *Coordinator) Connect(p *domain.Participant, sink Sink) {
	c.registry.Register(p, sink)
	if err := sink.Emit(EvtConnected, ConnectedEvent{ConnID: p.ConnID}); err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Str("conn", string(p.ConnID)).Msg("connected event dropped")
	}
}

// Join puts the connection into a room, creating the room when it is the
// first joiner (and making it admin). A join while already in another room
// runs the full departure from the old room first.
func (c *Coordinator) Join(connID domain.ConnID, roomID domain.RoomID, userID domain.UserID, name string) error {
	_, sink, ok := c.registry.Lookup(connID)
	if !ok {
		return ErrUnknownConn
	}
	p, err := c.registry.Rename(connID, userID, name)
	if err != nil {
		return err
	}
	if cur, in := c.registry.RoomOf(connID); in && cur != roomID {
		c.departRoom(connID, cur)
	}

	// A room emptied between lookup and lock acquisition is closed for good.
	// The emptying side may not have detached it from the table yet, so clear
	// the stale aggregate ourselves and retry against a fresh one.
	for {
		room := c.rooms.GetOrCreate(roomID)
		err := room.join(p, sink)
		if err == nil {
			break
		}
		if !errors.Is(err, errRoomClosed) {
			return err
		}
		c.rooms.detach(roomID, room)
	}
	c.registry.BindRoom(connID, roomID)

	joinedAt := time.Now()
	storeUserID, storeName := string(p.UserID), p.Name
	c.persist("append participant", func(ctx context.Context) error {
		return c.store.AppendParticipant(ctx, string(roomID), storeUserID, storeName, joinedAt)
	})
	return nil
}

// Leave takes the connection out of its current room; the connection itself
// stays open. Leaving while in no room is a no-op.
func (c *Coordinator) Leave(connID domain.ConnID) {
	if roomID, ok := c.registry.RoomOf(connID); ok {
		c.departRoom(connID, roomID)
	}
}

// Disconnect runs the leave semantics and unbinds the connection. After this
// the conn id is a no-op relay destination.
func (c *Coordinator) Disconnect(connID domain.ConnID) {
	c.Leave(connID)
	c.registry.Remove(connID)
}

func (c *Coordinator) departRoom(connID domain.ConnID, roomID domain.RoomID) {
	defer c.registry.ClearRoom(connID)
	room, ok := c.rooms.Get(roomID)
	if !ok {
		return
	}
	if res := room.leave(connID); res.empty {
		c.rooms.detach(roomID, room)
		log.Info().Str("module", "app.coordinator").Str("room", string(roomID)).Msg("room deleted")
	}
}

// Relay forwards a handshake payload to one destination, unmodified. An
// offline destination means a silent drop: best-effort, at-most-once.
func (c *Coordinator) Relay(kind SignalKind, from, to domain.ConnID, payload json.RawMessage) {
	sender, _, ok := c.registry.Lookup(from)
	if !ok {
		return
	}
	_, sink, ok := c.registry.Lookup(to)
	if !ok {
		log.Debug().Str("module", "app.coordinator").Str("to", string(to)).
			Str("kind", string(kind)).Msg("relay destination offline, dropping")
		return
	}

	msg := map[string]any{"from": from}
	switch kind {
	case SignalOffer:
		msg["offer"] = payload
		msg["userName"] = sender.Name
	case SignalAnswer:
		msg["answer"] = payload
	case SignalICECandidate:
		msg["candidate"] = payload
	default:
		log.Warn().Str("module", "app.coordinator").Str("kind", string(kind)).Msg("unknown signal kind")
		return
	}
	if err := sink.Emit(string(kind), msg); err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Str("to", string(to)).Msg("relay dropped")
	}
}

// Chat fans a message out to every other room member and issues a
// fire-and-forget append to the meeting store. A sender that disconnected in
// the meantime is dropped silently.
func (c *Coordinator) Chat(roomID domain.RoomID, from domain.ConnID, text string) {
	sender, _, ok := c.registry.Lookup(from)
	if !ok {
		log.Warn().Str("module", "app.coordinator").Str("conn", string(from)).Msg("chat from unknown connection")
		return
	}
	room, ok := c.rooms.Get(roomID)
	if !ok {
		log.Warn().Str("module", "app.coordinator").Str("room", string(roomID)).Msg("chat for unknown room")
		return
	}

	ev := ChatEvent{Sender: sender.Name, Message: text, Timestamp: time.Now(), SenderID: from}
	room.broadcastOthers(from, EvtChatMessage, ev)

	c.persist("append chat message", func(ctx context.Context) error {
		return c.store.AppendChatMessage(ctx, string(roomID), ev.Sender, ev.Message, ev.Timestamp)
	})
}

// ToggleMedia broadcasts an audio/video state change to the other members.
// The coordinator keeps no per-member media state and does not re-validate
// toggles against the permission map; revocations are applied client-side.
func (c *Coordinator) ToggleMedia(roomID domain.RoomID, from domain.ConnID, kind ToggleKind, enabled bool) {
	event := EvtUserAudioToggle
	if kind == ToggleVideo {
		event = EvtUserVideoToggle
	}
	c.broadcastPresence(roomID, from, event, &enabled)
}

// ScreenShare broadcasts a screen-share start or stop to the other members.
func (c *Coordinator) ScreenShare(roomID domain.RoomID, from domain.ConnID, started bool) {
	event := EvtUserScreenShareStop
	if started {
		event = EvtUserScreenShareStart
	}
	c.broadcastPresence(roomID, from, event, nil)
}

func (c *Coordinator) broadcastPresence(roomID domain.RoomID, from domain.ConnID, event string, enabled *bool) {
	sender, _, ok := c.registry.Lookup(from)
	if !ok {
		return
	}
	room, ok := c.rooms.Get(roomID)
	if !ok {
		return
	}
	room.broadcastOthers(from, event, PresenceEvent{
		UserID:    from,
		UserName:  sender.Name,
		IsEnabled: enabled,
	})
}

// UpdatePermissions overwrites the target's capability set, admin only.
// On failure nothing changes and the error goes back to the caller alone.
func (c *Coordinator) UpdatePermissions(roomID domain.RoomID, adminID, targetID domain.ConnID, perms domain.Permissions) error {
	room, ok := c.rooms.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	return room.setPermissions(adminID, targetID, perms)
}

// RemoveUser evicts the target from the room, admin only. The target is
// notified and its departure runs the normal leave semantics, so a later
// genuine disconnect of the same target finds nothing left to remove.
func (c *Coordinator) RemoveUser(roomID domain.RoomID, adminID, targetID domain.ConnID) error {
	room, ok := c.rooms.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	res, err := room.evict(adminID, targetID)
	if err != nil {
		return err
	}
	if res.empty {
		c.rooms.detach(roomID, room)
	}
	c.registry.ClearRoom(targetID)
	return nil
}

// Rooms lists current occupancy for the read-only HTTP view.
func (c *Coordinator) Rooms() []RoomInfo {
	return c.rooms.List()
}

// Occupancy reports one room's member count.
func (c *Coordinator) Occupancy(roomID domain.RoomID) (RoomInfo, bool) {
	room, ok := c.rooms.Get(roomID)
	if !ok {
		return RoomInfo{}, false
	}
	return RoomInfo{ID: roomID, MemberCount: room.MemberCount()}, true
}

// persist runs a meeting store append on its own goroutine with a bounded
// timeout. The real-time path is already complete when this runs; a store
// failure is logged and never surfaced to any client.
func (c *Coordinator) persist(op string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.storeTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Warn().Err(err).Str("module", "app.coordinator").Str("op", op).Msg("meeting store append failed")
		}
	}()
}
