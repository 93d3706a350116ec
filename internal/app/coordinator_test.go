package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meetpoint/internal/domain"
	"meetpoint/internal/store"
)

type recordedEvent struct {
	Event string
	Data  any
}

type fakeSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *fakeSink) Emit(event string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{Event: event, Data: data})
	return nil
}

func (s *fakeSink) byType(event string) []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []recordedEvent
	for _, e := range s.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (s *fakeSink) count(event string) int {
	return len(s.byType(event))
}

func (s *fakeSink) lastSnapshot(t *testing.T, event string) []MemberView {
	t.Helper()
	evs := s.byType(event)
	require.NotEmpty(t, evs)
	snap, ok := evs[len(evs)-1].Data.([]MemberView)
	require.True(t, ok)
	return snap
}

type fakeStore struct {
	mu           sync.Mutex
	participants []string
	chats        []string
	err          error
}

func (s *fakeStore) AppendParticipant(_ context.Context, roomID, _, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants = append(s.participants, roomID)
	return s.err
}

func (s *fakeStore) AppendChatMessage(_ context.Context, roomID, _, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = append(s.chats, roomID)
	return s.err
}

func (s *fakeStore) chatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}

func (s *fakeStore) participantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

func newTestCoordinator(st store.MeetingStore) *Coordinator {
	if st == nil {
		st = store.Nop{}
	}
	return NewCoordinator(NewRegistry(), NewRoomTable(), st, time.Second)
}

func connect(t *testing.T, c *Coordinator, id, name string) *fakeSink {
	t.Helper()
	p, err := domain.NewParticipant(domain.ConnID(id), "", name)
	require.NoError(t, err)
	sink := &fakeSink{}
	c.Connect(p, sink)
	return sink
}

func TestJoin_FirstJoinerBecomesAdmin(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	sinkA := connect(t, c, "A", "alice")

	// When the first participant joins an unknown room
	req.NoError(c.Join("A", "r1", "", "alice"))

	// Then it receives the full snapshot and holds the admin seat
	snap := sinkA.lastSnapshot(t, EvtRoomUsers)
	req.Len(snap, 1)
	req.Equal(domain.ConnID("A"), snap[0].UserID)
	req.True(snap[0].IsAdmin)
	req.Equal(domain.DefaultPermissions(), snap[0].Permissions)

	info, ok := c.Occupancy("r1")
	req.True(ok)
	req.Equal(1, info.MemberCount)
}

func TestJoin_SecondJoinerIsNotAdmin(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	sinkA := connect(t, c, "A", "alice")
	sinkB := connect(t, c, "B", "bob")

	req.NoError(c.Join("A", "r1", "", "alice"))
	req.NoError(c.Join("B", "r1", "", "bob"))

	// Then the admin seat stays with the first joiner
	snap := sinkB.lastSnapshot(t, EvtRoomUsers)
	req.Len(snap, 2)
	req.Equal(domain.ConnID("A"), snap[0].UserID)
	req.True(snap[0].IsAdmin)
	req.Equal(domain.ConnID("B"), snap[1].UserID)
	req.False(snap[1].IsAdmin)

	// And the first joiner was told about the newcomer
	joined := sinkA.byType(EvtUserJoined)
	req.Len(joined, 1)
	ev, ok := joined[0].Data.(UserJoinedEvent)
	req.True(ok)
	req.Equal(domain.ConnID("B"), ev.UserID)
	req.False(ev.IsAdmin)
	req.Equal(2, len(sinkA.lastSnapshot(t, EvtRoomUsersUpdated)))
}

func TestAdminDisconnect_PromotesEarliestSurvivor(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	connect(t, c, "A", "alice")
	sinkB := connect(t, c, "B", "bob")
	sinkC := connect(t, c, "C", "carol")
	req.NoError(c.Join("A", "r1", "", "alice"))
	req.NoError(c.Join("B", "r1", "", "bob"))
	req.NoError(c.Join("C", "r1", "", "carol"))

	// When the admin's transport dies
	c.Disconnect("A")

	// Then the earliest surviving joiner takes the seat and is told so
	req.Equal(1, sinkB.count(EvtPromotedToAdmin))
	req.Zero(sinkC.count(EvtPromotedToAdmin))

	snap := sinkC.lastSnapshot(t, EvtRoomUsersUpdated)
	req.Len(snap, 2)
	req.Equal(domain.ConnID("B"), snap[0].UserID)
	req.True(snap[0].IsAdmin)
	for _, mv := range snap {
		req.NotEqual(domain.ConnID("A"), mv.UserID)
	}

	left := sinkC.byType(EvtUserLeft)
	req.Len(left, 1)
	req.Equal(domain.ConnID("A"), left[0].Data.(UserLeftEvent).UserID)
}

func TestLastLeave_DeletesRoomState(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	connect(t, c, "A", "alice")

	req.NoError(c.Join("A", "r1", "", "alice"))
	req.NoError(c.UpdatePermissions("r1", "A", "A", domain.Permissions{}))
	c.Leave("A")

	// Then the room is gone entirely
	_, ok := c.Occupancy("r1")
	req.False(ok)

	// And a later join on the same id gets a fresh room with no trace of A
	sinkB := connect(t, c, "B", "bob")
	req.NoError(c.Join("B", "r1", "", "bob"))
	snap := sinkB.lastSnapshot(t, EvtRoomUsers)
	req.Len(snap, 1)
	req.Equal(domain.ConnID("B"), snap[0].UserID)
	req.True(snap[0].IsAdmin)
	req.Equal(domain.DefaultPermissions(), snap[0].Permissions)
}

func TestUpdatePermissions_NonAdminRejected(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	sinkA := connect(t, c, "A", "alice")
	sinkB := connect(t, c, "B", "bob")
	req.NoError(c.Join("A", "r1", "", "alice"))
	req.NoError(c.Join("B", "r1", "", "bob"))

	// When a non-admin tries to mute the admin
	err := c.UpdatePermissions("r1", "B", "A", domain.Permissions{})

	// Then the call is rejected and nothing was broadcast or mutated
	req.ErrorIs(err, ErrNotAdmin)
	req.Zero(sinkA.count(EvtPermissionsUpdated))
	req.Zero(sinkA.count(EvtUserPermissionsChanged))
	req.Zero(sinkB.count(EvtUserPermissionsChanged))

	room, ok := c.rooms.Get("r1")
	req.True(ok)
	req.Equal(domain.DefaultPermissions(), room.Snapshot()[0].Permissions)
}

func TestUpdatePermissions_AdminOverwritesAndBroadcasts(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	sinkA := connect(t, c, "A", "alice")
	sinkB := connect(t, c, "B", "bob")
	req.NoError(c.Join("A", "r1", "", "alice"))
	req.NoError(c.Join("B", "r1", "", "bob"))

	muted := domain.Permissions{CanVideo: true, CanScreenShare: true}
	req.NoError(c.UpdatePermissions("r1", "A", "B", muted))

	// Then the target gets the new set directly to apply locally
	direct := sinkB.byType(EvtPermissionsUpdated)
	req.Len(direct, 1)
	req.Equal(muted, direct[0].Data.(domain.Permissions))

	// And the whole room hears about the change
	changed := sinkA.byType(EvtUserPermissionsChanged)
	req.Len(changed, 1)
	ev := changed[0].Data.(PermissionsChangedEvent)
	req.Equal(domain.ConnID("B"), ev.UserID)
	req.Equal(muted, ev.Permissions)
	req.Len(sinkB.byType(EvtUserPermissionsChanged), 1)
}

func TestRelay_TargetedAndOpaque(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	connect(t, c, "A", "alice")
	sinkB := connect(t, c, "B", "bob")
	sinkC := connect(t, c, "C", "carol")
	req.NoError(c.Join("A", "r1", "", "alice"))
	req.NoError(c.Join("B", "r1", "", "bob"))
	req.NoError(c.Join("C", "r1", "", "carol"))

	payload := json.RawMessage(`{"sdp":"v=0 not inspected","weird":[1,null]}`)
	c.Relay(SignalOffer, "A", "B", payload)

	// Then only the addressed peer receives it, body untouched
	offers := sinkB.byType(EvtOffer)
	req.Len(offers, 1)
	msg := offers[0].Data.(map[string]any)
	req.Equal(payload, msg["offer"])
	req.Equal(domain.ConnID("A"), msg["from"])
	req.Equal("alice", msg["userName"])
	req.Zero(sinkC.count(EvtOffer))

	// Answers carry no display name
	c.Relay(SignalAnswer, "B", "A", payload)
	answers := connectLookup(t, c, "A").byType(EvtAnswer)
	req.Len(answers, 1)
	_, hasName := answers[0].Data.(map[string]any)["userName"]
	req.False(hasName)
}

// connectLookup digs the fake sink back out of the registry.
func connectLookup(t *testing.T, c *Coordinator, id domain.ConnID) *fakeSink {
	t.Helper()
	_, sink, ok := c.registry.Lookup(id)
	require.True(t, ok)
	return sink.(*fakeSink)
}

func TestRelay_OfflineDestinationIsSilentNoop(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	sinkA := connect(t, c, "A", "alice")
	req.NoError(c.Join("A", "r1", "", "alice"))
	before := len(sinkA.byType(EvtError))

	c.Relay(SignalICECandidate, "A", "ghost", json.RawMessage(`{}`))

	// Then nothing surfaces anywhere, not even an error to the sender
	req.Equal(before, len(sinkA.byType(EvtError)))
	req.Zero(sinkA.count(EvtICECandidate))
}

func TestChat_ExcludesSender(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	sinkA := connect(t, c, "A", "alice")
	sinkB := connect(t, c, "B", "bob")
	sinkC := connect(t, c, "C", "carol")
	req.NoError(c.Join("A", "r1", "", "alice"))
	req.NoError(c.Join("B", "r1", "", "bob"))
	req.NoError(c.Join("C", "r1", "", "carol"))

	c.Chat("r1", "A", "hi")

	// Then the others get the event and the sender renders its local echo
	for _, sink := range []*fakeSink{sinkB, sinkC} {
		msgs := sink.byType(EvtChatMessage)
		req.Len(msgs, 1)
		ev := msgs[0].Data.(ChatEvent)
		req.Equal("alice", ev.Sender)
		req.Equal("hi", ev.Message)
		req.Equal(domain.ConnID("A"), ev.SenderID)
		req.False(ev.Timestamp.IsZero())
	}
	req.Zero(sinkA.count(EvtChatMessage))
}

func TestChat_StoreFailureNeverSurfaces(t *testing.T) {
	req := require.New(t)
	st := &fakeStore{err: errors.New("store unreachable")}
	c := newTestCoordinator(st)
	sinkA := connect(t, c, "A", "alice")
	sinkB := connect(t, c, "B", "bob")
	req.NoError(c.Join("A", "r1", "", "alice"))
	req.NoError(c.Join("B", "r1", "", "bob"))

	c.Chat("r1", "A", "still works")

	// Then the relay completed on the real-time path
	req.Len(sinkB.byType(EvtChatMessage), 1)

	// And the append was attempted but its failure reached no client
	req.Eventually(func() bool { return st.chatCount() == 1 }, time.Second, 10*time.Millisecond)
	req.Zero(sinkA.count(EvtError))
	req.Zero(sinkB.count(EvtError))
}

func TestJoin_AppendsParticipantToStore(t *testing.T) {
	req := require.New(t)
	st := &fakeStore{}
	c := newTestCoordinator(st)
	connect(t, c, "A", "alice")

	req.NoError(c.Join("A", "r1", "u-42", "alice"))

	req.Eventually(func() bool { return st.participantCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestChat_UnknownSenderDroppedSilently(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	sinkB := connect(t, c, "B", "bob")
	req.NoError(c.Join("B", "r1", "", "bob"))

	// When a chat arrives from a connection that already disconnected
	c.Chat("r1", "gone", "too late")

	req.Zero(sinkB.count(EvtChatMessage))
}

func TestRemoveUser_EvictIsIdempotentWithDisconnect(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	sinkA := connect(t, c, "A", "alice")
	sinkB := connect(t, c, "B", "bob")
	req.NoError(c.Join("A", "r1", "", "alice"))
	req.NoError(c.Join("B", "r1", "", "bob"))

	// Non-admins cannot evict
	req.ErrorIs(c.RemoveUser("r1", "B", "A"), ErrNotAdmin)

	// When the admin evicts B
	req.NoError(c.RemoveUser("r1", "A", "B"))
	req.Equal(1, sinkB.count(EvtRemovedFromRoom))
	req.Len(sinkA.lastSnapshot(t, EvtRoomUsersUpdated), 1)
	leftBefore := sinkA.count(EvtUserLeft)

	// And B's transport later closes for real
	c.Disconnect("B")

	// Then the second removal is a no-op, not an error
	req.Equal(leftBefore, sinkA.count(EvtUserLeft))
	info, ok := c.Occupancy("r1")
	req.True(ok)
	req.Equal(1, info.MemberCount)
}

func TestToggles_BroadcastToOthersOnly(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	sinkA := connect(t, c, "A", "alice")
	sinkB := connect(t, c, "B", "bob")
	req.NoError(c.Join("A", "r1", "", "alice"))
	req.NoError(c.Join("B", "r1", "", "bob"))

	c.ToggleMedia("r1", "A", ToggleAudio, false)
	c.ToggleMedia("r1", "A", ToggleVideo, true)
	c.ScreenShare("r1", "A", true)
	c.ScreenShare("r1", "A", false)

	audio := sinkB.byType(EvtUserAudioToggle)
	req.Len(audio, 1)
	ev := audio[0].Data.(PresenceEvent)
	req.Equal(domain.ConnID("A"), ev.UserID)
	req.Equal("alice", ev.UserName)
	req.NotNil(ev.IsEnabled)
	req.False(*ev.IsEnabled)

	req.Equal(1, sinkB.count(EvtUserVideoToggle))
	req.Equal(1, sinkB.count(EvtUserScreenShareStart))
	req.Equal(1, sinkB.count(EvtUserScreenShareStop))

	req.Zero(sinkA.count(EvtUserAudioToggle))
	req.Zero(sinkA.count(EvtUserScreenShareStart))
}

func TestJoin_SwitchingRoomsRunsFullDeparture(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	connect(t, c, "A", "alice")
	sinkB := connect(t, c, "B", "bob")
	req.NoError(c.Join("A", "r1", "", "alice"))
	req.NoError(c.Join("B", "r1", "", "bob"))

	// When the admin joins a different room on the same connection
	req.NoError(c.Join("A", "r2", "", "alice"))

	// Then the old room saw a real departure, promotion included
	req.Equal(1, sinkB.count(EvtPromotedToAdmin))
	r1, ok := c.Occupancy("r1")
	req.True(ok)
	req.Equal(1, r1.MemberCount)
	r2, ok := c.Occupancy("r2")
	req.True(ok)
	req.Equal(1, r2.MemberCount)

	room, _ := c.rooms.Get("r1")
	admin, hasAdmin := room.Admin()
	req.True(hasAdmin)
	req.Equal(domain.ConnID("B"), admin)
}

func TestJoin_SameRoomRejoinRenamesWithoutReannouncing(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	sinkA := connect(t, c, "A", "alice")
	connect(t, c, "B", "bob")
	req.NoError(c.Join("A", "r1", "", "alice"))
	req.NoError(c.Join("B", "r1", "", "bob"))
	req.Equal(1, sinkA.count(EvtUserJoined))

	// When B joins its own room again under a new name
	req.NoError(c.Join("B", "r1", "", "bobby"))

	// Then nobody hears a second arrival, but the snapshot carries the rename
	req.Equal(1, sinkA.count(EvtUserJoined))
	snap := sinkA.lastSnapshot(t, EvtRoomUsersUpdated)
	req.Len(snap, 2)
	req.Equal("bobby", snap[1].UserName)
	req.Equal(domain.ConnID("B"), snap[1].UserID)

	info, ok := c.Occupancy("r1")
	req.True(ok)
	req.Equal(2, info.MemberCount)
}

func TestJoin_ConcurrentRenameAndSnapshotEmission(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	connect(t, c, "A", "alice")
	connect(t, c, "B", "bob")
	req.NoError(c.Join("A", "r1", "", "alice"))
	req.NoError(c.Join("B", "r1", "", "bob"))

	// When one connection keeps renaming itself while the other keeps
	// triggering snapshot emission in the same room
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			require.NoError(t, c.Join("A", "r1", "", fmt.Sprintf("alice-%d", i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			require.NoError(t, c.Join("B", "r1", "", "bob"))
		}
	}()
	wg.Wait()

	// Then every snapshot was built from a complete identity and the final
	// state carries the last rename
	room, ok := c.rooms.Get("r1")
	req.True(ok)
	snap := room.Snapshot()
	req.Len(snap, 2)
	req.Equal("alice-99", snap[0].UserName)
	req.Equal("bob", snap[1].UserName)
}

func TestJoin_ClosedRoomStillInTableIsReplaced(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	connect(t, c, "A", "alice")

	// Given an aggregate that was emptied but not yet detached, as the
	// window between leave and detach allows
	stale := c.rooms.GetOrCreate("r1")
	x, err := domain.NewParticipant("X", "", "xavier")
	req.NoError(err)
	req.NoError(stale.join(x, &fakeSink{}))
	req.True(stale.leave("X").empty)

	// When someone joins that room id
	req.NoError(c.Join("A", "r1", "", "alice"))

	// Then the stale aggregate was swapped for a fresh one
	got, ok := c.rooms.Get("r1")
	req.True(ok)
	req.NotSame(stale, got)
	req.Equal(1, got.MemberCount())
}

func TestAdminInvariant_AdminIsAlwaysMember(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator(nil)
	ids := []string{"A", "B", "C", "D"}
	for _, id := range ids {
		connect(t, c, id, "user-"+id)
		req.NoError(c.Join(domain.ConnID(id), "r1", "", "user-"+id))
	}

	check := func() {
		room, ok := c.rooms.Get("r1")
		if !ok {
			return
		}
		if admin, hasAdmin := room.Admin(); hasAdmin {
			req.True(room.IsMember(admin))
		}
		// The permission map and the member set never diverge
		for _, mv := range room.Snapshot() {
			req.True(room.IsMember(mv.UserID))
		}
	}

	check()
	c.Disconnect("A")
	check()
	c.Leave("C")
	check()
	req.NoError(c.RemoveUser("r1", "B", "D"))
	check()
	c.Disconnect("B")
	_, ok := c.Occupancy("r1")
	req.False(ok)
}
