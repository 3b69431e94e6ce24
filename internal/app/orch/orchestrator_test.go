package orch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/Quoridor/internal/app"
	"github.com/dkeye/Quoridor/internal/core"
	"github.com/dkeye/Quoridor/internal/domain"
	"github.com/dkeye/Quoridor/internal/game"
	"github.com/dkeye/Quoridor/internal/store"
	"github.com/goccy/go-json"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Envelope
	closed bool
	full   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	var env core.Envelope
	if err := json.Unmarshal(f, &env); err != nil {
		return err
	}
	c.frames = append(c.frames, env)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) events(typ string) []core.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []core.Envelope
	for _, e := range c.frames {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

func lastData[T any](t *testing.T, c *fakeConn, typ string) T {
	t.Helper()
	evs := c.events(typ)
	if len(evs) == 0 {
		t.Fatalf("no %s event", typ)
	}
	var v T
	if err := json.Unmarshal(evs[len(evs)-1].Data, &v); err != nil {
		t.Fatalf("decode %s: %v", typ, err)
	}
	return v
}

type harness struct {
	o   *Orchestrator
	st  core.Store
	ctx context.Context
}

func newHarness(t *testing.T, st core.Store, opts Options) *harness {
	t.Helper()
	if st == nil {
		st = store.NewMemory()
	}
	o := New(context.Background(), Deps{
		Registry: app.NewRegistry(st, time.Hour),
		Rooms:    st,
		Chats:    st,
		Policy:   app.SimplePolicy{},
		Limiter:  app.NewRateLimiter(5, time.Minute),
	}, opts)
	t.Cleanup(o.Close)
	return &harness{o: o, st: st, ctx: context.Background()}
}

func (h *harness) connect(cid core.ConnID, sid domain.SessionID) *fakeConn {
	c := &fakeConn{}
	h.o.Registry.BindSignal(cid, sid, c, nil)
	return c
}

func (h *harness) room(t *testing.T) domain.RoomID {
	t.Helper()
	id, err := h.o.CreateRoom(h.ctx)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return id
}

func (h *harness) stored(t *testing.T, id domain.RoomID) *domain.Room {
	t.Helper()
	r, err := h.st.Get(h.ctx, id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return r
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestCreateRoomRetriesOnCollision(t *testing.T) {
	h := newHarness(t, nil, Options{})
	_, err := h.st.Create(h.ctx, domain.NewRoom("aaaaa"), time.Minute)
	must(t, err)

	ids := []domain.RoomID{"aaaaa", "aaaaa", "bbbbb"}
	h.o.newID = func() (domain.RoomID, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
	id, err := h.o.CreateRoom(h.ctx)
	if err != nil || id != "bbbbb" {
		t.Fatalf("CreateRoom = %q, %v", id, err)
	}
}

func TestCreateRoomIDsAreUnique(t *testing.T) {
	h := newHarness(t, nil, Options{})
	seen := make(map[domain.RoomID]bool)
	for i := 0; i < 200; i++ {
		id := h.room(t)
		if !id.Valid() {
			t.Fatalf("invalid id %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate live room %q", id)
		}
		seen[id] = true
	}
}

func TestRoomExistsNormalizes(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id := h.room(t)
	got, ok, err := h.o.RoomExists(h.ctx, "  "+strings.ToUpper(string(id))+" ")
	if err != nil || !ok || got != id {
		t.Fatalf("RoomExists = %q,%v,%v", got, ok, err)
	}
	if _, ok, _ := h.o.RoomExists(h.ctx, "nope!"); ok {
		t.Fatal("invalid id reported as existing")
	}
}

func TestJoinMissingRoomRedirects(t *testing.T) {
	h := newHarness(t, nil, Options{})
	c := h.connect("c1", "s1")
	err := h.o.JoinRoom(h.ctx, "c1", "zzzzz")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("want ErrRoomNotFound, got %v", err)
	}
	h.o.Report("c1", err)
	if r := lastData[Redirect](t, c, EventRedirect); !r.Redirect {
		t.Fatal("redirect flag not set")
	}
}

func TestJoinSendsSnapshot(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id := h.room(t)
	_, err := h.o.Registry.Rename(h.ctx, "s1", "Alice")
	must(t, err)
	must(t, h.st.Append(h.ctx, id, domain.ChatMessage{Name: "x", Msg: "hello"}, time.Minute, 10))

	c := h.connect("c1", "s1")
	must(t, h.o.JoinRoom(h.ctx, "c1", string(id)))

	if hist := lastData[[]domain.ChatMessage](t, c, EventChatRecent); len(hist) != 1 || hist[0].Msg != "hello" {
		t.Fatalf("chat-recent = %+v", hist)
	}
	st := lastData[game.State](t, c, EventStateUpdate)
	if st.ActivePlayer != game.Red || st.RedWallsLeft != game.WallsPerPlayer {
		t.Fatalf("state-update = %+v", st)
	}
	if who := lastData[WhoAmI](t, c, EventWhoAmI); who.Name != "Alice" || who.Room != id {
		t.Fatalf("whoami = %+v", who)
	}
	if h.stored(t, id).GameState == nil {
		t.Fatal("join did not persist the board")
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id := h.room(t)
	h.connect("c1", "s1")
	must(t, h.o.JoinRoom(h.ctx, "c1", string(id)))
	must(t, h.o.PickColor(h.ctx, "c1", game.Red))

	c2 := h.connect("c2", "s1")
	must(t, h.o.JoinRoom(h.ctx, "c2", string(id)))
	must(t, h.o.JoinRoom(h.ctx, "c1", string(id)))

	r := h.stored(t, id)
	if len(r.Connections) != 1 || r.ColorOf("s1") != game.Red {
		t.Fatalf("connections = %v", r.Connections)
	}
	if seat := lastData[PlayerChanged](t, c2, EventPlayerChanged); seat.Color != game.Red {
		t.Fatalf("player-changed on join = %+v", seat)
	}
}

func TestPickColor(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id := h.room(t)
	a := h.connect("a", "sa")
	b := h.connect("b", "sb")
	must(t, h.o.JoinRoom(h.ctx, "a", string(id)))
	must(t, h.o.JoinRoom(h.ctx, "b", string(id)))
	a.reset()
	b.reset()

	must(t, h.o.PickColor(h.ctx, "a", game.Red))
	if got := lastData[BecomePlayer](t, a, EventBecomePlayer); got.Color != game.Red {
		t.Fatalf("become-player = %+v", got)
	}
	if len(b.events(EventBecomePlayer)) != 0 {
		t.Fatal("become-player leaked to another session")
	}
	if got := lastData[PlayerChanged](t, b, EventPlayerChanged); got.Color != game.Red || got.Name != domain.DefaultUsername {
		t.Fatalf("player-changed = %+v", got)
	}

	b.reset()
	err := h.o.PickColor(h.ctx, "b", game.Red)
	if !errors.Is(err, domain.ErrColorTaken) {
		t.Fatalf("want ErrColorTaken, got %v", err)
	}
	if len(a.events(EventPlayerChanged)) != 1 {
		t.Fatal("a taken color must not broadcast")
	}
	h.o.Report("b", err)
	if got := lastData[Rejected](t, b, EventRejected); got.Reason != "color_taken" {
		t.Fatalf("rejected = %+v", got)
	}
	if h.stored(t, id).ColorOf("sb") != game.Empty {
		t.Fatal("taken color was assigned")
	}
}

func TestPickColorSwitchFreesPrevious(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id := h.room(t)
	a := h.connect("a", "sa")
	must(t, h.o.JoinRoom(h.ctx, "a", string(id)))
	must(t, h.o.PickColor(h.ctx, "a", game.Red))
	must(t, h.o.PickColor(h.ctx, "a", game.Blue))

	if got := lastData[PlayerRemoved](t, a, EventPlayerRemoved); got.Color != game.Red {
		t.Fatalf("player-removed = %+v", got)
	}
	r := h.stored(t, id)
	if _, ok := r.HolderOf(game.Red); ok || r.ColorOf("sa") != game.Blue {
		t.Fatalf("connections = %v", r.Connections)
	}
}

func TestConcurrentPicksSeatOneSession(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id := h.room(t)
	const n = 20
	for i := 0; i < n; i++ {
		cid := core.ConnID(rune('A' + i))
		h.connect(cid, domain.SessionID("s"+string(cid)))
		must(t, h.o.JoinRoom(h.ctx, cid, string(id)))
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(cid core.ConnID) {
			defer wg.Done()
			if h.o.PickColor(h.ctx, cid, game.Red) == nil {
				wins.Add(1)
			}
		}(core.ConnID(rune('A' + i)))
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("%d sessions got red", wins.Load())
	}
	r := h.stored(t, id)
	holders := 0
	for _, c := range r.Connections {
		if c == game.Red {
			holders++
		}
	}
	if holders != 1 || len(r.Connections) != n {
		t.Fatalf("holders=%d connections=%d", holders, len(r.Connections))
	}
}

func seatTwo(t *testing.T, h *harness) (domain.RoomID, *fakeConn, *fakeConn) {
	t.Helper()
	id := h.room(t)
	a := h.connect("a", "sa")
	b := h.connect("b", "sb")
	must(t, h.o.JoinRoom(h.ctx, "a", string(id)))
	must(t, h.o.JoinRoom(h.ctx, "b", string(id)))
	must(t, h.o.PickColor(h.ctx, "a", game.Red))
	must(t, h.o.PickColor(h.ctx, "b", game.Blue))
	a.reset()
	b.reset()
	return id, a, b
}

func TestSubmitMoveBroadcasts(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id, a, b := seatTwo(t, h)

	must(t, h.o.SubmitMove(h.ctx, "a", MoveRequest{Kind: MovePawn, Col: 4, Row: 7}))
	for name, c := range map[string]*fakeConn{"a": a, "b": b} {
		st := lastData[game.State](t, c, EventStateUpdate)
		if st.ActivePlayer != game.Blue || st.RedPos != (game.Pos{Col: 4, Row: 7}) {
			t.Fatalf("%s got state %+v", name, st)
		}
	}
	if h.stored(t, id).GameState.ActivePlayer != game.Blue {
		t.Fatal("move not persisted")
	}

	must(t, h.o.SubmitMove(h.ctx, "b", MoveRequest{Kind: MoveWall, Col: 3, Row: 3, Direction: game.Horizontal}))
	st := h.stored(t, id).GameState
	if st.HorizontalWalls[3][3] != game.Blue || st.BluWallsLeft != game.WallsPerPlayer-1 {
		t.Fatal("wall not persisted")
	}
}

func TestSubmitMoveRejections(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id, a, b := seatTwo(t, h)
	before := h.stored(t, id).GameState

	cases := []struct {
		cid    core.ConnID
		req    MoveRequest
		reason string
	}{
		{"b", MoveRequest{Kind: MovePawn, Col: 4, Row: 1}, "not_your_turn"},
		{"a", MoveRequest{Kind: MovePawn, Col: 4, Row: 5}, "illegal_move"},
		{"a", MoveRequest{Kind: MoveWall, Col: 3, Row: 3, Direction: "DIAGONAL"}, "wall_out_of_bounds"},
		{"a", MoveRequest{Kind: "teleport"}, "bad_move"},
	}
	for _, tc := range cases {
		err := h.o.SubmitMove(h.ctx, tc.cid, tc.req)
		if err == nil {
			t.Fatalf("%+v accepted", tc.req)
		}
		if got := Reason(err); got != tc.reason {
			t.Fatalf("%+v: reason %q, want %q", tc.req, got, tc.reason)
		}
	}
	if len(a.events(EventStateUpdate))+len(b.events(EventStateUpdate)) != 0 {
		t.Fatal("rejected move was broadcast")
	}
	after := h.stored(t, id).GameState
	if after.RedPos != before.RedPos || after.ActivePlayer != before.ActivePlayer {
		t.Fatal("rejected move changed the stored board")
	}

	h.connect("c", "sc")
	must(t, h.o.JoinRoom(h.ctx, "c", string(id)))
	if err := h.o.SubmitMove(h.ctx, "c", MoveRequest{Kind: MovePawn, Col: 4, Row: 7}); !errors.Is(err, ErrNotPlayer) {
		t.Fatalf("observer move: %v", err)
	}
}

func TestRestartGame(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id, _, b := seatTwo(t, h)
	must(t, h.o.SubmitMove(h.ctx, "a", MoveRequest{Kind: MovePawn, Col: 4, Row: 7}))

	h.connect("c", "sc")
	must(t, h.o.JoinRoom(h.ctx, "c", string(id)))
	if err := h.o.RestartGame(h.ctx, "c"); !errors.Is(err, ErrNotPlayer) {
		t.Fatalf("observer restart: %v", err)
	}

	b.reset()
	must(t, h.o.RestartGame(h.ctx, "b"))
	st := lastData[game.State](t, b, EventStateUpdate)
	if st.RedPos != (game.Pos{Col: 4, Row: 8}) || st.ActivePlayer != game.Red {
		t.Fatalf("restart state = %+v", st)
	}
}

func TestRefreshState(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id := h.room(t)
	c := h.connect("c1", "s1")
	if err := h.o.RefreshState(h.ctx, "c1"); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("refresh outside a room: %v", err)
	}
	must(t, h.o.JoinRoom(h.ctx, "c1", string(id)))
	c.reset()
	must(t, h.o.RefreshState(h.ctx, "c1"))
	if st := lastData[game.State](t, c, EventStateUpdate); st.Status != game.Playing {
		t.Fatalf("state = %+v", st)
	}
}

func TestDisconnectLastDeletesRoomAndChat(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id := h.room(t)
	h.connect("c1", "s1")
	must(t, h.o.JoinRoom(h.ctx, "c1", string(id)))
	must(t, h.o.ChatMessage(h.ctx, "c1", "gg"))

	must(t, h.o.Disconnect(h.ctx, "c1"))
	if ok, _ := h.st.Exists(h.ctx, id); ok {
		t.Fatal("room survived its last connection")
	}
	if hist, _ := h.st.Recent(h.ctx, id); len(hist) != 0 {
		t.Fatalf("chat survived: %+v", hist)
	}
}

func TestDisconnectNonLastFreesColor(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id, _, b := seatTwo(t, h)
	must(t, h.o.ChatMessage(h.ctx, "a", "bye"))

	must(t, h.o.Disconnect(h.ctx, "a"))
	r := h.stored(t, id)
	if r.Has("sa") || r.ColorOf("sb") != game.Blue {
		t.Fatalf("connections = %v", r.Connections)
	}
	if got := lastData[PlayerRemoved](t, b, EventPlayerRemoved); got.Color != game.Red {
		t.Fatalf("player-removed = %+v", got)
	}
	if hist, _ := h.st.Recent(h.ctx, id); len(hist) != 1 {
		t.Fatalf("chat lost: %+v", hist)
	}
}

func TestDisconnectKeepsSeatWhileSessionHasAnotherConnection(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id, _, b := seatTwo(t, h)
	h.connect("a2", "sa")
	must(t, h.o.JoinRoom(h.ctx, "a2", string(id)))

	must(t, h.o.Disconnect(h.ctx, "a"))
	if h.stored(t, id).ColorOf("sa") != game.Red {
		t.Fatal("seat freed while another tab is open")
	}
	if len(b.events(EventPlayerRemoved)) != 0 {
		t.Fatal("player-removed sent too early")
	}
}

func TestJoinOtherRoomLeavesPrevious(t *testing.T) {
	h := newHarness(t, nil, Options{})
	first := h.room(t)
	second := h.room(t)
	h.connect("c1", "s1")
	must(t, h.o.JoinRoom(h.ctx, "c1", string(first)))
	must(t, h.o.JoinRoom(h.ctx, "c1", string(second)))

	if ok, _ := h.st.Exists(h.ctx, first); ok {
		t.Fatal("abandoned room was not cleaned up")
	}
	if !h.stored(t, second).Has("s1") {
		t.Fatal("not joined to the second room")
	}
}

func TestChatMessage(t *testing.T) {
	h := newHarness(t, nil, Options{ChatHistory: 3})
	_, _, b := seatTwo(t, h)
	_, err := h.o.Registry.Rename(h.ctx, "sa", "Alice")
	must(t, err)

	must(t, h.o.ChatMessage(h.ctx, "a", "  hi  "))
	got := lastData[domain.ChatMessage](t, b, EventChatMessage)
	if got.Name != "Alice" || got.Msg != "hi" {
		t.Fatalf("chat-message = %+v", got)
	}
	if err := h.o.ChatMessage(h.ctx, "a", "   "); !errors.Is(err, domain.ErrChatEmpty) {
		t.Fatalf("empty chat: %v", err)
	}
}

func TestChatRateLimited(t *testing.T) {
	h := newHarness(t, nil, Options{})
	seatTwo(t, h)
	h.o.Limiter = app.NewRateLimiter(2, time.Minute)
	must(t, h.o.ChatMessage(h.ctx, "a", "1"))
	must(t, h.o.ChatMessage(h.ctx, "a", "2"))
	if err := h.o.ChatMessage(h.ctx, "a", "3"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
}

func TestRenameBroadcastsToRoom(t *testing.T) {
	h := newHarness(t, nil, Options{})
	_, _, b := seatTwo(t, h)
	idle := h.connect("idle", "sa")

	must(t, h.o.Rename(h.ctx, "a", "Alice"))
	if got := lastData[NameUpdated](t, b, EventNameUpdated); got.Name != "Alice" || got.Color != game.Red {
		t.Fatalf("name-updated = %+v", got)
	}
	if got := lastData[PlayerChanged](t, b, EventPlayerChanged); got.Name != "Alice" {
		t.Fatalf("player-changed = %+v", got)
	}
	if got := lastData[NameUpdated](t, idle, EventNameUpdated); got.Name != "Alice" {
		t.Fatalf("roomless tab = %+v", got)
	}
	if err := h.o.Rename(h.ctx, "a", " "); !errors.Is(err, domain.ErrUsernameEmpty) {
		t.Fatalf("blank rename: %v", err)
	}
}

func TestWorkerRetiresAndReloads(t *testing.T) {
	h := newHarness(t, nil, Options{RoomIdle: 10 * time.Millisecond})
	id := h.room(t)
	h.connect("c1", "s1")
	must(t, h.o.JoinRoom(h.ctx, "c1", string(id)))

	deadline := time.Now().Add(2 * time.Second)
	for h.o.workerCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("worker never retired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	must(t, h.o.PickColor(h.ctx, "c1", game.Blue))
	if h.stored(t, id).ColorOf("s1") != game.Blue {
		t.Fatal("reloaded worker lost the pick")
	}
}

func TestRoomExpiredUnderWorker(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id := h.room(t)
	c := h.connect("c1", "s1")
	must(t, h.o.JoinRoom(h.ctx, "c1", string(id)))
	must(t, h.st.Delete(h.ctx, id))

	err := h.o.PickColor(h.ctx, "c1", game.Red)
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("want ErrRoomNotFound, got %v", err)
	}
	if ok, _ := h.st.Exists(h.ctx, id); ok {
		t.Fatal("room was resurrected")
	}
	h.o.Report("c1", err)
	if len(c.events(EventRedirect)) != 1 {
		t.Fatal("no redirect after expiry")
	}
}

type flakyStore struct {
	core.Store
	fail atomic.Bool
}

var errDown = errors.New("connection refused")

func (s *flakyStore) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	if s.fail.Load() {
		return nil, errDown
	}
	return s.Store.Get(ctx, id)
}

func (s *flakyStore) Refresh(ctx context.Context, r *domain.Room, ttl time.Duration) (bool, error) {
	if s.fail.Load() {
		return false, errDown
	}
	return s.Store.Refresh(ctx, r, ttl)
}

func TestStoreFailureIsReported(t *testing.T) {
	fs := &flakyStore{Store: store.NewMemory()}
	h := newHarness(t, fs, Options{})
	id := h.room(t)
	c := h.connect("c1", "s1")
	must(t, h.o.JoinRoom(h.ctx, "c1", string(id)))

	fs.fail.Store(true)
	err := h.o.PickColor(h.ctx, "c1", game.Red)
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, errDown) {
		t.Fatalf("want wrapped store error, got %v", err)
	}
	h.o.Report("c1", err)
	if got := lastData[ErrorEvent](t, c, EventError); got.Code != "store_unavailable" {
		t.Fatalf("error event = %+v", got)
	}

	fs.fail.Store(false)
	must(t, h.o.PickColor(h.ctx, "c1", game.Red))
}

func TestBackpressureKicks(t *testing.T) {
	h := newHarness(t, nil, Options{})
	_, a, b := seatTwo(t, h)
	b.mu.Lock()
	b.full = true
	b.mu.Unlock()

	must(t, h.o.SubmitMove(h.ctx, "a", MoveRequest{Kind: MovePawn, Col: 4, Row: 7}))
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if !closed {
		t.Fatal("slow connection was not kicked")
	}
	if len(a.events(EventStateUpdate)) != 1 {
		t.Fatal("healthy connection missed the update")
	}
}

func TestClosedOrchestratorRejects(t *testing.T) {
	h := newHarness(t, nil, Options{})
	id := h.room(t)
	c := h.connect("c1", "s1")
	h.o.Close()
	if err := h.o.JoinRoom(h.ctx, "c1", string(id)); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		t.Fatal("Close left a connection open")
	}
}
