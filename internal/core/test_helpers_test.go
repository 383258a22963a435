package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

func mustEvent(t testing.TB, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()
	return mustEventMatch(t, ch, kind, nil)
}

// mustEventMatch waits for an event of kind accepted by match, discarding others.
func mustEventMatch(t testing.TB, ch <-chan *Event, kind EventKind, match func(*Event) bool) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind && (match == nil || match(ev)) {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// barrier creates a marker room from c and returns every event c received
// before the confirmation. Commands are handled one at a time, so anything
// caused by earlier commands has been delivered by then.
func barrier(t testing.TB, c *Client, marker string) []*Event {
	t.Helper()

	c.Commands <- &Command{Kind: CommandCreateRoom, Name: marker}
	var seen []*Event
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-c.Events:
			if ev.Kind == EventRoomCreated && ev.RoomName == marker {
				return seen
			}
			seen = append(seen, ev)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("barrier %q not reached", marker)
	return nil
}

func hasKind(events []*Event, kind EventKind) bool {
	for _, ev := range events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

func eventually(t testing.TB, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

type fakeClock struct{ ns atomic.Int64 }

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.ns.Store(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *fakeClock) Now() time.Time { return time.Unix(0, c.ns.Load()) }

func (c *fakeClock) Advance(d time.Duration) { c.ns.Add(int64(d)) }

// newTestHub starts a hub over an in-memory store seeded with users.
func newTestHub(t testing.TB, opts Options, users ...string) (*Hub, store.Store) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	for _, u := range users {
		if err := st.CreateUser(context.Background(), &store.User{Username: u, PasswordHash: "x"}); err != nil {
			t.Fatalf("create user %s: %v", u, err)
		}
	}

	hub := NewHub(st, opts, nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
		_ = st.Close()
	})
	return hub, st
}

// connect registers a connection and binds it to username.
func connect(t testing.TB, hub *Hub, id, username string) *Client {
	t.Helper()

	c := NewClient(id)
	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandBind, Username: username}
	mustEvent(t, c.Events, EventRoomsUpdate)
	return c
}

func roomNamed(rooms []RoomView, name string) (RoomView, bool) {
	for _, r := range rooms {
		if r.Name == name {
			return r, true
		}
	}
	return RoomView{}, false
}
