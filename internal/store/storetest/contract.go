// Package storetest holds behaviour checks shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// Factory builds a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises the store contract against a backend.
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("room membership", func(t *testing.T) { testRoomMembership(t, newStore(t)) })
	t.Run("room delete cascades", func(t *testing.T) { testRoomDelete(t, newStore(t)) })
	t.Run("list rooms for user", func(t *testing.T) { testListRooms(t, newStore(t)) })
	t.Run("messages", func(t *testing.T) { testMessages(t, newStore(t)) })
}

func mustCreateUser(t *testing.T, st store.Store, username string) {
	t.Helper()
	if err := st.CreateUser(context.Background(), &store.User{Username: username, PasswordHash: "hash"}); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
}

func assertDisjoint(t *testing.T, room *store.Room) {
	t.Helper()
	for _, m := range room.Members {
		if room.IsInvited(m) {
			t.Fatalf("%s is both member and invitee of %s", m, room.ID)
		}
	}
}

func testUsers(t *testing.T, st store.Store) {
	ctx := context.Background()

	mustCreateUser(t, st, "bob")
	mustCreateUser(t, st, "alice")

	err := st.CreateUser(ctx, &store.User{Username: "alice", PasswordHash: "other"})
	if !errors.Is(err, store.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	alice, err := st.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}
	if alice.PasswordHash != "hash" || alice.Status != store.StatusOffline {
		t.Fatalf("duplicate create must not touch the first record: %+v", alice)
	}

	if _, err := st.GetUserByUsername(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := st.UpdateUserStatus(ctx, "alice", store.StatusOnline); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := st.UpdateUserStatus(ctx, "nobody", store.StatusOnline); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}

	users, err := st.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" || users[0].Status != store.StatusOnline {
		t.Fatalf("unexpected users: %+v", users)
	}

	if err := st.MarkAllOffline(ctx); err != nil {
		t.Fatalf("mark offline: %v", err)
	}
	alice, _ = st.GetUserByUsername(ctx, "alice")
	if alice.Status != store.StatusOffline {
		t.Fatalf("expected offline after reset, got %s", alice.Status)
	}
}

func testRoomMembership(t *testing.T, st store.Store) {
	ctx := context.Background()

	room := &store.Room{
		ID:      "r1",
		Name:    "Team",
		Creator: "alice",
		Members: []string{"alice"},
		Invites: []store.Invite{
			{RoomID: "r1", Username: "bob", From: "alice"},
			{RoomID: "r1", Username: "alice", From: "alice"},
		},
	}
	if err := st.CreateRoom(ctx, room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := st.CreateRoom(ctx, &store.Room{ID: "r1", Name: "dup"}); !errors.Is(err, store.ErrRoomExists) {
		t.Fatalf("expected ErrRoomExists, got %v", err)
	}

	got, err := st.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	assertDisjoint(t, got)
	if !got.IsInvited("bob") || len(got.Invites) != 1 {
		t.Fatalf("expected only bob invited, got %+v", got.Invites)
	}

	// Duplicate invite and invite of a member are no-ops.
	if err := st.AddInvite(ctx, store.Invite{RoomID: "r1", Username: "bob", From: "alice"}); err != nil {
		t.Fatalf("duplicate invite: %v", err)
	}
	if err := st.AddInvite(ctx, store.Invite{RoomID: "r1", Username: "alice", From: "bob"}); err != nil {
		t.Fatalf("member invite: %v", err)
	}
	got, _ = st.GetRoom(ctx, "r1")
	if len(got.Invites) != 1 {
		t.Fatalf("expected one invite, got %+v", got.Invites)
	}

	// Accept: member added, invite removed.
	if err := st.AddMember(ctx, "r1", "bob"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := st.AddMember(ctx, "r1", "bob"); err != nil {
		t.Fatalf("second add member: %v", err)
	}
	got, _ = st.GetRoom(ctx, "r1")
	assertDisjoint(t, got)
	if len(got.Members) != 2 || got.Members[0] != "alice" || got.Members[1] != "bob" {
		t.Fatalf("unexpected members: %v", got.Members)
	}
	if len(got.Invites) != 0 {
		t.Fatalf("expected no invites, got %+v", got.Invites)
	}

	if err := st.AddInvite(ctx, store.Invite{RoomID: "r1", Username: "carol", From: "bob"}); err != nil {
		t.Fatalf("invite carol: %v", err)
	}
	if err := st.RemoveInvite(ctx, "r1", "carol"); err != nil {
		t.Fatalf("remove invite: %v", err)
	}
	if err := st.RemoveMember(ctx, "r1", "alice"); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if err := st.RenameRoom(ctx, "r1", "Crew"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	got, _ = st.GetRoom(ctx, "r1")
	if got.Name != "Crew" || len(got.Members) != 1 || got.Members[0] != "bob" || len(got.Invites) != 0 {
		t.Fatalf("unexpected room after mutations: %+v", got)
	}

	if err := st.AddMember(ctx, "ghost", "bob"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing room, got %v", err)
	}
	if err := st.AddInvite(ctx, store.Invite{RoomID: "ghost", Username: "bob"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing room invite, got %v", err)
	}
	if err := st.RenameRoom(ctx, "ghost", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for rename, got %v", err)
	}
}

func testRoomDelete(t *testing.T, st store.Store) {
	ctx := context.Background()

	if err := st.CreateRoom(ctx, &store.Room{
		ID: "r1", Name: "Team", Creator: "alice",
		Members: []string{"alice"},
		Invites: []store.Invite{{RoomID: "r1", Username: "bob", From: "alice"}},
	}); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := st.CreateRoom(ctx, &store.Room{ID: "r2", Name: "Other", Creator: "alice", Members: []string{"alice"}}); err != nil {
		t.Fatalf("create room: %v", err)
	}

	for i := range 3 {
		if err := st.SaveMessage(ctx, &store.Message{RoomID: "r1", Username: "alice", Body: fmt.Sprintf("m%d", i)}); err != nil {
			t.Fatalf("save message: %v", err)
		}
	}
	if err := st.SaveMessage(ctx, &store.Message{RoomID: "r2", Username: "alice", Body: "keep"}); err != nil {
		t.Fatalf("save message: %v", err)
	}

	if err := st.DeleteRoom(ctx, "r1"); err != nil {
		t.Fatalf("delete room: %v", err)
	}

	if _, err := st.GetRoom(ctx, "r1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted room to be gone, got %v", err)
	}
	msgs, err := st.ListMessages(ctx, "r1", 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected history to be deleted, got %d messages", len(msgs))
	}
	rooms, err := st.ListRoomsForUser(ctx, "bob")
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 0 {
		t.Fatalf("expected invites to be deleted, got %+v", rooms)
	}

	kept, _ := st.ListMessages(ctx, "r2", 0)
	if len(kept) != 1 {
		t.Fatalf("other room history must survive, got %d", len(kept))
	}
}

func testListRooms(t *testing.T, st store.Store) {
	ctx := context.Background()

	base := time.Now().UTC()
	rooms := []*store.Room{
		{ID: "a", Name: "A", Creator: "alice", Members: []string{"alice"}, CreatedAt: base},
		{ID: "b", Name: "B", Creator: "carol", Members: []string{"carol"},
			Invites: []store.Invite{{RoomID: "b", Username: "alice", From: "carol"}}, CreatedAt: base.Add(time.Second)},
		{ID: "c", Name: "C", Creator: "carol", Members: []string{"carol"}, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, r := range rooms {
		if err := st.CreateRoom(ctx, r); err != nil {
			t.Fatalf("create room %s: %v", r.ID, err)
		}
	}

	got, err := st.ListRoomsForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		ids := make([]string, 0, len(got))
		for _, r := range got {
			ids = append(ids, r.ID)
		}
		t.Fatalf("expected rooms [a b], got %v", ids)
	}
	if !got[1].IsInvited("alice") {
		t.Fatalf("expected pending invite on b: %+v", got[1])
	}
}

func testMessages(t *testing.T, st store.Store) {
	ctx := context.Background()

	if err := st.CreateRoom(ctx, &store.Room{ID: "r1", Name: "Team", Members: []string{"alice"}}); err != nil {
		t.Fatalf("create room: %v", err)
	}

	var lastID int64
	for i := range 5 {
		msg := &store.Message{RoomID: "r1", Username: "alice", Body: fmt.Sprintf("m%d", i)}
		if err := st.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save message: %v", err)
		}
		if msg.ID <= lastID {
			t.Fatalf("message ids must increase: %d after %d", msg.ID, lastID)
		}
		lastID = msg.ID
	}

	all, err := st.ListMessages(ctx, "r1", 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(all) != 5 || all[0].Body != "m0" || all[4].Body != "m4" {
		t.Fatalf("expected insertion order, got %+v", all)
	}

	tail, err := st.ListMessages(ctx, "r1", 2)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(tail) != 2 || tail[0].Body != "m3" || tail[1].Body != "m4" {
		t.Fatalf("expected last two messages oldest first, got %+v", tail)
	}
}
