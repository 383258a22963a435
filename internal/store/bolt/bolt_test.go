package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/storetest"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := New(filepath.Join(t.TempDir(), "chat.bolt"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestBoltStoreContract(t *testing.T) {
	storetest.Run(t, newTestStore)
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.bolt")
	ctx := context.Background()

	st, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.CreateRoom(ctx, &store.Room{ID: "r1", Name: "Team", Creator: "alice", Members: []string{"alice"}}); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := st.SaveMessage(ctx, &store.Message{RoomID: "r1", Username: "alice", Body: "hello"}); err != nil {
		t.Fatalf("save message: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	room, err := st.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("get room after reopen: %v", err)
	}
	if room.Name != "Team" || !room.HasMember("alice") {
		t.Fatalf("unexpected room after reopen: %+v", room)
	}
	msgs, err := st.ListMessages(ctx, "r1", 10)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "hello" {
		t.Fatalf("unexpected history after reopen: %+v", msgs)
	}
}

func TestCanceledContextSkipsTransaction(t *testing.T) {
	st := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := st.CreateUser(ctx, &store.User{Username: "alice", PasswordHash: "hash"}); err == nil {
		t.Fatal("expected canceled context to abort the write")
	}
	if _, err := st.GetUserByUsername(context.Background(), "alice"); err == nil {
		t.Fatal("user must not be written")
	}
}
