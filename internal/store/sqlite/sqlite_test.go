package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/storetest"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteStoreContract(t *testing.T) {
	storetest.Run(t, newTestStore)
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")

	st, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if err := st.CreateUser(ctx, &store.User{Username: "alice", PasswordHash: "hash"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening runs the schema again and must keep existing rows.
	st, err = NewWithSetup(path, func(db *sql.DB) error {
		if err := Migrate(db); err != nil {
			return err
		}
		return Migrate(db)
	})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	if _, err := st.GetUserByUsername(ctx, "alice"); err != nil {
		t.Fatalf("expected alice to survive reopen: %v", err)
	}
}
