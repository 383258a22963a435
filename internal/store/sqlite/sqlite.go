package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	email         TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'offline',
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	creator    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS room_members (
	room_id   TEXT NOT NULL,
	username  TEXT NOT NULL,
	joined_at DATETIME NOT NULL,
	PRIMARY KEY (room_id, username),
	FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS room_invites (
	room_id       TEXT NOT NULL,
	username      TEXT NOT NULL,
	from_username TEXT NOT NULL,
	created_at    DATETIME NOT NULL,
	PRIMARY KEY (room_id, username),
	FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    TEXT NOT NULL,
	username   TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, id);
CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members(username);
CREATE INDEX IF NOT EXISTS idx_room_invites_user ON room_invites(username);
`

// New opens the SQLite database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; this also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate creates tables and indexes. It is idempotent.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ==== UserStore implementation ====

// CreateUser inserts a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *store.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Status == "" {
		user.Status = store.StatusOffline
	}

	query := `
		INSERT INTO users (username, password_hash, email, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, user.Username, user.PasswordHash, user.Email, string(user.Status), user.CreatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			return store.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT username, password_hash, email, status, created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	var status string
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.Username,
		&user.PasswordHash,
		&user.Email,
		&status,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	user.Status = store.UserStatus(status)

	return &user, nil
}

// UpdateUserStatus persists the presence flag.
func (s *SQLiteStore) UpdateUserStatus(ctx context.Context, username string, status store.UserStatus) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET status = ? WHERE username = ?`, string(status), username)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %q: %w", username, store.ErrNotFound)
	}
	return nil
}

// MarkAllOffline resets every user to offline.
func (s *SQLiteStore) MarkAllOffline(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET status = ?`, string(store.StatusOffline)); err != nil {
		return fmt.Errorf("reset statuses: %w", err)
	}
	return nil
}

// ListUsers returns all users ordered by username.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	query := `
		SELECT username, password_hash, email, status, created_at
		FROM users
		ORDER BY username ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var user store.User
		var status string
		if err := rows.Scan(&user.Username, &user.PasswordHash, &user.Email, &status, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		user.Status = store.UserStatus(status)
		users = append(users, &user)
	}

	return users, rows.Err()
}

// ==== RoomStore implementation ====

// CreateRoom persists a room with its initial members and invites.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *store.Room) error {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO rooms (id, name, creator, created_at) VALUES (?, ?, ?, ?)`,
			room.ID, room.Name, room.Creator, room.CreatedAt,
		)
		if err != nil {
			if isConstraintViolation(err) {
				return store.ErrRoomExists
			}
			return fmt.Errorf("insert room: %w", err)
		}

		for _, member := range room.Members {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO room_members (room_id, username, joined_at) VALUES (?, ?, ?)`,
				room.ID, member, room.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert room member: %w", err)
			}
		}

		for _, inv := range room.Invites {
			if room.HasMember(inv.Username) {
				continue
			}
			if inv.CreatedAt.IsZero() {
				inv.CreatedAt = room.CreatedAt
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO room_invites (room_id, username, from_username, created_at) VALUES (?, ?, ?, ?)`,
				room.ID, inv.Username, inv.From, inv.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert room invite: %w", err)
			}
		}
		return nil
	})
}

// GetRoom retrieves a room with members and invites.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	var room store.Room
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, creator, created_at FROM rooms WHERE id = ?`, id,
	).Scan(&room.ID, &room.Name, &room.Creator, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %q: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	members, err := s.listMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	room.Members = members

	invites, err := s.listInvites(ctx, id)
	if err != nil {
		return nil, err
	}
	room.Invites = invites

	return &room, nil
}

func (s *SQLiteStore) listMembers(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username FROM room_members WHERE room_id = ? ORDER BY joined_at ASC, rowid ASC`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, username)
	}
	return members, rows.Err()
}

func (s *SQLiteStore) listInvites(ctx context.Context, roomID string) ([]store.Invite, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, username, from_username, created_at FROM room_invites WHERE room_id = ? ORDER BY created_at ASC, rowid ASC`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("query invites: %w", err)
	}
	defer rows.Close()

	invites := []store.Invite{}
	for rows.Next() {
		var inv store.Invite
		if err := rows.Scan(&inv.RoomID, &inv.Username, &inv.From, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

// RenameRoom changes the display name.
func (s *SQLiteStore) RenameRoom(ctx context.Context, id, name string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE rooms SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename room: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("room %q: %w", id, store.ErrNotFound)
	}
	return nil
}

// DeleteRoom removes the room, its members, invites and messages.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM messages WHERE room_id = ?`,
			`DELETE FROM room_invites WHERE room_id = ?`,
			`DELETE FROM room_members WHERE room_id = ?`,
			`DELETE FROM rooms WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("delete room: %w", err)
			}
		}
		return nil
	})
}

func roomExists(ctx context.Context, tx *sql.Tx, roomID string) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ?`, roomID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("room %q: %w", roomID, store.ErrNotFound)
		}
		return fmt.Errorf("query room: %w", err)
	}
	return nil
}

// AddMember adds a user to a room and drops its pending invite in one transaction.
func (s *SQLiteStore) AddMember(ctx context.Context, roomID, username string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := roomExists(ctx, tx, roomID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM room_invites WHERE room_id = ? AND username = ?`, roomID, username,
		); err != nil {
			return fmt.Errorf("delete invite: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO room_members (room_id, username, joined_at) VALUES (?, ?, ?)`,
			roomID, username, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("insert room member: %w", err)
		}
		return nil
	})
}

// RemoveMember removes a user from a room.
func (s *SQLiteStore) RemoveMember(ctx context.Context, roomID, username string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM room_members WHERE room_id = ? AND username = ?`, roomID, username,
	)
	if err != nil {
		return fmt.Errorf("delete room member: %w", err)
	}
	return nil
}

// AddInvite records a pending invite unless the user is already a member.
func (s *SQLiteStore) AddInvite(ctx context.Context, invite store.Invite) error {
	if invite.CreatedAt.IsZero() {
		invite.CreatedAt = time.Now().UTC()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := roomExists(ctx, tx, invite.RoomID); err != nil {
			return err
		}

		var member int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM room_members WHERE room_id = ? AND username = ?`, invite.RoomID, invite.Username,
		).Scan(&member)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("query membership: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO room_invites (room_id, username, from_username, created_at) VALUES (?, ?, ?, ?)`,
			invite.RoomID, invite.Username, invite.From, invite.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert invite: %w", err)
		}
		return nil
	})
}

// RemoveInvite drops a pending invite if present.
func (s *SQLiteStore) RemoveInvite(ctx context.Context, roomID, username string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM room_invites WHERE room_id = ? AND username = ?`, roomID, username,
	)
	if err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	return nil
}

// ListRoomsForUser lists rooms where the user is a member or pending invitee.
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, username string) ([]*store.Room, error) {
	query := `
		SELECT id FROM rooms
		WHERE id IN (SELECT room_id FROM room_members WHERE username = ?)
		   OR id IN (SELECT room_id FROM room_invites WHERE username = ?)
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, username, username)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan room id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	// Release the single connection before loading each room.
	rows.Close()

	rooms := make([]*store.Room, 0, len(ids))
	for _, id := range ids {
		room, err := s.GetRoom(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message to storage.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (room_id, username, body, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.RoomID, msg.Username, msg.Body, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// ListMessages returns up to limit most recent messages, oldest first.
// A non-positive limit returns the whole history.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `
		SELECT id, room_id, username, body, created_at
		FROM messages
		WHERE room_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Username, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, rows.Err()
}
