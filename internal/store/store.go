package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a user or room does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUserExists is returned when creating a user with a taken username.
	ErrUserExists = errors.New("user already exists")
	// ErrRoomExists is returned when creating a room with a taken id.
	ErrRoomExists = errors.New("room already exists")
)

// UserStatus is the persisted presence flag.
type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusOffline UserStatus = "offline"
)

// User represents a registered account.
type User struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	Email        string     `json:"email,omitempty"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Invite is a pending offer of room membership.
type Invite struct {
	RoomID    string    `json:"room_id"`
	Username  string    `json:"username"`
	From      string    `json:"from"`
	CreatedAt time.Time `json:"created_at"`
}

// Room represents a chat room with its membership.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Creator   string    `json:"creator"`
	Members   []string  `json:"members"`
	Invites   []Invite  `json:"invites"`
	CreatedAt time.Time `json:"created_at"`
}

// Message represents a persisted chat message.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"room_id"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user. Returns ErrUserExists on a duplicate username.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UpdateUserStatus persists the presence flag.
	UpdateUserStatus(ctx context.Context, username string, status UserStatus) error

	// MarkAllOffline resets every user to offline. Called once at startup.
	MarkAllOffline(ctx context.Context) error

	// ListUsers returns all users ordered by username.
	ListUsers(ctx context.Context) ([]*User, error)
}

// RoomStore handles room persistence. Membership and invite mutations are atomic
// and keep members and invites disjoint.
type RoomStore interface {
	// CreateRoom persists a new room with its initial members and invites.
	CreateRoom(ctx context.Context, room *Room) error

	// GetRoom retrieves a room with members and invites.
	GetRoom(ctx context.Context, id string) (*Room, error)

	// RenameRoom changes the display name.
	RenameRoom(ctx context.Context, id, name string) error

	// DeleteRoom removes the room, its invites and its message history.
	DeleteRoom(ctx context.Context, id string) error

	// AddMember adds a user to a room, dropping any pending invite for that user.
	AddMember(ctx context.Context, roomID, username string) error

	// RemoveMember removes a user from a room.
	RemoveMember(ctx context.Context, roomID, username string) error

	// AddInvite records a pending invite. Members and already invited users are ignored.
	AddInvite(ctx context.Context, invite Invite) error

	// RemoveInvite drops a pending invite if present.
	RemoveInvite(ctx context.Context, roomID, username string) error

	// ListRoomsForUser lists rooms where the user is a member or pending invitee.
	ListRoomsForUser(ctx context.Context, username string) ([]*Room, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage appends a message and sets its ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit most recent messages of a room, oldest first.
	ListMessages(ctx context.Context, roomID string, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore

	// Close closes the underlying database.
	Close() error
}

const (
	// HomeRoomID identifies the permanent room every user belongs to.
	HomeRoomID = "home"
	// HomeRoomName is the reserved display name of the Home room.
	HomeRoomName = "Home"
)

// EnsureHomeRoom creates the Home room if it does not exist yet.
func EnsureHomeRoom(ctx context.Context, rooms RoomStore) error {
	_, err := rooms.GetRoom(ctx, HomeRoomID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	err = rooms.CreateRoom(ctx, &Room{ID: HomeRoomID, Name: HomeRoomName, CreatedAt: time.Now().UTC()})
	if errors.Is(err, ErrRoomExists) {
		return nil
	}
	return err
}
