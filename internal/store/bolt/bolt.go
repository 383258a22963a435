// Package bolt is the file-backed store: JSON documents in a bbolt key/value file.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

var (
	bucketUsers    = []byte("users")
	bucketRooms    = []byte("rooms")
	bucketMessages = []byte("messages")
)

// BoltStore implements store.Store on a single bbolt file.
type BoltStore struct {
	db *bolt.DB
}

var _ store.Store = (*BoltStore)(nil)

// New opens (or creates) the bbolt file at path and ensures top-level buckets exist.
func New(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketRooms, bucketMessages} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// bbolt transactions are not interruptible; honour cancellation before starting one.
func (s *BoltStore) view(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

func (s *BoltStore) update(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

func seqKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

// ==== UserStore implementation ====

func getUser(tx *bolt.Tx, username string) (*store.User, error) {
	data := tx.Bucket(bucketUsers).Get([]byte(username))
	if data == nil {
		return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
	}
	var user store.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

func putUser(tx *bolt.Tx, user *store.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return tx.Bucket(bucketUsers).Put([]byte(user.Username), data)
}

// CreateUser inserts a new user.
func (s *BoltStore) CreateUser(ctx context.Context, user *store.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Status == "" {
		user.Status = store.StatusOffline
	}

	return s.update(ctx, func(tx *bolt.Tx) error {
		if tx.Bucket(bucketUsers).Get([]byte(user.Username)) != nil {
			return store.ErrUserExists
		}
		return putUser(tx, user)
	})
}

// GetUserByUsername retrieves a user by username.
func (s *BoltStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	var user *store.User
	err := s.view(ctx, func(tx *bolt.Tx) error {
		var err error
		user, err = getUser(tx, username)
		return err
	})
	return user, err
}

// UpdateUserStatus persists the presence flag.
func (s *BoltStore) UpdateUserStatus(ctx context.Context, username string, status store.UserStatus) error {
	return s.update(ctx, func(tx *bolt.Tx) error {
		user, err := getUser(tx, username)
		if err != nil {
			return err
		}
		user.Status = status
		return putUser(tx, user)
	})
}

// MarkAllOffline resets every user to offline.
func (s *BoltStore) MarkAllOffline(ctx context.Context) error {
	return s.update(ctx, func(tx *bolt.Tx) error {
		var users []*store.User
		err := tx.Bucket(bucketUsers).ForEach(func(_, v []byte) error {
			var user store.User
			if err := json.Unmarshal(v, &user); err != nil {
				return fmt.Errorf("decode user: %w", err)
			}
			if user.Status != store.StatusOffline {
				users = append(users, &user)
			}
			return nil
		})
		if err != nil {
			return err
		}
		// Puts are deferred until iteration ends; bbolt forbids mutation during ForEach.
		for _, user := range users {
			user.Status = store.StatusOffline
			if err := putUser(tx, user); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListUsers returns all users ordered by username.
func (s *BoltStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	var users []*store.User
	err := s.view(ctx, func(tx *bolt.Tx) error {
		// Keys iterate in byte order, which is username order.
		return tx.Bucket(bucketUsers).ForEach(func(_, v []byte) error {
			var user store.User
			if err := json.Unmarshal(v, &user); err != nil {
				return fmt.Errorf("decode user: %w", err)
			}
			users = append(users, &user)
			return nil
		})
	})
	return users, err
}

// ==== RoomStore implementation ====

func getRoom(tx *bolt.Tx, id string) (*store.Room, error) {
	data := tx.Bucket(bucketRooms).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("room %q: %w", id, store.ErrNotFound)
	}
	var room store.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	if room.Members == nil {
		room.Members = []string{}
	}
	if room.Invites == nil {
		room.Invites = []store.Invite{}
	}
	return &room, nil
}

func putRoom(tx *bolt.Tx, room *store.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room: %w", err)
	}
	return tx.Bucket(bucketRooms).Put([]byte(room.ID), data)
}

// mutateRoom loads, changes and writes back a room inside one update transaction.
func (s *BoltStore) mutateRoom(ctx context.Context, id string, fn func(room *store.Room) bool) error {
	return s.update(ctx, func(tx *bolt.Tx) error {
		room, err := getRoom(tx, id)
		if err != nil {
			return err
		}
		if !fn(room) {
			return nil
		}
		return putRoom(tx, room)
	})
}

// CreateRoom persists a room with its initial members and invites.
func (s *BoltStore) CreateRoom(ctx context.Context, room *store.Room) error {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}

	record := &store.Room{
		ID:        room.ID,
		Name:      room.Name,
		Creator:   room.Creator,
		CreatedAt: room.CreatedAt,
		Members:   []string{},
		Invites:   []store.Invite{},
	}
	for _, member := range room.Members {
		record.AddMember(member)
	}
	for _, inv := range room.Invites {
		if inv.CreatedAt.IsZero() {
			inv.CreatedAt = room.CreatedAt
		}
		record.AddInvite(inv)
	}

	return s.update(ctx, func(tx *bolt.Tx) error {
		if tx.Bucket(bucketRooms).Get([]byte(room.ID)) != nil {
			return store.ErrRoomExists
		}
		return putRoom(tx, record)
	})
}

// GetRoom retrieves a room with members and invites.
func (s *BoltStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	var room *store.Room
	err := s.view(ctx, func(tx *bolt.Tx) error {
		var err error
		room, err = getRoom(tx, id)
		return err
	})
	return room, err
}

// RenameRoom changes the display name.
func (s *BoltStore) RenameRoom(ctx context.Context, id, name string) error {
	return s.mutateRoom(ctx, id, func(room *store.Room) bool {
		room.Name = name
		return true
	})
}

// DeleteRoom removes the room document and its message bucket.
func (s *BoltStore) DeleteRoom(ctx context.Context, id string) error {
	return s.update(ctx, func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRooms).Delete([]byte(id)); err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		err := tx.Bucket(bucketMessages).DeleteBucket([]byte(id))
		if err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("delete history: %w", err)
		}
		return nil
	})
}

// AddMember adds a user to a room and drops its pending invite.
func (s *BoltStore) AddMember(ctx context.Context, roomID, username string) error {
	return s.mutateRoom(ctx, roomID, func(room *store.Room) bool {
		invited := room.IsInvited(username)
		return room.AddMember(username) || invited
	})
}

// RemoveMember removes a user from a room.
func (s *BoltStore) RemoveMember(ctx context.Context, roomID, username string) error {
	err := s.mutateRoom(ctx, roomID, func(room *store.Room) bool {
		return room.RemoveMember(username)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// AddInvite records a pending invite unless the user is already a member or invited.
func (s *BoltStore) AddInvite(ctx context.Context, invite store.Invite) error {
	if invite.CreatedAt.IsZero() {
		invite.CreatedAt = time.Now().UTC()
	}
	return s.mutateRoom(ctx, invite.RoomID, func(room *store.Room) bool {
		return room.AddInvite(invite)
	})
}

// RemoveInvite drops a pending invite if present.
func (s *BoltStore) RemoveInvite(ctx context.Context, roomID, username string) error {
	err := s.mutateRoom(ctx, roomID, func(room *store.Room) bool {
		return room.RemoveInvite(username)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// ListRoomsForUser scans all rooms for membership or a pending invite.
func (s *BoltStore) ListRoomsForUser(ctx context.Context, username string) ([]*store.Room, error) {
	var rooms []*store.Room
	err := s.view(ctx, func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRooms).ForEach(func(k, _ []byte) error {
			room, err := getRoom(tx, string(k))
			if err != nil {
				return err
			}
			if room.HasMember(username) || room.IsInvited(username) {
				rooms = append(rooms, room)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		if !rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms, nil
}

// ==== MessageStore implementation ====

// SaveMessage appends a message under the room's history bucket.
func (s *BoltStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	return s.update(ctx, func(tx *bolt.Tx) error {
		// The sequence lives on the parent bucket so ids stay unique across rooms.
		parent := tx.Bucket(bucketMessages)
		history, err := parent.CreateBucketIfNotExists([]byte(msg.RoomID))
		if err != nil {
			return fmt.Errorf("create history bucket: %w", err)
		}
		id, err := parent.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		msg.ID = int64(id)

		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		return history.Put(seqKey(id), data)
	})
}

// ListMessages returns up to limit most recent messages, oldest first.
func (s *BoltStore) ListMessages(ctx context.Context, roomID string, limit int) ([]*store.Message, error) {
	var messages []*store.Message
	err := s.view(ctx, func(tx *bolt.Tx) error {
		history := tx.Bucket(bucketMessages).Bucket([]byte(roomID))
		if history == nil {
			return nil
		}

		c := history.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(messages) >= limit {
				break
			}
			var msg store.Message
			if err := json.Unmarshal(v, &msg); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			messages = append(messages, &msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}
	return messages, nil
}
