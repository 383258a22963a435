package core

import (
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// AdminUser is the sender name of system notices.
const AdminUser = "admin"

// Message is the domain model for a chat message.
type Message struct {
	ID        int64
	RoomID    string
	From      string
	Text      string
	CreatedAt time.Time
}

func messageFromStore(m *store.Message) Message {
	return Message{
		ID:        m.ID,
		RoomID:    m.RoomID,
		From:      m.Username,
		Text:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}

// RoomView is a room as listed to one user.
// InvitedBy is set for pending rooms only.
type RoomView struct {
	ID        string
	Name      string
	Creator   string
	Pending   bool
	InvitedBy string
}

// UserPresence is one roster entry.
type UserPresence struct {
	Username string
	Status   string
	LastSeen time.Time
}
