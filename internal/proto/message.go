package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	InboundTypeRegister      = "register"
	InboundTypeLogin         = "login"
	InboundTypeJoinRoom      = "join_room"
	InboundTypeChatMessage   = "chat_message"
	InboundTypeCreateRoom    = "create_room"
	InboundTypeInvite        = "invite"
	InboundTypeAcceptInvite  = "accept_invite"
	InboundTypeDeclineInvite = "decline_invite"
	InboundTypeLeaveRoom     = "leave_room"
	InboundTypeRenameRoom    = "rename_room"
	InboundTypeGetRooms      = "get_rooms"
	InboundTypeGetUsers      = "get_users"
	InboundTypePing          = "ping"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Outbound event names.
const (
	EventRegisterSuccess = "register_success"
	EventLoginSuccess    = "login_success"
	EventChatHistory     = "chat_history"
	EventMessage         = "message"
	EventChatMessage     = "chat_message"
	EventRoomCreated     = "room_created"
	EventRoomInvite      = "room_invite"
	EventRoomJoined      = "room_joined"
	EventRoomLeft        = "room_left"
	EventRoomsUpdate     = "rooms_update"
	EventRoomRenamed     = "room_renamed"
	EventUserStatus      = "user_status"
)

// Error codes produced outside the core.
const (
	ErrCodeRegister       = "register_error"
	ErrCodeLogin          = "login_error"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeInvalidMessage = "invalid_message"
)

// RegisterData creates an account.
type RegisterData struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// LoginData authenticates the connection.
type LoginData struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RoomData addresses a single room.
type RoomData struct {
	RoomID string `json:"room_id"`
}

// ChatData is a chat message from the client. An empty RoomID means the
// connection's current room.
type ChatData struct {
	RoomID string `json:"room_id,omitempty"`
	Text   string `json:"text"`
}

// CreateRoomData creates a private room.
type CreateRoomData struct {
	RoomName string   `json:"room_name"`
	Invites  []string `json:"invites,omitempty"`
}

// InviteData invites a user to a room.
type InviteData struct {
	RoomID  string `json:"room_id"`
	Invitee string `json:"invitee"`
}

// RenameRoomData renames a room.
type RenameRoomData struct {
	RoomID string `json:"room_id"`
	Name   string `json:"name"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// AuthPayload is sent after a successful login or registration.
// HeartbeatInterval is the ping period in seconds.
type AuthPayload struct {
	Username          string `json:"username"`
	Token             string `json:"token"`
	HeartbeatInterval int    `json:"heartbeat_interval,omitempty"`
}

// MessagePayload is a chat message or an admin notice.
type MessagePayload struct {
	ID     int64  `json:"id,omitempty"`
	RoomID string `json:"room_id"`
	User   string `json:"user"`
	Text   string `json:"text"`
	TS     int64  `json:"ts,omitempty"`
}

// HistoryPayload delivers the recent messages of a room.
type HistoryPayload struct {
	RoomID   string           `json:"room_id"`
	Messages []MessagePayload `json:"messages"`
}

// RoomCreatedPayload confirms a room creation.
type RoomCreatedPayload struct {
	RoomID string `json:"room_id"`
	Name   string `json:"name"`
}

// RoomInvitePayload tells a user they were invited.
type RoomInvitePayload struct {
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
	From     string `json:"from"`
}

// RoomMemberPayload reports a membership change.
type RoomMemberPayload struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
}

// RoomRenamedPayload carries a room's new name.
type RoomRenamedPayload struct {
	RoomID string `json:"room_id"`
	Name   string `json:"name"`
}

// RoomInfo is one entry of rooms_update.
type RoomInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Creator   string `json:"creator"`
	Pending   bool   `json:"pending"`
	InvitedBy string `json:"invited_by,omitempty"`
}

// UserStatus is one entry of user_status.
type UserStatus struct {
	Username string `json:"username"`
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
