package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandBind attaches an authenticated username to the connection.
	CommandBind CommandKind = iota
	// CommandJoinRoom makes a room the connection's current room.
	CommandJoinRoom
	// CommandSendRoomMessage delivers a chat message to room subscribers.
	CommandSendRoomMessage
	// CommandCreateRoom creates a private room with optional invitees.
	CommandCreateRoom
	// CommandInvite invites one user to a room.
	CommandInvite
	// CommandAcceptInvite turns a pending invite into membership.
	CommandAcceptInvite
	// CommandDeclineInvite drops a pending invite.
	CommandDeclineInvite
	// CommandLeaveRoom removes the user from a room.
	CommandLeaveRoom
	// CommandRenameRoom changes a room's display name.
	CommandRenameRoom
	// CommandListRooms asks for the visible rooms.
	CommandListRooms
	// CommandListUsers asks for the presence roster.
	CommandListUsers
	// CommandPing is a presence heartbeat.
	CommandPing
)

// BindVia tells the hub which success event to emit on bind.
type BindVia int

const (
	BindToken BindVia = iota
	BindLogin
	BindRegister
)

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	RoomID   string
	Name     string
	Text     string
	Invitees []string
	Invitee  string

	// Bind only.
	Username string
	Token    string
	Via      BindVia
}
