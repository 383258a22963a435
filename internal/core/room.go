package core

// Group is the set of connections subscribed to a room's broadcasts.
type Group struct {
	RoomID   string
	sessions map[*Session]struct{}
}

// NewGroup constructs a group with no subscribers.
func NewGroup(roomID string) *Group {
	return &Group{
		RoomID:   roomID,
		sessions: make(map[*Session]struct{}),
	}
}

// Add inserts a session. Returns true if newly added.
func (g *Group) Add(s *Session) bool {
	if _, exists := g.sessions[s]; exists {
		return false
	}
	g.sessions[s] = struct{}{}
	return true
}

// Remove deletes a session. Returns true if removed.
func (g *Group) Remove(s *Session) bool {
	if _, exists := g.sessions[s]; !exists {
		return false
	}
	delete(g.sessions, s)
	return true
}

// Broadcast sends an event to every subscriber.
func (g *Group) Broadcast(event *Event) {
	g.BroadcastExcept(event, nil)
}

// BroadcastExcept sends an event to every subscriber but skip.
func (g *Group) BroadcastExcept(event *Event, skip *Session) {
	for s := range g.sessions {
		if s == skip {
			continue
		}
		deliver(s.Client, event)
	}
}

// Len returns the number of subscribers.
func (g *Group) Len() int {
	return len(g.sessions)
}

// Empty returns true if nobody is subscribed.
func (g *Group) Empty() bool {
	return len(g.sessions) == 0
}
