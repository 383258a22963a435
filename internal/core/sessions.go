package core

import "sort"

// Session is the per-connection record owned by the hub.
type Session struct {
	Client        *Client
	Username      string
	CurrentRoom   string
	Subscriptions map[string]struct{}
}

// Bound reports whether a user is attached to the connection.
func (s *Session) Bound() bool {
	return s.Username != ""
}

// Subscribed reports whether the connection receives broadcasts of roomID.
func (s *Session) Subscribed(roomID string) bool {
	_, ok := s.Subscriptions[roomID]
	return ok
}

// sessionTable indexes sessions by connection id and by username.
type sessionTable struct {
	byConn map[string]*Session
	byUser map[string]map[string]*Session
}

func newSessionTable() *sessionTable {
	return &sessionTable{
		byConn: make(map[string]*Session),
		byUser: make(map[string]map[string]*Session),
	}
}

func (t *sessionTable) add(c *Client) *Session {
	if s, ok := t.byConn[c.ID]; ok {
		return s
	}
	s := &Session{Client: c, Subscriptions: make(map[string]struct{})}
	t.byConn[c.ID] = s
	return s
}

func (t *sessionTable) get(connID string) (*Session, bool) {
	s, ok := t.byConn[connID]
	return s, ok
}

// bind attaches username. Returns true if this is the user's first connection.
func (t *sessionTable) bind(s *Session, username string) bool {
	s.Username = username
	conns, ok := t.byUser[username]
	if !ok {
		conns = make(map[string]*Session)
		t.byUser[username] = conns
	}
	first := len(conns) == 0
	conns[s.Client.ID] = s
	return first
}

// remove drops the connection. last is true when it was the user's final one.
func (t *sessionTable) remove(connID string) (s *Session, last bool) {
	s, ok := t.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(t.byConn, connID)
	if !s.Bound() {
		return s, false
	}
	conns := t.byUser[s.Username]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(t.byUser, s.Username)
		return s, true
	}
	return s, false
}

// connsOf returns the sessions bound to username.
func (t *sessionTable) connsOf(username string) []*Session {
	conns := t.byUser[username]
	out := make([]*Session, 0, len(conns))
	for _, s := range conns {
		out = append(out, s)
	}
	return out
}

// bound returns every session with a user attached.
func (t *sessionTable) bound() []*Session {
	out := make([]*Session, 0, len(t.byConn))
	for _, s := range t.byConn {
		if s.Bound() {
			out = append(out, s)
		}
	}
	return out
}

// users returns the usernames with at least one connection, sorted.
func (t *sessionTable) users() []string {
	out := make([]string, 0, len(t.byUser))
	for u := range t.byUser {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (t *sessionTable) len() int {
	return len(t.byConn)
}
