package store

import "slices"

// HasMember reports whether username is a member.
func (r *Room) HasMember(username string) bool {
	return slices.Contains(r.Members, username)
}

// IsInvited reports whether username has a pending invite.
func (r *Room) IsInvited(username string) bool {
	return slices.ContainsFunc(r.Invites, func(inv Invite) bool { return inv.Username == username })
}

// InviteFor returns the pending invite for username, if any.
func (r *Room) InviteFor(username string) (Invite, bool) {
	for _, inv := range r.Invites {
		if inv.Username == username {
			return inv, true
		}
	}
	return Invite{}, false
}

// InvitedUsernames returns the usernames with pending invites.
func (r *Room) InvitedUsernames() []string {
	names := make([]string, 0, len(r.Invites))
	for _, inv := range r.Invites {
		names = append(names, inv.Username)
	}
	return names
}

// AddMember inserts username into members and drops its invite. Returns false if
// already a member.
func (r *Room) AddMember(username string) bool {
	r.RemoveInvite(username)
	if r.HasMember(username) {
		return false
	}
	r.Members = append(r.Members, username)
	return true
}

// RemoveMember deletes username from members. Returns false if absent.
func (r *Room) RemoveMember(username string) bool {
	idx := slices.Index(r.Members, username)
	if idx < 0 {
		return false
	}
	r.Members = slices.Delete(r.Members, idx, idx+1)
	return true
}

// AddInvite appends a pending invite unless the user is already a member or invited.
func (r *Room) AddInvite(inv Invite) bool {
	if r.HasMember(inv.Username) || r.IsInvited(inv.Username) {
		return false
	}
	r.Invites = append(r.Invites, inv)
	return true
}

// RemoveInvite deletes a pending invite. Returns false if absent.
func (r *Room) RemoveInvite(username string) bool {
	before := len(r.Invites)
	r.Invites = slices.DeleteFunc(r.Invites, func(inv Invite) bool { return inv.Username == username })
	return len(r.Invites) != before
}
