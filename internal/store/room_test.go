package store

import "testing"

func disjoint(t *testing.T, r *Room) {
	t.Helper()
	for _, m := range r.Members {
		if r.IsInvited(m) {
			t.Fatalf("%s is both member and invitee: %+v", m, r)
		}
	}
}

func TestRoomMembershipKeepsInvitesDisjoint(t *testing.T) {
	r := &Room{ID: "r1", Name: "Team", Creator: "alice", Members: []string{"alice"}}

	if r.AddInvite(Invite{RoomID: "r1", Username: "alice", From: "alice"}) {
		t.Fatal("member must not be invited")
	}
	if !r.AddInvite(Invite{RoomID: "r1", Username: "bob", From: "alice"}) {
		t.Fatal("expected bob invite to be added")
	}
	if r.AddInvite(Invite{RoomID: "r1", Username: "bob", From: "alice"}) {
		t.Fatal("duplicate invite must be a no-op")
	}
	disjoint(t, r)

	if !r.AddMember("bob") {
		t.Fatal("expected bob to become member")
	}
	if r.IsInvited("bob") {
		t.Fatal("accepted invite must be dropped")
	}
	if r.AddMember("bob") {
		t.Fatal("second add must be a no-op")
	}
	disjoint(t, r)

	if len(r.Members) != 2 {
		t.Fatalf("expected 2 members, got %v", r.Members)
	}
}

func TestRoomRemoveHelpers(t *testing.T) {
	r := &Room{Members: []string{"alice", "bob"}, Invites: []Invite{{Username: "carol"}}}

	if !r.RemoveMember("alice") || r.RemoveMember("alice") {
		t.Fatal("remove member should succeed exactly once")
	}
	if !r.RemoveInvite("carol") || r.RemoveInvite("carol") {
		t.Fatal("remove invite should succeed exactly once")
	}
	if got := r.InvitedUsernames(); len(got) != 0 {
		t.Fatalf("expected no invites, got %v", got)
	}
}
