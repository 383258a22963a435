package core

import "testing"

func TestSessionTableTracksConnectionsPerUser(t *testing.T) {
	table := newSessionTable()

	s1 := table.add(NewClient("c1"))
	s2 := table.add(NewClient("c2"))
	anon := table.add(NewClient("c3"))

	if !table.bind(s1, "alice") {
		t.Fatal("first connection should be reported")
	}
	if table.bind(s2, "alice") {
		t.Fatal("second connection must not be reported as first")
	}
	if got := len(table.connsOf("alice")); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}
	if got := len(table.bound()); got != 2 {
		t.Fatalf("expected 2 bound sessions, got %d", got)
	}

	if _, last := table.remove(anon.Client.ID); last {
		t.Fatal("unbound connection is never last")
	}
	if _, last := table.remove("c1"); last {
		t.Fatal("alice still has c2")
	}
	if _, last := table.remove("c2"); !last {
		t.Fatal("c2 was alice's last connection")
	}
	if users := table.users(); len(users) != 0 {
		t.Fatalf("expected no online users, got %v", users)
	}
}

func TestGroupBroadcastExcept(t *testing.T) {
	g := NewGroup("r1")
	a := &Session{Client: NewClient("a")}
	b := &Session{Client: NewClient("b")}

	if !g.Add(a) || !g.Add(b) || g.Add(a) {
		t.Fatal("unexpected add results")
	}
	g.BroadcastExcept(&Event{Kind: EventNotice, Text: "hello"}, a)

	select {
	case <-a.Client.Events:
		t.Fatal("skipped session must not receive the event")
	default:
	}
	if ev := <-b.Client.Events; ev.Text != "hello" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	g.Remove(a)
	g.Remove(b)
	if !g.Empty() {
		t.Fatal("group should be empty")
	}
}
