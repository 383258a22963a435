package http

import (
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

func TestOutboundFromEventPayloads(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		event *core.Event
		want  string
		check func(t *testing.T, data any)
	}{
		{
			name:  "notice",
			event: &core.Event{Kind: core.EventNotice, RoomID: "home", User: core.AdminUser, Text: "hi"},
			want:  proto.EventMessage,
			check: func(t *testing.T, data any) {
				msg, ok := data.(proto.MessagePayload)
				if !ok || msg.User != core.AdminUser || msg.Text != "hi" {
					t.Fatalf("unexpected notice payload: %#v", data)
				}
			},
		},
		{
			name:  "room created",
			event: &core.Event{Kind: core.EventRoomCreated, RoomID: "r1", RoomName: "Team"},
			want:  proto.EventRoomCreated,
			check: func(t *testing.T, data any) {
				if p, ok := data.(proto.RoomCreatedPayload); !ok || p.RoomID != "r1" || p.Name != "Team" {
					t.Fatalf("unexpected payload: %#v", data)
				}
			},
		},
		{
			name:  "room invite",
			event: &core.Event{Kind: core.EventRoomInvite, RoomID: "r1", RoomName: "Team", User: "alice"},
			want:  proto.EventRoomInvite,
			check: func(t *testing.T, data any) {
				if p, ok := data.(proto.RoomInvitePayload); !ok || p.From != "alice" {
					t.Fatalf("unexpected payload: %#v", data)
				}
			},
		},
		{
			name:  "room renamed",
			event: &core.Event{Kind: core.EventRoomRenamed, RoomID: "r1", RoomName: "Crew"},
			want:  proto.EventRoomRenamed,
			check: func(t *testing.T, data any) {
				if p, ok := data.(proto.RoomRenamedPayload); !ok || p.Name != "Crew" {
					t.Fatalf("unexpected payload: %#v", data)
				}
			},
		},
		{
			name:  "login success",
			event: &core.Event{Kind: core.EventLoginSuccess, User: "alice", Token: "tok", Heartbeat: 15 * time.Second},
			want:  proto.EventLoginSuccess,
			check: func(t *testing.T, data any) {
				if p, ok := data.(proto.AuthPayload); !ok || p.Token != "tok" || p.HeartbeatInterval != 15 {
					t.Fatalf("unexpected payload: %#v", data)
				}
			},
		},
		{
			name: "roster",
			event: &core.Event{Kind: core.EventUserStatus, Roster: []core.UserPresence{
				{Username: "alice", Status: "online", LastSeen: ts},
				{Username: "bob", Status: "offline"},
			}},
			want: proto.EventUserStatus,
			check: func(t *testing.T, data any) {
				roster, ok := data.([]proto.UserStatus)
				if !ok || len(roster) != 2 || roster[0].LastSeen != ts.Unix() || roster[1].LastSeen != 0 {
					t.Fatalf("unexpected roster: %#v", data)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := outboundFromEvent(tc.event)
			if out.Type != proto.OutboundTypeEvent || out.Event != tc.want {
				t.Fatalf("expected event %s, got %+v", tc.want, out)
			}
			tc.check(t, out.Data)
		})
	}
}
