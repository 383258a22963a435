package core

import (
	"fmt"
	"testing"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	users := make([]string, 0, recipients+1)
	users = append(users, "sender")
	for i := range recipients {
		users = append(users, fmt.Sprintf("user%d", i))
	}
	hub, _ := newTestHub(b, Options{MessagesPerMinute: 0}, users...)

	sender := connect(b, hub, "sender", "sender")
	sender.Commands <- &Command{Kind: CommandJoinRoom, RoomID: store.HomeRoomID}
	mustEvent(b, sender.Events, EventHistory)

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := connect(b, hub, fmt.Sprintf("c%d", i), users[i+1])
		c.Commands <- &Command{Kind: CommandJoinRoom, RoomID: store.HomeRoomID}
		mustEvent(b, c.Events, EventHistory)
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}
	go func() {
		for range sender.Events {
		}
	}()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- &Command{Kind: CommandSendRoomMessage, Text: "payload"}
		mustEvent(b, target.Events, EventRoomMessage)
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
