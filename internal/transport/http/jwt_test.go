package http

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

func makeJWT(secret, aud, iss, username string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":      username,
		"username": username,
		"exp":      time.Now().Add(ttl).Unix(),
	}
	if aud != "" {
		claims["aud"] = aud
	}
	if iss != "" {
		claims["iss"] = iss
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func TestWebSocketTokenHandshakeBinds(t *testing.T) {
	env := startTestServer(t)
	token := env.register(t, "alice", "pw123456")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx, "token="+url.QueryEscape(token))
	frame := readUntil(t, ctx, conn, isEvent(proto.EventRoomsUpdate))

	var rooms []proto.RoomInfo
	if err := json.Unmarshal(frame.Data, &rooms); err != nil {
		t.Fatalf("decode rooms_update: %v", err)
	}
	if len(rooms) == 0 || rooms[0].ID != store.HomeRoomID {
		t.Fatalf("expected Home in rooms_update, got %+v", rooms)
	}

	send(t, ctx, conn, proto.InboundTypeGetUsers, nil)
	frame = readUntil(t, ctx, conn, isEvent(proto.EventUserStatus))
	var roster []proto.UserStatus
	if err := json.Unmarshal(frame.Data, &roster); err != nil {
		t.Fatalf("decode user_status: %v", err)
	}
	if len(roster) != 1 || roster[0].Username != "alice" || roster[0].Status != "online" {
		t.Fatalf("unexpected roster: %+v", roster)
	}
}

func TestWebSocketInvalidTokenLeavesConnectionUnbound(t *testing.T) {
	env := startTestServer(t)
	env.register(t, "alice", "pw123456")

	forged, err := makeJWT("other-secret", "test", "test", "alice", time.Minute)
	if err != nil {
		t.Fatalf("make jwt: %v", err)
	}
	expired, err := makeJWT(testSecret, "test", "test", "alice", -time.Minute)
	if err != nil {
		t.Fatalf("make jwt: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, token := range []string{forged, expired, "garbage"} {
		conn := env.dial(t, ctx, "token="+url.QueryEscape(token))
		send(t, ctx, conn, proto.InboundTypeGetRooms, nil)
		readUntil(t, ctx, conn, isError("unauthorized"))
	}
}

func TestWebSocketHandshakeAcceptsCompatibleToken(t *testing.T) {
	env := startTestServer(t)
	env.register(t, "alice", "pw123456")

	token, err := makeJWT(testSecret, "test", "test", "alice", time.Minute)
	if err != nil {
		t.Fatalf("make jwt: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx, "token="+url.QueryEscape(token))
	readUntil(t, ctx, conn, isEvent(proto.EventRoomsUpdate))
}
