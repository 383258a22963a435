package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

func TestRegisterAndLogin(t *testing.T) {
	env := startTestServer(t)

	token := env.register(t, "alice", "pw123456")
	if token == "" {
		t.Fatal("expected token")
	}

	resp := env.doJSON(t, http.MethodPost, "/api/register", "", RegisterRequest{Username: "alice", Password: "pw123456"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", resp.Code)
	}

	resp = env.doJSON(t, http.MethodPost, "/api/register", "", RegisterRequest{Username: "bob", Password: "123"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short password, got %d", resp.Code)
	}

	resp = env.doJSON(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "alice", Password: "nope-nope"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", resp.Code)
	}
	var errResp ErrorResponse
	_ = json.Unmarshal(resp.Body.Bytes(), &errResp)
	if errResp.Error != "Invalid username or password" {
		t.Fatalf("unexpected login error message: %q", errResp.Error)
	}

	resp = env.doJSON(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "alice", Password: "pw123456"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

// registerFrom posts a registration as if it arrived from remoteAddr.
func (e *testEnv) registerFrom(t *testing.T, username, remoteAddr, forwardedFor string) int {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/register",
		jsonBody(t, RegisterRequest{Username: username, Password: "pw123456"}))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	resp := httptest.NewRecorder()
	e.ts.Config.Handler.ServeHTTP(resp, req)
	return resp.Code
}

func TestRegisterRateLimitedPerSource(t *testing.T) {
	env := startTestServer(t)

	for i := 0; i < 5; i++ {
		if code := env.registerFrom(t, fmt.Sprintf("user%d", i), "10.1.1.1:4000", ""); code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201, got %d", i+1, code)
		}
	}
	if code := env.registerFrom(t, "user5", "10.1.1.1:4001", ""); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on 6th attempt, got %d", code)
	}
	if code := env.registerFrom(t, "user6", "10.2.2.2:4000", ""); code != http.StatusCreated {
		t.Fatalf("other source should pass, got %d", code)
	}
}

func TestRegisterIgnoresForwardedFor(t *testing.T) {
	env := startTestServer(t)

	accepted := 0
	for i := 0; i < 10; i++ {
		forwarded := fmt.Sprintf("198.51.100.%d", i+1)
		if env.registerFrom(t, fmt.Sprintf("spoof%d", i), "203.0.113.9:5000", forwarded) == http.StatusCreated {
			accepted++
		}
	}
	if accepted != 5 {
		t.Fatalf("expected 5 accepted registrations from one peer, got %d", accepted)
	}
}

func TestListRoomsAndMessages(t *testing.T) {
	env := startTestServer(t)
	ctx := context.Background()

	aliceToken := env.register(t, "alice", "pw123456")
	bobToken := env.register(t, "bob", "pw123456")

	team := &store.Room{ID: "team", Name: "Team", Creator: "alice", Members: []string{"alice"},
		Invites: []store.Invite{{Username: "bob", From: "alice"}}}
	if err := env.store.CreateRoom(ctx, team); err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, body := range []string{"one", "two", "three"} {
		if err := env.store.SaveMessage(ctx, &store.Message{RoomID: "team", Username: "alice", Body: body}); err != nil {
			t.Fatalf("save message: %v", err)
		}
	}

	resp := env.doJSON(t, http.MethodGet, "/api/rooms", bobToken, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var rooms []proto.RoomInfo
	if err := json.Unmarshal(resp.Body.Bytes(), &rooms); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(rooms) != 2 || rooms[0].ID != store.HomeRoomID || rooms[1].ID != "team" || !rooms[1].Pending || rooms[1].InvitedBy != "alice" {
		t.Fatalf("unexpected rooms for bob: %+v", rooms)
	}

	// Pending invitees cannot read history.
	resp = env.doJSON(t, http.MethodGet, "/api/rooms/team/messages", bobToken, nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %d", resp.Code)
	}

	resp = env.doJSON(t, http.MethodGet, "/api/rooms/team/messages?limit=2", aliceToken, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var msgs []proto.MessagePayload
	if err := json.Unmarshal(resp.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("failed to unmarshal messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != "two" || msgs[1].Text != "three" {
		t.Fatalf("expected last two messages oldest first, got %+v", msgs)
	}

	resp = env.doJSON(t, http.MethodGet, "/api/rooms/missing/messages", aliceToken, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	resp = env.doJSON(t, http.MethodGet, "/api/rooms", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
}

func TestListUsers(t *testing.T) {
	env := startTestServer(t)
	token := env.register(t, "alice", "pw123456")
	env.register(t, "bob", "pw123456")

	resp := env.doJSON(t, http.MethodGet, "/api/users", token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var users []proto.UserStatus
	if err := json.Unmarshal(resp.Body.Bytes(), &users); err != nil {
		t.Fatalf("failed to unmarshal users: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" || users[0].Status != "offline" {
		t.Fatalf("unexpected users: %+v", users)
	}

	resp = env.doJSON(t, http.MethodGet, "/api/stats", token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from stats, got %d", resp.Code)
	}
}
