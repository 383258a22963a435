package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
	"github.com/vovakirdan/wirechat-rooms/internal/ratelimit"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

const testSecret = "test-secret"

type testEnv struct {
	ts    *httptest.Server
	store store.Store
	auth  *auth.Service
}

// startTestServer runs a hub and an HTTP server over an in-memory store.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{Limit: 5, Window: time.Minute})
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(testSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}, limiter)

	disabledLogger := zerolog.Nop()
	hub := core.NewHub(st, core.Options{}, &disabledLogger)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = hub.Run(ctx)
	}()

	cfg := config.Default()
	cfg.Addr = ":0"
	server := NewServer(hub, authService, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)

	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-stopped
		_ = st.Close()
	})

	return &testEnv{ts: ts, store: st, auth: authService}
}

func (e *testEnv) wsURL(query string) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, query string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(query), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func jsonBody(t *testing.T, body any) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	return &buf
}

// doJSON performs a request against the server handler.
func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	e.ts.Config.Handler.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) register(t *testing.T, username, password string) string {
	t.Helper()

	resp := e.doJSON(t, http.MethodPost, "/api/register", "", RegisterRequest{Username: username, Password: password})
	if resp.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", username, resp.Code, resp.Body.String())
	}
	var out AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return out.Token
}

type wireFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	var raw json.RawMessage
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal %s: %v", typ, err)
		}
		raw = payload
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: raw}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// readUntil reads frames until one matches, failing on timeout.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(wireFrame) bool) wireFrame {
	t.Helper()

	for {
		var frame wireFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if match(frame) {
			return frame
		}
	}
}

func isEvent(name string) func(wireFrame) bool {
	return func(f wireFrame) bool { return f.Type == proto.OutboundTypeEvent && f.Event == name }
}

func isError(code string) func(wireFrame) bool {
	return func(f wireFrame) bool { return f.Type == proto.OutboundTypeError && f.Error != nil && f.Error.Code == code }
}
