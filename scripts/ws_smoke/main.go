// Command ws_smoke signs in over WebSocket, joins Home and waits for its own
// message to come back.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-rooms/internal/log"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

type outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "smoketest", "username")
	password := flag.String("password", "smoketest", "password")
	register := flag.Bool("register", false, "register the user instead of logging in")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	logger := log.New("info")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("dial")
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	mustSend := func(typ string, v any) {
		payload, err := json.Marshal(v)
		if err != nil {
			logger.Fatal().Err(err).Msg("marshal")
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			logger.Fatal().Err(err).Msg("send")
		}
	}

	if *register {
		mustSend(proto.InboundTypeRegister, proto.RegisterData{Username: *user, Password: *password})
	} else {
		mustSend(proto.InboundTypeLogin, proto.LoginData{Username: *user, Password: *password})
	}
	mustSend(proto.InboundTypeJoinRoom, proto.RoomData{RoomID: store.HomeRoomID})
	mustSend(proto.InboundTypeChatMessage, proto.ChatData{RoomID: store.HomeRoomID, Text: *text})

	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			logger.Fatal().Err(err).Msg("read")
		}
		if out.Type == proto.OutboundTypeError && out.Error != nil {
			fmt.Printf("Error: %s: %s\n", out.Error.Code, out.Error.Msg)
			os.Exit(1)
		}
		fmt.Printf("Received outbound: event=%s\n", out.Event)
		if out.Event != proto.EventChatMessage {
			continue
		}
		var evt proto.MessagePayload
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			logger.Fatal().Err(err).Msg("decode message")
		}
		if evt.User == *user && evt.Text == *text {
			fmt.Printf("EventMessage: room=%s user=%s text=%q ts=%d\n", evt.RoomID, evt.User, evt.Text, evt.TS)
			return
		}
	}
}
