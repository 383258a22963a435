package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
	"github.com/vovakirdan/wirechat-rooms/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub             ChatHub
	auth            *auth.Service
	maxMessageBytes int64
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub ChatHub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		hub:             hub,
		auth:            authService,
		maxMessageBytes: cfg.MaxMessageBytes,
		log:             logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	client := core.NewClient(utils.NewID())
	source := sourceIP(r)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)
	h.log.Debug().Str("client_id", client.ID).Str("source", source).Msg("ws connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if token := r.URL.Query().Get("token"); token != "" {
		if claims, err := h.auth.ValidateToken(token); err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("ignoring invalid handshake token")
		} else if err := h.submit(ctx, client, &core.Command{Kind: core.CommandBind, Username: claims.Username, Via: core.BindToken}); err != nil {
			return
		}
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, source)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, source string) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("read ws inbound")
			return err
		}

		var (
			cmd      *core.Command
			protoErr *proto.Error
		)
		switch inbound.Type {
		case proto.InboundTypeRegister:
			cmd, protoErr = h.register(ctx, inbound, source)
		case proto.InboundTypeLogin:
			cmd, protoErr = h.login(ctx, inbound)
		default:
			cmd, protoErr = inboundToCommand(inbound)
		}

		if protoErr != nil {
			if err := wsjson.Write(ctx, conn, outboundError(protoErr.Code, protoErr.Msg)); err != nil {
				return err
			}
			continue
		}
		if cmd != nil {
			if err := h.submit(ctx, client, cmd); err != nil {
				return err
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case ev, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(ev)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) submit(ctx context.Context, client *core.Client, cmd *core.Command) error {
	select {
	case client.Commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// register runs on the read goroutine so bcrypt never blocks the hub.
func (h *WSHandler) register(ctx context.Context, inbound proto.Inbound, source string) (*core.Command, *proto.Error) {
	var data proto.RegisterData
	if perr := decodeData(inbound, &data); perr != nil {
		return nil, perr
	}

	grant, err := h.auth.Register(ctx, auth.RegisterInput{
		Username: data.Username,
		Password: data.Password,
		Email:    data.Email,
		Source:   source,
	})
	if err != nil {
		status, msg := registerErrorStatus(err)
		switch status {
		case stdhttp.StatusTooManyRequests:
			return nil, &proto.Error{Code: proto.ErrCodeRateLimited, Msg: msg}
		case stdhttp.StatusInternalServerError:
			h.log.Error().Err(err).Str("username", data.Username).Msg("ws register failed")
		}
		return nil, &proto.Error{Code: proto.ErrCodeRegister, Msg: msg}
	}

	h.log.Info().Str("username", grant.Username).Msg("user registered over ws")
	return &core.Command{Kind: core.CommandBind, Username: grant.Username, Token: grant.Token, Via: core.BindRegister}, nil
}

func (h *WSHandler) login(ctx context.Context, inbound proto.Inbound) (*core.Command, *proto.Error) {
	var data proto.LoginData
	if perr := decodeData(inbound, &data); perr != nil {
		return nil, perr
	}

	grant, err := h.auth.Login(ctx, data.Username, data.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			h.log.Error().Err(err).Str("username", data.Username).Msg("ws login failed")
		}
		return nil, &proto.Error{Code: proto.ErrCodeLogin, Msg: loginErrorMessage}
	}
	return &core.Command{Kind: core.CommandBind, Username: grant.Username, Token: grant.Token, Via: core.BindLogin}, nil
}
