package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-rooms/internal/log"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

var (
	addr         string
	token        string
	pingInterval time.Duration
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:          "wirechat",
	Short:        "Terminal client for the wirechat server",
	SilenceUsage: true,
	RunE:         runClient,
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", "ws://localhost:8080/ws", "WebSocket address")
	rootCmd.Flags().StringVar(&token, "token", "", "JWT to authenticate during the handshake")
	rootCmd.Flags().DurationVar(&pingInterval, "ping-interval", 10*time.Second, "presence heartbeat interval")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, _ []string) error {
	logger := log.NewWithWriter(os.Stderr, logLevel)

	baseCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	target, err := dialURL(addr, token)
	if err != nil {
		return err
	}
	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	fmt.Printf("Connected to %s\n", addr)
	fmt.Println(helpText)

	intervals := make(chan time.Duration, 1)
	go func() {
		defer cancel()
		readLoop(ctx, conn, intervals, logger)
	}()
	go pingLoop(ctx, conn, intervals, logger)

	writeLoop(ctx, conn, logger)
	return nil
}

func dialURL(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse addr: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, intervals chan<- time.Duration, logger *zerolog.Logger) {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			logger.Error().Err(err).Msg("read error")
			return
		}
		if d, ok := heartbeatFrom(f); ok {
			select {
			case intervals <- d:
			default:
			}
		}
		out, err := render(f)
		if err != nil {
			logger.Warn().Err(err).Str("event", f.Event).Msg("undecodable frame")
			continue
		}
		fmt.Println(out)
	}
}

// pingLoop keeps the session marked online, following the period the server
// announces on sign-in.
func pingLoop(ctx context.Context, conn *websocket.Conn, intervals <-chan time.Duration, logger *zerolog.Logger) {
	if pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-intervals:
			logger.Debug().Dur("interval", d).Msg("heartbeat interval from server")
			ticker.Reset(d)
		case <-ticker.C:
			if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypePing}); err != nil {
				logger.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, logger *zerolog.Logger) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			msg, err := parseLine(line)
			if errors.Is(err, errQuit) {
				return
			}
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				logger.Error().Err(err).Msg("send error")
				return
			}
		}
	}
}
