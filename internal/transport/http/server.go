package http

import (
	"context"
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// ChatHub is the part of the core hub the transport talks to.
type ChatHub interface {
	RegisterClient(c *core.Client)
	UnregisterClient(c *core.Client)
	Stats(ctx context.Context) (core.Stats, error)
}

// NewServer builds an HTTP server with the REST API and the WebSocket endpoint.
func NewServer(hub ChatHub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	// Rate limits key on the peer address; forwarding headers are not trusted.
	_ = router.SetTrustedProxies(nil)
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	api := NewAPIHandlers(authService, logger)
	router.POST("/api/register", api.Register)
	router.POST("/api/login", api.Login)

	rooms := NewRoomHandlers(st, cfg.HistoryLimit, logger)
	users := NewUserHandlers(st, hub, logger)

	protected := router.Group("/api", AuthMiddleware(authService, logger))
	protected.GET("/rooms", rooms.ListRooms)
	protected.GET("/rooms/:id/messages", rooms.ListMessages)
	protected.GET("/users", users.ListUsers)
	protected.GET("/stats", users.Stats)

	// /ws is served outside gin.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, authService, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	_, _ = fmt.Fprint(c.Writer, "ok")
}
