// Package httpapi wires the gin engine: health, read-only room views, ICE
// configuration for clients, and the websocket signaling endpoint. Meeting
// metadata itself (create/fetch/end) lives in the external meeting API.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"meetpoint/internal/adapters/ws"
	"meetpoint/internal/app"
	"meetpoint/internal/config"
	"meetpoint/internal/domain"
)

// ClientTokenMiddleware hands every browser a stable client token. It is the
// fallback user identity for anonymous connections; the per-connection id is
// minted separately at upgrade time.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, coord *app.Coordinator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("MeetpointSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.GET("/ice", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": iceServers(cfg)})
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, coord.Rooms())
	})

	api.GET("/rooms/:roomId", func(c *gin.Context) {
		info, ok := coord.Occupancy(domain.RoomID(c.Param("roomId")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, info)
	})

	ctl := ws.NewController(coord, cfg)
	api.GET("/ws/signal", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.httpapi").Msg("router setup")
	return r
}

// iceServers merges the configured servers with the embedded TURN relay's
// credentials when it is enabled.
func iceServers(cfg *config.Config) []config.ICEServer {
	servers := make([]config.ICEServer, 0, len(cfg.ICEServers)+len(cfg.Turn.Users))
	servers = append(servers, cfg.ICEServers...)
	if cfg.Turn.Enabled {
		turnURL := fmt.Sprintf("turn:%s:%d", cfg.Turn.PublicIP, cfg.Turn.Port)
		for user, pass := range cfg.Turn.Users {
			servers = append(servers, config.ICEServer{
				URLs:       []string{turnURL},
				Username:   user,
				Credential: pass,
			})
		}
	}
	return servers
}
