package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"meetpoint/internal/app"
	"meetpoint/internal/auth"
	"meetpoint/internal/config"
	"meetpoint/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin filtering is a reverse-proxy concern in this deployment.
		return true
	},
}

type Controller struct {
	coord    *app.Coordinator
	cfg      *config.Config
	verifier *auth.Verifier
}

func NewController(coord *app.Coordinator, cfg *config.Config) *Controller {
	ctl := &Controller{coord: coord, cfg: cfg}
	if cfg.Auth.Required {
		ctl.verifier = auth.NewVerifier(cfg.Auth.JWTSecret)
	}
	return ctl
}

// HandleSignal upgrades the request and starts the connection's two pumps.
// The conn id minted here is the client's relay address for the whole
// session; the session client token is only a fallback user identity.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	userID := domain.UserID(c.GetString("client_token"))
	name := "guest"

	if ctl.verifier != nil {
		claims, err := ctl.verifier.Verify(bearerToken(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		userID = domain.UserID(claims.UserID)
		if claims.UserName != "" {
			name = claims.UserName
		}
	}

	wsock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("upgrade failed")
		return
	}

	connID := domain.ConnID(uuid.NewString())
	p, err := domain.NewParticipant(connID, userID, name)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("bad identity")
		_ = wsock.Close()
		return
	}

	conn := newWSConn(wsock)
	ctl.coord.Connect(p, conn)
	log.Info().Str("module", "adapters.ws").Str("conn", string(connID)).Msg("new signaling connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, connID, conn)
}

func bearerToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	header := c.GetHeader("Authorization")
	parts := strings.Split(header, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
