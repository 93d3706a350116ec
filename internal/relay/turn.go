// Package relay runs an optional embedded TURN server so peers behind
// restrictive NATs can complete the links the coordinator bootstraps. It only
// relays; it never looks at media.
package relay

import (
	"fmt"
	"net"

	"github.com/pion/logging"
	"github.com/pion/turn/v4"
	"github.com/rs/zerolog/log"

	"meetpoint/internal/config"
)

type TurnServer struct {
	server *turn.Server
	conn   net.PacketConn
}

// StartTurn listens on UDP and serves TURN with the static credentials from
// config. PublicIP must be the address clients can actually reach.
func StartTurn(cfg config.TurnConfig) (*TurnServer, error) {
	relayIP := net.ParseIP(cfg.PublicIP)
	if relayIP == nil {
		return nil, fmt.Errorf("turn: invalid public ip %q", cfg.PublicIP)
	}

	conn, err := net.ListenPacket("udp4", fmt.Sprintf("0.0.0.0:%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("turn: listen: %w", err)
	}

	keys := make(map[string][]byte, len(cfg.Users))
	for user, pass := range cfg.Users {
		keys[user] = turn.GenerateAuthKey(user, cfg.Realm, pass)
	}

	server, err := turn.NewServer(turn.ServerConfig{
		Realm: cfg.Realm,
		AuthHandler: func(username, realm string, srcAddr net.Addr) ([]byte, bool) {
			key, ok := keys[username]
			return key, ok
		},
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn: conn,
				RelayAddressGenerator: &turn.RelayAddressGeneratorStatic{
					RelayAddress: relayIP,
					Address:      "0.0.0.0",
				},
			},
		},
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("turn: start: %w", err)
	}

	log.Info().Str("module", "relay.turn").Int("port", cfg.Port).
		Str("public_ip", cfg.PublicIP).Msg("embedded TURN relay started")
	return &TurnServer{server: server, conn: conn}, nil
}

func (t *TurnServer) Close() error {
	return t.server.Close()
}
