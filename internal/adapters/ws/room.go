package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"meetpoint/internal/domain"
)

func (ctl *Controller) handleJoin(connID domain.ConnID, conn *wsConn, data []byte) {
	var p struct {
		RoomID   string `json:"roomId"`
		UserName string `json:"userName"`
		UserID   string `json:"userId,omitempty"`
		// Sent by older clients; admin is decided by join order server-side.
		IsAdmin bool `json:"isAdmin,omitempty"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", string(connID)).Msg("bad join payload")
		return
	}

	err := ctl.coord.Join(connID, domain.RoomID(p.RoomID), domain.UserID(p.UserID), p.UserName)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", string(connID)).
			Str("room", p.RoomID).Msg("join failed")
		ctl.sendError(conn, "Failed to join room")
	}
}

func (ctl *Controller) handleLeave(connID domain.ConnID) {
	// The registry binding, not the payload, decides which room is left.
	ctl.coord.Leave(connID)
}
