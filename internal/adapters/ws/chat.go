package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"meetpoint/internal/domain"
)

func (ctl *Controller) handleChat(connID domain.ConnID, data []byte) {
	var p struct {
		RoomID  string `json:"roomId"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" || p.Message == "" {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", string(connID)).Msg("bad chat payload")
		return
	}
	ctl.coord.Chat(domain.RoomID(p.RoomID), connID, p.Message)
}
