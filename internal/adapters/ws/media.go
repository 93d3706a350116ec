package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"meetpoint/internal/app"
	"meetpoint/internal/domain"
)

func (ctl *Controller) handleToggle(kind app.ToggleKind, connID domain.ConnID, data []byte) {
	var p struct {
		RoomID    string `json:"roomId"`
		IsEnabled bool   `json:"isEnabled"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", string(connID)).Msg("bad toggle payload")
		return
	}
	ctl.coord.ToggleMedia(domain.RoomID(p.RoomID), connID, kind, p.IsEnabled)
}

func (ctl *Controller) handleScreenShare(connID domain.ConnID, data []byte, started bool) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", string(connID)).Msg("bad screen share payload")
		return
	}
	ctl.coord.ScreenShare(domain.RoomID(p.RoomID), connID, started)
}
