package ws

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"meetpoint/internal/app"
	"meetpoint/internal/domain"
)

func (ctl *Controller) handleUpdatePermissions(connID domain.ConnID, conn *wsConn, data []byte) {
	var p struct {
		RoomID       string             `json:"roomId"`
		TargetUserID string             `json:"targetUserId"`
		Permissions  domain.Permissions `json:"permissions"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" || p.TargetUserID == "" {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", string(connID)).Msg("bad permissions payload")
		return
	}

	err := ctl.coord.UpdatePermissions(domain.RoomID(p.RoomID), connID, domain.ConnID(p.TargetUserID), p.Permissions)
	if err != nil {
		ctl.sendError(conn, adminErrorMessage(err, "Only admin can update permissions"))
	}
}

func (ctl *Controller) handleRemoveUser(connID domain.ConnID, conn *wsConn, data []byte) {
	var p struct {
		RoomID       string `json:"roomId"`
		TargetUserID string `json:"targetUserId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" || p.TargetUserID == "" {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", string(connID)).Msg("bad remove payload")
		return
	}

	err := ctl.coord.RemoveUser(domain.RoomID(p.RoomID), connID, domain.ConnID(p.TargetUserID))
	if err != nil {
		ctl.sendError(conn, adminErrorMessage(err, "Only admin can remove users"))
	}
}

func adminErrorMessage(err error, notAdmin string) string {
	switch {
	case errors.Is(err, app.ErrNotAdmin):
		return notAdmin
	case errors.Is(err, app.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, app.ErrNotMember):
		return "User not found in room"
	default:
		return "Request failed"
	}
}
