package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"meetpoint/internal/app"
	"meetpoint/internal/domain"
)

type errorEvent struct {
	Message string `json:"message"`
}

// dispatch routes one inbound frame. The switch is the single binding point
// for every event type, so no handler can be attached twice for a connection.
// A panic in a handler is contained to this connection.
func (ctl *Controller) dispatch(connID domain.ConnID, conn *wsConn, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("module", "adapters.ws").
				Str("conn", string(connID)).Msg("handler panic")
			ctl.sendError(conn, "internal error")
		}
	}()

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", string(connID)).Msg("bad frame")
		return
	}

	switch env.Type {
	case "join-room":
		ctl.handleJoin(connID, conn, env.Data)
	case "leave-room":
		ctl.handleLeave(connID)
	case "offer":
		ctl.handleRelay(app.SignalOffer, connID, env.Data)
	case "answer":
		ctl.handleRelay(app.SignalAnswer, connID, env.Data)
	case "ice-candidate":
		ctl.handleRelay(app.SignalICECandidate, connID, env.Data)
	case "chat-message":
		ctl.handleChat(connID, env.Data)
	case "toggle-audio":
		ctl.handleToggle(app.ToggleAudio, connID, env.Data)
	case "toggle-video":
		ctl.handleToggle(app.ToggleVideo, connID, env.Data)
	case "start-screen-share":
		ctl.handleScreenShare(connID, env.Data, true)
	case "stop-screen-share":
		ctl.handleScreenShare(connID, env.Data, false)
	case "update-permissions":
		ctl.handleUpdatePermissions(connID, conn, env.Data)
	case "remove-user":
		ctl.handleRemoveUser(connID, conn, env.Data)
	default:
		log.Warn().Str("module", "adapters.ws").Str("type", env.Type).Msg("unknown event")
	}
}

// sendError delivers the generic error event to the offending connection
// only; errors are never broadcast.
func (ctl *Controller) sendError(conn *wsConn, message string) {
	if err := conn.Emit(app.EvtError, errorEvent{Message: message}); err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Msg("error event dropped")
	}
}
