package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"meetpoint/internal/app"
	"meetpoint/internal/domain"
)

// handleRelay forwards one handshake message. The payload stays a raw blob
// end to end; only the addressing fields are read here.
func (ctl *Controller) handleRelay(kind app.SignalKind, connID domain.ConnID, data []byte) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", string(connID)).Msg("bad signal payload")
		return
	}

	var to string
	if raw, ok := fields["to"]; ok {
		_ = json.Unmarshal(raw, &to)
	}
	payload := fields[payloadKey(kind)]
	if to == "" || payload == nil {
		log.Warn().Str("module", "adapters.ws").Str("conn", string(connID)).
			Str("kind", string(kind)).Msg("signal missing destination or body")
		return
	}

	ctl.coord.Relay(kind, connID, domain.ConnID(to), payload)
}

func payloadKey(kind app.SignalKind) string {
	if kind == app.SignalICECandidate {
		return "candidate"
	}
	return string(kind)
}
