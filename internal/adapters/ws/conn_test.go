package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"meetpoint/internal/app"
)

func TestEmit_WrapsEventInEnvelope(t *testing.T) {
	req := require.New(t)
	c := newWSConn(nil)

	req.NoError(c.Emit(app.EvtChatMessage, map[string]string{"message": "hi"}))

	frame := <-c.send
	var env envelope
	req.NoError(json.Unmarshal(frame, &env))
	req.Equal(app.EvtChatMessage, env.Type)
	req.JSONEq(`{"message":"hi"}`, string(env.Data))
}

func TestTrySend_ReportsBackpressureInsteadOfBlocking(t *testing.T) {
	req := require.New(t)
	c := newWSConn(nil)

	// Fill the outbound buffer with no pump draining it
	for {
		if err := c.TrySend([]byte("x")); err != nil {
			req.ErrorIs(err, ErrBackpressure)
			return
		}
	}
}

func TestPayloadKey_MatchesWireFieldNames(t *testing.T) {
	req := require.New(t)
	req.Equal("offer", payloadKey(app.SignalOffer))
	req.Equal("answer", payloadKey(app.SignalAnswer))
	req.Equal("candidate", payloadKey(app.SignalICECandidate))
}
