package webrtc

import (
	"testing"
	"time"

	"github.com/pion/ice/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateConnectionState(t *testing.T) {
	tests := []struct {
		ice  ice.ConnectionState
		dtls bool
		want ConnectionState
	}{
		{ice.ConnectionStateNew, false, ConnectionStateNew},
		{ice.ConnectionStateChecking, false, ConnectionStateConnecting},
		{ice.ConnectionStateChecking, true, ConnectionStateConnecting},
		{ice.ConnectionStateConnected, false, ConnectionStateConnecting},
		{ice.ConnectionStateConnected, true, ConnectionStateConnected},
		{ice.ConnectionStateCompleted, true, ConnectionStateConnected},
		{ice.ConnectionStateDisconnected, true, ConnectionStateDisconnected},
		{ice.ConnectionStateFailed, true, ConnectionStateFailed},
		{ice.ConnectionStateFailed, false, ConnectionStateFailed},
	}

	for _, tt := range tests {
		got := aggregateConnectionState(tt.ice, tt.dtls)
		assert.Equalf(t, tt.want, got, "aggregateConnectionState(%s, %v)", tt.ice, tt.dtls)
	}
}

func TestConnectionStateString(t *testing.T) {
	cases := map[ConnectionState]string{
		ConnectionStateNew:          "new",
		ConnectionStateConnecting:   "connecting",
		ConnectionStateConnected:    "connected",
		ConnectionStateDisconnected: "disconnected",
		ConnectionStateFailed:       "failed",
		ConnectionStateClosed:       "closed",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestGenerateTURNCredentials(t *testing.T) {
	server, err := GenerateTURNCredentials("shared-secret", time.Hour, []string{"turn:example.com:3478"})
	require.NoError(t, err)
	assert.NotEmpty(t, server.Username, "expected a non-empty generated username")
	assert.NotEmpty(t, server.Credential, "expected a non-empty generated credential")
	if assert.Len(t, server.URLs, 1) {
		assert.Equal(t, "turn:example.com:3478", server.URLs[0])
	}
}

func TestWithVNetReturnsSameConfig(t *testing.T) {
	cfg := &ice.AgentConfig{}
	out := WithVNet(cfg, nil)
	assert.Same(t, cfg, out, "expected WithVNet to return the same config pointer it was given")
}
