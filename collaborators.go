package webrtc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/dtls/v3"
	"github.com/pion/ice/v4"
	"github.com/pion/logging"
	"github.com/pion/srtp/v3"
	"github.com/pion/stun/v3"
	"github.com/pion/transport/v4"
	"github.com/pion/turn/v4"
)

// ConnectionState is the aggregate connection state derived from the ICE and
// DTLS collaborator states.
type ConnectionState int

// Recognized aggregate connection states, ordered the way the aggregation
// table resolves them.
const (
	ConnectionStateNew ConnectionState = iota
	ConnectionStateConnecting
	ConnectionStateConnected
	ConnectionStateDisconnected
	ConnectionStateFailed
	ConnectionStateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateNew:
		return "new"
	case ConnectionStateConnecting:
		return "connecting"
	case ConnectionStateConnected:
		return "connected"
	case ConnectionStateDisconnected:
		return "disconnected"
	case ConnectionStateFailed:
		return "failed"
	case ConnectionStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// aggregateConnectionState combines the ICE and DTLS collaborator states
// into the single connection_state_change event value: failed dominates,
// then disconnected, then the pair is connected only once both legs are.
func aggregateConnectionState(iceState ice.ConnectionState, dtlsUp bool) ConnectionState {
	switch iceState {
	case ice.ConnectionStateFailed:
		return ConnectionStateFailed
	case ice.ConnectionStateDisconnected:
		return ConnectionStateDisconnected
	case ice.ConnectionStateChecking:
		return ConnectionStateConnecting
	case ice.ConnectionStateCompleted, ice.ConnectionStateConnected:
		if dtlsUp {
			return ConnectionStateConnected
		}

		return ConnectionStateConnecting
	default:
		return ConnectionStateNew
	}
}

// CandidatePairStats is the candidate_pair stats record the ICE
// collaborator supplies.
type CandidatePairStats struct {
	Timestamp          time.Time
	LocalCandidateID   string
	RemoteCandidateID  string
	State              string
	Nominated          bool
	BytesSent          uint64
	BytesReceived      uint64
	CurrentRoundTripTime time.Duration
}

// ICECollaborator wraps a pion/ice Agent, the PeerConnection's sole ICE
// transport across BUNDLE.
type ICECollaborator struct {
	mu sync.RWMutex

	agent *ice.Agent
	conn  *ice.Conn

	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger

	onStateChange atomic.Value // func(ice.ConnectionState)
	onCandidate   atomic.Value // func(ice.Candidate)
}

// WithVNet attaches a virtual network to an ice.AgentConfig before it is
// passed to NewICECollaborator.
func WithVNet(cfg *ice.AgentConfig, net transport.Net) *ice.AgentConfig {
	cfg.Net = net

	return cfg
}

// NewICECollaborator constructs and starts gathering on a fresh ICE agent.
func NewICECollaborator(cfg *ice.AgentConfig, loggerFactory logging.LoggerFactory) (*ICECollaborator, error) {
	agent, err := ice.NewAgent(cfg)
	if err != nil {
		return nil, err
	}

	c := &ICECollaborator{
		agent:         agent,
		loggerFactory: loggerFactory,
		log:           loggerFactory.NewLogger("ice"),
	}

	if err := agent.OnCandidate(func(cand ice.Candidate) {
		if h, ok := c.onCandidate.Load().(func(ice.Candidate)); ok && h != nil {
			h(cand)
		}
	}); err != nil {
		return nil, err
	}

	if err := agent.OnConnectionStateChange(func(s ice.ConnectionState) {
		c.log.Debugf("ice connection state changed to %s", s)
		if h, ok := c.onStateChange.Load().(func(ice.ConnectionState)); ok && h != nil {
			h(s)
		}
	}); err != nil {
		return nil, err
	}

	return c, nil
}

// OnCandidate registers the handler invoked for every locally gathered
// candidate, surfaced by the PeerConnection as an ice_candidate event.
func (c *ICECollaborator) OnCandidate(f func(ice.Candidate)) {
	c.onCandidate.Store(f)
}

// OnConnectionStateChange registers the handler invoked on every ICE
// connection state transition.
func (c *ICECollaborator) OnConnectionStateChange(f func(ice.ConnectionState)) {
	c.onStateChange.Store(f)
}

// AddRemoteCandidate implements add_ice_candidate.
func (c *ICECollaborator) AddRemoteCandidate(cand ice.Candidate) error {
	return c.agent.AddRemoteCandidate(cand)
}

// GatherCandidates begins local candidate gathering.
func (c *ICECollaborator) GatherCandidates() error {
	return c.agent.GatherCandidates()
}

// Dial starts connectivity checks as the controlling agent.
func (c *ICECollaborator) Dial(ctx context.Context, remoteUfrag, remotePwd string) error {
	conn, err := c.agent.Dial(ctx, remoteUfrag, remotePwd)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return nil
}

// Accept starts connectivity checks as the controlled agent.
func (c *ICECollaborator) Accept(ctx context.Context, remoteUfrag, remotePwd string) error {
	conn, err := c.agent.Accept(ctx, remoteUfrag, remotePwd)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return nil
}

// Conn returns the established ice.Conn, or nil before Dial/Accept
// completes.
func (c *ICECollaborator) Conn() *ice.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.conn
}

// GetStats returns one candidate_pair record per pair the agent has
// checked.
func (c *ICECollaborator) GetStats(now time.Time) []CandidatePairStats {
	pairStats := c.agent.GetCandidatePairsStats()
	out := make([]CandidatePairStats, 0, len(pairStats))
	for _, p := range pairStats {
		out = append(out, CandidatePairStats{
			Timestamp:            now,
			LocalCandidateID:     p.LocalCandidateID,
			RemoteCandidateID:    p.RemoteCandidateID,
			State:                p.State.String(),
			Nominated:            p.Nominated,
			BytesSent:            p.BytesSent,
			BytesReceived:        p.BytesReceived,
			CurrentRoundTripTime: time.Duration(p.CurrentRoundTripTime * float64(time.Second)),
		})
	}

	return out
}

// Close tears down the ICE agent.
func (c *ICECollaborator) Close() error {
	return c.agent.Close()
}

// DTLSCollaborator wraps a pion/dtls connection established over the ICE
// collaborator's single 5-tuple.
type DTLSCollaborator struct {
	mu   sync.Mutex
	conn *dtls.Conn
}

// Handshake performs the DTLS handshake as client or server depending on
// the negotiated a=setup attribute.
func (d *DTLSCollaborator) Handshake(ctx context.Context, iceConn *ice.Conn, cfg *dtls.Config, isClient bool) error {
	var conn *dtls.Conn
	var err error
	if isClient {
		conn, err = dtls.ClientWithContext(ctx, iceConn, cfg)
	} else {
		conn, err = dtls.ServerWithContext(ctx, iceConn, cfg)
	}
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()

	return nil
}

// ExportSRTPKeys derives SRTP/SRTCP keying material per RFC 5764 §4.2 using
// the completed DTLS handshake.
func (d *DTLSCollaborator) ExportSRTPKeys(profile srtp.ProtectionProfile) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	keyLen, err := profile.KeyLength()
	if err != nil {
		return nil, err
	}
	saltLen, err := profile.SaltLength()
	if err != nil {
		return nil, err
	}

	return d.conn.ExportKeyingMaterial("EXTRACTOR-dtls_srtp", nil, 2*(keyLen+saltLen))
}

// Conn returns the established DTLS connection.
func (d *DTLSCollaborator) Conn() *dtls.Conn {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.conn
}

// Close tears down the DTLS connection.
func (d *DTLSCollaborator) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}

	return d.conn.Close()
}

// SRTPCollaborator wraps the SRTP/SRTCP contexts used to protect and
// unprotect every RTP/RTCP packet crossing the single BUNDLEd 5-tuple.
type SRTPCollaborator struct {
	mu         sync.Mutex
	rtpCtx     *srtp.Context
	rtcpCtx    *srtp.Context
}

// NewSRTPCollaborator derives SRTP read/write contexts from exported DTLS
// keying material, split per RFC 5764 §4.2 into client/server write keys.
func NewSRTPCollaborator(profile srtp.ProtectionProfile, keyingMaterial []byte, isClient bool) (*SRTPCollaborator, error) {
	keyLen, err := profile.KeyLength()
	if err != nil {
		return nil, err
	}
	saltLen, err := profile.SaltLength()
	if err != nil {
		return nil, err
	}

	offset := 0
	clientWriteKey := append([]byte{}, keyingMaterial[offset:offset+keyLen]...)
	offset += keyLen
	serverWriteKey := append([]byte{}, keyingMaterial[offset:offset+keyLen]...)
	offset += keyLen
	clientWriteSalt := append([]byte{}, keyingMaterial[offset:offset+saltLen]...)
	offset += saltLen
	serverWriteSalt := append([]byte{}, keyingMaterial[offset:offset+saltLen]...)

	clientWriteKey = append(clientWriteKey, clientWriteSalt...)
	serverWriteKey = append(serverWriteKey, serverWriteSalt...)

	writeKey, readKey := serverWriteKey, clientWriteKey
	if isClient {
		writeKey, readKey = clientWriteKey, serverWriteKey
	}

	writeCtx, err := srtp.CreateContext(writeKey, profile)
	if err != nil {
		return nil, err
	}
	readCtx, err := srtp.CreateContext(readKey, profile)
	if err != nil {
		return nil, err
	}

	return &SRTPCollaborator{rtpCtx: writeCtx, rtcpCtx: readCtx}, nil
}

// Protect encrypts and authenticates an outbound RTP packet into a newly
// allocated buffer.
func (s *SRTPCollaborator) Protect(decrypted []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rtpCtx.EncryptRTP(nil, decrypted, nil)
}

// Unprotect decrypts and authenticates an inbound SRTP packet.
func (s *SRTPCollaborator) Unprotect(encrypted []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rtcpCtx.DecryptRTP(nil, encrypted, nil)
}

// ProbeSTUNServer sends a single Binding Request to addr and returns the
// server-reflexive address it reports, confirming a configured ICE server
// is reachable before it is handed to the ICE agent.
func ProbeSTUNServer(ctx context.Context, addr string) (net.Addr, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	msg, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(msg.Raw); err != nil {
		return nil, err
	}

	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}

	reply := &stun.Message{Raw: buf[:n]}
	if err := reply.Decode(); err != nil {
		return nil, err
	}

	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(reply); err != nil {
		return nil, err
	}

	return &net.UDPAddr{IP: xorAddr.IP, Port: xorAddr.Port}, nil
}

// GenerateTURNCredentials mints an ephemeral username/password pair for a
// TURN server configured with long-term, REST-API-style shared-secret
// authentication (https://datatracker.ietf.org/doc/html/draft-uberti-behave-turn-rest),
// the credential scheme ICEServer.Credential assumes when a server requires
// per-session rotation rather than a static password.
func GenerateTURNCredentials(sharedSecret string, ttl time.Duration, urls []string) (ICEServer, error) {
	username, password, err := turn.GenerateLongTermCredentials(sharedSecret, ttl)
	if err != nil {
		return ICEServer{}, fmt.Errorf("generate turn credentials: %w", err)
	}

	return ICEServer{URLs: urls, Username: username, Credential: password}, nil
}

// netFromTransport adapts a transport.Net to the vnet the ICE agent config
// expects, so a caller testing BUNDLE negotiation end-to-end can run the
// whole PeerConnection over a simulated network instead of real sockets.
func netFromTransport(n transport.Net) *ice.AgentConfig {
	return WithVNet(&ice.AgentConfig{}, n)
}
