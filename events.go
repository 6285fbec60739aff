package webrtc

import (
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// EventType discriminates the Event union. Dispatch on Type is a switch, not a runtime type
// assertion, matching the source's tagged-tuple events.
type EventType int

// Event types emitted to the controlling process.
const (
	EventTrack EventType = iota
	EventICECandidate
	EventConnectionStateChange
	EventICEConnectionStateChange
	EventSignalingStateChange
	EventNegotiationNeeded
	EventRTP
	EventRTCP
)

// Event is a single tagged message delivered to a Configuration's
// ControllingProcess. Only the field(s) relevant to Type are populated.
type Event struct {
	Type EventType

	// EventTrack
	Track *ReceiverTrack

	// EventICECandidate
	Candidate string

	// EventConnectionStateChange
	ConnectionState ConnectionState

	// EventICEConnectionStateChange
	ICEConnectionState string

	// EventSignalingStateChange
	SignalingState SignalingState

	// EventRTP
	TrackID string
	RID     string
	Packet  *rtp.Packet

	// EventRTCP
	RTCPPackets []rtcp.Packet
}

// ReceiverTrack describes the track exposed to the application when a
// receiver starts receiving.
type ReceiverTrack struct {
	Mid      string
	Kind     RTPCodecType
	Receiver *RTPReceiver
}

// EventSink is the destination for asynchronous events. Implementations must not block for long: the
// actor delivers events in production order and a slow sink stalls the
// PeerConnection.
type EventSink interface {
	Handle(Event)
}

// EventSinkFunc adapts a plain function to an EventSink.
type EventSinkFunc func(Event)

// Handle implements EventSink.
func (f EventSinkFunc) Handle(e Event) { f(e) }
