package webrtc

import "sync"

// RTPTransceiverDirection is one of the four negotiable transceiver
// directions. "Stopped" is tracked separately via the stopped flag rather
// than as a direction value so that "the current direction" and "is this
// transceiver gone" stay independently inspectable.
type RTPTransceiverDirection int

// Recognized directions.
const (
	RTPTransceiverDirectionSendrecv RTPTransceiverDirection = iota + 1
	RTPTransceiverDirectionSendonly
	RTPTransceiverDirectionRecvonly
	RTPTransceiverDirectionInactive
)

func (d RTPTransceiverDirection) String() string {
	switch d {
	case RTPTransceiverDirectionSendrecv:
		return "sendrecv"
	case RTPTransceiverDirectionSendonly:
		return "sendonly"
	case RTPTransceiverDirectionRecvonly:
		return "recvonly"
	case RTPTransceiverDirectionInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

func (d RTPTransceiverDirection) hasSend() bool {
	return d == RTPTransceiverDirectionSendrecv || d == RTPTransceiverDirectionSendonly
}

func (d RTPTransceiverDirection) hasRecv() bool {
	return d == RTPTransceiverDirectionSendrecv || d == RTPTransceiverDirectionRecvonly
}

// answerDirection implements the JSEP direction algebra table:
// given the remote m-line's direction and the local transceiver's desired
// direction, returns the direction that belongs in the answer.
func answerDirection(remote, local RTPTransceiverDirection) RTPTransceiverDirection {
	table := map[RTPTransceiverDirection]map[RTPTransceiverDirection]RTPTransceiverDirection{
		RTPTransceiverDirectionSendrecv: {
			RTPTransceiverDirectionSendrecv: RTPTransceiverDirectionSendrecv,
			RTPTransceiverDirectionSendonly: RTPTransceiverDirectionSendonly,
			RTPTransceiverDirectionRecvonly: RTPTransceiverDirectionRecvonly,
			RTPTransceiverDirectionInactive: RTPTransceiverDirectionInactive,
		},
		RTPTransceiverDirectionSendonly: {
			RTPTransceiverDirectionSendrecv: RTPTransceiverDirectionRecvonly,
			RTPTransceiverDirectionSendonly: RTPTransceiverDirectionInactive,
			RTPTransceiverDirectionRecvonly: RTPTransceiverDirectionRecvonly,
			RTPTransceiverDirectionInactive: RTPTransceiverDirectionInactive,
		},
		RTPTransceiverDirectionRecvonly: {
			RTPTransceiverDirectionSendrecv: RTPTransceiverDirectionSendonly,
			RTPTransceiverDirectionSendonly: RTPTransceiverDirectionSendonly,
			RTPTransceiverDirectionRecvonly: RTPTransceiverDirectionInactive,
			RTPTransceiverDirectionInactive: RTPTransceiverDirectionInactive,
		},
		RTPTransceiverDirectionInactive: {
			RTPTransceiverDirectionSendrecv: RTPTransceiverDirectionInactive,
			RTPTransceiverDirectionSendonly: RTPTransceiverDirectionInactive,
			RTPTransceiverDirectionRecvonly: RTPTransceiverDirectionInactive,
			RTPTransceiverDirectionInactive: RTPTransceiverDirectionInactive,
		},
	}

	return table[remote][local]
}

// RTPTransceiver pairs one RTPSender and one RTPReceiver, owning a single
// mid across renegotiations.
type RTPTransceiver struct {
	mu sync.Mutex

	id   uint64
	mid  string // empty until first successful negotiation; immutable thereafter
	kind RTPCodecType

	direction          RTPTransceiverDirection // current, i.e. last negotiated
	requestedDirection RTPTransceiverDirection // pending, set by the application

	codecs     []RTPCodecParameters
	extensions []RTPHeaderExtension

	sender   *RTPSender
	receiver *RTPReceiver

	stopping bool
	stopped  bool
	fired    bool // true once this transceiver has appeared in an applied description
}

func newRTPTransceiver(id uint64, kind RTPCodecType, direction RTPTransceiverDirection) *RTPTransceiver {
	t := &RTPTransceiver{
		id:                 id,
		kind:               kind,
		direction:          direction,
		requestedDirection: direction,
	}
	t.sender = newRTPSender(t)
	t.receiver = newRTPReceiver(t)

	return t
}

// Mid returns the transceiver's assigned mid, or "" if it has never been
// negotiated.
func (t *RTPTransceiver) Mid() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.mid
}

// setMid assigns the mid exactly once; subsequent calls with a different
// value are a programming error.
func (t *RTPTransceiver) setMid(mid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mid == "" {
		t.mid = mid
	}
}

// Kind returns the transceiver's media kind.
func (t *RTPTransceiver) Kind() RTPCodecType { return t.kind }

// Direction returns the current (last negotiated) direction.
func (t *RTPTransceiver) Direction() RTPTransceiverDirection {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.direction
}

// Sender returns the transceiver's sole RTPSender.
func (t *RTPTransceiver) Sender() *RTPSender { return t.sender }

// Receiver returns the transceiver's sole RTPReceiver.
func (t *RTPTransceiver) Receiver() *RTPReceiver { return t.receiver }

// Stopped reports whether the transceiver has been irrevocably stopped.
func (t *RTPTransceiver) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stopped
}

// Stop irreversibly stops the transceiver: once stopped, no packets flow
// either way.
func (t *RTPTransceiver) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopping = true
	t.stopped = true
	t.direction = RTPTransceiverDirectionInactive
}

// setDirection records a newly negotiated direction and whether this is the
// transceiver's first appearance in an applied description; the caller
// (sdputils reconciliation) uses the before/after pair to decide whether to
// emit a track event.
func (t *RTPTransceiver) setDirection(d RTPTransceiverDirection) (was RTPTransceiverDirection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	was = t.direction
	t.direction = d
	t.fired = true

	return was
}

func (t *RTPTransceiver) setCodecsAndExtensions(codecs []RTPCodecParameters, exts []RTPHeaderExtension) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.codecs = codecs
	t.extensions = exts
}

// Codecs returns the negotiated codec list, ordered, first entry preferred.
func (t *RTPTransceiver) Codecs() []RTPCodecParameters {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]RTPCodecParameters(nil), t.codecs...)
}

// Extensions returns the negotiated header extension list.
func (t *RTPTransceiver) Extensions() []RTPHeaderExtension {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]RTPHeaderExtension(nil), t.extensions...)
}
