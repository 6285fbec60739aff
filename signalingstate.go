package webrtc

// SignalingState is one of the six states of the JSEP negotiation state
// machine: the five negotiation states plus closed.
type SignalingState int

// Recognized signaling states.
const (
	SignalingStateStable SignalingState = iota + 1
	SignalingStateHaveLocalOffer
	SignalingStateHaveRemoteOffer
	SignalingStateHaveLocalPranswer
	SignalingStateHaveRemotePranswer
	SignalingStateClosed
)

func (s SignalingState) String() string {
	switch s {
	case SignalingStateStable:
		return "stable"
	case SignalingStateHaveLocalOffer:
		return "have-local-offer"
	case SignalingStateHaveRemoteOffer:
		return "have-remote-offer"
	case SignalingStateHaveLocalPranswer:
		return "have-local-pranswer"
	case SignalingStateHaveRemotePranswer:
		return "have-remote-pranswer"
	case SignalingStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// signalingOp is the operation half of the signalingTransitions key: the
// table is keyed by (current state, operation) and yields the new
// signaling state, straight out of the JSEP state machine table.
type signalingOp struct {
	local bool // true for set_local, false for set_remote
	typ   SDPType
}

var signalingTransitions = map[SignalingState]map[signalingOp]SignalingState{
	SignalingStateStable: {
		{local: true, typ: SDPTypeOffer}:   SignalingStateHaveLocalOffer,
		{local: false, typ: SDPTypeOffer}:  SignalingStateHaveRemoteOffer,
	},
	SignalingStateHaveLocalOffer: {
		{local: false, typ: SDPTypeAnswer}:   SignalingStateStable,
		{local: false, typ: SDPTypePranswer}: SignalingStateHaveRemotePranswer,
		{local: true, typ: SDPTypeOffer}:     SignalingStateHaveLocalOffer,
	},
	SignalingStateHaveRemoteOffer: {
		{local: true, typ: SDPTypeAnswer}:   SignalingStateStable,
		{local: true, typ: SDPTypePranswer}: SignalingStateHaveLocalPranswer,
		{local: false, typ: SDPTypeOffer}:   SignalingStateHaveRemoteOffer,
	},
	SignalingStateHaveLocalPranswer: {
		{local: false, typ: SDPTypeAnswer}: SignalingStateStable,
	},
	SignalingStateHaveRemotePranswer: {
		{local: true, typ: SDPTypeAnswer}: SignalingStateStable,
	},
}

// nextSignalingState returns the state reached from cur by applying the
// given operation, or an error if the transition is illegal. A rollback is
// legal from any state other than stable and always returns to stable.
func nextSignalingState(cur SignalingState, local bool, typ SDPType) (SignalingState, error) {
	if typ == SDPTypeRollback {
		if cur == SignalingStateStable {
			return 0, &InvalidStateError{Err: ErrInvalidState}
		}

		return SignalingStateStable, nil
	}

	next, ok := signalingTransitions[cur][signalingOp{local: local, typ: typ}]
	if !ok {
		return 0, &InvalidStateError{Err: ErrInvalidState}
	}

	return next, nil
}
