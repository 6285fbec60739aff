package webrtc

import (
	"fmt"
	"time"

	"github.com/pion/ice/v4"
	"github.com/pion/logging"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/pion/rtcpeer/internal/util"
	"github.com/pion/rtcpeer/pkg/dump"
)

// PeerConnection is the single-threaded actor that owns session
// negotiation, the transceiver list, the demuxer, and the ICE/DTLS/SRTP
// collaborators.
type PeerConnection struct {
	config *Configuration

	ops *operations

	log logging.LeveledLogger

	signalingState SignalingState
	localDesc      *SessionDescription
	remoteDesc     *SessionDescription

	transceivers      []*RTPTransceiver
	nextTransceiverID uint64

	demuxer *Demuxer

	ice  *ICECollaborator
	dtls *DTLSCollaborator
	srtp *SRTPCollaborator

	connState         ConnectionState
	negotiationNeeded bool
	negotiationQueued bool

	closed atomicBool

	sink EventSink

	dumpWriters map[string]*dump.Writer // mid -> recorder dump, set via SetDumpWriter
	ridIndex    map[string]map[string]uint8

	defaultCNAME string
}

// SetDumpWriter attaches a persisted recorder dump for mid:
// every inbound packet received on that mid is additionally appended as a
// dump.Record. Passing nil detaches it.
func (pc *PeerConnection) SetDumpWriter(mid string, w *dump.Writer) {
	pc.enqueue(func() {
		if pc.dumpWriters == nil {
			pc.dumpWriters = map[string]*dump.Writer{}
		}
		if w == nil {
			delete(pc.dumpWriters, mid)

			return
		}
		pc.dumpWriters[mid] = w
	})
}

func (pc *PeerConnection) ridIndexFor(mid, rid string) uint8 {
	if pc.ridIndex == nil {
		pc.ridIndex = map[string]map[string]uint8{}
	}
	byRid, ok := pc.ridIndex[mid]
	if !ok {
		byRid = map[string]uint8{}
		pc.ridIndex[mid] = byRid
	}
	idx, ok := byRid[rid]
	if !ok {
		idx = uint8(len(byRid))
		byRid[rid] = idx
	}

	return idx
}

// NewPeerConnection constructs a PeerConnection from an immutable
// Configuration. Construction never blocks; the actor loop starts lazily,
// driven by the first enqueued operation. No ICE or DTLS collaborator is
// attached here, so no ICE gathering is started.
func NewPeerConnection(config *Configuration) (*PeerConnection, error) {
	if config == nil {
		return nil, ErrInvalidConfiguration
	}
	sink := config.ControllingProcess
	if sink == nil {
		sink = EventSinkFunc(func(Event) {})
	}

	loggerFactory := config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	pc := &PeerConnection{
		config:         config,
		ops:            newOperations(),
		log:            loggerFactory.NewLogger("peerconnection"),
		signalingState: SignalingStateStable,
		demuxer:        NewDemuxer(),
		sink:           sink,
		defaultCNAME:   util.RandSeq(16),
	}

	return pc, nil
}

// emit delivers one event to the configured sink, preserving the order in
// which the actor produced it.
func (pc *PeerConnection) emit(ev Event) {
	pc.sink.Handle(ev)
}

// enqueue schedules fn to run on the actor goroutine, FIFO with every other
// enqueued operation.
func (pc *PeerConnection) enqueue(fn func()) {
	pc.ops.enqueue(fn)
}

// SignalingState returns the current signaling state.
func (pc *PeerConnection) SignalingState() SignalingState {
	return pc.signalingState
}

// CreateOffer implements create_offer: it assigns mids to every
// unassociated transceiver and marshals the current transceiver list into
// an SDP offer. cb is invoked on the actor goroutine.
func (pc *PeerConnection) CreateOffer(cb func(SessionDescription, error)) {
	pc.enqueue(func() {
		for _, t := range pc.transceivers {
			if t.Mid() == "" && !t.Stopped() {
				pc.nextTransceiverID++
				t.setMid(fmt.Sprintf("%d", pc.nextTransceiverID))
			}
		}

		raw := buildSessionDescription(sdpBuildParams{
			transceivers:    pc.transceivers,
			iceUfrag:        "offerufrag",
			icePwd:          "offerpwdofferpwdofferpwd",
			fingerprint:     "00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00",
			fingerprintHash: "sha-256",
			setupRole:       "actpass",
		})

		cb(SessionDescription{Type: SDPTypeOffer, SDP: raw}, nil)
	})
}

// CreateAnswer implements create_answer: it marshals the current
// (already-reconciled-by-SetRemoteDescription) transceiver list into an SDP
// answer.
func (pc *PeerConnection) CreateAnswer(cb func(SessionDescription, error)) {
	pc.enqueue(func() {
		if pc.signalingState != SignalingStateHaveRemoteOffer {
			cb(SessionDescription{}, &InvalidStateError{Err: ErrInvalidState})

			return
		}

		raw := buildSessionDescription(sdpBuildParams{
			transceivers:    pc.transceivers,
			iceUfrag:        "answerufrag",
			icePwd:          "answerpwdanswerpwdanswer",
			fingerprint:     "00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00",
			fingerprintHash: "sha-256",
			setupRole:       "active",
		})

		cb(SessionDescription{Type: SDPTypeAnswer, SDP: raw}, nil)
	})
}

// SetLocalDescription implements set_local_description: it validates the
// signaling-state transition, stores the description, and (for an answer)
// leaves the PeerConnection ready to exchange media.
func (pc *PeerConnection) SetLocalDescription(sd SessionDescription, cb func(error)) {
	pc.enqueue(func() {
		next, err := nextSignalingState(pc.signalingState, true, sd.Type)
		if err != nil {
			cb(err)

			return
		}

		desc := sd
		pc.localDesc = &desc
		prev := pc.signalingState
		pc.signalingState = next
		if prev != next {
			pc.emit(Event{Type: EventSignalingStateChange, SignalingState: next})
		}
		pc.maybeFireCoalescedNegotiationNeeded()

		cb(nil)
	})
}

// maybeFireCoalescedNegotiationNeeded emits a single negotiation_needed
// event once the signaling state returns to stable, if any negotiation
// trigger was coalesced while a negotiation was already in flight.
func (pc *PeerConnection) maybeFireCoalescedNegotiationNeeded() {
	if pc.signalingState != SignalingStateStable {
		return
	}
	pc.negotiationQueued = false
	if pc.negotiationNeeded {
		pc.negotiationNeeded = false
		pc.scheduleNegotiationNeeded()
	}
}

// SetRemoteDescription implements set_remote_description: it validates the
// remote SDP, reconciles the transceiver list against it, rebuilds the
// demuxer, fires track events, and advances the signaling
// state machine.
func (pc *PeerConnection) SetRemoteDescription(sd SessionDescription, cb func(error)) {
	pc.enqueue(func() {
		next, err := nextSignalingState(pc.signalingState, false, sd.Type)
		if err != nil {
			cb(err)

			return
		}

		parsed, perr := parseSDP(sd.SDP)
		if perr != nil {
			cb(perr)

			return
		}
		if verr := validateRemoteDescription(parsed); verr != nil {
			cb(verr)

			return
		}

		localSets := map[RTPCodecType]CodecSet{
			RTPCodecTypeAudio: pc.config.CodecSetFor(RTPCodecTypeAudio),
			RTPCodecTypeVideo: pc.config.CodecSetFor(RTPCodecTypeVideo),
		}

		updated, results, rerr := reconcileTransceivers(pc.transceivers, parsed, localSets, &pc.nextTransceiverID)
		if rerr != nil {
			cb(rerr)

			return
		}
		pc.transceivers = updated

		ptToMid := map[uint8]string{}
		for _, t := range pc.transceivers {
			for _, c := range t.Codecs() {
				ptToMid[c.PayloadType] = t.Mid()
			}
		}
		midExtID := 0
		for _, t := range pc.transceivers {
			for _, e := range t.Extensions() {
				if e.URI == ExtensionURIMid {
					midExtID = e.ID
				}
			}
		}
		pc.demuxer.Rebuild(midExtID, ptToMid)

		for _, r := range results {
			if r.firedTrack {
				pc.emit(Event{
					Type: EventTrack,
					Track: &ReceiverTrack{
						Mid:      r.transceiver.Mid(),
						Kind:     r.transceiver.Kind(),
						Receiver: r.transceiver.Receiver(),
					},
				})
			}
		}

		desc := sd
		pc.remoteDesc = &desc
		prev := pc.signalingState
		pc.signalingState = next
		if prev != next {
			pc.emit(Event{Type: EventSignalingStateChange, SignalingState: next})
		}
		pc.maybeFireCoalescedNegotiationNeeded()

		cb(nil)
	})
}

// AddTransceiver implements add_transceiver: it creates a new transceiver
// of the requested kind/direction and schedules negotiation_needed if the
// signaling state is currently stable.
func (pc *PeerConnection) AddTransceiver(kind RTPCodecType, direction RTPTransceiverDirection, cb func(*RTPTransceiver)) {
	pc.enqueue(func() {
		pc.nextTransceiverID++
		t := newRTPTransceiver(pc.nextTransceiverID, kind, direction)
		pc.transceivers = append(pc.transceivers, t)
		pc.scheduleNegotiationNeeded()
		cb(t)
	})
}

// RemoveTrack implements remove_track: it stops sending on the
// transceiver whose mid is mid (the transceiver itself is not stopped, only
// its send direction is retired) and schedules negotiation_needed.
func (pc *PeerConnection) RemoveTrack(mid string, cb func(error)) {
	pc.enqueue(func() {
		for _, t := range pc.transceivers {
			if t.Mid() != mid {
				continue
			}
			switch t.Direction() {
			case RTPTransceiverDirectionSendrecv:
				t.setDirection(RTPTransceiverDirectionRecvonly)
			case RTPTransceiverDirectionSendonly:
				t.setDirection(RTPTransceiverDirectionInactive)
			}
			pc.scheduleNegotiationNeeded()
			cb(nil)

			return
		}
		cb(ErrNoMatchingMid)
	})
}

func (pc *PeerConnection) scheduleNegotiationNeeded() {
	if pc.signalingState != SignalingStateStable {
		pc.negotiationNeeded = true

		return
	}
	if pc.negotiationQueued {
		return
	}
	pc.negotiationQueued = true
	pc.emit(Event{Type: EventNegotiationNeeded})
}

// AddICECandidate implements add_ice_candidate: an empty candidate string
// is the RFC 8839 end-of-candidates marker and is a no-op for the
// collaborator (it needs no remote-candidate bookkeeping).
func (pc *PeerConnection) AddICECandidate(candidate string, cb func(error)) {
	pc.enqueue(func() {
		if pc.ice == nil {
			cb(&InvalidStateError{Err: ErrInvalidState})

			return
		}
		if candidate == "" {
			cb(nil)

			return
		}

		cand, err := ice.UnmarshalCandidate(candidate)
		if err != nil {
			cb(err)

			return
		}

		cb(pc.ice.AddRemoteCandidate(cand))
	})
}

// SendRTP implements send_rtp: it looks up the transceiver owning mid and
// hands pkt to its RTPSender.
func (pc *PeerConnection) SendRTP(mid string, pkt *rtp.Packet, cb func(*rtp.Packet, error)) {
	pc.enqueue(func() {
		for _, t := range pc.transceivers {
			if t.Mid() != mid {
				continue
			}
			out, err := t.Sender().SendPacket(pkt)
			cb(out, err)

			return
		}
		cb(nil, ErrNoMatchingMid)
	})
}

// ReceiveRTP feeds one decrypted inbound RTP packet through the demuxer and
// the owning transceiver's receiver, emitting the resulting `rtp` event.
func (pc *PeerConnection) ReceiveRTP(pkt *rtp.Packet, arrival time.Time) {
	pc.enqueue(func() {
		mid, ok, err := pc.demuxer.DemuxPacket(pkt)
		if err != nil {
			pc.log.Errorf("fatal demux error: %v", err)
			pc.transitionToFailed()

			return
		}
		if !ok {
			pc.log.Warnf("dropping packet with no matching mid, ssrc=%d", pkt.SSRC)

			return
		}
		for _, t := range pc.transceivers {
			if t.Mid() != mid {
				continue
			}
			rid := t.Receiver().ReceivePacket(pkt, arrival)
			pc.emit(Event{
				Type:    EventRTP,
				TrackID: t.Receiver().TrackID(),
				RID:     rid,
				Packet:  pkt,
			})

			if w, ok := pc.dumpWriters[mid]; ok {
				raw, merr := pkt.Marshal()
				if merr == nil {
					_ = w.WriteRecord(dump.NewRecord(pc.ridIndexFor(mid, rid), arrival, raw))
				}
			}

			return
		}
	})
}

func (pc *PeerConnection) transitionToFailed() {
	pc.connState = ConnectionStateFailed
	pc.emit(Event{Type: EventConnectionStateChange, ConnectionState: ConnectionStateFailed})
}

// SendPLI implements send_pli: it builds and emits a Picture Loss
// Indication for the media ssrc the receiving transceiver is demuxing.
func (pc *PeerConnection) SendPLI(mid string, cb func(error)) {
	pc.enqueue(func() {
		for _, t := range pc.transceivers {
			if t.Mid() != mid {
				continue
			}
			pli := &rtcp.PictureLossIndication{MediaSSRC: t.Sender().SSRC()}
			pc.emit(Event{Type: EventRTCP, RTCPPackets: []rtcp.Packet{pli}})
			cb(nil)

			return
		}
		cb(ErrNoMatchingMid)
	})
}

// SendCNAME implements send_cname: it emits an RTCP Source Description
// carrying the CNAME item for mid's sender ssrc.
func (pc *PeerConnection) SendCNAME(mid, cname string, cb func(error)) {
	pc.enqueue(func() {
		if cname == "" {
			cname = pc.defaultCNAME
		}
		for _, t := range pc.transceivers {
			if t.Mid() != mid {
				continue
			}
			sdes := &rtcp.SourceDescription{
				Chunks: []rtcp.SourceDescriptionChunk{{
					Source: t.Sender().SSRC(),
					Items: []rtcp.SourceDescriptionItem{{
						Type: rtcp.SDESCNAME,
						Text: cname,
					}},
				}},
			}
			pc.emit(Event{Type: EventRTCP, RTCPPackets: []rtcp.Packet{sdes}})
			cb(nil)

			return
		}
		cb(ErrNoMatchingMid)
	})
}

// PeerConnectionStats is the full stats snapshot returned by get_stats
//: one outbound_rtp and a slice of inbound_rtp records per
// transceiver, plus the ICE collaborator's candidate_pair records.
type PeerConnectionStats struct {
	Outbound      []OutboundRTPStats
	Inbound       []InboundRTPStats
	CandidatePair []CandidatePairStats
}

// GetStats implements get_stats(now).
func (pc *PeerConnection) GetStats(now time.Time, cb func(PeerConnectionStats)) {
	pc.enqueue(func() {
		var stats PeerConnectionStats
		for _, t := range pc.transceivers {
			stats.Outbound = append(stats.Outbound, t.Sender().GetStats(now))
			stats.Inbound = append(stats.Inbound, t.Receiver().GetStats(now)...)
		}
		if pc.ice != nil {
			stats.CandidatePair = pc.ice.GetStats(now)
		}
		cb(stats)
	})
}

// GetTransceivers implements get_transceivers.
func (pc *PeerConnection) GetTransceivers(cb func([]*RTPTransceiver)) {
	pc.enqueue(func() {
		cb(append([]*RTPTransceiver(nil), pc.transceivers...))
	})
}

// Close implements close: it closes the pending-operation queue, stops
// every transceiver and any attached collaborators, and marks the
// PeerConnection closed. Operations already queued still run; operations
// enqueued after Close are dropped and their callbacks are never called,
// so no closed error is delivered to them. A close observed mid-operation never leaves
// the transceiver list partially updated, since every operation above
// commits its mutations only after its own validation succeeds.
func (pc *PeerConnection) Close() error {
	pc.closed.set(true)
	pc.ops.close()

	for _, t := range pc.transceivers {
		t.Stop()
	}

	if pc.dtls != nil {
		_ = pc.dtls.Close()
	}
	if pc.ice != nil {
		_ = pc.ice.Close()
	}

	pc.connState = ConnectionStateClosed
	pc.emit(Event{Type: EventConnectionStateChange, ConnectionState: ConnectionStateClosed})

	return nil
}
