package webrtc

import (
	"sync"

	"github.com/pion/rtp"
)

// KeyframeDetector reports whether a payload begins a new keyframe for its
// codec, used by the Munger to gate encoding switches.
type KeyframeDetector func(payload []byte) bool

// Munger rewrites sequence numbers and timestamps so that RTP forwarded
// from a changing set of input encodings is continuous on a single output
// track.
type Munger struct {
	mu sync.Mutex

	detectKeyframe KeyframeDetector
	clockRate      uint32
	expectedFPS    uint32

	haveOutput   bool
	lastOutSeq   uint16
	lastOutTS    uint32

	switching    bool
	haveOffsets  bool
	deltaSeq     uint16
	deltaTS      uint32
	switchingSSRC uint32
}

// NewMunger constructs a Munger for a track clocked at clockRate, expecting
// expectedFPS frames per second from the currently selected encoding.
func NewMunger(clockRate, expectedFPS uint32, detect KeyframeDetector) *Munger {
	return &Munger{
		clockRate:      clockRate,
		expectedFPS:    expectedFPS,
		detectKeyframe: detect,
	}
}

// Update marks the munger "switching": the next packet recomputes
// (Δseq, Δts) so the output stays continuous, and any non-keyframe packet
// arriving before a keyframe from the new source is dropped.
func (m *Munger) Update() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.switching = true
	m.haveOffsets = false
}

// Munge rewrites pkt's sequence number and timestamp in place for
// continuous output, and reports whether it should be forwarded (false
// means: drop, this is a non-keyframe packet from a source still awaiting
// its first keyframe after Update).
func (m *Munger) Munge(pkt *rtp.Packet) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.switching {
		if !m.haveOffsets || pkt.SSRC != m.switchingSSRC {
			// Either the first packet since Update, or a packet from yet
			// another source arrived before the one we locked onto produced
			// a second packet confirming it held the stream; (re-)arm on
			// this source's next keyframe.
			if m.detectKeyframe != nil && !m.detectKeyframe(pkt.Payload) {
				return false
			}

			var wantSeq uint16
			var wantTS uint32
			if m.haveOutput {
				wantSeq = m.lastOutSeq + 1
				step := uint32(0)
				if m.expectedFPS != 0 {
					step = m.clockRate / m.expectedFPS
				}
				wantTS = m.lastOutTS + step
			} else {
				wantSeq = pkt.SequenceNumber
				wantTS = pkt.Timestamp
			}
			m.deltaSeq = wantSeq - pkt.SequenceNumber
			m.deltaTS = wantTS - pkt.Timestamp
			m.haveOffsets = true
			m.switchingSSRC = pkt.SSRC
		} else {
			// A second packet from the same source we locked onto: the
			// switch is settled.
			m.switching = false
		}
	}

	pkt.SequenceNumber += m.deltaSeq
	pkt.Timestamp += m.deltaTS

	m.lastOutSeq = pkt.SequenceNumber
	m.lastOutTS = pkt.Timestamp
	m.haveOutput = true

	return true
}
