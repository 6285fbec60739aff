package webrtc

import (
	"sync"
	"time"

	"github.com/pion/randutil"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

const rtxCacheSize = 1024

// RTPSender is the per-transceiver outbound pipeline.
type RTPSender struct {
	owner *RTPTransceiver

	mu sync.Mutex

	ssrc    uint32
	rtxSSRC uint32
	haveRTX bool

	trackID string

	codec    RTPCodecParameters
	rtxCodec RTPCodecParameters
	haveRTXCodec bool

	extensions []RTPHeaderExtension
	midExtID   int

	lastSeq    uint16
	haveLastSeq bool

	cache [rtxCacheSize]*rtp.Packet

	packetsSent uint64
	bytesSent   uint64
	markersSent uint64
	nackCount   uint64

	sr *SenderReportRecorder
}

func newRTPSender(owner *RTPTransceiver) *RTPSender {
	return &RTPSender{
		owner: owner,
		ssrc:  randutil.NewMathRandomGenerator().Uint32(),
	}
}

// GetSenderReport builds the sender's current Sender Report, or the zero
// value with ok false if no codec has been configured yet.
func (s *RTPSender) GetSenderReport(now time.Time) (report rtcp.SenderReport, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sr == nil {
		return rtcp.SenderReport{}, false
	}

	return s.sr.GetReport(s.ssrc, now), true
}

// SSRC returns the sender's primary ssrc.
func (s *RTPSender) SSRC() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ssrc
}

// configure is called by negotiation once a codec/extension set and an rtx
// pairing (if any) have been settled for this sender.
func (s *RTPSender) configure(codec RTPCodecParameters, rtxCodec RTPCodecParameters, haveRTX bool, exts []RTPHeaderExtension) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codec = codec
	s.rtxCodec = rtxCodec
	s.haveRTXCodec = haveRTX
	s.extensions = exts
	if s.sr == nil {
		s.sr = NewSenderReportRecorder(codec.ClockRate)
	}
	s.midExtID = 0
	for _, e := range exts {
		if e.URI == ExtensionURIMid {
			s.midExtID = e.ID
		}
	}
	if haveRTX && !s.haveRTX {
		s.rtxSSRC = randutil.NewMathRandomGenerator().Uint32()
		s.haveRTX = true
	}
}

// SendPacket stamps the sender's
// ssrc/payload type, injects the mid extension, caches the packet for RTX,
// and returns the wire-ready packet. It handles primary packets only;
// retransmits are produced internally by ServiceNACK.
func (s *RTPSender) SendPacket(pkt *rtp.Packet) (*rtp.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := clonePacket(pkt)
	out.SSRC = s.ssrc
	out.PayloadType = s.codec.PayloadType

	if s.midExtID != 0 {
		if err := out.SetExtension(uint8(s.midExtID), []byte(s.owner.Mid())); err != nil {
			return nil, err
		}
	}

	s.cache[out.SequenceNumber%rtxCacheSize] = out

	s.packetsSent++
	s.bytesSent += uint64(len(out.Payload))
	if out.Marker {
		s.markersSent++
	}
	if s.sr != nil {
		s.sr.RecordPacket(out.Timestamp, len(out.Payload), time.Now())
	}

	return out, nil
}

// ServiceNACK retransmits cached packets over RTX: for each requested
// sequence number, if the original packet is still cached, rewrap it per
// RFC 4588 §4 (original sequence number prefixed to the payload, rtx ssrc
// and payload type substituted) and return it for resend; cache misses are
// silently skipped, matching the at-most-best-effort nature of NACK.
func (s *RTPSender) ServiceNACK(seqNumbers []uint16) []*rtp.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.haveRTX {
		return nil
	}

	var out []*rtp.Packet
	for _, seq := range seqNumbers {
		orig := s.cache[seq%rtxCacheSize]
		if orig == nil || orig.SequenceNumber != seq {
			continue
		}

		rtxPkt := clonePacket(orig)
		rtxPkt.SSRC = s.rtxSSRC
		rtxPkt.PayloadType = s.rtxCodec.PayloadType
		if !s.haveLastSeq {
			s.lastSeq = 0
		}
		rtxPkt.SequenceNumber = s.lastSeq
		s.lastSeq++
		s.haveLastSeq = true

		payload := make([]byte, 2+len(orig.Payload))
		payload[0] = byte(orig.SequenceNumber >> 8)
		payload[1] = byte(orig.SequenceNumber)
		copy(payload[2:], orig.Payload)
		rtxPkt.Payload = payload

		s.nackCount++
		out = append(out, rtxPkt)
	}

	return out
}

func clonePacket(pkt *rtp.Packet) *rtp.Packet {
	out := *pkt
	out.Payload = append([]byte(nil), pkt.Payload...)

	return &out
}

// OutboundRTPStats is the outbound_rtp stats record for one sender.
type OutboundRTPStats struct {
	Timestamp   time.Time
	ID          string
	SSRC        uint32
	PacketsSent uint64
	BytesSent   uint64
	MarkersSent uint64
}

// GetStats returns the sender's current outbound_rtp stats record.
func (s *RTPSender) GetStats(now time.Time) OutboundRTPStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return OutboundRTPStats{
		Timestamp:   now,
		SSRC:        s.ssrc,
		PacketsSent: s.packetsSent,
		BytesSent:   s.bytesSent,
		MarkersSent: s.markersSent,
	}
}
