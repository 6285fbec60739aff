package webrtc

import (
	"sync"

	"github.com/pion/rtp"
)

// SimulcastDemuxer routes an RTP packet within a single mid to the rid
// (simulcast layer id) that owns it.
type SimulcastDemuxer struct {
	mu sync.Mutex

	ridExtID         int
	repairedRidExtID int

	ssrcToRid map[uint32]string
}

// NewSimulcastDemuxer constructs a SimulcastDemuxer for the given negotiated
// rid and repaired-rid extension ids (0 if not negotiated).
func NewSimulcastDemuxer(ridExtID, repairedRidExtID int) *SimulcastDemuxer {
	return &SimulcastDemuxer{
		ridExtID:         ridExtID,
		repairedRidExtID: repairedRidExtID,
		ssrcToRid:        map[uint32]string{},
	}
}

// DemuxPacket resolves which rid a packet belongs to: a packet carrying the
// repaired-rid extension (an rtx stream's identifier) is associated with the
// rid of its
// primary; a packet carrying neither extension inherits whatever rid its
// ssrc is already known by. rid is "" when no simulcast is in use.
func (d *SimulcastDemuxer) DemuxPacket(pkt *rtp.Packet) (rid string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ridExtID != 0 {
		if payload := pkt.GetExtension(uint8(d.ridExtID)); payload != nil {
			rid = string(payload)
			d.ssrcToRid[pkt.SSRC] = rid

			return rid
		}
	}

	if d.repairedRidExtID != 0 {
		if payload := pkt.GetExtension(uint8(d.repairedRidExtID)); payload != nil {
			rid = string(payload)
			d.ssrcToRid[pkt.SSRC] = rid

			return rid
		}
	}

	return d.ssrcToRid[pkt.SSRC]
}
