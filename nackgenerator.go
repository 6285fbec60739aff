package webrtc

import (
	"sort"
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/pion/rtcpeer/internal/seqnum"
)

// defaultMaxNack is the default retry ceiling for a missing sequence number.
const defaultMaxNack = 2

// NACKGenerator tracks missing sequence numbers for one ssrc and emits
// RFC 4585 Generic NACK feedback.
type NACKGenerator struct {
	mu sync.Mutex

	maxNack int

	haveLast   bool
	lastSeq    uint16
	lost       map[uint16]int // seq → retry count
}

// NewNACKGenerator constructs a generator with the default retry ceiling.
func NewNACKGenerator() *NACKGenerator {
	return &NACKGenerator{
		maxNack: defaultMaxNack,
		lost:    map[uint16]int{},
	}
}

// RecordPacket feeds one received RTP packet to the generator: every
// sequence number in the gap (last_seq_no, pkt.seq) is inserted with retry
// count 0, and the packet's own sequence number is removed if present.
func (g *NACKGenerator) RecordPacket(pkt *rtp.Packet) {
	g.mu.Lock()
	defer g.mu.Unlock()

	seq := pkt.SequenceNumber
	if !g.haveLast {
		g.haveLast = true
		g.lastSeq = seq
		delete(g.lost, seq)

		return
	}

	if seqnum.Uint16LaterThan(g.lastSeq, seq) {
		for s := g.lastSeq + 1; s != seq; s++ {
			g.lost[s] = 0
		}
		g.lastSeq = seq
	}

	delete(g.lost, seq)
}

// GetFeedback returns an RFC 4585 Generic NACK for every still-missing
// sequence number, or nil if there is nothing to report. Entries are
// grouped into {pid, blp} pairs; after emission retry counts are
// incremented and entries exceeding max_nack are dropped.
func (g *NACKGenerator) GetFeedback(senderSSRC, mediaSSRC uint32) *rtcp.TransportLayerNack {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.lost) == 0 {
		return nil
	}

	seqs := make([]uint16, 0, len(g.lost))
	for s := range g.lost {
		seqs = append(seqs, s)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqnum.Uint16LaterThan(seqs[i], seqs[j]) })

	pairs := make([]rtcp.NackPair, 0)
	pid := seqs[0]
	var blp uint16
	for i := 1; i < len(seqs); i++ {
		diff := seqs[i] - pid
		if diff > 16 {
			pairs = append(pairs, rtcp.NackPair{PacketID: pid, LostPackets: rtcp.PacketBitmap(blp)})
			pid = seqs[i]
			blp = 0

			continue
		}
		blp |= 1 << (diff - 1)
	}
	pairs = append(pairs, rtcp.NackPair{PacketID: pid, LostPackets: rtcp.PacketBitmap(blp)})

	for s := range g.lost {
		g.lost[s]++
		if g.lost[s] > g.maxNack {
			delete(g.lost, s)
		}
	}

	return &rtcp.TransportLayerNack{
		SenderSSRC: senderSSRC,
		MediaSSRC:  mediaSSRC,
		Nacks:      pairs,
	}
}
