package webrtc

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/pion/rtcpeer/internal/seqnum"
)

// twccDeltaUnit is the 250µs unit recv deltas are expressed in (RFC
// draft-holmer-rmcat-transport-wide-cc-extensions).
const twccDeltaUnit = 250 * time.Microsecond

// twccWindow is the packet-arrival retention window.
const twccWindow = 500 * time.Millisecond

// TWCCRecorder maintains a sliding window of transport-wide sequence number
// to arrival timestamp, and emits Transport-wide Congestion Control
// feedback packets.
type TWCCRecorder struct {
	mu sync.Mutex

	extID int // negotiated transport-cc extension id

	ext      *seqnum.ExtendedSeq
	arrivals map[uint32]time.Duration // extended transport seq → arrival offset
	baseSeq  uint32
	endSeq   uint32
	started  bool
	epoch    time.Time

	fbPktCount uint8
}

// NewTWCCRecorder constructs a recorder for the negotiated transport-cc
// header extension id.
func NewTWCCRecorder(extID int) *TWCCRecorder {
	return &TWCCRecorder{
		extID:    extID,
		ext:      seqnum.NewExtendedSeq(),
		arrivals: map[uint32]time.Duration{},
	}
}

// RecordPacket records the arrival of one RTP packet carrying a
// transport-wide sequence number extension, and garbage-collects arrivals
// older than the retention window.
func (t *TWCCRecorder) RecordPacket(pkt *rtp.Packet, arrival time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.extID == 0 {
		return
	}
	payload := pkt.GetExtension(uint8(t.extID))
	if len(payload) < 2 {
		return
	}
	wireSeq := uint16(payload[0])<<8 | uint16(payload[1])

	if !t.started {
		t.started = true
		t.epoch = arrival
	}

	first := !t.hasBase()
	extSeq, _ := t.ext.Update(wireSeq)
	t.arrivals[extSeq] = arrival.Sub(t.epoch)

	if first || seqnum.Uint32Distance(t.baseSeq, extSeq) < 0 {
		t.baseSeq = extSeq
	}
	if first || seqnum.Uint32Distance(t.endSeq, extSeq) > 0 {
		t.endSeq = extSeq
	}

	cutoff := arrival.Sub(t.epoch) - twccWindow
	for seq, ts := range t.arrivals {
		if ts < cutoff {
			delete(t.arrivals, seq)
		}
	}
}

func (t *TWCCRecorder) hasBase() bool {
	return len(t.arrivals) > 0
}

type twccSymbol int

const (
	symbolNotReceived twccSymbol = iota
	symbolSmallDelta
	symbolLargeDelta
)

// GetFeedback builds one Transport-wide CC feedback packet covering the
// current [baseSeq, endSeq] window. It returns nil if no
// packets have been recorded.
func (t *TWCCRecorder) GetFeedback(senderSSRC, mediaSSRC uint32) *rtcp.TransportLayerCC {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasBase() {
		return nil
	}

	base := t.baseSeq
	end := t.endSeq
	count := uint32(seqnum.Uint32Distance(base, end)) + 1

	symbols := make([]twccSymbol, 0, count)
	deltas := make([]*rtcp.RecvDelta, 0, count)

	var prevTS time.Duration
	havePrev := false
	var refTime time.Duration

	for seq := base; ; seq++ {
		ts, ok := t.arrivals[seq]
		if !ok {
			symbols = append(symbols, symbolNotReceived)
		} else {
			if !havePrev {
				refTime = ts
				prevTS = ts
				havePrev = true
				symbols = append(symbols, symbolSmallDelta)
				deltas = append(deltas, &rtcp.RecvDelta{Type: rtcp.TypeTCCPacketReceivedSmallDelta, Delta: 0})
			} else {
				d := ts - prevTS
				units := int64(d / twccDeltaUnit)
				if units >= -128 && units <= 127 {
					symbols = append(symbols, symbolSmallDelta)
					deltas = append(deltas, &rtcp.RecvDelta{Type: rtcp.TypeTCCPacketReceivedSmallDelta, Delta: units * int64(twccDeltaUnit)})
				} else {
					symbols = append(symbols, symbolLargeDelta)
					deltas = append(deltas, &rtcp.RecvDelta{Type: rtcp.TypeTCCPacketReceivedLargeDelta, Delta: units * int64(twccDeltaUnit)})
				}
				prevTS = ts
			}
		}
		if seq == end {
			break
		}
	}

	chunks := packStatusChunks(symbols)

	t.fbPktCount++

	return &rtcp.TransportLayerCC{
		SenderSSRC:         senderSSRC,
		MediaSSRC:          mediaSSRC,
		BaseSequenceNumber: uint16(base),
		PacketStatusCount:  uint16(count),
		ReferenceTime:      uint32(refTime/(64*time.Millisecond)) & 0xffffff,
		FbPktCount:         t.fbPktCount - 1,
		PacketChunks:       chunks,
		RecvDeltas:         deltas,
	}
}

// maxRunLength is the largest run a single RunLengthChunk's 13-bit
// run-length field can hold.
const maxRunLength = 8191

// packStatusChunks groups symbols into chunks: a run of 2 or more identical
// symbols always closes as a single RunLengthChunk (bounded to
// maxRunLength, split across multiple chunks past that), regardless of how
// short the run is; symbols that don't repeat their neighbor are collected
// into StatusVectorChunks of up to 14 slots instead, stopping early if a
// later multi-packet run starts within the window so that run gets its own
// chunk. Any padding needed to fill out the final vector chunk uses
// symbolNotReceived and is not reflected in the caller's
// packet_status_count.
func packStatusChunks(symbols []twccSymbol) []rtcp.PacketStatusChunk {
	var chunks []rtcp.PacketStatusChunk

	for i := 0; i < len(symbols); {
		runSym := symbols[i]
		runLen := 1
		for i+runLen < len(symbols) && symbols[i+runLen] == runSym {
			runLen++
		}

		if runLen > 1 {
			if runLen > maxRunLength {
				runLen = maxRunLength
			}
			chunks = append(chunks, &rtcp.RunLengthChunk{
				PacketStatusSymbol: uint16(symbolToWire(runSym)),
				RunLength:          uint16(runLen),
			})
			i += runLen

			continue
		}

		vecLen := 14
		if i+vecLen > len(symbols) {
			vecLen = len(symbols) - i
		}
		for j := 1; j < vecLen; j++ {
			if i+j+1 < len(symbols) && symbols[i+j] == symbols[i+j+1] {
				vecLen = j

				break
			}
		}

		list := make([]uint16, 14)
		for j := 0; j < 14; j++ {
			if j < vecLen {
				list[j] = uint16(symbolToWire(symbols[i+j]))
			} else {
				list[j] = uint16(symbolToWire(symbolNotReceived))
			}
		}
		chunks = append(chunks, &rtcp.StatusVectorChunk{
			SymbolSize: 1,
			SymbolList: list,
		})
		i += vecLen
	}

	return chunks
}

func symbolToWire(s twccSymbol) uint8 {
	switch s {
	case symbolSmallDelta:
		return rtcp.TypeTCCPacketReceivedSmallDelta
	case symbolLargeDelta:
		return rtcp.TypeTCCPacketReceivedLargeDelta
	default:
		return rtcp.TypeTCCPacketNotReceived
	}
}
