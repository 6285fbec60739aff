package webrtc

import (
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twccPacket(extID int, ssrc uint32, wireSeq uint16) *rtp.Packet {
	pkt := &rtp.Packet{Header: rtp.Header{SSRC: ssrc, Extension: true}}
	if err := pkt.SetExtension(uint8(extID), []byte{byte(wireSeq >> 8), byte(wireSeq)}); err != nil {
		panic(err)
	}

	return pkt
}

func TestTWCCRecorderNoPacketsReturnsNil(t *testing.T) {
	r := NewTWCCRecorder(5)
	assert.Nil(t, r.GetFeedback(1, 2))
}

func TestTWCCRecorderIgnoresUnnegotiatedExtension(t *testing.T) {
	r := NewTWCCRecorder(0)
	r.RecordPacket(twccPacket(5, 1, 1), time.Now())

	assert.Nil(t, r.GetFeedback(1, 2))
}

func TestTWCCRecorderTracksArrivals(t *testing.T) {
	r := NewTWCCRecorder(5)
	base := time.Now()

	r.RecordPacket(twccPacket(5, 1, 10), base)
	r.RecordPacket(twccPacket(5, 1, 11), base.Add(5*time.Millisecond))
	r.RecordPacket(twccPacket(5, 1, 12), base.Add(9*time.Millisecond))

	fb := r.GetFeedback(100, 200)
	require.NotNil(t, fb)
	assert.EqualValues(t, 100, fb.SenderSSRC)
	assert.EqualValues(t, 200, fb.MediaSSRC)
	assert.EqualValues(t, 10, fb.BaseSequenceNumber)
	assert.EqualValues(t, 3, fb.PacketStatusCount)
	assert.Len(t, fb.RecvDeltas, 3)
}

func TestTWCCRecorderGapIsNotReceived(t *testing.T) {
	r := NewTWCCRecorder(5)
	base := time.Now()

	r.RecordPacket(twccPacket(5, 1, 10), base)
	r.RecordPacket(twccPacket(5, 1, 12), base.Add(time.Millisecond)) // 11 missing

	fb := r.GetFeedback(100, 200)
	require.NotNil(t, fb)
	assert.EqualValues(t, 3, fb.PacketStatusCount, "expected packet status count to cover the gap")
}

func TestTWCCRecorderFeedbackCountIncrements(t *testing.T) {
	r := NewTWCCRecorder(5)
	base := time.Now()
	r.RecordPacket(twccPacket(5, 1, 1), base)

	first := r.GetFeedback(1, 2)
	second := r.GetFeedback(1, 2)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.EqualValues(t, 0, first.FbPktCount)
	assert.EqualValues(t, 1, second.FbPktCount)
}

func TestPackStatusChunksRunLength(t *testing.T) {
	symbols := make([]twccSymbol, 10)
	for i := range symbols {
		symbols[i] = symbolSmallDelta
	}

	chunks := packStatusChunks(symbols)
	require.Len(t, chunks, 1)
	rl, ok := chunks[0].(*rtcp.RunLengthChunk)
	require.True(t, ok, "expected a *rtcp.RunLengthChunk, got %T", chunks[0])
	assert.EqualValues(t, len(symbols), rl.RunLength)
}

// TestPackStatusChunksShortRunClosesAsRunLength covers scenario S5: a short
// homogeneous run (here, 4 identical small-delta symbols) must still close
// as a single run-length chunk rather than get padded into a status-vector
// chunk just because it falls under some minimum length.
func TestPackStatusChunksShortRunClosesAsRunLength(t *testing.T) {
	symbols := []twccSymbol{symbolSmallDelta, symbolSmallDelta, symbolSmallDelta, symbolSmallDelta}

	chunks := packStatusChunks(symbols)
	require.Len(t, chunks, 1)
	rl, ok := chunks[0].(*rtcp.RunLengthChunk)
	require.True(t, ok, "expected a *rtcp.RunLengthChunk, got %T", chunks[0])
	assert.EqualValues(t, 4, rl.RunLength)
	assert.EqualValues(t, rtcp.TypeTCCPacketReceivedSmallDelta, rl.PacketStatusSymbol)
}

func TestPackStatusChunksShortRunUsesStatusVector(t *testing.T) {
	symbols := []twccSymbol{symbolSmallDelta, symbolNotReceived, symbolSmallDelta}
	chunks := packStatusChunks(symbols)
	require.Len(t, chunks, 1)
	_, ok := chunks[0].(*rtcp.StatusVectorChunk)
	assert.True(t, ok, "expected a *rtcp.StatusVectorChunk, got %T", chunks[0])
}

func TestPackStatusChunksRunBreaksOutOfStatusVectorWindow(t *testing.T) {
	// A, B, then a run of C's long enough to deserve its own chunk: the
	// vector window covering A/B must stop before the C run starts.
	symbols := []twccSymbol{symbolSmallDelta, symbolNotReceived, symbolLargeDelta, symbolLargeDelta, symbolLargeDelta}

	chunks := packStatusChunks(symbols)
	require.Len(t, chunks, 2)
	_, ok := chunks[0].(*rtcp.StatusVectorChunk)
	assert.True(t, ok, "expected the first chunk to be a *rtcp.StatusVectorChunk, got %T", chunks[0])
	rl, ok := chunks[1].(*rtcp.RunLengthChunk)
	require.True(t, ok, "expected the second chunk to be a *rtcp.RunLengthChunk, got %T", chunks[1])
	assert.EqualValues(t, 3, rl.RunLength)
}
