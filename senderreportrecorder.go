package webrtc

import (
	"sync"
	"time"

	"github.com/pion/rtcp"

	"github.com/pion/rtcpeer/pkg/ntp"
)

// SenderReportRecorder observes one sender's outbound RTP and builds RTCP
// Sender Reports from it when GetReport is called; it does not schedule
// or emit reports on its own.
type SenderReportRecorder struct {
	mu sync.Mutex

	clockRate uint32

	packetCount uint32
	octetCount  uint32

	haveRTPTime  bool
	baseRTPTime  uint32
	baseWallTime time.Time
}

// NewSenderReportRecorder constructs a recorder for a sender clocked at
// clockRate.
func NewSenderReportRecorder(clockRate uint32) *SenderReportRecorder {
	return &SenderReportRecorder{clockRate: clockRate}
}

// RecordPacket observes one packet as it leaves RTPSender.SendPacket.
func (s *SenderReportRecorder) RecordPacket(rtpTimestamp uint32, payloadLen int, sentAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.packetCount++
	s.octetCount += uint32(payloadLen)

	if !s.haveRTPTime {
		s.haveRTPTime = true
		s.baseRTPTime = rtpTimestamp
		s.baseWallTime = sentAt
	}
}

// GetReport builds a Sender Report for ssrc at the current moment, mapping
// wall-clock now to an RTP timestamp by extrapolating from the first
// recorded packet at the sender's clock rate.
func (s *SenderReportRecorder) GetReport(ssrc uint32, now time.Time) rtcp.SenderReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rtpTime uint32
	if s.haveRTPTime && s.clockRate != 0 {
		elapsed := now.Sub(s.baseWallTime)
		rtpTime = s.baseRTPTime + uint32(elapsed.Seconds()*float64(s.clockRate))
	}

	return rtcp.SenderReport{
		SSRC:        ssrc,
		NTPTime:     uint64(ntp.NewTime64(now)),
		RTPTime:     rtpTime,
		PacketCount: s.packetCount,
		OctetCount:  s.octetCount,
	}
}
