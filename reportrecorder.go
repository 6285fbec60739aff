package webrtc

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/pion/rtcpeer/internal/seqnum"
	"github.com/pion/rtcpeer/pkg/ntp"
)

// ReportRecorder observes inbound RTP/RTCP for one ssrc and produces
// Receiver Report reception blocks.
type ReportRecorder struct {
	mu sync.Mutex

	clockRate uint32

	ext          *seqnum.ExtendedSeq
	lostPackets  map[uint32]struct{} // extended seq → missing

	// jitter, RFC 3550 §A.8.
	haveLastArrival bool
	lastArrivalRTP  int64 // arrival time converted to the codec clock rate
	lastTransit     int64
	jitter          float64

	// last received Sender Report.
	haveLastSR  bool
	lastSRMid32 uint32
	lastSRRecv  time.Time

	// cursor for fraction-lost computation, advanced after each get_report.
	lastReportExtSeq    uint32
	lastReportCumLost   uint32
	haveLastReportCursor bool
}

// NewReportRecorder constructs a recorder for a codec clocked at clockRate.
func NewReportRecorder(clockRate uint32) *ReportRecorder {
	return &ReportRecorder{
		clockRate:   clockRate,
		ext:         seqnum.NewExtendedSeq(),
		lostPackets: map[uint32]struct{}{},
	}
}

// RecordPacket feeds one received RTP packet to the recorder. arrival is the local monotonic receipt time.
func (r *ReportRecorder) RecordPacket(pkt *rtp.Packet, arrival time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prevHighest := r.ext.Highest()
	extSeq, isHighest := r.ext.Update(pkt.SequenceNumber)

	if isHighest && extSeq > prevHighest+1 {
		for missing := prevHighest + 1; missing < extSeq; missing++ {
			r.lostPackets[missing] = struct{}{}
		}
	}
	delete(r.lostPackets, extSeq)

	r.updateJitter(pkt, arrival)
}

func (r *ReportRecorder) updateJitter(pkt *rtp.Packet, arrival time.Time) {
	if r.clockRate == 0 {
		return
	}

	arrivalRTP := int64(arrival.UnixNano()) / int64(time.Second/time.Duration(r.clockRate))
	transit := arrivalRTP - int64(pkt.Timestamp)

	if r.haveLastArrival {
		d := transit - r.lastTransit
		if d < 0 {
			d = -d
		}
		r.jitter += (float64(d) - r.jitter) / 16
	}

	r.lastTransit = transit
	r.lastArrivalRTP = arrivalRTP
	r.haveLastArrival = true
}

// RecordSenderReport stores the NTP middle-32 bits and local receipt time of
// an inbound Sender Report, for the last-SR/delay-since-last-SR fields of
// the next Receiver Report.
func (r *ReportRecorder) RecordSenderReport(sr *rtcp.SenderReport, recvTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.haveLastSR = true
	r.lastSRMid32 = uint32(sr.NTPTime >> 16 & 0xffffffff)
	r.lastSRRecv = recvTime
}

// GetReport emits a Receiver Report reception block for the observed ssrc
//. After emission the "last report" cursor advances to the
// current highest sequence number.
func (r *ReportRecorder) GetReport(ssrc uint32, now time.Time) rtcp.ReceptionReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	highest := r.ext.Highest()
	cumulativeLost := uint32(len(r.lostPackets))

	var fractionLost uint8
	if r.haveLastReportCursor {
		expected := highest - r.lastReportExtSeq
		lost := cumulativeLost - r.lastReportCumLost
		if expected > 0 && lost <= expected {
			fractionLost = uint8(lost * 256 / expected)
		}
	}
	r.lastReportExtSeq = highest
	r.lastReportCumLost = cumulativeLost
	r.haveLastReportCursor = true

	var delaySinceLastSR uint32
	if r.haveLastSR {
		d, _ := ntp.NewTime32(now.Sub(r.lastSRRecv))
		delaySinceLastSR = uint32(d)
	}

	return rtcp.ReceptionReport{
		SSRC:               ssrc,
		FractionLost:       fractionLost,
		TotalLost:          cumulativeLost & 0xffffff,
		LastSequenceNumber: highest,
		Jitter:             uint32(r.jitter),
		LastSenderReport:   r.lastSRMid32,
		Delay:              delaySinceLastSR,
	}
}

// Snapshot computes the same fields as GetReport without advancing the
// fraction-lost cursor, for stats queries that run independently of (and
// possibly more often than) actual Receiver Report emission.
func (r *ReportRecorder) Snapshot(ssrc uint32, now time.Time) rtcp.ReceptionReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	highest := r.ext.Highest()
	cumulativeLost := uint32(len(r.lostPackets))

	var fractionLost uint8
	if r.haveLastReportCursor {
		expected := highest - r.lastReportExtSeq
		lost := cumulativeLost - r.lastReportCumLost
		if expected > 0 && lost <= expected {
			fractionLost = uint8(lost * 256 / expected)
		}
	}

	var delaySinceLastSR uint32
	if r.haveLastSR {
		d, _ := ntp.NewTime32(now.Sub(r.lastSRRecv))
		delaySinceLastSR = uint32(d)
	}

	return rtcp.ReceptionReport{
		SSRC:               ssrc,
		FractionLost:       fractionLost,
		TotalLost:          cumulativeLost & 0xffffff,
		LastSequenceNumber: highest,
		Jitter:             uint32(r.jitter),
		LastSenderReport:   r.lastSRMid32,
		Delay:              delaySinceLastSR,
	}
}

// Highest returns the extended (32-bit) highest sequence number observed.
func (r *ReportRecorder) Highest() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ext.Highest()
}
