package webrtc

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// receiverBundle is the per-rid (or, without simulcast, the sole) inbound
// statistics bundle owned by an RTPReceiver.
type receiverBundle struct {
	ssrc            uint32
	packetsReceived uint64
	report          *ReportRecorder
	nack            *NACKGenerator
	twcc            *TWCCRecorder
}

// RTPReceiver is the per-transceiver inbound pipeline.
type RTPReceiver struct {
	owner *RTPTransceiver

	mu sync.Mutex

	codec      RTPCodecParameters
	extensions []RTPHeaderExtension

	midExtID         int
	ridExtID         int
	repairedRidExtID int
	transportCCExtID int

	nackEnabled bool
	twccEnabled bool

	simulcast *SimulcastDemuxer
	bundles   map[string]*receiverBundle

	trackID string
}

func newRTPReceiver(owner *RTPTransceiver) *RTPReceiver {
	return &RTPReceiver{
		owner:     owner,
		simulcast: NewSimulcastDemuxer(0, 0),
		bundles:   map[string]*receiverBundle{},
	}
}

// configure is called by negotiation once a codec/extension set and the
// enabled features have been settled for this receiver.
func (r *RTPReceiver) configure(codec RTPCodecParameters, exts []RTPHeaderExtension, nackEnabled, twccEnabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.codec = codec
	r.extensions = exts
	r.nackEnabled = nackEnabled
	r.twccEnabled = twccEnabled

	r.midExtID, r.ridExtID, r.repairedRidExtID, r.transportCCExtID = 0, 0, 0, 0
	for _, e := range exts {
		switch e.URI {
		case ExtensionURIMid:
			r.midExtID = e.ID
		case ExtensionURIRID:
			r.ridExtID = e.ID
		case ExtensionURIRepairedRID:
			r.repairedRidExtID = e.ID
		case ExtensionURITransportCC:
			r.transportCCExtID = e.ID
		}
	}
	r.simulcast = NewSimulcastDemuxer(r.ridExtID, r.repairedRidExtID)

	for _, b := range r.bundles {
		if b.twcc == nil && twccEnabled {
			b.twcc = NewTWCCRecorder(r.transportCCExtID)
		}
	}
}

func (r *RTPReceiver) bundleFor(rid string) *receiverBundle {
	b, ok := r.bundles[rid]
	if ok {
		return b
	}
	b = &receiverBundle{report: NewReportRecorder(r.codec.ClockRate)}
	if r.nackEnabled {
		b.nack = NewNACKGenerator()
	}
	if r.twccEnabled {
		b.twcc = NewTWCCRecorder(r.transportCCExtID)
	}
	r.bundles[rid] = b

	return b
}

// ReceivePacket resolves the packet's rid via the SimulcastDemuxer, finds
// or creates that rid's
// statistics bundle, and feeds the packet to the ReportRecorder,
// NACKGenerator, and TWCCRecorder as enabled by negotiated features.
func (r *RTPReceiver) ReceivePacket(pkt *rtp.Packet, arrival time.Time) (rid string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rid = r.simulcast.DemuxPacket(pkt)
	b := r.bundleFor(rid)
	b.ssrc = pkt.SSRC
	b.packetsReceived++
	b.report.RecordPacket(pkt, arrival)
	if b.nack != nil {
		b.nack.RecordPacket(pkt)
	}
	if b.twcc != nil {
		b.twcc.RecordPacket(pkt, arrival)
	}

	return rid
}

// ReceiveSenderReport routes an inbound Sender Report to the bundle for the
// rid it concerns. rid is "" when simulcast is not in use.
func (r *RTPReceiver) ReceiveSenderReport(rid string, sr *rtcp.SenderReport, recvTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.bundles[rid]; ok {
		b.report.RecordSenderReport(sr, recvTime)
	}
}

// GetReceptionReports returns one Receiver Report reception block per active
// rid (or a single one, keyed "", without simulcast).
func (r *RTPReceiver) GetReceptionReports(now time.Time) []rtcp.ReceptionReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]rtcp.ReceptionReport, 0, len(r.bundles))
	for _, b := range r.bundles {
		out = append(out, b.report.GetReport(b.ssrc, now))
	}

	return out
}

// GetNACKFeedback returns one Generic NACK per rid with outstanding losses
//, or nil entries skipped.
func (r *RTPReceiver) GetNACKFeedback(senderSSRC uint32) []*rtcp.TransportLayerNack {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*rtcp.TransportLayerNack
	for _, b := range r.bundles {
		if b.nack == nil {
			continue
		}
		if fb := b.nack.GetFeedback(senderSSRC, b.ssrc); fb != nil {
			out = append(out, fb)
		}
	}

	return out
}

// GetTWCCFeedback returns one transport-wide CC feedback packet per rid
// with recorded arrivals, or nil entries skipped.
func (r *RTPReceiver) GetTWCCFeedback(senderSSRC uint32) []*rtcp.TransportLayerCC {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*rtcp.TransportLayerCC
	for _, b := range r.bundles {
		if b.twcc == nil {
			continue
		}
		if fb := b.twcc.GetFeedback(senderSSRC, b.ssrc); fb != nil {
			out = append(out, fb)
		}
	}

	return out
}

// InboundRTPStats is the inbound_rtp stats record for one receiver bundle.
type InboundRTPStats struct {
	Timestamp       time.Time
	RID             string
	SSRC            uint32
	PacketsReceived uint64
	PacketsLost     int64
	Jitter          float64
}

// GetStats returns one inbound_rtp stats record per active rid.
func (r *RTPReceiver) GetStats(now time.Time) []InboundRTPStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]InboundRTPStats, 0, len(r.bundles))
	for rid, b := range r.bundles {
		rr := b.report.Snapshot(b.ssrc, now)
		out = append(out, InboundRTPStats{
			Timestamp:       now,
			RID:             rid,
			SSRC:            b.ssrc,
			PacketsReceived: b.packetsReceived,
			PacketsLost:     int64(rr.TotalLost),
			Jitter:          float64(rr.Jitter),
		})
	}

	return out
}

// SetTrackID records the identifier of the track this receiver delivers
// packets for, surfaced on the `{rtp, track_id, rid, packet}` event.
func (r *RTPReceiver) SetTrackID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trackID = id
}

// TrackID returns the identifier set by SetTrackID.
func (r *RTPReceiver) TrackID() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.trackID
}
