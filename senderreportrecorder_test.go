package webrtc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSenderReportRecorderCounts(t *testing.T) {
	r := NewSenderReportRecorder(90000)
	now := time.Now()

	r.RecordPacket(0, 100, now)
	r.RecordPacket(3000, 150, now.Add(time.Second))

	report := r.GetReport(42, now.Add(time.Second))
	assert.EqualValues(t, 42, report.SSRC)
	assert.EqualValues(t, 2, report.PacketCount)
	assert.EqualValues(t, 250, report.OctetCount)
}

func TestSenderReportRecorderExtrapolatesRTPTimestamp(t *testing.T) {
	r := NewSenderReportRecorder(90000)
	base := time.Now()

	r.RecordPacket(1000, 10, base)

	report := r.GetReport(1, base.Add(2*time.Second))
	assert.EqualValues(t, uint32(1000+2*90000), report.RTPTime, "expected extrapolated RTP timestamp")
}

func TestSenderReportRecorderNTPTimeStamps(t *testing.T) {
	r := NewSenderReportRecorder(90000)
	now := time.Now()

	report := r.GetReport(1, now)
	assert.NotZero(t, report.NTPTime, "expected a nonzero NTP timestamp")
}
