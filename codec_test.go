package webrtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodecsMatch(t *testing.T) {
	opus := RTPCodecCapability{MimeType: "audio/opus", ClockRate: 48000, Channels: 2}
	opusOther := RTPCodecCapability{MimeType: "audio/OPUS", ClockRate: 48000, Channels: 2}
	pcmu := RTPCodecCapability{MimeType: "audio/PCMU", ClockRate: 8000, Channels: 1}

	assert.True(t, codecsMatch(opus, opusOther), "expected case-insensitive mime type match")
	assert.False(t, codecsMatch(opus, pcmu), "did not expect unrelated codecs to match")
}

func TestCodecSetIntersect(t *testing.T) {
	local := CodecSet{
		Codecs: []RTPCodecParameters{
			{RTPCodecCapability: RTPCodecCapability{MimeType: "audio/opus", ClockRate: 48000, Channels: 2}, PayloadType: 111},
			{RTPCodecCapability: RTPCodecCapability{MimeType: "audio/PCMU", ClockRate: 8000, Channels: 1}, PayloadType: 0},
		},
		Extensions: []RTPHeaderExtension{
			{ID: 1, URI: ExtensionURIMid},
			{ID: 2, URI: ExtensionURIRID},
		},
	}
	remote := CodecSet{
		Codecs: []RTPCodecParameters{
			{RTPCodecCapability: RTPCodecCapability{MimeType: "audio/opus", ClockRate: 48000, Channels: 2}, PayloadType: 96},
		},
		Extensions: []RTPHeaderExtension{
			{ID: 3, URI: ExtensionURIMid},
		},
	}

	out := local.intersect(remote)
	if assert.Len(t, out.Codecs, 1) {
		assert.EqualValues(t, 111, out.Codecs[0].PayloadType, "expected local payload type kept")
	}
	if assert.Len(t, out.Extensions, 1) {
		assert.Equal(t, ExtensionURIMid, out.Extensions[0].URI, "expected only the mid extension to survive intersection")
	}
}

func TestRTXApt(t *testing.T) {
	rtx := RTPCodecCapability{MimeType: "video/rtx", SDPFmtpLine: "apt=96"}
	apt, ok := rtx.rtxApt()
	assert.True(t, ok)
	assert.EqualValues(t, 96, apt)

	notRTX := RTPCodecCapability{MimeType: "video/VP8"}
	_, ok = notRTX.rtxApt()
	assert.False(t, ok, "non-rtx codec should not report an apt")
}

func TestFindByPayloadType(t *testing.T) {
	set := CodecSet{Codecs: []RTPCodecParameters{
		{RTPCodecCapability: RTPCodecCapability{MimeType: "video/VP8"}, PayloadType: 96},
	}}

	_, ok := set.findByPayloadType(96)
	assert.True(t, ok, "expected to find payload type 96")

	_, ok = set.findByPayloadType(97)
	assert.False(t, ok, "did not expect to find payload type 97")
}
