package webrtc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sdpWithMids(extra string, mids ...string) string {
	var b strings.Builder
	b.WriteString("v=0\r\n")
	b.WriteString("o=- 0 0 IN IP4 0.0.0.0\r\n")
	b.WriteString("s=-\r\n")
	b.WriteString("t=0 0\r\n")
	if extra != "" {
		b.WriteString(extra)
	}
	for _, mid := range mids {
		b.WriteString("m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n")
		b.WriteString("c=IN IP4 0.0.0.0\r\n")
		b.WriteString("a=rtpmap:111 opus/48000/2\r\n")
		b.WriteString("a=mid:" + mid + "\r\n")
		b.WriteString("a=ice-ufrag:ufrag1\r\n")
		b.WriteString("a=ice-pwd:password1password1\r\n")
		b.WriteString("a=fingerprint:sha-256 00:11:22\r\n")
		b.WriteString("a=sendrecv\r\n")
	}

	return b.String()
}

func TestValidateRemoteDescriptionMissingMid(t *testing.T) {
	raw := "v=0\r\no=- 0 0 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n" +
		"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\nc=IN IP4 0.0.0.0\r\n"
	parsed, err := parseSDP(raw)
	require.NoError(t, err)
	assert.ErrorIs(t, validateRemoteDescription(parsed), ErrMissingMid)
}

func TestValidateRemoteDescriptionDuplicatedMid(t *testing.T) {
	raw := sdpWithMids("", "0", "0")
	parsed, err := parseSDP(raw)
	require.NoError(t, err)
	assert.ErrorIs(t, validateRemoteDescription(parsed), ErrDuplicatedMid)
}

func TestValidateRemoteDescriptionMissingBundleGroup(t *testing.T) {
	raw := sdpWithMids("", "0")
	parsed, err := parseSDP(raw)
	require.NoError(t, err)
	assert.ErrorIs(t, validateRemoteDescription(parsed), ErrMissingBundleGroup)
}

func TestValidateRemoteDescriptionNonExhaustiveBundleGroup(t *testing.T) {
	raw := sdpWithMids("a=group:BUNDLE 0\r\n", "0", "1")
	parsed, err := parseSDP(raw)
	require.NoError(t, err)
	assert.ErrorIs(t, validateRemoteDescription(parsed), ErrNonExhaustiveBundleGroup)
}

func TestValidateRemoteDescriptionValid(t *testing.T) {
	raw := sdpWithMids("a=group:BUNDLE 0\r\n", "0")
	parsed, err := parseSDP(raw)
	require.NoError(t, err)
	assert.NoError(t, validateRemoteDescription(parsed))
}

func TestValidateRemoteDescriptionMissingFingerprint(t *testing.T) {
	raw := "v=0\r\no=- 0 0 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n" +
		"a=group:BUNDLE 0\r\n" +
		"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\nc=IN IP4 0.0.0.0\r\n" +
		"a=mid:0\r\na=ice-ufrag:ufrag1\r\na=ice-pwd:password1password1\r\na=sendrecv\r\n"
	parsed, err := parseSDP(raw)
	require.NoError(t, err)
	assert.ErrorIs(t, validateRemoteDescription(parsed), ErrMissingFingerprint)
}

func TestBundleGroupMids(t *testing.T) {
	raw := sdpWithMids("a=group:BUNDLE 0 1\r\n", "0", "1")
	parsed, err := parseSDP(raw)
	require.NoError(t, err)
	mids, ok := bundleGroupMids(parsed)
	require.True(t, ok, "expected a bundle group to be found")
	assert.Equal(t, []string{"0", "1"}, mids)
}

func TestPeerDirectionDefaultsToSendrecv(t *testing.T) {
	raw := "v=0\r\no=- 0 0 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n" +
		"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\nc=IN IP4 0.0.0.0\r\na=mid:0\r\n"
	parsed, err := parseSDP(raw)
	require.NoError(t, err)
	assert.Equal(t, RTPTransceiverDirectionSendrecv, peerDirection(parsed.MediaDescriptions[0]))
}

func TestRemoteCodecSetParsesRtpmapAndExtmap(t *testing.T) {
	raw := "v=0\r\no=- 0 0 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n" +
		"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\nc=IN IP4 0.0.0.0\r\n" +
		"a=rtpmap:111 opus/48000/2\r\n" +
		"a=extmap:1 " + ExtensionURIMid + "\r\n"
	parsed, err := parseSDP(raw)
	require.NoError(t, err)
	set := remoteCodecSet(parsed.MediaDescriptions[0], RTPCodecTypeAudio)
	require.Len(t, set.Codecs, 1)
	c := set.Codecs[0]
	assert.EqualValues(t, 111, c.PayloadType)
	assert.Equal(t, "audio/opus", c.MimeType)
	assert.EqualValues(t, 48000, c.ClockRate)
	assert.EqualValues(t, 2, c.Channels)
	require.Len(t, set.Extensions, 1)
	assert.EqualValues(t, 1, set.Extensions[0].ID)
	assert.Equal(t, ExtensionURIMid, set.Extensions[0].URI)
}

func TestReconcileTransceiversCreatesRecvonlyForUnmatchedMLine(t *testing.T) {
	raw := sdpWithMids("a=group:BUNDLE 0\r\n", "0")
	parsed, err := parseSDP(raw)
	require.NoError(t, err)

	localSets := map[RTPCodecType]CodecSet{
		RTPCodecTypeAudio: {Codecs: []RTPCodecParameters{{RTPCodecCapability: RTPCodecCapability{MimeType: "audio/opus", ClockRate: 48000}, PayloadType: 111}}},
	}
	var nextID uint64

	out, results, err := reconcileTransceivers(nil, parsed, localSets, &nextID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "0", out[0].Mid())
	require.Len(t, results, 1)
	assert.False(t, results[0].rejected)
}

func TestReconcileTransceiversRejectsWithNoMatchingCodec(t *testing.T) {
	raw := sdpWithMids("a=group:BUNDLE 0\r\n", "0")
	parsed, err := parseSDP(raw)
	require.NoError(t, err)

	localSets := map[RTPCodecType]CodecSet{
		RTPCodecTypeAudio: {Codecs: []RTPCodecParameters{{RTPCodecCapability: RTPCodecCapability{MimeType: "audio/g722", ClockRate: 8000}, PayloadType: 9}}},
	}
	var nextID uint64

	_, results, err := reconcileTransceivers(nil, parsed, localSets, &nextID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].rejected, "expected the m-line to be rejected for lack of a matching codec")
}

func TestBuildSessionDescriptionIncludesBundleAndMids(t *testing.T) {
	tr := newRTPTransceiver(1, RTPCodecTypeAudio, RTPTransceiverDirectionSendrecv)
	tr.setMid("0")
	tr.setCodecsAndExtensions([]RTPCodecParameters{
		{RTPCodecCapability: RTPCodecCapability{MimeType: "audio/opus", ClockRate: 48000}, PayloadType: 111},
	}, nil)

	raw := buildSessionDescription(sdpBuildParams{
		transceivers:    []*RTPTransceiver{tr},
		iceUfrag:        "ufrag1",
		icePwd:          "password1password1",
		fingerprint:     "00:11:22",
		fingerprintHash: "sha-256",
		setupRole:       "actpass",
	})

	assert.Containsf(t, raw, "a=group:BUNDLE 0", "expected a BUNDLE group for mid 0:\n%s", raw)
	assert.Containsf(t, raw, "a=mid:0", "expected a mid attribute:\n%s", raw)
	assert.Containsf(t, raw, "a=rtcp-mux", "expected rtcp-mux:\n%s", raw)
	assert.Containsf(t, raw, "m=audio 9", "expected an active audio m-line:\n%s", raw)
}

func TestBuildSessionDescriptionStoppedTransceiverIsRejected(t *testing.T) {
	tr := newRTPTransceiver(1, RTPCodecTypeAudio, RTPTransceiverDirectionSendrecv)
	tr.setMid("0")
	tr.Stop()

	raw := buildSessionDescription(sdpBuildParams{
		transceivers:    []*RTPTransceiver{tr},
		iceUfrag:        "ufrag1",
		icePwd:          "password1password1",
		fingerprint:     "00:11:22",
		fingerprintHash: "sha-256",
		setupRole:       "actpass",
	})

	assert.Containsf(t, raw, "m=audio 0", "expected a rejected (port 0) m-line for a stopped transceiver:\n%s", raw)
}
