package webrtc

import (
	"strings"

	"github.com/pion/rtcpeer/internal/fmtp"
)

// RTPCodecType is the kind of media a codec carries.
type RTPCodecType int

const (
	// RTPCodecTypeAudio indicates this is an audio codec.
	RTPCodecTypeAudio RTPCodecType = iota + 1
	// RTPCodecTypeVideo indicates this is a video codec.
	RTPCodecTypeVideo
)

func (t RTPCodecType) String() string {
	switch t {
	case RTPCodecTypeAudio:
		return "audio"
	case RTPCodecTypeVideo:
		return "video"
	default:
		return "unknown"
	}
}

// RTCPFeedback signals that a codec understands a given RTCP feedback
// mechanism, e.g. {"nack", ""} or {"nack", "pli"}.
type RTCPFeedback struct {
	Type      string
	Parameter string
}

// RTPCodecCapability is the set of parameters that describe a codec,
// independent of any payload type negotiated for it.
type RTPCodecCapability struct {
	MimeType     string
	ClockRate    uint32
	Channels     uint16
	SDPFmtpLine  string
	RTCPFeedback []RTCPFeedback
}

// rtxApt returns the apt= payload type this capability points at, if it is
// an rtx codec.
func (c RTPCodecCapability) rtxApt() (uint8, bool) {
	if !strings.EqualFold(c.MimeType, "video/rtx") {
		return 0, false
	}
	for _, kv := range strings.Split(c.SDPFmtpLine, ";") {
		kv = strings.TrimSpace(kv)
		if v, ok := strings.CutPrefix(strings.ToLower(kv), "apt="); ok {
			return parsePT(v), true
		}
	}

	return 0, false
}

func parsePT(s string) uint8 {
	var v uint8
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		v = v*10 + uint8(r-'0')
	}

	return v
}

// RTPCodecParameters is a codec capability bound to a specific negotiated
// payload type.
type RTPCodecParameters struct {
	RTPCodecCapability
	PayloadType uint8
}

func (c RTPCodecParameters) fmtp() fmtp.FMTP {
	return fmtp.Parse(c.MimeType, c.ClockRate, c.Channels, c.SDPFmtpLine)
}

// codecsMatch reports whether a and b are negotiable as the same codec: same
// mime type and fmtp-compatible parameters. Clock rate and channel count
// are compared only by the generic fmtp matcher; the H264, VP9 and AV1
// matchers do not compare them. The
// payload type is deliberately excluded, since the two sides may have
// assigned different payload types to the same codec.
func codecsMatch(a, b RTPCodecCapability) bool {
	if !strings.EqualFold(a.MimeType, b.MimeType) {
		return false
	}

	af := fmtp.Parse(a.MimeType, a.ClockRate, a.Channels, a.SDPFmtpLine)
	bf := fmtp.Parse(b.MimeType, b.ClockRate, b.Channels, b.SDPFmtpLine)

	return af.Match(bf)
}

// RTPHeaderExtension is a negotiated or offered RFC 8285 header extension.
type RTPHeaderExtension struct {
	// ID is the one-byte or two-byte extension id, 1..14 for negotiated
	// extensions (0 and 15 are reserved).
	ID int
	// URI is the extension's URN, e.g.
	// "urn:ietf:params:rtp-hdrext:sdes:mid".
	URI string
	// Direction restricts which side(s) may use the extension; empty means
	// sendrecv.
	Direction RTPTransceiverDirection
}

// Well-known header extension URIs.
const (
	ExtensionURIMid          = "urn:ietf:params:rtp-hdrext:sdes:mid"
	ExtensionURIRID          = "urn:ietf:params:rtp-hdrext:sdes:rtp-stream-id"
	ExtensionURIRepairedRID  = "urn:ietf:params:rtp-hdrext:sdes:repaired-rtp-stream-id"
	ExtensionURITransportCC  = "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01"
)

// CodecSet is an ordered, immutable list of codecs for one media kind,
// together with the header extensions negotiable for that kind. It backs
// the audio_codecs/video_codecs/rtp_header_extensions configuration options.
type CodecSet struct {
	Codecs     []RTPCodecParameters
	Extensions []RTPHeaderExtension
}

// findByPayloadType returns the codec in the set with the given payload
// type.
func (s CodecSet) findByPayloadType(pt uint8) (RTPCodecParameters, bool) {
	for _, c := range s.Codecs {
		if c.PayloadType == pt {
			return c, true
		}
	}

	return RTPCodecParameters{}, false
}

// intersect returns the subset of s.Codecs that also appear (by
// codecsMatch) in remote, with s's payload type kept (the local side is
// always the one whose wire payload type already matches the SDP being
// built), and likewise for extensions matched by URI.
func (s CodecSet) intersect(remote CodecSet) CodecSet {
	out := CodecSet{}
	for _, c := range s.Codecs {
		for _, rc := range remote.Codecs {
			if codecsMatch(c.RTPCodecCapability, rc.RTPCodecCapability) {
				out.Codecs = append(out.Codecs, c)

				break
			}
		}
	}
	for _, e := range s.Extensions {
		for _, re := range remote.Extensions {
			if e.URI == re.URI {
				out.Extensions = append(out.Extensions, e)

				break
			}
		}
	}

	return out
}
