package webrtc

import (
	"fmt"
	"strings"

	"github.com/pion/logging"

	"github.com/pion/rtcpeer/internal/util"
)

// Feature is one of the optional behaviors a Configuration may enable.
type Feature string

// Recognized features.
const (
	FeatureTWCC         Feature = "twcc"
	FeatureInboundRTX   Feature = "inbound_rtx"
	FeatureOutboundRTX  Feature = "outbound_rtx"
	FeatureRTCPReports  Feature = "rtcp_reports"
)

// ICETransportPolicy restricts which ICE candidates may be used.
type ICETransportPolicy int

// Recognized ICE transport policies.
const (
	ICETransportPolicyAll ICETransportPolicy = iota
	ICETransportPolicyRelay
)

// ICEServer mirrors the W3C RTCIceServer dictionary: a STUN or TURN server
// the ICE collaborator may use during gathering.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// HeaderExtensionOption requests a header extension for one or both media
// kinds.
type HeaderExtensionOption struct {
	Kind RTPCodecType // zero value means "audio|video"
	URI  string
}

// RTCPFeedbackOption requests an RTCP feedback mechanism for one or both
// media kinds.
type RTCPFeedbackOption struct {
	Kind RTPCodecType // zero value means "audio|video"
	RTCPFeedback
}

// Configuration is the immutable bundle of negotiation inputs. It is built
// once by NewConfiguration and never mutated; negotiation reads it but
// never writes a reconciled copy back.
type Configuration struct {
	ControllingProcess EventSink

	ICEServers          []ICEServer
	ICETransportPolicy  ICETransportPolicy
	ICEIPFilter         func(net string) bool
	ICEPortRangeMin     uint16
	ICEPortRangeMax     uint16

	AudioCodecs []RTPCodecParameters
	VideoCodecs []RTPCodecParameters

	HeaderExtensions []HeaderExtensionOption
	RTCPFeedbacks    []RTCPFeedbackOption

	Features map[Feature]bool

	LoggerFactory logging.LoggerFactory

	// audio/video are the fully resolved CodecSets, including synthesized
	// rtx codecs and assigned header extension ids. Populated by
	// NewConfiguration; everything downstream reads from here.
	audio CodecSet
	video CodecSet
}

// NewConfiguration validates opts and builds the resolved Configuration.
// It fails with ErrInvalidConfiguration / ErrDuplicatePayloadType.
func NewConfiguration(opts Configuration) (*Configuration, error) {
	cfg := opts
	if cfg.Features == nil {
		cfg.Features = map[Feature]bool{}
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}

	if err := cfg.validateNoDuplicatePayloadTypes(); err != nil {
		return nil, &InvalidAccessError{Err: fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)}
	}

	cfg.audio = CodecSet{Codecs: append([]RTPCodecParameters(nil), cfg.AudioCodecs...)}
	cfg.video = CodecSet{Codecs: append([]RTPCodecParameters(nil), cfg.VideoCodecs...)}

	if cfg.Features[FeatureInboundRTX] || cfg.Features[FeatureOutboundRTX] {
		if err := cfg.synthesizeRTX(); err != nil {
			return nil, &InvalidAccessError{Err: fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)}
		}
	}

	cfg.applyHeaderExtensionOptions()
	cfg.applyFeedbackOptions()

	if cfg.Features[FeatureTWCC] {
		cfg.audio.Extensions = appendExtensionIfMissing(cfg.audio.Extensions, ExtensionURITransportCC)
		cfg.video.Extensions = appendExtensionIfMissing(cfg.video.Extensions, ExtensionURITransportCC)
		cfg.audio.Codecs = addFeedback(cfg.audio.Codecs, RTCPFeedback{Type: "transport-cc"})
		cfg.video.Codecs = addFeedback(cfg.video.Codecs, RTCPFeedback{Type: "transport-cc"})
	}

	cfg.audio.Extensions = appendExtensionIfMissing(cfg.audio.Extensions, ExtensionURIMid)
	cfg.video.Extensions = appendExtensionIfMissing(cfg.video.Extensions, ExtensionURIMid)

	if err := cfg.assignExtensionIDs(); err != nil {
		return nil, &InvalidAccessError{Err: fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)}
	}

	return &cfg, nil
}

// validateNoDuplicatePayloadTypes checks the audio and video codec lists
// independently and reports every repeated payload type across both, not
// just the first one hit, so a caller fixing a bad codec table doesn't
// have to re-run NewConfiguration once per mistake.
func (c *Configuration) validateNoDuplicatePayloadTypes() error {
	var errs []error
	for _, list := range [][]RTPCodecParameters{c.AudioCodecs, c.VideoCodecs} {
		seen := map[uint8]bool{}
		for _, codec := range list {
			if seen[codec.PayloadType] {
				errs = append(errs, fmt.Errorf("payload type %d repeated", codec.PayloadType))

				continue
			}
			seen[codec.PayloadType] = true
		}
	}

	if err := util.FlattenErrs(errs); err != nil {
		return fmt.Errorf("%w: %w", ErrDuplicatePayloadType, err)
	}

	return nil
}

// synthesizeRTX adds an rtx codec for every primary video codec lacking one
// and adds nack feedback to every primary video codec.
func (c *Configuration) synthesizeRTX() error {
	hasRTXFor := map[uint8]bool{}
	for _, codec := range c.video.Codecs {
		if apt, ok := codec.rtxApt(); ok {
			hasRTXFor[apt] = true
		}
	}

	used := map[uint8]bool{}
	for _, codec := range c.video.Codecs {
		used[codec.PayloadType] = true
	}

	synthesized := make([]RTPCodecParameters, 0, len(c.video.Codecs))
	for i, codec := range c.video.Codecs {
		synthesized = append(synthesized, codec)
		if strings.EqualFold(codec.MimeType, "video/rtx") || hasRTXFor[codec.PayloadType] {
			continue
		}

		pt, err := nextFreePayloadType(used)
		if err != nil {
			return err
		}
		used[pt] = true

		synthesized = append(synthesized, RTPCodecParameters{
			RTPCodecCapability: RTPCodecCapability{
				MimeType:  "video/rtx",
				ClockRate: codec.ClockRate,
				SDPFmtpLine: fmt.Sprintf("apt=%d", codec.PayloadType),
			},
			PayloadType: pt,
		})
		c.video.Codecs[i].RTCPFeedback = addNack(codec.RTCPFeedback)
	}
	c.video.Codecs = synthesized
	for i := range c.video.Codecs {
		if !strings.EqualFold(c.video.Codecs[i].MimeType, "video/rtx") {
			c.video.Codecs[i].RTCPFeedback = addNack(c.video.Codecs[i].RTCPFeedback)
		}
	}

	return nil
}

func addNack(fb []RTCPFeedback) []RTCPFeedback {
	for _, f := range fb {
		if f.Type == "nack" && f.Parameter == "" {
			return fb
		}
	}

	return append(fb, RTCPFeedback{Type: "nack"})
}

func addFeedback(codecs []RTPCodecParameters, fb RTCPFeedback) []RTPCodecParameters {
	out := make([]RTPCodecParameters, len(codecs))
	for i, c := range codecs {
		c.RTCPFeedback = append(append([]RTCPFeedback(nil), c.RTCPFeedback...), fb)
		out[i] = c
	}

	return out
}

// nextFreePayloadType returns the lowest dynamic payload type (96-127, then
// falling back to the 35-65 reclaimed range) not present in used.
func nextFreePayloadType(used map[uint8]bool) (uint8, error) {
	for pt := 96; pt <= 127; pt++ {
		if !used[uint8(pt)] {
			return uint8(pt), nil
		}
	}
	for pt := 35; pt <= 65; pt++ {
		if !used[uint8(pt)] {
			return uint8(pt), nil
		}
	}

	return 0, fmt.Errorf("no free payload type")
}

func (c *Configuration) applyHeaderExtensionOptions() {
	for _, opt := range c.HeaderExtensions {
		if opt.Kind == 0 || opt.Kind == RTPCodecTypeAudio {
			c.audio.Extensions = appendExtensionIfMissing(c.audio.Extensions, opt.URI)
		}
		if opt.Kind == 0 || opt.Kind == RTPCodecTypeVideo {
			c.video.Extensions = appendExtensionIfMissing(c.video.Extensions, opt.URI)
		}
	}
}

func (c *Configuration) applyFeedbackOptions() {
	for _, opt := range c.RTCPFeedbacks {
		if opt.Kind == 0 || opt.Kind == RTPCodecTypeAudio {
			c.audio.Codecs = addFeedback(c.audio.Codecs, opt.RTCPFeedback)
		}
		if opt.Kind == 0 || opt.Kind == RTPCodecTypeVideo {
			c.video.Codecs = addFeedback(c.video.Codecs, opt.RTCPFeedback)
		}
	}
}

func appendExtensionIfMissing(exts []RTPHeaderExtension, uri string) []RTPHeaderExtension {
	for _, e := range exts {
		if e.URI == uri {
			return exts
		}
	}

	return append(exts, RTPHeaderExtension{URI: uri})
}

// assignExtensionIDs assigns ids from the free range 1..14 to every
// registered extension, shared across audio and video so the same URI gets
// the same id on both kinds where possible.
func (c *Configuration) assignExtensionIDs() error {
	ids := map[string]int{}
	next := 1
	assign := func(exts []RTPHeaderExtension) error {
		for i, e := range exts {
			if id, ok := ids[e.URI]; ok {
				exts[i].ID = id

				continue
			}
			if next > 14 {
				return fmt.Errorf("no free header extension id for %s", e.URI)
			}
			ids[e.URI] = next
			exts[i].ID = next
			next++
		}

		return nil
	}

	if err := assign(c.audio.Extensions); err != nil {
		return err
	}

	return assign(c.video.Extensions)
}

// CodecSetFor returns the resolved codec/extension set for kind.
func (c *Configuration) CodecSetFor(kind RTPCodecType) CodecSet {
	if kind == RTPCodecTypeAudio {
		return c.audio
	}

	return c.video
}
