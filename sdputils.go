package webrtc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// iceCredentials is the {ufrag, pwd} pair validated for presence and
// consistency across a BUNDLE group.
type iceCredentials struct {
	ufrag string
	pwd   string
}

func parseSDP(raw string) (*sdp.SessionDescription, error) {
	parsed := &sdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(raw)); err != nil {
		return nil, err
	}

	return parsed, nil
}

func getMidValue(media *sdp.MediaDescription) string {
	for _, a := range media.Attributes {
		if a.Key == sdp.AttrKeyMID {
			return a.Value
		}
	}

	return ""
}

func bundleGroupMids(parsed *sdp.SessionDescription) ([]string, bool) {
	for _, a := range parsed.Attributes {
		if a.Key != "group" {
			continue
		}
		fields := strings.Fields(a.Value)
		if len(fields) == 0 || fields[0] != "BUNDLE" {
			continue
		}

		return fields[1:], true
	}

	return nil, false
}

func mediaICECredentials(media *sdp.MediaDescription) (iceCredentials, bool) {
	var c iceCredentials
	for _, a := range media.Attributes {
		switch a.Key {
		case "ice-ufrag":
			c.ufrag = a.Value
		case "ice-pwd":
			c.pwd = a.Value
		}
	}

	return c, c.ufrag != "" && c.pwd != ""
}

func sessionICECredentials(parsed *sdp.SessionDescription) (iceCredentials, bool) {
	var c iceCredentials
	for _, a := range parsed.Attributes {
		switch a.Key {
		case "ice-ufrag":
			c.ufrag = a.Value
		case "ice-pwd":
			c.pwd = a.Value
		}
	}

	return c, c.ufrag != "" && c.pwd != ""
}

func hasFingerprint(parsed *sdp.SessionDescription, media *sdp.MediaDescription) bool {
	for _, a := range parsed.Attributes {
		if a.Key == "fingerprint" {
			return true
		}
	}
	for _, a := range media.Attributes {
		if a.Key == "fingerprint" {
			return true
		}
	}

	return false
}

// validateRemoteDescription runs the remote-description checks in a fixed
// order so the first violation encountered determines the error returned.
func validateRemoteDescription(parsed *sdp.SessionDescription) error {
	seenMids := map[string]bool{}
	mids := make([]string, 0, len(parsed.MediaDescriptions))
	for _, media := range parsed.MediaDescriptions {
		mid := getMidValue(media)
		if mid == "" {
			return ErrMissingMid
		}
		if seenMids[mid] {
			return ErrDuplicatedMid
		}
		seenMids[mid] = true
		mids = append(mids, mid)
	}

	group, ok := bundleGroupMids(parsed)
	if !ok {
		return ErrMissingBundleGroup
	}
	if len(group) != len(mids) {
		return ErrNonExhaustiveBundleGroup
	}
	groupSet := map[string]bool{}
	for _, m := range group {
		groupSet[m] = true
	}
	for _, m := range mids {
		if !groupSet[m] {
			return ErrNonExhaustiveBundleGroup
		}
	}

	sessionCreds, haveSession := sessionICECredentials(parsed)

	var bundleCreds iceCredentials
	haveBundleCreds := false

	for _, media := range parsed.MediaDescriptions {
		mediaCreds, haveMedia := mediaICECredentials(media)

		switch {
		case haveMedia:
			if haveSession && (mediaCreds.ufrag != sessionCreds.ufrag || mediaCreds.pwd != sessionCreds.pwd) {
				return ErrConflictingICECredentials
			}
		case haveSession:
			mediaCreds = sessionCreds
		default:
			return ErrMissingICECredentials
		}

		if mediaCreds.ufrag == "" {
			return ErrMissingICEUfrag
		}
		if mediaCreds.pwd == "" {
			return ErrMissingICEPwd
		}

		if !haveBundleCreds {
			bundleCreds = mediaCreds
			haveBundleCreds = true
		} else if mediaCreds != bundleCreds {
			return ErrConflictingICECredentials
		}

		if !hasFingerprint(parsed, media) {
			return ErrMissingFingerprint
		}
	}

	return nil
}

func peerDirection(media *sdp.MediaDescription) RTPTransceiverDirection {
	for _, a := range media.Attributes {
		switch a.Key {
		case sdp.AttrKeySendRecv:
			return RTPTransceiverDirectionSendrecv
		case sdp.AttrKeySendOnly:
			return RTPTransceiverDirectionSendonly
		case sdp.AttrKeyRecvOnly:
			return RTPTransceiverDirectionRecvonly
		case sdp.AttrKeyInactive:
			return RTPTransceiverDirectionInactive
		}
	}

	return RTPTransceiverDirectionSendrecv
}

func remoteCodecSet(media *sdp.MediaDescription, kind RTPCodecType) CodecSet {
	var out CodecSet
	for _, a := range media.Attributes {
		if a.Key != "rtpmap" {
			continue
		}
		fields := strings.SplitN(a.Value, " ", 2)
		if len(fields) != 2 {
			continue
		}
		pt, err := strconv.ParseUint(fields[0], 10, 8)
		if err != nil {
			continue
		}
		nameRate := strings.Split(fields[1], "/")
		cap := RTPCodecCapability{MimeType: kind.String() + "/" + nameRate[0]}
		if len(nameRate) > 1 {
			if rate, err := strconv.ParseUint(nameRate[1], 10, 32); err == nil {
				cap.ClockRate = uint32(rate)
			}
		}
		if len(nameRate) > 2 {
			if ch, err := strconv.ParseUint(nameRate[2], 10, 16); err == nil {
				cap.Channels = uint16(ch)
			}
		}
		out.Codecs = append(out.Codecs, RTPCodecParameters{RTPCodecCapability: cap, PayloadType: uint8(pt)})
	}
	for _, a := range media.Attributes {
		if a.Key != "extmap" {
			continue
		}
		fields := strings.SplitN(a.Value, " ", 2)
		if len(fields) != 2 {
			continue
		}
		idStr := strings.TrimSuffix(fields[0], "/sendonly")
		idStr = strings.TrimSuffix(idStr, "/recvonly")
		idStr = strings.TrimSuffix(idStr, "/sendrecv")
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		out.Extensions = append(out.Extensions, RTPHeaderExtension{ID: id, URI: fields[1]})
	}

	return out
}

// associatedResult is the outcome of reconciling one remote m-line against
// the local transceiver list.
type associatedResult struct {
	transceiver *RTPTransceiver
	rejected    bool
	firedTrack  bool
}

// reconcileTransceivers reconciles the local transceiver list against an
// applied remote offer or answer: existing transceivers are
// matched to m-lines in order, extras fall back to creating a new recvonly
// transceiver, codec/extension sets are intersected, and direction is
// derived via the direction algebra.
func reconcileTransceivers(existing []*RTPTransceiver, remote *sdp.SessionDescription, localSets map[RTPCodecType]CodecSet, nextID *uint64) ([]*RTPTransceiver, []associatedResult, error) {
	used := map[*RTPTransceiver]bool{}
	results := make([]associatedResult, 0, len(remote.MediaDescriptions))
	out := append([]*RTPTransceiver(nil), existing...)

	for _, media := range remote.MediaDescriptions {
		mid := getMidValue(media)
		kind := NewRTPCodecTypeFromString(media.MediaName.Media)
		if kind == 0 {
			continue
		}

		var t *RTPTransceiver
		for _, cand := range out {
			if used[cand] {
				continue
			}
			if cand.Kind() != kind {
				continue
			}
			if cand.Mid() == mid || (cand.Mid() == "" && !cand.Stopped()) {
				t = cand

				break
			}
		}
		if t == nil {
			*nextID++
			t = newRTPTransceiver(*nextID, kind, RTPTransceiverDirectionRecvonly)
			out = append(out, t)
		}
		used[t] = true
		t.setMid(mid)

		remoteSet := remoteCodecSet(media, kind)
		local := localSets[kind]
		intersection := local.intersect(remoteSet)

		if len(intersection.Codecs) == 0 {
			t.setDirection(RTPTransceiverDirectionInactive)
			results = append(results, associatedResult{transceiver: t, rejected: true})

			continue
		}

		t.setCodecsAndExtensions(intersection.Codecs, intersection.Extensions)

		remoteDir := peerDirection(media)
		wasDir := t.setDirection(answerDirection(remoteDir, t.requestedDirection))

		fired := (wasDir == 0 || !wasDir.hasRecv()) && t.Direction().hasRecv()
		results = append(results, associatedResult{transceiver: t, firedTrack: fired})
	}

	return out, results, nil
}

// NewRTPCodecTypeFromString maps an SDP media type ("audio"/"video") to an
// RTPCodecType, or 0 if unrecognized.
func NewRTPCodecTypeFromString(s string) RTPCodecType {
	switch s {
	case "audio":
		return RTPCodecTypeAudio
	case "video":
		return RTPCodecTypeVideo
	default:
		return 0
	}
}

// sdpBuildParams carries what buildSessionDescription needs to marshal a
// local offer or answer.
type sdpBuildParams struct {
	transceivers []*RTPTransceiver
	iceUfrag     string
	icePwd       string
	fingerprint  string
	fingerprintHash string
	setupRole    string // "actpass", "active", "passive"
}

// buildSessionDescription marshals the current transceiver list into an SDP
// body with a single BUNDLE group and rtcp-mux required on every m-line.
func buildSessionDescription(params sdpBuildParams) string {
	sd := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      0,
			SessionVersion: 0,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "0.0.0.0",
		},
		SessionName: "-",
		TimeDescriptions: []sdp.TimeDescription{{Timing: sdp.Timing{StartTime: 0, StopTime: 0}}},
	}

	mids := make([]string, 0, len(params.transceivers))
	for _, t := range params.transceivers {
		if t.Stopped() {
			continue
		}
		mids = append(mids, t.Mid())
	}
	sd.Attributes = append(sd.Attributes, sdp.Attribute{Key: "group", Value: "BUNDLE " + strings.Join(mids, " ")})
	sd.Attributes = append(sd.Attributes, sdp.Attribute{Key: "ice-ufrag", Value: params.iceUfrag})
	sd.Attributes = append(sd.Attributes, sdp.Attribute{Key: "ice-pwd", Value: params.icePwd})
	sd.Attributes = append(sd.Attributes, sdp.Attribute{Key: "fingerprint", Value: fmt.Sprintf("%s %s", params.fingerprintHash, params.fingerprint)})
	sd.Attributes = append(sd.Attributes, sdp.Attribute{Key: "setup", Value: params.setupRole})

	for _, t := range params.transceivers {
		media := &sdp.MediaDescription{
			MediaName: sdp.MediaName{
				Media:   t.Kind().String(),
				Port:    sdp.RangedPort{Value: 9},
				Protos:  []string{"UDP", "TLS", "RTP", "SAVPF"},
			},
			ConnectionInformation: &sdp.ConnectionInformation{
				NetworkType: "IN",
				AddressType: "IP4",
				Address:     &sdp.Address{Address: "0.0.0.0"},
			},
		}
		if t.Stopped() {
			media.MediaName.Port = sdp.RangedPort{Value: 0}
			media.Attributes = append(media.Attributes, sdp.Attribute{Key: sdp.AttrKeyInactive})
			media.MediaName.Formats = []string{"0"}
			sd.MediaDescriptions = append(sd.MediaDescriptions, media)

			continue
		}

		for _, c := range t.Codecs() {
			media.MediaName.Formats = append(media.MediaName.Formats, strconv.Itoa(int(c.PayloadType)))
			rtpmap := fmt.Sprintf("%d %s/%d", c.PayloadType, strings.TrimPrefix(c.MimeType, t.Kind().String()+"/"), c.ClockRate)
			if c.Channels > 1 {
				rtpmap += fmt.Sprintf("/%d", c.Channels)
			}
			media.Attributes = append(media.Attributes, sdp.Attribute{Key: "rtpmap", Value: rtpmap})
			if c.SDPFmtpLine != "" {
				media.Attributes = append(media.Attributes, sdp.Attribute{Key: "fmtp", Value: fmt.Sprintf("%d %s", c.PayloadType, c.SDPFmtpLine)})
			}
			for _, fb := range c.RTCPFeedback {
				val := fmt.Sprintf("%d %s", c.PayloadType, fb.Type)
				if fb.Parameter != "" {
					val += " " + fb.Parameter
				}
				media.Attributes = append(media.Attributes, sdp.Attribute{Key: "rtcp-fb", Value: val})
			}
		}
		for _, e := range t.Extensions() {
			media.Attributes = append(media.Attributes, sdp.Attribute{Key: "extmap", Value: fmt.Sprintf("%d %s", e.ID, e.URI)})
		}

		media.Attributes = append(media.Attributes,
			sdp.Attribute{Key: "mid", Value: t.Mid()},
			sdp.Attribute{Key: "rtcp-mux"},
			sdp.Attribute{Key: "ice-ufrag", Value: params.iceUfrag},
			sdp.Attribute{Key: "ice-pwd", Value: params.icePwd},
			sdp.Attribute{Key: t.Direction().String()},
			sdp.Attribute{Key: "ssrc", Value: fmt.Sprintf("%d cname:%s", t.Sender().SSRC(), t.Mid())},
		)

		sd.MediaDescriptions = append(sd.MediaDescriptions, media)
	}

	raw, err := sd.Marshal()
	if err != nil {
		return ""
	}

	return string(raw)
}
