package dump

import "encoding/json"

// TrackKind mirrors the media kind of a dumped track, independent of the
// core webrtc package to keep this package dependency-free of it.
type TrackKind string

// Recognized kinds.
const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

// TrackManifest describes one dumped track file.
type TrackManifest struct {
	File     string         `json:"file"`
	Kind     TrackKind      `json:"kind"`
	StreamID string         `json:"stream_id"`
	RIDIndex map[string]int `json:"rid_index"`
}

// Manifest is the top-level JSON document naming every dumped track.
type Manifest struct {
	Tracks []TrackManifest `json:"tracks"`
}

// Marshal encodes the manifest as indented JSON.
func (m Manifest) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// UnmarshalManifest decodes a manifest from JSON.
func UnmarshalManifest(d []byte) (Manifest, error) {
	var m Manifest
	err := json.Unmarshal(d, &m)

	return m, err
}
