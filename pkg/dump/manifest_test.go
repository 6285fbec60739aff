package dump

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestMarshalUnmarshalRoundTrip(t *testing.T) {
	want := Manifest{
		Tracks: []TrackManifest{
			{File: "0.dump", Kind: TrackKindAudio, StreamID: "stream-1", RIDIndex: nil},
			{File: "1.dump", Kind: TrackKindVideo, StreamID: "stream-1", RIDIndex: map[string]int{"low": 0, "high": 1}},
		},
	}

	raw, err := want.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalManifest(raw)
	require.NoError(t, err)

	require.Len(t, got.Tracks, 2)
	assert.Equal(t, 1, got.Tracks[1].RIDIndex["high"])
	assert.Equal(t, TrackKindAudio, got.Tracks[0].Kind)
	assert.Equal(t, TrackKindVideo, got.Tracks[1].Kind)
}
