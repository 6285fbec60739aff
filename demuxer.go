package webrtc

import (
	"sync"

	"github.com/pion/rtp"
)

// Demuxer routes a decoded RTP packet to the mid (media section id) that
// owns it, under BUNDLE. It is rebuilt after every
// set_*_description call.
type Demuxer struct {
	mu sync.Mutex

	midExtID int // negotiated id of the sdes:mid extension, 0 if unknown

	ssrcToMid map[uint32]string
	ptToMid   map[uint8]string
}

// NewDemuxer constructs an empty Demuxer.
func NewDemuxer() *Demuxer {
	return &Demuxer{
		ssrcToMid: map[uint32]string{},
		ptToMid:   map[uint8]string{},
	}
}

// Rebuild replaces the demuxer's mid extension id and payload-type fallback
// table, called after every local/remote description is applied. Learned
// ssrc→mid mappings survive a rebuild: they reflect packets already seen on
// the wire, which remains valid until the ssrc itself goes away.
func (d *Demuxer) Rebuild(midExtID int, ptToMid map[uint8]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.midExtID = midExtID
	d.ptToMid = ptToMid
}

// DemuxPacket resolves which mid a packet belongs to. ok is false when the
// packet should be dropped (no matching mid); err is non-nil only for the
// fatal case where an
// already-mapped ssrc's mid extension now disagrees with a different mid,
// which is a protocol violation the caller must treat as fatal.
func (d *Demuxer) DemuxPacket(pkt *rtp.Packet) (mid string, ok bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.midExtID != 0 {
		if payload := pkt.GetExtension(uint8(d.midExtID)); payload != nil {
			extMid := string(payload)
			if existing, known := d.ssrcToMid[pkt.SSRC]; known {
				if existing != extMid {
					return "", false, ErrSSRCRemappedToOtherMid
				}

				return existing, true, nil
			}
			d.ssrcToMid[pkt.SSRC] = extMid

			return extMid, true, nil
		}
	}

	if mid, known := d.ssrcToMid[pkt.SSRC]; known {
		return mid, true, nil
	}

	if mid, known := d.ptToMid[pkt.PayloadType]; known {
		d.ssrcToMid[pkt.SSRC] = mid

		return mid, true, nil
	}

	return "", false, nil
}

// IsRTCP implements the RFC 5761 byte-2 heuristic used to split an incoming
// decrypted packet stream into RTP and RTCP before it ever reaches the
// Demuxer.
func IsRTCP(buf []byte) bool {
	if len(buf) < 2 {
		return false
	}

	return buf[1] >= 192 && buf[1] <= 223
}
