package webrtc

import "sync/atomic"

// atomicBool is a race-free bool, used for flags read from goroutines
// outside the PeerConnection's single actor loop (e.g. "is closed").
type atomicBool struct {
	v int32
}

func (b *atomicBool) set(value bool) {
	var i int32
	if value {
		i = 1
	}
	atomic.StoreInt32(&b.v, i)
}

func (b *atomicBool) get() bool {
	return atomic.LoadInt32(&b.v) != 0
}
