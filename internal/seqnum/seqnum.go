// Package seqnum implements the nearest-rollover comparisons shared by the
// demuxers, recorders, and munger: every one of them compares 16- or 32-bit
// wire values that wrap, and the distance/ordering helpers here are the
// single place that arithmetic happens.
package seqnum

// Uint16Distance returns the signed distance b-a in a 16-bit modular space,
// using the nearest-rollover heuristic: the result is in (-2^15, 2^15].
func Uint16Distance(a, b uint16) int32 {
	d := int32(b) - int32(a)
	switch {
	case d > 1<<15:
		d -= 1 << 16
	case d <= -(1 << 15):
		d += 1 << 16
	}

	return d
}

// Uint16LaterThan reports whether b is ahead of a in the nearest-rollover
// ordering, i.e. a packet carrying seq b arrived "after" one carrying seq a.
func Uint16LaterThan(a, b uint16) bool {
	return Uint16Distance(a, b) > 0
}

// Uint32Distance is the 32-bit analog of Uint16Distance, for transport-wide
// sequence numbers and munged RTP timestamps.
func Uint32Distance(a, b uint32) int64 {
	d := int64(b) - int64(a)
	switch {
	case d > 1<<31:
		d -= 1 << 32
	case d <= -(1 << 31):
		d += 1 << 32
	}

	return d
}

// Uint32LaterThan is the 32-bit analog of Uint16LaterThan.
func Uint32LaterThan(a, b uint32) bool {
	return Uint32Distance(a, b) > 0
}

// ExtendedSeq turns a 16-bit wire sequence number plus a rollover count into
// a 32-bit extended sequence number, high 16 bits holding the rollover
// count.
type ExtendedSeq struct {
	cycles  uint16
	highSeq uint16
	started bool
}

// NewExtendedSeq returns a tracker with no packets observed yet.
func NewExtendedSeq() *ExtendedSeq {
	return &ExtendedSeq{}
}

// Update feeds a newly observed wire sequence number, advancing the rollover
// counter when the new value wraps forward past the previous high value. It
// returns the extended (32-bit) sequence number for seq, and whether seq is
// now the highest sequence number observed.
func (e *ExtendedSeq) Update(seq uint16) (extended uint32, isHighest bool) {
	if !e.started {
		e.started = true
		e.highSeq = seq

		return uint32(seq), true
	}

	cycles := e.cycles
	if Uint16LaterThan(e.highSeq, seq) {
		if seq < e.highSeq {
			e.cycles++
			cycles = e.cycles
		}
		e.highSeq = seq
		isHighest = true
	} else if seq > e.highSeq && cycles > 0 {
		// a late packet from before the most recent wrap
		cycles--
	}

	return uint32(cycles)<<16 | uint32(seq), isHighest
}

// Highest returns the extended sequence number of the highest wire sequence
// number observed so far.
func (e *ExtendedSeq) Highest() uint32 {
	return uint32(e.cycles)<<16 | uint32(e.highSeq)
}

// Cycles returns the number of times the 16-bit wire sequence space has
// wrapped.
func (e *ExtendedSeq) Cycles() uint16 {
	return e.cycles
}
