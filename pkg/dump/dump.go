// Package dump implements the persisted recorder dump format: one binary
// file per track, one record per packet, plus a JSON manifest naming the
// files, their kinds, stream ids, and a per-rid index map. The binary
// record layout follows the same fixed-header/raw-payload shape as
// rtpdump-style formats.
package dump

import (
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const recordHeaderLen = 13 // rid_index(1) + recv_time_ms(8) + packet_len(4)

var errMalformed = errors.New("dump: malformed record")

// Record is one persisted packet: `(rid_index, recv_time_ms, packet_len,
// raw_packet)`.
type Record struct {
	RIDIndex   uint8
	RecvTimeMs uint64
	Raw        []byte
}

// Marshal encodes the record as binary.
func (r Record) Marshal() ([]byte, error) {
	out := make([]byte, recordHeaderLen+len(r.Raw))
	out[0] = r.RIDIndex
	binary.BigEndian.PutUint64(out[1:9], r.RecvTimeMs)
	binary.BigEndian.PutUint32(out[9:13], uint32(len(r.Raw)))
	copy(out[recordHeaderLen:], r.Raw)

	return out, nil
}

// Unmarshal decodes a record from binary.
func (r *Record) Unmarshal(d []byte) error {
	if len(d) < recordHeaderLen {
		return errMalformed
	}
	r.RIDIndex = d[0]
	r.RecvTimeMs = binary.BigEndian.Uint64(d[1:9])
	packetLen := binary.BigEndian.Uint32(d[9:13])
	if len(d) < recordHeaderLen+int(packetLen) {
		return errMalformed
	}
	r.Raw = append([]byte(nil), d[recordHeaderLen:recordHeaderLen+int(packetLen)]...)

	return nil
}

// Writer appends Records to an io.Writer, one per packet.
type Writer struct {
	w io.Writer
}

// NewWriter constructs a Writer over w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// WriteRecord marshals and writes one record.
func (w *Writer) WriteRecord(r Record) error {
	raw, err := r.Marshal()
	if err != nil {
		return err
	}
	_, err = w.w.Write(raw)

	return err
}

// Reader reads Records back from an io.Reader written by a Writer.
type Reader struct {
	r io.Reader
}

// NewReader constructs a Reader over r.
func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

// ReadRecord reads and unmarshals the next record, returning io.EOF when
// the stream is exhausted.
func (r *Reader) ReadRecord() (Record, error) {
	var header [recordHeaderLen]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		return Record{}, err
	}

	packetLen := binary.BigEndian.Uint32(header[9:13])
	raw := make([]byte, packetLen)
	if _, err := io.ReadFull(r.r, raw); err != nil {
		return Record{}, err
	}

	return Record{
		RIDIndex:   header[0],
		RecvTimeMs: binary.BigEndian.Uint64(header[1:9]),
		Raw:        raw,
	}, nil
}

// recvTimeMs converts a receipt time to the milliseconds-since-epoch value
// a Record stores.
func recvTimeMs(t time.Time) uint64 {
	return uint64(t.UnixMilli())
}

// NewRecord builds a Record for a packet received at t, belonging to
// ridIndex (the manifest's per-rid index, 0 when simulcast is not in use).
func NewRecord(ridIndex uint8, t time.Time, raw []byte) Record {
	return Record{RIDIndex: ridIndex, RecvTimeMs: recvTimeMs(t), Raw: raw}
}
