// Package wire implements the two fixed packet headers that cross the
// network: the sender's data-packet header and the receiver's control-packet
// header.
package wire

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// SenderHeaderSize is the wire size of SenderHeader: a 2-byte sequence
	// number followed by a 16-byte timestamp.
	SenderHeaderSize = 18

	// ReceiverHeaderSize is the wire size of ReceiverHeader: a 2-byte
	// sequence number, a 16-byte echoed timestamp, and an 8-byte bitmap.
	ReceiverHeaderSize = 26

	// MaxPacketSize is the assumed path MTU budget for one datagram.
	MaxPacketSize = 1472

	// MaxPayload is the largest chunk a data packet can carry.
	MaxPayload = MaxPacketSize - SenderHeaderSize

	// EOFSeqNum is the reserved sentinel sequence number marking the end
	// of the stream. It is negative and therefore outside the valid
	// [0, seqnum.M) range.
	EOFSeqNum int16 = -5
)

// Timestamp is an explicit, platform-independent wire encoding of a point in
// time as whole seconds plus a microsecond remainder. This replaces the
// reference implementation's raw `struct timeval`, whose layout is
// platform-dependent.
type Timestamp struct {
	Sec  int64
	Usec int64
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	now := time.Now()
	return Timestamp{Sec: now.Unix(), Usec: int64(now.Nanosecond() / 1000)}
}

// Time converts the Timestamp back to a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Sec, t.Usec*1000)
}

// ElapsedMicros returns the number of microseconds between t and now,
// computed as a single full-precision quantity (Δsec·1e6 + Δusec) rather
// than truncating to the microsecond remainder alone. This resolves the
// reference implementation's RTT sample bug, which silently truncated any
// sample whose round trip crossed a one-second boundary.
func (t Timestamp) ElapsedMicros(now Timestamp) int64 {
	return (now.Sec-t.Sec)*1_000_000 + (now.Usec - t.Usec)
}

func marshalTimestamp(buf []byte, t Timestamp) {
	binary.BigEndian.PutUint64(buf[0:8], uint64(t.Sec))
	binary.BigEndian.PutUint64(buf[8:16], uint64(t.Usec))
}

func unmarshalTimestamp(buf []byte) Timestamp {
	return Timestamp{
		Sec:  int64(binary.BigEndian.Uint64(buf[0:8])),
		Usec: int64(binary.BigEndian.Uint64(buf[8:16])),
	}
}

// SenderHeader is the header carried by every sender-to-receiver datagram,
// data or EOF alike.
type SenderHeader struct {
	SeqNum    int16
	Timestamp Timestamp
}

// Marshal serializes the header to its fixed 18-byte wire form.
func (h SenderHeader) Marshal() []byte {
	buf := make([]byte, SenderHeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(h.SeqNum))
	marshalTimestamp(buf[2:18], h.Timestamp)
	return buf
}

// UnmarshalSenderHeader parses a SenderHeader from its wire form.
func UnmarshalSenderHeader(data []byte) (SenderHeader, error) {
	if len(data) < SenderHeaderSize {
		return SenderHeader{}, fmt.Errorf("sender header too small: need %d bytes, got %d", SenderHeaderSize, len(data))
	}
	return SenderHeader{
		SeqNum:    int16(binary.BigEndian.Uint16(data[0:2])),
		Timestamp: unmarshalTimestamp(data[2:18]),
	}, nil
}

// IsEOF reports whether this header marks the end of the stream.
func (h SenderHeader) IsEOF() bool {
	return h.SeqNum == EOFSeqNum
}

// ReceiverHeader is the header carried by every receiver-to-sender
// acknowledgement.
type ReceiverHeader struct {
	NextSeqNum int16
	Timestamp  Timestamp // echoed from the data packet being acknowledged
	Window     uint64    // bit k set iff chunk at offset k from NextSeqNum is held
}

// Marshal serializes the header to its fixed 26-byte wire form.
func (h ReceiverHeader) Marshal() []byte {
	buf := make([]byte, ReceiverHeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(h.NextSeqNum))
	marshalTimestamp(buf[2:18], h.Timestamp)
	binary.BigEndian.PutUint64(buf[18:26], h.Window)
	return buf
}

// UnmarshalReceiverHeader parses a ReceiverHeader from its wire form.
func UnmarshalReceiverHeader(data []byte) (ReceiverHeader, error) {
	if len(data) < ReceiverHeaderSize {
		return ReceiverHeader{}, fmt.Errorf("receiver header too small: need %d bytes, got %d", ReceiverHeaderSize, len(data))
	}
	return ReceiverHeader{
		NextSeqNum: int16(binary.BigEndian.Uint16(data[0:2])),
		Timestamp:  unmarshalTimestamp(data[2:18]),
		Window:     binary.BigEndian.Uint64(data[18:26]),
	}, nil
}
