package wire

import "testing"

func TestSenderHeaderMarshalUnmarshal(t *testing.T) {
	original := SenderHeader{SeqNum: 42, Timestamp: Timestamp{Sec: 1700000000, Usec: 123456}}

	data := original.Marshal()
	if len(data) != SenderHeaderSize {
		t.Fatalf("marshaled size = %d, want %d", len(data), SenderHeaderSize)
	}

	parsed, err := UnmarshalSenderHeader(data)
	if err != nil {
		t.Fatalf("UnmarshalSenderHeader: %v", err)
	}
	if parsed != original {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, original)
	}
}

func TestSenderHeaderEOF(t *testing.T) {
	h := SenderHeader{SeqNum: EOFSeqNum, Timestamp: Now()}
	if !h.IsEOF() {
		t.Error("header with EOFSeqNum should report IsEOF")
	}

	ordinary := SenderHeader{SeqNum: 3, Timestamp: Now()}
	if ordinary.IsEOF() {
		t.Error("ordinary header should not report IsEOF")
	}
}

func TestUnmarshalSenderHeaderTooSmall(t *testing.T) {
	if _, err := UnmarshalSenderHeader(make([]byte, SenderHeaderSize-1)); err == nil {
		t.Error("expected error for undersized buffer")
	}
}

func TestReceiverHeaderMarshalUnmarshal(t *testing.T) {
	original := ReceiverHeader{
		NextSeqNum: 7,
		Timestamp:  Timestamp{Sec: 42, Usec: 999999},
		Window:     0x00000000FFFF0001,
	}

	data := original.Marshal()
	if len(data) != ReceiverHeaderSize {
		t.Fatalf("marshaled size = %d, want %d", len(data), ReceiverHeaderSize)
	}

	parsed, err := UnmarshalReceiverHeader(data)
	if err != nil {
		t.Fatalf("UnmarshalReceiverHeader: %v", err)
	}
	if parsed != original {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, original)
	}
}

func TestUnmarshalReceiverHeaderTooSmall(t *testing.T) {
	if _, err := UnmarshalReceiverHeader(make([]byte, ReceiverHeaderSize-1)); err == nil {
		t.Error("expected error for undersized buffer")
	}
}

func TestTimestampElapsedMicrosAcrossSecondBoundary(t *testing.T) {
	before := Timestamp{Sec: 10, Usec: 900_000}
	after := Timestamp{Sec: 11, Usec: 100_000}

	// Δ should be the full 200ms, not the truncated (and here negative)
	// microsecond-only difference the reference implementation computed.
	got := before.ElapsedMicros(after)
	want := int64(200_000)
	if got != want {
		t.Errorf("ElapsedMicros = %d, want %d", got, want)
	}
}

func TestMaxPayloadBudget(t *testing.T) {
	if MaxPayload != MaxPacketSize-SenderHeaderSize {
		t.Errorf("MaxPayload = %d, want %d", MaxPayload, MaxPacketSize-SenderHeaderSize)
	}
	if MaxPayload <= 0 {
		t.Fatal("MaxPayload must be positive")
	}
}
