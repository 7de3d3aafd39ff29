package sender

import (
	"context"
	"testing"
	"time"

	"github.com/quantumxfer/quantumxfer/internal/quantum/channel"
	"github.com/quantumxfer/quantumxfer/internal/quantum/source"
	"github.com/quantumxfer/quantumxfer/internal/quantum/wire"
)

func TestSendChunkReadsAtComputedOffset(t *testing.T) {
	ch, peer := channel.Pipe("sender", "peer")
	src := source.NewFake([]byte("0123456789"))
	s := New(ch, src, 10)
	s.startFilePos = 4
	s.startSeqNum = 5

	n, err := s.sendChunk(6) // offset from start: (6-5)*MaxPayload + 4 = MaxPayload+4, out of range -> 0 bytes
	if err != nil {
		t.Fatalf("sendChunk: %v", err)
	}
	if n != 0 {
		t.Errorf("payload bytes = %d, want 0 (computed offset is past the transfer size)", n)
	}

	peer.SetRecvTimeout(time.Second)
	data, _, err := peer.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	header, err := wire.UnmarshalSenderHeader(data)
	if err != nil {
		t.Fatalf("UnmarshalSenderHeader: %v", err)
	}
	if header.SeqNum != 6 {
		t.Errorf("SeqNum = %d, want 6", header.SeqNum)
	}
}

func TestSendChunkTruncatesAtTransferSize(t *testing.T) {
	ch, peer := channel.Pipe("sender", "peer")
	src := source.NewFake([]byte("0123456789"))
	s := New(ch, src, 5) // only first 5 bytes are in scope
	s.startFilePos = 0
	s.startSeqNum = 0

	_, err := s.sendChunk(0)
	if err != nil {
		t.Fatalf("sendChunk: %v", err)
	}

	peer.SetRecvTimeout(time.Second)
	data, _, err := peer.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	payload := data[wire.SenderHeaderSize:]
	if string(payload) != "01234" {
		t.Errorf("payload = %q, want %q", payload, "01234")
	}
}

func TestTransferEndToEndOverFakeChannel(t *testing.T) {
	payload := make([]byte, wire.MaxPayload*3+17)
	for i := range payload {
		payload[i] = byte(i)
	}
	src := source.NewFake(payload)

	senderCh, receiverCh := channel.Pipe("sender", "receiver")

	received := make([][]byte, 0)
	acker := func() {
		receiverCh.SetRecvTimeout(2 * time.Second)
		nextSeq := int16(0)
		var window uint64
		connected := false
		for {
			data, from, err := receiverCh.Recv()
			if err != nil {
				return
			}
			if !connected {
				receiverCh.SetPeer(from)
				connected = true
			}
			header, err := wire.UnmarshalSenderHeader(data)
			if err != nil {
				continue
			}
			if header.IsEOF() {
				return
			}
			if header.SeqNum == nextSeq {
				received = append(received, append([]byte(nil), data[wire.SenderHeaderSize:]...))
				nextSeq++
				window = 0
			} else {
				window |= 1
			}
			reply := wire.ReceiverHeader{NextSeqNum: nextSeq, Timestamp: header.Timestamp, Window: window}
			receiverCh.Send(reply.Marshal())
		}
	}
	go acker()

	s := New(senderCh, src, int64(len(payload)))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Transfer(ctx); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	var got []byte
	for _, chunk := range received {
		got = append(got, chunk...)
	}
	if len(got) != len(payload) {
		t.Fatalf("reassembled length = %d, want %d", len(got), len(payload))
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte mismatch at %d: got %d want %d", i, got[i], payload[i])
		}
	}
}

func TestConsumeRetransmitRangeSuppressesOnlyTaggedSeq(t *testing.T) {
	s := New(nil, nil, 0)
	s.retransmitted[3] = true

	suppress := s.consumeRetransmitRange(1, 4, true)
	if !suppress {
		t.Error("expected suppression: seq 3 was in [1,4) and tagged retransmitted")
	}
	if s.retransmitted[3] {
		t.Error("tag should be cleared once consumed")
	}
}

func TestConsumeRetransmitRangeNoSuppressionWhenUntagged(t *testing.T) {
	s := New(nil, nil, 0)
	suppress := s.consumeRetransmitRange(1, 4, true)
	if suppress {
		t.Error("expected no suppression: nothing tagged")
	}
}

func TestConsumeRetransmitRangeIgnoresFirstAck(t *testing.T) {
	s := New(nil, nil, 0)
	s.retransmitted[0] = true
	if s.consumeRetransmitRange(0, 5, false) {
		t.Error("first ack (havePrev=false) should never suppress")
	}
}
