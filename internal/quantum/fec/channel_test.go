package fec

import (
	"testing"
	"time"

	"github.com/quantumxfer/quantumxfer/internal/quantum/channel"
)

func smallConfig() *Config {
	return &Config{DataShards: 4, ParityShards: 2}
}

func TestCodecRoundTripNoLoss(t *testing.T) {
	a, b := channel.Pipe("a", "b")
	sender, err := Wrap(a, smallConfig())
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	recvr, err := Wrap(b, smallConfig())
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	recvr.SetRecvTimeout(time.Second)

	msgs := [][]byte{[]byte("one"), []byte("two"), []byte("three"), []byte("four")}
	for _, m := range msgs {
		if err := sender.Send(m); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	for i, want := range msgs {
		got, _, err := recvr.Recv()
		if err != nil {
			t.Fatalf("Recv %d: %v", i, err)
		}
		if string(got) != string(want) {
			t.Errorf("Recv %d = %q, want %q", i, got, want)
		}
	}
}

func TestCodecReconstructsOneLostShard(t *testing.T) {
	a, b := channel.Pipe("a", "b")
	sender, err := Wrap(a, smallConfig())
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	recvr, err := Wrap(b, smallConfig())
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	recvr.SetRecvTimeout(time.Second)

	msgs := [][]byte{[]byte("aaaa"), []byte("bbbb"), []byte("cccc"), []byte("dddd")}
	for i, m := range msgs {
		if i == 1 {
			a.DropNext(1) // drop the envelope for msgs[1]'s data shard
		}
		if err := sender.Send(m); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	got := make(map[string]bool)
	// 3 data shards arrive directly, the 4th is recovered once parity lands.
	for i := 0; i < len(msgs); i++ {
		data, _, err := recvr.Recv()
		if err != nil {
			t.Fatalf("Recv %d: %v", i, err)
		}
		got[string(data)] = true
	}

	for _, m := range msgs {
		if !got[string(m)] {
			t.Errorf("missing message %q after reconstruction", m)
		}
	}
}
