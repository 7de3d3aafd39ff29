package channel

import (
	"testing"
	"time"
)

func TestFakePipeRoundTrip(t *testing.T) {
	a, b := Pipe("a", "b")

	if err := a.Send([]byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	data, from, err := b.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(data) != "ping" {
		t.Errorf("data = %q, want %q", data, "ping")
	}
	if from.String() != "a" {
		t.Errorf("from = %q, want %q", from, "a")
	}
}

func TestFakeRecvTimesOut(t *testing.T) {
	a, _ := Pipe("a", "b")
	a.SetRecvTimeout(10 * time.Millisecond)

	_, _, err := a.Recv()
	if err != ErrTimeout {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestFakeDropNext(t *testing.T) {
	a, b := Pipe("a", "b")
	a.DropNext(2)

	a.Send([]byte("1"))
	a.Send([]byte("2"))
	a.Send([]byte("3"))

	b.SetRecvTimeout(100 * time.Millisecond)
	data, _, err := b.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(data) != "3" {
		t.Errorf("first delivered datagram = %q, want %q (first two dropped)", data, "3")
	}
}

func TestFakeDuplicateNext(t *testing.T) {
	a, b := Pipe("a", "b")
	a.DuplicateNext(1)

	a.Send([]byte("1"))
	a.Send([]byte("2"))

	b.SetRecvTimeout(100 * time.Millisecond)

	var got []string
	for i := 0; i < 3; i++ {
		data, _, err := b.Recv()
		if err != nil {
			t.Fatalf("Recv %d: %v", i, err)
		}
		got = append(got, string(data))
	}
	want := []string{"1", "1", "2"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q (full sequence %v)", i, got[i], want[i], got)
		}
	}
}

func TestFakeSetReorderAll(t *testing.T) {
	a, b := Pipe("a", "b")
	a.SetReorderAll(true)

	a.Send([]byte("1"))
	a.Send([]byte("2"))
	a.Send([]byte("3"))
	a.Send([]byte("4"))

	b.SetRecvTimeout(100 * time.Millisecond)

	var got []string
	for i := 0; i < 4; i++ {
		data, _, err := b.Recv()
		if err != nil {
			t.Fatalf("Recv %d: %v", i, err)
		}
		got = append(got, string(data))
	}
	want := []string{"2", "1", "4", "3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q (full sequence %v)", i, got[i], want[i], got)
		}
	}
}

func TestFakeReorderNext(t *testing.T) {
	a, b := Pipe("a", "b")
	a.ReorderNext()

	a.Send([]byte("1"))
	a.Send([]byte("2"))

	b.SetRecvTimeout(100 * time.Millisecond)

	first, _, err := b.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	second, _, err := b.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(first) != "2" || string(second) != "1" {
		t.Errorf("delivery order = %q, %q, want %q, %q", first, second, "2", "1")
	}
}
