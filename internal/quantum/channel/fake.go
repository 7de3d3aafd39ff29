package channel

import (
	"net"
	"sync"
	"time"
)

// fakeAddr satisfies net.Addr for endpoints that exist only in memory.
type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

// Fake is an in-memory Channel used to drive the sender and receiver state
// machines deterministically in tests, without opening real sockets. Two
// Fakes are wired together with Pipe.
type Fake struct {
	mu      sync.Mutex
	self    fakeAddr
	peer    *Fake
	peerOf  fakeAddr
	inbox   chan []byte
	timeout time.Duration

	// dropNext, when >0, discards that many outgoing sends before
	// delivering again, simulating lossy links.
	dropNext int

	// duplicateNext, when >0, delivers that many more outgoing sends
	// twice each, simulating a duplicating link.
	duplicateNext int

	// reorderArmed, when true, holds the very next Send back instead of
	// delivering it; the Send after that delivers both, swapped, so the
	// datagram that was second on the wire arrives first.
	reorderArmed bool
	held         []byte

	// reorderAll, when true, keeps swapping every consecutive pair of
	// outgoing datagrams for the life of the Fake, simulating a link
	// that persistently reorders instead of losing or duplicating.
	reorderAll bool
}

// Pipe returns two Fakes wired to each other, named a and b.
func Pipe(nameA, nameB string) (*Fake, *Fake) {
	a := &Fake{self: fakeAddr(nameA), peerOf: fakeAddr(nameB), timeout: time.Second, inbox: make(chan []byte, 256)}
	b := &Fake{self: fakeAddr(nameB), peerOf: fakeAddr(nameA), timeout: time.Second, inbox: make(chan []byte, 256)}
	a.peer = b
	b.peer = a
	return a, b
}

// DropNext discards the next n datagrams this Fake attempts to send,
// simulating packet loss on the outbound path.
func (f *Fake) DropNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropNext = n
}

// DuplicateNext delivers each of the next n outgoing datagrams twice,
// simulating a duplicating link.
func (f *Fake) DuplicateNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.duplicateNext = n
}

// ReorderNext swaps the order of the next two outgoing datagrams: the
// next Send is held back until the one after it is sent, then both are
// delivered with the later one first.
func (f *Fake) ReorderNext() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reorderArmed = true
}

// SetReorderAll arms (or disarms) continuous reordering: every
// consecutive pair of outgoing datagrams is swapped for as long as it's
// enabled, rather than just the next pair.
func (f *Fake) SetReorderAll(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reorderAll = enabled
}

func (f *Fake) Send(b []byte) error {
	f.mu.Lock()
	if f.dropNext > 0 {
		f.dropNext--
		f.mu.Unlock()
		return nil
	}

	cp := make([]byte, len(b))
	copy(cp, b)

	if f.reorderArmed || (f.reorderAll && f.held == nil) {
		f.reorderArmed = false
		f.held = cp
		f.mu.Unlock()
		return nil
	}

	held := f.held
	f.held = nil

	duplicate := false
	if f.duplicateNext > 0 {
		f.duplicateNext--
		duplicate = true
	}
	f.mu.Unlock()

	if held != nil {
		f.deliver(cp)
		f.deliver(held)
		return nil
	}

	f.deliver(cp)
	if duplicate {
		f.deliver(cp)
	}
	return nil
}

// deliver hands a datagram to the peer's inbox, dropping it if the inbox
// is full, as a real socket buffer would under sustained overrun.
func (f *Fake) deliver(b []byte) {
	select {
	case f.peer.inbox <- b:
	default:
	}
}

func (f *Fake) Recv() ([]byte, net.Addr, error) {
	f.mu.Lock()
	timeout := f.timeout
	f.mu.Unlock()

	select {
	case data := <-f.inbox:
		return data, f.peerOf, nil
	case <-time.After(timeout):
		return nil, nil, ErrTimeout
	}
}

func (f *Fake) SetPeer(addr net.Addr) {}

func (f *Fake) Peer() net.Addr {
	return f.peerOf
}

func (f *Fake) SetRecvTimeout(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeout = d
}

func (f *Fake) Close() error {
	return nil
}
